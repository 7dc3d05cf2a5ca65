package scan

// Cursor is the mailbox watermark: the highest UID already processed.
// It only moves forward.
type Cursor struct {
	current uint32
}

// NewCursor starts a cursor at uid.
func NewCursor(uid uint32) *Cursor {
	return &Cursor{current: uid}
}

// Current returns the watermark.
func (c *Cursor) Current() uint32 {
	return c.current
}

// AdvanceTo moves the watermark to uid unless it is already past it.
func (c *Cursor) AdvanceTo(uid uint32) {
	if uid >= c.current {
		c.current = uid
	}
}
