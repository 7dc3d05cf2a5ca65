package mailbox

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Memory is an in-process mailbox and relay. It mirrors IMAP's UID
// SEARCH quirk: a range past the last UID still yields the last UID.
type Memory struct {
	mu       sync.Mutex
	messages map[uint32][]byte
	sent     []Outgoing
	dials    int

	// DialErr, ListErr, and SendErr fail the matching call when set.
	DialErr error
	ListErr error
	SendErr error
	// FetchErr fails Fetch for specific UIDs.
	FetchErr map[uint32]error
}

// NewMemory returns an empty mailbox.
func NewMemory() *Memory {
	return &Memory{
		messages: make(map[uint32][]byte),
		FetchErr: make(map[uint32]error),
	}
}

// Put stores raw under uid, replacing any previous message.
func (m *Memory) Put(uid uint32, raw []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[uid] = raw
}

// Remove deletes uid.
func (m *Memory) Remove(uid uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.messages, uid)
}

// Dials returns how many sessions have been opened.
func (m *Memory) Dials() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dials
}

// Sent returns a copy of every message delivered through Send.
func (m *Memory) Sent() []Outgoing {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Outgoing, len(m.sent))
	copy(out, m.sent)
	return out
}

// Dial implements Dialer.
func (m *Memory) Dial(ctx context.Context, _ Account) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dials++
	if m.DialErr != nil {
		return nil, m.DialErr
	}
	return &memorySession{box: m}, nil
}

// Send implements Sender.
func (m *Memory) Send(ctx context.Context, _ Account, msg Outgoing) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	m.sent = append(m.sent, msg)
	return nil
}

type memorySession struct {
	box    *Memory
	closed bool
}

func (s *memorySession) ListUIDsFrom(ctx context.Context, _ string, minUID uint32) ([]uint32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.box.mu.Lock()
	defer s.box.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("listing uids: session closed")
	}
	if s.box.ListErr != nil {
		return nil, s.box.ListErr
	}

	all := make([]uint32, 0, len(s.box.messages))
	for uid := range s.box.messages {
		all = append(all, uid)
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })

	var uids []uint32
	for _, uid := range all {
		if uid >= minUID {
			uids = append(uids, uid)
		}
	}
	if len(uids) == 0 && len(all) > 0 {
		uids = append(uids, all[len(all)-1])
	}
	return uids, nil
}

func (s *memorySession) Fetch(ctx context.Context, uid uint32) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.box.mu.Lock()
	defer s.box.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("fetching uid %d: session closed", uid)
	}
	if err := s.box.FetchErr[uid]; err != nil {
		return nil, err
	}
	raw, ok := s.box.messages[uid]
	if !ok {
		return nil, fmt.Errorf("uid %d: %w", uid, ErrMessageGone)
	}
	return raw, nil
}

func (s *memorySession) Close() error {
	s.box.mu.Lock()
	defer s.box.mu.Unlock()
	s.closed = true
	return nil
}
