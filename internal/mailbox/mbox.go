package mailbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/emersion/go-mbox"
)

// MboxDialer serves an mbox file as a read-only mailbox. Message n (from
// 1) is given UID n, so replays of the same file are repeatable.
type MboxDialer struct {
	Path string
}

// Dial reads the whole file. The account is ignored.
func (d MboxDialer) Dial(ctx context.Context, _ Account) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(d.Path)
	if err != nil {
		return nil, fmt.Errorf("opening mbox %s: %w", d.Path, err)
	}
	defer f.Close()

	box, err := ReadMbox(f)
	if err != nil {
		return nil, fmt.Errorf("reading mbox %s: %w", d.Path, err)
	}
	return box.Dial(ctx, Account{})
}

// ReadMbox loads every message from r into a Memory mailbox.
func ReadMbox(r io.Reader) (*Memory, error) {
	box := NewMemory()
	reader := mbox.NewReader(r)

	var uid uint32
	for {
		msgReader, err := reader.NextMessage()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", uid+1, err)
		}

		raw, err := io.ReadAll(msgReader)
		if err != nil {
			return nil, fmt.Errorf("reading message %d: %w", uid+1, err)
		}
		uid++
		box.Put(uid, raw)
	}
	return box, nil
}
