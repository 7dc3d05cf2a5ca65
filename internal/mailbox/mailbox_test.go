package mailbox_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/certledger/internal/mailbox"
	"github.com/nhle/certledger/internal/normalize"
)

const sampleMbox = `From alice@example.com Sat Mar  1 09:00:00 2025
From: Alice <alice@example.com>
Subject: C-2025-000001
Message-ID: <one@example.com>

S-AB12CD34

From bob@example.com Sat Mar  1 09:05:00 2025
From: bob@example.com
Subject: hello

hi there
`

func TestReadMbox_AssignsSequentialUIDs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	box, err := mailbox.ReadMbox(strings.NewReader(sampleMbox))
	require.NoError(t, err)

	sess, err := box.Dial(ctx, mailbox.Account{})
	require.NoError(t, err)
	defer sess.Close()

	uids, err := sess.ListUIDsFrom(ctx, "INBOX", 1)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2}, uids)

	raw, err := sess.Fetch(ctx, 1)
	require.NoError(t, err)
	msg := normalize.Normalize(raw)
	assert.Equal(t, "alice@example.com", msg.Sender)
	assert.Equal(t, "C-2025-000001", msg.Subject)
	assert.Equal(t, "S-AB12CD34", msg.Body)
	assert.Equal(t, "one@example.com", msg.MessageID)

	raw, err = sess.Fetch(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "hello", normalize.Normalize(raw).Subject)
}

func TestMboxDialer_ReadsFile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "export.mbox")
	require.NoError(t, os.WriteFile(path, []byte(sampleMbox), 0o600))

	sess, err := mailbox.MboxDialer{Path: path}.Dial(ctx, mailbox.Account{})
	require.NoError(t, err)
	defer sess.Close()

	uids, err := sess.ListUIDsFrom(ctx, "INBOX", 2)
	require.NoError(t, err)
	assert.Equal(t, []uint32{2}, uids)
}

func TestMboxDialer_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := mailbox.MboxDialer{Path: filepath.Join(t.TempDir(), "nope")}.Dial(context.Background(), mailbox.Account{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestMemory_ListPastEndReturnsLastUID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	box := mailbox.NewMemory()
	box.Put(3, []byte("a"))
	box.Put(5, []byte("b"))

	sess, err := box.Dial(ctx, mailbox.Account{})
	require.NoError(t, err)

	uids, err := sess.ListUIDsFrom(ctx, "INBOX", 4)
	require.NoError(t, err)
	assert.Equal(t, []uint32{5}, uids)

	uids, err = sess.ListUIDsFrom(ctx, "INBOX", 6)
	require.NoError(t, err)
	assert.Equal(t, []uint32{5}, uids)

	_, err = sess.Fetch(ctx, 4)
	assert.ErrorIs(t, err, mailbox.ErrMessageGone)
	assert.Equal(t, 1, box.Dials())
}

func TestMemory_EmptyMailboxListsNothing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	sess, err := mailbox.NewMemory().Dial(ctx, mailbox.Account{})
	require.NoError(t, err)

	uids, err := sess.ListUIDsFrom(ctx, "INBOX", 1)
	require.NoError(t, err)
	assert.Empty(t, uids)
}

func TestCompose_ReadsBackThroughNormalizer(t *testing.T) {
	t.Parallel()

	date := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	raw, err := mailbox.Compose(mailbox.Outgoing{
		From:    "Registry@Example.com",
		To:      "alice@example.com",
		Subject: "SIGN REQUEST: C-2025-000001 für Zoë",
		Body:    "Reply with:\nS-AB12CD34\n",
	}, date)
	require.NoError(t, err)

	text := string(raw)
	assert.Contains(t, text, "Content-Type: text/plain")
	assert.Contains(t, text, "\r\nS-AB12CD34\r\n")

	msg := normalize.Normalize(raw)
	assert.Equal(t, "registry@example.com", msg.Sender)
	assert.Equal(t, "SIGN REQUEST: C-2025-000001 für Zoë", msg.Subject)
	assert.Equal(t, "Reply with:\nS-AB12CD34", msg.Body)
	assert.True(t, strings.HasSuffix(msg.MessageID, "@example.com"))
	assert.Empty(t, msg.Warnings)
}

func TestCompose_RejectsBadAddress(t *testing.T) {
	t.Parallel()

	_, err := mailbox.Compose(mailbox.Outgoing{From: "not an address", To: "a@example.com"}, time.Now())
	require.Error(t, err)
}

func TestIsAuthError(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("dialing: %w", &mailbox.AuthError{Protocol: "imap", Account: "a@example.com", Message: "bad password"})
	assert.True(t, mailbox.IsAuthError(err))
	assert.Contains(t, err.Error(), "bad password")
	assert.False(t, mailbox.IsAuthError(errors.New("timeout")))
}
