package mailbox

import (
	"context"
	"fmt"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// IMAPDialer connects to an IMAP server with go-imap.
type IMAPDialer struct{}

// Dial connects, authenticates, and returns a session. Implicit TLS is
// used when the account asks for it, STARTTLS otherwise.
func (IMAPDialer) Dial(ctx context.Context, acct Account) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	addr := acct.imapAddr()

	var client *imapclient.Client
	var err error

	if acct.IMAPTLS {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(acct.Username, acct.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, &AuthError{
			Protocol: "imap",
			Account:  acct.Username,
			Message:  err.Error(),
		}
	}

	return &imapSession{client: client}, nil
}

type imapSession struct {
	client   *imapclient.Client
	selected string
}

func (s *imapSession) selectFolder(folder string) error {
	if s.selected == folder {
		return nil
	}
	if _, err := s.client.Select(folder, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return fmt.Errorf("selecting %s: %w", folder, err)
	}
	s.selected = folder
	return nil
}

// ListUIDsFrom runs UID SEARCH UID min:*.
func (s *imapSession) ListUIDsFrom(
	ctx context.Context, folder string, minUID uint32,
) ([]uint32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.selectFolder(folder); err != nil {
		return nil, err
	}
	if minUID == 0 {
		minUID = 1
	}

	var set imap.UIDSet
	set.AddRange(imap.UID(minUID), 0)

	searchData, err := s.client.UIDSearch(&imap.SearchCriteria{
		UID: []imap.UIDSet{set},
	}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching %s from uid %d: %w", folder, minUID, err)
	}

	found := searchData.AllUIDs()
	uids := make([]uint32, 0, len(found))
	for _, uid := range found {
		uids = append(uids, uint32(uid))
	}
	return uids, nil
}

// Fetch retrieves BODY.PEEK[] for one UID.
func (s *imapSession) Fetch(ctx context.Context, uid uint32) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.selected == "" {
		return nil, fmt.Errorf("fetching uid %d: no folder selected", uid)
	}

	bodySection := &imap.FetchItemBodySection{
		Peek: true,
	}
	fetchOpts := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := s.client.Fetch(imap.UIDSetNum(imap.UID(uid)), fetchOpts)
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		if err := fetchCmd.Close(); err != nil {
			return nil, fmt.Errorf("fetching uid %d: %w", uid, err)
		}
		return nil, fmt.Errorf("uid %d: %w", uid, ErrMessageGone)
	}

	buf, err := msg.Collect()
	if err != nil {
		return nil, fmt.Errorf("collecting uid %d: %w", uid, err)
	}

	raw := buf.FindBodySection(bodySection)
	if raw == nil {
		return nil, fmt.Errorf("uid %d: %w", uid, ErrMessageGone)
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("closing fetch of uid %d: %w", uid, err)
	}
	return raw, nil
}

func (s *imapSession) Close() error {
	if err := s.client.Logout().Wait(); err != nil {
		_ = s.client.Close()
		return fmt.Errorf("logging out: %w", err)
	}
	return s.client.Close()
}
