// Package mailbox reads inbound mail by UID and sends outbound mail.
package mailbox

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/nhle/certledger/internal/model"
)

// ErrMessageGone is returned by Session.Fetch when a UID listed by the
// server has disappeared before it could be fetched.
var ErrMessageGone = errors.New("message no longer in mailbox")

// AuthError indicates that the server rejected the account credentials.
type AuthError struct {
	Protocol string
	Account  string
	Message  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s %s): %s", e.Protocol, e.Account, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// Account carries everything needed to reach the mailbox and the relay.
type Account struct {
	Username string
	Password string

	IMAPHost string
	IMAPPort int
	IMAPTLS  bool

	SMTPHost string
	SMTPPort int
	SMTPTLS  bool
}

// AccountFromConfig builds an Account from the mailbox settings and the
// password held in the credential vault.
func AccountFromConfig(cfg model.MailboxConfig, password string) Account {
	return Account{
		Username: cfg.Account,
		Password: password,
		IMAPHost: cfg.IMAPHost,
		IMAPPort: cfg.IMAPPort,
		IMAPTLS:  cfg.IMAPTLS,
		SMTPHost: cfg.SMTPHost,
		SMTPPort: cfg.SMTPPort,
		SMTPTLS:  cfg.SMTPTLS,
	}
}

func (a Account) imapAddr() string {
	return a.IMAPHost + ":" + strconv.Itoa(a.IMAPPort)
}

func (a Account) smtpAddr() string {
	return a.SMTPHost + ":" + strconv.Itoa(a.SMTPPort)
}

// Outgoing is a single plain-text message to send.
type Outgoing struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Dialer opens an authenticated session on a mailbox.
type Dialer interface {
	Dial(ctx context.Context, acct Account) (Session, error)
}

// Session is an open mailbox connection. Implementations are not safe
// for concurrent use.
type Session interface {
	// ListUIDsFrom returns the UIDs in folder from minUID upward. Servers
	// may include UIDs below minUID; callers filter.
	ListUIDsFrom(ctx context.Context, folder string, minUID uint32) ([]uint32, error)

	// Fetch returns the raw RFC 5322 bytes of a message without marking it
	// as seen. It returns ErrMessageGone if the UID no longer exists.
	Fetch(ctx context.Context, uid uint32) ([]byte, error)

	Close() error
}

// Sender delivers outbound mail.
type Sender interface {
	Send(ctx context.Context, acct Account, msg Outgoing) error
}
