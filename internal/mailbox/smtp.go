package mailbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"
)

const dialTimeout = 30 * time.Second

// SMTPSender delivers mail through the account's SMTP relay.
type SMTPSender struct {
	// Now stamps the Date header. Nil means time.Now.
	Now func() time.Time
}

// Send composes msg and relays it. Implicit TLS is used when the account
// asks for it, STARTTLS otherwise.
func (s SMTPSender) Send(ctx context.Context, acct Account, msg Outgoing) error {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	body, err := Compose(msg, now())
	if err != nil {
		return fmt.Errorf("composing message to %s: %w", msg.To, err)
	}

	client, err := dialSMTP(ctx, acct)
	if err != nil {
		return err
	}
	defer client.Close()

	auth := smtp.PlainAuth("", acct.Username, acct.Password, acct.SMTPHost)
	if err := client.Auth(auth); err != nil {
		return &AuthError{
			Protocol: "smtp",
			Account:  acct.Username,
			Message:  err.Error(),
		}
	}

	return sendMailViaSMTPClient(client, msg.From, msg.To, body)
}

// dialSMTP connects and, for non-TLS accounts, upgrades with STARTTLS.
func dialSMTP(ctx context.Context, acct Account) (*smtp.Client, error) {
	addr := acct.smtpAddr()
	tlsConfig := &tls.Config{ServerName: acct.SMTPHost}
	netDialer := &net.Dialer{Timeout: dialTimeout}

	var conn net.Conn
	var err error
	if acct.SMTPTLS {
		d := &tls.Dialer{NetDialer: netDialer, Config: tlsConfig}
		conn, err = d.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = netDialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("dial to %s: %w", addr, err)
	}

	client, err := smtp.NewClient(conn, acct.SMTPHost)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating SMTP client: %w", err)
	}

	if !acct.SMTPTLS {
		if err := client.StartTLS(tlsConfig); err != nil {
			client.Close()
			return nil, fmt.Errorf("SMTP STARTTLS: %w", err)
		}
	}
	return client, nil
}

// sendMailViaSMTPClient sends a message using an already-authenticated
// SMTP client.
func sendMailViaSMTPClient(
	client *smtp.Client, from, to string, body []byte,
) error {
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}

	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("SMTP RCPT TO: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA: %w", err)
	}

	if _, err := writer.Write(body); err != nil {
		return fmt.Errorf("writing email body: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing email body: %w", err)
	}

	return client.Quit()
}
