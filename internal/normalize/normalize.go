// Package normalize turns raw RFC 5322 messages into the canonical form
// the signature matcher compares against.
package normalize

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
)

// Message is the canonical view of an inbound email.
type Message struct {
	// Sender is the lowercased address of the first From mailbox.
	Sender string
	// Subject is the decoded, trimmed Subject header.
	Subject string
	// Body is the first non-attachment text/plain part (or the whole
	// payload of a single-part message) with LF line endings, trimmed.
	Body string
	// MessageID is the Message-Id without angle brackets, if present.
	MessageID string
	// Warnings lists decoding problems that were worked around.
	Warnings []string
}

// WarningText joins the warnings for storage.
func (m Message) WarningText() string {
	return strings.Join(m.Warnings, "; ")
}

func (m *Message) warn(format string, args ...interface{}) {
	m.Warnings = append(m.Warnings, fmt.Sprintf(format, args...))
}

// partKind classifies a MIME entity for the body walk.
type partKind int

const (
	partContainer partKind = iota
	partPlainText
	partAttachment
	partOther
)

func (k partKind) String() string {
	switch k {
	case partContainer:
		return "container"
	case partPlainText:
		return "text/plain"
	case partAttachment:
		return "attachment"
	default:
		return "other"
	}
}

var errStopWalk = errors.New("stop walk")

// Normalize never fails. Header and charset problems degrade to the raw
// bytes and are reported in Warnings.
func Normalize(raw []byte) Message {
	var m Message

	e, err := message.Read(bytes.NewReader(raw))
	switch {
	case err == nil:
	case e != nil && (message.IsUnknownCharset(err) || message.IsUnknownEncoding(err)):
		m.warn("message body: %v", err)
	default:
		m.warn("header: %v", err)
		e, err = lenientEntity(raw)
		if err != nil {
			m.warn("message body: %v", err)
		}
	}

	h := mail.Header{Header: e.Header}
	m.Sender = sender(&h, &m)
	m.Subject = subject(&h, &m)
	m.MessageID = messageID(&h)
	m.Body = normalizeText(body(e, &m))

	return m
}

func sender(h *mail.Header, m *Message) string {
	raw := strings.TrimSpace(h.Get("From"))
	if raw == "" {
		return ""
	}

	addrs, err := h.AddressList("From")
	if err == nil && len(addrs) > 0 {
		return strings.ToLower(strings.TrimSpace(addrs[0].Address))
	}
	m.warn("from: %v", err)

	if i := strings.LastIndex(raw, "<"); i >= 0 {
		if j := strings.Index(raw[i:], ">"); j > 1 {
			return strings.ToLower(strings.TrimSpace(raw[i+1 : i+j]))
		}
	}
	return strings.ToLower(raw)
}

func subject(h *mail.Header, m *Message) string {
	s, err := h.Subject()
	if err != nil {
		m.warn("subject: %v", err)
	}
	return strings.TrimSpace(toValidUTF8(s))
}

func messageID(h *mail.Header) string {
	id, err := h.MessageID()
	if err == nil {
		return id
	}
	raw := strings.TrimSpace(h.Get("Message-Id"))
	return strings.TrimSuffix(strings.TrimPrefix(raw, "<"), ">")
}

// body returns the un-normalized text body of e.
func body(e *message.Entity, m *Message) string {
	if classify(e.Header) != partContainer {
		return readText(e.Body, "body", m)
	}

	var text string
	err := e.Walk(func(path []int, part *message.Entity, err error) error {
		if err != nil {
			m.warn("part %v: %v", path, err)
		}
		switch classify(part.Header) {
		case partPlainText:
			text = readText(part.Body, fmt.Sprintf("part %v", path), m)
			return errStopWalk
		default:
			return nil
		}
	})
	if err != nil && !errors.Is(err, errStopWalk) {
		m.warn("multipart: %v", err)
	}
	return text
}

func classify(h message.Header) partKind {
	mediaType := mediaTypeOf(h)
	if strings.HasPrefix(mediaType, "multipart/") {
		return partContainer
	}

	disp, _, err := h.ContentDisposition()
	if err != nil {
		disp = firstToken(h.Get("Content-Disposition"))
	}
	if strings.EqualFold(disp, "attachment") {
		return partAttachment
	}

	if mediaType == "text/plain" {
		return partPlainText
	}
	return partOther
}

// mediaTypeOf returns the lowercased media type; an absent header means
// text/plain.
func mediaTypeOf(h message.Header) string {
	raw := h.Get("Content-Type")
	if strings.TrimSpace(raw) == "" {
		return "text/plain"
	}
	t, _, err := h.ContentType()
	if err != nil {
		return firstToken(raw)
	}
	return strings.ToLower(t)
}

func firstToken(v string) string {
	if i := strings.IndexByte(v, ';'); i >= 0 {
		v = v[:i]
	}
	return strings.ToLower(strings.TrimSpace(v))
}

func readText(r io.Reader, where string, m *Message) string {
	data, err := io.ReadAll(r)
	if err != nil {
		m.warn("%s: %v", where, err)
	}
	return toValidUTF8(string(data))
}

func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// normalizeText unifies line endings to LF and trims surrounding space.
func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimSpace(s)
}

// lenientEntity rebuilds an entity from raw bytes whose header block the
// strict parser rejected, keeping every line that looks like a field.
func lenientEntity(raw []byte) (*message.Entity, error) {
	head, rest := splitHeader(raw)

	var h textproto.Header
	var key, value string
	flush := func() {
		if key != "" {
			h.Add(key, strings.TrimSpace(value))
		}
		key, value = "", ""
	}

	for _, line := range strings.Split(strings.ReplaceAll(string(head), "\r\n", "\n"), "\n") {
		if line == "" {
			continue
		}
		if (line[0] == ' ' || line[0] == '\t') && key != "" {
			value += " " + strings.TrimSpace(line)
			continue
		}
		flush()
		colon := strings.IndexByte(line, ':')
		if colon <= 0 || strings.ContainsAny(line[:colon], " \t") {
			continue
		}
		key, value = line[:colon], line[colon+1:]
	}
	flush()

	return message.New(message.Header{Header: h}, bytes.NewReader(rest))
}

// splitHeader separates the header block from the body at the first
// blank line. Without one, everything is header.
func splitHeader(raw []byte) (head, rest []byte) {
	crlf := bytes.Index(raw, []byte("\r\n\r\n"))
	lf := bytes.Index(raw, []byte("\n\n"))
	switch {
	case crlf >= 0 && (lf < 0 || crlf < lf):
		return raw[:crlf], raw[crlf+4:]
	case lf >= 0:
		return raw[:lf], raw[lf+2:]
	default:
		return raw, nil
	}
}
