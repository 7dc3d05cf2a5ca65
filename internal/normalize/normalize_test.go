package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// crlf converts LF-authored fixtures to wire line endings.
func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func TestNormalize_FlatMessage(t *testing.T) {
	t.Parallel()

	m := Normalize(crlf(`From: Alice Receiver <Alice@Example.COM>
To: ledger@example.com
Subject:   C-2025-000001  
Message-ID: <abc.123@mail.example.com>

S-AB12CD34
`))

	assert.Equal(t, "alice@example.com", m.Sender)
	assert.Equal(t, "C-2025-000001", m.Subject)
	assert.Equal(t, "S-AB12CD34", m.Body)
	assert.Equal(t, "abc.123@mail.example.com", m.MessageID)
	assert.Empty(t, m.Warnings)
}

func TestNormalize_EncodedSubjectAndBase64Body(t *testing.T) {
	t.Parallel()

	m := Normalize(crlf(`From: bob@example.com
Subject: =?UTF-8?B?Qy0yMDI1LTAwMDAwMQ==?=
Content-Type: text/plain; charset=utf-8
Content-Transfer-Encoding: base64

Uy1BQjEyQ0QzNA0K
`))

	assert.Equal(t, "C-2025-000001", m.Subject)
	assert.Equal(t, "S-AB12CD34", m.Body)
}

func TestNormalize_QuotedPrintableTrailingSpaceTrimmed(t *testing.T) {
	t.Parallel()

	m := Normalize(crlf(`From: bob@example.com
Subject: C-2025-000001
Content-Type: text/plain; charset=us-ascii
Content-Transfer-Encoding: quoted-printable

S-AB12CD34=20
`))

	assert.Equal(t, "S-AB12CD34", m.Body)
}

func TestNormalize_CharsetDecoded(t *testing.T) {
	t.Parallel()

	m := Normalize(crlf(`From: bob@example.com
Subject: note
Content-Type: text/plain; charset=iso-8859-1
Content-Transfer-Encoding: quoted-printable

caf=E9
`))

	assert.Equal(t, "café", m.Body)
	assert.Empty(t, m.Warnings)
}

func TestNormalize_PrefersPlainPartOfAlternative(t *testing.T) {
	t.Parallel()

	m := Normalize(crlf(`From: bob@example.com
Subject: C-2025-000001
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="b1"

--b1
Content-Type: text/html; charset=utf-8

<p>S-AB12CD34</p>
--b1
Content-Type: text/plain; charset=utf-8

S-AB12CD34
--b1--
`))

	assert.Equal(t, "S-AB12CD34", m.Body)
}

func TestNormalize_NestedMultipartSkipsAttachments(t *testing.T) {
	t.Parallel()

	m := Normalize(crlf(`From: bob@example.com
Subject: C-2025-000001
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: text/plain; name="notes.txt"
Content-Disposition: attachment; filename="notes.txt"

not the code
--outer
Content-Type: multipart/alternative; boundary="inner"

--inner
Content-Type: text/plain; charset=utf-8

  S-AB12CD34  
--inner
Content-Type: text/html; charset=utf-8

<b>S-AB12CD34</b>
--inner--
--outer--
`))

	assert.Equal(t, "S-AB12CD34", m.Body)
}

func TestNormalize_NoPlainPartYieldsEmptyBody(t *testing.T) {
	t.Parallel()

	m := Normalize(crlf(`From: bob@example.com
Subject: C-2025-000001
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="b1"

--b1
Content-Type: text/html; charset=utf-8

<p>S-AB12CD34</p>
--b1
Content-Type: text/plain
Content-Disposition: attachment; filename="code.txt"

S-AB12CD34
--b1--
`))

	assert.Equal(t, "", m.Body)
	assert.Equal(t, "C-2025-000001", m.Subject)
}

func TestNormalize_ExtraTextIsKept(t *testing.T) {
	t.Parallel()

	m := Normalize(crlf(`From: bob@example.com
Subject: C-2025-000001

Signed: S-AB12CD34
`))

	assert.Equal(t, "Signed: S-AB12CD34", m.Body)
}

func TestNormalize_LineEndingsUnified(t *testing.T) {
	t.Parallel()

	m := Normalize([]byte("From: bob@example.com\r\nSubject: x\r\n\r\nline one\r\nline two\rline three\r\n\r\n"))

	assert.Equal(t, "line one\nline two\nline three", m.Body)
}

func TestNormalize_UnknownCharsetFallsBackToBytes(t *testing.T) {
	t.Parallel()

	m := Normalize(crlf(`From: bob@example.com
Subject: C-2025-000001
Content-Type: text/plain; charset=x-made-up

S-AB12CD34
`))

	assert.Equal(t, "S-AB12CD34", m.Body)
	require.NotEmpty(t, m.Warnings)
	assert.Contains(t, m.WarningText(), "message body")
}

func TestNormalize_InvalidUTF8Replaced(t *testing.T) {
	t.Parallel()

	raw := append(crlf("From: bob@example.com\nSubject: x\n\n"), 'o', 'k', 0xff, 0xfe)
	m := Normalize(raw)

	assert.Equal(t, "ok�", m.Body)
}

func TestNormalize_MalformedHeaderLineRecovered(t *testing.T) {
	t.Parallel()

	m := Normalize(crlf(`From: Carol <carol@example.com>
this line has no colon
Subject: C-2025-000001

S-AB12CD34
`))

	require.NotEmpty(t, m.Warnings)
	assert.Equal(t, "carol@example.com", m.Sender)
	assert.Equal(t, "C-2025-000001", m.Subject)
	assert.Equal(t, "S-AB12CD34", m.Body)
}

func TestNormalize_UnparseableFromFallsBack(t *testing.T) {
	t.Parallel()

	m := Normalize(crlf(`From: "unterminated <Dave@Example.com>
Subject: hi

body
`))

	assert.Equal(t, "dave@example.com", m.Sender)
	assert.NotEmpty(t, m.Warnings)
}

func TestNormalize_EmptyInput(t *testing.T) {
	t.Parallel()

	m := Normalize(nil)

	assert.Empty(t, m.Sender)
	assert.Empty(t, m.Subject)
	assert.Empty(t, m.Body)
	assert.Empty(t, m.MessageID)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "container", partContainer.String())
	assert.Equal(t, "text/plain", partPlainText.String())
	assert.Equal(t, "attachment", partAttachment.String())
	assert.Equal(t, "other", partOther.String())
}
