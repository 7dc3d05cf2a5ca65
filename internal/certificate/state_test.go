package certificate

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/certledger/internal/model"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func cert(status model.CertificateStatus) model.Certificate {
	return model.Certificate{CertNumber: "C-2025-000001", Status: status}
}

func TestRequestSignature(t *testing.T) {
	t.Parallel()

	next, err := RequestSignature(cert(model.StatusIssued), "S-AB12CD34", now)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSignRequested, next.Status)
	assert.Equal(t, "S-AB12CD34", next.CurrentSignCode())
	require.NotNil(t, next.SignRequestedAt)
	assert.True(t, next.SignRequestedAt.Equal(now))

	again, err := RequestSignature(next, "S-00FF00FF", now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "S-00FF00FF", again.CurrentSignCode())
	assert.Equal(t, "S-AB12CD34", next.CurrentSignCode(), "input must not be mutated")
}

func TestRequestSignatureRejectsSigned(t *testing.T) {
	t.Parallel()

	_, err := RequestSignature(cert(model.StatusSigned), "S-AB12CD34", now)
	assert.ErrorIs(t, err, ErrAlreadySigned)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestConfirmByEmail(t *testing.T) {
	t.Parallel()

	next, err := ConfirmByEmail(cert(model.StatusSignRequested), now)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSigned, next.Status)
	require.NotNil(t, next.SignedMethod)
	assert.Equal(t, model.SignMethodEmail, *next.SignedMethod)
	assert.Equal(t, model.SystemActor, *next.SignedBy)

	_, err = ConfirmByEmail(cert(model.StatusIssued), now)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.False(t, errors.Is(err, ErrAlreadySigned))

	_, err = ConfirmByEmail(cert(model.StatusSigned), now)
	assert.ErrorIs(t, err, ErrAlreadySigned)
}

func TestOverrideSign(t *testing.T) {
	t.Parallel()

	for _, st := range OverridableFrom() {
		next, err := OverrideSign(cert(st), "registrar", now)
		require.NoError(t, err, st)
		assert.Equal(t, model.StatusSigned, next.Status)
		assert.Equal(t, model.SignMethodManual, *next.SignedMethod)
		assert.Equal(t, "registrar", *next.SignedBy)
	}

	_, err := OverrideSign(cert(model.StatusSigned), "registrar", now)
	assert.ErrorIs(t, err, ErrAlreadySigned)

	_, err = OverrideSign(cert(model.StatusIssued), "", now)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestUnknownStatusIsInvalid(t *testing.T) {
	t.Parallel()

	_, err := RequestSignature(cert("VOID"), "S-AB12CD34", now)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = OverrideSign(cert("VOID"), "registrar", now)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestNewSignCode(t *testing.T) {
	t.Parallel()

	code, err := newSignCode(bytes.NewReader([]byte{0xab, 0x12, 0xcd, 0x34}))
	require.NoError(t, err)
	assert.Equal(t, "S-AB12CD34", code)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		c, err := NewSignCode()
		require.NoError(t, err)
		assert.True(t, ValidSignCode(c), c)
		seen[c] = true
	}
	assert.Greater(t, len(seen), 45)

	_, err = newSignCode(bytes.NewReader([]byte{1, 2}))
	assert.Error(t, err)
}

func TestCertNumbers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "C-2025-000001", FormatCertNumber(2025, 1))
	assert.Equal(t, "P-000042", FormatPersonID(42))

	year, seq, err := ParseCertNumber("C-2025-000123")
	require.NoError(t, err)
	assert.Equal(t, 2025, year)
	assert.Equal(t, 123, seq)

	_, _, err = ParseCertNumber("C-25-1")
	assert.Error(t, err)
}

func TestRedactCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "S-****34", RedactCode("S-AB12CD34"))
	assert.Equal(t, "S-****", RedactCode(""))
}
