package certificate

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// codeBytes is the entropy in a sign code: 4 bytes, 8 hex digits.
const codeBytes = 4

var (
	signCodePattern   = regexp.MustCompile(`^S-[0-9A-F]{8}$`)
	certNumberPattern = regexp.MustCompile(`^C-(\d{4})-(\d{6,})$`)
)

// NewSignCode returns an unpredictable code of the form S-XXXXXXXX using
// uppercase hex, so it survives case-folding mail clients unchanged.
func NewSignCode() (string, error) {
	return newSignCode(rand.Reader)
}

func newSignCode(r io.Reader) (string, error) {
	buf := make([]byte, codeBytes)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("generating sign code: %w", err)
	}
	return "S-" + strings.ToUpper(hex.EncodeToString(buf)), nil
}

// ValidSignCode reports whether s has the sign code shape.
func ValidSignCode(s string) bool {
	return signCodePattern.MatchString(s)
}

// RedactCode masks all but the last two characters of a sign code.
func RedactCode(code string) string {
	if len(code) <= 4 {
		return "S-****"
	}
	return "S-****" + code[len(code)-2:]
}

// FormatCertNumber renders C-YYYY-NNNNNN.
func FormatCertNumber(year, seq int) string {
	return fmt.Sprintf("C-%04d-%06d", year, seq)
}

// ParseCertNumber splits a certificate number into year and sequence.
func ParseCertNumber(s string) (year, seq int, err error) {
	m := certNumberPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, fmt.Errorf("malformed certificate number %q", s)
	}
	year, _ = strconv.Atoi(m[1])
	seq, err = strconv.Atoi(m[2])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed certificate number %q: %w", s, err)
	}
	return year, seq, nil
}

// FormatPersonID renders P-NNNNNN.
func FormatPersonID(seq int) string {
	return fmt.Sprintf("P-%06d", seq)
}
