package ledger

import (
	"strings"

	"github.com/nhle/certledger/internal/model"
)

// Failure describes one row whose link or hash did not verify.
type Failure struct {
	Index int   `json:"index" yaml:"index"`
	RowID int64 `json:"row_id" yaml:"row_id"`

	PrevHashMismatch bool   `json:"prev_hash_mismatch" yaml:"prev_hash_mismatch"`
	ExpectedPrevHash string `json:"expected_prev_hash,omitempty" yaml:"expected_prev_hash,omitempty"`
	ActualPrevHash   string `json:"actual_prev_hash,omitempty" yaml:"actual_prev_hash,omitempty"`

	ChainHashMismatch bool   `json:"chain_hash_mismatch" yaml:"chain_hash_mismatch"`
	ExpectedChainHash string `json:"expected_chain_hash,omitempty" yaml:"expected_chain_hash,omitempty"`
	ActualChainHash   string `json:"actual_chain_hash,omitempty" yaml:"actual_chain_hash,omitempty"`

	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

// Result summarizes a chain verification.
type Result struct {
	OK              bool      `json:"ok" yaml:"ok"`
	Total           int       `json:"total" yaml:"total"`
	Failed          int       `json:"failed" yaml:"failed"`
	PrevHashFailed  int       `json:"prev_hash_failed" yaml:"prev_hash_failed"`
	ChainHashFailed int       `json:"chain_hash_failed" yaml:"chain_hash_failed"`
	LastChainHash   string    `json:"last_chain_hash,omitempty" yaml:"last_chain_hash,omitempty"`
	Failures        []Failure `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// link is the per-row view the verifier needs.
type link struct {
	id       int64
	prev     string
	chain    string
	expected func(prev string) string
}

// VerifyEvidence checks rows given in insertion (ascending id) order.
func VerifyEvidence(rows []model.EmailEvidence) Result {
	links := make([]link, len(rows))
	for i := range rows {
		e := &rows[i]
		links[i] = link{
			id:    e.ID,
			prev:  e.PrevHash,
			chain: e.ChainHash,
			expected: func(prev string) string {
				return EvidenceHash(prev, e)
			},
		}
	}
	return verify(links)
}

// VerifyAudit checks rows given in insertion (ascending id) order.
func VerifyAudit(rows []model.AuditLogEntry) Result {
	links := make([]link, len(rows))
	for i := range rows {
		a := &rows[i]
		links[i] = link{
			id:    a.ID,
			prev:  a.PrevHash,
			chain: a.ChainHash,
			expected: func(prev string) string {
				return AuditHash(prev, a)
			},
		}
	}
	return verify(links)
}

func verify(links []link) Result {
	res := Result{OK: true, Total: len(links)}

	prev := ""
	for i, l := range links {
		expectedPrev := prev
		actualPrev := strings.TrimSpace(l.prev)
		// Hash over the stored prev; continuity is checked on its own.
		expectedChain := l.expected(actualPrev)
		actualChain := strings.TrimSpace(l.chain)

		prevMismatch := actualPrev != expectedPrev
		chainMismatch := actualChain != expectedChain

		if prevMismatch || chainMismatch {
			res.OK = false
			res.Failed++
			if prevMismatch {
				res.PrevHashFailed++
			}
			if chainMismatch {
				res.ChainHashFailed++
			}

			msg := ""
			switch {
			case prevMismatch && chainMismatch:
				msg = "prev_hash and chain_hash mismatch"
			case prevMismatch:
				msg = "prev_hash mismatch"
			default:
				msg = "chain_hash mismatch"
			}

			res.Failures = append(res.Failures, Failure{
				Index:             i,
				RowID:             l.id,
				PrevHashMismatch:  prevMismatch,
				ExpectedPrevHash:  expectedPrev,
				ActualPrevHash:    actualPrev,
				ChainHashMismatch: chainMismatch,
				ExpectedChainHash: expectedChain,
				ActualChainHash:   actualChain,
				Message:           msg,
			})
		}

		prev = actualChain
		res.LastChainHash = actualChain
	}

	return res
}
