// Package report renders the evidence dossier of one certificate as PDF.
package report

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"

	"github.com/nhle/certledger/internal/ledger"
	"github.com/nhle/certledger/internal/model"
)

// Data is everything printed in a report.
type Data struct {
	Certificate model.Certificate
	Receiver    model.Person
	Giver       model.Person
	Evidence    []model.EmailEvidence
	Audit       []model.AuditLogEntry

	EvidenceChain ledger.Result
	AuditChain    ledger.Result

	GeneratedAt time.Time
	GeneratedBy string
}

// Result describes a written report file.
type Result struct {
	Path   string `json:"path" yaml:"path"`
	SHA256 string `json:"sha256" yaml:"sha256"`
	Bytes  int    `json:"bytes" yaml:"bytes"`
}

const timeLayout = "2006-01-02 15:04:05 MST"

// WriteCertificateReport renders d to w.
func WriteCertificateReport(w io.Writer, d Data) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(14, 14, 14)
	pdf.SetAutoPageBreak(true, 14)
	pdf.SetTitle("CertLedger evidence report "+d.Certificate.CertNumber, false)
	pdf.SetCreator("certledger", false)
	pdf.SetCreationDate(d.GeneratedAt)

	font, utf8OK := initUnicodeFont(pdf)
	p := &page{pdf: pdf, font: font, utf8: utf8OK}

	pdf.AddPage()

	pdf.SetFont(font, "B", 16)
	pdf.CellFormat(0, 9, "Certificate Evidence Report", "", 1, "L", false, 0, "")
	pdf.SetFont(font, "", 10)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(0, 6, "Generated at: "+fmtTime(d.GeneratedAt), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Generated by: "+p.text(d.GeneratedBy), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	c := d.Certificate
	p.section("1. Certificate")
	p.kv("Number", c.CertNumber)
	p.kv("Type", c.CertType)
	p.kv("Status", string(c.Status))
	p.kv("Issued", fmtTime(c.IssuedAt))
	p.kv("Valid until", fmtTime(c.ValidUntil))
	p.kv("Receiver", fmt.Sprintf("%s (%s, %s)", c.ReceiverNameUsed, d.Receiver.PersonID, orDash(d.Receiver.Email)))
	p.kv("Giver", fmt.Sprintf("%s (%s, %s)", c.GiverNameUsed, d.Giver.PersonID, orDash(d.Giver.Email)))
	p.kv("Sign requested", fmtTimePtr(c.SignRequestedAt))
	p.kv("Signed", fmtTimePtr(c.SignedAt))
	if c.SignedMethod != nil {
		p.kv("Signed method", string(*c.SignedMethod))
	}
	if c.SignedBy != nil {
		p.kv("Signed by", *c.SignedBy)
	}
	pdf.Ln(2)

	p.section("2. Ledger Integrity")
	p.chain("Evidence ledger", d.EvidenceChain)
	p.chain("Audit ledger", d.AuditChain)
	if !utf8OK {
		p.note("UTF-8 font not available; non-ASCII text is shown as '?'.")
	}
	pdf.Ln(2)

	p.section(fmt.Sprintf("3. Email Evidence (%d)", len(d.Evidence)))
	if len(d.Evidence) == 0 {
		p.empty()
	}
	for _, e := range d.Evidence {
		verdict := "REJECTED"
		if e.Matched {
			verdict = "MATCHED"
		}
		pdf.SetFont(font, "B", 10)
		pdf.SetTextColor(20, 20, 20)
		pdf.MultiCell(0, 5, p.text(fmt.Sprintf("#%d | %s | %s | %s",
			e.ID, fmtTime(e.ReceivedAt), verdict, e.Notes)), "", "L", false)
		pdf.SetFont(font, "", 9)
		pdf.SetTextColor(40, 40, 40)
		pdf.MultiCell(0, 4.5, p.text("from: "+e.FromEmail+" | uid: "+fmt.Sprint(e.MailboxUID)), "", "L", false)
		pdf.MultiCell(0, 4.5, p.text("subject: "+e.Subject), "", "L", false)
		pdf.MultiCell(0, 4.5, "body sha256: "+e.BodyHash, "", "L", false)
		pdf.MultiCell(0, 4.5, "chain: "+e.ChainHash, "", "L", false)
		if e.DecodeWarnings != "" {
			pdf.MultiCell(0, 4.5, p.text("warnings: "+e.DecodeWarnings), "", "L", false)
		}
		pdf.Ln(1)
	}
	pdf.Ln(2)

	p.section(fmt.Sprintf("4. Audit Trail (%d)", len(d.Audit)))
	if len(d.Audit) == 0 {
		p.empty()
	}
	for _, a := range d.Audit {
		pdf.SetFont(font, "B", 10)
		pdf.SetTextColor(20, 20, 20)
		pdf.MultiCell(0, 5, p.text(fmt.Sprintf("#%d | %s | %s | %s | %s",
			a.ID, fmtTime(a.TS), a.Action, a.Result, a.Actor)), "", "L", false)
		pdf.SetFont(font, "", 9)
		pdf.SetTextColor(40, 40, 40)
		if a.Message != "" {
			pdf.MultiCell(0, 4.5, p.text(a.Message), "", "L", false)
		}
		pdf.MultiCell(0, 4.5, "chain: "+a.ChainHash, "", "L", false)
		pdf.Ln(1)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("rendering report for %s: %w", c.CertNumber, err)
	}
	return nil
}

type page struct {
	pdf  *gofpdf.Fpdf
	font string
	utf8 bool
}

func (p *page) section(title string) {
	p.pdf.SetFont(p.font, "B", 12)
	p.pdf.SetTextColor(0, 0, 0)
	p.pdf.CellFormat(0, 7, title, "", 1, "L", false, 0, "")
	p.pdf.SetDrawColor(200, 200, 200)
	p.pdf.Line(p.pdf.GetX(), p.pdf.GetY(), 196, p.pdf.GetY())
	p.pdf.Ln(2)
}

func (p *page) kv(key, value string) {
	p.pdf.SetFont(p.font, "B", 10)
	p.pdf.SetTextColor(30, 30, 30)
	p.pdf.CellFormat(36, 5.2, key+":", "", 0, "L", false, 0, "")
	p.pdf.SetFont(p.font, "", 10)
	p.pdf.SetTextColor(20, 20, 20)
	p.pdf.MultiCell(0, 5.2, p.text(orDash(value)), "", "L", false)
}

func (p *page) chain(label string, r ledger.Result) {
	status := "INTACT"
	if !r.OK {
		status = fmt.Sprintf("BROKEN (%d of %d rows fail)", r.Failed, r.Total)
	}
	p.kv(label, fmt.Sprintf("%s, %d rows", status, r.Total))
	if r.LastChainHash != "" {
		p.kv("Head hash", r.LastChainHash)
	}
}

func (p *page) note(s string) {
	p.pdf.SetFont(p.font, "", 9)
	p.pdf.SetTextColor(120, 80, 0)
	p.pdf.MultiCell(0, 4.5, s, "", "L", false)
}

func (p *page) empty() {
	p.pdf.SetFont(p.font, "", 10)
	p.pdf.SetTextColor(90, 90, 90)
	p.pdf.MultiCell(0, 5, "(none)", "", "L", false)
}

// text flattens s to one line. Without a UTF-8 font, bytes outside
// printable ASCII become '?'.
func (p *page) text(s string) string {
	s = strings.NewReplacer("\r", " ", "\n", " ", "\t", " ").Replace(s)
	s = strings.TrimSpace(s)
	if p.utf8 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= 32 && r <= 126 {
			b.WriteRune(r)
		} else {
			b.WriteRune('?')
		}
	}
	return b.String()
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(timeLayout)
}

func fmtTimePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return fmtTime(*t)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// initUnicodeFont registers the first TrueType font found, preferring
// CERTLEDGER_PDF_FONT. It falls back to the Helvetica core font.
func initUnicodeFont(pdf *gofpdf.Fpdf) (family string, utf8OK bool) {
	const familyName = "unicode"

	var candidates []string
	if v := strings.TrimSpace(os.Getenv("CERTLEDGER_PDF_FONT")); v != "" {
		candidates = append(candidates, v)
	}
	switch runtime.GOOS {
	case "darwin":
		candidates = append(candidates, "/System/Library/Fonts/Supplemental/Arial Unicode.ttf")
	case "windows":
		candidates = append(candidates, `C:\Windows\Fonts\arialuni.ttf`, `C:\Windows\Fonts\arial.ttf`)
	default:
		candidates = append(candidates,
			"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
			"/usr/share/fonts/TTF/DejaVuSans.ttf",
		)
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		pdf.AddUTF8Font(familyName, "", path)
		if pdf.Err() {
			pdf.ClearError()
			continue
		}
		pdf.AddUTF8Font(familyName, "B", path)
		if pdf.Err() {
			pdf.ClearError()
		}
		return familyName, true
	}
	return "Helvetica", false
}
