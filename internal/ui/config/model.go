// Package config is the settings screen: mailbox account, relay, matching
// policy, and the stored mailbox password.
package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/certledger/internal/keys"
	"github.com/nhle/certledger/internal/model"
	"github.com/nhle/certledger/internal/service"
	"github.com/nhle/certledger/internal/theme"
)

// Mode represents the current state of the settings view.
type Mode int

const (
	ModeShow       Mode = iota // Read-only summary
	ModeForm                   // Editing settings
	ModePassword               // Entering the mailbox password
	ModeTesting                // Logging in to the mailbox
	ModeTestResult             // Showing the login outcome
)

const testTimeout = 30 * time.Second

// Service is the part of the ledger the settings screen drives.
type Service interface {
	Settings() (*model.AppConfig, error)
	UpdateSettings(ctx context.Context, next *model.AppConfig, actor string) error
	SetMailboxPassword(ctx context.Context, password, actor string) error
	TestConnection(ctx context.Context) (service.ConnectionReport, error)
}

// DoneMsg signals the settings view should close.
type DoneMsg struct{}

// SavedMsg signals the settings were changed.
type SavedMsg struct{}

// LoadedMsg carries the current settings.
type LoadedMsg struct {
	Config *model.AppConfig
	Err    error
}

type savedMsg struct {
	what string
	err  error
}

// TestResultMsg carries the outcome of a connection test.
type TestResultMsg struct {
	Report service.ConnectionReport
	Err    error
}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	account  string
	imapHost string
	imapPort string
	imapTLS  bool
	folder   string
	smtpHost string
	smtpPort string
	smtpTLS  bool
	fromOnly bool
	poll     string
	password string
}

// Model is the Bubble Tea model for the settings view.
type Model struct {
	mode  Mode
	svc   Service
	actor string
	cfg   *model.AppConfig

	form *huh.Form
	fb   *formBindings

	spinner spinner.Model
	result  TestResultMsg

	statusMsg string
	statusErr bool

	keys          *keys.KeyMap
	width, height int
}

// New creates a settings view.
func New(svc Service, k *keys.KeyMap, actor string, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		mode:    ModeShow,
		svc:     svc,
		actor:   actor,
		fb:      &formBindings{},
		spinner: sp,
		keys:    k,
		width:   width,
		height:  height,
	}
}

// Load returns a command that reads the current settings.
func (m Model) Load() tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		cfg, err := svc.Settings()
		return LoadedMsg{Config: cfg, Err: err}
	}
}

// Mode returns the current mode.
func (m Model) Mode() Mode {
	return m.mode
}

// Update handles messages and dispatches based on current mode.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		if msg.Err != nil {
			m.setError(fmt.Sprintf("loading settings: %v", msg.Err))
			return m, nil
		}
		m.cfg = msg.Config
		return m, nil

	case savedMsg:
		m.mode = ModeShow
		if msg.err != nil {
			m.setError(fmt.Sprintf("saving %s: %v", msg.what, msg.err))
			return m, nil
		}
		m.statusMsg, m.statusErr = msg.what+" saved", false
		return m, tea.Batch(m.Load(), func() tea.Msg { return SavedMsg{} })

	case TestResultMsg:
		if m.mode != ModeTesting {
			return m, nil
		}
		m.result = msg
		m.mode = ModeTestResult
		return m, nil

	case spinner.TickMsg:
		if m.mode == ModeTesting {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	return m.updateForm(msg)
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch m.mode {
	case ModeShow:
		return m.handleShowKeys(msg)
	case ModeForm, ModePassword:
		return m.updateForm(msg)
	case ModeTesting:
		// Only allow escape while the login is in flight.
		if key.Matches(msg, m.keys.Back) {
			m.mode = ModeShow
		}
		return m, nil
	case ModeTestResult:
		switch {
		case key.Matches(msg, m.keys.Back), msg.String() == "enter":
			m.mode = ModeShow
		case msg.String() == "r" && m.result.Err != nil:
			return m.startTest()
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleShowKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.statusMsg, m.statusErr = "", false
		return m, func() tea.Msg { return DoneMsg{} }

	case msg.String() == "e":
		if m.cfg == nil {
			return m, nil
		}
		m.mode = ModeForm
		m.form = m.buildSettingsForm()
		return m, m.form.Init()

	case msg.String() == "p":
		if m.cfg == nil || !m.cfg.Mailbox.Configured() {
			m.setError("set a mailbox account first")
			return m, nil
		}
		m.mode = ModePassword
		m.form = m.buildPasswordForm()
		return m, m.form.Init()

	case msg.String() == "t":
		if m.cfg == nil {
			return m, nil
		}
		return m.startTest()
	}
	return m, nil
}

func (m Model) startTest() (Model, tea.Cmd) {
	m.mode = ModeTesting
	m.result = TestResultMsg{}
	svc := m.svc
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()
		report, err := svc.TestConnection(ctx)
		return TestResultMsg{Report: report, Err: err}
	})
}

// --- Forms ---

func (m *Model) buildSettingsForm() *huh.Form {
	mb := m.cfg.Mailbox
	*m.fb = formBindings{
		account:  mb.Account,
		imapHost: mb.IMAPHost,
		imapPort: strconv.Itoa(mb.IMAPPort),
		imapTLS:  mb.IMAPTLS,
		folder:   mb.Folder,
		smtpHost: mb.SMTPHost,
		smtpPort: strconv.Itoa(mb.SMTPPort),
		smtpTLS:  mb.SMTPTLS,
		fromOnly: m.cfg.Policy.RequireFromMatch,
		poll:     strconv.Itoa(m.cfg.Scan.PollIntervalSec),
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Account").
				Description("Mailbox login and From address of sign requests").
				Placeholder("registry@example.com").
				Value(&m.fb.account).
				Validate(validateAccount),
			huh.NewInput().
				Title("IMAP Host").
				Placeholder("imap.example.com").
				Value(&m.fb.imapHost).
				Validate(validateRequired("IMAP Host")),
			huh.NewInput().
				Title("IMAP Port").
				Placeholder("993").
				Value(&m.fb.imapPort).
				Validate(validatePort),
			huh.NewConfirm().
				Title("IMAP over TLS").
				Affirmative("Yes").
				Negative("No").
				Value(&m.fb.imapTLS),
			huh.NewInput().
				Title("Folder").
				Description("Mailbox folder scanned for replies").
				Placeholder("INBOX").
				Value(&m.fb.folder).
				Validate(validateRequired("Folder")),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("SMTP Host").
				Placeholder("smtp.example.com").
				Value(&m.fb.smtpHost).
				Validate(validateRequired("SMTP Host")),
			huh.NewInput().
				Title("SMTP Port").
				Placeholder("587").
				Value(&m.fb.smtpPort).
				Validate(validatePort),
			huh.NewConfirm().
				Title("SMTP over implicit TLS").
				Description("No uses STARTTLS").
				Affirmative("Yes").
				Negative("No").
				Value(&m.fb.smtpTLS),
			huh.NewConfirm().
				Title("Require sender match").
				Description("Only accept replies from the receiver's address on file").
				Affirmative("Yes").
				Negative("No").
				Value(&m.fb.fromOnly),
			huh.NewInput().
				Title("Poll interval (seconds)").
				Placeholder("300").
				Value(&m.fb.poll).
				Validate(validatePositive),
		),
	).WithWidth(m.formWidth())
}

func (m *Model) buildPasswordForm() *huh.Form {
	m.fb.password = ""
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Mailbox password").
				Description(fmt.Sprintf("Stored in the OS keyring for %s", m.cfg.Mailbox.Account)).
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.password).
				Validate(validateRequired("Password")),
		),
	).WithWidth(m.formWidth())
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil || (m.mode != ModeForm && m.mode != ModePassword) {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.form = nil
		if m.mode == ModePassword {
			return m, m.savePassword()
		}
		return m, m.saveSettings()
	case huh.StateAborted:
		m.form = nil
		m.mode = ModeShow
		m.fb.password = ""
		return m, nil
	}
	return m, cmd
}

// applyForm copies the bound form fields onto a clone of the loaded
// settings. Inputs were validated by the form.
func (m Model) applyForm() *model.AppConfig {
	cfg := m.cfg.Clone()
	cfg.Mailbox.Account = strings.TrimSpace(m.fb.account)
	cfg.Mailbox.IMAPHost = strings.TrimSpace(m.fb.imapHost)
	cfg.Mailbox.IMAPPort, _ = strconv.Atoi(strings.TrimSpace(m.fb.imapPort))
	cfg.Mailbox.IMAPTLS = m.fb.imapTLS
	cfg.Mailbox.Folder = strings.TrimSpace(m.fb.folder)
	cfg.Mailbox.SMTPHost = strings.TrimSpace(m.fb.smtpHost)
	cfg.Mailbox.SMTPPort, _ = strconv.Atoi(strings.TrimSpace(m.fb.smtpPort))
	cfg.Mailbox.SMTPTLS = m.fb.smtpTLS
	cfg.Policy.RequireFromMatch = m.fb.fromOnly
	cfg.Scan.PollIntervalSec, _ = strconv.Atoi(strings.TrimSpace(m.fb.poll))
	return cfg
}

func (m Model) saveSettings() tea.Cmd {
	svc, actor, next := m.svc, m.actor, m.applyForm()
	return func() tea.Msg {
		err := svc.UpdateSettings(context.Background(), next, actor)
		return savedMsg{what: "settings", err: err}
	}
}

func (m *Model) savePassword() tea.Cmd {
	svc, actor, password := m.svc, m.actor, m.fb.password
	m.fb.password = ""
	return func() tea.Msg {
		err := svc.SetMailboxPassword(context.Background(), password, actor)
		return savedMsg{what: "password", err: err}
	}
}

// --- View ---

// View renders the settings view based on the current mode.
func (m Model) View() string {
	switch m.mode {
	case ModeForm, ModePassword:
		return m.frame(m.form.View())
	case ModeTesting:
		return m.frame(fmt.Sprintf("%s Logging in to %s...\n\nPress esc to cancel.",
			m.spinner.View(), m.cfg.Mailbox.Account))
	case ModeTestResult:
		return m.frame(m.viewTestResult())
	default:
		return m.frame(m.viewShow())
	}
}

func (m Model) viewShow() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray).Width(20)
	hintStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)

	var b strings.Builder
	b.WriteString(titleStyle.Render("Settings"))
	b.WriteString("\n\n")

	if m.cfg == nil {
		b.WriteString(hintStyle.Italic(true).Render("Loading settings..."))
	} else {
		mb := m.cfg.Mailbox
		account := mb.Account
		if !mb.Configured() {
			account = lipgloss.NewStyle().Foreground(theme.ColorYellow).Render("not configured")
		}
		rows := [][2]string{
			{"Account", account},
			{"IMAP", fmt.Sprintf("%s:%d %s", mb.IMAPHost, mb.IMAPPort, tlsLabel(mb.IMAPTLS))},
			{"Folder", mb.Folder},
			{"SMTP", fmt.Sprintf("%s:%d %s", mb.SMTPHost, mb.SMTPPort, tlsLabel(mb.SMTPTLS))},
			{"Sender must match", strconv.FormatBool(m.cfg.Policy.RequireFromMatch)},
			{"Poll interval", fmt.Sprintf("%ds", m.cfg.Scan.PollIntervalSec)},
			{"Last scanned UID", strconv.FormatUint(uint64(mb.LastUID), 10)},
			{"Reports", m.cfg.Report.Dir},
		}
		for _, r := range rows {
			b.WriteString(metaStyle.Render(r[0]+":") + " " + r[1] + "\n")
		}
	}

	if m.statusMsg != "" {
		color := theme.ColorGreen
		if m.statusErr {
			color = theme.ColorRed
		}
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(color).Italic(true).Render(m.statusMsg))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(hintStyle.Render("e edit | p password | t test connection | esc back"))
	return b.String()
}

func (m Model) viewTestResult() string {
	hint := lipgloss.NewStyle().Foreground(theme.ColorGray)
	if err := m.result.Err; err != nil {
		errStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorRed)
		return errStyle.Render("Connection failed") + "\n\n" +
			err.Error() + "\n\n" +
			hint.Render("r retry | enter/esc back")
	}

	r := m.result.Report
	okStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorGreen)
	return okStyle.Render("Connection successful") + "\n\n" +
		fmt.Sprintf("Logged in as %s\n%s holds %d messages, %d not yet scanned",
			r.Account, r.Folder, r.Messages, r.Unscanned) + "\n\n" +
		hint.Render("enter/esc back")
}

func (m Model) frame(content string) string {
	return lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height).
		Render(content)
}

// --- Helpers ---

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) setError(s string) {
	m.statusMsg, m.statusErr = s, true
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 100)
}

func tlsLabel(on bool) string {
	if on {
		return "(tls)"
	}
	return "(starttls)"
}

// --- Validators ---

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateAccount(s string) error {
	s = strings.TrimSpace(s)
	if s != "" && !strings.Contains(s, "@") {
		return fmt.Errorf("account must be an email address")
	}
	return nil
}

func validatePort(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("port must be a number")
	}
	if n <= 0 || n > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	return nil
}

func validatePositive(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return fmt.Errorf("must be a positive number")
	}
	return nil
}
