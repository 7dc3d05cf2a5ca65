// Package sync runs mailbox scans in the background for the terminal UI.
package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/certledger/internal/mailbox"
	"github.com/nhle/certledger/internal/scan"
)

// ErrScanRunning is returned when a scan is triggered while another one
// is still in flight.
var ErrScanRunning = errors.New("scan already running")

// ScanState represents the current state of the scanner.
type ScanState int

const (
	ScanIdle ScanState = iota
	ScanRunning
	ScanError
)

// Status holds the outcome of the most recent scan.
type Status struct {
	State    ScanState
	LastScan time.Time
	Last     scan.Result
	Error    error
}

// ScanResultMsg is a tea.Msg sent when a scan completes.
type ScanResultMsg struct {
	Result    scan.Result
	Error     error
	AuthError *AuthErrorMsg
	Manual    bool
}

// AuthErrorMsg is a tea.Msg sent when the mail server rejects the account.
type AuthErrorMsg struct {
	Protocol string
	Message  string
}

// Runner performs one scan.
type Runner interface {
	RunScan(ctx context.Context) (scan.Result, error)
}

// scanTimeout is the maximum time allowed for a single scan.
const scanTimeout = 5 * time.Minute

// defaultInterval applies when the configured poll interval is not positive.
const defaultInterval = 300 * time.Second

// Scanner serializes scans: at most one runs at a time, whether started
// by the poll ticker or by the user.
type Scanner struct {
	runner   Runner
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time

	resultCh chan ScanResultMsg
	stopCh   chan struct{}

	mu       gosync.Mutex
	status   Status
	scanning bool
	running  bool
}

// New creates a Scanner that polls every interval once started.
func New(r Runner, interval time.Duration, logger *zap.Logger) *Scanner {
	if interval <= 0 {
		interval = defaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		runner:   r,
		interval: interval,
		logger:   logger,
		now:      time.Now,
		resultCh: make(chan ScanResultMsg, 16),
		stopCh:   make(chan struct{}),
	}
}

// Start launches the polling goroutine and returns a tea.Cmd that
// delivers the next ScanResultMsg.
func (s *Scanner) Start() tea.Cmd {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	go s.poll()

	return s.waitForResult()
}

// Stop halts the polling goroutine. A scan in flight runs to completion.
func (s *Scanner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	close(s.stopCh)
	s.running = false
}

// Trigger starts a scan in the background. It returns ErrScanRunning when
// a scan is already in flight; the result arrives as a ScanResultMsg.
func (s *Scanner) Trigger() error {
	if !s.begin() {
		return ErrScanRunning
	}
	go s.run(true)
	return nil
}

// ScanNow runs a scan on the calling goroutine.
func (s *Scanner) ScanNow(ctx context.Context) (scan.Result, error) {
	if !s.begin() {
		return scan.Result{}, ErrScanRunning
	}
	res, err := s.runner.RunScan(ctx)
	s.finish(res, err)
	return res, err
}

// Scanning reports whether a scan is in flight.
func (s *Scanner) Scanning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanning
}

// Status returns the state of the scanner and the last result.
func (s *Scanner) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// WaitForNextResult returns a tea.Cmd that waits for the next scan result.
// Call it after handling each ScanResultMsg to keep listening.
func (s *Scanner) WaitForNextResult() tea.Cmd {
	return s.waitForResult()
}

func (s *Scanner) poll() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if !s.begin() {
				s.logger.Debug("poll skipped, scan in flight")
				continue
			}
			s.run(false)
		}
	}
}

// begin claims the scan slot.
func (s *Scanner) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scanning {
		return false
	}
	s.scanning = true
	s.status.State = ScanRunning
	return true
}

func (s *Scanner) finish(res scan.Result, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scanning = false
	s.status.Last = res
	s.status.Error = err
	s.status.LastScan = s.now()
	if err != nil {
		s.status.State = ScanError
	} else {
		s.status.State = ScanIdle
	}
}

func (s *Scanner) run(manual bool) {
	ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	defer cancel()

	res, err := s.runner.RunScan(ctx)
	s.finish(res, err)

	msg := ScanResultMsg{Result: res, Error: err, Manual: manual}
	if err != nil {
		s.logger.Warn("scan failed", zap.String("scan_id", res.ScanID), zap.Error(err))

		var authErr *mailbox.AuthError
		if errors.As(err, &authErr) {
			msg.AuthError = &AuthErrorMsg{
				Protocol: authErr.Protocol,
				Message: fmt.Sprintf(
					"%s: login rejected for %s. Run set-password to update it.",
					authErr.Protocol, authErr.Account,
				),
			}
		}
	}
	s.sendResult(msg)
}

// sendResult sends a ScanResultMsg on the result channel without blocking.
func (s *Scanner) sendResult(msg ScanResultMsg) {
	select {
	case s.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the scanner
	}
}

func (s *Scanner) waitForResult() tea.Cmd {
	return func() tea.Msg {
		return <-s.resultCh
	}
}
