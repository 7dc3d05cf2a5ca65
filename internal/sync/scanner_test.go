package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nhle/certledger/internal/mailbox"
	"github.com/nhle/certledger/internal/scan"
)

// gatedRunner blocks each scan until release is closed.
type gatedRunner struct {
	started chan struct{}
	release chan struct{}
	result  scan.Result
	err     error
}

func newGatedRunner() *gatedRunner {
	return &gatedRunner{
		started: make(chan struct{}, 4),
		release: make(chan struct{}),
	}
}

func (r *gatedRunner) RunScan(ctx context.Context) (scan.Result, error) {
	r.started <- struct{}{}
	select {
	case <-r.release:
	case <-ctx.Done():
		return scan.Result{}, ctx.Err()
	}
	return r.result, r.err
}

type funcRunner func(ctx context.Context) (scan.Result, error)

func (f funcRunner) RunScan(ctx context.Context) (scan.Result, error) { return f(ctx) }

func TestTrigger_RefusesWhileRunning(t *testing.T) {
	t.Parallel()

	r := newGatedRunner()
	r.result = scan.Result{ScanID: "s1", Processed: 2, Matched: 1, Watermark: 9}
	s := New(r, time.Hour, zaptest.NewLogger(t))

	require.NoError(t, s.Trigger())
	<-r.started
	assert.True(t, s.Scanning())
	assert.ErrorIs(t, s.Trigger(), ErrScanRunning)

	_, err := s.ScanNow(context.Background())
	assert.ErrorIs(t, err, ErrScanRunning)

	close(r.release)
	msg, ok := s.WaitForNextResult()().(ScanResultMsg)
	require.True(t, ok)
	assert.True(t, msg.Manual)
	assert.NoError(t, msg.Error)
	assert.Equal(t, 1, msg.Result.Matched)

	assert.False(t, s.Scanning())
	st := s.Status()
	assert.Equal(t, ScanIdle, st.State)
	assert.Equal(t, uint32(9), st.Last.Watermark)
	assert.False(t, st.LastScan.IsZero())

	// The slot is free again.
	require.NoError(t, s.Trigger())
	<-r.started
	_ = s.WaitForNextResult()()
}

func TestScanNow_RecordsFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("list failed")
	s := New(funcRunner(func(context.Context) (scan.Result, error) {
		return scan.Result{ScanID: "s2", Processed: 1, Watermark: 3}, boom
	}), 0, nil)

	res, err := s.ScanNow(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, uint32(3), res.Watermark)

	st := s.Status()
	assert.Equal(t, ScanError, st.State)
	assert.ErrorIs(t, st.Error, boom)
	assert.Equal(t, defaultInterval, s.interval)
}

func TestTrigger_ReportsAuthError(t *testing.T) {
	t.Parallel()

	s := New(funcRunner(func(context.Context) (scan.Result, error) {
		return scan.Result{}, &scan.Failure{
			Stage: scan.StageConnect,
			Err:   &mailbox.AuthError{Protocol: "imap", Account: "registry@example.com", Message: "bad password"},
		}
	}), time.Hour, zaptest.NewLogger(t))

	require.NoError(t, s.Trigger())
	msg := s.WaitForNextResult()().(ScanResultMsg)
	require.NotNil(t, msg.AuthError)
	assert.Equal(t, "imap", msg.AuthError.Protocol)
	assert.Contains(t, msg.AuthError.Message, "registry@example.com")
}

func TestStart_PollsOnInterval(t *testing.T) {
	t.Parallel()

	calls := make(chan struct{}, 8)
	s := New(funcRunner(func(context.Context) (scan.Result, error) {
		select {
		case calls <- struct{}{}:
		default:
		}
		return scan.Result{}, nil
	}), 10*time.Millisecond, zaptest.NewLogger(t))

	wait := s.Start()
	require.NotNil(t, wait)
	assert.Nil(t, s.Start())
	t.Cleanup(s.Stop)

	msg := wait().(ScanResultMsg)
	assert.False(t, msg.Manual)

	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatal("poller never ran a scan")
	}
}
