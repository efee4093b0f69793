package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/channelport/courier/deadletter"
	"github.com/channelport/courier/ledger"
	queuemem "github.com/channelport/courier/queue/memory"
	"github.com/channelport/courier/remote"
	"github.com/channelport/courier/status"
	storemem "github.com/channelport/courier/store/memory"
	"github.com/channelport/courier/task"
)

type fakeReporter struct {
	mu      sync.Mutex
	reports []*status.Report
	err     error
}

func (f *fakeReporter) Report(_ context.Context, r *status.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.reports = append(f.reports, r)
	return nil
}

func (f *fakeReporter) all() []*status.Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*status.Report(nil), f.reports...)
}

func TestRunnerSuccessReportsOnce(t *testing.T) {
	reg := NewRegistry()
	reg.Register(task.KindSourcing, func(context.Context, *task.Task) error { return nil })
	rep := &fakeReporter{}
	r := NewRunner(reg, rep, WithRunnerLogger(quietLogger()))

	tk := task.New(7, task.KindSourcing, nil)
	r.Run(context.Background(), tk)

	reports := rep.all()
	if len(reports) != 1 {
		t.Fatalf("reports = %d, want exactly 1", len(reports))
	}
	if reports[0].Outcome != status.OutcomeSuccess {
		t.Errorf("outcome = %s, want success", reports[0].Outcome)
	}
	if reports[0].TaskID != tk.ID || reports[0].TenantID != 7 {
		t.Errorf("report identity mismatch: %+v", reports[0])
	}
}

func TestRunnerClassification(t *testing.T) {
	tests := []struct {
		name    string
		bodyErr error
		want    status.Outcome
	}{
		{
			name:    "quota throttled is temporary",
			bodyErr: &ledger.QuotaError{Code: ledger.CodeThrottled, TenantID: 7, Tier: ledger.TierSourcing, RetryAfter: time.Minute},
			want:    status.OutcomeTemporary,
		},
		{
			name:    "quota exceeded is permanent",
			bodyErr: &ledger.QuotaError{Code: ledger.CodeExceeded, TenantID: 7, Tier: ledger.TierDaily},
			want:    status.OutcomePermanent,
		},
		{
			name:    "remote rejection is permanent",
			bodyErr: &remote.PermanentError{Reason: "listing rejected"},
			want:    status.OutcomePermanent,
		},
		{
			name:    "mapping rejection needs mapping",
			bodyErr: &remote.PermanentError{Reason: "unknown option", NeedsMapping: true},
			want:    status.OutcomeNeedsMapping,
		},
		{
			name:    "retries exhausted is permanent",
			bodyErr: fmt.Errorf("%w after 3 attempts: %w", remote.ErrRetriesExhausted, errors.New("timeout")),
			want:    status.OutcomePermanent,
		},
		{
			name:    "unclassified is temporary",
			bodyErr: errors.New("tx rollback"),
			want:    status.OutcomeTemporary,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry()
			reg.Register(task.KindRegister, func(context.Context, *task.Task) error { return tt.bodyErr })
			rep := &fakeReporter{}
			r := NewRunner(reg, rep, WithRunnerLogger(quietLogger()))

			r.Run(context.Background(), task.New(7, task.KindRegister, nil))

			reports := rep.all()
			if len(reports) != 1 {
				t.Fatalf("reports = %d, want exactly 1", len(reports))
			}
			if reports[0].Outcome != tt.want {
				t.Errorf("outcome = %s, want %s", reports[0].Outcome, tt.want)
			}
			if reports[0].Error == "" {
				t.Error("report missing error message")
			}
		})
	}
}

func TestRunnerDeadLettersPermanentFailure(t *testing.T) {
	st := storemem.New()
	q := queuemem.New()
	dl := deadletter.NewService(st, q, func(k task.Kind) string { return string(k) })

	reg := NewRegistry()
	reg.Register(task.KindRegister, func(context.Context, *task.Task) error {
		return &remote.PermanentError{Reason: "unknown option", NeedsMapping: true}
	})
	rep := &fakeReporter{}
	r := NewRunner(reg, rep, WithRunnerLogger(quietLogger()), WithDeadLetters(dl))

	tk := task.New(7, task.KindRegister, map[string]any{"sku": "x"})
	r.Run(context.Background(), tk)

	entries, err := st.ListDeadLetters(context.Background(), deadletter.ListOpts{TenantID: 7})
	if err != nil {
		t.Fatalf("ListDeadLetters: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("dead letters = %d, want 1", len(entries))
	}
	if !entries[0].NeedsMapping {
		t.Error("NeedsMapping not captured")
	}
	if entries[0].TaskID != tk.ID {
		t.Error("dead letter task identity mismatch")
	}
}

func TestRunnerNoDeadLetterForTemporary(t *testing.T) {
	st := storemem.New()
	q := queuemem.New()
	dl := deadletter.NewService(st, q, func(k task.Kind) string { return string(k) })

	reg := NewRegistry()
	reg.Register(task.KindSourcing, func(context.Context, *task.Task) error {
		return errors.New("connection reset")
	})
	rep := &fakeReporter{}
	r := NewRunner(reg, rep, WithRunnerLogger(quietLogger()), WithDeadLetters(dl))

	r.Run(context.Background(), task.New(7, task.KindSourcing, nil))

	entries, err := st.ListDeadLetters(context.Background(), deadletter.ListOpts{})
	if err != nil {
		t.Fatalf("ListDeadLetters: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("dead letters = %d, want 0 for temporary failure", len(entries))
	}
}

func TestRunnerUnknownKind(t *testing.T) {
	rep := &fakeReporter{}
	r := NewRunner(NewRegistry(), rep, WithRunnerLogger(quietLogger()))

	r.Run(context.Background(), task.New(7, task.KindRemoval, nil))

	reports := rep.all()
	if len(reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(reports))
	}
	if reports[0].Outcome != status.OutcomePermanent {
		t.Errorf("outcome = %s, want permanent for unregistered kind", reports[0].Outcome)
	}
}

func TestRunnerReporterFailureNotFatal(t *testing.T) {
	reg := NewRegistry()
	reg.Register(task.KindSourcing, func(context.Context, *task.Task) error { return nil })
	rep := &fakeReporter{err: errors.New("reports table down")}
	r := NewRunner(reg, rep, WithRunnerLogger(quietLogger()))

	// Must not panic or propagate.
	r.Run(context.Background(), task.New(7, task.KindSourcing, nil))
}
