package credential

import (
	"context"
	"errors"
	"testing"
	"time"

	xerrors "ProofFlow-Chain/internal/errors"
)

type recordedSleep struct {
	delays []time.Duration
	err    error
}

func (r *recordedSleep) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return r.err
}

func TestIssueRetriesWithExponentialBackoff(t *testing.T) {
	ledger := NewMemoryLedger()
	ledger.FailNext(errors.New("BUSY"), errors.New("BUSY"), errors.New("BUSY"))
	sleeper := &recordedSleep{}
	issuer := NewIssuer(ledger, Config{}, WithSleep(sleeper.sleep))

	receipt, err := issuer.Issue(context.Background(), "p-1", "0.0.1001")
	if !errors.Is(err, ErrIssuanceFailure) {
		t.Fatalf("expected issuance failure, got %v", err)
	}
	if receipt.TransactionRef != "" {
		t.Fatalf("failed issuance must not return a receipt: %+v", receipt)
	}
	if ledger.Calls() != 3 {
		t.Fatalf("expected 3 attempts, got %d", ledger.Calls())
	}
	if len(sleeper.delays) != 2 || sleeper.delays[0] != 2*time.Second || sleeper.delays[1] != 4*time.Second {
		t.Fatalf("unexpected delays %v", sleeper.delays)
	}
	if e, _ := xerrors.From(err); e.Metadata()["attempts"] != "3" {
		t.Fatalf("unexpected metadata %v", e.Metadata())
	}
}

func TestIssueSucceedsAfterTransientFailure(t *testing.T) {
	ledger := NewMemoryLedger()
	ledger.FailNext(errors.New("timeout"))
	sleeper := &recordedSleep{}
	issuer := NewIssuer(ledger, Config{
		BaseDelay:           10 * time.Millisecond,
		ExplorerURLTemplate: "https://hashscan.io/testnet/transaction/{tx}",
	}, WithSleep(sleeper.sleep))

	receipt, err := issuer.Issue(context.Background(), "p-2", "0xAbC")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if receipt.TransactionRef == "" || receipt.ExplorerURL != "https://hashscan.io/testnet/transaction/"+receipt.TransactionRef {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	if len(sleeper.delays) != 1 || sleeper.delays[0] != 10*time.Millisecond {
		t.Fatalf("unexpected delays %v", sleeper.delays)
	}
	if mints := ledger.Mints(); len(mints) != 1 || mints[0].Amount != DefaultAmount {
		t.Fatalf("unexpected mints %+v", mints)
	}
}

func TestIssueStopsOnNonRetryableError(t *testing.T) {
	ledger := NewMemoryLedger()
	ledger.FailNext(xerrors.New(xerrors.CodeInvalidArgument, "bad address"))
	sleeper := &recordedSleep{}
	issuer := NewIssuer(ledger, Config{}, WithSleep(sleeper.sleep))

	if _, err := issuer.Issue(context.Background(), "p-3", "nope"); !errors.Is(err, ErrIssuanceFailure) {
		t.Fatalf("expected issuance failure, got %v", err)
	}
	if ledger.Calls() != 1 || len(sleeper.delays) != 0 {
		t.Fatalf("non-retryable errors must not be retried: calls=%d delays=%v", ledger.Calls(), sleeper.delays)
	}
}

func TestIssueStopsWhenContextCancelledDuringBackoff(t *testing.T) {
	ledger := NewMemoryLedger()
	ledger.FailNext(errors.New("BUSY"))
	issuer := NewIssuer(ledger, Config{BaseDelay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := issuer.Issue(ctx, "p-4", "0.0.1")
	if !errors.Is(err, ErrIssuanceFailure) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancelled issuance failure, got %v", err)
	}
	if ledger.Calls() != 1 {
		t.Fatalf("expected a single attempt, got %d", ledger.Calls())
	}
}

func TestIssueRequiresIdentity(t *testing.T) {
	issuer := NewIssuer(NewMemoryLedger(), Config{})
	if _, err := issuer.Issue(context.Background(), "p-5", "  "); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestBackoffAndExplorerURL(t *testing.T) {
	issuer := NewIssuer(NewMemoryLedger(), Config{BaseDelay: time.Second, ExplorerURLTemplate: "https://scan.example/tx/"})
	cases := map[int]time.Duration{1: 0, 2: time.Second, 3: 2 * time.Second, 4: 4 * time.Second}
	for attempt, want := range cases {
		if got := issuer.Backoff(attempt); got != want {
			t.Fatalf("attempt %d: want %v got %v", attempt, want, got)
		}
	}
	if got := issuer.ExplorerURL("0xabc"); got != "https://scan.example/tx/0xabc" {
		t.Fatalf("unexpected explorer url %s", got)
	}
	if got := NewIssuer(NewMemoryLedger(), Config{}).ExplorerURL("0xabc"); got != "" {
		t.Fatalf("expected empty explorer url, got %s", got)
	}
}
