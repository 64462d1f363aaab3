package consensus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	xerrors "ProofFlow-Chain/internal/errors"
	"ProofFlow-Chain/internal/proof"
)

func testSteps(t *testing.T) []proof.Step {
	t.Helper()
	ex := proof.ExtractAt("[STEP 1] check price [STEP 2] check volume [FINAL] bullish", time.UnixMilli(1000))
	return ex.Steps
}

func fixedClock() func() time.Time {
	return func() time.Time { return time.UnixMilli(42_000) }
}

func TestPublishSubmitsStepsInOrderThenCompletion(t *testing.T) {
	log := NewMemoryLog("0.0.1234")
	pub := NewPublisher(log, WithClock(fixedClock()))
	steps := testSteps(t)

	res, err := pub.Publish(context.Background(), "p-1", steps)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if res.ChannelID != "0.0.1234" {
		t.Fatalf("unexpected channel %s", res.ChannelID)
	}
	if len(res.SequenceNumbers) != 3 || res.SequenceNumbers[0] != 1 || res.SequenceNumbers[2] != 3 {
		t.Fatalf("unexpected sequence numbers %v", res.SequenceNumbers)
	}
	if res.CompletionSequence != 4 {
		t.Fatalf("unexpected completion sequence %d", res.CompletionSequence)
	}
	if res.RootHash != proof.RootHash(steps) {
		t.Fatalf("root hash mismatch")
	}

	records := log.Records()
	if len(records) != 4 {
		t.Fatalf("expected 4 records, got %d", len(records))
	}
	for i, raw := range records[:3] {
		var rec StepRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			t.Fatalf("decode step record: %v", err)
		}
		if rec.Type != RecordReasoningStep || rec.ProofID != "p-1" || rec.StepNumber != i+1 {
			t.Fatalf("unexpected step record %+v", rec)
		}
		if rec.Hash != steps[i].Hash || rec.Label != steps[i].Label || rec.Timestamp != 1000 || rec.Timestamp != steps[i].Timestamp {
			t.Fatalf("step record does not match step %d: %+v", i+1, rec)
		}
	}
	var done CompleteRecord
	if err := json.Unmarshal(records[3], &done); err != nil {
		t.Fatalf("decode completion: %v", err)
	}
	if done.Type != RecordProofComplete || done.TotalSteps != 3 || done.RootHash != res.RootHash || done.Timestamp != 42_000 {
		t.Fatalf("unexpected completion record %+v", done)
	}
}

func TestPublishAbortsOnFirstFailure(t *testing.T) {
	log := NewMemoryLog("")
	log.FailAfter(1, errors.New("INVALID_TOPIC_ID"))
	pub := NewPublisher(log)

	_, err := pub.Publish(context.Background(), "p-2", testSteps(t))
	if !errors.Is(err, ErrAnchorFailure) {
		t.Fatalf("expected anchor failure, got %v", err)
	}
	if e, ok := xerrors.From(err); !ok || e.Metadata()["step"] != "2" {
		t.Fatalf("expected failure at step 2, got %v", err)
	}
	if n := len(log.Records()); n != 1 {
		t.Fatalf("remaining steps must not be submitted, got %d records", n)
	}
}

func TestPublishCompletionFailureIsAnchorFailure(t *testing.T) {
	log := NewMemoryLog("")
	log.FailAfter(3, errors.New("busy"))
	pub := NewPublisher(log)

	_, err := pub.Publish(context.Background(), "p-3", testSteps(t))
	if !errors.Is(err, ErrAnchorFailure) {
		t.Fatalf("expected anchor failure, got %v", err)
	}
	if e, _ := xerrors.From(err); e.Metadata()["stage"] != "complete" {
		t.Fatalf("expected completion stage, got %v", e.Metadata())
	}
}

func TestChannelFailureIsNotCached(t *testing.T) {
	log := NewMemoryLog("chan")
	log.FailChannel(errors.New("network down"))
	pub := NewPublisher(log)

	if _, err := pub.Publish(context.Background(), "p-4", testSteps(t)); !errors.Is(err, ErrAnchorFailure) {
		t.Fatalf("expected anchor failure, got %v", err)
	}
	log.FailChannel(nil)
	if _, err := pub.Publish(context.Background(), "p-4", testSteps(t)); err != nil {
		t.Fatalf("publish after recovery: %v", err)
	}
	if _, err := pub.Publish(context.Background(), "p-5", testSteps(t)); err != nil {
		t.Fatalf("second publish: %v", err)
	}
	if calls := log.ChannelCalls(); calls != 2 {
		t.Fatalf("channel should be cached after success, got %d calls", calls)
	}
}

type slowChannelLog struct {
	calls atomic.Int32
}

func (s *slowChannelLog) Channel(context.Context) (string, error) {
	s.calls.Add(1)
	time.Sleep(20 * time.Millisecond)
	return "shared", nil
}

func (s *slowChannelLog) Submit(context.Context, string, []byte) (uint64, error) {
	return 1, nil
}

func TestChannelIDSharedAcrossConcurrentCallers(t *testing.T) {
	log := &slowChannelLog{}
	pub := NewPublisher(log)

	var wg sync.WaitGroup
	ids := make([]string, 8)
	errs := make([]error, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = pub.ChannelID(context.Background())
		}(i)
	}
	wg.Wait()

	for i := range ids {
		if errs[i] != nil || ids[i] != "shared" {
			t.Fatalf("caller %d got %q, %v", i, ids[i], errs[i])
		}
	}
	if calls := log.calls.Load(); calls != 1 {
		t.Fatalf("expected a single channel request, got %d", calls)
	}
}

func TestPublishRejectsEmptySteps(t *testing.T) {
	pub := NewPublisher(NewMemoryLog(""))
	if _, err := pub.Publish(context.Background(), "p-6", nil); !errors.Is(err, ErrAnchorFailure) {
		t.Fatalf("expected anchor failure, got %v", err)
	}
}
