package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"ProofFlow-Chain/internal/proof"
	"ProofFlow-Chain/internal/store"
	"ProofFlow-Chain/pkg/logger"
)

func seed(t *testing.T, st *store.ProofStore, id string, createdAt int64, requester string) *proof.Proof {
	t.Helper()
	ex := proof.ExtractAt("[STEP 1] a [STEP 2] b [FINAL] c", time.UnixMilli(createdAt))
	p, err := proof.New(id, "q", ex.Steps, requester, time.UnixMilli(createdAt))
	if err != nil {
		t.Fatalf("new proof: %v", err)
	}
	if err := st.Put(context.Background(), p); err != nil {
		t.Fatalf("put: %v", err)
	}
	return p
}

func TestListRecentReturnsNewestFirst(t *testing.T) {
	st := store.New(store.WithLogger(logger.Discard()))
	for i := int64(1); i <= 5; i++ {
		seed(t, st, string(rune('a'+i)), i, "")
	}
	svc := NewService(st)

	list, err := svc.ListRecent(context.Background(), 3, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].CreatedAt != 5 || list[1].CreatedAt != 4 || list[2].CreatedAt != 3 {
		t.Fatalf("unexpected order %v", list)
	}
}

func TestListRecentByRequesterAndStatus(t *testing.T) {
	st := store.New(store.WithLogger(logger.Discard()))
	seed(t, st, "p1", 1, "0xAbC")
	seed(t, st, "p2", 2, "0xdef")
	p3 := seed(t, st, "p3", 3, "0xabc")
	if _, err := st.Update(context.Background(), p3.ProofID, func(p *proof.Proof) error {
		return p.Confirm("ch", proof.RootHash(p.Steps), []uint64{1, 2, 3})
	}); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	svc := NewService(st)

	list, _ := svc.ListRecent(context.Background(), 0, "0xABC")
	if len(list) != 2 || list[0].ProofID != "p3" || list[1].ProofID != "p1" {
		t.Fatalf("unexpected requester filter result %v", list)
	}
	list, _ = svc.ListRecent(context.Background(), 0, "", proof.StatusPublishing)
	if len(list) != 2 {
		t.Fatalf("expected two publishing proofs, got %d", len(list))
	}
	if stats := svc.Stats(context.Background()); stats.Total != 3 || stats.Confirmed != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	svc := NewService(store.New(store.WithLogger(logger.Discard())))
	if _, err := svc.GetByID(context.Background(), "missing"); !errors.Is(err, proof.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.Verify(context.Background(), "missing"); !errors.Is(err, proof.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestVerifyConfirmedProof(t *testing.T) {
	st := store.New(store.WithLogger(logger.Discard()))
	p := seed(t, st, "p1", 1, "")
	if _, err := st.Update(context.Background(), p.ProofID, func(p *proof.Proof) error {
		return p.Confirm("ch", proof.RootHash(p.Steps), []uint64{7, 8, 9})
	}); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	report, err := NewService(st).Verify(context.Background(), "p1")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !report.Valid || !report.RootHashMatch || !report.SequenceNumbersMatch || len(report.Steps) != 3 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestBuildReportDetectsTampering(t *testing.T) {
	ex := proof.ExtractAt("[STEP 1] a [FINAL] b", time.UnixMilli(1))
	p, err := proof.New("p", "q", ex.Steps, "", time.UnixMilli(1))
	if err != nil {
		t.Fatalf("new proof: %v", err)
	}
	if err := p.Confirm("ch", proof.RootHash(p.Steps), []uint64{1, 2}); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	p.Steps[0].Content = "tampered"

	report := BuildReport(p)
	if report.Valid || report.StepsMatch || report.Steps[0].Match || !report.Steps[1].Match {
		t.Fatalf("tampering not detected: %+v", report)
	}
}

func TestBuildReportPublishingProof(t *testing.T) {
	ex := proof.ExtractAt("plain", time.UnixMilli(1))
	p, _ := proof.New("p", "q", ex.Steps, "", time.UnixMilli(1))

	report := BuildReport(p)
	if !report.Valid || report.Anchored || report.RootHashMatch {
		t.Fatalf("unexpected report for publishing proof %+v", report)
	}
}
