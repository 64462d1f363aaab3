package proof

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestExtractWellFormedMarkers(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	result := ExtractAt("[STEP 1] check price [STEP 2] check volume [FINAL] bullish", now)

	if result.Degraded() {
		t.Fatalf("well formed input should not be degraded: %+v", result.Reasons())
	}
	if len(result.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(result.Steps))
	}
	want := []struct {
		label   string
		content string
	}{
		{"STEP 1", "check price"},
		{"STEP 2", "check volume"},
		{"FINAL", "bullish"},
	}
	for i, step := range result.Steps {
		if step.StepNumber != i+1 {
			t.Fatalf("step %d has number %d", i, step.StepNumber)
		}
		if step.Label != want[i].label || step.Content != want[i].content {
			t.Fatalf("step %d = %+v, want %+v", i, step, want[i])
		}
		if step.Timestamp != now.UnixMilli() {
			t.Fatalf("unexpected timestamp %d", step.Timestamp)
		}
	}
}

func TestExtractRenumbersByPosition(t *testing.T) {
	result := Extract("[step 7] a\n[ STEP  3 ] b\n[final]c")
	for i, step := range result.Steps {
		if step.StepNumber != i+1 {
			t.Fatalf("expected positional numbering, got %+v", result.Steps)
		}
	}
	if result.Steps[1].Label != "STEP 2" || result.Steps[1].Content != "b" {
		t.Fatalf("unexpected second step: %+v", result.Steps[1])
	}
	if result.Steps[2].Label != LabelFinal || result.Steps[2].Content != "c" {
		t.Fatalf("unexpected final step: %+v", result.Steps[2])
	}
}

func TestExtractFallbackWithoutMarkers(t *testing.T) {
	result := Extract("  just a plain answer \n")
	if !result.Fallback || !result.Degraded() {
		t.Fatalf("expected fallback extraction")
	}
	if len(result.Steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(result.Steps))
	}
	step := result.Steps[0]
	if step.StepNumber != 1 || step.Label != LabelFinal || step.Content != "just a plain answer" {
		t.Fatalf("unexpected fallback step: %+v", step)
	}
	if step.Hash != HashContent("just a plain answer") {
		t.Fatalf("fallback hash must cover trimmed content")
	}
}

func TestExtractKeepsEmptySteps(t *testing.T) {
	result := Extract("[STEP 1][STEP 2] second [FINAL] done")
	if len(result.Steps) != 3 {
		t.Fatalf("empty step must not be discarded: %+v", result.Steps)
	}
	if result.Steps[0].Content != "" {
		t.Fatalf("expected empty content, got %q", result.Steps[0].Content)
	}
	if len(result.EmptySteps) != 1 || result.EmptySteps[0] != 1 {
		t.Fatalf("empty step not flagged: %+v", result.EmptySteps)
	}
	if !strings.Contains(strings.Join(result.Reasons(), ","), "empty_content") {
		t.Fatalf("missing empty_content reason: %v", result.Reasons())
	}
}

func TestExtractEnforcesSingleTrailingFinal(t *testing.T) {
	missing := Extract("[STEP 1] a [STEP 2] b")
	if !missing.Relabelled {
		t.Fatalf("missing FINAL should be flagged")
	}
	if missing.Steps[1].Label != LabelFinal {
		t.Fatalf("last step should become FINAL: %+v", missing.Steps)
	}

	duplicated := Extract("[FINAL] early [STEP 2] b [FINAL] late")
	if !duplicated.Relabelled {
		t.Fatalf("duplicate FINAL should be flagged")
	}
	finals := 0
	for _, step := range duplicated.Steps {
		if step.Label == LabelFinal {
			finals++
		}
	}
	if finals != 1 || duplicated.Steps[2].Label != LabelFinal || duplicated.Steps[0].Label != "STEP 1" {
		t.Fatalf("unexpected labels: %+v", duplicated.Steps)
	}
}

func TestExtractPropertyStepCount(t *testing.T) {
	for n := 1; n <= 12; n++ {
		var builder strings.Builder
		for i := 1; i < n; i++ {
			builder.WriteString(fmt.Sprintf("[STEP %d] content %d\n", i, i))
		}
		builder.WriteString("[FINAL] answer")

		result := Extract(builder.String())
		if len(result.Steps) != n {
			t.Fatalf("n=%d: got %d steps", n, len(result.Steps))
		}
		if err := ValidateSteps(result.Steps); err != nil {
			t.Fatalf("n=%d: extracted steps invalid: %v", n, err)
		}
	}
}

func TestHashContentMatchesSHA256(t *testing.T) {
	sum := sha256.Sum256([]byte("check price"))
	if HashContent("check price") != hex.EncodeToString(sum[:]) {
		t.Fatalf("hash mismatch")
	}
}

func TestRootHashIsFlatHashOfHashes(t *testing.T) {
	steps := Extract("[STEP 1] a [STEP 2] b [FINAL] c").Steps
	concatenated := steps[0].Hash + steps[1].Hash + steps[2].Hash
	if RootHash(steps) != HashContent(concatenated) {
		t.Fatalf("root hash must be sha256 over concatenated hex digests")
	}
}
