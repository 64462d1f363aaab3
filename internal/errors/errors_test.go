package errors

import (
	stdErrors "errors"
	"fmt"
	"log/slog"
	"testing"
)

func TestWrapKeepsCodeAcrossLayers(t *testing.T) {
	cause := stdErrors.New("dial tcp: refused")
	err := fmt.Errorf("outer: %w", Wrap(CodeStorageFailure, cause, "写入失败"))

	if got := CodeOf(err); got != CodeStorageFailure {
		t.Fatalf("expected %s, got %s", CodeStorageFailure, got)
	}
	if !stdErrors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable through errors.Is")
	}
	if !stdErrors.Is(err, New(CodeStorageFailure, "")) {
		t.Fatalf("expected errors.Is to match by code")
	}
	if !RetryableError(err) {
		t.Fatalf("storage failures should default to retryable")
	}
	if !HasCode(err, CodeStorageFailure) {
		t.Fatalf("HasCode should report the wrapped code")
	}
}

func TestOptionsOverrideRegistryDefaults(t *testing.T) {
	err := New(CodeTimeout, "", WithRetryable(false), WithAlert(false), WithSeverity(SeverityCritical), WithMetadata("proof_id", "p-1"))
	if err.Message() != "operation timed out" {
		t.Fatalf("expected registry message, got %q", err.Message())
	}
	if err.Retryable() || err.ShouldAlert() {
		t.Fatalf("options should override registry attributes")
	}
	if err.Severity() != SeverityCritical {
		t.Fatalf("unexpected severity %s", err.Severity())
	}
	if err.Metadata()["proof_id"] != "p-1" {
		t.Fatalf("metadata missing: %+v", err.Metadata())
	}
}

func TestRegisterExtendsRegistry(t *testing.T) {
	const code Code = "TEST_REGISTERED"
	Register(code, Attributes{Message: "registered", Severity: SeverityWarning, Retryable: true})
	if AttributesOf(code).Message != "registered" {
		t.Fatalf("registered attributes not returned")
	}
	found := false
	for _, c := range Registered() {
		if c == code {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %s in registered codes", code)
	}
	if AttributesOf("NEVER_REGISTERED").Message != AttributesOf(CodeUnknown).Message {
		t.Fatalf("unknown codes should fall back to UNKNOWN attributes")
	}
}

func TestMetadataOfMergesChain(t *testing.T) {
	inner := Wrap(CodeStorageFailure, stdErrors.New("disk full"), "写入失败", WithMetadata("proof_id", "inner"), WithMetadata("path", "/data"))
	outer := Wrap(CodeTimeout, fmt.Errorf("persist: %w", inner), "", WithMetadata("proof_id", "outer"))

	meta := MetadataOf(outer)
	if meta["proof_id"] != "outer" || meta["path"] != "/data" {
		t.Fatalf("unexpected merged metadata %+v", meta)
	}
	if len(MetadataOf(stdErrors.New("plain"))) != 0 {
		t.Fatalf("plain errors carry no metadata")
	}
}

func TestLogValueGroupsCodeAndMetadata(t *testing.T) {
	v := New(CodeNotFound, "missing", WithMetadata("proof_id", "p-9")).LogValue()
	if v.Kind() != slog.KindGroup {
		t.Fatalf("expected group value, got %s", v.Kind())
	}
	got := map[string]string{}
	for _, attr := range v.Group() {
		got[attr.Key] = attr.Value.String()
	}
	if got["code"] != string(CodeNotFound) || got["proof_id"] != "p-9" {
		t.Fatalf("unexpected log value %+v", got)
	}
}
