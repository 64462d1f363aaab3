package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	xerrors "ProofFlow-Chain/internal/errors"
)

type failingNotifier struct{}

func (failingNotifier) Channel() Channel { return "broken" }
func (failingNotifier) Notify(context.Context, Event) error { return errors.New("down") }

func TestFanoutCollectsErrors(t *testing.T) {
	var buf bytes.Buffer
	logNotifier := &LogNotifier{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}
	d := NewFanout(logNotifier, failingNotifier{}, nil)

	err := d.Notify(context.Background(), Event{
		Code:     "ANCHOR_FAILURE",
		Severity: xerrors.SeverityCritical,
		ProofID:  "p-1",
		Stage:    "anchor",
		Metadata: map[string]string{"step": "2"},
	})
	if err == nil || !strings.Contains(err.Error(), "channel broken") {
		t.Fatalf("expected joined error, got %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"proof_id":"p-1"`) || !strings.Contains(out, `"meta_step":"2"`) || !strings.Contains(out, `"level":"ERROR"`) {
		t.Fatalf("unexpected log output %s", out)
	}
}

func TestWebhookNotifierPostsJSON(t *testing.T) {
	var got Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			http.Error(w, "bad content type", http.StatusBadRequest)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := &WebhookNotifier{URL: srv.URL, Client: srv.Client()}
	event := Event{Code: "ISSUANCE_FAILURE", ProofID: "p-2", Stage: "issue", OccurredAt: time.Unix(10, 0).UTC()}
	if err := n.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got.ProofID != "p-2" || got.Code != "ISSUANCE_FAILURE" {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestWebhookNotifierReportsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := &WebhookNotifier{URL: srv.URL}
	if err := n.Notify(context.Background(), Event{}); err == nil {
		t.Fatalf("expected error for 500 response")
	}
	if err := (&WebhookNotifier{}).Notify(context.Background(), Event{}); err != nil {
		t.Fatalf("unconfigured webhook should be skipped, got %v", err)
	}
}
