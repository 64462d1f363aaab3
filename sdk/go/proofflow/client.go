// Package proofflow is a small Go client for the ProofFlow REST API.
package proofflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client. Reasoning calls wait on a language model, so it is
// longer than a typical API timeout.
const DefaultHTTPTimeout = 120 * time.Second

// Proof statuses reported by the API.
const (
	StatusPublishing = "PUBLISHING"
	StatusConfirmed  = "CONFIRMED"
	StatusVerified   = "VERIFIED"
)

// Client wraps the HTTP interactions with the ProofFlow REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// Step is one extracted reasoning step.
type Step struct {
	StepNumber int    `json:"stepNumber"`
	Label      string `json:"label"`
	Content    string `json:"content"`
	Hash       string `json:"hash"`
	Timestamp  int64  `json:"timestamp"`
}

// CredentialReceipt describes an issued reward credential.
type CredentialReceipt struct {
	TransactionRef string `json:"transactionRef"`
	ExplorerURL    string `json:"explorerUrl"`
}

// Proof mirrors the server side proof record.
type Proof struct {
	ProofID           string             `json:"proofId"`
	Question          string             `json:"question"`
	Steps             []Step             `json:"steps"`
	TotalSteps        int                `json:"totalSteps"`
	Status            string             `json:"status"`
	ConsensusLogID    string             `json:"consensusLogId"`
	RootHash          string             `json:"rootHash,omitempty"`
	SequenceNumbers   []uint64           `json:"sequenceNumbers"`
	RequesterIdentity string             `json:"requesterIdentity,omitempty"`
	CredentialReceipt *CredentialReceipt `json:"credentialReceipt,omitempty"`
	CreatedAt         int64              `json:"createdAt"`
}

// Anchored reports whether every step has been written to the consensus log.
func (p Proof) Anchored() bool {
	return p.Status == StatusConfirmed || p.Status == StatusVerified
}

// ReasonRequest is the payload of Reason.
type ReasonRequest struct {
	Question         string `json:"question"`
	RequesterAddress string `json:"requesterAddress,omitempty"`
}

// ReasonResult is a freshly registered proof plus the final answer.
type ReasonResult struct {
	Proof
	Answer string `json:"answer"`
}

// StepCheck is the recomputation result for one step.
type StepCheck struct {
	StepNumber   int    `json:"stepNumber"`
	Label        string `json:"label"`
	StoredHash   string `json:"storedHash"`
	ComputedHash string `json:"computedHash"`
	Match        bool   `json:"match"`
}

// VerificationReport is returned by Verify.
type VerificationReport struct {
	ProofID              string      `json:"proofId"`
	Status               string      `json:"status"`
	ConsensusLogID       string      `json:"consensusLogId"`
	Steps                []StepCheck `json:"steps"`
	StepsMatch           bool        `json:"stepsMatch"`
	StoredRootHash       string      `json:"storedRootHash,omitempty"`
	ComputedRootHash     string      `json:"computedRootHash"`
	RootHashMatch        bool        `json:"rootHashMatch"`
	Anchored             bool        `json:"anchored"`
	SequenceNumbersMatch bool        `json:"sequenceNumbersMatch"`
	Valid                bool        `json:"valid"`
}

// RedriveResult acknowledges an accepted redrive.
type RedriveResult struct {
	ProofID string `json:"proofId"`
	Status  string `json:"status"`
	Queued  bool   `json:"queued"`
}

// ListOptions filters ListProofs.
type ListOptions struct {
	Address string
	Limit   int
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("proofflow api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("proofflow api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the ProofFlow API. When httpClient is
// nil, a default client with DefaultHTTPTimeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// Reason submits a question. The returned proof is still PUBLISHING; anchoring
// happens in the background.
func (c *Client) Reason(ctx context.Context, req ReasonRequest) (ReasonResult, error) {
	var result ReasonResult
	if err := c.send(ctx, http.MethodPost, "/api/v1/reason", nil, req, &result); err != nil {
		return ReasonResult{}, err
	}
	return result, nil
}

// GetProof fetches a proof by identifier.
func (c *Client) GetProof(ctx context.Context, proofID string) (Proof, error) {
	var p Proof
	if err := c.send(ctx, http.MethodGet, "/api/v1/proof/"+url.PathEscape(proofID), nil, nil, &p); err != nil {
		return Proof{}, err
	}
	return p, nil
}

// ListProofs returns the most recent proofs, newest first.
func (c *Client) ListProofs(ctx context.Context, opts ListOptions) ([]Proof, error) {
	query := url.Values{}
	if opts.Address != "" {
		query.Set("address", opts.Address)
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	var body struct {
		Proofs []Proof `json:"proofs"`
	}
	if err := c.send(ctx, http.MethodGet, "/api/v1/proofs", query, nil, &body); err != nil {
		return nil, err
	}
	return body.Proofs, nil
}

// Verify asks the server to recompute the hashes of a proof.
func (c *Client) Verify(ctx context.Context, proofID string) (VerificationReport, error) {
	var report VerificationReport
	endpoint := "/api/v1/proof/" + url.PathEscape(proofID) + "/verify"
	if err := c.send(ctx, http.MethodGet, endpoint, nil, nil, &report); err != nil {
		return VerificationReport{}, err
	}
	return report, nil
}

// Redrive re-enqueues background work for a stalled proof.
func (c *Client) Redrive(ctx context.Context, proofID string) (RedriveResult, error) {
	var result RedriveResult
	endpoint := "/api/v1/proof/" + url.PathEscape(proofID) + "/anchor"
	if err := c.send(ctx, http.MethodPost, endpoint, nil, nil, &result); err != nil {
		return RedriveResult{}, err
	}
	return result, nil
}

// WaitUntilConfirmed polls GetProof until the proof is anchored or ctx ends.
// On failure it returns the last proof it observed.
func (c *Client) WaitUntilConfirmed(ctx context.Context, proofID string, interval time.Duration) (Proof, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var last Proof
	for {
		p, err := c.GetProof(ctx, proofID)
		if err != nil {
			return last, err
		}
		if p.Anchored() {
			return p, nil
		}
		last = p
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) send(ctx context.Context, method, endpoint string, query url.Values, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	rel := &url.URL{Path: path.Join(c.baseURL.Path, endpoint), RawQuery: query.Encode()}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.ResolveReference(rel).String(), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := APIError{StatusCode: resp.StatusCode}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		if len(data) > 0 {
			_ = json.Unmarshal(data, &struct {
				Error *APIError `json:"error"`
			}{Error: &apiErr})
		}
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return &apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
