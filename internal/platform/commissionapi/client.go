package commissionapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"commissionflow/internal/domain/workflow"
	"commissionflow/internal/requestctx"
)

const maxErrorBody = 512

// Recorder receives one result per backend call.
type Recorder interface {
	RecordUpstream(operation, result string)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	recorder   Recorder
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		c.recorder = r
	}
}

func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse commission api url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("commission api url must be absolute: %q", baseURL)
	}
	c := &Client{
		baseURL:    strings.TrimRight(parsed.String(), "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get reads one commission.
func (c *Client) Get(ctx context.Context, id string) (Snapshot, error) {
	var wire wireCommission
	if err := c.do(ctx, "get", http.MethodGet, "/commissions/"+url.PathEscape(id)+"/", nil, nil, &wire); err != nil {
		return Snapshot{}, err
	}
	return wire.snapshot()
}

// ListPending reads the approval queue. status narrows the queue when set.
func (c *Client) ListPending(ctx context.Context, status string) ([]Snapshot, error) {
	query := url.Values{}
	if status = strings.ToLower(strings.TrimSpace(status)); status != "" {
		if status == string(workflow.StatePending) {
			status = backendSubmitted
		}
		query.Set("status", status)
	}
	var raw json.RawMessage
	if err := c.do(ctx, "list_pending", http.MethodGet, "/commissions/approvals/pending/", query, nil, &raw); err != nil {
		return nil, err
	}
	items, err := decodeCommissionList(raw)
	if err != nil {
		return nil, fmt.Errorf("list_pending: %w", err)
	}
	out := make([]Snapshot, 0, len(items))
	for _, item := range items {
		snap, err := item.commission().snapshot()
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

// Apply asks the backend to perform an accepted transition. The backend
// receives the state and version the decision was made against.
func (c *Client) Apply(ctx context.Context, d workflow.Descriptor) error {
	verb, ok := actionVerbs[d.Action]
	if !ok {
		return fmt.Errorf("apply: %w: %q", workflow.ErrUnknownAction, d.Action)
	}
	body := transitionRequest{
		Notes:         d.Reason,
		ExpectedState: backendState(d.From),
		Version:       d.Version,
	}
	if d.Action == workflow.ActionReject {
		body.RejectionReason = d.Reason
	}
	return c.do(ctx, "apply", http.MethodPatch, "/commissions/"+url.PathEscape(d.CommissionID)+"/"+verb+"/", nil, body, nil)
}

func decodeCommissionList(raw json.RawMessage) ([]pendingItem, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var items []pendingItem
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	var page pagedCommissions
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return nil, err
	}
	return page.Results, nil
}

func (c *Client) do(ctx context.Context, operation, method, path string, query url.Values, in, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", operation, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := requestctx.GetToken(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if reqID := requestctx.GetRequestID(ctx); reqID != "" {
		req.Header.Set("X-Request-ID", reqID)
	}
	if method != http.MethodGet {
		key := requestctx.GetIdempotencyKey(ctx)
		if key == "" {
			key = uuid.NewString()
		}
		req.Header.Set("Idempotency-Key", key)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(operation, "error")
		return fmt.Errorf("%s: %w", operation, err)
	}
	defer resp.Body.Close()

	if err := statusErr(operation, resp); err != nil {
		c.record(operation, resultFor(err))
		return err
	}
	c.record(operation, "ok")

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", operation, err)
	}
	return nil
}

func statusErr(operation string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict, http.StatusPreconditionFailed:
		return workflow.ErrConflict
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUpstreamDenied
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Operation: operation, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
}

func resultFor(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, workflow.ErrConflict):
		return "conflict"
	case errors.Is(err, ErrUpstreamDenied):
		return "denied"
	default:
		return "error"
	}
}

func (c *Client) record(operation, result string) {
	if c.recorder != nil {
		c.recorder.RecordUpstream(operation, result)
	}
}
