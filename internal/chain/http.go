package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/roach88/enactor/internal/gov"
)

// HTTPClient talks to a node cluster over its HTTP submission and query
// endpoints.
type HTTPClient struct {
	submitURL string
	queryURL  string
	http      *http.Client
	logger    *slog.Logger
}

// HTTPConfig configures an HTTPClient.
type HTTPConfig struct {
	SubmitURL string // base URL of the transaction submission endpoint
	QueryURL  string // base URL of the state query endpoint
	Timeout   time.Duration
	Logger    *slog.Logger
}

// NewHTTPClient creates a client for the given endpoints.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if cfg.SubmitURL == "" || cfg.QueryURL == "" {
		return nil, fmt.Errorf("chain: both submit and query endpoints are required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPClient{
		submitURL: cfg.SubmitURL,
		queryURL:  cfg.QueryURL,
		http:      &http.Client{Timeout: timeout},
		logger:    logger,
	}, nil
}

// SubmitProposal implements Client.
func (c *HTTPClient) SubmitProposal(ctx context.Context, p *gov.Proposal, key string) (SubmitReceipt, error) {
	body := map[string]any{
		"id":          string(p.ID),
		"kind":        string(p.Kind),
		"sponsor":     p.Sponsor,
		"anchor_url":  p.AnchorURL,
		"anchor_hash": p.AnchorHash,
		"payload":     p.Payload,
		"key":         key,
	}
	raw, err := c.post(ctx, c.submitURL+"/v1/tx/proposal", body)
	if err != nil {
		return SubmitReceipt{}, err
	}

	seq := gjson.GetBytes(raw, "seq")
	epoch := gjson.GetBytes(raw, "epoch")
	if !seq.Exists() {
		return SubmitReceipt{}, NewRejected("submission response missing seq", nil)
	}
	return SubmitReceipt{Seq: seq.Int(), Epoch: epoch.Uint()}, nil
}

// SubmitVote implements Client.
func (c *HTTPClient) SubmitVote(ctx context.Context, v gov.Vote, key string) (uint64, error) {
	voteID, err := gov.ComputeVoteID(v)
	if err != nil {
		return 0, NewRejected("vote not canonically encodable", err)
	}
	body := map[string]any{
		"id":       voteID,
		"agent":    v.Agent,
		"proposal": string(v.Proposal),
		"choice":   string(v.Choice),
		"key":      key,
	}
	raw, err := c.post(ctx, c.submitURL+"/v1/tx/vote", body)
	if err != nil {
		return 0, err
	}
	return gjson.GetBytes(raw, "epoch").Uint(), nil
}

// CurrentEpoch implements Client.
func (c *HTTPClient) CurrentEpoch(ctx context.Context) (uint64, error) {
	raw, err := c.get(ctx, c.queryURL+"/v1/epoch")
	if err != nil {
		return 0, err
	}
	epoch := gjson.GetBytes(raw, "epoch")
	if !epoch.Exists() {
		return 0, NewTransient("epoch query returned no epoch field", nil)
	}
	return epoch.Uint(), nil
}

// ProposalStatus implements Client.
func (c *HTTPClient) ProposalStatus(ctx context.Context, id gov.ProposalID) (StatusInfo, error) {
	raw, err := c.get(ctx, c.queryURL+"/v1/proposals/"+string(id))
	if err != nil {
		return StatusInfo{}, err
	}
	status := gjson.GetBytes(raw, "status").String()
	if status == "" {
		status = string(StatusUnknown)
	}
	return StatusInfo{
		Status: ProposalStatus(status),
		Epoch:  gjson.GetBytes(raw, "enacted_epoch").Uint(),
	}, nil
}

// GovState implements Client.
func (c *HTTPClient) GovState(ctx context.Context) ([]byte, error) {
	return c.get(ctx, c.queryURL+"/v1/gov-state")
}

func (c *HTTPClient) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, NewRejected("request not encodable", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, NewRejected("bad request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *HTTPClient) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, NewRejected("bad request", err)
	}
	return c.do(req)
}

// do executes a request and classifies the outcome. 429 and 5xx map to
// transient failures, other non-2xx statuses are terminal rejections.
func (c *HTTPClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, NewTransient("node unreachable", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewTransient("response read failed", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return raw, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		c.logger.Debug("transient node failure",
			"url", req.URL.String(),
			"status", resp.StatusCode,
		)
		return nil, &Error{
			Code:       CodeTransient,
			Message:    nodeMessage(raw, "node busy"),
			HTTPStatus: resp.StatusCode,
		}
	default:
		return nil, &Error{
			Code:       CodeRejected,
			Message:    nodeMessage(raw, "submission rejected"),
			HTTPStatus: resp.StatusCode,
		}
	}
}

// nodeMessage extracts the node's error message from a response body,
// falling back when the body is not JSON.
func nodeMessage(raw []byte, fallback string) string {
	if msg := gjson.GetBytes(raw, "error").String(); msg != "" {
		return msg
	}
	return fallback
}
