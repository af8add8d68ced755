package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/enactor/internal/gov"
)

func newTestClient(t *testing.T, handler http.Handler) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewHTTPClient(HTTPConfig{SubmitURL: srv.URL, QueryURL: srv.URL})
	require.NoError(t, err)
	return c
}

func TestNewHTTPClient_RequiresEndpoints(t *testing.T) {
	_, err := NewHTTPClient(HTTPConfig{SubmitURL: "http://localhost:9000"})
	assert.Error(t, err)
}

func TestHTTPClient_SubmitProposal(t *testing.T) {
	var gotBody map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/tx/proposal", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"seq":7,"epoch":12}`))
	}))

	p := &gov.Proposal{
		ID:      "prop-a",
		Kind:    gov.KindHardFork,
		Sponsor: "spo-001",
		Payload: map[string]any{"major": int64(10)},
	}
	receipt, err := c.SubmitProposal(context.Background(), p, "key-1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), receipt.Seq)
	assert.Equal(t, uint64(12), receipt.Epoch)
	assert.Equal(t, "prop-a", gotBody["id"])
	assert.Equal(t, "hard-fork", gotBody["kind"])
	assert.Equal(t, "key-1", gotBody["key"])
}

func TestHTTPClient_SubmitProposal_MissingSeqRejected(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))

	_, err := c.SubmitProposal(context.Background(), &gov.Proposal{ID: "p"}, "k")
	assert.True(t, IsRejected(err), "response without seq is a protocol violation, not retryable")
}

func TestHTTPClient_SubmitVote(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/tx/vote", r.URL.Path)
		w.Write([]byte(`{"epoch":5}`))
	}))

	epoch, err := c.SubmitVote(context.Background(), gov.Vote{
		Agent: "drep-001", Proposal: "p1", Choice: gov.ChoiceYes,
	}, "k")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), epoch)
}

func TestHTTPClient_CurrentEpoch(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/epoch", r.URL.Path)
		w.Write([]byte(`{"epoch":42}`))
	}))

	epoch, err := c.CurrentEpoch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), epoch)
}

func TestHTTPClient_ProposalStatus(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/proposals/p1", r.URL.Path)
		w.Write([]byte(`{"status":"enacted","enacted_epoch":9}`))
	}))

	info, err := c.ProposalStatus(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, StatusEnacted, info.Status)
	assert.Equal(t, uint64(9), info.Epoch)
}

func TestHTTPClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		transient bool
	}{
		{name: "429 is transient", status: http.StatusTooManyRequests, body: `{"error":"mempool full"}`, transient: true},
		{name: "503 is transient", status: http.StatusServiceUnavailable, body: ``, transient: true},
		{name: "500 is transient", status: http.StatusInternalServerError, body: ``, transient: true},
		{name: "400 is rejection", status: http.StatusBadRequest, body: `{"error":"malformed payload"}`, transient: false},
		{name: "404 is rejection", status: http.StatusNotFound, body: ``, transient: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))

			_, err := c.CurrentEpoch(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.transient, IsTransient(err))
			assert.Equal(t, !tt.transient, IsRejected(err))
		})
	}
}

func TestHTTPClient_NodeMessageSurfaced(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid anchor hash"}`))
	}))

	_, err := c.CurrentEpoch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid anchor hash")
}

func TestHTTPClient_UnreachableIsTransient(t *testing.T) {
	c, err := NewHTTPClient(HTTPConfig{
		SubmitURL: "http://127.0.0.1:1",
		QueryURL:  "http://127.0.0.1:1",
	})
	require.NoError(t, err)

	_, err = c.CurrentEpoch(context.Background())
	assert.True(t, IsTransient(err))
}
