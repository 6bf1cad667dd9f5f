package foldseek

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yash-217/yash.fun/application/ports"
	"github.com/yash-217/yash.fun/infrastructure/external"
	pkgerrors "github.com/yash-217/yash.fun/pkg/errors"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:        srv.URL + "/api",
		RequestTimeout: 5 * time.Second,
		UserAgent:      "residuelab-test",
		Breaker:        external.DefaultBreakerConfig(),
	}, srv.Client(), zap.NewNop())
}

func TestSubmitTicket_SendsMultipart(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/ticket", r.URL.Path)
		assert.Equal(t, "residuelab-test", r.UserAgent())

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "3diaa", r.FormValue("mode"))
		assert.Equal(t, []string{"afdb50", "pdb100"}, r.MultipartForm.Value["database[]"])

		f, hdr, err := r.FormFile("q")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "query.pdb", hdr.Filename)
		data, _ := io.ReadAll(f)
		assert.Equal(t, "ATOM\nEND\n", string(data))

		_ = json.NewEncoder(w).Encode(map[string]string{"id": "tkt-1", "status": "PENDING"})
	})

	id, err := client.SubmitTicket(context.Background(), ports.SearchQuery{
		PDB:       "ATOM\nEND\n",
		Mode:      "3diaa",
		Databases: []string{"afdb50", "pdb100"},
	})
	require.NoError(t, err)
	assert.Equal(t, "tkt-1", id)
}

func TestSubmitTicket_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
		},
		{
			name: "missing id",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"status":"PENDING"}`))
			},
		},
		{
			name: "not json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`<html>maintenance</html>`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler)
			_, err := client.SubmitTicket(context.Background(), ports.SearchQuery{PDB: "END\n"})
			require.Error(t, err)
			assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeTransport), "got %v", err)
			assert.True(t, pkgerrors.IsRetryable(err))
		})
	}
}

func TestTicketStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ticket/abc%2F1", r.URL.EscapedPath())
		_, _ = w.Write([]byte(`{"id":"abc/1","status":"ERROR","message":"invalid input"}`))
	})

	st, err := client.TicketStatus(context.Background(), "abc/1")
	require.NoError(t, err)
	assert.Equal(t, "ERROR", st.Status)
	assert.Equal(t, "invalid input", st.Message)
	assert.Empty(t, st.Result)
}

func TestTicketStatus_MalformedIsRemoteError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":`))
	})

	_, err := client.TicketStatus(context.Background(), "x")
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeRemote))
}

func TestTicketResult(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/result/tkt-9/0", r.URL.Path)
		_, _ = w.Write([]byte(`{"results":[]}`))
	})

	raw, err := client.TicketResult(context.Background(), "tkt-9")
	require.NoError(t, err)
	assert.JSONEq(t, `{"results":[]}`, string(raw))
}

func TestCanceledContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.TicketStatus(ctx, "x")
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeCanceled), "got %v", err)
}
