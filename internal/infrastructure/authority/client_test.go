package authority

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clinic/terminal/internal/domain/authority"
	"github.com/clinic/terminal/internal/domain/idpool"
	"github.com/clinic/terminal/internal/domain/shared"
	"github.com/clinic/terminal/internal/domain/syncqueue"
	"github.com/clinic/terminal/internal/infrastructure/config"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(&config.AuthorityConfig{
		BaseURL: server.URL,
		APIKey:  "terminal-key",
		Timeout: 2 * time.Second,
	}, zap.NewNop())
	return client, server
}

func TestClientRequestRange(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pools/request", r.URL.Path)
		assert.Equal(t, "Bearer terminal-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "INVOICE", body["kind"])
		assert.Equal(t, "PIA-CAJA-01", body["terminal_id"])

		json.NewEncoder(w).Encode(map[string]any{
			"authority_id": "pool-7",
			"batch_id":     "LOTE-PIA-FAC-003",
			"prefix":       "FAC-PIA-",
			"range_start":  1100,
			"range_end":    1599,
		})
	}))

	grant, err := client.RequestRange(context.Background(), authority.RangeRequest{
		Kind:       idpool.KindInvoice,
		TerminalID: "PIA-CAJA-01",
		BranchCode: "PIA",
		Size:       500,
	})
	require.NoError(t, err)
	assert.Equal(t, "LOTE-PIA-FAC-003", grant.BatchID)
	assert.Equal(t, int64(1100), grant.Start)
	assert.Equal(t, int64(1599), grant.End)
}

func TestClientLogin(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "correct" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"user": map[string]any{
				"id":           "srv-9",
				"username":     "ARodriguez",
				"display_name": "Ana Rodríguez",
				"role":         "reception",
				"branch_id":    "branch-1",
			},
		})
	}))

	t.Run("success normalizes the username", func(t *testing.T) {
		user, err := client.Login(context.Background(), "ARodriguez", "correct")
		require.NoError(t, err)
		assert.Equal(t, "arodriguez", user.Username)
		assert.Equal(t, "srv-9", user.RemoteID)
	})

	t.Run("rejection maps to unauthorized", func(t *testing.T) {
		_, err := client.Login(context.Background(), "ARodriguez", "wrong")
		assert.ErrorIs(t, err, shared.ErrUnauthorized)
	})
}

func TestClientErrorClassification(t *testing.T) {
	t.Run("unreachable server is a connectivity timeout", func(t *testing.T) {
		client := NewClient(&config.AuthorityConfig{
			BaseURL: "http://127.0.0.1:1",
			Timeout: 200 * time.Millisecond,
		}, zap.NewNop())

		err := client.Health(context.Background())
		assert.ErrorIs(t, err, shared.ErrConnectivityTimeout)
	})

	t.Run("server 500 is a connectivity timeout", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		assert.ErrorIs(t, client.Health(context.Background()), shared.ErrConnectivityTimeout)
	})

	t.Run("business rejection on push is a sync conflict", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/sync/invoice", r.URL.Path)
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]string{"error": "duplicate number"})
		}))

		_, err := client.Push(context.Background(), syncqueue.EntityInvoice, []byte(`{}`))
		assert.ErrorIs(t, err, shared.ErrSyncConflict)
	})

	t.Run("forbidden login is unauthorized, not a conflict", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))

		_, err := client.Login(context.Background(), "ARodriguez", "expired")
		assert.ErrorIs(t, err, shared.ErrUnauthorized)
	})

	t.Run("malformed login request is invalid input, not a conflict", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "username is required"})
		}))

		_, err := client.Login(context.Background(), "", "")
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("accepted push returns the remote id", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"id": "srv-inv-42"})
		}))

		result, err := client.Push(context.Background(), syncqueue.EntityInvoice, []byte(`{}`))
		require.NoError(t, err)
		assert.Equal(t, "srv-inv-42", result.RemoteID)
	})
}

func TestClientFetchPatients(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sync/patients", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("updated_since"))
		json.NewEncoder(w).Encode(map[string]any{
			"patients": []map[string]any{
				{
					"id":          "srv-p-1",
					"document_id": "8-123-456",
					"first_name":  "José",
					"last_name":   "Núñez",
					"branch_id":   "branch-1",
				},
				{
					// malformed: no last name, must be skipped
					"id":         "srv-p-2",
					"first_name": "Sin",
					"branch_id":  "branch-1",
				},
			},
		})
	}))

	patients, err := client.FetchPatients(context.Background(), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, patients, 1)
	assert.Equal(t, "srv-p-1", patients[0].RemoteID)
	assert.True(t, patients[0].Synced)
	assert.Equal(t, "jose nunez 8-123-456", patients[0].SearchKey)
}
