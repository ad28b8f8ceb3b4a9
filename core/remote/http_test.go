package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crm-bridge/core/models"
	"crm-bridge/core/syncerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONClient_Do(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
			assert.Equal(t, "2", r.URL.Query().Get("page"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"42","name":"Acme"}`))
		case "/limited":
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
		case "/invalid":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"Property values were not valid"}`))
		case "/down":
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	c := NewJSONClient(models.SystemCRM, srv.URL+"/", "secret", time.Second)

	t.Run("Success", func(t *testing.T) {
		var out struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}
		err := c.Do(context.Background(), http.MethodGet, "/ok", map[string][]string{"page": {"2"}}, nil, &out)
		require.NoError(t, err)
		assert.Equal(t, "42", out.ID)
		assert.Equal(t, "Acme", out.Name)
	})

	t.Run("RateLimited", func(t *testing.T) {
		err := c.Do(context.Background(), http.MethodPost, "/limited", nil, map[string]any{"a": 1}, nil)
		var re *syncerr.RemoteError
		require.ErrorAs(t, err, &re)
		assert.True(t, re.Transient())
		assert.Equal(t, 3*time.Second, re.RetryAfter)
		assert.ErrorIs(t, err, syncerr.ErrRateLimited)
	})

	t.Run("Validation", func(t *testing.T) {
		err := c.Do(context.Background(), http.MethodPatch, "/invalid", nil, map[string]any{}, nil)
		assert.False(t, syncerr.IsTransient(err))
		assert.Contains(t, err.Error(), "Property values were not valid")
	})

	t.Run("ServerError", func(t *testing.T) {
		err := c.Do(context.Background(), http.MethodGet, "/down", nil, nil, nil)
		assert.True(t, syncerr.IsTransient(err))
	})

	t.Run("ConnectionRefused", func(t *testing.T) {
		dead := NewJSONClient(models.SystemCRM, "http://127.0.0.1:1", "", time.Second)
		err := dead.Do(context.Background(), http.MethodGet, "/", nil, nil, nil)
		assert.True(t, syncerr.IsTransient(err))
	})
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   string
		want time.Duration
	}{
		{"Empty", "", 0},
		{"Seconds", "7", 7 * time.Second},
		{"Negative", "-1", 0},
		{"Date", now.Add(10 * time.Second).Format(http.TimeFormat), 10 * time.Second},
		{"PastDate", now.Add(-time.Minute).Format(http.TimeFormat), 0},
		{"Garbage", "soon", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRetryAfter(tt.in, now))
		})
	}
}
