package crm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crm-bridge/core/models"
	"crm-bridge/core/remote"
	"crm-bridge/core/syncerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticProps []string

func (p staticProps) RemoteFields(models.System, models.EntityType) []string { return p }

func newTestTransport(t *testing.T, h http.HandlerFunc) *Transport {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	api := remote.NewJSONClient(models.SystemCRM, srv.URL, "pat", time.Second)
	return NewWithClient(api, staticProps{"name", "hs_priority"})
}

func TestTransport_FetchList(t *testing.T) {
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/crm/v3/objects/companies", r.URL.Path)
		assert.Equal(t, "name,hs_priority", r.URL.Query().Get("properties"))

		if r.URL.Query().Get("after") == "" {
			_, _ = w.Write([]byte(`{"results":[
				{"id":"H1","properties":{"name":"Acme","hs_priority":"HIGH"},"createdAt":"2026-01-01T00:00:00Z"},
				{"id":"H0","properties":{"name":"Gone"},"archived":true}],
				"paging":{"next":{"after":"100"}}}`))
			return
		}
		_, _ = w.Write([]byte(`{"results":[{"id":"H2","properties":{"name":"Globex"}}]}`))
	})

	records, err := tr.Fetch(context.Background(), models.EntityCompany, nil)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "H1", records[0].ID)
	assert.Equal(t, "HIGH", records[0].Fields["hs_priority"])
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), records[0].CreatedAt)
	assert.Equal(t, "H2", records[1].ID)
}

func TestTransport_FetchSince(t *testing.T) {
	since := time.UnixMilli(1767225600000).UTC()
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/crm/v3/objects/contacts/search", r.URL.Path)

		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.FilterGroups, 1)
		assert.Equal(t, filter{PropertyName: "hs_lastmodifieddate", Operator: "GTE", Value: "1767225600000"}, req.FilterGroups[0].Filters[0])
		assert.Equal(t, searchLimit, req.Limit)

		_, _ = w.Write([]byte(`{"results":[{"id":"C1","properties":{"email":"a@b.co"}}]}`))
	})

	records, err := tr.Fetch(context.Background(), models.EntityContact, &since)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a@b.co", records[0].Fields["email"])
}

func TestTransport_CreateAndUpdate(t *testing.T) {
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Properties map[string]any `json:"properties"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		switch r.Method {
		case http.MethodPost:
			assert.Equal(t, "/crm/v3/objects/deals", r.URL.Path)
			assert.Equal(t, map[string]any{"dealname": "Big deal"}, body.Properties)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"D7","properties":{"dealname":"Big deal"}}`))
		case http.MethodPatch:
			assert.Equal(t, "/crm/v3/objects/deals/D7", r.URL.Path)
			assert.Equal(t, map[string]any{"amount": ""}, body.Properties)
			_, _ = w.Write([]byte(`{"id":"D7"}`))
		}
	})

	id, err := tr.Create(context.Background(), models.EntityDeal, map[string]any{"dealname": "Big deal"})
	require.NoError(t, err)
	assert.Equal(t, "D7", id)

	require.NoError(t, tr.Update(context.Background(), models.EntityDeal, "D7", map[string]any{"amount": nil}))
}

func TestTransport_RateLimited(t *testing.T) {
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := tr.Fetch(context.Background(), models.EntityCompany, nil)
	assert.ErrorIs(t, err, syncerr.ErrRateLimited)
}

func TestTransport_Fields(t *testing.T) {
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/crm/v3/properties/companies", r.URL.Path)
		_, _ = w.Write([]byte(`{"results":[{"name":"name"},{"name":"domain"}]}`))
	})

	fields, err := tr.Fields(context.Background(), models.EntityCompany)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "domain"}, fields)
}
