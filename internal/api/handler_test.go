package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"traffic-decision-engine/internal/rules"
	"traffic-decision-engine/internal/stats"
	"traffic-decision-engine/internal/storage"
)

type mockStore struct {
	snap      *storage.SnapshotData
	syncCalls int

	postbackErr error
	postbacks   []postbackRequest
	ingested    []stats.Batch
}

func (m *mockStore) ServeSync(_ context.Context, _ int64, clientVersion string) (*storage.SnapshotData, bool, error) {
	m.syncCalls++
	if m.snap == nil {
		return nil, false, nil
	}
	if clientVersion == m.snap.Version {
		return nil, false, nil
	}
	return m.snap, true, nil
}

func (m *mockStore) ApplyPostback(_ context.Context, ruleID int64, variantURL string, converted bool, revenue float64) error {
	if m.postbackErr != nil {
		return m.postbackErr
	}
	m.postbacks = append(m.postbacks, postbackRequest{RuleID: ruleID, VariantURL: variantURL, Converted: converted, Revenue: revenue})
	return nil
}

func (m *mockStore) IngestStats(_ context.Context, b stats.Batch) error {
	m.ingested = append(m.ingested, b)
	return nil
}

func testSnap() *storage.SnapshotData {
	return &storage.SnapshotData{
		Version: "v1",
		Rules:   []rules.Rule{{ID: 1, Domain: "example.com", Active: true}},
		Configs: []rules.DomainConfig{{Domain: "example.com", Enabled: true, DefaultAction: "pass"}},
	}
}

func doRequest(h http.Handler, method, url string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestSync_RoundTrip(t *testing.T) {
	store := &mockStore{snap: testSnap()}
	r := Router(NewHandler(store, 1), "tok")

	// first pull: full snapshot
	w := doRequest(r, "GET", "/sync", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Version string       `json:"version"`
		Rules   []rules.Rule `json:"rules"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "v1", body.Version)
	assert.Len(t, body.Rules, 1)

	// same token twice: unchanged both times, second served from the
	// cached token without touching the store
	w = doRequest(r, "GET", "/sync?version=v1", nil)
	assert.Equal(t, http.StatusNotModified, w.Code)
	calls := store.syncCalls
	w = doRequest(r, "GET", "/sync?version=v1", nil)
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Equal(t, calls, store.syncCalls)
}

func TestSync_InvalidateForcesRecompute(t *testing.T) {
	store := &mockStore{snap: testSnap()}
	h := NewHandler(store, 1)
	r := Router(h, "tok")

	doRequest(r, "GET", "/sync?version=v1", nil)
	calls := store.syncCalls

	h.Invalidate() // what the LISTEN/NOTIFY listener does on data change
	doRequest(r, "GET", "/sync?version=v1", nil)
	assert.Equal(t, calls+1, store.syncCalls)
}

func TestSync_RequiresAuth(t *testing.T) {
	r := Router(NewHandler(&mockStore{}, 1), "tok")

	req := httptest.NewRequest("GET", "/sync", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPostback_Scenarios(t *testing.T) {
	tests := []struct {
		name       string
		store      *mockStore
		body       any
		wantStatus int
	}{
		{"ok", &mockStore{}, postbackRequest{RuleID: 7, VariantURL: "https://a.example/", Converted: true, Revenue: 9.5}, http.StatusOK},
		{"unknown rule", &mockStore{postbackErr: storage.ErrRuleNotFound}, postbackRequest{RuleID: 999, VariantURL: "https://a.example/"}, http.StatusNotFound},
		{"missing rule id", &mockStore{}, postbackRequest{VariantURL: "https://a.example/"}, http.StatusBadRequest},
		{"missing variant url", &mockStore{}, postbackRequest{RuleID: 7}, http.StatusBadRequest},
		{"invalid json", &mockStore{}, nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Router(NewHandler(tt.store, 1), "tok")

			var w *httptest.ResponseRecorder
			if tt.body == nil {
				req := httptest.NewRequest("POST", "/postback", bytes.NewBufferString("{"))
				w = httptest.NewRecorder()
				r.ServeHTTP(w, req)
			} else {
				w = doRequest(r, "POST", "/postback", tt.body)
			}
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestPostback_EchoesBody(t *testing.T) {
	store := &mockStore{}
	r := Router(NewHandler(store, 1), "tok")

	w := doRequest(r, "POST", "/postback", postbackRequest{RuleID: 7, VariantURL: "https://a.example/", Converted: true, Revenue: 1.5})
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["ok"])
	assert.Equal(t, float64(7), resp["rule_id"])
	assert.Equal(t, "https://a.example/", resp["variant_url"])
	assert.Equal(t, true, resp["converted"])
	assert.Equal(t, 1.5, resp["revenue"])

	assert.Len(t, store.postbacks, 1)
	assert.True(t, store.postbacks[0].Converted)
}

func TestStats_Ingest(t *testing.T) {
	store := &mockStore{}
	r := Router(NewHandler(store, 1), "tok")

	batch := stats.Batch{AccountID: 1, BatchID: "b-1"}
	w := doRequest(r, "POST", "/stats", batch)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, store.ingested, 1)
	assert.Equal(t, "b-1", store.ingested[0].BatchID)
}
