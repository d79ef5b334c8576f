package stats

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPusher_PushAndPurge(t *testing.T) {
	var received Batch
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewAggregator(16)
	a.fold(linkEvent(baseHour))
	p := NewPusher(a, srv.URL, "secret", 42, time.Minute)

	p.PushOnce(context.Background(), baseHour.Add(2*time.Hour))

	assert.Equal(t, int64(42), received.AccountID)
	assert.NotEmpty(t, received.BatchID)
	assert.Len(t, received.Links, 1)

	// acknowledged buckets are purged; nothing left to push
	assert.True(t, a.TakeCompleted(baseHour.Add(3*time.Hour)).Empty())
}

func TestPusher_FailureRetainsBuckets(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewAggregator(16)
	a.fold(linkEvent(baseHour))
	p := NewPusher(a, srv.URL, "secret", 42, time.Minute)

	p.PushOnce(context.Background(), baseHour.Add(2*time.Hour)) // 500: retained
	p.PushOnce(context.Background(), baseHour.Add(2*time.Hour)) // ok: purged

	assert.Equal(t, 2, calls)
	assert.True(t, a.TakeCompleted(baseHour.Add(3*time.Hour)).Empty())
}

func TestPusher_NothingCompletedNoPost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no push expected")
	}))
	defer srv.Close()

	a := NewAggregator(16)
	a.fold(linkEvent(baseHour))
	p := NewPusher(a, srv.URL, "secret", 42, time.Minute)

	// still inside baseHour: the open hour is never pushed
	p.PushOnce(context.Background(), baseHour.Add(10*time.Minute))
}
