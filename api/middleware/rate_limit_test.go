package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeRateStore struct {
	counts map[string]int64
	err    error
}

func (f *fakeRateStore) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	if f.err != nil {
		return false, 0, f.err
	}
	if f.counts == nil {
		f.counts = map[string]int64{}
	}
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}

func rateLimitedHandler(store rateLimiterStore, limit int) http.Handler {
	policy := NewRateLimitPolicy("checkout", time.Minute, limit)
	return RateLimit(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func ratePostAs(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
	if userID != "" {
		req = req.WithContext(WithUserID(req.Context(), userID))
	}
	return req
}

func TestRateLimitBlocksAfterLimit(t *testing.T) {
	handler := rateLimitedHandler(&fakeRateStore{}, 2)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, ratePostAs("user-1"))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200 got %d", i, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, ratePostAs("user-1"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, ratePostAs("user-2"))
	if rec.Code != http.StatusOK {
		t.Fatalf("other users must not share the window, got %d", rec.Code)
	}
}

func TestRateLimitSkipsReadsAndAnonymous(t *testing.T) {
	store := &fakeRateStore{}
	handler := rateLimitedHandler(store, 1)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
		req = req.WithContext(WithUserID(req.Context(), "user-1"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected reads to pass, got %d", rec.Code)
		}
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, ratePostAs(""))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected anonymous request to pass, got %d", rec.Code)
	}
	if len(store.counts) != 0 {
		t.Fatalf("store should not be touched, got %v", store.counts)
	}
}

func TestRateLimitStoreFailure(t *testing.T) {
	handler := rateLimitedHandler(&fakeRateStore{err: errors.New("redis down")}, 1)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, ratePostAs("user-1"))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rec.Code)
	}
}
