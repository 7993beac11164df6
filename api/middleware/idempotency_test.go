package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// memoryIdempotencyStore keeps records in a map; TTLs are recorded but not
// enforced.
type memoryIdempotencyStore struct {
	records map[string]string
	ttls    map[string]time.Duration
}

func newMemoryIdempotencyStore() *memoryIdempotencyStore {
	return &memoryIdempotencyStore{records: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryIdempotencyStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m.records[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryIdempotencyStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.records[key], m.ttls[key] = value.(string), ttl
	return nil
}

func (m *memoryIdempotencyStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, taken := m.records[key]; taken {
		return false, nil
	}
	return true, m.Set(ctx, key, value, ttl)
}

func (m *memoryIdempotencyStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.records, k)
		delete(m.ttls, k)
	}
	return nil
}

func (m *memoryIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "test:idem:" + scope + ":" + id
}

func postAs(user, path, body, key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	return req.WithContext(WithUserID(req.Context(), user))
}

func placeOrder(body, key string) *http.Request {
	return postAs("user-1", "/api/v1/checkout", body, key)
}

// countingHandler answers with status and counts how often it ran.
func countingHandler(status int, calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"order":"o-1"}`))
	})
}

func TestRouteTTL(t *testing.T) {
	cases := []struct {
		method, path string
		want         time.Duration
	}{
		{http.MethodPost, "/api/v1/checkout", criticalIdempotencyTTL},
		{http.MethodPost, "/api/v1/checkout/", criticalIdempotencyTTL},
		{http.MethodPost, "/api/v1/payments/callback", criticalIdempotencyTTL},
		{http.MethodPost, "/api/v1/orders/456/cancel", criticalIdempotencyTTL},
		{http.MethodPost, "/api/v1/orders/456/items/789/cancel", criticalIdempotencyTTL},
		{http.MethodPost, "/api/v1/orders/456/retry-payment", criticalIdempotencyTTL},
		{http.MethodPost, "/api/admin/v1/wallets/u1/credit", criticalIdempotencyTTL},
		{http.MethodPost, "/api/v1/payments/dismiss", defaultIdempotencyTTL},
		{http.MethodPost, "/api/v1/orders/456/return", defaultIdempotencyTTL},
		{http.MethodPost, "/api/admin/v1/orders/abc/status", defaultIdempotencyTTL},
		{http.MethodPost, "/api/v1/checkout/quote", 0},
		{http.MethodGet, "/api/v1/orders/456", 0},
	}
	for _, tc := range cases {
		ttl, guarded := routeTTL(tc.method, tc.path)
		assert.Equal(t, tc.want != 0, guarded, "%s %s", tc.method, tc.path)
		assert.Equal(t, tc.want, ttl, "%s %s", tc.method, tc.path)
	}
}

func TestIdempotencyRejectsBadKeys(t *testing.T) {
	for name, key := range map[string]string{
		"missing":   "",
		"oversized": strings.Repeat("k", maxIdempotencyKey+1),
	} {
		t.Run(name, func(t *testing.T) {
			var calls int
			rec := httptest.NewRecorder()
			Idempotency(newMemoryIdempotencyStore(), nil)(countingHandler(http.StatusCreated, &calls)).
				ServeHTTP(rec, placeOrder(`{"payment_method":"cod"}`, key))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Zero(t, calls)
		})
	}
}

func TestIdempotencyReplaysCompletedResponse(t *testing.T) {
	store := newMemoryIdempotencyStore()
	var calls int
	handler := Idempotency(store, nil)(countingHandler(http.StatusCreated, &calls))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, placeOrder(`{"payment_method":"cod"}`, "abc"))
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get(replayedHeader))

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, placeOrder(`{"payment_method":"cod"}`, "abc"))
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
	assert.Equal(t, "true", second.Header().Get(replayedHeader))
	assert.Equal(t, `{"order":"o-1"}`, second.Body.String())
	assert.Equal(t, 1, calls)

	for key, ttl := range store.ttls {
		assert.Equal(t, criticalIdempotencyTTL, ttl, key)
	}
}

func TestIdempotencyReleasesServerErrors(t *testing.T) {
	store := newMemoryIdempotencyStore()
	var calls int
	handler := Idempotency(store, nil)(countingHandler(http.StatusServiceUnavailable, &calls))

	handler.ServeHTTP(httptest.NewRecorder(), placeOrder(`{}`, "retry-me"))
	handler.ServeHTTP(httptest.NewRecorder(), placeOrder(`{}`, "retry-me"))
	assert.Equal(t, 2, calls)
	assert.Empty(t, store.records)
}

func TestIdempotencyRejectsChangedBody(t *testing.T) {
	var calls int
	handler := Idempotency(newMemoryIdempotencyStore(), nil)(countingHandler(http.StatusOK, &calls))
	handler.ServeHTTP(httptest.NewRecorder(), placeOrder(`{"payment_method":"cod"}`, "xyz"))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, placeOrder(`{"payment_method":"wallet"}`, "xyz"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), string(pkgerrors.CodeIdempotency))
	assert.Equal(t, 1, calls)
}

func TestIdempotencyScopesKeys(t *testing.T) {
	var calls int
	handler := Idempotency(newMemoryIdempotencyStore(), nil)(countingHandler(http.StatusCreated, &calls))

	handler.ServeHTTP(httptest.NewRecorder(), placeOrder(`{}`, "shared"))
	handler.ServeHTTP(httptest.NewRecorder(), postAs("user-2", "/api/v1/checkout", `{}`, "shared"))
	handler.ServeHTTP(httptest.NewRecorder(), postAs("user-1", "/api/v1/orders/o-1/cancel", `{}`, "shared"))
	assert.Equal(t, 3, calls, "keys are scoped by user and route")
}

func TestIdempotencyRejectsConcurrentDuplicate(t *testing.T) {
	store := newMemoryIdempotencyStore()
	mw := Idempotency(store, nil)

	var dup *httptest.ResponseRecorder
	first := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// The retry lands while this request still holds the claim.
		dup = httptest.NewRecorder()
		mw(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Error("duplicate reached the handler")
		})).ServeHTTP(dup, placeOrder(`{"payment_method":"cod"}`, "busy"))
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	first.ServeHTTP(rec, placeOrder(`{"payment_method":"cod"}`, "busy"))
	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, dup)
	assert.Equal(t, http.StatusConflict, dup.Code)
	assert.Contains(t, dup.Body.String(), string(pkgerrors.CodeConflict))
}

func TestIdempotencyReleasesKeyOnPanic(t *testing.T) {
	store := newMemoryIdempotencyStore()
	handler := Idempotency(store, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	assert.Panics(t, func() {
		handler.ServeHTTP(httptest.NewRecorder(), placeOrder(`{}`, "crash"))
	})
	assert.Empty(t, store.records)
}

func TestIdempotencyIgnoresUnguardedRoutes(t *testing.T) {
	store := newMemoryIdempotencyStore()
	var calls int
	req := postAs("user-1", "/api/v1/checkout/quote", `{}`, "")
	rec := httptest.NewRecorder()
	Idempotency(store, nil)(countingHandler(http.StatusOK, &calls)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, calls)
	assert.Empty(t, store.records)
}
