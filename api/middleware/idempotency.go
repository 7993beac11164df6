package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-backend/api/responses"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"
	maxIdempotencyKey = 255

	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
	// pendingIdempotencyTTL bounds how long a crashed request blocks its key.
	pendingIdempotencyTTL = 2 * time.Minute
)

type idempotencyRule struct {
	method string
	match  func(path string) bool
	ttl    time.Duration
}

// Money-moving routes keep their keys for a week, the rest for a day. The
// first match wins.
var idempotencyRules = []idempotencyRule{
	{http.MethodPost, pathIs("/api/v1/checkout"), criticalIdempotencyTTL},
	{http.MethodPost, pathIs("/api/v1/payments/callback"), criticalIdempotencyTTL},
	{http.MethodPost, pathBetween("/api/v1/orders/", "/retry-payment"), criticalIdempotencyTTL},
	{http.MethodPost, pathBetween("/api/v1/orders/", "/cancel"), criticalIdempotencyTTL},
	{http.MethodPost, pathBetween("/api/admin/v1/wallets/", "/credit"), criticalIdempotencyTTL},
	{http.MethodPost, pathBetween("/api/admin/v1/orders/", "/cancel"), criticalIdempotencyTTL},
	{http.MethodPost, pathBetween("/api/admin/v1/orders/", "/return"), criticalIdempotencyTTL},
	{http.MethodPost, pathIs("/api/v1/payments/dismiss"), defaultIdempotencyTTL},
	{http.MethodPost, pathBetween("/api/v1/orders/", "/return"), defaultIdempotencyTTL},
	{http.MethodPost, pathBetween("/api/admin/v1/orders/", ""), defaultIdempotencyTTL},
}

const (
	recordPending = "pending"
	recordDone    = "done"
)

type idempotencyRecord struct {
	State       string `json:"state"`
	RequestHash string `json:"request_hash"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency guards the routes in idempotencyRules with the Idempotency-Key
// header. The key is claimed before the handler runs, so a concurrent retry
// gets 409 instead of a second execution. A completed response is replayed
// for the same body and a different body is rejected. 5xx responses and
// panics release the claim.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, guarded := routeTTL(r.Method, r.URL.Path)
			if !guarded || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			fail := func(err error) { responses.WriteError(ctx, logg, w, err) }

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			switch {
			case clientKey == "":
				fail(pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			case len(clientKey) > maxIdempotencyKey:
				fail(pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key too long"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				fail(pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			hash := hashBody(body)
			key := store.IdempotencyKey(UserIDFromContext(ctx)+"|"+r.Method+"|"+r.URL.Path, clientKey)

			claimed, err := claim(ctx, store, key, hash)
			if err != nil {
				fail(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				replay(ctx, store, key, hash, w, fail)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			stored := false
			defer func() {
				if !stored {
					if delErr := store.Del(context.WithoutCancel(ctx), key); delErr != nil && logg != nil {
						logg.Error(ctx, "release idempotency key", delErr)
					}
				}
			}()
			next.ServeHTTP(capture, r)

			status := capture.code()
			if status >= http.StatusInternalServerError {
				return
			}
			done, _ := json.Marshal(idempotencyRecord{
				State:       recordDone,
				RequestHash: hash,
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
			})
			if setErr := store.Set(context.WithoutCancel(ctx), key, string(done), ttl); setErr != nil {
				if logg != nil {
					logg.Error(ctx, "store idempotent response", setErr)
				}
				return
			}
			stored = true
		})
	}
}

func claim(ctx context.Context, store pkgredis.IdempotencyStore, key, hash string) (bool, error) {
	pending, _ := json.Marshal(idempotencyRecord{State: recordPending, RequestHash: hash})
	return store.SetNX(ctx, key, string(pending), pendingIdempotencyTTL)
}

func replay(ctx context.Context, store pkgredis.IdempotencyStore, key, hash string, w http.ResponseWriter, fail func(error)) {
	raw, err := store.Get(ctx, key)
	switch {
	case errors.Is(err, redis.Nil):
		// Released between our SETNX and GET; the client can retry at once.
		fail(pkgerrors.New(pkgerrors.CodeConflict, "request with this Idempotency-Key was just released, retry"))
		return
	case err != nil:
		fail(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read idempotency record"))
		return
	}
	var rec idempotencyRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		fail(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	switch {
	case rec.RequestHash != hash:
		fail(pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case rec.State != recordDone:
		fail(pkgerrors.New(pkgerrors.CodeConflict, "request with this Idempotency-Key is still in progress"))
	default:
		if rec.ContentType != "" {
			w.Header().Set("Content-Type", rec.ContentType)
		}
		w.Header().Set(replayedHeader, "true")
		w.WriteHeader(rec.Status)
		_, _ = w.Write(rec.Body)
	}
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// routeTTL matches the raw path: subrouter middleware runs before chi has
// resolved the full route pattern.
func routeTTL(method, path string) (time.Duration, bool) {
	for _, rule := range idempotencyRules {
		if rule.method == method && rule.match(path) {
			return rule.ttl, true
		}
	}
	return 0, false
}

func pathIs(want string) func(string) bool {
	return func(path string) bool { return strings.TrimSuffix(path, "/") == want }
}

func pathBetween(prefix, suffix string) func(string) bool {
	return func(path string) bool {
		return strings.HasPrefix(path, prefix) && strings.HasSuffix(path, suffix)
	}
}

// responseCapture tees the response body so it can be stored for replay.
type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseCapture) code() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}
