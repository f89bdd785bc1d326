package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/platinummonkey/classroom/pkg/auth"
	"github.com/platinummonkey/classroom/pkg/middleware"
	"github.com/platinummonkey/classroom/pkg/observability"
	"github.com/platinummonkey/classroom/pkg/storage"
)

const testPassword = "correct-horse"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	server  *Server
	store   *storage.SQLStore
	codec   *auth.TokenCodec
	clock   *testClock
	hasher  auth.PasswordHasher
	metrics *observability.Metrics
	logs    *bytes.Buffer
}

type envOption func(*Options)

func withLimiter(l middleware.Limiter) envOption {
	return func(o *Options) { o.LoginLimiter = l }
}

func withTrustedProxies(tp *auth.TrustedProxies) envOption {
	return func(o *Options) { o.TrustedProxies = tp }
}

func newTestEnv(t *testing.T, cacheTTL time.Duration, opts ...envOption) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := storage.Open(ctx, storage.Config{
		Driver: storage.DriverSQLite,
		URL:    "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=1",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.Migrate(ctx, db, storage.DriverSQLite))
	store := storage.NewSQLStore(db, storage.DriverSQLite)

	clock := &testClock{now: time.Now().UTC()}
	codec, err := auth.NewTokenCodec(auth.TokenConfig{
		SigningKey: []byte("0123456789abcdef0123456789abcdef"),
		Now:        clock.Now,
	})
	require.NoError(t, err)

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	resolverOpts := []auth.ResolverOption{auth.WithResolverMetrics(metrics)}
	if cacheTTL > 0 {
		resolverOpts = append(resolverOpts, auth.WithPrincipalCache(auth.NewPrincipalCache(100, cacheTTL)))
	}
	resolver := auth.NewIdentityResolver(codec, store, resolverOpts...)

	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	verifier, err := auth.NewCredentialVerifier(store, hasher)
	require.NoError(t, err)

	logs := &bytes.Buffer{}
	o := Options{
		Store:    store,
		Codec:    codec,
		Resolver: resolver,
		Verifier: verifier,
		Hasher:   hasher,
		Logger:   observability.NewLogger(observability.DebugLevel, logs),
		Metrics:  metrics,
		Health:   observability.NewHealthChecker(db, nil, "test"),
	}
	for _, opt := range opts {
		opt(&o)
	}

	server, err := NewServer(o)
	require.NoError(t, err)

	return &testEnv{
		server:  server,
		store:   store,
		codec:   codec,
		clock:   clock,
		hasher:  hasher,
		metrics: metrics,
		logs:    logs,
	}
}

func (e *testEnv) addUser(t *testing.T, username string, role auth.Role) *auth.User {
	t.Helper()
	hash, err := e.hasher.Hash(testPassword)
	require.NoError(t, err)
	u := &auth.User{Username: username, Email: username + "@example.com", PasswordHash: hash, Role: role}
	require.NoError(t, e.store.Save(context.Background(), u))
	return u
}

func (e *testEnv) tokenFor(t *testing.T, u *auth.User) string {
	t.Helper()
	token, err := e.codec.Issue(*u.Principal())
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	req := newRequest(t, method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func newRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "192.0.2.10:4321"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func loginRequest(t *testing.T, body LoginRequest) *http.Request {
	t.Helper()
	return newRequest(t, http.MethodPost, "/auth/login", body)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest))
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	decode(t, rec, &body)
	return body["error"]
}
