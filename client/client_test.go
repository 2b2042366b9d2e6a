package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"botadmin/internal/metrics"
	"botadmin/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.InitLogger("test")
}

type recordingNavigator struct {
	mu     sync.Mutex
	routes []string
}

func (n *recordingNavigator) Replace(_ context.Context, route string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes = append(n.routes, route)
}

func (n *recordingNavigator) Routes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.routes...)
}

// queueObserver signals every request that joins the pending queue.
type queueObserver struct {
	metrics.ClientObserver
	queued chan struct{}
}

func newQueueObserver(size int) *queueObserver {
	return &queueObserver{ClientObserver: metrics.NewNopObserver(), queued: make(chan struct{}, size)}
}

func (o *queueObserver) IncQueued() { o.queued <- struct{}{} }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func seededStore(t *testing.T, access, refresh string) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, AccessTokenKey, access))
	require.NoError(t, store.Set(ctx, RefreshTokenKey, refresh))
	return store
}

func newTestClient(t *testing.T, srv *httptest.Server, store TokenStore, configure ...func(*Options)) (*Client, *recordingNavigator) {
	t.Helper()
	nav := &recordingNavigator{}
	opts := Options{
		BaseURL:   srv.URL + "/api",
		Store:     store,
		Navigator: nav,
	}
	for _, fn := range configure {
		fn(&opts)
	}
	c, err := New(opts)
	require.NoError(t, err)
	return c, nav
}

func storedTokens(t *testing.T, store TokenStore) (string, string) {
	t.Helper()
	ctx := context.Background()
	access, err := store.Get(ctx, AccessTokenKey)
	require.NoError(t, err)
	refresh, err := store.Get(ctx, RefreshTokenKey)
	require.NoError(t, err)
	return access, refresh
}

// refreshingAPI accepts only the "valid" access token on /api/items/ and
// mints it on /api/token/refresh/.
type refreshingAPI struct {
	valid        string
	refreshCalls atomic.Int32
	refreshBody  atomic.Value
	hold         func() // runs inside the refresh handler before it answers
	refreshFails bool
}

func (a *refreshingAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/items/", func(w http.ResponseWriter, r *http.Request) {
		if bearer(r) != a.valid {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Given token not valid for any token type"})
			return
		}
		body, _ := io.ReadAll(r.Body)
		writeJSON(w, http.StatusOK, map[string]string{"token": bearer(r), "body": string(body)})
	})
	mux.HandleFunc("/api/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		a.refreshCalls.Add(1)
		body, _ := io.ReadAll(r.Body)
		a.refreshBody.Store(string(body))
		if a.hold != nil {
			a.hold()
		}
		if a.refreshFails {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token is invalid or expired", "code": "token_not_valid"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"access": a.valid})
	})
	return mux
}

func TestDoAttachesBearerToken(t *testing.T) {
	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv, seededStore(t, "A1", "R1"))
	require.NoError(t, c.Get(context.Background(), "/goods/", nil, nil))
	require.Equal(t, "Bearer A1", got.Load())
}

func TestDoWithoutTokenSendsNoAuthorization(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv, NewMemoryStore())
	require.NoError(t, c.Get(context.Background(), "goods/", nil, nil))
}

func TestRefreshScenario(t *testing.T) {
	api := &refreshingAPI{valid: "A2"}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	store := seededStore(t, "A1", "R1")
	c, nav := newTestClient(t, srv, store)

	var out map[string]string
	require.NoError(t, c.Get(context.Background(), "items/", nil, &out))

	require.Equal(t, "A2", out["token"])
	require.EqualValues(t, 1, api.refreshCalls.Load())
	require.JSONEq(t, `{"refresh":"R1"}`, api.refreshBody.Load().(string))

	access, refresh := storedTokens(t, store)
	require.Equal(t, "A2", access)
	require.Equal(t, "R1", refresh)
	require.Empty(t, nav.Routes())
}

func TestRefreshedTokenUsedBySubsequentRequests(t *testing.T) {
	api := &refreshingAPI{valid: "A2"}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	c, _ := newTestClient(t, srv, seededStore(t, "A1", "R1"))
	ctx := context.Background()
	require.NoError(t, c.Get(ctx, "items/", nil, nil))

	for i := 0; i < 3; i++ {
		var out map[string]string
		require.NoError(t, c.Get(ctx, "items/", nil, &out))
		require.Equal(t, "A2", out["token"])
	}
	require.EqualValues(t, 1, api.refreshCalls.Load())
}

func TestRetryReplaysRequestBody(t *testing.T) {
	api := &refreshingAPI{valid: "A2"}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	c, _ := newTestClient(t, srv, seededStore(t, "A1", "R1"))

	var out map[string]string
	require.NoError(t, c.Post(context.Background(), "items/", map[string]string{"title": "Tea"}, &out))
	require.JSONEq(t, `{"title":"Tea"}`, out["body"])
}

func TestNoRefreshTokenTerminatesImmediately(t *testing.T) {
	api := &refreshingAPI{valid: "A2"}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	store := NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), AccessTokenKey, "A1"))
	c, nav := newTestClient(t, srv, store)

	err := c.Get(context.Background(), "items/", nil, nil)
	require.ErrorIs(t, err, ErrSessionTerminated)
	require.Equal(t, http.StatusUnauthorized, StatusCode(err))
	require.Zero(t, api.refreshCalls.Load())

	access, refresh := storedTokens(t, store)
	require.Empty(t, access)
	require.Empty(t, refresh)
	require.Equal(t, []string{"/login"}, nav.Routes())
}

func TestTokenEndpointUnauthorizedNeverRefreshes(t *testing.T) {
	var refreshCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "No active account found with the given credentials"})
	})
	mux.HandleFunc("/api/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token is invalid or expired"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := seededStore(t, "A1", "R1")
	c, nav := newTestClient(t, srv, store)
	ctx := context.Background()

	_, err := c.Login(ctx, "admin", "wrong")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrSessionTerminated)
	require.Equal(t, "No active account found with the given credentials", NormalizeError(err))

	_, err = c.RefreshTokens(ctx, "R1")
	require.Equal(t, http.StatusUnauthorized, StatusCode(err))

	require.Equal(t, int32(1), refreshCalls.Load(), "only the explicit RefreshTokens call hits the endpoint")
	access, refresh := storedTokens(t, store)
	require.Equal(t, "A1", access)
	require.Equal(t, "R1", refresh)
	require.Empty(t, nav.Routes())
}

func TestSecondUnauthorizedAfterRetryIsTerminal(t *testing.T) {
	var refreshCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/items/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "nope"})
	})
	mux.HandleFunc("/api/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		writeJSON(w, http.StatusOK, map[string]string{"access": "A2"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := seededStore(t, "A1", "R1")
	c, nav := newTestClient(t, srv, store)

	err := c.Get(context.Background(), "items/", nil, nil)
	require.ErrorIs(t, err, ErrSessionTerminated)
	require.EqualValues(t, 1, refreshCalls.Load())

	access, refresh := storedTokens(t, store)
	require.Empty(t, access)
	require.Empty(t, refresh)
	require.Equal(t, []string{"/login"}, nav.Routes())
}

func TestConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	const n = 8
	var unauthorized atomic.Int32
	allFailed := make(chan struct{})
	var once sync.Once

	api := &refreshingAPI{valid: "A2"}
	api.hold = func() {
		select {
		case <-allFailed:
		case <-time.After(5 * time.Second):
		}
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/items/", func(w http.ResponseWriter, r *http.Request) {
		if bearer(r) != api.valid {
			if unauthorized.Add(1) == n {
				once.Do(func() { close(allFailed) })
			}
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": bearer(r)})
	})
	mux.Handle("/api/token/refresh/", api.handler())
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := seededStore(t, "A1", "R1")
	c, nav := newTestClient(t, srv, store)

	var wg sync.WaitGroup
	tokens := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var out map[string]string
			errs[i] = c.Get(context.Background(), "items/", nil, &out)
			tokens[i] = out["token"]
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, "A2", tokens[i])
	}
	require.EqualValues(t, n, unauthorized.Load())
	require.EqualValues(t, 1, api.refreshCalls.Load())

	access, refresh := storedTokens(t, store)
	require.Equal(t, "A2", access)
	require.Equal(t, "R1", refresh)
	require.Empty(t, nav.Routes())
}

func TestSecondRequestQueuesBehindRunningRefresh(t *testing.T) {
	obs := newQueueObserver(2)
	api := &refreshingAPI{valid: "A2"}
	api.hold = func() {
		select {
		case <-obs.queued:
		case <-time.After(5 * time.Second):
			t.Error("second request never joined the queue")
		}
	}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	c, _ := newTestClient(t, srv, seededStore(t, "A1", "R1"), func(o *Options) { o.Observer = obs })

	var wg sync.WaitGroup
	results := make(chan string, 2)
	for _, name := range []string{"X", "Y"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			var out map[string]string
			if err := c.Get(context.Background(), "items/", nil, &out); err != nil {
				t.Errorf("request %s: %v", name, err)
				return
			}
			results <- out["token"]
		}(name)
	}
	wg.Wait()
	close(results)

	for token := range results {
		require.Equal(t, "A2", token)
	}
	require.EqualValues(t, 1, api.refreshCalls.Load())
}

func TestRefreshFailureRejectsEveryWaiter(t *testing.T) {
	const n = 5
	obs := newQueueObserver(n)
	api := &refreshingAPI{valid: "A2", refreshFails: true}
	api.hold = func() {
		for i := 0; i < n-1; i++ {
			select {
			case <-obs.queued:
			case <-time.After(5 * time.Second):
				return
			}
		}
	}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	store := seededStore(t, "A1", "R1")
	c, nav := newTestClient(t, srv, store, func(o *Options) { o.Observer = obs })

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.Get(context.Background(), "items/", nil, nil)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.ErrorIs(t, err, ErrSessionTerminated)
		require.Equal(t, http.StatusUnauthorized, StatusCode(err))
	}
	require.EqualValues(t, 1, api.refreshCalls.Load())

	access, refresh := storedTokens(t, store)
	require.Empty(t, access)
	require.Empty(t, refresh)
	require.Contains(t, nav.Routes(), "/login")
}

func TestRefreshWithoutAccessInResponseIsTerminal(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/items/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "expired"})
	})
	mux.HandleFunc("/api/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := seededStore(t, "A1", "R1")
	c, nav := newTestClient(t, srv, store)

	err := c.Get(context.Background(), "items/", nil, nil)
	require.ErrorIs(t, err, ErrSessionTerminated)
	require.ErrorIs(t, err, ErrNoAccessToken)
	access, _ := storedTokens(t, store)
	require.Empty(t, access)
	require.Equal(t, []string{"/login"}, nav.Routes())
}

func TestOtherStatusesPassThrough(t *testing.T) {
	var refreshCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/items/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "admins only"})
	})
	mux.HandleFunc("/api/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := seededStore(t, "A1", "R1")
	c, nav := newTestClient(t, srv, store)

	err := c.Get(context.Background(), "items/", nil, nil)
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusForbidden, httpErr.StatusCode)
	require.Equal(t, "admins only", NormalizeError(err))
	require.Zero(t, refreshCalls.Load())

	access, refresh := storedTokens(t, store)
	require.Equal(t, "A1", access)
	require.Equal(t, "R1", refresh)
	require.Empty(t, nav.Routes())
}

func TestUnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c, nav := newTestClient(t, srv, seededStore(t, "A1", "R1"))
	srv.Close()

	err := c.Get(context.Background(), "items/", nil, nil)
	require.ErrorIs(t, err, ErrUnreachable)
	require.Equal(t, "cannot reach server", NormalizeError(err))
	require.Empty(t, nav.Routes())
}

func TestTimeoutNeverTriggersRefresh(t *testing.T) {
	var refreshCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/items/", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	mux.HandleFunc("/api/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := seededStore(t, "A1", "R1")
	c, _ := newTestClient(t, srv, store, func(o *Options) { o.Timeout = 50 * time.Millisecond })

	err := c.Get(context.Background(), "items/", nil, nil)
	require.ErrorIs(t, err, ErrUnreachable)
	require.Zero(t, refreshCalls.Load())
	access, _ := storedTokens(t, store)
	require.Equal(t, "A1", access)
}

func TestLoginStoresTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/token/", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "admin", body["username"])
		writeJSON(w, http.StatusOK, map[string]string{"access": "A1", "refresh": "R1"})
	}))
	defer srv.Close()

	store := NewMemoryStore()
	c, _ := newTestClient(t, srv, store)
	ctx := context.Background()

	pair, err := c.Login(ctx, "admin", "secret")
	require.NoError(t, err)
	require.Equal(t, "A1", pair.Access)
	require.True(t, c.Authenticated(ctx))

	access, refresh := storedTokens(t, store)
	require.Equal(t, "A1", access)
	require.Equal(t, "R1", refresh)
}

func TestLoginRejectsIncompletePair(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"access": "A1"})
	}))
	defer srv.Close()

	store := NewMemoryStore()
	c, _ := newTestClient(t, srv, store)

	_, err := c.Login(context.Background(), "admin", "secret")
	require.ErrorIs(t, err, ErrMalformedTokens)
	require.False(t, c.Authenticated(context.Background()))
}

func TestLogout(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{name: "blacklist succeeds", status: http.StatusOK},
		{name: "blacklist fails", status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var blacklisted atomic.Value
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/api/token/blacklist/", r.URL.Path)
				var body map[string]string
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				blacklisted.Store(body["refresh"])
				writeJSON(w, tt.status, map[string]string{})
			}))
			defer srv.Close()

			store := seededStore(t, "A1", "R1")
			c, nav := newTestClient(t, srv, store)

			c.Logout(context.Background())

			require.Equal(t, "R1", blacklisted.Load())
			access, refresh := storedTokens(t, store)
			require.Empty(t, access)
			require.Empty(t, refresh)
			require.Equal(t, []string{"/login"}, nav.Routes())
		})
	}
}

func TestLogoutWithoutSessionSkipsBlacklist(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL.Path)
	}))
	defer srv.Close()

	c, nav := newTestClient(t, srv, NewMemoryStore())
	c.Logout(context.Background())
	require.Equal(t, []string{"/login"}, nav.Routes())
}

func TestCustomLoginRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{})
	}))
	defer srv.Close()

	c, nav := newTestClient(t, srv, NewMemoryStore(), func(o *Options) { o.LoginRoute = "/auth/sign-in" })
	err := c.Get(context.Background(), "items/", nil, nil)
	require.ErrorIs(t, err, ErrSessionTerminated)
	require.Equal(t, []string{"/auth/sign-in"}, nav.Routes())
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(Options{Store: NewMemoryStore()})
	require.Error(t, err)

	_, err = New(Options{BaseURL: "ftp://example.com", Store: NewMemoryStore()})
	require.Error(t, err)

	_, err = New(Options{BaseURL: "https://example.com/api"})
	require.Error(t, err)

	c, err := New(Options{BaseURL: "https://example.com/api/", Store: NewMemoryStore()})
	require.NoError(t, err)
	require.Equal(t, "https://example.com/api/", c.BaseURL())
	require.Equal(t, DefaultTimeout, c.httpClient.Timeout)
}

func TestMediaURL(t *testing.T) {
	c, err := New(Options{BaseURL: "https://bot.example.com/api", Store: NewMemoryStore()})
	require.NoError(t, err)

	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"https://cdn.example.com/a.png", "https://cdn.example.com/a.png"},
		{"/media/goods/a.png", "https://bot.example.com/media/goods/a.png"},
		{"media/goods/a.png", "https://bot.example.com/media/goods/a.png"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, c.MediaURL(tt.in), tt.in)
	}
}

func TestResolveKeepsAPIRoot(t *testing.T) {
	c, err := New(Options{BaseURL: "https://bot.example.com/api", Store: NewMemoryStore()})
	require.NoError(t, err)

	require.Equal(t, "https://bot.example.com/api/newsletters/progress/", c.resolve("/newsletters/progress/", nil))
	require.Equal(t, "https://bot.example.com/api/users/?only_admins=true", c.resolve("users/", map[string][]string{"only_admins": {"true"}}))
}

func TestRequestCancelledWhileQueued(t *testing.T) {
	release := make(chan struct{})
	obs := newQueueObserver(1)
	api := &refreshingAPI{valid: "A2"}
	api.hold = func() { <-release }
	srv := httptest.NewServer(api.handler())
	defer srv.Close()
	defer close(release)

	c, _ := newTestClient(t, srv, seededStore(t, "A1", "R1"), func(o *Options) { o.Observer = obs })

	go func() { _ = c.Get(context.Background(), "items/", nil, nil) }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		// wait until the first request owns the refresh cycle
		for api.refreshCalls.Load() == 0 {
			time.Sleep(time.Millisecond)
		}
		done <- c.Get(ctx, "items/", nil, nil)
	}()

	select {
	case <-obs.queued:
	case <-time.After(5 * time.Second):
		t.Fatal("request never queued")
	}
	cancel()

	err := <-done
	require.True(t, errors.Is(err, context.Canceled))
	require.NotErrorIs(t, err, ErrSessionTerminated)
}

func TestUnauthorizedAfterFinishedCycleRetriesWithNewToken(t *testing.T) {
	arrived := make(chan struct{})
	release := make(chan struct{})
	var releaseOnce sync.Once
	unblock := func() { releaseOnce.Do(func() { close(release) }) }
	defer unblock()

	api := &refreshingAPI{valid: "A2"}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/items/", func(w http.ResponseWriter, r *http.Request) {
		if bearer(r) == api.valid {
			writeJSON(w, http.StatusOK, map[string]string{"token": bearer(r)})
			return
		}
		if r.Header.Get("X-Request") == "slow" {
			close(arrived)
			<-release
		}
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "expired"})
	})
	mux.Handle("/api/token/refresh/", api.handler())
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := seededStore(t, "A1", "R1")
	c, nav := newTestClient(t, srv, store)

	type result struct {
		resp *Response
		err  error
	}
	slow := make(chan result, 1)
	go func() {
		req := &Request{Method: http.MethodGet, Path: "items/", Header: http.Header{"X-Request": {"slow"}}}
		resp, err := c.Do(context.Background(), req)
		slow <- result{resp, err}
	}()

	select {
	case <-arrived:
	case <-time.After(5 * time.Second):
		t.Fatal("slow request never reached the server")
	}

	// The fast request runs a whole cycle while the slow one still holds A1.
	var out map[string]string
	require.NoError(t, c.Get(context.Background(), "items/", nil, &out))
	require.Equal(t, "A2", out["token"])
	require.EqualValues(t, 1, api.refreshCalls.Load())

	unblock()
	res := <-slow
	require.NoError(t, res.err)
	var slowOut map[string]string
	require.NoError(t, res.resp.Decode(&slowOut))
	require.Equal(t, "A2", slowOut["token"])
	require.EqualValues(t, 1, api.refreshCalls.Load())

	access, refresh := storedTokens(t, store)
	require.Equal(t, "A2", access)
	require.Equal(t, "R1", refresh)
	require.Empty(t, nav.Routes())
}

// Two clients over one store stand for two CLI processes sharing credentials.
func TestClientsSharingStoreRefreshIndependently(t *testing.T) {
	var valid atomic.Value
	valid.Store("A2")
	var refreshCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/api/items/", func(w http.ResponseWriter, r *http.Request) {
		if bearer(r) != valid.Load().(string) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": bearer(r)})
	})
	mux.HandleFunc("/api/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		writeJSON(w, http.StatusOK, map[string]string{"access": valid.Load().(string)})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := seededStore(t, "A1", "R1")
	first, firstNav := newTestClient(t, srv, store)
	second, secondNav := newTestClient(t, srv, store)

	get := func(c *Client) string {
		t.Helper()
		var out map[string]string
		require.NoError(t, c.Get(context.Background(), "items/", nil, &out))
		return out["token"]
	}

	require.Equal(t, "A2", get(first))
	valid.Store("A3")
	require.Equal(t, "A3", get(second))

	// first still remembers A2 from its own cycle; the stored A3 has expired.
	valid.Store("A4")
	before := refreshCalls.Load()
	require.Equal(t, "A4", get(first))
	require.EqualValues(t, 1, refreshCalls.Load()-before)

	access, refresh := storedTokens(t, store)
	require.Equal(t, "A4", access)
	require.Equal(t, "R1", refresh)
	require.Empty(t, firstNav.Routes())
	require.Empty(t, secondNav.Routes())
}
