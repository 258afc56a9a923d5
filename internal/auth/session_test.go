package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fitbit-insights/internal/store"
)

type testEnv struct {
	server    *httptest.Server
	backend   *store.FileStore
	tokens    *TokenStore
	session   *Session
	apiCalls  atomic.Int32
	refreshes atomic.Int32
}

// newTestEnv wires a Session against a fake API (under /api) and token
// endpoint. tokenStatus/tokenBody override the token endpoint response.
func newTestEnv(t *testing.T, seed Credentials, api http.HandlerFunc, tokenStatus int, tokenBody string) *testEnv {
	t.Helper()
	env := &testEnv{}

	mux := http.NewServeMux()
	mux.HandleFunc("/api", func(w http.ResponseWriter, r *http.Request) {
		env.apiCalls.Add(1)
		api(w, r)
	})
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		env.refreshes.Add(1)
		id, secret, ok := r.BasicAuth()
		if !ok || id != "client" || secret != "secret" {
			t.Errorf("token request basic auth = %q/%q (ok=%v)", id, secret, ok)
		}
		if got := r.FormValue("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.FormValue("refresh_token"); got != "r1" {
			t.Errorf("refresh_token = %q, want r1", got)
		}
		w.Header().Set("Content-Type", "application/json")
		if tokenStatus != 0 {
			w.WriteHeader(tokenStatus)
		}
		if tokenBody == "" {
			tokenBody = `{"access_token":"new","refresh_token":"r2","expires_in":28800,"token_type":"Bearer","user_id":"ABC123"}`
		}
		w.Write([]byte(tokenBody))
	})
	env.server = httptest.NewServer(mux)
	t.Cleanup(env.server.Close)

	env.backend = store.NewFileStore(filepath.Join(t.TempDir(), "tokens.json"))
	env.tokens = NewTokenStore(env.backend, seed)
	if err := env.tokens.Save(seed); err != nil {
		t.Fatalf("seeding store: %v", err)
	}

	oauthCfg := NewOAuthConfig(Config{
		ClientID:     seed.ClientID,
		ClientSecret: seed.ClientSecret,
		TokenURL:     env.server.URL + "/oauth2/token",
	})
	env.session = NewSession(env.tokens, oauthCfg, env.server.Client())
	return env
}

func validSeed() Credentials {
	return Credentials{
		ClientID:     "client",
		ClientSecret: "secret",
		AccessToken:  "old",
		RefreshToken: "r1",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
}

func acceptToken(token string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}
}

func TestSessionDoValidToken(t *testing.T) {
	env := newTestEnv(t, validSeed(), acceptToken("old"), 0, "")

	resp, err := env.session.Do(context.Background(), http.MethodGet, env.server.URL+"/api", nil)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if n := env.refreshes.Load(); n != 0 {
		t.Errorf("refreshes = %d, want 0", n)
	}
}

func TestSessionRefreshesOn401(t *testing.T) {
	env := newTestEnv(t, validSeed(), acceptToken("new"), 0, "")

	resp, err := env.session.Do(context.Background(), http.MethodGet, env.server.URL+"/api", nil)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()

	if n := env.apiCalls.Load(); n != 2 {
		t.Errorf("api calls = %d, want 2", n)
	}
	if n := env.refreshes.Load(); n != 1 {
		t.Errorf("refreshes = %d, want 1", n)
	}

	stored, err := env.backend.GetAuth()
	if err != nil {
		t.Fatalf("GetAuth() error = %v", err)
	}
	if stored.AccessToken != "new" || stored.RefreshToken != "r2" || stored.UserID != "ABC123" {
		t.Errorf("stored = %+v, want rotated tokens", stored)
	}
	if time.Until(stored.ExpiresAt) < 7*time.Hour {
		t.Errorf("ExpiresAt = %v, want ~8h from now", stored.ExpiresAt)
	}
	if cur := env.tokens.Current(); cur.AccessToken != "new" {
		t.Errorf("Current().AccessToken = %q, want new", cur.AccessToken)
	}
}

func TestSessionSecond401Fails(t *testing.T) {
	env := newTestEnv(t, validSeed(), func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, 0, "")

	_, err := env.session.Do(context.Background(), http.MethodGet, env.server.URL+"/api", nil)
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("Do() error = %v, want ErrAuth", err)
	}
	if n := env.apiCalls.Load(); n != 2 {
		t.Errorf("api calls = %d, want 2", n)
	}
	if n := env.refreshes.Load(); n != 1 {
		t.Errorf("refreshes = %d, want 1", n)
	}
}

func TestSessionProactiveRefresh(t *testing.T) {
	seed := validSeed()
	seed.ExpiresAt = time.Now().Add(30 * time.Second)

	t.Run("refreshes before sending", func(t *testing.T) {
		env := newTestEnv(t, seed, acceptToken("new"), 0, "")

		resp, err := env.session.Do(context.Background(), http.MethodGet, env.server.URL+"/api", nil)
		if err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		resp.Body.Close()

		if n := env.apiCalls.Load(); n != 1 {
			t.Errorf("api calls = %d, want 1", n)
		}
		if n := env.refreshes.Load(); n != 1 {
			t.Errorf("refreshes = %d, want 1", n)
		}
	})

	t.Run("401 after proactive refresh is not retried", func(t *testing.T) {
		env := newTestEnv(t, seed, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}, 0, "")

		_, err := env.session.Do(context.Background(), http.MethodGet, env.server.URL+"/api", nil)
		if !errors.Is(err, ErrAuth) {
			t.Fatalf("Do() error = %v, want ErrAuth", err)
		}
		if n := env.apiCalls.Load(); n != 1 {
			t.Errorf("api calls = %d, want 1", n)
		}
		if n := env.refreshes.Load(); n != 1 {
			t.Errorf("refreshes = %d, want 1", n)
		}
	})
}

func TestSessionInvalidGrant(t *testing.T) {
	body := `{"errors":[{"errorType":"invalid_grant","message":"Refresh token invalid: r1"}],"success":false}`
	env := newTestEnv(t, validSeed(), func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, http.StatusBadRequest, body)

	_, err := env.session.Do(context.Background(), http.MethodGet, env.server.URL+"/api", nil)
	if !errors.Is(err, ErrReauthorize) {
		t.Fatalf("Do() error = %v, want ErrReauthorize", err)
	}
	if !errors.Is(err, ErrAuth) {
		t.Errorf("ErrReauthorize should wrap ErrAuth")
	}
	if !strings.Contains(err.Error(), "fitbit-insights auth") {
		t.Errorf("error %q should tell the user how to recover", err)
	}

	stored, err := env.backend.GetAuth()
	if err != nil {
		t.Fatalf("GetAuth() error = %v", err)
	}
	if stored.AccessToken != "old" || stored.RefreshToken != "r1" {
		t.Errorf("stored = %+v, want untouched credentials", stored)
	}
}

func TestSessionTokenEndpointServerError(t *testing.T) {
	env := newTestEnv(t, validSeed(), func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, http.StatusInternalServerError, `{"errors":[{"errorType":"system","message":"boom"}]}`)

	_, err := env.session.Do(context.Background(), http.MethodGet, env.server.URL+"/api", nil)
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("Do() error = %v, want ErrAuth", err)
	}
	if errors.Is(err, ErrReauthorize) {
		t.Errorf("a server error should not demand re-authorization")
	}
}

func TestSessionTokenEndpointTimeout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(300 * time.Millisecond):
		case <-r.Context().Done():
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	backend := store.NewFileStore(filepath.Join(t.TempDir(), "tokens.json"))
	tokens := NewTokenStore(backend, validSeed())
	if err := tokens.Save(validSeed()); err != nil {
		t.Fatal(err)
	}
	oauthCfg := NewOAuthConfig(Config{ClientID: "client", ClientSecret: "secret", TokenURL: srv.URL + "/oauth2/token"})
	session := NewSession(tokens, oauthCfg, &http.Client{Timeout: 50 * time.Millisecond})

	_, err := session.Do(context.Background(), http.MethodGet, srv.URL+"/api", nil)
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("Do() error = %v, want ErrAuth", err)
	}
	if errors.Is(err, ErrReauthorize) {
		t.Errorf("a timeout should not demand re-authorization")
	}

	stored, err := backend.GetAuth()
	if err != nil {
		t.Fatalf("GetAuth() error = %v", err)
	}
	if stored.AccessToken != "old" || stored.RefreshToken != "r1" {
		t.Errorf("stored = %+v, want untouched credentials", stored)
	}
}

func TestClassifyRefreshError(t *testing.T) {
	timeout := fmt.Errorf("Post token: %w", context.DeadlineExceeded)

	t.Run("client timeout is an auth failure", func(t *testing.T) {
		if err := classifyRefreshError(context.Background(), timeout); !errors.Is(err, ErrAuth) {
			t.Errorf("classifyRefreshError() = %v, want ErrAuth", err)
		}
	})

	t.Run("caller cancellation passes through", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := classifyRefreshError(ctx, fmt.Errorf("Post token: %w", context.Canceled))
		if errors.Is(err, ErrAuth) {
			t.Errorf("classifyRefreshError() = %v, should not wrap ErrAuth", err)
		}
		if !errors.Is(err, context.Canceled) {
			t.Errorf("classifyRefreshError() = %v, want context.Canceled", err)
		}
	})
}

func TestSessionConcurrentRefreshOnce(t *testing.T) {
	env := newTestEnv(t, validSeed(), acceptToken("new"), 0, "")

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := env.session.Do(context.Background(), http.MethodGet, env.server.URL+"/api", nil)
			if err != nil {
				errs <- err
				return
			}
			resp.Body.Close()
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Do() error = %v", err)
	}
	if n := env.refreshes.Load(); n != 1 {
		t.Errorf("refreshes = %d, want exactly 1", n)
	}
}

func TestSessionSendsQueryParams(t *testing.T) {
	var gotQuery string
	env := newTestEnv(t, validSeed(), func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{}`))
	}, 0, "")

	resp, err := env.session.Do(context.Background(), http.MethodGet, env.server.URL+"/api",
		map[string][]string{"date": {"2024-01-01"}})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()

	if gotQuery != "date=2024-01-01" {
		t.Errorf("query = %q", gotQuery)
	}
}

func TestTokenStoreLoad(t *testing.T) {
	t.Run("missing fields", func(t *testing.T) {
		ts := NewTokenStore(store.NewFileStore(filepath.Join(t.TempDir(), "tokens.json")), Credentials{ClientID: "client"})
		_, err := ts.Load()
		if !errors.Is(err, ErrConfig) {
			t.Fatalf("Load() error = %v, want ErrConfig", err)
		}
		for _, field := range []string{"client_secret", "refresh_token"} {
			if !strings.Contains(err.Error(), field) {
				t.Errorf("error %q should name %s", err, field)
			}
		}
	})

	t.Run("falls back to seed tokens", func(t *testing.T) {
		seed := Credentials{ClientID: "client", ClientSecret: "secret", RefreshToken: "env-refresh"}
		ts := NewTokenStore(store.NewFileStore(filepath.Join(t.TempDir(), "tokens.json")), seed)
		creds, err := ts.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if creds.RefreshToken != "env-refresh" {
			t.Errorf("RefreshToken = %q, want env-refresh", creds.RefreshToken)
		}
	})

	t.Run("stored tokens win over seed", func(t *testing.T) {
		backend := store.NewFileStore(filepath.Join(t.TempDir(), "tokens.json"))
		if err := backend.SaveAuth(&store.Auth{AccessToken: "stored", RefreshToken: "stored-r", UserID: "U1"}); err != nil {
			t.Fatal(err)
		}
		seed := Credentials{ClientID: "client", ClientSecret: "secret", RefreshToken: "env-refresh"}
		creds, err := NewTokenStore(backend, seed).Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if creds.AccessToken != "stored" || creds.RefreshToken != "stored-r" || creds.UserID != "U1" {
			t.Errorf("creds = %+v", creds)
		}
		if creds.ClientSecret != "secret" {
			t.Errorf("client credentials should come from the seed")
		}
	})
}

func TestCredentialsRedaction(t *testing.T) {
	creds := Credentials{
		ClientID:     "client",
		ClientSecret: "supersecretvalue",
		AccessToken:  "eyJhbGciOiJIUzI1NiJ9.payload",
		RefreshToken: "refresh-token-value",
	}

	out := creds.String()
	for _, secret := range []string{creds.ClientSecret, creds.AccessToken, creds.RefreshToken} {
		if strings.Contains(out, secret) {
			t.Errorf("String() leaks %q: %s", secret, out)
		}
	}

	logged := creds.LogValue().String()
	if strings.Contains(logged, creds.AccessToken) {
		t.Errorf("LogValue() leaks access token: %s", logged)
	}
}

func TestCredentialsExpired(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		creds Credentials
		want  bool
	}{
		{"no access token", Credentials{}, true},
		{"unknown expiry", Credentials{AccessToken: "a"}, false},
		{"inside margin", Credentials{AccessToken: "a", ExpiresAt: now.Add(59 * time.Second)}, true},
		{"outside margin", Credentials{AccessToken: "a", ExpiresAt: now.Add(2 * time.Minute)}, false},
		{"already expired", Credentials{AccessToken: "a", ExpiresAt: now.Add(-time.Minute)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.creds.Expired(time.Minute, now); got != tt.want {
				t.Errorf("Expired() = %v, want %v", got, tt.want)
			}
		})
	}
}
