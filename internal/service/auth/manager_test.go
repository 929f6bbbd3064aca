package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"MarketSync/internal/domain/models"
	"MarketSync/internal/service/kvstore"
	"MarketSync/pkg/cache"
	xhttp "MarketSync/pkg/http"
)

func signToken(t *testing.T, exp time.Time) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()}).
		SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

type loginServer struct {
	*httptest.Server
	hits atomic.Int32
}

func newLoginServer(t *testing.T, token func() string, delay time.Duration) *loginServer {
	t.Helper()
	ls := &loginServer{}
	ls.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ls.hits.Add(1)
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		time.Sleep(delay)
		_ = json.NewEncoder(w).Encode(map[string]string{"token": token()})
	}))
	t.Cleanup(ls.Close)
	return ls
}

func TestConcurrentCallersShareOneAcquisition(t *testing.T) {
	tok := signToken(t, time.Now().Add(time.Hour))
	srv := newLoginServer(t, func() string { return tok }, 50*time.Millisecond)

	acq := NewHTTPAcquirer(xhttp.NewClient(), srv.URL, LiveCredentials{APIKey: "k"})
	m := NewManager(nil, acq, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := m.Token(context.Background(), models.TokenLive)
			if err != nil {
				errs <- err
				return
			}
			if got != tok {
				errs <- errors.New("unexpected token")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
	if n := srv.hits.Load(); n != 1 {
		t.Fatalf("login requests = %d, want 1", n)
	}
}

func TestCachedTokenReusedUntilExpiry(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	tok := signToken(t, now.Add(10*time.Minute))
	srv := newLoginServer(t, func() string { return tok }, 0)

	m := NewManager(nil, NewHTTPAcquirer(xhttp.NewClient(), srv.URL, nil), nil, WithClock(clock))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := m.Token(ctx, models.TokenLive); err != nil {
			t.Fatalf("Token: %v", err)
		}
	}
	if n := srv.hits.Load(); n != 1 {
		t.Fatalf("login requests = %d, want 1", n)
	}

	now = now.Add(11 * time.Minute)
	if _, err := m.Token(ctx, models.TokenLive); err != nil {
		t.Fatalf("Token: %v", err)
	}
	if n := srv.hits.Load(); n != 2 {
		t.Fatalf("login requests after expiry = %d, want 2", n)
	}
}

func TestPersistedHistoricalTokenReused(t *testing.T) {
	ctx := context.Background()
	store := kvstore.New(cache.NewMemoryCache(), nil)
	persisted := signToken(t, time.Now().Add(time.Hour))
	if err := kvstore.Set(ctx, store, PersistKey, persisted, kvstore.NoExpiry); err != nil {
		t.Fatalf("seed: %v", err)
	}

	srv := newLoginServer(t, func() string { return "unused" }, 0)
	m := NewManager(NewHTTPAcquirer(xhttp.NewClient(), srv.URL, HistoricalCredentials{}), nil, store)

	got, err := m.Token(ctx, models.TokenHistorical)
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if got != persisted {
		t.Fatal("expected persisted token")
	}
	if n := srv.hits.Load(); n != 0 {
		t.Fatalf("login requests = %d, want 0", n)
	}
}

func TestExpiredPersistedTokenReacquired(t *testing.T) {
	ctx := context.Background()
	store := kvstore.New(cache.NewMemoryCache(), nil)
	stale := signToken(t, time.Now().Add(-time.Minute))
	_ = kvstore.Set(ctx, store, PersistKey, stale, kvstore.NoExpiry)

	fresh := signToken(t, time.Now().Add(time.Hour))
	srv := newLoginServer(t, func() string { return fresh }, 0)
	m := NewManager(NewHTTPAcquirer(xhttp.NewClient(), srv.URL, HistoricalCredentials{}), nil, store)

	got, err := m.Token(ctx, models.TokenHistorical)
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if got != fresh {
		t.Fatal("expected freshly acquired token")
	}
	if v := kvstore.Get(ctx, store, PersistKey, "", kvstore.NoExpiry); v != fresh {
		t.Fatal("fresh token should be persisted")
	}
}

func TestInvalidateForcesNewLogin(t *testing.T) {
	ctx := context.Background()
	store := kvstore.New(cache.NewMemoryCache(), nil)
	tok := signToken(t, time.Now().Add(time.Hour))
	srv := newLoginServer(t, func() string { return tok }, 0)
	m := NewManager(NewHTTPAcquirer(xhttp.NewClient(), srv.URL, HistoricalCredentials{}), nil, store)

	if _, err := m.Token(ctx, models.TokenHistorical); err != nil {
		t.Fatalf("Token: %v", err)
	}
	m.Logout(ctx)
	if v := kvstore.Get(ctx, store, PersistKey, "", kvstore.NoExpiry); v != "" {
		t.Fatal("logout should clear the persisted token")
	}
	if _, err := m.Token(ctx, models.TokenHistorical); err != nil {
		t.Fatalf("Token: %v", err)
	}
	if n := srv.hits.Load(); n != 2 {
		t.Fatalf("login requests = %d, want 2", n)
	}
}

func TestAcquisitionFailures(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"non-ok status": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		},
		"empty token": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"token":""}`))
		},
		"no exp claim": func(w http.ResponseWriter, _ *http.Request) {
			s, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"}).SignedString([]byte("k"))
			_ = json.NewEncoder(w).Encode(map[string]string{"token": s})
		},
		"not a jwt": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"token":"abc"}`))
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()

			m := NewManager(nil, NewHTTPAcquirer(xhttp.NewClient(), srv.URL, nil), nil)
			_, err := m.Token(context.Background(), models.TokenLive)
			if !errors.Is(err, ErrAcquire) {
				t.Fatalf("err = %v, want ErrAcquire", err)
			}
		})
	}
}

func TestUnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	m := NewManager(nil, NewHTTPAcquirer(xhttp.NewClient(xhttp.WithTimeout(time.Second)), url, nil), nil)
	if _, err := m.Token(context.Background(), models.TokenLive); !errors.Is(err, ErrAcquire) {
		t.Fatalf("err = %v, want ErrAcquire", err)
	}
}

// strictBackend honours ctx on Delete and can be told to fail it.
type strictBackend struct {
	*cache.MemoryCache
	failDelete bool
}

func (b *strictBackend) Delete(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.failDelete {
		return errors.New("disk full")
	}
	return b.MemoryCache.Delete(ctx, keys...)
}

func TestInvalidateWithCancelledContextDropsPersistedToken(t *testing.T) {
	store := kvstore.New(&strictBackend{MemoryCache: cache.NewMemoryCache()}, nil)
	tok := signToken(t, time.Now().Add(time.Hour))
	srv := newLoginServer(t, func() string { return tok }, 0)
	m := NewManager(NewHTTPAcquirer(xhttp.NewClient(), srv.URL, HistoricalCredentials{}), nil, store)

	if _, err := m.Token(context.Background(), models.TokenHistorical); err != nil {
		t.Fatalf("Token: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.Invalidate(ctx, models.TokenHistorical)

	if v := kvstore.Get(context.Background(), store, PersistKey, "", kvstore.NoExpiry); v != "" {
		t.Fatal("rejected token left in storage")
	}
}

func TestRejectedTokenNotReusedWhenDeleteFails(t *testing.T) {
	ctx := context.Background()
	backend := &strictBackend{MemoryCache: cache.NewMemoryCache()}
	store := kvstore.New(backend, nil)
	tok := signToken(t, time.Now().Add(time.Hour))
	srv := newLoginServer(t, func() string { return tok }, 0)
	m := NewManager(NewHTTPAcquirer(xhttp.NewClient(), srv.URL, HistoricalCredentials{}), nil, store)

	if _, err := m.Token(ctx, models.TokenHistorical); err != nil {
		t.Fatalf("Token: %v", err)
	}
	backend.failDelete = true
	m.Invalidate(ctx, models.TokenHistorical)

	if _, err := m.Token(ctx, models.TokenHistorical); err != nil {
		t.Fatalf("Token: %v", err)
	}
	if n := srv.hits.Load(); n != 2 {
		t.Fatalf("login requests = %d, want 2", n)
	}
}
