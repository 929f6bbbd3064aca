package di

import (
	"context"
	"path/filepath"
	"testing"

	"MarketSync/pkg/config"
	"MarketSync/pkg/logger"
)

const baseYAML = `
logging:
  level: error
auth:
  historical:
    url: "http://127.0.0.1:5000/api/login"
  live:
    url: "http://127.0.0.1:7000/auth"
api:
  historical_base_url: "http://127.0.0.1:5000/api"
  live_data_url: "http://127.0.0.1:7000/live"
  market_status_url: "http://127.0.0.1:7000/status"
`

func parse(t *testing.T, extra string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(baseYAML + extra))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

func TestProvideCacheBackend(t *testing.T) {
	cfg := parse(t, "storage:\n  type: sqlite\n  sqlite:\n    path: "+filepath.Join(t.TempDir(), "kv.db")+"\n")

	b, cleanup, err := ProvideCacheBackend(cfg, logger.Nop())
	if err != nil {
		t.Fatalf("sqlite backend: %v", err)
	}
	defer cleanup()

	ctx := context.Background()
	if err := b.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, err := b.Get(ctx, "k"); err != nil || string(got) != "v" {
		t.Fatalf("get = %q, %v", got, err)
	}
}

func TestProvideSnapshotSinkNone(t *testing.T) {
	sink, cleanup, err := ProvideSnapshotSink(parse(t, ""), logger.Nop())
	if err != nil {
		t.Fatalf("sink: %v", err)
	}
	defer cleanup()
	if sink != nil {
		t.Fatalf("sink = %v, want nil", sink)
	}
	if p := ProvideSnapshotPublisher(parse(t, ""), nil, nil, logger.Nop()); p != nil {
		t.Fatal("publisher without a sink should be nil")
	}
}

func TestProvideMarketViewWatchlistTTL(t *testing.T) {
	cfg := parse(t, "storage:\n  type: memory\n")
	b, cleanup, err := ProvideCacheBackend(cfg, logger.Nop())
	if err != nil {
		t.Fatalf("backend: %v", err)
	}
	defer cleanup()

	view := ProvideMarketView(cfg, ProvideStore(b, logger.Nop()), nil, logger.Nop())
	if _, err := view.ToggleWatch(context.Background(), "aapl"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if got := view.Watchlist(context.Background()); len(got) != 1 || got[0] != "AAPL" {
		t.Fatalf("watchlist = %v", got)
	}
}

func TestInitializeApp(t *testing.T) {
	app, cleanup, err := InitializeApp(parse(t, "storage:\n  type: memory\n"))
	if err != nil {
		t.Fatalf("InitializeApp: %v", err)
	}
	defer cleanup()
	if app == nil {
		t.Fatal("nil app")
	}
}
