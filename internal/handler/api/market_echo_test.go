package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"MarketSync/internal/domain/models"
	"MarketSync/internal/service/kvstore"
	"MarketSync/internal/service/marketapi"
	"MarketSync/internal/service/ratelimit"
	"MarketSync/internal/usecase"
	"MarketSync/pkg/cache"

	"github.com/labstack/echo/v4"
)

type fakeAPI struct {
	preds    []models.Prediction
	predsErr error
	detail   *models.Prediction
	summary  []models.SummaryRow
	movers   models.Movers
	history  []models.HistoryDataset
	err      error // returned by every lookup except Predictions

	gotSortBy, gotSortOrder string
	gotCodes                []string
	gotAgg                  string
}

func (f *fakeAPI) Predictions(context.Context, string) ([]models.Prediction, error) {
	return f.preds, f.predsErr
}

func (f *fakeAPI) PredictionDetail(context.Context, string) (*models.Prediction, error) {
	return f.detail, f.err
}

func (f *fakeAPI) Summary(_ context.Context, sortBy, sortOrder string) ([]models.SummaryRow, error) {
	f.gotSortBy, f.gotSortOrder = sortBy, sortOrder
	return f.summary, f.err
}

func (f *fakeAPI) Movers(context.Context) (models.Movers, error) { return f.movers, f.err }

func (f *fakeAPI) CompanyHistory(_ context.Context, codes []string, agg string) ([]models.HistoryDataset, error) {
	f.gotCodes, f.gotAgg = codes, agg
	return f.history, f.err
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func setup(t *testing.T, api *fakeAPI) (*echo.Echo, *usecase.MarketView) {
	t.Helper()
	store := kvstore.New(cache.NewMemoryCache(), nil)
	view := usecase.NewMarketView(store, usecase.PreferencesConfig{ThemeTTL: kvstore.Days(7)}, nil, nil)
	view.ApplyMerge(usecase.MergeResult{
		Records: usecase.Merge([]models.Quote{
			{Symbol: "MSFT", Name: "Microsoft", Volume: models.Float(10)},
			{Symbol: "AAPL", Name: "Apple", Volume: models.Float(30)},
			{Symbol: "AMZN", Name: "Amazon", Volume: models.Float(20)},
		}, nil),
		QuotesOK:      true,
		PredictionsOK: true,
	})

	e := echo.New()
	NewMarketEchoHandler(nil, view, api).RegisterRoutes(e)
	return e, view
}

func do(t *testing.T, e *echo.Echo, method, target, body string) (int, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s %s: %v (%s)", method, target, err, rec.Body.String())
	}
	return rec.Code, env
}

func symbols(t *testing.T, raw json.RawMessage) []string {
	t.Helper()
	var vm models.ViewModel
	if err := json.Unmarshal(raw, &vm); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	out := make([]string, len(vm.Records))
	for i, r := range vm.Records {
		out[i] = r.Symbol
	}
	return out
}

func TestMarketQueryOverridesIntents(t *testing.T) {
	e, _ := setup(t, &fakeAPI{})

	code, env := do(t, e, http.MethodGet, "/api/market?sort=alpha", "")
	if code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
	if got := fmt.Sprint(symbols(t, env.Data)); got != "[AAPL AMZN MSFT]" {
		t.Fatalf("alphabetical = %s", got)
	}

	_, env = do(t, e, http.MethodGet, "/api/market?q=a", "")
	if got := fmt.Sprint(symbols(t, env.Data)); got != "[AAPL AMZN]" {
		t.Fatalf("filtered by default policy = %s", got)
	}

	code, _ = do(t, e, http.MethodGet, "/api/market?sort=random", "")
	if code != http.StatusBadRequest {
		t.Fatalf("bad sort code = %d", code)
	}
}

func TestIntentsPersistAcrossRequests(t *testing.T) {
	e, view := setup(t, &fakeAPI{})

	if code, _ := do(t, e, http.MethodPost, "/api/intents/sort", `{"policy":"alphabetical"}`); code != http.StatusOK {
		t.Fatalf("sort code = %d", code)
	}
	if code, _ := do(t, e, http.MethodPost, "/api/intents/search", `{"term":"m"}`); code != http.StatusOK {
		t.Fatalf("search code = %d", code)
	}
	term, policy := view.Intents()
	if term != "m" || policy != models.SortAlphabetical {
		t.Fatalf("intents = %q %q", term, policy)
	}

	_, env := do(t, e, http.MethodGet, "/api/market", "")
	if got := fmt.Sprint(symbols(t, env.Data)); got != "[AMZN MSFT]" {
		t.Fatalf("view = %s", got)
	}

	if code, _ := do(t, e, http.MethodPost, "/api/intents/sort", `{"policy":"sideways"}`); code != http.StatusBadRequest {
		t.Fatalf("invalid policy code = %d", code)
	}
}

func TestWatchToggle(t *testing.T) {
	e, _ := setup(t, &fakeAPI{})

	_, env := do(t, e, http.MethodPost, "/api/intents/watch", `{"symbol":"aapl"}`)
	var res struct {
		Symbol  string `json:"symbol"`
		Watched bool   `json:"watched"`
	}
	_ = json.Unmarshal(env.Data, &res)
	if res.Symbol != "AAPL" || !res.Watched {
		t.Fatalf("toggle = %+v", res)
	}

	_, env = do(t, e, http.MethodGet, "/api/watchlist", "")
	if !strings.Contains(string(env.Data), `"AAPL"`) {
		t.Fatalf("watchlist = %s", env.Data)
	}

	if code, _ := do(t, e, http.MethodPost, "/api/intents/watch", `{}`); code != http.StatusBadRequest {
		t.Fatalf("missing symbol code = %d", code)
	}
}

func TestThemeToggle(t *testing.T) {
	e, _ := setup(t, &fakeAPI{})

	_, env := do(t, e, http.MethodGet, "/api/theme", "")
	if string(env.Data) != `{"dark_mode":false}` {
		t.Fatalf("initial theme = %s", env.Data)
	}
	_, env = do(t, e, http.MethodPost, "/api/theme/toggle", "")
	if string(env.Data) != `{"dark_mode":true}` {
		t.Fatalf("toggled theme = %s", env.Data)
	}
}

func TestPredictionsRankedAndSummarized(t *testing.T) {
	api := &fakeAPI{preds: []models.Prediction{
		{Symbol: "A", Signal: models.SignalBuy, CurrentPrice: 100, PredictedClose: 101, EnsembleConfidence: 0.5},
		{Symbol: "B", Signal: models.SignalBuy, CurrentPrice: 100, PredictedClose: 110, EnsembleConfidence: 0.7},
		{Symbol: "C", Signal: models.SignalSell, CurrentPrice: 100, PredictedClose: 90, EnsembleConfidence: 0.9},
	}}
	e, _ := setup(t, api)

	code, env := do(t, e, http.MethodGet, "/api/predictions?signal=BUY", "")
	if code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
	var res struct {
		Predictions []models.Prediction    `json:"predictions"`
		Stats       models.PredictionStats `json:"stats"`
	}
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Predictions) != 2 || res.Predictions[0].Symbol != "B" {
		t.Fatalf("predictions = %+v", res.Predictions)
	}
	if res.Stats.Buy != 2 || res.Stats.Sell != 1 {
		t.Fatalf("stats = %+v", res.Stats)
	}

	if code, _ := do(t, e, http.MethodGet, "/api/predictions?order=up", ""); code != http.StatusBadRequest {
		t.Fatalf("bad order code = %d", code)
	}
}

func TestPredictionsUpstreamFailures(t *testing.T) {
	e, _ := setup(t, &fakeAPI{})
	if code, _ := do(t, e, http.MethodGet, "/api/predictions", ""); code != http.StatusBadGateway {
		t.Fatalf("nil result code = %d", code)
	}

	e, _ = setup(t, &fakeAPI{predsErr: marketapi.ErrAuthFailure})
	if code, _ := do(t, e, http.MethodGet, "/api/predictions", ""); code != http.StatusBadGateway {
		t.Fatalf("auth failure code = %d", code)
	}
}

func TestPredictionDetail(t *testing.T) {
	e, _ := setup(t, &fakeAPI{})
	if code, _ := do(t, e, http.MethodGet, "/api/predictions/ZZZ", ""); code != http.StatusNotFound {
		t.Fatalf("missing detail code = %d", code)
	}

	e, _ = setup(t, &fakeAPI{detail: &models.Prediction{Symbol: "AAPL", CurrentPrice: 200, PredictedClose: 210}})
	code, env := do(t, e, http.MethodGet, "/api/predictions/AAPL", "")
	if code != http.StatusOK || !strings.Contains(string(env.Data), `"expected_gain":5`) {
		t.Fatalf("detail = %d %s", code, env.Data)
	}
}

func TestSummaryDefaults(t *testing.T) {
	api := &fakeAPI{summary: []models.SummaryRow{{Code: "A"}}}
	e, _ := setup(t, api)

	if code, _ := do(t, e, http.MethodGet, "/api/summary", ""); code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
	if api.gotSortBy != "name" || api.gotSortOrder != "asc" {
		t.Fatalf("defaults = %q %q", api.gotSortBy, api.gotSortOrder)
	}

	do(t, e, http.MethodGet, "/api/summary?sortBy=volume&sortOrder=desc", "")
	if api.gotSortBy != "volume" || api.gotSortOrder != "desc" {
		t.Fatalf("explicit = %q %q", api.gotSortBy, api.gotSortOrder)
	}
}

func TestHistoryParsesCompanies(t *testing.T) {
	api := &fakeAPI{history: []models.HistoryDataset{}}
	e, _ := setup(t, api)

	if code, _ := do(t, e, http.MethodGet, "/api/history?companies=aapl,%20msft,,AAPL&agg=ME", ""); code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
	if fmt.Sprint(api.gotCodes) != "[AAPL MSFT]" || api.gotAgg != "ME" {
		t.Fatalf("codes = %v agg = %q", api.gotCodes, api.gotAgg)
	}

	if code, _ := do(t, e, http.MethodGet, "/api/history?agg=W", ""); code != http.StatusBadRequest {
		t.Fatalf("bad agg code = %d", code)
	}
}

func TestUpstreamRoutesRateLimited(t *testing.T) {
	store := kvstore.New(cache.NewMemoryCache(), nil)
	view := usecase.NewMarketView(store, usecase.PreferencesConfig{}, nil, nil)
	e := echo.New()
	NewMarketEchoHandler(nil, view, &fakeAPI{}, WithUpstreamLimiter(ratelimit.New(2, 0.001))).RegisterRoutes(e)

	for i := 0; i < 2; i++ {
		if code, _ := do(t, e, http.MethodGet, "/api/movers", ""); code != http.StatusOK {
			t.Fatalf("call %d = %d", i, code)
		}
	}
	if code, _ := do(t, e, http.MethodGet, "/api/summary", ""); code != http.StatusTooManyRequests {
		t.Fatalf("third upstream call = %d", code)
	}
	if code, _ := do(t, e, http.MethodGet, "/api/market", ""); code != http.StatusOK {
		t.Fatalf("local route should not be limited, got %d", code)
	}
}

func TestMovers(t *testing.T) {
	api := &fakeAPI{movers: models.Movers{
		Gainers: []models.Mover{{Code: "A", ChangePct: 3}},
		Losers:  []models.Mover{{Code: "B", ChangePct: -2}},
	}}
	e, _ := setup(t, api)

	code, env := do(t, e, http.MethodGet, "/api/movers", "")
	if code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
	var m models.Movers
	_ = json.Unmarshal(env.Data, &m)
	if len(m.Gainers) != 1 || len(m.Losers) != 1 {
		t.Fatalf("movers = %+v", m)
	}
}

func TestHistoricalRoutesReportOutage(t *testing.T) {
	e, _ := setup(t, &fakeAPI{err: marketapi.ErrUnavailable})

	for _, target := range []string{
		"/api/summary",
		"/api/movers",
		"/api/history?companies=AAPL",
		"/api/predictions/AAPL",
	} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadGateway {
			t.Errorf("%s = %d, want 502", target, rec.Code)
		}
		if cc := rec.Header().Get(echo.HeaderCacheControl); cc != "" {
			t.Errorf("%s cached an outage: %q", target, cc)
		}
	}
}

func TestSuccessfulLookupsAreCacheable(t *testing.T) {
	e, _ := setup(t, &fakeAPI{summary: []models.SummaryRow{}})

	req := httptest.NewRequest(http.MethodGet, "/api/summary", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Header().Get(echo.HeaderCacheControl) != "private, max-age=15" {
		t.Fatalf("summary = %d %q", rec.Code, rec.Header().Get(echo.HeaderCacheControl))
	}
}
