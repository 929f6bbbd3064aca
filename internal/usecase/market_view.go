package usecase

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"MarketSync/internal/domain/models"
	"MarketSync/internal/domain/repository"
	"MarketSync/internal/service/kvstore"
	"MarketSync/pkg/logger"
	"MarketSync/pkg/util"
)

const (
	ThemeKey     = "theme_dark_mode"
	WatchlistKey = "watchlist"
)

// Listener is called after every applied snapshot or intent. Listeners run
// on the caller's goroutine and must not block.
type Listener func(vm models.ViewModel)

// SnapshotListener receives each newly applied quote snapshot.
type SnapshotListener func(snap *models.Snapshot)

type PreferencesConfig struct {
	ThemeTTL     kvstore.TTL
	WatchlistTTL kvstore.TTL
}

// MarketView is one user's session: the last merged snapshot, the search and
// sort intents and the persisted preferences.
type MarketView struct {
	snap      atomic.Pointer[models.Snapshot]
	status    atomic.Value // string, last status loop result
	feedDown  atomic.Bool
	attempted atomic.Bool

	mu     sync.RWMutex
	term   string
	policy models.SortPolicy

	watchlist *kvstore.Entry[[]string]
	theme     *kvstore.Entry[bool]

	lmu       sync.RWMutex
	nextID    int
	listeners map[int]Listener
	snapSubs  map[int]SnapshotListener

	now     func() time.Time
	log     *logger.Logger
	metrics repository.Metrics
}

func NewMarketView(store *kvstore.Store, prefs PreferencesConfig, log *logger.Logger, metrics repository.Metrics) *MarketView {
	if log == nil {
		log = logger.Nop()
	}
	if metrics == nil {
		metrics = repository.NopMetrics{}
	}
	v := &MarketView{
		policy:    models.SortAlphabetical,
		watchlist: kvstore.NewEntry(store, WatchlistKey, []string{}, prefs.WatchlistTTL),
		theme:     kvstore.NewEntry(store, ThemeKey, false, prefs.ThemeTTL),
		listeners: make(map[int]Listener),
		snapSubs:  make(map[int]SnapshotListener),
		now:       time.Now,
		log:       log,
		metrics:   metrics,
	}
	v.status.Store(models.StatusLoading)
	return v
}

// ApplyMerge replaces the snapshot when quotes arrived. A failed quotes fetch
// keeps the previous snapshot and flips the status to error.
func (v *MarketView) ApplyMerge(res MergeResult) {
	v.attempted.Store(true)
	if !res.QuotesOK {
		v.feedDown.Store(true)
		v.metrics.RecordError("quotes")
		v.notify()
		return
	}

	snap := &models.Snapshot{
		Records:       res.Records,
		DataTimestamp: res.DataTimestamp,
		FeedStatus:    res.FeedStatus,
		LastUpdated:   v.now(),
	}
	v.snap.Store(snap)
	v.feedDown.Store(false)
	v.metrics.RecordSnapshot(len(snap.Records))

	v.lmu.RLock()
	subs := make([]SnapshotListener, 0, len(v.snapSubs))
	for _, s := range v.snapSubs {
		subs = append(subs, s)
	}
	v.lmu.RUnlock()
	for _, s := range subs {
		s(snap)
	}
	v.notify()
}

// ApplyStatus records the market status from the status loop.
func (v *MarketView) ApplyStatus(status string, ok bool) {
	if !ok {
		status = models.StatusError
		v.metrics.RecordError("status")
	}
	v.status.Store(status)
	v.notify()
}

// Status is error while the quotes feed is failing, otherwise the last status
// loop result (loading before the first one arrives).
func (v *MarketView) Status() string {
	if v.feedDown.Load() {
		return models.StatusError
	}
	return v.status.Load().(string)
}

// Snapshot returns the last applied snapshot, or nil before the first one.
func (v *MarketView) Snapshot() *models.Snapshot { return v.snap.Load() }

func (v *MarketView) SetSearchTerm(term string) {
	v.mu.Lock()
	v.term = term
	v.mu.Unlock()
	v.notify()
}

func (v *MarketView) SetSortPolicy(p models.SortPolicy) {
	v.mu.Lock()
	v.policy = p
	v.mu.Unlock()
	v.notify()
}

func (v *MarketView) Intents() (string, models.SortPolicy) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.term, v.policy
}

// ToggleWatch adds or removes symbol from the persisted watchlist and reports
// whether it is now watched.
func (v *MarketView) ToggleWatch(ctx context.Context, symbol string) (bool, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	var watched bool
	_, err := v.watchlist.Update(ctx, func(cur []string) []string {
		next := make([]string, 0, len(cur)+1)
		for _, s := range cur {
			if s == symbol {
				continue
			}
			next = append(next, s)
		}
		if len(next) == len(cur) {
			next = append(next, symbol)
			watched = true
		}
		return next
	})
	if err != nil {
		v.log.Warn("persist watchlist failed", logger.String("symbol", symbol), logger.Error(err))
		return watched, err
	}
	v.notify()
	return watched, nil
}

func (v *MarketView) Watchlist(ctx context.Context) []string {
	return v.watchlist.Get(ctx)
}

func (v *MarketView) ToggleTheme(ctx context.Context) (bool, error) {
	dark, err := v.theme.Update(ctx, func(cur bool) bool { return !cur })
	if err != nil {
		v.log.Warn("persist theme failed", logger.Error(err))
	}
	return dark, err
}

func (v *MarketView) DarkMode(ctx context.Context) bool {
	return v.theme.Get(ctx)
}

// View ranks the current snapshot with the session's search term and policy.
func (v *MarketView) View(ctx context.Context) models.ViewModel {
	term, policy := v.Intents()
	return v.ViewWith(ctx, term, policy)
}

// ViewWith is View with explicit intents; the session is left untouched.
func (v *MarketView) ViewWith(ctx context.Context, term string, policy models.SortPolicy) models.ViewModel {
	vm := models.ViewModel{
		Records:    []models.ViewRecord{},
		Status:     v.Status(),
		SearchTerm: term,
		Policy:     policy,
	}

	snap := v.snap.Load()
	if snap == nil {
		vm.Loading = !v.attempted.Load()
		return vm
	}

	watched := make(map[string]struct{})
	for _, s := range v.watchlist.Get(ctx) {
		watched[s] = struct{}{}
	}

	ranked := Rank(snap.Records, term, policy)
	vm.Records = make([]models.ViewRecord, len(ranked))
	for i, r := range ranked {
		_, ok := watched[strings.ToUpper(r.Symbol)]
		vm.Records[i] = models.ViewRecord{MergedRecord: r, Watched: ok, Display: display(r)}
	}
	last := snap.LastUpdated
	vm.LastUpdated = &last
	vm.DataTimestamp = snap.DataTimestamp
	vm.Stats = SummarizeMarket(snap.Records)
	return vm
}

// Subscribe registers l for view-model updates and returns its cancel func.
func (v *MarketView) Subscribe(l Listener) func() {
	v.lmu.Lock()
	id := v.nextID
	v.nextID++
	v.listeners[id] = l
	v.lmu.Unlock()
	return func() {
		v.lmu.Lock()
		delete(v.listeners, id)
		v.lmu.Unlock()
	}
}

// OnSnapshot registers s for every applied snapshot.
func (v *MarketView) OnSnapshot(s SnapshotListener) func() {
	v.lmu.Lock()
	id := v.nextID
	v.nextID++
	v.snapSubs[id] = s
	v.lmu.Unlock()
	return func() {
		v.lmu.Lock()
		delete(v.snapSubs, id)
		v.lmu.Unlock()
	}
}

func (v *MarketView) notify() {
	v.lmu.RLock()
	ls := make([]Listener, 0, len(v.listeners))
	for _, l := range v.listeners {
		ls = append(ls, l)
	}
	v.lmu.RUnlock()
	if len(ls) == 0 {
		return
	}

	vm := v.View(context.Background())
	for _, l := range ls {
		l(vm)
	}
}

func display(r models.MergedRecord) models.DisplayFields {
	d := models.DisplayFields{
		PrevClose:      util.FormatNumber(r.PrevClose, 2, true),
		LatestPrice:    util.FormatNumber(r.LatestPrice, 2, true),
		ChangeAbs:      util.FormatNumber(r.ChangeAbs, 2, true),
		ChangePct:      util.FormatNumber(r.ChangePct, 2, true),
		Volume:         util.FormatNumber(r.Volume, 0, true),
		PredictedClose: util.Missing,
		Confidence:     util.Missing,
	}
	if p := r.Prediction; p != nil {
		d.PredictedClose = util.FormatNumber(&p.PredictedClose, 2, true)
		d.Confidence = util.FormatPercent(p.Confidence)
	}
	return d
}
