package usecase

import (
	"reflect"
	"testing"

	"MarketSync/internal/domain/models"
)

func rec(symbol string, dir models.ChangeDirection, pct *float64) models.MergedRecord {
	return models.MergedRecord{Quote: models.Quote{Symbol: symbol, ChangeDirection: dir, ChangePct: pct}}
}

func symbols(rs []models.MergedRecord) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Symbol
	}
	return out
}

func TestRankTopGainersScenario(t *testing.T) {
	in := []models.MergedRecord{
		rec("A", models.DirectionUp, models.Float(5)),
		rec("B", models.DirectionDown, models.Float(-3)),
		rec("C", models.DirectionFlat, nil),
	}
	got := symbols(Rank(in, "", models.SortTopGainers))
	if want := []string{"A", "C", "B"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestRankTopGainersOrdersGroups(t *testing.T) {
	in := []models.MergedRecord{
		rec("D1", models.DirectionDown, models.Float(-9.3)),
		rec("U1", models.DirectionUp, models.Float(0.2)),
		rec("F1", models.DirectionFlat, models.Float(0)),
		rec("D2", models.DirectionDown, models.Float(-0.2)),
		rec("N1", models.DirectionUnknown, models.Float(1.1)),
		rec("U2", models.DirectionUp, models.Float(5.1)),
	}
	got := symbols(Rank(in, "", models.SortTopGainers))
	want := []string{"U2", "U1", "F1", "N1", "D2", "D1"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestRankTopLosersOrdersGroups(t *testing.T) {
	in := []models.MergedRecord{
		rec("U1", models.DirectionUp, models.Float(5.1)),
		rec("D1", models.DirectionDown, models.Float(-0.2)),
		rec("F1", models.DirectionFlat, nil),
		rec("U2", models.DirectionUp, models.Float(0.2)),
		rec("D2", models.DirectionDown, models.Float(-9.3)),
	}
	got := symbols(Rank(in, "", models.SortTopLosers))
	want := []string{"D2", "D1", "F1", "U2", "U1"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestRankGroupsByDirectionNotSign(t *testing.T) {
	// inconsistent payload: no direction but a large positive change
	in := []models.MergedRecord{
		rec("X", models.DirectionUnknown, models.Float(7)),
		rec("U", models.DirectionUp, models.Float(1)),
	}
	got := symbols(Rank(in, "", models.SortTopGainers))
	if want := []string{"U", "X"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestRankAlphabeticalIsStable(t *testing.T) {
	in := []models.MergedRecord{
		{Quote: models.Quote{Symbol: "MSFT", Name: "first"}},
		{Quote: models.Quote{Symbol: "AAPL"}},
		{Quote: models.Quote{Symbol: "MSFT", Name: "second"}},
		{Quote: models.Quote{Symbol: "GOOG"}},
	}
	got := Rank(in, "", models.SortAlphabetical)
	if s := symbols(got); !reflect.DeepEqual(s, []string{"AAPL", "GOOG", "MSFT", "MSFT"}) {
		t.Fatalf("got %v", s)
	}
	if got[2].Name != "first" || got[3].Name != "second" {
		t.Fatal("equal symbols must keep input order")
	}
	if in[0].Symbol != "MSFT" || in[1].Symbol != "AAPL" {
		t.Fatal("input must not be reordered")
	}
}

func TestRankMostActiveTreatsMissingVolumeAsZero(t *testing.T) {
	in := []models.MergedRecord{
		{Quote: models.Quote{Symbol: "A", Volume: nil}},
		{Quote: models.Quote{Symbol: "B", Volume: models.Float(100)}},
		{Quote: models.Quote{Symbol: "C", Volume: models.Float(-1)}},
		{Quote: models.Quote{Symbol: "D", Volume: models.Float(500)}},
	}
	got := symbols(Rank(in, "", models.SortMostActive))
	if want := []string{"D", "B", "A", "C"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestRankFiltersBySymbolOrName(t *testing.T) {
	in := []models.MergedRecord{
		{Quote: models.Quote{Symbol: "X", Name: "Apple"}},
		{Quote: models.Quote{Symbol: "Y", Name: "Berry"}},
		{Quote: models.Quote{Symbol: "Z", Name: "Cantaloupe"}},
		{Quote: models.Quote{Symbol: "PAL"}},
	}
	got := symbols(Rank(in, "A", models.SortAlphabetical))
	if want := []string{"PAL", "X", "Z"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if n := len(Rank(in, "", models.SortAlphabetical)); n != 4 {
		t.Fatalf("empty term should keep all records, got %d", n)
	}
}

func TestSummarizeMarket(t *testing.T) {
	in := []models.MergedRecord{
		{Quote: models.Quote{Symbol: "A", ChangeDirection: models.DirectionUp, Volume: models.Float(10)}},
		{Quote: models.Quote{Symbol: "B", ChangeDirection: models.DirectionDown}},
		{Quote: models.Quote{Symbol: "C", ChangeDirection: models.DirectionFlat, Volume: models.Float(5)}},
		{Quote: models.Quote{Symbol: "D"}},
	}
	got := SummarizeMarket(in)
	want := models.MarketStats{Gainers: 1, Losers: 1, Neutral: 2, TotalVolume: 15}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}
