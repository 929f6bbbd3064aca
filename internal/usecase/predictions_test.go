package usecase

import (
	"math"
	"testing"

	"MarketSync/internal/domain/models"
)

func TestExpectedGain(t *testing.T) {
	cases := []struct {
		name string
		p    models.Prediction
		want float64
	}{
		{"up", models.Prediction{PredictedClose: 11, CurrentPrice: 10}, 10},
		{"down", models.Prediction{PredictedClose: 9, CurrentPrice: 10}, -10},
		{"zero price", models.Prediction{PredictedClose: 9, CurrentPrice: 0}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExpectedGain(tc.p); math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func predSymbols(ps []models.Prediction) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Symbol
	}
	return out
}

func TestRankPredictions(t *testing.T) {
	preds := []models.Prediction{
		{Symbol: "C", Signal: models.SignalSell, EnsembleConfidence: 0.5, PredictedClose: 9, CurrentPrice: 10},
		{Symbol: "A", Signal: models.SignalBuy, EnsembleConfidence: 0.9, PredictedClose: 12, CurrentPrice: 10},
		{Symbol: "B", Signal: models.SignalHold, EnsembleConfidence: 0.7, PredictedClose: 10.5, CurrentPrice: 10},
		{Symbol: "D", Signal: models.SignalBuy, EnsembleConfidence: 0.6, PredictedClose: 11, CurrentPrice: 10},
	}

	cases := []struct {
		name string
		q    PredictionQuery
		want []string
	}{
		{"gain desc", PredictionQuery{Signal: "ALL", Field: "expected_gain", Desc: true}, []string{"A", "D", "B", "C"}},
		{"confidence asc", PredictionQuery{Field: "confidence"}, []string{"C", "D", "B", "A"}},
		{"symbol asc", PredictionQuery{Field: "symbol"}, []string{"A", "B", "C", "D"}},
		{"signal asc stable", PredictionQuery{Field: "signal"}, []string{"A", "D", "B", "C"}},
		{"buy only", PredictionQuery{Signal: "buy", Field: "symbol", Desc: true}, []string{"D", "A"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := predSymbols(RankPredictions(preds, tc.q))
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("got %v, want %v", got, tc.want)
				}
			}
		})
	}
}

func TestSummarizePredictions(t *testing.T) {
	got := SummarizePredictions([]models.Prediction{
		{Signal: models.SignalBuy, EnsembleConfidence: 0.9},
		{Signal: models.SignalBuy, EnsembleConfidence: 0.5},
		{Signal: models.SignalSell, EnsembleConfidence: 0.4},
		{Signal: models.SignalHold, EnsembleConfidence: 0.6},
	})
	if got.Buy != 2 || got.Sell != 1 || got.Hold != 1 {
		t.Fatalf("counts = %+v", got)
	}
	if math.Abs(got.AvgConfidence-0.6) > 1e-9 {
		t.Fatalf("avg = %v", got.AvgConfidence)
	}
	if z := SummarizePredictions(nil); z != (models.PredictionStats{}) {
		t.Fatalf("empty = %+v", z)
	}
}
