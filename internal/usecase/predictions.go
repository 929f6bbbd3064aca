package usecase

import (
	"sort"
	"strings"

	"MarketSync/internal/domain/models"
)

// PredictionQuery filters and orders the predictions table.
type PredictionQuery struct {
	Signal string // ALL, BUY, SELL or HOLD
	Field  string // symbol, confidence, expected_gain or signal
	Desc   bool
}

// ExpectedGain is the predicted move in percent of the current price.
func ExpectedGain(p models.Prediction) float64 {
	if p.CurrentPrice == 0 {
		return 0
	}
	return (p.PredictedClose - p.CurrentPrice) / p.CurrentPrice * 100
}

var signalOrder = map[models.Signal]int{
	models.SignalBuy:  0,
	models.SignalHold: 1,
	models.SignalSell: 2,
}

func signalRank(s models.Signal) int {
	if r, ok := signalOrder[s]; ok {
		return r
	}
	return len(signalOrder)
}

// RankPredictions returns a filtered, sorted copy of preds.
func RankPredictions(preds []models.Prediction, q PredictionQuery) []models.Prediction {
	want := models.Signal(strings.ToUpper(q.Signal))

	out := make([]models.Prediction, 0, len(preds))
	for _, p := range preds {
		if want == "" || want == "ALL" || p.Signal == want {
			out = append(out, p)
		}
	}

	var key func(a, b models.Prediction) int
	switch q.Field {
	case "symbol":
		key = func(a, b models.Prediction) int { return strings.Compare(a.Symbol, b.Symbol) }
	case "confidence":
		key = func(a, b models.Prediction) int { return cmpFloat(a.EnsembleConfidence, b.EnsembleConfidence) }
	case "signal":
		key = func(a, b models.Prediction) int { return signalRank(a.Signal) - signalRank(b.Signal) }
	default:
		key = func(a, b models.Prediction) int { return cmpFloat(ExpectedGain(a), ExpectedGain(b)) }
	}

	sort.SliceStable(out, func(i, j int) bool {
		c := key(out[i], out[j])
		if q.Desc {
			return c > 0
		}
		return c < 0
	})
	return out
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// SummarizePredictions counts signals and averages ensemble confidence.
func SummarizePredictions(preds []models.Prediction) models.PredictionStats {
	var s models.PredictionStats
	if len(preds) == 0 {
		return s
	}
	var total float64
	for _, p := range preds {
		switch p.Signal {
		case models.SignalBuy:
			s.Buy++
		case models.SignalSell:
			s.Sell++
		case models.SignalHold:
			s.Hold++
		}
		total += p.EnsembleConfidence
	}
	s.AvgConfidence = total / float64(len(preds))
	return s
}
