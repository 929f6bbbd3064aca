package models

type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// Prediction is one symbol's model output.
type Prediction struct {
	Symbol             string  `json:"symbol"`
	PredictedClose     float64 `json:"predicted_close"`
	EnsembleConfidence float64 `json:"ensemble_confidence"`
	Signal             Signal  `json:"signal"`
	LSTMPred           float64 `json:"lstm_pred"`
	LSTMConfidence     float64 `json:"lstm_confidence"`
	ProphetPred        float64 `json:"prophet_pred"`
	ProphetConfidence  float64 `json:"prophet_confidence"`
	CurrentPrice       float64 `json:"current_price"`
	PredictionTime     string  `json:"prediction_time"`
}

type PredictionsResponse struct {
	Predictions []Prediction `json:"predictions"`
}

// PredictionBadge is the projection of a Prediction attached to a merged row.
type PredictionBadge struct {
	PredictedClose float64 `json:"predicted_close"`
	Confidence     float64 `json:"confidence"`
	Signal         Signal  `json:"signal"`
}

// MergedRecord is a Quote plus its prediction badge. Prediction is nil when
// no prediction matched the symbol.
type MergedRecord struct {
	Quote
	Prediction *PredictionBadge `json:"prediction,omitempty"`
}
