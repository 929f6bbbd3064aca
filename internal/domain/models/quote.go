package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ChangeDirection is the upstream direction flag. The zero value means the
// feed omitted it or sent null.
type ChangeDirection string

const (
	DirectionUp      ChangeDirection = "UP"
	DirectionDown    ChangeDirection = "DOWN"
	DirectionFlat    ChangeDirection = "FLAT"
	DirectionUnknown ChangeDirection = ""
)

// Quote is one symbol's live snapshot for the current poll tick. Every numeric
// field is optional: nil means the feed omitted it and must never be read as zero.
type Quote struct {
	Symbol          string          `json:"symbol"`
	Name            string          `json:"name,omitempty"`
	PrevClose       *float64        `json:"prev_close"`
	LatestPrice     *float64        `json:"latest_price"`
	ChangeDirection ChangeDirection `json:"change_direction"`
	ChangeAbs       *float64        `json:"change_abs"`
	ChangePct       *float64        `json:"change_pct"`
	High            *float64        `json:"high"`
	Low             *float64        `json:"low"`
	AvgPrice        *float64        `json:"avg_price"`
	Volume          *float64        `json:"volume"`
	TradeTime       *string         `json:"trade_time"`
}

// Matches reports whether term is a case-insensitive substring of the symbol or name.
// term must already be lower-cased.
func (q *Quote) Matches(term string) bool {
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(q.Symbol), term) ||
		(q.Name != "" && strings.Contains(strings.ToLower(q.Name), term))
}

// Float returns a pointer to v. Fixtures and decoders use it for optional fields.
func Float(v float64) *float64 { return &v }

// Or returns *p, or def when p is nil.
func Or(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// LiveQuotesResponse is the enveloped form of the live data endpoint.
type LiveQuotesResponse struct {
	Data          []Quote `json:"data"`
	Status        string  `json:"status"`
	DataTimestamp float64 `json:"data_timestamp"`
}

// UnmarshalJSON accepts both the envelope and a bare quote array.
func (r *LiveQuotesResponse) UnmarshalJSON(b []byte) error {
	if t := bytes.TrimSpace(b); len(t) > 0 && t[0] == '[' {
		*r = LiveQuotesResponse{}
		return json.Unmarshal(t, &r.Data)
	}
	type plain LiveQuotesResponse
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*r = LiveQuotesResponse(p)
	return nil
}

// SummaryRow is one row of the historical summary table.
type SummaryRow struct {
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	Closing   float64 `json:"closing"`
	ChangePct float64 `json:"change_pct"`
	Volume    float64 `json:"volume"`
}

type SummaryResponse struct {
	Rows []SummaryRow `json:"rows"`
}

// Mover is a daily gainer or loser from the chart-data endpoint.
type Mover struct {
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Performance string  `json:"performance"` // "Gainer" | "Loser"
	ChangePct   float64 `json:"change_pct"`
}

type MoversResponse struct {
	Data []Mover `json:"data"`
}

type Movers struct {
	Gainers []Mover `json:"gainers"`
	Losers  []Mover `json:"losers"`
}

type HistoryPoint struct {
	Date    string  `json:"date"`
	Closing float64 `json:"closing"`
}

type HistoryDataset struct {
	Code       string         `json:"code"`
	Name       string         `json:"name"`
	DataPoints []HistoryPoint `json:"dataPoints"`
}

type HistoryResponse struct {
	Datasets []HistoryDataset `json:"datasets"`
}

// Aggregation buckets understood by the chart-data endpoint.
const (
	AggDaily   = "D"
	AggMonthly = "ME"
	AggYearly  = "YE"
)
