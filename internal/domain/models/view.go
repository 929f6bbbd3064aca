package models

import (
	"fmt"
	"strings"
	"time"
)

type SortPolicy string

const (
	SortAlphabetical SortPolicy = "alphabetical"
	SortMostActive   SortPolicy = "mostActive"
	SortTopGainers   SortPolicy = "topGainers"
	SortTopLosers    SortPolicy = "topLosers"
)

// ParseSortPolicy accepts the canonical names and the short aliases alpha, volume, gainers, losers.
func ParseSortPolicy(s string) (SortPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "alphabetical", "alpha":
		return SortAlphabetical, nil
	case "mostactive", "volume":
		return SortMostActive, nil
	case "topgainers", "gainers":
		return SortTopGainers, nil
	case "toplosers", "losers":
		return SortTopLosers, nil
	}
	return "", fmt.Errorf("unknown sort policy %q", s)
}

// MarketStatus values reported by the status endpoint, plus the two local states.
const (
	StatusLoading = "loading"
	StatusError   = "error"
	StatusOpen    = "open"
	StatusClosed  = "closed"
	StatusPreOpen = "pre-open"
)

type MarketStatusResponse struct {
	Status string `json:"status"`
}

// Snapshot is the last coherent merged result. It is replaced as a whole, never patched.
type Snapshot struct {
	Records       []MergedRecord `json:"records"`
	DataTimestamp float64        `json:"data_timestamp,omitempty"`
	FeedStatus    string         `json:"feed_status,omitempty"`
	LastUpdated   time.Time      `json:"last_updated"`
}

// MarketStats counts the merged set by direction.
type MarketStats struct {
	Gainers     int     `json:"gainers"`
	Losers      int     `json:"losers"`
	Neutral     int     `json:"neutral"`
	TotalVolume float64 `json:"total_volume"`
}

// ViewRecord is a ranked row as handed to presentation code.
type ViewRecord struct {
	MergedRecord
	Watched bool          `json:"watched"`
	Display DisplayFields `json:"display"`
}

// DisplayFields are the row's numbers pre-rendered, "--" where absent.
type DisplayFields struct {
	PrevClose      string `json:"prev_close"`
	LatestPrice    string `json:"latest_price"`
	ChangeAbs      string `json:"change_abs"`
	ChangePct      string `json:"change_pct"`
	Volume         string `json:"volume"`
	PredictedClose string `json:"predicted_close"`
	Confidence     string `json:"confidence"`
}

// ViewModel is the ordered, filtered output consumed by presentation code.
type ViewModel struct {
	Records       []ViewRecord `json:"records"`
	Status        string       `json:"status"`
	LastUpdated   *time.Time   `json:"last_updated,omitempty"`
	DataTimestamp float64      `json:"data_timestamp,omitempty"`
	SearchTerm    string       `json:"search_term"`
	Policy        SortPolicy   `json:"sort_policy"`
	Loading       bool         `json:"loading"`
	Stats         MarketStats  `json:"stats"`
}

// PredictionStats summarises the predictions table.
type PredictionStats struct {
	Buy           int     `json:"buy"`
	Sell          int     `json:"sell"`
	Hold          int     `json:"hold"`
	AvgConfidence float64 `json:"avg_confidence"`
}
