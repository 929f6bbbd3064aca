package models

// Intent and query payloads for the presentation HTTP surface. Bound by echo,
// defaulted by creasty/defaults and checked by go-playground/validator.

type SearchIntent struct {
	Term string `json:"term" validate:"max=64"`
}

type SortIntent struct {
	Policy string `json:"policy" validate:"required,oneof=alphabetical mostActive topGainers topLosers alpha volume gainers losers"`
}

type WatchIntent struct {
	Symbol string `json:"symbol" validate:"required,max=16"`
}

type MarketQuery struct {
	Q    string `query:"q" validate:"max=64"`
	Sort string `query:"sort" validate:"omitempty,oneof=alphabetical mostActive topGainers topLosers alpha volume gainers losers"`
}

type PredictionsQuery struct {
	Signal string `query:"signal" default:"ALL" validate:"oneof=ALL BUY SELL HOLD"`
	Field  string `query:"field" default:"expected_gain" validate:"oneof=symbol confidence expected_gain signal"`
	Order  string `query:"order" default:"desc" validate:"oneof=asc desc"`
}

type SummaryQuery struct {
	SortBy    string `query:"sortBy" default:"name" validate:"oneof=name code closing change_pct volume"`
	SortOrder string `query:"sortOrder" default:"asc" validate:"oneof=asc desc"`
}

type HistoryQuery struct {
	Agg       string `query:"agg" default:"D" validate:"oneof=D ME YE"`
	Companies string `query:"companies" validate:"max=512"`
}
