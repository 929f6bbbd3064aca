package marketapi

import (
	"context"
	"net/url"
	"sort"
	"strings"

	"MarketSync/internal/domain/models"
	"MarketSync/pkg/logger"
)

// LiveQuotes returns the current quote set, or nil when the feed could not be read.
func (c *Client) LiveQuotes(ctx context.Context) (*models.LiveQuotesResponse, error) {
	return Request[models.LiveQuotesResponse](ctx, c, c.endpoints.LiveData, models.TokenLive)
}

// MarketStatus returns the upstream status string, or "" when the call failed.
func (c *Client) MarketStatus(ctx context.Context) (string, error) {
	resp, err := Request[models.MarketStatusResponse](ctx, c, c.endpoints.MarketStatus, models.TokenLive)
	if err != nil || resp == nil {
		return "", err
	}
	return resp.Status, nil
}

// Predictions lists model outputs, optionally for one symbol. A nil slice means the call failed.
func (c *Client) Predictions(ctx context.Context, symbol string) ([]models.Prediction, error) {
	q := url.Values{}
	if symbol != "" {
		q.Set("symbol", symbol)
	}
	resp, err := Request[models.PredictionsResponse](ctx, c, withQuery(c.endpoints.HistoricalBase+"/predictions", q), models.TokenHistorical)
	if err != nil || resp == nil {
		return nil, err
	}
	if resp.Predictions == nil {
		return []models.Prediction{}, nil
	}
	return resp.Predictions, nil
}

// PredictionDetail is the one-off lookup behind a row click: the first prediction
// for symbol, served from a short-lived cache. A nil prediction with a nil error
// means the backend answered with none.
func (c *Client) PredictionDetail(ctx context.Context, symbol string) (*models.Prediction, error) {
	key := strings.ToUpper(symbol)
	if p, ok := c.details.Get(key); ok {
		return p, nil
	}
	preds, err := c.Predictions(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if preds == nil {
		return nil, ErrUnavailable
	}
	if len(preds) == 0 {
		return nil, nil
	}
	p := preds[0]
	c.details.Set(key, &p)
	return &p, nil
}

func (c *Client) Summary(ctx context.Context, sortBy, sortOrder string) ([]models.SummaryRow, error) {
	if sortBy == "" {
		sortBy = "name"
	}
	if sortOrder == "" {
		sortOrder = "asc"
	}
	q := url.Values{"sortBy": {sortBy}, "sortOrder": {sortOrder}}
	resp, err := Request[models.SummaryResponse](ctx, c, withQuery(c.endpoints.HistoricalBase+"/summary-table", q), models.TokenHistorical)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, ErrUnavailable
	}
	if resp.Rows == nil {
		return []models.SummaryRow{}, nil
	}
	return resp.Rows, nil
}

// Movers splits the daily chart data into gainers and losers, losers sorted by
// change_pct ascending.
func (c *Client) Movers(ctx context.Context) (models.Movers, error) {
	out := models.Movers{Gainers: []models.Mover{}, Losers: []models.Mover{}}
	q := url.Values{"agg": {models.AggDaily}}
	resp, err := Request[models.MoversResponse](ctx, c, withQuery(c.endpoints.HistoricalBase+"/chart-data", q), models.TokenHistorical)
	if err != nil {
		return out, err
	}
	if resp == nil {
		return out, ErrUnavailable
	}
	for _, m := range resp.Data {
		switch m.Performance {
		case "Gainer":
			out.Gainers = append(out.Gainers, m)
		case "Loser":
			out.Losers = append(out.Losers, m)
		}
	}
	sort.SliceStable(out.Losers, func(i, j int) bool {
		return out.Losers[i].ChangePct < out.Losers[j].ChangePct
	})
	return out, nil
}

// CompanyHistory returns one dataset per company code. No codes, no request.
func (c *Client) CompanyHistory(ctx context.Context, codes []string, agg string) ([]models.HistoryDataset, error) {
	if len(codes) == 0 {
		return []models.HistoryDataset{}, nil
	}
	if agg == "" {
		agg = models.AggDaily
	}
	q := url.Values{"agg": {agg}, "companies": {strings.Join(codes, ",")}}
	resp, err := Request[models.HistoryResponse](ctx, c, withQuery(c.endpoints.HistoricalBase+"/chart-data", q), models.TokenHistorical)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		c.log.Debug("history unavailable", logger.Strings("companies", codes))
		return nil, ErrUnavailable
	}
	if resp.Datasets == nil {
		return []models.HistoryDataset{}, nil
	}
	return resp.Datasets, nil
}
