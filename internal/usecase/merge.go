package usecase

import (
	"context"

	"golang.org/x/sync/errgroup"

	"MarketSync/internal/domain/models"
)

// Merge attaches each quote's prediction badge. Quotes keep their order,
// predictions without a quote are dropped, and a later duplicate symbol wins.
func Merge(quotes []models.Quote, predictions []models.Prediction) []models.MergedRecord {
	badges := make(map[string]*models.PredictionBadge, len(predictions))
	for _, p := range predictions {
		badges[p.Symbol] = &models.PredictionBadge{
			PredictedClose: p.PredictedClose,
			Confidence:     p.EnsembleConfidence,
			Signal:         p.Signal,
		}
	}

	out := make([]models.MergedRecord, len(quotes))
	for i, q := range quotes {
		out[i] = models.MergedRecord{Quote: q}
		if b, ok := badges[q.Symbol]; ok {
			badge := *b
			out[i].Prediction = &badge
		}
	}
	return out
}

// MergeSource is what one quotes tick needs from the market API.
type MergeSource interface {
	LiveQuotes(ctx context.Context) (*models.LiveQuotesResponse, error)
	Predictions(ctx context.Context, symbol string) ([]models.Prediction, error)
}

type MergeResult struct {
	Records       []models.MergedRecord
	DataTimestamp float64
	FeedStatus    string
	QuotesOK      bool
	PredictionsOK bool
	Err           error // first failure of either side, for logging
}

// FetchMerged runs both fetches concurrently and merges once both settle.
// A failed quotes fetch leaves QuotesOK false; a failed predictions fetch
// degrades to quotes without badges.
func FetchMerged(ctx context.Context, src MergeSource) MergeResult {
	var (
		quotes    *models.LiveQuotesResponse
		preds     []models.Prediction
		quotesErr error
		predsErr  error
	)

	// branches never return an error so one side failing cannot cancel the other
	var g errgroup.Group
	g.Go(func() error {
		quotes, quotesErr = src.LiveQuotes(ctx)
		return nil
	})
	g.Go(func() error {
		preds, predsErr = src.Predictions(ctx, "")
		return nil
	})
	_ = g.Wait()

	res := MergeResult{
		QuotesOK:      quotesErr == nil && quotes != nil,
		PredictionsOK: predsErr == nil && preds != nil,
	}
	switch {
	case quotesErr != nil:
		res.Err = quotesErr
	case predsErr != nil:
		res.Err = predsErr
	}
	if !res.QuotesOK {
		return res
	}
	if !res.PredictionsOK {
		preds = nil
	}
	res.Records = Merge(quotes.Data, preds)
	res.DataTimestamp = quotes.DataTimestamp
	res.FeedStatus = quotes.Status
	return res
}
