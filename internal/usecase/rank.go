package usecase

import (
	"sort"
	"strings"

	"MarketSync/internal/domain/models"
)

// Rank filters records by term (case-insensitive substring of symbol or name)
// and orders them by policy. The input slice is never modified.
func Rank(records []models.MergedRecord, term string, policy models.SortPolicy) []models.MergedRecord {
	term = strings.ToLower(strings.TrimSpace(term))

	out := make([]models.MergedRecord, 0, len(records))
	for i := range records {
		if records[i].Matches(term) {
			out = append(out, records[i])
		}
	}

	sort.SliceStable(out, lessFor(policy, out))
	return out
}

func lessFor(policy models.SortPolicy, rs []models.MergedRecord) func(i, j int) bool {
	switch policy {
	case models.SortAlphabetical:
		return func(i, j int) bool { return rs[i].Symbol < rs[j].Symbol }
	case models.SortTopGainers:
		return grouped(rs, models.DirectionUp, models.DirectionDown)
	case models.SortTopLosers:
		return grouped(rs, models.DirectionDown, models.DirectionUp)
	default:
		return func(i, j int) bool {
			return models.Or(rs[i].Volume, 0) > models.Or(rs[j].Volume, 0)
		}
	}
}

// grouped puts the lead direction first, FLAT/unknown in the middle in input
// order, and the tail direction last. Within both outer groups records are
// ordered by distance from zero: the lead group largest move first, the tail
// group smallest move first.
func grouped(rs []models.MergedRecord, lead, tail models.ChangeDirection) func(i, j int) bool {
	group := func(d models.ChangeDirection) int {
		switch d {
		case lead:
			return 0
		case tail:
			return 2
		default:
			return 1
		}
	}
	return func(i, j int) bool {
		gi, gj := group(rs[i].ChangeDirection), group(rs[j].ChangeDirection)
		if gi != gj {
			return gi < gj
		}
		pi, pj := models.Or(rs[i].ChangePct, 0), models.Or(rs[j].ChangePct, 0)
		switch {
		case gi == 0 && lead == models.DirectionUp, gi == 2 && tail == models.DirectionDown:
			// UP lead or DOWN tail: higher value first
			return pi > pj
		case gi == 1:
			return false
		default:
			return pi < pj
		}
	}
}

// SummarizeMarket counts the unfiltered set by direction and totals volume.
func SummarizeMarket(records []models.MergedRecord) models.MarketStats {
	var s models.MarketStats
	for i := range records {
		switch records[i].ChangeDirection {
		case models.DirectionUp:
			s.Gainers++
		case models.DirectionDown:
			s.Losers++
		default:
			s.Neutral++
		}
		s.TotalVolume += models.Or(records[i].Volume, 0)
	}
	return s
}
