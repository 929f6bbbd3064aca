package api

import (
	"context"
	"errors"
	"strings"

	"MarketSync/internal/domain/models"
	"MarketSync/internal/service/marketapi"
	"MarketSync/internal/usecase"
	xhttp "MarketSync/pkg/http"
	"MarketSync/pkg/http/middleware"
	xlogger "MarketSync/pkg/logger"
	"MarketSync/pkg/util"

	"github.com/labstack/echo/v4"
)

// HistoricalAPI is the part of the market API client behind the on-demand routes.
type HistoricalAPI interface {
	Predictions(ctx context.Context, symbol string) ([]models.Prediction, error)
	PredictionDetail(ctx context.Context, symbol string) (*models.Prediction, error)
	Summary(ctx context.Context, sortBy, sortOrder string) ([]models.SummaryRow, error)
	Movers(ctx context.Context) (models.Movers, error)
	CompanyHistory(ctx context.Context, codes []string, agg string) ([]models.HistoryDataset, error)
}

// MarketEchoHandler serves the merged market view, the user intents and the
// historical lookups.
type MarketEchoHandler struct {
	logger  *xlogger.Logger
	view    *usecase.MarketView
	api     HistoricalAPI
	limiter middleware.Allower
}

type HandlerOption func(*MarketEchoHandler)

// WithUpstreamLimiter throttles, per client IP, the routes that call the historical backend.
func WithUpstreamLimiter(l middleware.Allower) HandlerOption {
	return func(h *MarketEchoHandler) { h.limiter = l }
}

func NewMarketEchoHandler(logger *xlogger.Logger, view *usecase.MarketView, api HistoricalAPI, opts ...HandlerOption) *MarketEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	h := &MarketEchoHandler{logger: logger, view: view, api: api}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *MarketEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/market", h.Market)
	g.POST("/intents/search", h.Search)
	g.POST("/intents/sort", h.Sort)
	g.POST("/intents/watch", h.Watch)
	g.GET("/watchlist", h.Watchlist)
	g.GET("/theme", h.Theme)
	g.POST("/theme/toggle", h.ToggleTheme)

	var mw []echo.MiddlewareFunc
	if h.limiter != nil {
		mw = append(mw, middleware.RateLimit(h.limiter))
	}
	g.GET("/predictions", h.Predictions, mw...)
	g.GET("/predictions/:symbol", h.PredictionDetail, mw...)
	g.GET("/summary", h.Summary, mw...)
	g.GET("/movers", h.Movers, mw...)
	g.GET("/history", h.History, mw...)
}

// Market renders the view. q and sort override the stored intents for this request only.
func (h *MarketEchoHandler) Market(c echo.Context) error {
	req := &models.MarketQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	term, policy := h.view.Intents()
	params := c.QueryParams()
	if params.Has("q") {
		term = req.Q
	}
	if req.Sort != "" {
		p, err := models.ParseSortPolicy(req.Sort)
		if err != nil {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError("sort", err.Error()))
		}
		policy = p
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.SuccessResponse(c, h.view.ViewWith(c.Request().Context(), term, policy))
}

func (h *MarketEchoHandler) Search(c echo.Context) error {
	req := &models.SearchIntent{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	h.view.SetSearchTerm(req.Term)
	return xhttp.SuccessResponse(c, h.view.View(c.Request().Context()))
}

func (h *MarketEchoHandler) Sort(c echo.Context) error {
	req := &models.SortIntent{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	policy, err := models.ParseSortPolicy(req.Policy)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("policy", err.Error()))
	}
	h.view.SetSortPolicy(policy)
	return xhttp.SuccessResponse(c, h.view.View(c.Request().Context()))
}

func (h *MarketEchoHandler) Watch(c echo.Context) error {
	req := &models.WatchIntent{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	watched, err := h.view.ToggleWatch(c.Request().Context(), req.Symbol)
	if err != nil {
		h.logger.Error("watchlist toggle failed", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("could not persist watchlist").WithError(err))
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{"symbol": strings.ToUpper(req.Symbol), "watched": watched})
}

func (h *MarketEchoHandler) Watchlist(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]interface{}{"symbols": h.view.Watchlist(c.Request().Context())})
}

func (h *MarketEchoHandler) Theme(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]bool{"dark_mode": h.view.DarkMode(c.Request().Context())})
}

func (h *MarketEchoHandler) ToggleTheme(c echo.Context) error {
	dark, err := h.view.ToggleTheme(c.Request().Context())
	if err != nil {
		h.logger.Error("theme toggle failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("could not persist theme").WithError(err))
	}
	return xhttp.SuccessResponse(c, map[string]bool{"dark_mode": dark})
}

func (h *MarketEchoHandler) Predictions(c echo.Context) error {
	req := &models.PredictionsQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	preds, err := h.api.Predictions(c.Request().Context(), "")
	if err != nil {
		return h.upstream(c, "predictions", err)
	}
	if preds == nil {
		return xhttp.AppErrorResponse(c, xhttp.UpstreamError("predictions unavailable"))
	}

	ranked := usecase.RankPredictions(preds, usecase.PredictionQuery{
		Signal: req.Signal,
		Field:  req.Field,
		Desc:   req.Order == "desc",
	})
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"predictions": ranked,
		"stats":       usecase.SummarizePredictions(preds),
	})
}

func (h *MarketEchoHandler) PredictionDetail(c echo.Context) error {
	symbol := c.Param("symbol")
	p, err := h.api.PredictionDetail(c.Request().Context(), symbol)
	if err != nil {
		return h.upstream(c, "prediction detail", err)
	}
	if p == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no prediction for %s", symbol))
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"prediction":    p,
		"expected_gain": usecase.ExpectedGain(*p),
	})
}

func (h *MarketEchoHandler) Summary(c echo.Context) error {
	req := &models.SummaryQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, err := h.api.Summary(c.Request().Context(), req.SortBy, req.SortOrder)
	if err != nil {
		return h.upstream(c, "summary", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, rows)
}

func (h *MarketEchoHandler) Movers(c echo.Context) error {
	m, err := h.api.Movers(c.Request().Context())
	if err != nil {
		return h.upstream(c, "movers", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, m)
}

func (h *MarketEchoHandler) History(c echo.Context) error {
	req := &models.HistoryQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	sets, err := h.api.CompanyHistory(c.Request().Context(), util.ParseCSV(req.Companies), req.Agg)
	if err != nil {
		return h.upstream(c, "history", err)
	}
	return xhttp.SuccessResponse(c, sets)
}

func (h *MarketEchoHandler) upstream(c echo.Context, what string, err error) error {
	h.logger.Error(what+" request failed", xlogger.String("route", c.Path()), xlogger.Error(err))
	if errors.Is(err, marketapi.ErrAuthFailure) {
		return xhttp.AppErrorResponse(c, xhttp.UpstreamError("upstream authentication failed").WithError(err))
	}
	return xhttp.AppErrorResponse(c, xhttp.UpstreamError(what+" unavailable").WithError(err))
}

var (
	_ xhttp.Handler = (*MarketEchoHandler)(nil)
	_ HistoricalAPI = (*marketapi.Client)(nil)
)
