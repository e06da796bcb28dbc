package api

import (
	"errors"
	"time"

	"github.com/labstack/echo/v4"

	"ForexPulse/internal/domain/models"
	domrepo "ForexPulse/internal/domain/repository"
	"ForexPulse/internal/usecase"
	xhttp "ForexPulse/pkg/http"
	xlogger "ForexPulse/pkg/logger"
	"ForexPulse/pkg/util"
)

// Handler serves the read-only query API and the news push.
type Handler struct {
	logger      *xlogger.Logger
	q           *usecase.QueryUseCase
	environment string
	pushPoll    time.Duration
}

func NewHandler(logger *xlogger.Logger, q *usecase.QueryUseCase, environment string, pushPoll time.Duration) *Handler {
	if pushPoll <= 0 {
		pushPoll = 5 * time.Second
	}
	return &Handler{logger: logger, q: q, environment: environment, pushPoll: pushPoll}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.GET("/instruments", h.Instruments)
	e.GET("/prices", h.Prices)
	e.GET("/news", h.News)
	e.GET("/macro", h.Macro)
	e.GET("/signals", h.Signals)
	e.GET("/signals/latest", h.LatestSignal)
	e.GET("/ws/news", h.NewsStream)
}

type healthResponse struct {
	Status      string             `json:"status"`
	Environment string             `json:"environment"`
	StoreOK     bool               `json:"store_ok"`
	RedisOK     bool               `json:"redis_ok"`
	Jobs        []models.JobHealth `json:"jobs"`
}

func (h *Handler) Health(c echo.Context) error {
	res, err := h.q.Health(c.Request().Context())
	if err != nil {
		h.logger.Error("health usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, healthResponse{
		Status:      "ok",
		Environment: h.environment,
		StoreOK:     res.StoreOK,
		RedisOK:     res.RedisOK,
		Jobs:        res.Jobs,
	})
}

func (h *Handler) Instruments(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.q.Instruments())
}

func (h *Handler) Prices(c echo.Context) error {
	req := &models.PricesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.q.GetPrices(c.Request().Context(), usecase.GetPricesParams{
		Instrument: req.Instrument,
		Timeframe:  domrepo.NormalizeTimeframe(req.Timeframe),
		Limit:      req.Limit,
		Offset:     req.Offset,
	})
	if err != nil {
		h.logger.Error("prices usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *Handler) News(c echo.Context) error {
	req := &models.NewsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, err := h.q.ListNews(c.Request().Context(), domrepo.NewsQuery{
		Asset:  req.Asset,
		Impact: req.Impact,
		Limit:  req.Limit,
		Offset: req.Offset,
	})
	if err != nil {
		h.logger.Error("news usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, rows, req.Limit, req.Offset)
}

func (h *Handler) Macro(c echo.Context) error {
	req := &models.MacroRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	q := domrepo.MacroQuery{Currency: req.Currency, Limit: req.Limit}
	if req.Start != "" {
		t, ok := util.ParseTime(req.Start)
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("start", "start is not a valid time: %q", req.Start))
		}
		q.From = t
	}
	if req.End != "" {
		t, ok := util.ParseTime(req.End)
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("end", "end is not a valid time: %q", req.End))
		}
		q.To = t
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.From.After(q.To) {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("start", "start must be before end"))
	}
	rows, err := h.q.ListMacro(c.Request().Context(), q)
	if err != nil {
		h.logger.Error("macro usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, rows, req.Limit, 0)
}

func (h *Handler) Signals(c echo.Context) error {
	req := &models.SignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, err := h.q.ListSignals(c.Request().Context(), domrepo.SignalQuery{
		Instrument: req.Instrument,
		Limit:      req.Limit,
		Offset:     req.Offset,
	})
	if err != nil {
		h.logger.Error("signals usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, rows, req.Limit, req.Offset)
}

func (h *Handler) LatestSignal(c echo.Context) error {
	req := &models.LatestSignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	sig, err := h.q.LatestSignal(c.Request().Context(), req.Instrument)
	if errors.Is(err, domrepo.ErrNotFound) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no signal for %s yet", req.Instrument))
	}
	if err != nil {
		h.logger.Error("latest signal usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, sig)
}
