package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/victoralfred/varbacktest/internal/core/domain"
	"github.com/victoralfred/varbacktest/internal/core/services/backtest"
	"github.com/victoralfred/varbacktest/internal/report"
	"github.com/victoralfred/varbacktest/internal/returns"
	"go.uber.org/zap"
)

// BacktestService is the subset of the backtester the handler drives
type BacktestService interface {
	Run(ctx context.Context, req backtest.Request) (*report.Report, error)
	RunBatch(ctx context.Context, reqs []backtest.Request) ([]backtest.BatchResult, error)
	Get(ctx context.Context, id uuid.UUID) (*report.Report, error)
	List(ctx context.Context, limit int) ([]*report.Report, error)
}

// DefaultSignificance is used when the handler is given none in (0, 1)
const DefaultSignificance = 0.05

// BacktestHandler serves the backtest and direct test endpoints
type BacktestHandler struct {
	service      BacktestService
	maxBatchSize int
	significance float64
	logger       *zap.Logger
}

// NewBacktestHandler creates a new backtest handler. Results are decided
// at the given significance level.
func NewBacktestHandler(service BacktestService, maxBatchSize int, significance float64, logger *zap.Logger) *BacktestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxBatchSize <= 0 {
		maxBatchSize = 100
	}
	if significance <= 0 || significance >= 1 {
		significance = DefaultSignificance
	}
	return &BacktestHandler{
		service:      service,
		maxBatchSize: maxBatchSize,
		significance: significance,
		logger:       logger,
	}
}

// Register mounts the handler's routes on rg
func (h *BacktestHandler) Register(rg *gin.RouterGroup) {
	backtests := rg.Group("/backtests")
	{
		backtests.POST("", h.RunBacktest)
		backtests.POST("/batch", h.RunBatch)
		backtests.GET("", h.ListBacktests)
		backtests.GET("/:id", h.GetBacktest)
		backtests.GET("/:id/chart", h.GetChart)
	}

	tests := rg.Group("/tests")
	{
		tests.POST("/kupiec", h.Kupiec)
		tests.POST("/christoffersen", h.Christoffersen)
		tests.POST("/conditional", h.Conditional)
	}
}

// BacktestRequest represents a backtest request. Exactly one of Returns,
// Prices or Observations must be given; prices become simple returns.
type BacktestRequest struct {
	Symbol       string               `json:"symbol"`
	Returns      []float64            `json:"returns"`
	Prices       []float64            `json:"prices"`
	Observations []domain.Observation `json:"observations"`
	Threshold    *float64             `json:"threshold"`
	Confidence   float64              `json:"confidence"`
}

func (r BacktestRequest) toRequest() (backtest.Request, error) {
	req := backtest.Request{
		Symbol:     r.Symbol,
		Threshold:  r.Threshold,
		Confidence: r.Confidence,
	}

	given := 0
	for _, n := range []int{len(r.Returns), len(r.Prices), len(r.Observations)} {
		if n > 0 {
			given++
		}
	}
	if given != 1 {
		return req, domain.NewInvalidParameterError("parse_request", "series", given,
			"exactly one of returns, prices or observations")
	}

	switch {
	case len(r.Prices) > 0:
		series, err := returns.FromPrices(returns.PricesFromFloats(r.Prices))
		if err != nil {
			return req, err
		}
		req.Observations = series.Observations()
	case len(r.Observations) > 0:
		req.Observations = r.Observations
	default:
		req.Returns = r.Returns
	}
	return req, nil
}

// RunBacktest runs a single backtest
func (h *BacktestHandler) RunBacktest(c *gin.Context) {
	var body BacktestRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST_BODY", "Invalid request body", err.Error())
		return
	}

	req, err := body.toRequest()
	if err != nil {
		writeError(c, err)
		return
	}

	r, err := h.service.Run(c.Request.Context(), req)
	if err != nil {
		h.logFailure(c, "run_backtest", err)
		writeError(c, err)
		return
	}

	respondDecided(c, http.StatusCreated, r, r.Verdicts(h.significance), r.Warnings...)
}

// BatchItem is the outcome of one request in a batch
type BatchItem struct {
	Index    int              `json:"index"`
	Report   *report.Report   `json:"report,omitempty"`
	Verdicts []report.Verdict `json:"verdicts,omitempty"`
	Error    *ErrorResponse   `json:"error,omitempty"`
}

// RunBatch runs several backtests concurrently. Each item succeeds or
// fails on its own.
func (h *BacktestHandler) RunBatch(c *gin.Context) {
	var body []BacktestRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST_BODY", "Invalid request body", err.Error())
		return
	}
	if len(body) == 0 || len(body) > h.maxBatchSize {
		writeError(c, domain.NewInvalidParameterError("run_batch", "batch_size", len(body),
			"1 <= batch_size <= "+strconv.Itoa(h.maxBatchSize)))
		return
	}

	items := make([]BatchItem, len(body))
	reqs := make([]backtest.Request, 0, len(body))
	positions := make([]int, 0, len(body))
	for i, b := range body {
		items[i].Index = i
		req, err := b.toRequest()
		if err != nil {
			items[i].Error = errorBody(err)
			continue
		}
		reqs = append(reqs, req)
		positions = append(positions, i)
	}

	if len(reqs) > 0 {
		results, err := h.service.RunBatch(c.Request.Context(), reqs)
		if err != nil {
			writeError(c, err)
			return
		}
		for i, res := range results {
			item := &items[positions[i]]
			if res.Err != nil {
				item.Error = errorBody(res.Err)
				continue
			}
			item.Report = res.Report
			item.Verdicts = res.Report.Verdicts(h.significance)
		}
	}

	respond(c, http.StatusOK, items)
}

// GetBacktest returns a stored report
func (h *BacktestHandler) GetBacktest(c *gin.Context) {
	r, ok := h.lookup(c)
	if !ok {
		return
	}
	respondDecided(c, http.StatusOK, r, r.Verdicts(h.significance), r.Warnings...)
}

// GetChart returns the chart series of a stored report
func (h *BacktestHandler) GetChart(c *gin.Context) {
	r, ok := h.lookup(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK, report.ChartSeries(r))
}

// ListBacktests returns the most recent reports
func (h *BacktestHandler) ListBacktests(c *gin.Context) {
	limit := 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			respondError(c, http.StatusBadRequest, "INVALID_LIMIT", "Invalid limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	reports, err := h.service.List(c.Request.Context(), limit)
	if err != nil {
		h.logFailure(c, "list_backtests", err)
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, reports)
}

func (h *BacktestHandler) lookup(c *gin.Context) (*report.Report, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid backtest id", "id must be a valid UUID")
		return nil, false
	}

	r, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.logFailure(c, "get_backtest", err)
		writeError(c, err)
		return nil, false
	}
	return r, true
}

// ExceedanceRequest carries a precomputed exceedance series
type ExceedanceRequest struct {
	Exceedances domain.ExceedanceSeries `json:"exceedances"`
	Confidence  float64                 `json:"confidence"`
}

// ConditionalRequest accepts either an exceedance series or the two
// component results to combine.
type ConditionalRequest struct {
	ExceedanceRequest
	Coverage     *domain.TestResult `json:"coverage"`
	Independence *domain.TestResult `json:"independence"`
}

// Kupiec runs the proportion-of-failures test
func (h *BacktestHandler) Kupiec(c *gin.Context) {
	var body ExceedanceRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST_BODY", "Invalid request body", err.Error())
		return
	}

	result, err := backtest.Kupiec(body.Exceedances, body.Confidence)
	if err != nil {
		writeError(c, err)
		return
	}
	respondDecided(c, http.StatusOK, result, []report.Verdict{report.NewVerdict(result.TestResult, h.significance, true)})
}

// Christoffersen runs the independence test
func (h *BacktestHandler) Christoffersen(c *gin.Context) {
	var body ExceedanceRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST_BODY", "Invalid request body", err.Error())
		return
	}

	result, err := backtest.Christoffersen(body.Exceedances)
	if err != nil {
		writeError(c, err)
		return
	}

	var warnings []string
	if result.Advisory != nil {
		warnings = append(warnings, result.Advisory.Message)
	}
	verdicts := []report.Verdict{report.NewVerdict(result.TestResult, h.significance, !result.Degenerate)}
	respondDecided(c, http.StatusOK, result, verdicts, warnings...)
}

// Conditional combines two component results into the conditional
// coverage test. Given an exceedance series instead, it returns the full
// evaluation of all three tests.
func (h *BacktestHandler) Conditional(c *gin.Context) {
	var body ConditionalRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST_BODY", "Invalid request body", err.Error())
		return
	}

	if body.Coverage != nil && body.Independence != nil {
		result, err := backtest.ConditionalCoverage(*body.Coverage, *body.Independence)
		if err != nil {
			writeError(c, err)
			return
		}
		respondDecided(c, http.StatusOK, result, []report.Verdict{report.NewVerdict(result, h.significance, true)})
		return
	}

	eval, err := backtest.Evaluate(body.Exceedances, body.Confidence)
	if err != nil {
		writeError(c, err)
		return
	}

	var warnings []string
	if eval.Independence.Advisory != nil {
		warnings = append(warnings, eval.Independence.Advisory.Message)
	}
	respondDecided(c, http.StatusOK, eval, report.EvaluationVerdicts(eval, h.significance), warnings...)
}

func (h *BacktestHandler) logFailure(c *gin.Context, operation string, err error) {
	if StatusFor(err) < http.StatusInternalServerError {
		return
	}
	h.logger.Error("request failed",
		zap.String("operation", operation),
		zap.String("request_id", c.GetString("request_id")),
		zap.Error(err),
	)
}
