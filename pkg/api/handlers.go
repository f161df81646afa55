package api

import (
	"fmt"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/monarch-xyz/sentinel/pkg/signal"
	"github.com/monarch-xyz/sentinel/pkg/simulate"
)

// submitSignalHandler handles POST /api/v1/signals: compiles the
// submitted DSL and, on success, persists the signal.
func (s *Server) submitSignalHandler(c *echo.Context) error {
	var req CreateSignalRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Name == "" || req.WebhookURL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name and webhook_url are required")
	}

	ast, err := s.compileDefinition(req.Definition)
	if err != nil {
		return mapServiceError(err)
	}

	sig := &signal.Signal{
		UserID:      req.UserID,
		Name:        req.Name,
		Description: req.Description,
		Definition: signal.StoredDefinition{
			Version: signal.CurrentVersion,
			DSL:     req.Definition,
			AST:     ast,
		},
		WebhookURL:         req.WebhookURL,
		WebhookSecretValue: req.WebhookSecret,
		CooldownMinutes:    req.CooldownMinutes,
		IsActive:           true,
	}

	if err := s.store.CreateSignal(c.Request().Context(), sig); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusCreated, newSignalResponse(sig))
}

// getSignalHandler handles GET /api/v1/signals/:id.
func (s *Server) getSignalHandler(c *echo.Context) error {
	id := c.Param("id")
	sig, err := s.store.GetSignal(c.Request().Context(), id)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, newSignalResponse(sig))
}

// compilePreviewHandler handles POST /api/v1/compile: validates a DSL
// definition without persisting anything, for editor-style feedback.
func (s *Server) compilePreviewHandler(c *echo.Context) error {
	var req CompilePreviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ast, err := s.compileDefinition(req.Definition)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, CompilePreviewResponse{Valid: true, AST: ast})
}

// simulateHandler handles POST /api/v1/signals/:id/simulate,
// dispatching to Simulator.Evaluate, Sweep, or FirstTrigger depending
// on the request's mode.
func (s *Server) simulateHandler(c *echo.Context) error {
	if s.simulator == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "simulator not configured")
	}

	id := c.Param("id")
	sig, err := s.store.GetSignal(c.Request().Context(), id)
	if err != nil {
		return mapServiceError(err)
	}

	var req SimulateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	chainID := primaryChain(sig.Definition.DSL)
	window := sig.Definition.DSL.Window
	ast := sig.Definition.AST

	switch req.Mode {
	case "", "point":
		at := time.Now()
		if req.AtUnixMs > 0 {
			at = time.UnixMilli(req.AtUnixMs)
		}
		result := s.simulator.Evaluate(ctx, sig.ID, chainID, window, at, ast)
		return c.JSON(http.StatusOK, newPointResponse(at, result))

	case "sweep":
		if req.StartUnixMs == 0 || req.EndUnixMs == 0 || req.StepMs == 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "sweep requires start_unix_ms, end_unix_ms, step_ms")
		}
		opts := simulate.SweepOptions{
			Start:    time.UnixMilli(req.StartUnixMs),
			End:      time.UnixMilli(req.EndUnixMs),
			StepMs:   req.StepMs,
			MaxSteps: req.MaxSteps,
		}
		points, err := s.simulator.Sweep(ctx, sig.ID, chainID, window, ast, opts)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		resp := SweepResponse{Points: make([]PointResponse, len(points))}
		for i, p := range points {
			resp.Points[i] = newPointResponse(p.At, p.Result)
		}
		return c.JSON(http.StatusOK, resp)

	case "first_trigger":
		if req.StartUnixMs == 0 || req.EndUnixMs == 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "first_trigger requires start_unix_ms, end_unix_ms")
		}
		precision := req.PrecisionMs
		if precision <= 0 {
			precision = 1000
		}
		start := time.UnixMilli(req.StartUnixMs)
		end := time.UnixMilli(req.EndUnixMs)
		at, err := s.simulator.FirstTrigger(ctx, sig.ID, chainID, window, ast, start, end, precision)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return c.JSON(http.StatusOK, FirstTriggerResponse{TriggeredAt: at})

	default:
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown simulate mode %q", req.Mode))
	}
}

func primaryChain(def signal.Definition) int64 {
	if len(def.Scope.ChainIDs) == 0 {
		return 0
	}
	return def.Scope.ChainIDs[0]
}
