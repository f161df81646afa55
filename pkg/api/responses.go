package api

import (
	"time"

	"github.com/monarch-xyz/sentinel/pkg/eval"
	"github.com/monarch-xyz/sentinel/pkg/signal"
)

// HealthResponse is the GET /health body.
type HealthResponse struct {
	Status     string            `json:"status"`
	WorkerPool *WorkerPoolStatus `json:"worker_pool,omitempty"`
}

// WorkerPoolStatus summarizes worker pool health for the health
// endpoint.
type WorkerPoolStatus struct {
	ActiveWorkers int    `json:"active_workers"`
	TotalWorkers  int    `json:"total_workers"`
	QueueDepth    int64  `json:"queue_depth"`
	Error         string `json:"error,omitempty"`
}

// SignalResponse is the JSON shape returned for a single signal, both
// on creation and on GET.
type SignalResponse struct {
	ID              string            `json:"id"`
	UserID          string            `json:"user_id"`
	Name            string            `json:"name"`
	Description     string            `json:"description,omitempty"`
	Definition      signal.Definition `json:"definition"`
	WebhookURL      string            `json:"webhook_url"`
	CooldownMinutes int               `json:"cooldown_minutes"`
	IsActive        bool              `json:"is_active"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	LastEvaluatedAt *time.Time        `json:"last_evaluated_at,omitempty"`
	LastTriggeredAt *time.Time        `json:"last_triggered_at,omitempty"`
}

func newSignalResponse(sig *signal.Signal) *SignalResponse {
	return &SignalResponse{
		ID:              sig.ID,
		UserID:          sig.UserID,
		Name:            sig.Name,
		Description:     sig.Description,
		Definition:      sig.Definition.DSL,
		WebhookURL:      sig.WebhookURL,
		CooldownMinutes: sig.CooldownMinutes,
		IsActive:        sig.IsActive,
		CreatedAt:       sig.CreatedAt,
		UpdatedAt:       sig.UpdatedAt,
		LastEvaluatedAt: sig.LastEvaluatedAt,
		LastTriggeredAt: sig.LastTriggeredAt,
	}
}

// CompilePreviewResponse is the POST /api/v1/compile body.
type CompilePreviewResponse struct {
	Valid bool       `json:"valid"`
	AST   signal.AST `json:"ast,omitempty"`
}

// PointResponse renders a single eval.Result as JSON.
type PointResponse struct {
	At         time.Time             `json:"at"`
	Triggered  bool                  `json:"triggered"`
	Conclusive bool                  `json:"conclusive"`
	Error      string                `json:"error,omitempty"`
	Traces     []eval.ConditionTrace `json:"traces,omitempty"`
}

func newPointResponse(at time.Time, result eval.Result) PointResponse {
	return PointResponse{
		At:         at,
		Triggered:  result.Triggered,
		Conclusive: result.Conclusive,
		Error:      result.Error,
		Traces:     result.Traces,
	}
}

// SweepResponse is the POST .../simulate response body when
// mode=sweep.
type SweepResponse struct {
	Points []PointResponse `json:"points"`
}

// FirstTriggerResponse is the POST .../simulate response body when
// mode=first_trigger. TriggeredAt is nil if the signal never triggers
// within the searched range.
type FirstTriggerResponse struct {
	TriggeredAt *time.Time `json:"triggered_at"`
}
