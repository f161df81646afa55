package api

import "github.com/monarch-xyz/sentinel/pkg/signal"

// CreateSignalRequest is the POST /api/v1/signals body: a DSL
// definition plus the bookkeeping fields a signal row needs but the
// DSL itself does not carry.
type CreateSignalRequest struct {
	UserID          string            `json:"user_id"`
	Name            string            `json:"name"`
	Description     string            `json:"description,omitempty"`
	Definition      signal.Definition `json:"definition"`
	WebhookURL      string            `json:"webhook_url"`
	WebhookSecret   string            `json:"webhook_secret,omitempty"`
	CooldownMinutes int               `json:"cooldown_minutes"`
}

// CompilePreviewRequest is the POST /api/v1/compile body: a DSL
// definition to validate without persisting it, for editor-style
// "does this compile" feedback.
type CompilePreviewRequest struct {
	Definition signal.Definition `json:"definition"`
}

// SimulateRequest is the POST /api/v1/signals/:id/simulate body. Mode
// selects which of the three Simulator operations to run; the other
// fields are interpreted according to Mode.
type SimulateRequest struct {
	Mode string `json:"mode"` // "point" | "sweep" | "first_trigger"

	// point
	AtUnixMs int64 `json:"at_unix_ms,omitempty"`

	// sweep
	StartUnixMs int64 `json:"start_unix_ms,omitempty"`
	EndUnixMs   int64 `json:"end_unix_ms,omitempty"`
	StepMs      int64 `json:"step_ms,omitempty"`
	MaxSteps    int   `json:"max_steps,omitempty"`

	// first_trigger (reuses StartUnixMs/EndUnixMs above)
	PrecisionMs int64 `json:"precision_ms,omitempty"`
}
