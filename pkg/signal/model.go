package signal

import (
	"encoding/json"
	"time"
)

// Signal is a stored, user-authored monitor: its compiled definition, its
// dispatch target, and its cooldown/activity bookkeeping.
type Signal struct {
	ID                 string           `json:"id" db:"id"`
	UserID             string           `json:"user_id" db:"user_id"`
	Name               string           `json:"name" db:"name"`
	Description        string           `json:"description,omitempty" db:"description"`
	Definition         StoredDefinition `json:"definition" db:"-"`
	WebhookURL         string           `json:"webhook_url" db:"webhook_url"`
	WebhookSecretValue string           `json:"-" db:"webhook_secret"`
	CooldownMinutes    int              `json:"cooldown_minutes" db:"cooldown_minutes"`
	IsActive           bool             `json:"is_active" db:"is_active"`
	CreatedAt          time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at" db:"updated_at"`
	LastEvaluatedAt    *time.Time       `json:"last_evaluated_at,omitempty" db:"last_evaluated_at"`
	LastTriggeredAt    *time.Time       `json:"last_triggered_at,omitempty" db:"last_triggered_at"`
}

// WebhookSecret returns the shared secret used to HMAC-sign outbound
// webhook bodies, empty when unconfigured.
func (s *Signal) WebhookSecret() string {
	return s.WebhookSecretValue
}

// CooldownActive reports whether, as of now, a new trigger must be
// suppressed because the signal last fired within its cooldown window.
func (s *Signal) CooldownActive(now time.Time) bool {
	if s.LastTriggeredAt == nil || s.CooldownMinutes <= 0 {
		return false
	}
	elapsed := now.Sub(*s.LastTriggeredAt)
	return elapsed < time.Duration(s.CooldownMinutes)*time.Minute
}

// CurrentVersion is the StoredDefinition schema version this build of the
// compiler emits.
const CurrentVersion = 1

// NormalizeStoredDefinition accepts either a versioned StoredDefinition
// envelope or a raw Definition (legacy, pre-versioning rows) and always
// returns a versioned StoredDefinition, compiling the AST when one
// isn't already present.
//
// compileFn is injected rather than imported directly to avoid a cyclic
// dependency between pkg/signal and pkg/compile.
func NormalizeStoredDefinition(raw []byte, compileFn func(Definition) (AST, error)) (StoredDefinition, error) {
	var versioned struct {
		Version int         `json:"version"`
		DSL     *Definition `json:"dsl"`
		AST     *AST        `json:"ast"`
	}
	if err := json.Unmarshal(raw, &versioned); err == nil && versioned.DSL != nil {
		sd := StoredDefinition{Version: versioned.Version, DSL: *versioned.DSL}
		if versioned.AST != nil {
			sd.AST = *versioned.AST
			return sd, nil
		}
		ast, err := compileFn(*versioned.DSL)
		if err != nil {
			return StoredDefinition{}, err
		}
		sd.AST = ast
		sd.Version = CurrentVersion
		return sd, nil
	}

	var def Definition
	if err := def.UnmarshalJSON(raw); err != nil {
		return StoredDefinition{}, err
	}
	ast, err := compileFn(def)
	if err != nil {
		return StoredDefinition{}, err
	}
	return StoredDefinition{Version: CurrentVersion, DSL: def, AST: ast}, nil
}
