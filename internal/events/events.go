package events

import (
	"context"
	"time"
)

const (
	TypePriceChangeScheduled = "price_change.scheduled"
	TypePriceChangeApplied   = "price_change.applied"
	TypePriceChangeCancelled = "price_change.cancelled"
	TypePricingUpdated       = "pricing.updated"
	TypeOverrideToggled      = "pricing.override_toggled"
	TypePurchaseCreated      = "session_purchase.created"
	TypePurchaseCompleted    = "session_purchase.completed"
	TypePurchaseCancelled    = "session_purchase.cancelled"
	TypePurchaseImported     = "session_purchase.imported"
	TypeSessionsConsumed     = "session_pool.consumed"
)

// Event is a domain fact published after the state change it describes has
// been committed.
type Event struct {
	Type          string         `json:"type"`
	InstitutionID string         `json:"institution_id,omitempty"`
	SubjectID     string         `json:"subject_id,omitempty"`
	OccurredAt    time.Time      `json:"occurred_at"`
	Data          map[string]any `json:"data,omitempty"`
}

// Key partitions events so one institution's facts stay ordered.
func (e Event) Key() string {
	if e.InstitutionID != "" {
		return e.InstitutionID
	}
	return e.Type
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Publish(_ context.Context, evt Event) error {
	r.Events = append(r.Events, evt)
	return nil
}

func (r *Recorder) Types() []string {
	out := make([]string, 0, len(r.Events))
	for _, evt := range r.Events {
		out = append(out, evt.Type)
	}
	return out
}
