package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	ActorTypeSystem   = "system"
	ActorTypeOperator = "operator"
	ActorTypeAPI      = "api"
)

var ErrInvalidAction = errors.New("invalid_audit_action")

// AuditLog is an append-only record of a state change made through the
// engine.
type AuditLog struct {
	ID            snowflake.ID      `gorm:"primaryKey" json:"id"`
	InstitutionID *string           `gorm:"type:varchar(64);index" json:"institution_id,omitempty"`
	ActorType     string            `gorm:"type:varchar(32);not null" json:"actor_type"`
	ActorID       *string           `gorm:"type:varchar(128)" json:"actor_id,omitempty"`
	Action        string            `gorm:"type:varchar(64);not null;index" json:"action"`
	TargetType    string            `gorm:"type:varchar(64);not null" json:"target_type"`
	TargetID      *string           `gorm:"type:varchar(128)" json:"target_id,omitempty"`
	Metadata      datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt     time.Time         `gorm:"not null;index" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

// Service records audit entries. The actor is taken from ctx.
type Service interface {
	AuditLog(ctx context.Context, institutionID *string, action, targetType string, targetID *string, metadata map[string]any) error
	List(ctx context.Context, req ListRequest) ([]AuditLog, error)
}

type ListRequest struct {
	InstitutionID *string
	Action        string
	Limit         int
}

// Actor identifies who triggered an operation.
type Actor struct {
	Type string
	ID   string
}

type actorKey struct{}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor stored in ctx, defaulting to system.
func ActorFromContext(ctx context.Context) Actor {
	if ctx != nil {
		if actor, ok := ctx.Value(actorKey{}).(Actor); ok && actor.Type != "" {
			return actor
		}
	}
	return Actor{Type: ActorTypeSystem}
}
