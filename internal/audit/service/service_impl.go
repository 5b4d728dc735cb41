package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/railzwaylabs/interviewledger/internal/audit/domain"
	"github.com/railzwaylabs/interviewledger/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultListLimit = 100

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) AuditLog(ctx context.Context, institutionID *string, action, targetType string, targetID *string, metadata map[string]any) error {
	action = strings.TrimSpace(action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}

	actor := auditdomain.ActorFromContext(ctx)
	entry := auditdomain.AuditLog{
		ID:            s.genID.Generate(),
		InstitutionID: institutionID,
		ActorType:     actor.Type,
		Action:        action,
		TargetType:    targetType,
		TargetID:      targetID,
		CreatedAt:     s.clock.Now(ctx),
	}
	if actor.ID != "" {
		id := actor.ID
		entry.ActorID = &id
	}
	if len(metadata) > 0 {
		entry.Metadata = datatypes.JSONMap(metadata)
	}

	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		s.log.Warn("failed to write audit log",
			zap.String("action", action),
			zap.String("target_type", targetType),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListRequest) ([]auditdomain.AuditLog, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := s.db.WithContext(ctx).Model(&auditdomain.AuditLog{})
	if req.InstitutionID != nil {
		query = query.Where("institution_id = ?", *req.InstitutionID)
	}
	if action := strings.TrimSpace(req.Action); action != "" {
		query = query.Where("action = ?", action)
	}

	var logs []auditdomain.AuditLog
	if err := query.Order("id DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
