package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bitfantasy/procurement/internal/security/entity"
	"github.com/bitfantasy/procurement/internal/security/repository"
	"github.com/bitfantasy/procurement/internal/shared/audit"
	"github.com/bitfantasy/procurement/internal/shared/crud"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditLogDTO read view of an audit row
type AuditLogDTO struct {
	ID          int64           `json:"id"`
	EntityName  string          `json:"entityName"`
	EntityID    *int64          `json:"entityId,omitempty"`
	Action      string          `json:"action"`
	Method      string          `json:"method,omitempty"`
	Actor       string          `json:"actor"`
	RequestID   string          `json:"requestId,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
	BeforeValue json.RawMessage `json:"beforeValue,omitempty"`
	AfterValue  json.RawMessage `json:"afterValue,omitempty"`
	Status      string          `json:"status"`
	ErrorDetail string          `json:"errorDetail,omitempty"`
	DurationMs  int64           `json:"durationMs"`
	Timestamp   time.Time       `json:"timestamp"`
}

func AuditLogToDTO(e *entity.AuditLog) AuditLogDTO {
	return AuditLogDTO{
		ID:          e.ID,
		EntityName:  e.EntityName,
		EntityID:    e.EntityID,
		Action:      e.Action,
		Method:      e.Method,
		Actor:       e.Actor,
		RequestID:   e.RequestID,
		Parameters:  rawJSON(e.Parameters),
		BeforeValue: rawJSON(e.BeforeValue),
		AfterValue:  rawJSON(e.AfterValue),
		Status:      e.Status,
		ErrorDetail: e.ErrorDetail,
		DurationMs:  e.DurationMs,
		Timestamp:   e.Timestamp,
	}
}

func rawJSON(v datatypes.JSON) json.RawMessage {
	if len(v) == 0 {
		return nil
	}
	return json.RawMessage(v)
}

// AuditService persists audit entries and serves them read-only.
type AuditService struct {
	crud.Base[entity.AuditLog, AuditLogDTO]
}

var _ audit.Sink = (*AuditService)(nil)

func NewAuditService(db *gorm.DB, repos *repository.Repositories) *AuditService {
	return &AuditService{
		Base: crud.Base[entity.AuditLog, AuditLogDTO]{DB: db, Repo: repos.AuditLog, ToDTO: AuditLogToDTO},
	}
}

// Record inserts e on the root connection so the row survives a rollback of
// the audited operation.
func (s *AuditService) Record(ctx context.Context, e audit.Entry) error {
	params, err := marshalJSON(e.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	before, err := marshalJSON(e.Before)
	if err != nil {
		return fmt.Errorf("marshal before value: %w", err)
	}
	after, err := marshalJSON(e.After)
	if err != nil {
		return fmt.Errorf("marshal after value: %w", err)
	}
	row := &entity.AuditLog{
		EntityName:  e.EntityName,
		EntityID:    e.EntityID,
		Action:      e.Action,
		Method:      e.Method,
		Actor:       e.Actor,
		RequestID:   e.RequestID,
		Parameters:  params,
		BeforeValue: before,
		AfterValue:  after,
		Status:      e.Status,
		ErrorDetail: e.ErrorDetail,
		DurationMs:  e.Duration.Milliseconds(),
		Timestamp:   e.Timestamp,
	}
	if row.Timestamp.IsZero() {
		row.Timestamp = time.Now()
	}
	if row.Actor == "" {
		row.Actor = audit.SystemActor
	}
	return s.DB.WithContext(ctx).Create(row).Error
}

func marshalJSON(v any) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		if len(raw) == 0 {
			return nil, nil
		}
		return datatypes.JSON(raw), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(b) == "null" {
		return nil, nil
	}
	return datatypes.JSON(b), nil
}

// ByEntity history of one entity, newest first.
func (s *AuditService) ByEntity(ctx context.Context, entityName string, entityID int64, p crud.Pageable) (*crud.Page[AuditLogDTO], error) {
	if p.SortBy == "" {
		p.SortBy = "timestamp"
		p.SortDir = "desc"
	}
	p = p.Normalize()
	items, total, err := s.Repo.FindAllWhere(ctx, p, "entity_name = ? AND entity_id = ?", entityName, entityID)
	if err != nil {
		return nil, err
	}
	return crud.NewPage(items, total, p, AuditLogToDTO), nil
}

// ByActor operations performed by one user, newest first.
func (s *AuditService) ByActor(ctx context.Context, actor string, p crud.Pageable) (*crud.Page[AuditLogDTO], error) {
	if p.SortBy == "" {
		p.SortBy = "timestamp"
		p.SortDir = "desc"
	}
	p = p.Normalize()
	items, total, err := s.Repo.FindAllWhere(ctx, p, "actor = ?", actor)
	if err != nil {
		return nil, err
	}
	return crud.NewPage(items, total, p, AuditLogToDTO), nil
}
