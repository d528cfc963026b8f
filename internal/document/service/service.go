package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bitfantasy/procurement/internal/document/entity"
	"github.com/bitfantasy/procurement/internal/document/repository"
	"github.com/bitfantasy/procurement/internal/shared/apperr"
	"github.com/bitfantasy/procurement/internal/shared/blob"
	"github.com/bitfantasy/procurement/internal/shared/crud"
	"github.com/bitfantasy/procurement/internal/shared/model"
	"github.com/bitfantasy/procurement/internal/shared/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services document services
type Services struct {
	DocumentType *DocumentTypeService
	File         *FileService
	Mail         *MailService
}

func NewServices(db *gorm.DB, repos *repository.Repositories, store blob.Store, maxSize int64, logger *zap.Logger) *Services {
	return &Services{
		DocumentType: NewDocumentTypeService(db, repos),
		File:         NewFileService(db, repos, store, maxSize, logger),
		Mail:         NewMailService(db, repos),
	}
}

// DocumentTypeDTO kind of document, unique per scope.
type DocumentTypeDTO struct {
	ID int64 `json:"id,omitempty"`
	model.Designation
	Scope *int `json:"scope"`
}

func DocumentTypeToDTO(e *entity.DocumentType) DocumentTypeDTO {
	scope := e.Scope
	return DocumentTypeDTO{ID: e.ID, Designation: e.Designation, Scope: &scope}
}

// DocumentTypeService document types; designationFr is unique within a scope.
type DocumentTypeService struct {
	crud.Base[entity.DocumentType, DocumentTypeDTO]
}

func NewDocumentTypeService(db *gorm.DB, repos *repository.Repositories) *DocumentTypeService {
	return &DocumentTypeService{
		Base: crud.Base[entity.DocumentType, DocumentTypeDTO]{DB: db, Repo: repos.DocumentType, ToDTO: DocumentTypeToDTO},
	}
}

func (s *DocumentTypeService) normalize(dto *DocumentTypeDTO) error {
	dto.Designation = dto.Designation.Trimmed()
	v := validation.New()
	dto.Designation.Validate(v)
	if dto.Scope == nil {
		v.Add("scope", "scope is required")
	} else if *dto.Scope < 0 {
		v.Add("scope", "scope must be zero or positive")
	}
	return v.Err()
}

func (s *DocumentTypeService) unique(ctx context.Context, dto *DocumentTypeDTO, excludeID int64) error {
	exists, err := s.Repo.ExistsWhere(ctx, "designation_fr = ? AND scope = ? AND id <> ?",
		dto.DesignationFr, *dto.Scope, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return apperr.Conflict("DocumentType", "designationFr", dto.DesignationFr)
	}
	return nil
}

func (s *DocumentTypeService) Create(ctx context.Context, dto *DocumentTypeDTO) (*DocumentTypeDTO, error) {
	if err := s.normalize(dto); err != nil {
		return nil, err
	}
	var out DocumentTypeDTO
	err := s.Tx(ctx, func(ctx context.Context) error {
		if err := s.unique(ctx, dto, 0); err != nil {
			return err
		}
		e := &entity.DocumentType{Designation: dto.Designation, Scope: *dto.Scope}
		if err := s.Repo.Create(ctx, e); err != nil {
			return err
		}
		out = DocumentTypeToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *DocumentTypeService) Update(ctx context.Context, id int64, dto *DocumentTypeDTO) (*DocumentTypeDTO, error) {
	if err := s.normalize(dto); err != nil {
		return nil, err
	}
	var out DocumentTypeDTO
	err := s.Tx(ctx, func(ctx context.Context) error {
		e, err := s.Repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.unique(ctx, dto, id); err != nil {
			return err
		}
		e.Designation = dto.Designation
		e.Scope = *dto.Scope
		if err := s.Repo.Save(ctx, e); err != nil {
			return err
		}
		out = DocumentTypeToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *DocumentTypeService) Patch(ctx context.Context, id int64, patch json.RawMessage) (*DocumentTypeDTO, error) {
	return s.PatchWith(ctx, id, patch, s.Update)
}

func (s *DocumentTypeService) Delete(ctx context.Context, id int64) error {
	return s.Tx(ctx, func(ctx context.Context) error {
		if _, err := s.Repo.FindByID(ctx, id); err != nil {
			return err
		}
		if err := crud.CheckGuards(ctx, s.DB, "DocumentType", id,
			crud.Guard{Table: "doc_mails", Column: "document_type_id", Label: "mails"},
		); err != nil {
			return err
		}
		return s.Repo.Delete(ctx, id)
	})
}

// ByScope GET /document-types/scope/:scope
func (s *DocumentTypeService) ByScope(ctx context.Context, scope int) ([]DocumentTypeDTO, error) {
	return s.ListBy(ctx, "scope", scope)
}

// MailDTO incoming or outgoing correspondence, optionally with a scanned file.
type MailDTO struct {
	ID             int64      `json:"id,omitempty"`
	Reference      string     `json:"reference"`
	Subject        string     `json:"subject"`
	Direction      string     `json:"direction"`
	MailDate       *time.Time `json:"mailDate,omitempty"`
	Sender         string     `json:"sender,omitempty"`
	Recipient      string     `json:"recipient,omitempty"`
	DocumentTypeID int64      `json:"documentTypeId"`
	FileID         *int64     `json:"fileId,omitempty"`
	CreatedAt      *time.Time `json:"createdAt,omitempty"`
	UpdatedAt      *time.Time `json:"updatedAt,omitempty"`

	DocumentType *DocumentTypeDTO `json:"documentType,omitempty"`
	File         *FileDTO         `json:"file,omitempty"`
}

func MailToDTO(e *entity.Mail) MailDTO {
	return MailDTO{
		ID:             e.ID,
		Reference:      e.Reference,
		Subject:        e.Subject,
		Direction:      e.Direction,
		MailDate:       timePtr(e.MailDate),
		Sender:         e.Sender,
		Recipient:      e.Recipient,
		DocumentTypeID: e.DocumentTypeID,
		FileID:         e.FileID,
		CreatedAt:      timePtr(e.CreatedAt),
		UpdatedAt:      timePtr(e.UpdatedAt),
	}
}

func mailWithRelations(e *entity.Mail) MailDTO {
	dto := MailToDTO(e)
	if e.DocumentType != nil {
		t := DocumentTypeToDTO(e.DocumentType)
		dto.DocumentType = &t
	}
	if e.File != nil {
		f := FileToDTO(e.File)
		dto.File = &f
	}
	return dto
}

// MailService registered correspondence; reference is the natural key.
type MailService struct {
	crud.Base[entity.Mail, MailDTO]
	repos *repository.Repositories
}

func NewMailService(db *gorm.DB, repos *repository.Repositories) *MailService {
	return &MailService{
		Base: crud.Base[entity.Mail, MailDTO]{
			DB:                 db,
			Repo:               repos.Mail,
			ToDTO:              MailToDTO,
			ToDTOWithRelations: mailWithRelations,
		},
		repos: repos,
	}
}

func (s *MailService) normalize(dto *MailDTO) error {
	dto.Reference = strings.TrimSpace(dto.Reference)
	dto.Subject = strings.TrimSpace(dto.Subject)
	dto.Direction = strings.ToUpper(strings.TrimSpace(dto.Direction))
	dto.Sender = strings.TrimSpace(dto.Sender)
	dto.Recipient = strings.TrimSpace(dto.Recipient)

	v := validation.New()
	v.Required("reference", dto.Reference)
	v.MaxLen("reference", dto.Reference, 100)
	v.Required("subject", dto.Subject)
	v.MaxLen("subject", dto.Subject, 500)
	v.OneOf("direction", dto.Direction, entity.DirectionIncoming, entity.DirectionOutgoing)
	v.RequiredTime("mailDate", dto.MailDate)
	v.MaxLen("sender", dto.Sender, 200)
	v.MaxLen("recipient", dto.Recipient, 200)
	v.RequiredID("documentTypeId", dto.DocumentTypeID)
	v.OptionalID("fileId", dto.FileID)
	return v.Err()
}

func (s *MailService) check(ctx context.Context, stored *entity.Mail, dto *MailDTO, excludeID int64) error {
	exists, err := s.Repo.ExistsExcluding(ctx, "reference", dto.Reference, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return apperr.Conflict("Mail", "reference", dto.Reference)
	}
	if stored == nil || stored.DocumentTypeID != dto.DocumentTypeID {
		if _, err := crud.Resolve(ctx, s.repos.DocumentType, "documentTypeId", dto.DocumentTypeID); err != nil {
			return err
		}
	}
	if stored == nil || crud.Changed(stored.FileID, dto.FileID) {
		if _, err := crud.ResolveOptional(ctx, s.repos.File, "fileId", dto.FileID); err != nil {
			return err
		}
	}
	return nil
}

func (s *MailService) apply(dto *MailDTO, e *entity.Mail) {
	e.Reference = dto.Reference
	e.Subject = dto.Subject
	e.Direction = dto.Direction
	e.MailDate = *dto.MailDate
	e.Sender = dto.Sender
	e.Recipient = dto.Recipient
	e.DocumentTypeID = dto.DocumentTypeID
	e.FileID = dto.FileID
}

func (s *MailService) Create(ctx context.Context, dto *MailDTO) (*MailDTO, error) {
	if err := s.normalize(dto); err != nil {
		return nil, err
	}
	var out MailDTO
	err := s.Tx(ctx, func(ctx context.Context) error {
		if err := s.check(ctx, nil, dto, 0); err != nil {
			return err
		}
		e := &entity.Mail{}
		s.apply(dto, e)
		if err := s.Repo.Create(ctx, e); err != nil {
			return err
		}
		out = MailToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *MailService) Update(ctx context.Context, id int64, dto *MailDTO) (*MailDTO, error) {
	if err := s.normalize(dto); err != nil {
		return nil, err
	}
	var out MailDTO
	err := s.Tx(ctx, func(ctx context.Context) error {
		e, err := s.Repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.check(ctx, e, dto, id); err != nil {
			return err
		}
		s.apply(dto, e)
		if err := s.Repo.Save(ctx, e); err != nil {
			return err
		}
		out = MailToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *MailService) Patch(ctx context.Context, id int64, patch json.RawMessage) (*MailDTO, error) {
	return s.PatchWith(ctx, id, patch, s.Update)
}

func (s *MailService) Delete(ctx context.Context, id int64) error {
	return s.Tx(ctx, func(ctx context.Context) error {
		if _, err := s.Repo.FindByID(ctx, id); err != nil {
			return err
		}
		return s.Repo.Delete(ctx, id)
	})
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
