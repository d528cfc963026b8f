package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/bitfantasy/procurement/internal/document/entity"
	"github.com/bitfantasy/procurement/internal/document/repository"
	"github.com/bitfantasy/procurement/internal/shared/apperr"
	"github.com/bitfantasy/procurement/internal/shared/audit"
	"github.com/bitfantasy/procurement/internal/shared/blob"
	"github.com/bitfantasy/procurement/internal/shared/crud"
	"github.com/bitfantasy/procurement/internal/shared/validation"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// FileDTO metadata of an uploaded file. Path is never exposed.
type FileDTO struct {
	ID           int64      `json:"id,omitempty"`
	OriginalName string     `json:"originalName"`
	Extension    string     `json:"extension,omitempty"`
	Size         int64      `json:"size"`
	FileType     string     `json:"fileType,omitempty"`
	UploadedBy   string     `json:"uploadedBy,omitempty"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
}

func FileToDTO(e *entity.File) FileDTO {
	return FileDTO{
		ID:           e.ID,
		OriginalName: e.OriginalName,
		Extension:    e.Extension,
		Size:         e.Size,
		FileType:     e.FileType,
		UploadedBy:   e.UploadedBy,
		CreatedAt:    timePtr(e.CreatedAt),
	}
}

// Upload is one incoming file.
type Upload struct {
	Name        string
	Size        int64
	ContentType string
	Content     io.Reader
}

var _ crud.Service[FileDTO] = (*FileService)(nil)

// FileService file metadata backed by a blob store.
type FileService struct {
	crud.Base[entity.File, FileDTO]
	store   blob.Store
	maxSize int64
	logger  *zap.Logger
}

func NewFileService(db *gorm.DB, repos *repository.Repositories, store blob.Store, maxSize int64, logger *zap.Logger) *FileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileService{
		Base:    crud.Base[entity.File, FileDTO]{DB: db, Repo: repos.File, ToDTO: FileToDTO},
		store:   store,
		maxSize: maxSize,
		logger:  logger,
	}
}

// Upload stores the content under a random name, then records its metadata.
// The stored blob is removed again when the metadata cannot be saved.
func (s *FileService) Upload(ctx context.Context, up Upload) (*FileDTO, error) {
	name := filepath.Base(strings.TrimSpace(up.Name))
	v := validation.New()
	if name == "" || name == "." || name == string(filepath.Separator) {
		v.Add("file", "file is required")
	}
	if up.Size <= 0 {
		v.Add("file", "file must not be empty")
	}
	if s.maxSize > 0 && up.Size > s.maxSize {
		v.Add("file", fmt.Sprintf("file must not exceed %d bytes", s.maxSize))
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(name))
	contentType := up.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	path, err := s.store.Put(ctx, uuid.New().String()+ext, up.Content, up.Size, contentType)
	if err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}

	e := &entity.File{
		OriginalName: name,
		Extension:    strings.TrimPrefix(ext, "."),
		Size:         up.Size,
		Path:         path,
		FileType:     contentType,
		UploadedBy:   audit.ActorFromContext(ctx),
	}
	err = s.Tx(ctx, func(ctx context.Context) error {
		return s.Repo.Create(ctx, e)
	})
	if err != nil {
		if derr := s.store.Delete(context.WithoutCancel(ctx), path); derr != nil {
			s.logger.Warn("Failed to remove orphaned blob", zap.String("path", path), zap.Error(derr))
		}
		return nil, err
	}
	out := FileToDTO(e)
	return &out, nil
}

// Open returns the metadata and content of file id. Callers close the reader.
func (s *FileService) Open(ctx context.Context, id int64) (*FileDTO, io.ReadCloser, error) {
	e, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.store.Get(ctx, e.Path)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil, nil, &apperr.Error{
				Kind:    apperr.KindNotFound,
				Message: fmt.Sprintf("content of File %d not found", id),
				Entity:  "File",
				Value:   id,
			}
		}
		return nil, nil, err
	}
	out := FileToDTO(e)
	return &out, rc, nil
}

// Create is refused: content arrives through Upload.
func (s *FileService) Create(ctx context.Context, dto *FileDTO) (*FileDTO, error) {
	return nil, apperr.BusinessRule("files are created by multipart upload")
}

// Update renames the file; the other metadata describes the stored content.
func (s *FileService) Update(ctx context.Context, id int64, dto *FileDTO) (*FileDTO, error) {
	name := filepath.Base(strings.TrimSpace(dto.OriginalName))
	v := validation.New()
	v.Required("originalName", strings.Trim(name, "."+string(filepath.Separator)))
	v.MaxLen("originalName", name, 255)
	if err := v.Err(); err != nil {
		return nil, err
	}
	var out FileDTO
	err := s.Tx(ctx, func(ctx context.Context) error {
		e, err := s.Repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		e.OriginalName = name
		if err := s.Repo.Save(ctx, e); err != nil {
			return err
		}
		out = FileToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *FileService) Patch(ctx context.Context, id int64, patch json.RawMessage) (*FileDTO, error) {
	return s.PatchWith(ctx, id, patch, s.Update)
}

// Delete removes the row, then the blob. A blob left behind is only logged.
func (s *FileService) Delete(ctx context.Context, id int64) error {
	var path string
	err := s.Tx(ctx, func(ctx context.Context) error {
		e, err := s.Repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := crud.CheckGuards(ctx, s.DB, "File", id,
			crud.Guard{Table: "doc_mails", Column: "file_id", Label: "mails"},
		); err != nil {
			return err
		}
		path = e.Path
		return s.Repo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	if err := s.store.Delete(context.WithoutCancel(ctx), path); err != nil {
		s.logger.Warn("Failed to delete blob", zap.Int64("file_id", id), zap.String("path", path), zap.Error(err))
	}
	return nil
}
