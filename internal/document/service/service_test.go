package service

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bitfantasy/procurement/internal/document/entity"
	"github.com/bitfantasy/procurement/internal/document/repository"
	"github.com/bitfantasy/procurement/internal/shared/apperr"
	"github.com/bitfantasy/procurement/internal/shared/audit"
	"github.com/bitfantasy/procurement/internal/shared/blob"
	"github.com/bitfantasy/procurement/internal/shared/model"
	"github.com/bitfantasy/procurement/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db   *gorm.DB
	root string
	svc  *Services
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	root := t.TempDir()
	return &fixture{
		db:   db,
		root: root,
		svc:  NewServices(db, repository.NewRepositories(db), blob.NewLocalStore(root), 1024, nil),
	}
}

func scope(n int) *int { return &n }

func upload(name, content string) Upload {
	return Upload{Name: name, Size: int64(len(content)), ContentType: "text/plain", Content: strings.NewReader(content)}
}

func kindOf(t *testing.T, err error) *apperr.Error {
	t.Helper()
	e, ok := apperr.As(err)
	require.True(t, ok, "expected apperr, got %v", err)
	return e
}

func TestDocumentTypeUniquePerScope(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.svc.DocumentType.Create(ctx, &DocumentTypeDTO{Designation: model.Designation{DesignationFr: "Bon de commande"}, Scope: scope(1)})
	require.NoError(t, err)

	_, err = f.svc.DocumentType.Create(ctx, &DocumentTypeDTO{Designation: model.Designation{DesignationFr: " Bon de commande "}, Scope: scope(1)})
	e := kindOf(t, err)
	assert.Equal(t, apperr.KindConflict, e.Kind)
	assert.Equal(t, "designationFr", e.Field)

	_, err = f.svc.DocumentType.Create(ctx, &DocumentTypeDTO{Designation: model.Designation{DesignationFr: "Bon de commande"}, Scope: scope(2)})
	require.NoError(t, err)

	_, err = f.svc.DocumentType.Create(ctx, &DocumentTypeDTO{Designation: model.Designation{DesignationFr: "Facture"}})
	e = kindOf(t, err)
	assert.Equal(t, apperr.KindValidation, e.Kind)
	assert.Contains(t, e.Fields, "scope")

	byScope, err := f.svc.DocumentType.ByScope(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, byScope, 1)
}

func TestFileUploadAndOpen(t *testing.T) {
	f := setup(t)
	ctx := audit.WithActor(context.Background(), "amina")

	dto, err := f.svc.File.Upload(ctx, upload("../../Rapport.PDF", "hello"))
	require.NoError(t, err)
	assert.Equal(t, "Rapport.PDF", dto.OriginalName)
	assert.Equal(t, "pdf", dto.Extension)
	assert.Equal(t, int64(5), dto.Size)
	assert.Equal(t, "amina", dto.UploadedBy)

	meta, rc, err := f.svc.File.Open(ctx, dto.ID)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
	assert.Equal(t, dto.ID, meta.ID)

	_, err = f.svc.File.Create(ctx, &FileDTO{OriginalName: "x"})
	assert.Equal(t, apperr.KindBusinessRule, apperr.KindOf(err))
}

func TestFileUploadLimits(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.svc.File.Upload(ctx, upload("empty.txt", ""))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.svc.File.Upload(ctx, upload("big.txt", strings.Repeat("x", 2048)))
	e := kindOf(t, err)
	assert.Equal(t, apperr.KindValidation, e.Kind)
	assert.Contains(t, e.Fields, "file")

	entries, err := os.ReadDir(f.root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileDeleteGuardedByMails(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	file, err := f.svc.File.Upload(ctx, upload("courrier.txt", "objet"))
	require.NoError(t, err)
	dt, err := f.svc.DocumentType.Create(ctx, &DocumentTypeDTO{Designation: model.Designation{DesignationFr: "Courrier"}, Scope: scope(0)})
	require.NoError(t, err)
	mail, err := f.svc.Mail.Create(ctx, &MailDTO{
		Reference:      "C-2024-001",
		Subject:        "Convocation",
		Direction:      "incoming",
		MailDate:       &[]time.Time{time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)}[0],
		DocumentTypeID: dt.ID,
		FileID:         &file.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.DirectionIncoming, mail.Direction)

	err = f.svc.File.Delete(ctx, file.ID)
	e := kindOf(t, err)
	assert.Equal(t, apperr.KindDependentsExist, e.Kind)
	assert.Equal(t, "mails", e.Field)

	var stored entity.File
	require.NoError(t, f.db.First(&stored, file.ID).Error)

	require.NoError(t, f.svc.Mail.Delete(ctx, mail.ID))
	require.NoError(t, f.svc.File.Delete(ctx, file.ID))

	_, err = os.Stat(filepath.Join(f.root, filepath.FromSlash(stored.Path)))
	assert.True(t, os.IsNotExist(err))
	_, _, err = f.svc.File.Open(ctx, file.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestMailValidation(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.svc.Mail.Create(ctx, &MailDTO{Reference: "C-1", Subject: "Objet", Direction: "SIDEWAYS"})
	e := kindOf(t, err)
	assert.Equal(t, apperr.KindValidation, e.Kind)
	assert.Contains(t, e.Fields, "direction")
	assert.Contains(t, e.Fields, "mailDate")
	assert.Contains(t, e.Fields, "documentTypeId")

	when := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	_, err = f.svc.Mail.Create(ctx, &MailDTO{
		Reference:      "C-1",
		Subject:        "Objet",
		Direction:      "OUTGOING",
		MailDate:       &when,
		DocumentTypeID: 77,
	})
	e = kindOf(t, err)
	assert.Equal(t, apperr.KindRelationMissing, e.Kind)
	assert.Equal(t, "documentTypeId", e.Field)
}
