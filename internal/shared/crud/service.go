package crud

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/bitfantasy/procurement/internal/shared/apperr"
	"gorm.io/gorm"
)

// Service is the uniform surface every business noun exposes to the HTTP layer.
type Service[D any] interface {
	Create(ctx context.Context, dto *D) (*D, error)
	Get(ctx context.Context, id int64) (*D, error)
	GetWithRelations(ctx context.Context, id int64) (*D, error)
	List(ctx context.Context, p Pageable) (*Page[D], error)
	Search(ctx context.Context, query string, p Pageable) (*Page[D], error)
	Update(ctx context.Context, id int64, dto *D) (*D, error)
	Patch(ctx context.Context, id int64, patch json.RawMessage) (*D, error)
	Delete(ctx context.Context, id int64) error
}

// Base implements the read side of Service for entity E viewed as D.
type Base[E any, D any] struct {
	DB                 *gorm.DB
	Repo               *Repository[E]
	ToDTO              func(*E) D
	ToDTOWithRelations func(*E) D
}

func (b *Base[E, D]) Get(ctx context.Context, id int64) (*D, error) {
	e, err := b.Repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d := b.ToDTO(e)
	return &d, nil
}

// GetWithRelations nests the DTOs of the entity's relations one level deep.
func (b *Base[E, D]) GetWithRelations(ctx context.Context, id int64) (*D, error) {
	e, err := b.Repo.FindByIDWithRelations(ctx, id)
	if err != nil {
		return nil, err
	}
	mapper := b.ToDTOWithRelations
	if mapper == nil {
		mapper = b.ToDTO
	}
	d := mapper(e)
	return &d, nil
}

func (b *Base[E, D]) List(ctx context.Context, p Pageable) (*Page[D], error) {
	p = p.Normalize()
	items, total, err := b.Repo.FindAll(ctx, p)
	if err != nil {
		return nil, err
	}
	return NewPage(items, total, p, b.ToDTO), nil
}

// Search falls back to the unpaginated listing when query is blank.
func (b *Base[E, D]) Search(ctx context.Context, query string, p Pageable) (*Page[D], error) {
	if strings.TrimSpace(query) == "" {
		items, err := b.Repo.ListAll(ctx)
		if err != nil {
			return nil, err
		}
		return Unpaged(items, b.ToDTO), nil
	}
	p = p.Normalize()
	items, total, err := b.Repo.Search(ctx, query, p)
	if err != nil {
		return nil, err
	}
	return NewPage(items, total, p, b.ToDTO), nil
}

// ListBy returns every row whose column equals value, as DTOs.
func (b *Base[E, D]) ListBy(ctx context.Context, column string, value any) ([]D, error) {
	items, err := b.Repo.FindBy(ctx, column, value)
	if err != nil {
		return nil, err
	}
	out := make([]D, 0, len(items))
	for i := range items {
		out = append(out, b.ToDTO(&items[i]))
	}
	return out, nil
}

// Tx runs fn in the transaction bound to ctx, opening one if needed.
func (b *Base[E, D]) Tx(ctx context.Context, fn func(ctx context.Context) error) error {
	return Transaction(ctx, b.DB, fn)
}

// PatchWith overlays the keys present in patch on the current DTO and runs update,
// all in one transaction.
func (b *Base[E, D]) PatchWith(ctx context.Context, id int64, patch json.RawMessage,
	update func(context.Context, int64, *D) (*D, error)) (*D, error) {
	var out *D
	err := b.Tx(ctx, func(ctx context.Context) error {
		cur, err := b.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := MergeJSON(cur, patch); err != nil {
			return err
		}
		out, err = update(ctx, id, cur)
		return err
	})
	return out, err
}

// MergeJSON decodes patch into dst; keys absent from patch keep their value.
func MergeJSON(dst any, patch json.RawMessage) error {
	if len(bytes.TrimSpace(patch)) == 0 {
		return nil
	}
	if err := json.Unmarshal(patch, dst); err != nil {
		return apperr.Validation(map[string]string{"body": "malformed JSON: " + err.Error()})
	}
	return nil
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
