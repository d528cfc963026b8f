package crud

import (
	"context"

	"github.com/bitfantasy/procurement/internal/shared/apperr"
	"gorm.io/gorm"
)

// Guard names a table column referencing the entity being deleted.
type Guard struct {
	Table  string
	Column string
	// Label is the plural noun used in the error, e.g. "amendment steps".
	Label string
}

// CheckGuards refuses deletion of entity id while any guarded table still references it.
func CheckGuards(ctx context.Context, db *gorm.DB, entity string, id int64, guards ...Guard) error {
	for _, g := range guards {
		n, err := CountReferences(ctx, db, g.Table, g.Column, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.DependentsExist(entity, id, g.Label, n)
		}
	}
	return nil
}

// CountReferences counts rows of table whose column equals id.
func CountReferences(ctx context.Context, db *gorm.DB, table, column string, id int64) (int64, error) {
	var n int64
	err := Conn(ctx, db).Table(table).Where(column+" = ?", id).Count(&n).Error
	return n, err
}

// Resolve loads a referenced row, turning a miss into RelationMissing on field.
func Resolve[E any](ctx context.Context, repo *Repository[E], field string, id int64) (*E, error) {
	e, err := repo.FindByID(ctx, id)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.RelationMissing(field, repo.Name(), id)
		}
		return nil, err
	}
	return e, nil
}

// ResolveOptional resolves id when present.
func ResolveOptional[E any](ctx context.Context, repo *Repository[E], field string, id *int64) (*E, error) {
	if id == nil {
		return nil, nil
	}
	return Resolve(ctx, repo, field, *id)
}

// ResolveAll loads every referenced row, failing on the first missing id.
func ResolveAll[E any](ctx context.Context, repo *Repository[E], field string, ids []int64) ([]E, error) {
	ids = Distinct(ids)
	items, err := repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(items) == len(ids) {
		return items, nil
	}
	found := make(map[int64]bool, len(items))
	for i := range items {
		found[idOf(&items[i])] = true
	}
	for _, id := range ids {
		if !found[id] {
			return nil, apperr.RelationMissing(field, repo.Name(), id)
		}
	}
	return items, nil
}

// Distinct drops duplicate ids, keeping first occurrences.
func Distinct(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// Identified is implemented by every entity.
type Identified interface {
	GetID() int64
}

func idOf(e any) int64 {
	if i, ok := e.(Identified); ok {
		return i.GetID()
	}
	return 0
}

// Changed reports whether an optional foreign key differs from the stored one.
func Changed(stored, incoming *int64) bool {
	if stored == nil || incoming == nil {
		return stored != incoming
	}
	return *stored != *incoming
}
