// Package crud provides the generic persistence and service building blocks
// shared by every business module.
package crud

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bitfantasy/procurement/internal/shared/apperr"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Options describes how a Repository queries its table.
type Options struct {
	// Name is the entity name used in error messages.
	Name string
	// SearchColumns are OR-combined by Search with a case-insensitive substring match.
	SearchColumns []string
	// SortColumns maps accepted sortBy values to columns.
	SortColumns map[string]string
	// DefaultSort is the column used when sortBy is absent or unknown.
	DefaultSort string
	// Preloads are the relations loaded by FindByIDWithRelations.
	Preloads []string
	// DefaultPreloads are loaded by every read, typically many-to-many links
	// whose ids belong to the plain view.
	DefaultPreloads []string
}

// Repository is the generic data access object of one table.
type Repository[E any] struct {
	db   *gorm.DB
	opts Options
}

func NewRepository[E any](db *gorm.DB, opts Options) *Repository[E] {
	if opts.DefaultSort == "" {
		opts.DefaultSort = "id"
	}
	if opts.SortColumns == nil {
		opts.SortColumns = map[string]string{}
	}
	opts.SortColumns["id"] = "id"
	return &Repository[E]{db: db, opts: opts}
}

// Name returns the entity name used in errors.
func (r *Repository[E]) Name() string { return r.opts.Name }

// DB returns the root handle, not bound to any transaction.
func (r *Repository[E]) DB() *gorm.DB { return r.db }

// Conn returns the connection to use for ctx.
func (r *Repository[E]) Conn(ctx context.Context) *gorm.DB { return Conn(ctx, r.db) }

func (r *Repository[E]) model(ctx context.Context) *gorm.DB {
	var e E
	return r.Conn(ctx).Model(&e)
}

// FindByID returns apperr NotFound when no row has id.
func (r *Repository[E]) FindByID(ctx context.Context, id int64) (*E, error) {
	return r.first(r.preload(r.Conn(ctx)), id)
}

func (r *Repository[E]) preload(q *gorm.DB) *gorm.DB {
	for _, p := range r.opts.DefaultPreloads {
		q = q.Preload(p)
	}
	return q
}

// FindByIDWithRelations loads the row and its declared relations.
func (r *Repository[E]) FindByIDWithRelations(ctx context.Context, id int64) (*E, error) {
	q := r.preload(r.Conn(ctx))
	for _, p := range r.opts.Preloads {
		q = q.Preload(p)
	}
	return r.first(q, id)
}

func (r *Repository[E]) first(q *gorm.DB, id int64) (*E, error) {
	var e E
	if err := q.Where("id = ?", id).First(&e).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(r.opts.Name, id)
		}
		return nil, err
	}
	return &e, nil
}

// FindOneBy returns the single row whose column equals value.
func (r *Repository[E]) FindOneBy(ctx context.Context, column string, value any) (*E, error) {
	var e E
	if err := r.Conn(ctx).Where(column+" = ?", value).First(&e).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperr.Error{
				Kind:    apperr.KindNotFound,
				Message: r.opts.Name + fmt.Sprintf(" not found with %s %v", column, value),
				Entity:  r.opts.Name,
				Field:   column,
				Value:   value,
			}
		}
		return nil, err
	}
	return &e, nil
}

// FindByIDs loads every row whose id is in ids.
func (r *Repository[E]) FindByIDs(ctx context.Context, ids []int64) ([]E, error) {
	var items []E
	if len(ids) == 0 {
		return items, nil
	}
	err := r.Conn(ctx).Where("id IN ?", ids).Order("id").Find(&items).Error
	return items, err
}

func (r *Repository[E]) Exists(ctx context.Context, column string, value any) (bool, error) {
	return r.ExistsWhere(ctx, column+" = ?", value)
}

// ExistsExcluding checks the column value on every row except id, for updates.
func (r *Repository[E]) ExistsExcluding(ctx context.Context, column string, value any, id int64) (bool, error) {
	return r.ExistsWhere(ctx, column+" = ? AND id <> ?", value, id)
}

func (r *Repository[E]) ExistsWhere(ctx context.Context, query string, args ...any) (bool, error) {
	var count int64
	err := r.model(ctx).Where(query, args...).Count(&count).Error
	return count > 0, err
}

func (r *Repository[E]) CountBy(ctx context.Context, column string, value any) (int64, error) {
	var count int64
	err := r.model(ctx).Where(column+" = ?", value).Count(&count).Error
	return count, err
}

// FindBy lists rows whose column equals value, in default order.
func (r *Repository[E]) FindBy(ctx context.Context, column string, value any) ([]E, error) {
	var items []E
	err := r.preload(r.Conn(ctx)).Where(column+" = ?", value).Order(r.order(Pageable{})).Order("id").Find(&items).Error
	return items, err
}

// FindAll pages over every row.
func (r *Repository[E]) FindAll(ctx context.Context, p Pageable) ([]E, int64, error) {
	return r.page(r.model(ctx), p)
}

// FindAllWhere pages over the rows matching query.
func (r *Repository[E]) FindAllWhere(ctx context.Context, p Pageable, query string, args ...any) ([]E, int64, error) {
	return r.page(r.model(ctx).Where(query, args...), p)
}

// Search matches term against every search column, case-insensitively.
func (r *Repository[E]) Search(ctx context.Context, term string, p Pageable) ([]E, int64, error) {
	return r.page(r.searchQuery(ctx, term), p)
}

// likeEscaper makes LIKE metacharacters in a search term match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *Repository[E]) searchQuery(ctx context.Context, term string) *gorm.DB {
	q := r.model(ctx)
	if len(r.opts.SearchColumns) == 0 {
		return q
	}
	pattern := "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(term))) + "%"
	lower := "LOWER(%s)"
	if q.Dialector.Name() == "sqlite" {
		lower = "unicode_lower(COALESCE(%s, ''))"
	}
	conds := make([]string, 0, len(r.opts.SearchColumns))
	args := make([]any, 0, len(r.opts.SearchColumns))
	for _, col := range r.opts.SearchColumns {
		conds = append(conds, fmt.Sprintf(lower, col)+` LIKE ? ESCAPE '\'`)
		args = append(args, pattern)
	}
	return q.Where("("+strings.Join(conds, " OR ")+")", args...)
}

// ListAll returns every row in default order.
func (r *Repository[E]) ListAll(ctx context.Context) ([]E, error) {
	var items []E
	err := r.preload(r.Conn(ctx)).Order(r.order(Pageable{})).Order("id").Find(&items).Error
	return items, err
}

func (r *Repository[E]) page(q *gorm.DB, p Pageable) ([]E, int64, error) {
	p = p.Normalize()
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []E
	ordered := q.Order(r.order(p))
	if col := r.sortColumn(p.SortBy); col != "id" {
		ordered = ordered.Order("id")
	}
	err := r.preload(ordered).Offset(p.Offset()).Limit(p.Size).Find(&items).Error
	return items, total, err
}

func (r *Repository[E]) sortColumn(sortBy string) string {
	if col, ok := r.opts.SortColumns[sortBy]; ok {
		return col
	}
	return r.opts.DefaultSort
}

func (r *Repository[E]) order(p Pageable) clause.OrderByColumn {
	return clause.OrderByColumn{
		Column: clause.Column{Name: r.sortColumn(p.SortBy)},
		Desc:   p.Desc(),
	}
}

// Create inserts e without touching associations; links are managed explicitly.
func (r *Repository[E]) Create(ctx context.Context, e *E) error {
	return r.Conn(ctx).Omit(clause.Associations).Create(e).Error
}

// Save writes every column of e.
func (r *Repository[E]) Save(ctx context.Context, e *E) error {
	return r.Conn(ctx).Omit(clause.Associations).Save(e).Error
}

// Delete removes the row with id.
func (r *Repository[E]) Delete(ctx context.Context, id int64) error {
	var e E
	return r.Conn(ctx).Where("id = ?", id).Delete(&e).Error
}

// DeleteBy removes every row whose column equals value.
func (r *Repository[E]) DeleteBy(ctx context.Context, column string, value any) error {
	var e E
	return r.Conn(ctx).Where(column+" = ?", value).Delete(&e).Error
}

// ReplaceAssociation sets the many-to-many links named assoc on e to values.
func (r *Repository[E]) ReplaceAssociation(ctx context.Context, e *E, assoc string, values any) error {
	return r.Conn(ctx).Model(e).Association(assoc).Replace(values)
}

// ClearAssociation removes every link named assoc on e.
func (r *Repository[E]) ClearAssociation(ctx context.Context, e *E, assoc string) error {
	return r.Conn(ctx).Model(e).Association(assoc).Clear()
}
