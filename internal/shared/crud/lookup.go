package crud

import (
	"context"
	"encoding/json"

	"github.com/bitfantasy/procurement/internal/shared/apperr"
	"github.com/bitfantasy/procurement/internal/shared/classify"
	"github.com/bitfantasy/procurement/internal/shared/model"
	"github.com/bitfantasy/procurement/internal/shared/validation"
	"gorm.io/gorm"
)

// LookupDTO is the view of a designation-only reference row.
type LookupDTO struct {
	ID int64 `json:"id,omitempty"`
	model.Designation
	Category string `json:"category,omitempty"`
}

// LookupEntity is satisfied by pointers to structs embedding model.Lookup.
type LookupEntity[E any] interface {
	*E
	Record() *model.Lookup
}

// LookupService serves any designation-only table: uniqueness on designationFr,
// delete guards and keyword categories.
type LookupService[E any, P LookupEntity[E]] struct {
	Base[E, LookupDTO]
	guards     []Guard
	classifier *classify.Classifier
}

func NewLookupService[E any, P LookupEntity[E]](db *gorm.DB, repo *Repository[E], classifier *classify.Classifier, guards ...Guard) *LookupService[E, P] {
	s := &LookupService[E, P]{guards: guards, classifier: classifier}
	s.Base = Base[E, LookupDTO]{DB: db, Repo: repo, ToDTO: s.toDTO}
	return s
}

// LookupOptions is the repository configuration shared by lookup tables.
func LookupOptions(name string) Options {
	return Options{
		Name:          name,
		SearchColumns: []string{"designation_fr", "designation_en", "designation_ar"},
		SortColumns: map[string]string{
			"designationFr": "designation_fr",
			"designationEn": "designation_en",
			"designationAr": "designation_ar",
		},
		DefaultSort: "designation_fr",
	}
}

func (s *LookupService[E, P]) toDTO(e *E) LookupDTO {
	l := P(e).Record()
	return LookupDTO{
		ID:          l.ID,
		Designation: l.Designation,
		Category:    s.classifier.Classify(l.DesignationFr),
	}
}

func (s *LookupService[E, P]) validate(dto *LookupDTO) (model.Designation, error) {
	d := dto.Designation.Trimmed()
	v := validation.New()
	d.Validate(v)
	return d, v.Err()
}

func (s *LookupService[E, P]) Create(ctx context.Context, dto *LookupDTO) (*LookupDTO, error) {
	d, err := s.validate(dto)
	if err != nil {
		return nil, err
	}

	var out LookupDTO
	err = s.Tx(ctx, func(ctx context.Context) error {
		exists, err := s.Repo.Exists(ctx, "designation_fr", d.DesignationFr)
		if err != nil {
			return err
		}
		if exists {
			return apperr.Conflict(s.Repo.Name(), "designationFr", d.DesignationFr)
		}
		e := new(E)
		P(e).Record().Designation = d
		if err := s.Repo.Create(ctx, e); err != nil {
			return err
		}
		out = s.toDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *LookupService[E, P]) Update(ctx context.Context, id int64, dto *LookupDTO) (*LookupDTO, error) {
	d, err := s.validate(dto)
	if err != nil {
		return nil, err
	}

	var out LookupDTO
	err = s.Tx(ctx, func(ctx context.Context) error {
		e, err := s.Repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		exists, err := s.Repo.ExistsExcluding(ctx, "designation_fr", d.DesignationFr, id)
		if err != nil {
			return err
		}
		if exists {
			return apperr.Conflict(s.Repo.Name(), "designationFr", d.DesignationFr)
		}
		P(e).Record().Designation = d
		if err := s.Repo.Save(ctx, e); err != nil {
			return err
		}
		out = s.toDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *LookupService[E, P]) Patch(ctx context.Context, id int64, patch json.RawMessage) (*LookupDTO, error) {
	return s.PatchWith(ctx, id, patch, s.Update)
}

func (s *LookupService[E, P]) Delete(ctx context.Context, id int64) error {
	return s.Tx(ctx, func(ctx context.Context) error {
		if _, err := s.Repo.FindByID(ctx, id); err != nil {
			return err
		}
		if err := CheckGuards(ctx, s.DB, s.Repo.Name(), id, s.guards...); err != nil {
			return err
		}
		return s.Repo.Delete(ctx, id)
	})
}

// Categories buckets every row by its keyword category. Every known label is
// present in the result, possibly with no rows.
func (s *LookupService[E, P]) Categories(ctx context.Context) (map[string][]LookupDTO, error) {
	items, err := s.Repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]LookupDTO)
	for _, label := range s.classifier.Labels() {
		out[label] = []LookupDTO{}
	}
	for i := range items {
		dto := s.toDTO(&items[i])
		if dto.Category != "" {
			out[dto.Category] = append(out[dto.Category], dto)
		}
	}
	return out, nil
}

// ByCategory lists the rows classified under label.
func (s *LookupService[E, P]) ByCategory(ctx context.Context, label string) ([]LookupDTO, error) {
	if !s.classifier.Has(label) {
		return nil, &apperr.Error{
			Kind:    apperr.KindNotFound,
			Message: "unknown category " + label,
			Entity:  s.Repo.Name(),
			Field:   "category",
			Value:   label,
		}
	}
	all, err := s.Categories(ctx)
	if err != nil {
		return nil, err
	}
	return all[label], nil
}

// Classifier exposes the classifier used for categories.
func (s *LookupService[E, P]) Classifier() *classify.Classifier { return s.classifier }
