package pager

import (
	"context"
	"fmt"
	"slices"

	"gorm.io/gorm"
)

// RawPager is intended for API payloads and query strings.
//
//	type StoryFilter struct {
//	    Paging RawPager `json:",inline"`
//	}
type RawPager struct {
	// Size - maximum number of records to return in the response.
	Size int `json:"size"`
	// Page - 1-based page number. Empty means the first page.
	Page string `json:"page"`
}

// Decode converts RawPager into *Pager, normalizing Size and validating Page.
// Returns *Pager with WithSubstitutedSort applied.
func (p RawPager) Decode(orderBy ...OrderBy) (*Pager, error) {
	cursor, err := ParsePageCursor(p.Page)
	if err != nil {
		return nil, err
	}

	return (&Pager{
		cursor: cursor,
	}).WithSubstitutedSort(orderBy...).WithPageSize(p.Size), nil
}

type Pager struct {
	pageSize int
	cursor   *PageCursor
	sort     Orderings
}

func NewPager() *Pager {
	return new(Pager)
}

// WithPageSize sets the maximum number of returned records. NormalizePageSize
// is applied.
func (p *Pager) WithPageSize(size int) *Pager {
	if p == nil {
		p = new(Pager)
	}

	p.pageSize = NormalizePageSize(size)

	return p
}

// WithSubstitutedSort resets previous orderings and applies the provided ones.
func (p *Pager) WithSubstitutedSort(orderBy ...OrderBy) *Pager {
	if p == nil {
		p = new(Pager)
	}

	p.sort = nil

	return p.WithSort(orderBy...)
}

// WithSort appends sort orderings without overwriting existing ones.
// Order is preserved as if calling:
//
//	OrderBy(o1).ThenBy(o2).ThenBy(o3)...
func (p *Pager) WithSort(orderBy ...OrderBy) *Pager {
	if p == nil {
		p = new(Pager)
	}

	for _, o := range orderBy {
		idx := slices.IndexFunc(p.sort, func(processed OrderBy) bool {
			return processed.Column == o.Column
		})

		// Remove previous occurrence (avoid duplication).
		if idx != -1 {
			p.sort = slices.Delete(p.sort, idx, idx+1)
		}

		p.sort = append(p.sort, o)
	}

	return p
}

// Paginate applies ordering, offset and limit to the dataset. Returns an
// error if pagination cannot be applied.
func (p *Pager) Paginate(db *gorm.DB) (*gorm.DB, error) {
	err := p.validate()
	if err != nil {
		return nil, fmt.Errorf("cannot paginate: %w", err)
	}

	db = p.sort.Apply(db)
	db = p.cursor.Apply(db, p.GetPageSize())

	return db.Limit(p.GetPageSize()), nil
}

// GetSort returns orderings that will be applied to the dataset.
func (p *Pager) GetSort() Orderings {
	if p == nil {
		return nil
	}

	return p.sort
}

// GetPageSize returns the page size, DefaultPageSize when unset.
func (p *Pager) GetPageSize() int {
	if p == nil || p.pageSize <= 0 {
		return DefaultPageSize
	}

	return p.pageSize
}

// GetCursor returns the cursor stored in Pager as-is.
func (p *Pager) GetCursor() *PageCursor {
	if p == nil {
		return nil
	}

	return p.cursor
}

func (p *Pager) validate() error {
	if p == nil {
		return fmt.Errorf("pager is nil")
	}

	return p.sort.validate()
}

// IsLastPage returns true if the result set is shorter than the page size,
// which means no rows follow it.
func IsLastPage[T any](p *Pager, resultSet []T) bool {
	return len(resultSet) < p.GetPageSize()
}

// Find runs the paginated query and wraps the rows into a Result. db should be
// scoped to the table holding T rows, e.g. db.Model(&Story{}).
func Find[T any](ctx context.Context, db *gorm.DB, p *Pager) (Result[T], error) {
	paged, err := p.Paginate(db.WithContext(ctx))
	if err != nil {
		return Result[T]{}, err
	}

	var rows []T
	if err = paged.Find(&rows).Error; err != nil {
		return Result[T]{}, fmt.Errorf("cannot fetch page %d: %w", p.GetCursor().GetPage(), err)
	}

	ret := Result[T]{
		Items:    rows,
		Page:     p.GetCursor().GetPage(),
		PageSize: p.GetPageSize(),
	}
	if !IsLastPage(p, rows) {
		ret.Next = p.GetCursor().Next()
	}

	return ret, nil
}
