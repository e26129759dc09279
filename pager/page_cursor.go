package pager

import (
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"
)

// FirstPage is the page number of the first page in a dataset.
const FirstPage = 1

// PageCursor addresses a dataset by 1-based page number. It is translated to
// OFFSET (page-1)*size when applied.
type PageCursor struct {
	page int
}

func NewPageCursor(page int) *PageCursor {
	return &PageCursor{
		page: page,
	}
}

// ParsePageCursor parses a decimal page number as sent in a "page" query
// parameter. An empty string yields the first page.
func ParsePageCursor(raw string) (*PageCursor, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return NewPageCursor(FirstPage), nil
	}

	page, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page number '%s': %w", raw, err)
	}
	if page < FirstPage {
		return nil, fmt.Errorf("page number must be >= %d, got %d", FirstPage, page)
	}

	return NewPageCursor(page), nil
}

// Apply applies the page offset to a gorm query.
func (p *PageCursor) Apply(db *gorm.DB, pageSize int) *gorm.DB {
	offset := p.Offset(pageSize)
	if offset == 0 {
		return db
	}

	return db.Offset(offset)
}

// GetPage returns the page number, FirstPage for a nil cursor.
func (p *PageCursor) GetPage() int {
	if p == nil || p.page < FirstPage {
		return FirstPage
	}

	return p.page
}

// Offset returns the number of rows preceding the page.
func (p *PageCursor) Offset(pageSize int) int {
	if pageSize <= 0 {
		return 0
	}

	return (p.GetPage() - FirstPage) * pageSize
}

// Next returns the cursor of the following page.
func (p *PageCursor) Next() *PageCursor {
	return NewPageCursor(p.GetPage() + 1)
}
