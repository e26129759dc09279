package pager

import (
	"fmt"
	"math"
	"strings"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

// Direction defines the sort direction for the requested dataset.
type Direction string

const (
	DirectionASC  Direction = "ASC"
	DirectionDESC Direction = "DESC"
)

func (d Direction) valid() bool {
	return d == DirectionASC || d == DirectionDESC
}

// OrderBy sorts by a single database column.
type OrderBy struct {
	Column    string
	Direction Direction
}

// Orderings is applied left to right: the first entry is the primary key of
// the sort, the rest break ties.
type Orderings []OrderBy

// ColumnMapping maps the field names clients sort by (JSON names) onto
// database columns.
type ColumnMapping map[string]string

var _columnNameSymbols = append([]rune("_.'`\""), lo.AlphanumericCharset...)

func (o OrderBy) validate() error {
	if !o.Direction.valid() {
		return fmt.Errorf("invalid ordering direction '%s'", o.Direction)
	}

	// Column names end up verbatim in ORDER BY.
	if !lo.Every(_columnNameSymbols, []rune(o.Column)) {
		return fmt.Errorf("ordering column name contains forbidden symbols '%s'", o.Column)
	}

	return nil
}

// ToSQL renders the ORDER BY list, e.g. "created_at DESC, id DESC".
func (o Orderings) ToSQL() string {
	var b strings.Builder
	for i, ordering := range o {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(ordering.Column)
		b.WriteByte(' ')
		b.WriteString(string(ordering.Direction))
	}

	return b.String()
}

// Apply applies the ordering to a gorm query.
func (o Orderings) Apply(db *gorm.DB) *gorm.DB {
	return db.Order(o.ToSQL())
}

func (o Orderings) validate() error {
	if len(o) == 0 {
		return fmt.Errorf("empty ordering list")
	}

	for _, ordering := range o {
		if err := ordering.validate(); err != nil {
			return err
		}
	}

	return nil
}

// ParseSort parses a "sort" query value such as "createdAt desc,name asc".
// Each comma separated term is "<field> asc|desc" where field is a key of
// mapping; an unknown field is reported together with the closest known one.
// Blank input yields nil orderings.
func ParseSort(raw string, mapping ColumnMapping) (Orderings, error) {
	var ret Orderings
	for _, term := range strings.Split(raw, ",") {
		if strings.TrimSpace(term) == "" {
			continue
		}

		ordering, err := parseOrderBy(term, mapping)
		if err != nil {
			return nil, err
		}
		ret = append(ret, ordering)
	}

	return ret, nil
}

func parseOrderBy(term string, mapping ColumnMapping) (OrderBy, error) {
	fields := strings.Fields(term)
	if len(fields) != 2 {
		return OrderBy{}, fmt.Errorf("invalid ordering string format '%s'", strings.TrimSpace(term))
	}

	direction := Direction(strings.ToUpper(fields[1]))
	if !direction.valid() {
		return OrderBy{}, fmt.Errorf("invalid ordering direction '%s'", fields[1])
	}

	column, ok := mapping[fields[0]]
	if !ok || column == "" {
		return OrderBy{}, fmt.Errorf("invalid column alias '%s'. closest: '%s'", fields[0], closestAlias(fields[0], lo.Keys(mapping)))
	}

	return OrderBy{Column: column, Direction: direction}, nil
}

func closestAlias(input string, aliases []string) string {
	minDist := math.MaxInt
	closest := ""

	for _, alias := range aliases {
		dist := levenshtein([]rune(alias), []rune(input))
		if dist < minDist || (dist == minDist && alias < closest) {
			minDist = dist
			closest = alias
		}
	}

	return closest
}
