// Package pager provides page-index pagination primitives for GORM.
//
// Overview
//
// Story feeds are addressed by a 1-based page number and a page size, so the
// only cursor here is PageCursor, which maps a page number onto
// LIMIT/OFFSET. The reference story endpoint uses it to serve
// "GET /stories?page=<n>&size=<s>".
//
// Key concepts
//   - Pager: combines a page size, a PageCursor and an ordering and applies
//     them to a GORM query.
//   - Orderings: multi-column ordering with explicit directions, parsed from
//     "column asc|desc" strings through an alias mapping.
//   - NormalizePageSize: clamps client supplied page sizes.
package pager
