// Package storypager loads a remote, page-indexed story feed into an
// incrementally extended, deduplicated sequence.
//
// Overview
//
// The feed endpoint answers "GET /stories?page=<n>&size=<s>" with a JSON
// envelope of stories. storypager wraps it in three layers:
//   - PageFetcher: issues one authenticated request per page and classifies
//     every failure into a FetchError kind. It never retries.
//   - Sequence: caches fetched pages in request order, decides which key to
//     request next (or from where to reload on refresh) and publishes a
//     Snapshot of all loaded items after every state change.
//   - Diff/ApplyDiff: compute the minimal insert/remove/move/change script
//     between two snapshots for list renderers.
//
// Key concepts
//   - Page keys are request parameters, not indices. A nil PrevKey marks the
//     first page, a nil NextKey marks the end of data. An empty page ends
//     forward pagination.
//   - The bearer token is read from a CredentialSource on every request, so a
//     login or logout takes effect on the next page without rebuilding the
//     sequence.
//   - A failed load never touches already cached pages; Retry re-issues the
//     same PageRequest.
//
// Client covers the remaining endpoint calls (register, login, story upload
// and the unpaged location listing).
package storypager
