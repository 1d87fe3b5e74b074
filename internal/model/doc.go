// Package model defines the core data structures used throughout pageaudit.
//
// This package contains the following main types:
//   - FetchedPage: the raw HTTP result of fetching one URL
//   - SeoData: the signals extracted from a fetched page
//   - PageAudit: a scored, stored audit record with issues and recommendations
//   - BatchTarget and BatchAuditResult: the input and per-page outcome of a batch
//
// Models live in their own package so fetcher, extractor, scoring, storage
// and reporting can share them without import cycles.
//
// The models serialize to JSON for report output and database storage.
package model
