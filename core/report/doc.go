// Package report renders reconciliation issues and cycle change logs as
// downloadable CSV and XLSX files.
//
// Issue reports use the columns ID, Created At, Source, Entity Type,
// Entity ID, Issue Type and Detail. The Exporter collapses concurrent
// identical export requests into one render and can archive the result in
// object storage.
package report
