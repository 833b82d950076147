package migrations

import "embed"

// FS содержит SQL миграции схемы relay.
//
//go:embed *.sql
var FS embed.FS
