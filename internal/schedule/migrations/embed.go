package migrations

import "embed"

// FS contains the embedded schedule store migrations.
//
//go:embed *.sql
var FS embed.FS
