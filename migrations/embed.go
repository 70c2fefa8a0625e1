// Package migrations embeds the SQL schema migrations applied by "vidgallery migrate".
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
