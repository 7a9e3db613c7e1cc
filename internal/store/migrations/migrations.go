// Package migrations embeds the state.db schema for golang-migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
