// Package db carries the SQL migrations compiled into the binaries.
package db

import "embed"

//go:embed migrations/*.sql
var Migrations embed.FS
