// Package db holds the SQL schema migrations
package db

import "embed"

// Migrations is the golang-migrate source directory, rooted at "migrations"
//
//go:embed migrations/*.sql
var Migrations embed.FS
