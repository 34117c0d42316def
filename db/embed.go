// Package db embeds the PostgreSQL schema of the billing store.
package db

import _ "embed"

// Schema contains the DDL statements for the billing tables.
//
//go:embed migrations/001_schema.sql
var Schema string
