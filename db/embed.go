// Package db provides the embedded PostgreSQL schema.
package db

import _ "embed"

// Schema contains the DDL statements for all collections. Every statement is
// idempotent so it runs on each start.
//
//go:embed migrations/001_schema.sql
var Schema string
