package sql

import _ "embed"

// Schema is the portable DDL shared by the SQLite and PostgreSQL stores.
//
//go:embed schema.sql
var Schema string
