// Package repository persists the report ledger, the delivery history and
// the background job registry. Every store has a Postgres implementation on
// pgx and an in-memory implementation used for local development and tests.
package repository

import "errors"

var ErrNotFound = errors.New("resource not found")
