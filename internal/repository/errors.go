package repository

import "github.com/jackc/pgx/v5"

// ErrNotFound aliases pgx.ErrNoRows so row-scan misses and zero-row
// updates surface as the same sentinel.
var ErrNotFound = pgx.ErrNoRows
