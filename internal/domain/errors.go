package domain

import "errors"

// Storage sentinels shared by every repository.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	ErrStale     = errors.New("record changed concurrently")
)
