package domain

import "errors"

// Repository errors. Adapters wrap or return these so the service and
// transport layers can match them without importing storage.
var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("already exists")
	ErrOptimisticLock = errors.New("optimistic lock conflict")
	ErrStockExhausted = errors.New("stock exhausted")
	ErrReferenced     = errors.New("referenced by other records")
)
