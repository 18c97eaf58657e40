package repository

import "errors"

var (
	ErrFlowNotFound         = errors.New("flow not found")
	ErrFlowAlreadyExists    = errors.New("flow already exists")
	ErrFlowVersionConflict  = errors.New("flow was modified concurrently")
	ErrBalanceConflict      = errors.New("balance was modified concurrently")
	ErrIdempotencyKeyExists = errors.New("idempotency key already claimed")
	ErrIdempotencyNotFound  = errors.New("idempotency record not found")
	ErrAlreadyExists        = errors.New("record already exists")
	ErrNotFound             = errors.New("record not found")
)
