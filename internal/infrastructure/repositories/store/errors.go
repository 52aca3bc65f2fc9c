package store

import "errors"

var (
	ErrUnsupportedBackend = errors.New("unsupported store backend")
	ErrInvalidTable       = errors.New("invalid table name")
	ErrStoreClosed        = errors.New("store is closed")
	ErrCorruptRecord      = errors.New("corrupt persistent record")
)
