package core

import "errors"

var (
	ErrInvalidPost  = errors.New("invalid post")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
)
