package store

import "errors"

var (
	ErrIO          = errors.New("content store io failure")
	ErrInvalidName = errors.New("invalid file name")
	ErrNotExist    = errors.New("file does not exist")
)
