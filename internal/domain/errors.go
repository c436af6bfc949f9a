package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUploadFailed    = errors.New("asset upload failed")
	ErrNoImageReturned = errors.New("no image returned")
	ErrProviderFailure = errors.New("provider failure")
)
