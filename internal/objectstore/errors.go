package objectstore

import "errors"

var (
	// ErrClientDisabled is returned when uploads are attempted without credentials.
	ErrClientDisabled = errors.New("object storage client disabled")

	// ErrServerError is returned for storage internal errors (HTTP 5xx) and throttling (HTTP 429).
	ErrServerError = errors.New("object storage server error")

	// ErrRejected is returned when the storage refuses the request (HTTP 4xx).
	ErrRejected = errors.New("object storage rejected request")
)
