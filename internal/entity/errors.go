package entity

import "errors"

var (
	// ErrInvalidURL is returned when the original URL is empty or not an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid url")
	// ErrInvalidValidity is returned when the requested validity is not a positive number of minutes.
	ErrInvalidValidity = errors.New("invalid validity")
	// ErrInvalidShortCode is returned when a requested short code is not alphanumeric.
	ErrInvalidShortCode = errors.New("invalid short code")
	// ErrShortCodeTaken is returned when a requested short code is already in use.
	ErrShortCodeTaken = errors.New("short code taken")
	// ErrGenerationExhausted is returned when no free short code could be generated.
	ErrGenerationExhausted = errors.New("short code generation exhausted")
	// ErrURLNotFound is returned when no URL exists for a short code.
	ErrURLNotFound = errors.New("url not found")
	// ErrURLExpired is returned when a URL exists but is no longer live.
	ErrURLExpired = errors.New("url expired")
	// ErrPersistenceFailed is returned when a mutation could not be saved.
	ErrPersistenceFailed = errors.New("persistence failed")
	// ErrStorageUnavailable is returned by repositories when the storage medium cannot be used.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
