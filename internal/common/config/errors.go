package config

import "errors"

var (
	// ErrMissingBaseURL is returned when api.base_url is not configured.
	ErrMissingBaseURL = errors.New("api.base_url is required")

	// ErrUnknownStorageType is returned for storage types other than
	// memory, disk or redis.
	ErrUnknownStorageType = errors.New("unknown storage type")

	// ErrUnknownLanguage is returned for languages the message catalog
	// does not carry.
	ErrUnknownLanguage = errors.New("unknown language")
)
