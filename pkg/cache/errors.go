package cache

import (
	"errors"
	"strings"
)

// Sentinel errors for caching operations.
var (
	// ErrInvalidKey is returned for empty or whitespace-only keys.
	ErrInvalidKey = errors.New("invalid cache key")

	// ErrNoRedisURL is returned by NewRedisCache when no URL is configured.
	ErrNoRedisURL = errors.New("no redis url")

	// ErrNoMongoURL is returned by NewMongoCache when no URI is configured.
	ErrNoMongoURL = errors.New("no mongo url")
)

func validKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	return nil
}
