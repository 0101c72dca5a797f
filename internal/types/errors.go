package types

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidConfig = errors.New("invalid list config")

	ErrInvalidRange        = errors.New("invalid range")
	ErrStaleAcknowledgment = errors.New("stale acknowledgment")
	ErrProviderFailure     = errors.New("data provider failure")
	ErrAnnotatorFailure    = errors.New("annotator failure")
	ErrTransportFailure    = errors.New("transport failure")

	ErrInvalidBackend = errors.New("invalid backend")
	ErrInvalidEvent   = errors.New("invalid list event")
)

func Err(typedError error, innerErr error, msgTemplate string, args ...any) error {
	if msgTemplate == "" {
		return errors.Join(typedError, innerErr)
	} else {
		return errors.Join(typedError, innerErr, fmt.Errorf(msgTemplate, args...))
	}
}
