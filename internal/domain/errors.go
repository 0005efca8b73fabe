package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnknownModel = errors.New("unknown model")
	ErrInvalidURL   = errors.New("invalid url")
	ErrDecode       = errors.New("media decode failed")
	ErrStorage      = errors.New("storage failed")
	ErrPollTimeout  = errors.New("poll attempt budget exceeded")
)

// GenerationError carries the representative canonical failure of a fan-out
// group from the orchestrator back to the queue engine.
type GenerationError struct {
	Code    ErrorCode
	Message string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
