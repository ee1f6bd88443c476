package benchmark

import (
	"github.com/pkg/errors"
)

var (
	ErrAlreadyRunning = errors.New("a benchmark session is already running")
	ErrUnknownTier    = errors.New("unknown benchmark tier")
	ErrEmptySeries    = errors.New("cannot aggregate an empty series")
	ErrInvalidTier    = errors.New("invalid benchmark configuration")
)
