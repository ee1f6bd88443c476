package core

import (
	"github.com/pkg/errors"
)

var ErrInvalidConfig = errors.New("invalid configuration")
