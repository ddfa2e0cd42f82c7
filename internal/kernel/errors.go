package kernel

import (
	"errors"
	"strings"
)

// ErrMissingDependency matches any *MissingDependencyError with errors.Is
var ErrMissingDependency = errors.New("missing required dependencies")

// MissingDependencyError names the dependencies Validate found unset
type MissingDependencyError struct {
	Names []string
}

func (e *MissingDependencyError) Error() string {
	return ErrMissingDependency.Error() + ": " + strings.Join(e.Names, ", ")
}

func (e *MissingDependencyError) Is(target error) bool {
	return target == ErrMissingDependency
}
