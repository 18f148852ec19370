// internal/capability/errors.go
package capability

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned by Surface.Invoke matches exactly one
// of them under errors.Is.
var (
	ErrNotFound         = errors.New("capability not found")
	ErrInvalidArguments = errors.New("invalid arguments")
	ErrCapability       = errors.New("capability failed")
)

// Error describes a failed lookup, validation or invocation.
type Error struct {
	Kind     Kind
	Name     string
	Category error
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %q: %v", e.Kind, e.Name, e.Category)
	}
	return fmt.Sprintf("%s %q: %v: %v", e.Kind, e.Name, e.Category, e.Err)
}

// Unwrap exposes both the category and the cause, so callers can match
// ErrCapability and, for instance, frontier.ErrNavigationTimeout on the same error.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Category}
	}
	return []error{e.Category, e.Err}
}

func newError(kind Kind, name string, category, cause error) *Error {
	return &Error{Kind: kind, Name: name, Category: category, Err: cause}
}
