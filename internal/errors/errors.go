// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// Classification errors for external fetches. Fetchers translate transport
// and API failures into these before anything downstream sees them; the
// refresh layer decides from the class whether a result is cached as a
// confirmed absence or the attempt is abandoned for a later retry.
var (
	// ErrNotFound means the upstream system confirmed the resource does not exist.
	ErrNotFound = errors.New("resource not found upstream")

	// ErrInaccessible means the upstream system refused access (private,
	// blocked, or revoked credentials). Cached the same way as ErrNotFound.
	ErrInaccessible = errors.New("resource not accessible upstream")

	// ErrIncompleteSync means no indexed snapshot exists yet for a repository
	// whose index was requested.
	ErrIncompleteSync = errors.New("no completed index snapshot yet")

	// ErrDuplicateRegistration means an external create collided with an
	// already registered resource.
	ErrDuplicateRegistration = errors.New("resource already registered upstream")
)

// ErrInvalidRepoFormat is returned when a repository identifier is not in
// 'owner/name' form, or either part is empty.
type ErrInvalidRepoFormat struct {
	Repo string
}

func (e *ErrInvalidRepoFormat) Error() string {
	return fmt.Sprintf("invalid repository format: %q, expected 'owner/name'", e.Repo)
}

// IsAbsence reports whether err records a confirmed upstream absence, which
// is a cacheable answer rather than a failure.
func IsAbsence(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrInaccessible)
}
