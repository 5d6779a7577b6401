package store

import (
	"errors"
	"fmt"

	"github.com/sells-group/crawlspace/internal/collection"
	"github.com/sells-group/crawlspace/internal/domain"
)

var (
	// ErrWorkspaceNotFound is returned when a workspace id does not exist.
	ErrWorkspaceNotFound = errors.New("workspace not found")

	// ErrNoWorkspaceSelected is returned by writes that need a selected
	// workspace when none is.
	ErrNoWorkspaceSelected = errors.New("no workspace selected")
)

// DuplicateWorkspaceError is returned when creating a workspace whose name
// is taken.
type DuplicateWorkspaceError struct {
	Name string
}

func (e *DuplicateWorkspaceError) Error() string {
	return fmt.Sprintf("workspace %q already exists", e.Name)
}

// DeletingSelectedWorkspaceError is returned when deleting the workspace
// that is currently selected.
type DeletingSelectedWorkspaceError struct {
	ID   string
	Name string
}

func (e *DeletingSelectedWorkspaceError) Error() string {
	return fmt.Sprintf("workspace %q (%s) is selected and cannot be deleted", e.Name, e.ID)
}

// ValidationError reports a malformed argument to a store operation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsClientError reports whether err was caused by caller input and can be
// corrected by the caller.
func IsClientError(err error) bool {
	var (
		ve  *ValidationError
		dve *domain.ValidationError
		nse *collection.InvalidNamespaceError
	)
	return errors.As(err, &ve) || errors.As(err, &dve) || errors.As(err, &nse)
}

// IsConflict reports whether err describes a workspace lifecycle conflict.
func IsConflict(err error) bool {
	var (
		dup *DuplicateWorkspaceError
		sel *DeletingSelectedWorkspaceError
	)
	return errors.As(err, &dup) || errors.As(err, &sel)
}
