package graph

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationKind names the invariant a rejected dependency violated.
type ValidationKind string

const (
	// InvalidDependency covers self-references and unknown dependency types.
	InvalidDependency ValidationKind = "invalid_dependency"
	// CrossProjectDependency means the two tasks live in different projects.
	CrossProjectDependency ValidationKind = "cross_project_dependency"
	// DuplicateDependency means an active edge already joins the pair.
	DuplicateDependency ValidationKind = "duplicate_dependency"
)

// Sentinels matched with errors.Is against the typed errors below.
var (
	ErrValidation = errors.New("invalid dependency")
	ErrCyclic     = errors.New("cyclic dependency")
	ErrNotFound   = errors.New("not found")
)

// ValidationError rejects a dependency that breaks a structural invariant.
type ValidationError struct {
	Kind           ValidationKind
	DependentID    string
	PrerequisiteID string
	Msg            string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("dep: %s (%s -> %s)", e.Msg, e.PrerequisiteID, e.DependentID)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// CyclicDependencyError rejects an edge that would close a cycle. Path is
// the existing chain from the dependent to the prerequisite.
type CyclicDependencyError struct {
	DependentID    string
	PrerequisiteID string
	Path           []string
}

func (e *CyclicDependencyError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("dep: adding %s -> %s would create a cycle", e.PrerequisiteID, e.DependentID)
	}
	return fmt.Sprintf("dep: adding %s -> %s would create a cycle: %s -> %s",
		e.PrerequisiteID, e.DependentID, strings.Join(e.Path, " -> "), e.DependentID)
}

func (e *CyclicDependencyError) Is(target error) bool { return target == ErrCyclic }

// NotFoundError reports an unknown dependency or task id.
type NotFoundError struct {
	Entity string // "dependency", "task" or "project"
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("dep: %s not found: %s", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// IsKind reports whether err is a ValidationError of the given kind.
func IsKind(err error, kind ValidationKind) bool {
	var ve *ValidationError
	return errors.As(err, &ve) && ve.Kind == kind
}
