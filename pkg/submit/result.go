package submit

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-advisory/pkg/form"
	"github.com/goliatone/go-advisory/pkg/ranking"
)

// Status tags the lifecycle of the current submission.
type Status string

const (
	// StatusIdle means no submission has been issued since the last
	// invalidation; nothing is displayed.
	StatusIdle Status = "idle"
	// StatusPending means a submission is in flight. Any previously
	// displayed list has already been cleared.
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Result is the tagged outcome of the current submission. Exactly one Result
// is current per form; a new submission replaces it wholesale.
type Result struct {
	Status Status
	List   ranking.List
	Err    error
}

// ValidationError reports local shape validation failures. It is raised
// before any network call is issued.
type ValidationError struct {
	Issues form.Issues
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "submit: validation failed"
	}
	parts := make([]string, 0, len(e.Issues))
	for field, messages := range e.Issues {
		parts = append(parts, field+": "+strings.Join(messages, "; "))
	}
	return "submit: validation failed: " + strings.Join(parts, ", ")
}

// ServerRejected is a 2xx response carrying a domain-level rejection, for
// example an unknown district or an invalid OTP. Fields carries optional
// field-scoped messages keyed by form field name.
type ServerRejected struct {
	Message string
	Fields  map[string][]string
}

func (e *ServerRejected) Error() string {
	return fmt.Sprintf("submit: rejected by server: %s", e.Message)
}
