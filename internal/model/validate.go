package model

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// Length limits, in characters, matching the storage columns.
const (
	MaxDescriptionLength   = 500
	MaxRequirementIDLength = 64
	MaxOperatorIDLength    = 64
	MaxActionLength        = 50
)

// ValidateRequirementID checks that id is present and fits the id columns.
func ValidateRequirementID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("is required")
	}
	if utf8.RuneCountInString(id) > MaxRequirementIDLength {
		return fmt.Errorf("must be %d characters or fewer", MaxRequirementIDLength)
	}
	return nil
}

// ValidateHistoryEvent checks a HistoryEvent before it is appended.
// It returns a *ValidationError if any rules fail, or nil if the event is valid.
func ValidateHistoryEvent(e *HistoryEvent) error {
	var ve ValidationError

	if strings.TrimSpace(string(e.Action)) == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "action", Message: "is required"})
	} else if !e.Action.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "action",
			Message: fmt.Sprintf("invalid value %q", e.Action),
		})
	} else if utf8.RuneCountInString(string(e.Action)) > MaxActionLength {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "action",
			Message: fmt.Sprintf("must be %d characters or fewer", MaxActionLength),
		})
	}

	// Description: required and at most 500 characters.
	desc := strings.TrimSpace(e.Description)
	if desc == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "description", Message: "is required"})
	} else if len([]rune(e.Description)) > MaxDescriptionLength {
		ve.Errors = append(ve.Errors, FieldError{Field: "description", Message: "must be 500 characters or fewer"})
	}

	if e.RequirementID == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "requirement_id", Message: "is required"})
	} else if err := ValidateRequirementID(e.RequirementID); err != nil {
		ve.Errors = append(ve.Errors, FieldError{Field: "requirement_id", Message: err.Error()})
	}
	if e.OperatorID == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "operator_id", Message: "is required"})
	} else if utf8.RuneCountInString(e.OperatorID) > MaxOperatorIDLength {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "operator_id",
			Message: fmt.Sprintf("must be %d characters or fewer", MaxOperatorIDLength),
		})
	}

	if e.Result != "" && !e.Result.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "result",
			Message: fmt.Sprintf("invalid value %q", e.Result),
		})
	}
	if e.Result == ResultFailed && e.ErrorMessage == "" {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "error_message",
			Message: "is required when result is failed",
		})
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateGraph checks a DependencyGraph for local invariant violations:
// self-references in any relation list or the parent, duplicate ids within a
// list, refs whose relation type does not match their list, and ids that are
// both prerequisite and dependent (a two-record blocking loop).
func ValidateGraph(g *DependencyGraph) error {
	var ve ValidationError

	if err := ValidateRequirementID(g.RequirementID); err != nil {
		ve.Errors = append(ve.Errors, FieldError{Field: "requirement_id", Message: err.Error()})
	}

	lists := []struct {
		field string
		refs  []RequirementRef
		want  RelationType
	}{
		{"prerequisites", g.Prerequisites, ""},
		{"dependents", g.Dependents, ""},
		{"related", g.Related, RelationRelated},
		{"duplicates", g.Duplicates, RelationDuplicate},
		{"subtasks", g.Subtasks, RelationSubtask},
	}
	for _, l := range lists {
		seen := make(map[string]struct{}, len(l.refs))
		for _, r := range l.refs {
			if r.ID == g.RequirementID {
				ve.Errors = append(ve.Errors, FieldError{Field: l.field, Message: "cannot reference itself"})
			}
			if _, dup := seen[r.ID]; dup {
				ve.Errors = append(ve.Errors, FieldError{
					Field:   l.field,
					Message: fmt.Sprintf("duplicate entry %q", r.ID),
				})
			}
			seen[r.ID] = struct{}{}
			if l.want != "" && r.RelationType != l.want {
				ve.Errors = append(ve.Errors, FieldError{
					Field:   l.field,
					Message: fmt.Sprintf("entry %q has relation type %q", r.ID, r.RelationType),
				})
			}
		}
	}

	prerequisites := make(map[string]struct{}, len(g.Prerequisites))
	for _, r := range g.Prerequisites {
		prerequisites[r.ID] = struct{}{}
	}
	for _, r := range g.Dependents {
		if _, ok := prerequisites[r.ID]; ok {
			ve.Errors = append(ve.Errors, FieldError{
				Field:   "dependents",
				Message: fmt.Sprintf("%q is also a prerequisite", r.ID),
			})
		}
	}

	if g.Parent != nil && g.Parent.ID == g.RequirementID {
		ve.Errors = append(ve.Errors, FieldError{Field: "parent", Message: "cannot reference itself"})
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

var (
	validLayouts    = []string{"hierarchical", "force", "circular", "grid"}
	validDirections = []string{"top-bottom", "bottom-top", "left-right", "right-left"}
)

// ValidateGraphConfig checks layout hints against the supported values.
func ValidateGraphConfig(c GraphConfig) error {
	var ve ValidationError
	if !slices.Contains(validLayouts, c.Layout) {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "layout",
			Message: fmt.Sprintf("must be one of %s", strings.Join(validLayouts, ", ")),
		})
	}
	if !slices.Contains(validDirections, c.Direction) {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "direction",
			Message: fmt.Sprintf("must be one of %s", strings.Join(validDirections, ", ")),
		})
	}
	if c.NodeSpacing < 0 {
		ve.Errors = append(ve.Errors, FieldError{Field: "node_spacing", Message: "must not be negative"})
	}
	if c.LevelSpacing < 0 {
		ve.Errors = append(ve.Errors, FieldError{Field: "level_spacing", Message: "must not be negative"})
	}
	if ve.HasErrors() {
		return &ve
	}
	return nil
}
