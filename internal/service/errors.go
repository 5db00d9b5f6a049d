package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/reqgraph/internal/graph"
	"github.com/alfredjeanlab/reqgraph/internal/model"
	"github.com/alfredjeanlab/reqgraph/internal/store"
)

// Kind classifies a GraphError. Transports map each kind to a distinct
// client-facing status.
type Kind string

const (
	KindNotFound               Kind = "not_found"
	KindSelfReference          Kind = "self_reference"
	KindCycleDetected          Kind = "cycle_detected"
	KindDuplicateParent        Kind = "duplicate_parent"
	KindConcurrentModification Kind = "concurrent_modification"
	KindStorageFailure         Kind = "storage_failure"
	KindInvalidArgument        Kind = "invalid_argument"
)

// Retryable reports whether an operation failing with k may succeed when
// retried from a fresh load without changing the request.
func (k Kind) Retryable() bool {
	return k == KindConcurrentModification || k == KindStorageFailure
}

// GraphError is the error returned by every GraphService operation.
type GraphError struct {
	Kind Kind
	Op   string   // operation name, e.g. "add edge"
	IDs  []string // requirement ids involved
	Err  error
}

func (e *GraphError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if len(e.IDs) > 0 {
		b.WriteString(" ")
		b.WriteString(strings.Join(e.IDs, ", "))
	}
	b.WriteString(": ")
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	} else {
		b.WriteString(string(e.Kind))
	}
	return b.String()
}

func (e *GraphError) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, KindStorageFailure for any other non-nil
// error, and "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ge *GraphError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindStorageFailure
}

// checkID rejects a missing requirement id or one longer than the stores
// accept. name labels the id in the message.
func checkID(op, name, id string) error {
	if err := model.ValidateRequirementID(id); err != nil {
		return invalidArgument(op, "%s %w", name, err)
	}
	return nil
}

// invalidArgument builds a KindInvalidArgument error.
func invalidArgument(op, format string, args ...any) error {
	return &GraphError{Kind: KindInvalidArgument, Op: op, Err: fmt.Errorf(format, args...)}
}

// classify wraps err in a GraphError whose kind follows the sentinel it
// carries. Errors that are already GraphErrors pass through unchanged.
func classify(op string, err error, ids ...string) error {
	if err == nil {
		return nil
	}
	var ge *GraphError
	if errors.As(err, &ge) {
		return err
	}
	var ve *model.ValidationError
	kind := KindStorageFailure
	switch {
	case errors.Is(err, graph.ErrSelfReference):
		kind = KindSelfReference
	case errors.Is(err, graph.ErrCycleDetected):
		kind = KindCycleDetected
	case errors.Is(err, graph.ErrDuplicateParent):
		kind = KindDuplicateParent
	case errors.Is(err, store.ErrNotFound), errors.Is(err, graph.ErrNoSuchEdge):
		kind = KindNotFound
	case errors.Is(err, store.ErrConcurrentModification), errors.Is(err, store.ErrAlreadyExists):
		kind = KindConcurrentModification
	case errors.As(err, &ve):
		kind = KindInvalidArgument
	}
	return &GraphError{Kind: kind, Op: op, IDs: ids, Err: err}
}
