package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/alfredjeanlab/reqgraph/internal/graph"
	"github.com/alfredjeanlab/reqgraph/internal/model"
	"github.com/alfredjeanlab/reqgraph/internal/store"
)

func TestClassify(t *testing.T) {
	for _, tc := range []struct {
		err  error
		want Kind
	}{
		{graph.ErrSelfReference, KindSelfReference},
		{fmt.Errorf("wrap: %w", graph.ErrCycleDetected), KindCycleDetected},
		{graph.ErrDuplicateParent, KindDuplicateParent},
		{fmt.Errorf("load: %w", store.ErrNotFound), KindNotFound},
		{graph.ErrNoSuchEdge, KindNotFound},
		{store.ErrConcurrentModification, KindConcurrentModification},
		{store.ErrAlreadyExists, KindConcurrentModification},
		{&model.ValidationError{Errors: []model.FieldError{{Field: "action", Message: "required"}}}, KindInvalidArgument},
		{errors.New("connection reset"), KindStorageFailure},
	} {
		t.Run(tc.err.Error(), func(t *testing.T) {
			err := classify("op", tc.err, "rq-a")
			if got := KindOf(err); got != tc.want {
				t.Errorf("KindOf(classify(%v)) = %s, want %s", tc.err, got, tc.want)
			}
			if !errors.Is(err, tc.err) {
				t.Error("classified error does not wrap the cause")
			}
		})
	}
}

func TestClassify_PassesThroughGraphErrors(t *testing.T) {
	orig := &GraphError{Kind: KindSelfReference, Op: "add edge", Err: graph.ErrSelfReference}
	if got := classify("other", orig); got != orig {
		t.Errorf("classify rewrapped a GraphError: %v", got)
	}
	if classify("op", nil) != nil {
		t.Error("classify(nil) != nil")
	}
}

func TestGraphError_Error(t *testing.T) {
	err := &GraphError{Kind: KindCycleDetected, Op: "add edge", IDs: []string{"rq-c", "rq-a"}, Err: graph.ErrCycleDetected}
	if got, want := err.Error(), "add edge rq-c, rq-a: "+graph.ErrCycleDetected.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	bare := &GraphError{Kind: KindNotFound, Op: "get history"}
	if got := bare.Error(); got != "get history: not_found" {
		t.Errorf("Error() = %q", got)
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(nil) != "" {
		t.Error("KindOf(nil) should be empty")
	}
	if KindOf(errors.New("x")) != KindStorageFailure {
		t.Error("plain errors should read as storage failures")
	}
	wrapped := fmt.Errorf("handler: %w", &GraphError{Kind: KindNotFound})
	if KindOf(wrapped) != KindNotFound {
		t.Error("KindOf did not unwrap")
	}
}

func TestKind_Retryable(t *testing.T) {
	for k, want := range map[Kind]bool{
		KindConcurrentModification: true,
		KindStorageFailure:         true,
		KindCycleDetected:          false,
		KindNotFound:               false,
		KindInvalidArgument:        false,
	} {
		if got := k.Retryable(); got != want {
			t.Errorf("%s.Retryable() = %v, want %v", k, got, want)
		}
	}
}
