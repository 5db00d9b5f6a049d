package graph

import (
	"time"

	"github.com/alfredjeanlab/reqgraph/internal/model"
)

// IndexOf returns the position of id in refs, or -1.
func IndexOf(refs []model.RequirementRef, id string) int {
	for i, r := range refs {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// AddRef appends ref unless an entry with the same id is already present.
// It reports whether the list changed.
func AddRef(refs []model.RequirementRef, ref model.RequirementRef) ([]model.RequirementRef, bool) {
	if IndexOf(refs, ref.ID) >= 0 {
		return refs, false
	}
	return append(refs, ref), true
}

// RemoveRef drops the entry for id and reports whether the list changed.
// An emptied list is returned as nil so a removal restores the pre-add state.
func RemoveRef(refs []model.RequirementRef, id string) ([]model.RequirementRef, bool) {
	i := IndexOf(refs, id)
	if i < 0 {
		return refs, false
	}
	out := make([]model.RequirementRef, 0, len(refs)-1)
	out = append(out, refs[:i]...)
	out = append(out, refs[i+1:]...)
	if len(out) == 0 {
		return nil, true
	}
	return out, true
}

// sides returns pointers to the lists an edge of type t touches on the
// source and on the target record.
func sides(src, dst *model.DependencyGraph, t model.EdgeType) (srcList, dstList *[]model.RequirementRef) {
	switch t {
	case model.EdgeBlocking:
		return &src.Dependents, &dst.Prerequisites
	case model.EdgeRelated:
		return &src.Related, &dst.Related
	case model.EdgeDuplicate:
		return &src.Duplicates, &dst.Duplicates
	case model.EdgeParent:
		return &src.Subtasks, nil
	}
	return nil, nil
}

// HasEdge reports whether src records an edge of type t to dst.
func HasEdge(src *model.DependencyGraph, dstID string, t model.EdgeType) bool {
	var refs []model.RequirementRef
	switch t {
	case model.EdgeBlocking:
		refs = src.Dependents
	case model.EdgeRelated:
		refs = src.Related
	case model.EdgeDuplicate:
		refs = src.Duplicates
	case model.EdgeParent:
		refs = src.Subtasks
	}
	return IndexOf(refs, dstID) >= 0
}

// Link records the edge "src t dst" on both records. srcSnap describes src
// and is stored on dst; dstSnap describes dst and is stored on src. Link does
// not validate: run CanAddEdge first. It reports whether either record
// changed, so re-linking an existing edge is a no-op.
func Link(src, dst *model.DependencyGraph, t model.EdgeType, srcSnap, dstSnap model.Snapshot, now time.Time) bool {
	rel := t.Relation()
	srcList, dstList := sides(src, dst, t)
	if srcList == nil {
		return false
	}

	var changed bool
	var c bool
	*srcList, c = AddRef(*srcList, model.NewRef(dst.RequirementID, rel, dstSnap, now))
	changed = changed || c

	if t == model.EdgeParent {
		if dst.Parent == nil || dst.Parent.ID != src.RequirementID {
			p := model.NewRef(src.RequirementID, rel, srcSnap, now)
			dst.Parent = &p
			changed = true
		}
	} else {
		*dstList, c = AddRef(*dstList, model.NewRef(src.RequirementID, rel, srcSnap, now))
		changed = changed || c
	}

	if changed {
		src.UpdatedAt = now
		dst.UpdatedAt = now
	}
	return changed
}

// Unlink removes the edge "src t dst" from both records and reports whether
// either record changed. Removing an absent edge is a no-op.
func Unlink(src, dst *model.DependencyGraph, t model.EdgeType, now time.Time) bool {
	srcList, dstList := sides(src, dst, t)
	if srcList == nil {
		return false
	}

	var changed bool
	var c bool
	*srcList, c = RemoveRef(*srcList, dst.RequirementID)
	changed = changed || c

	if t == model.EdgeParent {
		if dst.Parent != nil && dst.Parent.ID == src.RequirementID {
			dst.Parent = nil
			changed = true
		}
	} else {
		*dstList, c = RemoveRef(*dstList, src.RequirementID)
		changed = changed || c
	}

	if changed {
		src.UpdatedAt = now
		dst.UpdatedAt = now
	}
	return changed
}

// UpdateSubtaskProgress sets the snapshotted progress of childID on parent,
// clamped to 0..100. It returns ErrNoSuchEdge if childID is not a subtask.
func UpdateSubtaskProgress(parent *model.DependencyGraph, childID string, progress int, now time.Time) (bool, error) {
	i := IndexOf(parent.Subtasks, childID)
	if i < 0 {
		return false, ErrNoSuchEdge
	}
	p := model.ClampProgress(progress)
	ref := &parent.Subtasks[i]
	if ref.Progress != nil && *ref.Progress == p {
		return false, nil
	}
	ref.Progress = &p
	ref.UpdatedAt = now
	parent.UpdatedAt = now
	return true, nil
}
