// Package projectindex keeps project IDs ordered by time target size and computes
// single-move updates when one target changes.
package projectindex

import (
	"slices"
	"sort"

	"Mansoor88-6/time-targets-agent/internal/models"
)

// ProjectIDsByTimeTargets is an immutable ordering of project IDs: projects with targets
// first, larger targets first, ties and untargeted projects by descending ID.
type ProjectIDsByTimeTargets struct {
	sortedIDs        []int64
	countWithTargets int
}

// New sorts ids using the targets in targets
func New(ids []int64, targets map[int64]models.TimeTarget) ProjectIDsByTimeTargets {
	sorted := slices.Clone(ids)
	slices.SortFunc(sorted, func(a, b int64) int {
		return compare(a, b, targets)
	})

	count := 0
	for _, id := range sorted {
		if _, ok := targets[id]; !ok {
			break
		}
		count++
	}
	return ProjectIDsByTimeTargets{sortedIDs: sorted, countWithTargets: count}
}

// compare returns a negative number when a sorts before b
func compare(a, b int64, targets map[int64]models.TimeTarget) int {
	ta, hasA := targets[a]
	tb, hasB := targets[b]
	switch {
	case hasA && !hasB:
		return -1
	case !hasA && hasB:
		return 1
	case hasA && hasB && ta.HoursTarget != tb.HoursTarget:
		if ta.HoursTarget > tb.HoursTarget {
			return -1
		}
		return 1
	}
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	default:
		return 0
	}
}

// SortedIDs returns a copy of the ordered IDs
func (p ProjectIDsByTimeTargets) SortedIDs() []int64 {
	return slices.Clone(p.sortedIDs)
}

func (p ProjectIDsByTimeTargets) CountWithTargets() int {
	return p.countWithTargets
}

func (p ProjectIDsByTimeTargets) CountWithoutTargets() int {
	return len(p.sortedIDs) - p.countWithTargets
}

func (p ProjectIDsByTimeTargets) Len() int {
	return len(p.sortedIDs)
}

func (p ProjectIDsByTimeTargets) Equal(other ProjectIDsByTimeTargets) bool {
	return p.countWithTargets == other.countWithTargets && slices.Equal(p.sortedIDs, other.sortedIDs)
}

func (p ProjectIDsByTimeTargets) indexOf(projectID int64) int {
	return slices.Index(p.sortedIDs, projectID)
}

// UpdateKind tells whether a target was created, removed or changed
type UpdateKind int

const (
	Create UpdateKind = iota
	Remove
	Update
)

func (k UpdateKind) String() string {
	switch k {
	case Create:
		return "create"
	case Remove:
		return "remove"
	default:
		return "update"
	}
}

// IndexChange moves the element at Old to New
type IndexChange struct {
	Old int
	New int
}

// IndexUpdate is the single move that brings an index in line with one target change
type IndexUpdate struct {
	Kind   UpdateKind
	Change IndexChange
}

// ComputeUpdate works out where projectID moves when its target becomes newTarget.
// currentTargets are the targets the index was built with. It returns false when the
// project is not indexed or it neither had nor gets a target.
func (p ProjectIDsByTimeTargets) ComputeUpdate(projectID int64, newTarget *models.TimeTarget, currentTargets map[int64]models.TimeTarget) (IndexUpdate, bool) {
	oldIndex := p.indexOf(projectID)
	if oldIndex < 0 {
		return IndexUpdate{}, false
	}

	_, hadTarget := currentTargets[projectID]
	var kind UpdateKind
	switch {
	case !hadTarget && newTarget != nil:
		kind = Create
	case hadTarget && newTarget == nil:
		kind = Remove
	case hadTarget && newTarget != nil:
		kind = Update
	default:
		return IndexUpdate{}, false
	}

	updated := make(map[int64]models.TimeTarget, len(currentTargets)+1)
	for id, t := range currentTargets {
		updated[id] = t
	}
	if newTarget != nil {
		updated[projectID] = *newTarget
	} else {
		delete(updated, projectID)
	}

	// the remaining IDs keep their relative order, so the new position is the
	// insertion point among them
	rest := slices.Delete(slices.Clone(p.sortedIDs), oldIndex, oldIndex+1)
	newIndex := sort.Search(len(rest), func(i int) bool {
		return compare(projectID, rest[i], updated) < 0
	})

	return IndexUpdate{Kind: kind, Change: IndexChange{Old: oldIndex, New: newIndex}}, true
}

// ComputeNewCount returns the count of projects with targets after the update
func (u IndexUpdate) ComputeNewCount(oldCount int) int {
	switch u.Kind {
	case Create:
		return oldCount + 1
	case Remove:
		return oldCount - 1
	default:
		return oldCount
	}
}

// Apply returns a new index with the move performed. It returns false if the change
// does not fit the index.
func (u IndexUpdate) Apply(to ProjectIDsByTimeTargets) (ProjectIDsByTimeTargets, bool) {
	n := len(to.sortedIDs)
	if u.Change.Old < 0 || u.Change.Old >= n || u.Change.New < 0 || u.Change.New >= n {
		return ProjectIDsByTimeTargets{}, false
	}
	count := u.ComputeNewCount(to.countWithTargets)
	if count < 0 || count > n {
		return ProjectIDsByTimeTargets{}, false
	}

	ids := slices.Clone(to.sortedIDs)
	moved := ids[u.Change.Old]
	ids = slices.Delete(ids, u.Change.Old, u.Change.Old+1)
	ids = slices.Insert(ids, u.Change.New, moved)
	return ProjectIDsByTimeTargets{sortedIDs: ids, countWithTargets: count}, true
}
