package state

import (
	"probloom-client/internal/action"
	"probloom-client/internal/domain"
)

// Reduce computes the next state tree. A nil prev is replaced by Initial().
// Fields an action does not target are carried over as-is; targeted slices are
// always rebuilt, never appended to or edited in place.
func Reduce(prev *ApplicationState, a action.Action) ApplicationState {
	base := Initial()
	if prev != nil {
		base = *prev
	}
	return action.Match[ApplicationState](a, reducer{prev: base})
}

// CheckPreconditions reports actions Reduce only partially applies. CreateProblem
// and DeleteProblem need an open problem set; without one the problem-set patch
// is skipped and only the problem selection changes.
func CheckPreconditions(prev *ApplicationState, a action.Action) error {
	switch a.Tag() {
	case action.TagCreateProblem, action.TagDeleteProblem:
		if prev == nil || prev.SelectedProblemSet == nil {
			return domain.ErrNoSelectedProblemSet
		}
	}
	return nil
}

type reducer struct {
	prev ApplicationState
}

var _ action.Visitor[ApplicationState] = reducer{}

func (r reducer) FetchAllProblemSets(a action.FetchAllProblemSets) ApplicationState {
	next := r.prev
	next.ProblemSets = cloneOrEmpty(a.ProblemSets)
	return next
}

func (r reducer) FetchProblemSet(a action.FetchProblemSet) ApplicationState {
	next := r.prev
	ps := a.ProblemSet
	next.SelectedProblemSet = &ps
	return next
}

func (r reducer) FetchAllSolvers(a action.FetchAllSolvers) ApplicationState {
	next := r.prev
	next.Solvers = cloneOrEmpty(a.Solvers)
	return next
}

func (r reducer) CreateProblemSet(a action.CreateProblemSet) ApplicationState {
	next := r.prev
	sets := make([]domain.ProblemSet, 0, len(r.prev.ProblemSets)+1)
	sets = append(sets, r.prev.ProblemSets...)
	next.ProblemSets = append(sets, a.ProblemSet)
	return next
}

// EditProblemSet only replaces the selection; the matching list entry stays as
// it was until the list is fetched again.
func (r reducer) EditProblemSet(a action.EditProblemSet) ApplicationState {
	next := r.prev
	ps := a.ProblemSet
	next.SelectedProblemSet = &ps
	return next
}

func (r reducer) DeleteProblemSet(a action.DeleteProblemSet) ApplicationState {
	next := r.prev
	sets := make([]domain.ProblemSet, 0, len(r.prev.ProblemSets))
	for _, ps := range r.prev.ProblemSets {
		if ps.ID != a.ID {
			sets = append(sets, ps)
		}
	}
	next.ProblemSets = sets
	return next
}

func (r reducer) CreateProblem(a action.CreateProblem) ApplicationState {
	next := r.prev
	if r.prev.SelectedProblemSet != nil {
		ps := *r.prev.SelectedProblemSet
		ps.Problems = appendID(ps.Problems, a.Problem.ID)
		next.SelectedProblemSet = &ps
	}
	p := a.Problem
	next.SelectedProblem = &p
	return next
}

func (r reducer) FetchProblem(a action.FetchProblem) ApplicationState {
	next := r.prev
	p := a.Problem
	next.SelectedProblem = &p
	return next
}

func (r reducer) UpdateProblem(a action.UpdateProblem) ApplicationState {
	next := r.prev
	p := a.Problem
	next.SelectedProblem = &p
	return next
}

// DeleteProblem clears the selected problem even when a.ID names another problem.
func (r reducer) DeleteProblem(a action.DeleteProblem) ApplicationState {
	next := r.prev
	if r.prev.SelectedProblemSet != nil {
		ps := *r.prev.SelectedProblemSet
		ps.Problems = removeID(ps.Problems, a.ID)
		next.SelectedProblemSet = &ps
	}
	next.SelectedProblem = nil
	return next
}

func appendID(ids []int, id int) []int {
	out := make([]int, 0, len(ids)+1)
	out = append(out, ids...)
	return append(out, id)
}

// removeID drops every occurrence of id; a missing id yields an equal copy.
func removeID(ids []int, id int) []int {
	out := make([]int, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func cloneOrEmpty[T any](in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	return out
}
