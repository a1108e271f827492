// Package action defines the closed set of intents folded into the application state.
//
// Every variant is a plain record; building one never fails and never performs I/O.
// The set is sealed: only this package can add variants, and Visitor forces every
// consumer to handle each of them.
package action

import "probloom-client/internal/domain"

// Tag is the discriminant carried by every action.
type Tag string

const (
	TagFetchAllProblemSets Tag = "GET_ALL_PROBLEMSETS"
	TagFetchProblemSet     Tag = "GET_PROBLEMSET"
	TagFetchAllSolvers     Tag = "GET_ALL_SOLVER_OF_PROBLEMSET"
	TagCreateProblemSet    Tag = "CREATE_PROBLEM_SET"
	TagEditProblemSet      Tag = "EDIT_PROBLEM_SET"
	TagDeleteProblemSet    Tag = "DELETE_PROBLEMSET"
	TagCreateProblem       Tag = "CREATE_PROBLEM"
	TagFetchProblem        Tag = "GET_PROBLEM"
	TagUpdateProblem       Tag = "UPDATE_PROBLEM"
	TagDeleteProblem       Tag = "DELETE_PROBLEM"
)

// Action is implemented only by the variants declared in this package.
type Action interface {
	Tag() Tag
	sealed()
}

// FetchAllProblemSets replaces the whole problem set list.
type FetchAllProblemSets struct {
	ProblemSets []domain.ProblemSet
}

// FetchProblemSet opens a problem set. Problems is informational for views.
type FetchProblemSet struct {
	ProblemSet domain.ProblemSet
	Problems   []domain.ProblemSummary
}

// FetchAllSolvers replaces the solver list of the viewed problem set.
type FetchAllSolvers struct {
	Solvers []domain.Solver
}

// CreateProblemSet appends a newly created problem set.
type CreateProblemSet struct {
	ProblemSet domain.ProblemSet
}

// EditProblemSet replaces the selected problem set with the edited record.
type EditProblemSet struct {
	ProblemSet domain.ProblemSet
	Problems   []domain.ProblemSummary
}

// DeleteProblemSet removes a problem set from the list.
type DeleteProblemSet struct {
	ID int
}

// CreateProblem attaches a new problem to the selected problem set.
type CreateProblem struct {
	Problem domain.Problem
}

// FetchProblem opens a problem.
type FetchProblem struct {
	Problem domain.Problem
}

// UpdateProblem replaces the selected problem with the updated record.
type UpdateProblem struct {
	Problem domain.Problem
}

// DeleteProblem detaches a problem from the selected problem set.
type DeleteProblem struct {
	ID int
}

func (FetchAllProblemSets) Tag() Tag { return TagFetchAllProblemSets }
func (FetchProblemSet) Tag() Tag     { return TagFetchProblemSet }
func (FetchAllSolvers) Tag() Tag     { return TagFetchAllSolvers }
func (CreateProblemSet) Tag() Tag    { return TagCreateProblemSet }
func (EditProblemSet) Tag() Tag      { return TagEditProblemSet }
func (DeleteProblemSet) Tag() Tag    { return TagDeleteProblemSet }
func (CreateProblem) Tag() Tag       { return TagCreateProblem }
func (FetchProblem) Tag() Tag        { return TagFetchProblem }
func (UpdateProblem) Tag() Tag       { return TagUpdateProblem }
func (DeleteProblem) Tag() Tag       { return TagDeleteProblem }

func (FetchAllProblemSets) sealed() {}
func (FetchProblemSet) sealed()     {}
func (FetchAllSolvers) sealed()     {}
func (CreateProblemSet) sealed()    {}
func (EditProblemSet) sealed()      {}
func (DeleteProblemSet) sealed()    {}
func (CreateProblem) sealed()       {}
func (FetchProblem) sealed()        {}
func (UpdateProblem) sealed()       {}
func (DeleteProblem) sealed()       {}
