// Package state holds the application state tree and the reducer that folds
// actions into it.
package state

import (
	"probloom-client/internal/domain"
)

// ApplicationState is the root of the client state tree. Values are treated as
// immutable: Reduce never writes into a tree it was given, so retaining old
// trees is enough for replay or undo.
type ApplicationState struct {
	ProblemSets        []domain.ProblemSet `json:"problemSets" yaml:"problemSets"`
	Solvers            []domain.Solver     `json:"solvers" yaml:"solvers"`
	SelectedProblemSet *domain.ProblemSet  `json:"selectedProblemSet" yaml:"selectedProblemSet"`
	SelectedProblem    *domain.Problem     `json:"selectedProblem" yaml:"selectedProblem"`
}

// Initial returns the empty tree the application starts with.
func Initial() ApplicationState {
	return ApplicationState{
		ProblemSets: []domain.ProblemSet{},
		Solvers:     []domain.Solver{},
	}
}
