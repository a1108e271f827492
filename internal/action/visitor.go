package action

import "fmt"

// Visitor has one method per variant. A consumer that implements it handles the
// whole catalog; a new variant breaks the build of every consumer until handled.
type Visitor[T any] interface {
	FetchAllProblemSets(FetchAllProblemSets) T
	FetchProblemSet(FetchProblemSet) T
	FetchAllSolvers(FetchAllSolvers) T
	CreateProblemSet(CreateProblemSet) T
	EditProblemSet(EditProblemSet) T
	DeleteProblemSet(DeleteProblemSet) T
	CreateProblem(CreateProblem) T
	FetchProblem(FetchProblem) T
	UpdateProblem(UpdateProblem) T
	DeleteProblem(DeleteProblem) T
}

// Match routes a to the visitor method for its variant. Pointer variants are
// dereferenced; a nil action panics since it carries no tag.
func Match[T any](a Action, v Visitor[T]) T {
	switch a := a.(type) {
	case FetchAllProblemSets:
		return v.FetchAllProblemSets(a)
	case *FetchAllProblemSets:
		return v.FetchAllProblemSets(*a)
	case FetchProblemSet:
		return v.FetchProblemSet(a)
	case *FetchProblemSet:
		return v.FetchProblemSet(*a)
	case FetchAllSolvers:
		return v.FetchAllSolvers(a)
	case *FetchAllSolvers:
		return v.FetchAllSolvers(*a)
	case CreateProblemSet:
		return v.CreateProblemSet(a)
	case *CreateProblemSet:
		return v.CreateProblemSet(*a)
	case EditProblemSet:
		return v.EditProblemSet(a)
	case *EditProblemSet:
		return v.EditProblemSet(*a)
	case DeleteProblemSet:
		return v.DeleteProblemSet(a)
	case *DeleteProblemSet:
		return v.DeleteProblemSet(*a)
	case CreateProblem:
		return v.CreateProblem(a)
	case *CreateProblem:
		return v.CreateProblem(*a)
	case FetchProblem:
		return v.FetchProblem(a)
	case *FetchProblem:
		return v.FetchProblem(*a)
	case UpdateProblem:
		return v.UpdateProblem(a)
	case *UpdateProblem:
		return v.UpdateProblem(*a)
	case DeleteProblem:
		return v.DeleteProblem(a)
	case *DeleteProblem:
		return v.DeleteProblem(*a)
	}
	panic(fmt.Sprintf("action: unhandled variant %T", a))
}
