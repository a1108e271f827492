package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"probloom-client/internal/domain"
)

// ProblemAPI is an in-process backend (useful for tests/demos and offline runs).
// Records are cloned on the way in and out so callers never share slices with it.
type ProblemAPI struct {
	author domain.Author
	clock  func() time.Time

	mu        sync.RWMutex
	nextSetID int
	nextID    int
	order     []int
	sets      map[int]domain.ProblemSet
	problems  map[int]domain.Problem
	solvers   map[int][]domain.Solver
}

func NewProblemAPI(author domain.Author) *ProblemAPI {
	return NewProblemAPIWithClock(author, time.Now)
}

// NewProblemAPIWithClock allows deterministic timestamps in tests.
func NewProblemAPIWithClock(author domain.Author, now func() time.Time) *ProblemAPI {
	return &ProblemAPI{
		author:    author,
		clock:     now,
		nextSetID: 1,
		nextID:    1,
		sets:      make(map[int]domain.ProblemSet),
		problems:  make(map[int]domain.Problem),
		solvers:   make(map[int][]domain.Solver),
	}
}

// Seed stores records as-is, keeping their ids. Later creates continue after the highest id.
func (a *ProblemAPI) Seed(sets []domain.ProblemSet, problems []domain.Problem, solvers map[int][]domain.Solver) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, ps := range sets {
		if _, ok := a.sets[ps.ID]; !ok {
			a.order = append(a.order, ps.ID)
		}
		a.sets[ps.ID] = ps.Clone()
		if ps.ID >= a.nextSetID {
			a.nextSetID = ps.ID + 1
		}
	}
	for _, p := range problems {
		a.problems[p.ID] = p.Clone()
		if p.ID >= a.nextID {
			a.nextID = p.ID + 1
		}
	}
	for id, list := range solvers {
		a.solvers[id] = slices.Clone(list)
	}
}

func (a *ProblemAPI) ListProblemSets(_ context.Context) ([]domain.ProblemSet, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]domain.ProblemSet, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.sets[id].Clone())
	}
	return out, nil
}

func (a *ProblemAPI) GetProblemSet(_ context.Context, id int) (domain.ProblemSetDetail, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ps, ok := a.sets[id]
	if !ok {
		return domain.ProblemSetDetail{}, notFound(domain.ErrProblemSetNotFound, id)
	}
	return a.detailLocked(ps), nil
}

func (a *ProblemAPI) ListSolvers(_ context.Context, problemSetID int) ([]domain.Solver, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	list, ok := a.solvers[problemSetID]
	if !ok {
		return nil, notFound(domain.ErrProblemSetNotFound, problemSetID)
	}
	return slices.Clone(list), nil
}

func (a *ProblemAPI) CreateProblemSet(_ context.Context, draft domain.ProblemSetDraft) (domain.ProblemSet, error) {
	if err := draft.Validate(); err != nil {
		return domain.ProblemSet{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.nextSetID
	a.nextSetID++
	ps := draft.NewProblemSet(id, a.author, a.now())
	for _, summary := range draft.Problems {
		p := a.problemFromSummaryLocked(id, summary)
		ps.Problems = append(ps.Problems, p.ID)
	}
	a.sets[id] = ps
	a.order = append(a.order, id)
	return ps.Clone(), nil
}

// EditProblemSet rewrites the metadata and, when the draft lists problems,
// replaces the set's problems with freshly numbered ones.
func (a *ProblemAPI) EditProblemSet(_ context.Context, id int, draft domain.ProblemSetDraft) (domain.ProblemSetDetail, error) {
	if err := draft.Validate(); err != nil {
		return domain.ProblemSetDetail{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	ps, ok := a.sets[id]
	if !ok {
		return domain.ProblemSetDetail{}, notFound(domain.ErrProblemSetNotFound, id)
	}
	ps = draft.Apply(ps, a.now())
	if len(draft.Problems) > 0 {
		for _, pid := range ps.Problems {
			delete(a.problems, pid)
		}
		ps.Problems = make([]int, 0, len(draft.Problems))
		for _, summary := range draft.Problems {
			p := a.problemFromSummaryLocked(id, summary)
			ps.Problems = append(ps.Problems, p.ID)
		}
	}
	a.sets[id] = ps
	return a.detailLocked(ps), nil
}

func (a *ProblemAPI) DeleteProblemSet(_ context.Context, id int) (domain.ProblemSet, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ps, ok := a.sets[id]
	if !ok {
		return domain.ProblemSet{}, notFound(domain.ErrProblemSetNotFound, id)
	}
	for _, pid := range ps.Problems {
		delete(a.problems, pid)
	}
	delete(a.sets, id)
	delete(a.solvers, id)
	a.order = slices.DeleteFunc(slices.Clone(a.order), func(v int) bool { return v == id })
	return ps.Clone(), nil
}

func (a *ProblemAPI) CreateProblem(_ context.Context, draft domain.ProblemDraft) (domain.Problem, error) {
	if err := draft.Validate(); err != nil {
		return domain.Problem{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	ps, ok := a.sets[draft.ProblemSetID]
	if !ok {
		return domain.Problem{}, notFound(domain.ErrProblemSetNotFound, draft.ProblemSetID)
	}
	id := a.nextID
	a.nextID++
	p := draft.NewProblem(id, a.author, a.now())
	a.problems[id] = p
	ps = ps.Clone()
	ps.Problems = append(ps.Problems, id)
	a.sets[ps.ID] = ps
	return p.Clone(), nil
}

func (a *ProblemAPI) GetProblem(_ context.Context, id int) (domain.Problem, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	p, ok := a.problems[id]
	if !ok {
		return domain.Problem{}, notFound(domain.ErrProblemNotFound, id)
	}
	return p.Clone(), nil
}

func (a *ProblemAPI) UpdateProblem(_ context.Context, id int, draft domain.ProblemDraft) (domain.Problem, error) {
	if err := draft.Validate(); err != nil {
		return domain.Problem{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.problems[id]
	if !ok {
		return domain.Problem{}, notFound(domain.ErrProblemNotFound, id)
	}
	p = draft.Apply(p)
	a.problems[id] = p
	return p.Clone(), nil
}

func (a *ProblemAPI) DeleteProblem(_ context.Context, id int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.problems[id]
	if !ok {
		return notFound(domain.ErrProblemNotFound, id)
	}
	delete(a.problems, id)
	if ps, ok := a.sets[p.ProblemSetID]; ok {
		ps = ps.Clone()
		ps.Problems = slices.DeleteFunc(ps.Problems, func(v int) bool { return v == id })
		a.sets[ps.ID] = ps
	}
	return nil
}

func (a *ProblemAPI) problemFromSummaryLocked(setID int, summary domain.ProblemSummary) domain.Problem {
	id := a.nextID
	a.nextID++
	p := domain.ProblemDraft{
		ProblemType:   summary.ProblemType,
		ProblemSetID:  setID,
		ProblemNumber: summary.Index,
		Content:       summary.ProblemStatement,
		Choices:       summary.Choice,
		Solution:      summary.Solution,
	}.NewProblem(id, a.author, a.now())
	a.problems[id] = p
	return p
}

func (a *ProblemAPI) detailLocked(ps domain.ProblemSet) domain.ProblemSetDetail {
	summaries := make([]domain.ProblemSummary, 0, len(ps.Problems))
	for _, pid := range ps.Problems {
		p, ok := a.problems[pid]
		if !ok {
			continue
		}
		summaries = append(summaries, domain.ProblemSummary{
			Index:            p.ProblemNumber,
			ProblemType:      p.ProblemType,
			ProblemStatement: p.Content,
			Choice:           slices.Clone(p.Choices),
			Solution:         p.Solution,
		})
	}
	return domain.ProblemSetDetail{ProblemSet: ps.Clone(), Problems: summaries}
}

func (a *ProblemAPI) now() string {
	return a.clock().UTC().Format(time.RFC3339)
}

func notFound(kind error, id int) error {
	return fmt.Errorf("%w: %w %d", domain.ErrNotFound, kind, id)
}
