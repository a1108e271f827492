package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"probloom-client/internal/app"
	"probloom-client/internal/domain"
	"probloom-client/internal/infra/memory"
)

func TestLoadAndOpenProblemSet(t *testing.T) {
	ctx := context.Background()
	service, api := newTestService()
	api.Seed(sampleProblemSets(), sampleProblems(), map[int][]domain.Solver{
		1: {{UserID: 2, Username: "bob", ProblemID: 1, ProblemTitle: "Arithmetic", Result: true}},
	})

	if err := service.LoadProblemSets(ctx); err != nil {
		t.Fatalf("load problem sets: %v", err)
	}
	if err := service.OpenProblemSet(ctx, 1); err != nil {
		t.Fatalf("open problem set: %v", err)
	}

	st := service.Store().State()
	if len(st.ProblemSets) != 2 {
		t.Fatalf("expected 2 problem sets, got %d", len(st.ProblemSets))
	}
	if st.SelectedProblemSet == nil || st.SelectedProblemSet.ID != 1 {
		t.Fatalf("expected problem set 1 selected, got %+v", st.SelectedProblemSet)
	}
	if len(st.Solvers) != 1 || st.Solvers[0].Username != "bob" {
		t.Fatalf("unexpected solvers %+v", st.Solvers)
	}
}

func TestLoadSolversNotFoundBecomesEmpty(t *testing.T) {
	ctx := context.Background()
	service, api := newTestService()
	api.Seed(sampleProblemSets(), nil, map[int][]domain.Solver{
		1: {{UserID: 2, Username: "bob"}},
	})

	if err := service.LoadSolvers(ctx, 1); err != nil {
		t.Fatalf("load solvers: %v", err)
	}
	if len(service.Store().State().Solvers) != 1 {
		t.Fatalf("expected one solver")
	}

	if err := service.LoadSolvers(ctx, 2); err != nil {
		t.Fatalf("expected not-found to be absorbed, got %v", err)
	}
	if got := service.Store().State().Solvers; got == nil || len(got) != 0 {
		t.Fatalf("expected empty solver list, got %+v", got)
	}
}

func TestLoadSolversPropagatesOtherErrors(t *testing.T) {
	store := app.NewStore()
	service := app.NewProblemService(failingAPI{err: errors.New("connection refused")}, store, nil)

	if err := service.LoadSolvers(context.Background(), 1); err == nil {
		t.Fatalf("expected transport error")
	}
	if seq := len(store.History()); seq != 0 {
		t.Fatalf("expected nothing dispatched, history has %d entries", seq)
	}
}

func TestProblemLifecycle(t *testing.T) {
	ctx := context.Background()
	service, api := newTestService()
	api.Seed(sampleProblemSets(), nil, nil)

	if err := service.LoadProblemSet(ctx, 2); err != nil {
		t.Fatalf("load problem set: %v", err)
	}

	created, err := service.CreateProblem(ctx, domain.ProblemDraft{
		ProblemType:   domain.ProblemTypeMultipleChoice,
		ProblemSetID:  2,
		ProblemNumber: 1,
		Content:       "pick one",
		Choices:       []string{"a", "b"},
	})
	if err != nil {
		t.Fatalf("create problem: %v", err)
	}
	st := service.Store().State()
	if got := st.SelectedProblemSet.Problems; len(got) != 1 || got[0] != created.ID {
		t.Fatalf("expected problem attached, got %v", got)
	}
	if st.SelectedProblem == nil || st.SelectedProblem.ID != created.ID {
		t.Fatalf("expected created problem selected")
	}

	updated, err := service.UpdateProblem(ctx, created.ID, domain.ProblemDraft{
		ProblemType:  domain.ProblemTypeSubjective,
		ProblemSetID: 2,
		Content:      "explain",
		Solution:     "because",
	})
	if err != nil {
		t.Fatalf("update problem: %v", err)
	}
	if service.Store().State().SelectedProblem.Solution != updated.Solution {
		t.Fatalf("expected updated problem selected")
	}

	if err := service.DeleteProblem(ctx, created.ID); err != nil {
		t.Fatalf("delete problem: %v", err)
	}
	st = service.Store().State()
	if st.SelectedProblem != nil || len(st.SelectedProblemSet.Problems) != 0 {
		t.Fatalf("expected problem detached and deselected, got %+v", st)
	}

	if err := service.LoadProblem(ctx, created.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestProblemSetLifecycle(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	ps, err := service.CreateProblemSet(ctx, domain.ProblemSetDraft{Title: "Geometry", Scope: domain.ScopePrivate})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := service.Store().State().ProblemSets; len(got) != 1 || got[0].ID != ps.ID {
		t.Fatalf("expected created set appended, got %+v", got)
	}

	edited, err := service.EditProblemSet(ctx, ps.ID, domain.ProblemSetDraft{Title: "Geometry II", Scope: domain.ScopePublic})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	st := service.Store().State()
	if st.SelectedProblemSet == nil || st.SelectedProblemSet.Title != edited.Title {
		t.Fatalf("expected edited set selected")
	}
	if st.ProblemSets[0].Title != "Geometry" {
		t.Fatalf("edit is not expected to patch the list entry, got %q", st.ProblemSets[0].Title)
	}

	if err := service.DeleteProblemSet(ctx, ps.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := service.Store().State().ProblemSets; len(got) != 0 {
		t.Fatalf("expected list empty, got %+v", got)
	}
}

func TestInvalidDraftIsNotSent(t *testing.T) {
	store := app.NewStore()
	service := app.NewProblemService(failingAPI{err: errors.New("must not be called")}, store, nil)

	_, err := service.CreateProblemSet(context.Background(), domain.ProblemSetDraft{})
	if !errors.Is(err, domain.ErrInvalidDraft) {
		t.Fatalf("expected invalid draft, got %v", err)
	}
}

func newTestService() (*app.ProblemService, *memory.ProblemAPI) {
	api := memory.NewProblemAPIWithClock(domain.Author{UserID: 1, Username: "creator1"}, func() time.Time {
		return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	})
	return app.NewProblemService(api, app.NewStore(), nil), api
}

func sampleProblemSets() []domain.ProblemSet {
	return []domain.ProblemSet{
		{ID: 1, Title: "Arithmetic", Tag: [][]string{{"math"}}, Difficulty: 1, UserID: 1, Username: "creator1", SolverIDs: []int{2}, Problems: []int{1}},
		{ID: 2, Title: "Logic", Tag: [][]string{{"logic"}}, Difficulty: 2, UserID: 1, Username: "creator1", SolverIDs: []int{}, Problems: []int{}},
	}
}

func sampleProblems() []domain.Problem {
	return []domain.Problem{
		{ID: 1, ProblemType: domain.ProblemTypeMultipleChoice, ProblemSetID: 1, ProblemNumber: 1, Content: "What is 2 + 2?", Choices: []string{"3", "4", "5"}},
	}
}

type failingAPI struct {
	err error
}

func (f failingAPI) ListProblemSets(context.Context) ([]domain.ProblemSet, error) { return nil, f.err }
func (f failingAPI) GetProblemSet(context.Context, int) (domain.ProblemSetDetail, error) {
	return domain.ProblemSetDetail{}, f.err
}
func (f failingAPI) ListSolvers(context.Context, int) ([]domain.Solver, error) {
	return nil, fmt.Errorf("list: %w", f.err)
}
func (f failingAPI) CreateProblemSet(context.Context, domain.ProblemSetDraft) (domain.ProblemSet, error) {
	return domain.ProblemSet{}, f.err
}
func (f failingAPI) EditProblemSet(context.Context, int, domain.ProblemSetDraft) (domain.ProblemSetDetail, error) {
	return domain.ProblemSetDetail{}, f.err
}
func (f failingAPI) DeleteProblemSet(context.Context, int) (domain.ProblemSet, error) {
	return domain.ProblemSet{}, f.err
}
func (f failingAPI) CreateProblem(context.Context, domain.ProblemDraft) (domain.Problem, error) {
	return domain.Problem{}, f.err
}
func (f failingAPI) GetProblem(context.Context, int) (domain.Problem, error) {
	return domain.Problem{}, f.err
}
func (f failingAPI) UpdateProblem(context.Context, int, domain.ProblemDraft) (domain.Problem, error) {
	return domain.Problem{}, f.err
}
func (f failingAPI) DeleteProblem(context.Context, int) error { return f.err }

// gatedAPI holds the first problem-set fetch open until release is closed and
// fails solver fetches once failSolvers is closed.
type gatedAPI struct {
	*memory.ProblemAPI
	entered     chan struct{}
	release     chan struct{}
	failSolvers chan struct{}
	once        sync.Once
}

func (g *gatedAPI) GetProblemSet(ctx context.Context, id int) (domain.ProblemSetDetail, error) {
	first := false
	g.once.Do(func() {
		first = true
		close(g.entered)
	})
	if first {
		select {
		case <-g.release:
		case <-ctx.Done():
			return domain.ProblemSetDetail{}, ctx.Err()
		}
	}
	return g.ProblemAPI.GetProblemSet(ctx, id)
}

func (g *gatedAPI) ListSolvers(ctx context.Context, _ int) ([]domain.Solver, error) {
	select {
	case <-g.failSolvers:
		return nil, errors.New("solver backend unavailable")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestSharedFetchSurvivesFirstCallerCancellation(t *testing.T) {
	ctx := context.Background()
	_, mem := newTestService()
	mem.Seed(sampleProblemSets(), sampleProblems(), nil)
	api := &gatedAPI{
		ProblemAPI:  mem,
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
		failSolvers: make(chan struct{}),
	}
	service := app.NewProblemService(api, app.NewStore(), nil)

	openErr := make(chan error, 1)
	go func() { openErr <- service.OpenProblemSet(ctx, 1) }()
	<-api.entered

	loadErr := make(chan error, 1)
	go func() { loadErr <- service.LoadProblemSet(ctx, 1) }()
	// give the second caller time to join the in-flight fetch
	time.Sleep(50 * time.Millisecond)

	close(api.failSolvers)
	if err := <-openErr; err == nil {
		t.Fatalf("expected open to fail on the solver fetch")
	}
	close(api.release)

	if err := <-loadErr; err != nil {
		t.Fatalf("joined load failed: %v", err)
	}
	st := service.Store().State()
	if st.SelectedProblemSet == nil || st.SelectedProblemSet.ID != 1 {
		t.Fatalf("expected problem set 1 selected, got %+v", st.SelectedProblemSet)
	}
	if len(st.Solvers) != 0 {
		t.Fatalf("failed open must not dispatch solvers, got %+v", st.Solvers)
	}
}
