package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"probloom-client/internal/action"
	"probloom-client/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ProblemAPI is the backend the service talks to (REST, Postgres, in-memory).
// Implementations return already-decoded records; a missing resource is
// reported with an error wrapping domain.ErrNotFound.
type ProblemAPI interface {
	ListProblemSets(ctx context.Context) ([]domain.ProblemSet, error)
	GetProblemSet(ctx context.Context, id int) (domain.ProblemSetDetail, error)
	ListSolvers(ctx context.Context, problemSetID int) ([]domain.Solver, error)
	CreateProblemSet(ctx context.Context, draft domain.ProblemSetDraft) (domain.ProblemSet, error)
	EditProblemSet(ctx context.Context, id int, draft domain.ProblemSetDraft) (domain.ProblemSetDetail, error)
	DeleteProblemSet(ctx context.Context, id int) (domain.ProblemSet, error)
	CreateProblem(ctx context.Context, draft domain.ProblemDraft) (domain.Problem, error)
	GetProblem(ctx context.Context, id int) (domain.Problem, error)
	UpdateProblem(ctx context.Context, id int, draft domain.ProblemDraft) (domain.Problem, error)
	DeleteProblem(ctx context.Context, id int) error
}

// ProblemService runs the network round trip for each intent and dispatches the
// resulting action. Nothing is dispatched when the round trip fails.
type ProblemService struct {
	api    ProblemAPI
	store  *Store
	logger *zap.Logger
	sf     singleflight.Group
}

func NewProblemService(api ProblemAPI, store *Store, logger *zap.Logger) *ProblemService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProblemService{api: api, store: store, logger: logger}
}

// Store exposes the container the service dispatches into.
func (s *ProblemService) Store() *Store {
	return s.store
}

// LoadProblemSets fetches the whole list and replaces it.
func (s *ProblemService) LoadProblemSets(ctx context.Context) error {
	res, err := s.shared(ctx, "problemsets", func(ctx context.Context) (interface{}, error) {
		return s.api.ListProblemSets(ctx)
	})
	if err != nil {
		return fmt.Errorf("list problem sets: %w", err)
	}
	s.store.Dispatch(action.FetchAllProblemSets{ProblemSets: res.([]domain.ProblemSet)})
	return nil
}

// LoadProblemSet fetches one problem set and selects it.
func (s *ProblemService) LoadProblemSet(ctx context.Context, id int) error {
	detail, err := s.fetchProblemSet(ctx, id)
	if err != nil {
		return err
	}
	s.store.Dispatch(action.FetchProblemSet{ProblemSet: detail.ProblemSet, Problems: detail.Problems})
	return nil
}

// LoadSolvers fetches the solvers of a problem set. A not-found response is
// normalised to an empty list.
func (s *ProblemService) LoadSolvers(ctx context.Context, problemSetID int) error {
	solvers, err := s.fetchSolvers(ctx, problemSetID)
	if err != nil {
		return err
	}
	s.store.Dispatch(action.FetchAllSolvers{Solvers: solvers})
	return nil
}

// OpenProblemSet fetches a problem set and its solvers concurrently, then
// dispatches FetchProblemSet followed by FetchAllSolvers.
func (s *ProblemService) OpenProblemSet(ctx context.Context, id int) error {
	var (
		detail  domain.ProblemSetDetail
		solvers []domain.Solver
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		detail, err = s.fetchProblemSet(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		solvers, err = s.fetchSolvers(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	s.store.Dispatch(action.FetchProblemSet{ProblemSet: detail.ProblemSet, Problems: detail.Problems})
	s.store.Dispatch(action.FetchAllSolvers{Solvers: solvers})
	return nil
}

// CreateProblemSet creates a problem set and appends it to the list.
func (s *ProblemService) CreateProblemSet(ctx context.Context, draft domain.ProblemSetDraft) (domain.ProblemSet, error) {
	if err := draft.Validate(); err != nil {
		return domain.ProblemSet{}, err
	}
	ps, err := s.api.CreateProblemSet(ctx, draft)
	if err != nil {
		return domain.ProblemSet{}, fmt.Errorf("create problem set: %w", err)
	}
	s.store.Dispatch(action.CreateProblemSet{ProblemSet: ps})
	s.logger.Info("problem set created", zap.Int("id", ps.ID))
	return ps, nil
}

// EditProblemSet edits a problem set and selects the edited record.
func (s *ProblemService) EditProblemSet(ctx context.Context, id int, draft domain.ProblemSetDraft) (domain.ProblemSet, error) {
	if err := draft.Validate(); err != nil {
		return domain.ProblemSet{}, err
	}
	detail, err := s.api.EditProblemSet(ctx, id, draft)
	if err != nil {
		return domain.ProblemSet{}, fmt.Errorf("edit problem set %d: %w", id, err)
	}
	s.store.Dispatch(action.EditProblemSet{ProblemSet: detail.ProblemSet, Problems: detail.Problems})
	return detail.ProblemSet, nil
}

// DeleteProblemSet deletes a problem set and removes it from the list.
func (s *ProblemService) DeleteProblemSet(ctx context.Context, id int) error {
	deleted, err := s.api.DeleteProblemSet(ctx, id)
	if err != nil {
		return fmt.Errorf("delete problem set %d: %w", id, err)
	}
	// the backend echoes the deleted record; fall back to the requested id if it omits it
	target := deleted.ID
	if target == 0 {
		target = id
	}
	s.store.Dispatch(action.DeleteProblemSet{ID: target})
	s.logger.Info("problem set deleted", zap.Int("id", target))
	return nil
}

// CreateProblem creates a problem and attaches it to the selected problem set.
func (s *ProblemService) CreateProblem(ctx context.Context, draft domain.ProblemDraft) (domain.Problem, error) {
	if err := draft.Validate(); err != nil {
		return domain.Problem{}, err
	}
	p, err := s.api.CreateProblem(ctx, draft)
	if err != nil {
		return domain.Problem{}, fmt.Errorf("create problem: %w", err)
	}
	s.store.Dispatch(action.CreateProblem{Problem: p})
	return p, nil
}

// LoadProblem fetches a problem and selects it.
func (s *ProblemService) LoadProblem(ctx context.Context, id int) error {
	res, err := s.shared(ctx, "problem:"+strconv.Itoa(id), func(ctx context.Context) (interface{}, error) {
		return s.api.GetProblem(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("get problem %d: %w", id, err)
	}
	s.store.Dispatch(action.FetchProblem{Problem: res.(domain.Problem)})
	return nil
}

// UpdateProblem updates a problem and selects the updated record.
func (s *ProblemService) UpdateProblem(ctx context.Context, id int, draft domain.ProblemDraft) (domain.Problem, error) {
	if err := draft.Validate(); err != nil {
		return domain.Problem{}, err
	}
	p, err := s.api.UpdateProblem(ctx, id, draft)
	if err != nil {
		return domain.Problem{}, fmt.Errorf("update problem %d: %w", id, err)
	}
	s.store.Dispatch(action.UpdateProblem{Problem: p})
	return p, nil
}

// DeleteProblem deletes a problem and detaches it from the selected problem set.
func (s *ProblemService) DeleteProblem(ctx context.Context, id int) error {
	if err := s.api.DeleteProblem(ctx, id); err != nil {
		return fmt.Errorf("delete problem %d: %w", id, err)
	}
	s.store.Dispatch(action.DeleteProblem{ID: id})
	return nil
}

func (s *ProblemService) fetchProblemSet(ctx context.Context, id int) (domain.ProblemSetDetail, error) {
	res, err := s.shared(ctx, "problemset:"+strconv.Itoa(id), func(ctx context.Context) (interface{}, error) {
		return s.api.GetProblemSet(ctx, id)
	})
	if err != nil {
		return domain.ProblemSetDetail{}, fmt.Errorf("get problem set %d: %w", id, err)
	}
	return res.(domain.ProblemSetDetail), nil
}

func (s *ProblemService) fetchSolvers(ctx context.Context, problemSetID int) ([]domain.Solver, error) {
	res, err := s.shared(ctx, "solvers:"+strconv.Itoa(problemSetID), func(ctx context.Context) (interface{}, error) {
		return s.api.ListSolvers(ctx, problemSetID)
	})
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Debug("no solvers recorded", zap.Int("problemSetID", problemSetID))
		return []domain.Solver{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list solvers %d: %w", problemSetID, err)
	}
	return res.([]domain.Solver), nil
}

// shared coalesces identical reads. The flight runs detached from the first
// caller's cancellation so callers that joined it are not failed by it; the
// first caller's deadline still bounds the round trip. Each caller stops
// waiting when its own ctx is done.
func (s *ProblemService) shared(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	ch := s.sf.DoChan(key, func() (interface{}, error) {
		fctx, cancel := flightContext(ctx)
		defer cancel()
		return fn(fctx)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func flightContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if deadline, ok := ctx.Deadline(); ok {
		return context.WithDeadline(detached, deadline)
	}
	return detached, func() {}
}
