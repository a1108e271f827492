package cli

import (
	"context"
	"fmt"
	"time"

	"probloom-client/internal/app"
	"probloom-client/internal/config"
	"probloom-client/internal/domain"
	"probloom-client/internal/infra/memory"
	pgstore "probloom-client/internal/infra/postgres"
	transport "probloom-client/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"
)

// newBackend picks the collaborator the service talks to: the REST backend when
// a base URL is configured, Postgres when a URL is configured, otherwise a
// seeded in-memory backend. The returned cleanup must always be called.
func newBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (app.ProblemAPI, func(), error) {
	author := domain.Author{UserID: cfg.User.ID, Username: cfg.User.Name}

	if cfg.API.BaseURL != "" {
		client, err := transport.NewClient(cfg.API.BaseURL, config.TTLDuration(cfg.API.Timeout, 10*time.Second))
		if err != nil {
			return nil, func() {}, err
		}
		if err := client.FetchCSRFToken(ctx); err != nil {
			// reads still work; unsafe requests will be rejected by the backend
			logger.Warn("csrf token unavailable", zap.Error(err))
		}
		logger.Info("using REST backend", zap.String("baseURL", cfg.API.BaseURL))
		return client, func() {}, nil
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, logger); err != nil {
			return nil, func() {}, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, func() {}, fmt.Errorf("connect postgres: %w", err)
		}
		logger.Info("using postgres backend")
		return pgstore.NewProblemAPI(pool, author), pool.Close, nil
	}

	api := memory.NewProblemAPI(author)
	api.Seed(sampleProblemSets(), sampleProblems(), sampleSolvers())
	logger.Info("using in-memory backend")
	return api, func() {}, nil
}

// sampleProblemSets provides a minimal data set for offline runs; point api.baseURL at a real backend in production.
func sampleProblemSets() []domain.ProblemSet {
	return []domain.ProblemSet{
		{
			ID:             1,
			Title:          "Warm-up arithmetic",
			Content:        "A few quick sums.",
			CreatedTime:    "2024-11-22T10:00:00Z",
			ModifiedTime:   "2024-11-22T10:00:00Z",
			IsOpen:         true,
			Tag:            [][]string{{"math"}, {"arithmetic"}},
			Difficulty:     1,
			UserID:         1,
			Username:       "guest",
			SolverIDs:      []int{2},
			RecommendedNum: 1,
			Problems:       []int{1},
		},
	}
}

func sampleProblems() []domain.Problem {
	return []domain.Problem{
		{
			ID:            1,
			ProblemType:   domain.ProblemTypeMultipleChoice,
			ProblemSetID:  1,
			ProblemNumber: 1,
			CreatorID:     1,
			CreatedTime:   "2024-11-22T10:00:00Z",
			Content:       "What is 2 + 2?",
			SolverIDs:     []int{2},
			Choices:       []string{"3", "4", "5"},
		},
	}
}

func sampleSolvers() map[int][]domain.Solver {
	return map[int][]domain.Solver{
		1: {{UserID: 2, Username: "bob", ProblemID: 1, ProblemTitle: "Warm-up arithmetic", Result: true}},
	}
}
