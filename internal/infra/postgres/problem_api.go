package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"probloom-client/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ProblemAPI reads and writes problem sets directly in Postgres. Records are
// kept as JSONB; ids and problem membership come from the relational columns.
type ProblemAPI struct {
	pool   *pgxpool.Pool
	author domain.Author
	clock  func() time.Time
}

func NewProblemAPI(pool *pgxpool.Pool, author domain.Author) *ProblemAPI {
	return &ProblemAPI{pool: pool, author: author, clock: time.Now}
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

const listProblemSetsSQL = `
SELECT ps.id, ps.data,
       COALESCE(array_agg(p.id ORDER BY p.id) FILTER (WHERE p.id IS NOT NULL), '{}')
FROM problem_sets ps
LEFT JOIN problems p ON p.problem_set_id = ps.id
GROUP BY ps.id
ORDER BY ps.id`

func (a *ProblemAPI) ListProblemSets(ctx context.Context) ([]domain.ProblemSet, error) {
	rows, err := a.pool.Query(ctx, listProblemSetsSQL)
	if err != nil {
		return nil, fmt.Errorf("list problem sets: %w", err)
	}
	defer rows.Close()

	out := []domain.ProblemSet{}
	for rows.Next() {
		var (
			id       int
			raw      []byte
			problems []int32
		)
		if err := rows.Scan(&id, &raw, &problems); err != nil {
			return nil, fmt.Errorf("scan problem set: %w", err)
		}
		ps, err := decodeProblemSet(id, raw)
		if err != nil {
			return nil, err
		}
		ps.Problems = make([]int, len(problems))
		for i, pid := range problems {
			ps.Problems[i] = int(pid)
		}
		out = append(out, ps)
	}
	return out, rows.Err()
}

func (a *ProblemAPI) GetProblemSet(ctx context.Context, id int) (domain.ProblemSetDetail, error) {
	return loadDetail(ctx, a.pool, id)
}

func (a *ProblemAPI) ListSolvers(ctx context.Context, problemSetID int) ([]domain.Solver, error) {
	rows, err := a.pool.Query(ctx, `SELECT data FROM solved WHERE problem_set_id=$1 ORDER BY id`, problemSetID)
	if err != nil {
		return nil, fmt.Errorf("list solvers: %w", err)
	}
	defer rows.Close()

	var out []domain.Solver
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan solver: %w", err)
		}
		var s domain.Solver
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("unmarshal solver: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, notFound(domain.ErrProblemSetNotFound, problemSetID)
	}
	return out, nil
}

func (a *ProblemAPI) CreateProblemSet(ctx context.Context, draft domain.ProblemSetDraft) (domain.ProblemSet, error) {
	if err := draft.Validate(); err != nil {
		return domain.ProblemSet{}, err
	}
	var ps domain.ProblemSet
	err := a.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		var id int
		if err := tx.QueryRow(ctx, `INSERT INTO problem_sets (data) VALUES ('{}') RETURNING id`).Scan(&id); err != nil {
			return fmt.Errorf("insert problem set: %w", err)
		}
		ps = draft.NewProblemSet(id, a.author, a.now())
		ids, err := a.insertSummaries(ctx, tx, id, draft.Problems)
		if err != nil {
			return err
		}
		ps.Problems = append(ps.Problems, ids...)
		return saveProblemSet(ctx, tx, ps)
	})
	if err != nil {
		return domain.ProblemSet{}, err
	}
	return ps, nil
}

func (a *ProblemAPI) EditProblemSet(ctx context.Context, id int, draft domain.ProblemSetDraft) (domain.ProblemSetDetail, error) {
	if err := draft.Validate(); err != nil {
		return domain.ProblemSetDetail{}, err
	}
	var detail domain.ProblemSetDetail
	err := a.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		var raw []byte
		err := tx.QueryRow(ctx, `SELECT data FROM problem_sets WHERE id=$1 FOR UPDATE`, id).Scan(&raw)
		if errors.Is(err, pgx.ErrNoRows) {
			return notFound(domain.ErrProblemSetNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("load problem set: %w", err)
		}
		ps, err := decodeProblemSet(id, raw)
		if err != nil {
			return err
		}
		ps = draft.Apply(ps, a.now())
		if len(draft.Problems) > 0 {
			if _, err := tx.Exec(ctx, `DELETE FROM problems WHERE problem_set_id=$1`, id); err != nil {
				return fmt.Errorf("clear problems: %w", err)
			}
			if _, err := a.insertSummaries(ctx, tx, id, draft.Problems); err != nil {
				return err
			}
		}
		if err := saveProblemSet(ctx, tx, ps); err != nil {
			return err
		}
		detail, err = loadDetail(ctx, tx, id)
		return err
	})
	if err != nil {
		return domain.ProblemSetDetail{}, err
	}
	return detail, nil
}

func (a *ProblemAPI) DeleteProblemSet(ctx context.Context, id int) (domain.ProblemSet, error) {
	var ps domain.ProblemSet
	err := a.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		detail, err := loadDetail(ctx, tx, id)
		if err != nil {
			return err
		}
		ps = detail.ProblemSet
		_, err = tx.Exec(ctx, `DELETE FROM problem_sets WHERE id=$1`, id)
		return err
	})
	if err != nil {
		return domain.ProblemSet{}, err
	}
	return ps, nil
}

func (a *ProblemAPI) CreateProblem(ctx context.Context, draft domain.ProblemDraft) (domain.Problem, error) {
	if err := draft.Validate(); err != nil {
		return domain.Problem{}, err
	}
	var p domain.Problem
	err := a.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		var id int
		err := tx.QueryRow(ctx, `INSERT INTO problems (problem_set_id) SELECT id FROM problem_sets WHERE id=$1 RETURNING id`, draft.ProblemSetID).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return notFound(domain.ErrProblemSetNotFound, draft.ProblemSetID)
		}
		if err != nil {
			return fmt.Errorf("insert problem: %w", err)
		}
		p = draft.NewProblem(id, a.author, a.now())
		return saveProblem(ctx, tx, p)
	})
	if err != nil {
		return domain.Problem{}, err
	}
	return p, nil
}

func (a *ProblemAPI) GetProblem(ctx context.Context, id int) (domain.Problem, error) {
	var raw []byte
	err := a.pool.QueryRow(ctx, `SELECT data FROM problems WHERE id=$1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Problem{}, notFound(domain.ErrProblemNotFound, id)
	}
	if err != nil {
		return domain.Problem{}, fmt.Errorf("load problem: %w", err)
	}
	return decodeProblem(id, raw)
}

func (a *ProblemAPI) UpdateProblem(ctx context.Context, id int, draft domain.ProblemDraft) (domain.Problem, error) {
	if err := draft.Validate(); err != nil {
		return domain.Problem{}, err
	}
	var p domain.Problem
	err := a.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		var raw []byte
		err := tx.QueryRow(ctx, `SELECT data FROM problems WHERE id=$1 FOR UPDATE`, id).Scan(&raw)
		if errors.Is(err, pgx.ErrNoRows) {
			return notFound(domain.ErrProblemNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("load problem: %w", err)
		}
		current, err := decodeProblem(id, raw)
		if err != nil {
			return err
		}
		p = draft.Apply(current)
		return saveProblem(ctx, tx, p)
	})
	if err != nil {
		return domain.Problem{}, err
	}
	return p, nil
}

func (a *ProblemAPI) DeleteProblem(ctx context.Context, id int) error {
	var deleted int
	err := a.pool.QueryRow(ctx, `DELETE FROM problems WHERE id=$1 RETURNING id`, id).Scan(&deleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound(domain.ErrProblemNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("delete problem: %w", err)
	}
	return nil
}

// SeedSolver records an attempt outcome; used by fixtures and tests.
func (a *ProblemAPI) SeedSolver(ctx context.Context, problemSetID int, s domain.Solver) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = a.pool.Exec(ctx, `INSERT INTO solved (problem_set_id, data) VALUES ($1, $2::jsonb)`, problemSetID, string(raw))
	return err
}

func (a *ProblemAPI) insertSummaries(ctx context.Context, tx pgx.Tx, setID int, summaries []domain.ProblemSummary) ([]int, error) {
	ids := make([]int, 0, len(summaries))
	for _, summary := range summaries {
		var id int
		if err := tx.QueryRow(ctx, `INSERT INTO problems (problem_set_id) VALUES ($1) RETURNING id`, setID).Scan(&id); err != nil {
			return nil, fmt.Errorf("insert problem: %w", err)
		}
		p := domain.ProblemDraft{
			ProblemType:   summary.ProblemType,
			ProblemSetID:  setID,
			ProblemNumber: summary.Index,
			Content:       summary.ProblemStatement,
			Choices:       summary.Choice,
			Solution:      summary.Solution,
		}.NewProblem(id, a.author, a.now())
		if err := saveProblem(ctx, tx, p); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func loadDetail(ctx context.Context, q querier, id int) (domain.ProblemSetDetail, error) {
	var raw []byte
	err := q.QueryRow(ctx, `SELECT data FROM problem_sets WHERE id=$1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ProblemSetDetail{}, notFound(domain.ErrProblemSetNotFound, id)
	}
	if err != nil {
		return domain.ProblemSetDetail{}, fmt.Errorf("load problem set: %w", err)
	}
	ps, err := decodeProblemSet(id, raw)
	if err != nil {
		return domain.ProblemSetDetail{}, err
	}

	rows, err := q.Query(ctx, `SELECT id, data FROM problems WHERE problem_set_id=$1 ORDER BY id`, id)
	if err != nil {
		return domain.ProblemSetDetail{}, fmt.Errorf("load problems: %w", err)
	}
	defer rows.Close()

	ps.Problems = []int{}
	summaries := []domain.ProblemSummary{}
	for rows.Next() {
		var (
			pid  int
			praw []byte
		)
		if err := rows.Scan(&pid, &praw); err != nil {
			return domain.ProblemSetDetail{}, fmt.Errorf("scan problem: %w", err)
		}
		p, err := decodeProblem(pid, praw)
		if err != nil {
			return domain.ProblemSetDetail{}, err
		}
		ps.Problems = append(ps.Problems, pid)
		summaries = append(summaries, domain.ProblemSummary{
			Index:            p.ProblemNumber,
			ProblemType:      p.ProblemType,
			ProblemStatement: p.Content,
			Choice:           p.Choices,
			Solution:         p.Solution,
		})
	}
	if err := rows.Err(); err != nil {
		return domain.ProblemSetDetail{}, err
	}
	return domain.ProblemSetDetail{ProblemSet: ps, Problems: summaries}, nil
}

// saveProblemSet stores everything but the problem ids, which live in the problems table.
func saveProblemSet(ctx context.Context, tx pgx.Tx, ps domain.ProblemSet) error {
	ps.Problems = nil
	raw, err := json.Marshal(ps)
	if err != nil {
		return fmt.Errorf("marshal problem set: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE problem_sets SET data=$2::jsonb WHERE id=$1`, ps.ID, string(raw)); err != nil {
		return fmt.Errorf("save problem set: %w", err)
	}
	return nil
}

func saveProblem(ctx context.Context, tx pgx.Tx, p domain.Problem) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal problem: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE problems SET problem_set_id=$2, data=$3::jsonb WHERE id=$1`, p.ID, p.ProblemSetID, string(raw)); err != nil {
		return fmt.Errorf("save problem: %w", err)
	}
	return nil
}

func decodeProblemSet(id int, raw []byte) (domain.ProblemSet, error) {
	var ps domain.ProblemSet
	if err := json.Unmarshal(raw, &ps); err != nil {
		return domain.ProblemSet{}, fmt.Errorf("unmarshal problem set %d: %w", id, err)
	}
	ps.ID = id
	return ps, nil
}

func decodeProblem(id int, raw []byte) (domain.Problem, error) {
	var p domain.Problem
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.Problem{}, fmt.Errorf("unmarshal problem %d: %w", id, err)
	}
	p.ID = id
	return p, nil
}

func notFound(kind error, id int) error {
	return fmt.Errorf("%w: %w %d", domain.ErrNotFound, kind, id)
}

func (a *ProblemAPI) now() string {
	return a.clock().UTC().Format(time.RFC3339)
}
