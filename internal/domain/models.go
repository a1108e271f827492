package domain

import "slices"

// ProblemSet is a named collection of problems with its aggregate stats.
// Problems holds problem ids only; the records themselves are fetched separately.
type ProblemSet struct {
	ID             int        `json:"id"`
	Title          string     `json:"title"`
	Content        string     `json:"content"`
	CreatedTime    string     `json:"createdTime"`
	ModifiedTime   string     `json:"modifiedTime"`
	IsOpen         bool       `json:"isOpen"`
	Tag            [][]string `json:"tag"`
	Difficulty     int        `json:"difficulty"`
	UserID         int        `json:"userID"`
	Username       string     `json:"username"`
	SolverIDs      []int      `json:"solverIDs"`
	RecommendedNum int        `json:"recommendedNum"`
	Problems       []int      `json:"problems"`
}

// Clone returns a deep copy so callers can hand the record out without sharing slices.
func (ps ProblemSet) Clone() ProblemSet {
	out := ps
	if ps.Tag != nil {
		out.Tag = make([][]string, len(ps.Tag))
		for i, group := range ps.Tag {
			out.Tag[i] = slices.Clone(group)
		}
	}
	out.SolverIDs = slices.Clone(ps.SolverIDs)
	out.Problems = slices.Clone(ps.Problems)
	return out
}

// ProblemType discriminates the kind-specific fields of a Problem.
type ProblemType string

const (
	ProblemTypeMultipleChoice ProblemType = "multiple-choice"
	ProblemTypeSubjective     ProblemType = "subjective"
)

// Problem is a single exercise belonging to a problem set.
type Problem struct {
	ID            int         `json:"id"`
	ProblemType   ProblemType `json:"problemType"`
	ProblemSetID  int         `json:"problemSetID"`
	ProblemNumber int         `json:"problemNumber"`
	CreatorID     int         `json:"creatorID"`
	CreatedTime   string      `json:"createdTime"`
	Content       string      `json:"content"`
	SolverIDs     []int       `json:"solverIDs"`

	// multiple-choice only
	Choices []string `json:"choices,omitempty"`
	// subjective only
	Solution string `json:"solution,omitempty"`
}

// Clone returns a deep copy of the problem.
func (p Problem) Clone() Problem {
	out := p
	out.SolverIDs = slices.Clone(p.SolverIDs)
	out.Choices = slices.Clone(p.Choices)
	return out
}

// ProblemSummary is the per-set problem listing returned alongside a problem set.
type ProblemSummary struct {
	Index            int         `json:"index"`
	ProblemType      ProblemType `json:"problem_type"`
	ProblemStatement string      `json:"problem_statement"`
	Choice           []string    `json:"choice"`
	Solution         string      `json:"solution"`
	Explanation      string      `json:"explanation"`
}

// ProblemSetDetail is the server response for a single problem set.
type ProblemSetDetail struct {
	ProblemSet ProblemSet       `json:"res_pset"`
	Problems   []ProblemSummary `json:"problems_list"`
}

// Solver records one user's attempt outcome on a problem set.
type Solver struct {
	UserID       int    `json:"userID"`
	Username     string `json:"username"`
	ProblemID    int    `json:"problemID"`
	ProblemTitle string `json:"problemtitle"`
	Result       bool   `json:"result"`
}

// Scope values accepted by ProblemSetDraft.
const (
	ScopePublic  = "public"
	ScopePrivate = "private"
)

// ProblemSetDraft is the request body for creating or editing a problem set.
type ProblemSetDraft struct {
	Title      string           `json:"title"`
	Content    string           `json:"content"`
	Scope      string           `json:"scope"`
	Tag        [][]string       `json:"tag"`
	Difficulty int              `json:"difficulty"`
	Problems   []ProblemSummary `json:"problems"`
}

// ProblemDraft is the request body for creating or updating a problem.
type ProblemDraft struct {
	ProblemType   ProblemType `json:"problemType"`
	ProblemSetID  int         `json:"problemSetID"`
	ProblemNumber int         `json:"problemNumber"`
	Content       string      `json:"content"`
	Choices       []string    `json:"choices,omitempty"`
	Solution      string      `json:"solution,omitempty"`
}

// Author identifies the user on whose behalf records are created.
type Author struct {
	UserID   int    `json:"userID" yaml:"id"`
	Username string `json:"username" yaml:"name"`
}
