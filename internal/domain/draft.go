package domain

import (
	"fmt"
	"slices"
	"strings"
)

// Validate checks the fields every collaborator requires before accepting the draft.
func (d ProblemSetDraft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidDraft)
	}
	if d.Scope != "" && d.Scope != ScopePublic && d.Scope != ScopePrivate {
		return fmt.Errorf("%w: unknown scope %q", ErrInvalidDraft, d.Scope)
	}
	return nil
}

// Apply writes the draft onto ps, leaving identity and stats untouched.
func (d ProblemSetDraft) Apply(ps ProblemSet, now string) ProblemSet {
	out := ps.Clone()
	out.Title = d.Title
	out.Content = d.Content
	out.IsOpen = d.Scope == ScopePublic
	out.Tag = make([][]string, len(d.Tag))
	for i, group := range d.Tag {
		out.Tag[i] = slices.Clone(group)
	}
	out.Difficulty = d.Difficulty
	out.ModifiedTime = now
	return out
}

// NewProblemSet builds the record a backend stores for a freshly created draft.
func (d ProblemSetDraft) NewProblemSet(id int, author Author, now string) ProblemSet {
	ps := d.Apply(ProblemSet{
		ID:          id,
		CreatedTime: now,
		UserID:      author.UserID,
		Username:    author.Username,
		SolverIDs:   []int{},
		Problems:    []int{},
	}, now)
	return ps
}

// Validate checks the kind-specific fields of a problem draft.
func (d ProblemDraft) Validate() error {
	switch d.ProblemType {
	case ProblemTypeMultipleChoice:
		if len(d.Choices) == 0 {
			return fmt.Errorf("%w: multiple-choice problem needs choices", ErrInvalidDraft)
		}
	case ProblemTypeSubjective:
	default:
		return fmt.Errorf("%w: unknown problem type %q", ErrInvalidDraft, d.ProblemType)
	}
	if d.ProblemSetID <= 0 {
		return fmt.Errorf("%w: problem set id is required", ErrInvalidDraft)
	}
	return nil
}

// Apply writes the draft onto p, keeping id, creator and solver history.
func (d ProblemDraft) Apply(p Problem) Problem {
	out := p.Clone()
	out.ProblemType = d.ProblemType
	out.ProblemSetID = d.ProblemSetID
	out.ProblemNumber = d.ProblemNumber
	out.Content = d.Content
	out.Choices = slices.Clone(d.Choices)
	out.Solution = d.Solution
	return out
}

// NewProblem builds the record a backend stores for a freshly created problem.
func (d ProblemDraft) NewProblem(id int, author Author, now string) Problem {
	return d.Apply(Problem{
		ID:          id,
		CreatorID:   author.UserID,
		CreatedTime: now,
		SolverIDs:   []int{},
	})
}
