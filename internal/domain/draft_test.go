package domain

import (
	"errors"
	"testing"
)

func TestProblemSetDraftValidate(t *testing.T) {
	cases := []struct {
		name  string
		draft ProblemSetDraft
		ok    bool
	}{
		{name: "public", draft: ProblemSetDraft{Title: "t", Scope: ScopePublic}, ok: true},
		{name: "empty scope", draft: ProblemSetDraft{Title: "t"}, ok: true},
		{name: "blank title", draft: ProblemSetDraft{Title: "  ", Scope: ScopePrivate}},
		{name: "unknown scope", draft: ProblemSetDraft{Title: "t", Scope: "team"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.draft.Validate()
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidDraft) {
				t.Fatalf("expected ErrInvalidDraft, got %v", err)
			}
		})
	}
}

func TestProblemSetDraftApplyKeepsIdentity(t *testing.T) {
	orig := ProblemSet{ID: 3, Title: "old", UserID: 9, SolverIDs: []int{1}, Problems: []int{4, 5}, CreatedTime: "c"}
	draft := ProblemSetDraft{Title: "new", Scope: ScopePublic, Tag: [][]string{{"a"}}, Difficulty: 2}

	got := draft.Apply(orig, "m")
	if got.ID != 3 || got.UserID != 9 || got.CreatedTime != "c" || len(got.Problems) != 2 {
		t.Fatalf("identity lost: %+v", got)
	}
	if got.Title != "new" || !got.IsOpen || got.Difficulty != 2 || got.ModifiedTime != "m" {
		t.Fatalf("draft not applied: %+v", got)
	}
	draft.Tag[0][0] = "changed"
	if got.Tag[0][0] != "a" {
		t.Fatalf("tag shares storage with draft")
	}
	got.Problems[0] = 99
	if orig.Problems[0] != 4 {
		t.Fatalf("apply mutated the original record")
	}
}

func TestProblemDraftValidate(t *testing.T) {
	if err := (ProblemDraft{ProblemType: ProblemTypeMultipleChoice, ProblemSetID: 1}).Validate(); !errors.Is(err, ErrInvalidDraft) {
		t.Fatalf("expected missing choices to fail, got %v", err)
	}
	if err := (ProblemDraft{ProblemType: "essay", ProblemSetID: 1}).Validate(); !errors.Is(err, ErrInvalidDraft) {
		t.Fatalf("expected unknown type to fail, got %v", err)
	}
	if err := (ProblemDraft{ProblemType: ProblemTypeSubjective}).Validate(); !errors.Is(err, ErrInvalidDraft) {
		t.Fatalf("expected missing problem set to fail, got %v", err)
	}
	if err := (ProblemDraft{ProblemType: ProblemTypeSubjective, ProblemSetID: 2}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewProblemStampsAuthor(t *testing.T) {
	p := ProblemDraft{ProblemType: ProblemTypeSubjective, ProblemSetID: 2, ProblemNumber: 1, Content: "why"}.
		NewProblem(10, Author{UserID: 5, Username: "eve"}, "now")
	if p.ID != 10 || p.CreatorID != 5 || p.CreatedTime != "now" || p.ProblemSetID != 2 {
		t.Fatalf("unexpected problem %+v", p)
	}
	if p.SolverIDs == nil {
		t.Fatalf("expected empty, non-nil solver ids")
	}
}
