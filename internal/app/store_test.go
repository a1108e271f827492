package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"probloom-client/internal/action"
	"probloom-client/internal/app"
	"probloom-client/internal/domain"
	"probloom-client/internal/state"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDispatchAppliesActionsInOrder(t *testing.T) {
	store := app.NewStore()

	store.Dispatch(action.CreateProblemSet{ProblemSet: domain.ProblemSet{ID: 1}})
	store.Dispatch(action.CreateProblemSet{ProblemSet: domain.ProblemSet{ID: 2}})
	got := store.Dispatch(action.DeleteProblemSet{ID: 1})

	if len(got.ProblemSets) != 1 || got.ProblemSets[0].ID != 2 {
		t.Fatalf("expected only problem set 2, got %+v", got.ProblemSets)
	}
	if len(store.State().ProblemSets) != 1 {
		t.Fatalf("State() out of sync with Dispatch result")
	}
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	store := app.NewStore()
	ch, cancel := store.Subscribe()
	defer cancel()

	initial := <-ch
	if initial.Seq != 0 || len(initial.State.ProblemSets) != 0 {
		t.Fatalf("unexpected initial snapshot %+v", initial)
	}

	store.Dispatch(action.FetchAllProblemSets{ProblemSets: []domain.ProblemSet{{ID: 3}}})

	update := <-ch
	if update.Seq != 1 || update.Tag != action.TagFetchAllProblemSets {
		t.Fatalf("unexpected snapshot header %+v", update)
	}
	if len(update.State.ProblemSets) != 1 || update.State.ProblemSets[0].ID != 3 {
		t.Fatalf("unexpected snapshot state %+v", update.State)
	}
}

func TestSlowSubscriberGetsNewestSnapshot(t *testing.T) {
	store := app.NewStore()
	ch, cancel := store.Subscribe()
	defer cancel()

	for i := 1; i <= 20; i++ {
		store.Dispatch(action.CreateProblemSet{ProblemSet: domain.ProblemSet{ID: i}})
	}

	var last app.Snapshot
	for len(ch) > 0 {
		last = <-ch
	}
	if last.Seq != 20 {
		t.Fatalf("expected newest snapshot seq 20, got %d", last.Seq)
	}
}

func TestCancelClosesChannel(t *testing.T) {
	store := app.NewStore()
	ch, cancel := store.Subscribe()
	<-ch
	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Fatalf("expected channel closed")
	}
	store.Dispatch(action.FetchAllSolvers{})
}

func TestUndoRestoresPreviousTree(t *testing.T) {
	store := app.NewStore(app.WithHistoryLimit(2))

	if _, ok := store.Undo(); ok {
		t.Fatalf("expected nothing to undo")
	}

	store.Dispatch(action.CreateProblemSet{ProblemSet: domain.ProblemSet{ID: 1}})
	store.Dispatch(action.CreateProblemSet{ProblemSet: domain.ProblemSet{ID: 2}})
	store.Dispatch(action.CreateProblemSet{ProblemSet: domain.ProblemSet{ID: 3}})

	if n := len(store.History()); n != 2 {
		t.Fatalf("expected history bounded to 2, got %d", n)
	}

	restored, ok := store.Undo()
	if !ok || len(restored.ProblemSets) != 2 {
		t.Fatalf("expected two problem sets after undo, got %+v", restored.ProblemSets)
	}
	restored, ok = store.Undo()
	if !ok || len(restored.ProblemSets) != 1 {
		t.Fatalf("expected one problem set after second undo, got %+v", restored.ProblemSets)
	}
	if _, ok := store.Undo(); ok {
		t.Fatalf("expected history exhausted")
	}
}

func TestHistoryKeepsTreesUnchanged(t *testing.T) {
	store := app.NewStore(app.WithInitialState(state.ApplicationState{
		SelectedProblemSet: &domain.ProblemSet{ID: 1, Problems: []int{1, 2}},
	}))
	store.Dispatch(action.DeleteProblem{ID: 1})

	history := store.History()
	if got := history[0].SelectedProblemSet.Problems; len(got) != 2 {
		t.Fatalf("history tree mutated: %v", got)
	}
	if got := store.State().SelectedProblemSet.Problems; len(got) != 1 || got[0] != 2 {
		t.Fatalf("unexpected current problems %v", got)
	}
}

type recordingObserver struct {
	mu   sync.Mutex
	seqs []uint64
	fail bool
}

func (o *recordingObserver) Publish(_ context.Context, snap app.Snapshot) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seqs = append(o.seqs, snap.Seq)
	if o.fail {
		return errors.New("boom")
	}
	return nil
}

func TestObserversSeeEveryChangeInOrder(t *testing.T) {
	failing := &recordingObserver{fail: true}
	ok := &recordingObserver{}
	store := app.NewStore(app.WithObserver(failing), app.WithObserver(ok))

	store.Dispatch(action.FetchAllSolvers{})
	store.Dispatch(action.DeleteProblem{ID: 1})
	store.Undo()

	for _, o := range []*recordingObserver{failing, ok} {
		if len(o.seqs) != 3 || o.seqs[0] != 1 || o.seqs[2] != 3 {
			t.Fatalf("unexpected observed sequence %v", o.seqs)
		}
	}
}

func TestConcurrentDispatchKeepsEveryAction(t *testing.T) {
	store := app.NewStore(app.WithHistoryLimit(0))
	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			store.Dispatch(action.CreateProblemSet{ProblemSet: domain.ProblemSet{ID: id}})
		}(i)
	}
	wg.Wait()

	if n := len(store.State().ProblemSets); n != 50 {
		t.Fatalf("expected 50 problem sets, got %d", n)
	}
	if len(store.History()) != 0 {
		t.Fatalf("expected history disabled")
	}
}

type stallingObserver struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (o *stallingObserver) Publish(ctx context.Context, _ app.Snapshot) error {
	o.once.Do(func() { close(o.entered) })
	select {
	case <-o.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestStalledObserverDoesNotBlockReaders(t *testing.T) {
	observer := &stallingObserver{entered: make(chan struct{}), release: make(chan struct{})}
	store := app.NewStore(app.WithObserver(observer))

	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		store.Dispatch(action.CreateProblemSet{ProblemSet: domain.ProblemSet{ID: 7}})
	}()
	<-observer.entered

	read := make(chan state.ApplicationState, 1)
	go func() { read <- store.State() }()
	select {
	case st := <-read:
		if len(st.ProblemSets) != 1 || st.ProblemSets[0].ID != 7 {
			t.Fatalf("expected dispatched state visible, got %+v", st.ProblemSets)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("State() blocked while an observer was publishing")
	}

	ch, cancel := store.Subscribe()
	if snap := <-ch; snap.Seq != 1 {
		t.Fatalf("expected initial snapshot at seq 1, got %d", snap.Seq)
	}
	cancel()

	close(observer.release)
	<-dispatched
}
