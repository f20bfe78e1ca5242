package fsm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubActor is a fsm.Actor whose outcome is fixed at construction, for
// exercising invoke success/error routing without a real capability.
type stubActor struct {
	result  any
	err     error
	started chan struct{}
	block   chan struct{}
}

func (a *stubActor) Execute(ctx context.Context, input any) (any, error) {
	if a.started != nil {
		close(a.started)
	}
	if a.block != nil {
		select {
		case <-a.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return a.result, a.err
}

func (a *stubActor) Dump() (json.RawMessage, error) { return json.RawMessage(`{"ok":true}`), nil }
func (a *stubActor) Load(json.RawMessage) error     { return nil }

type testContext struct {
	Count int `json:"count"`
}

func testMC(c *testContext) *MachineContext {
	return NewMachineContext(c, func(v any) (json.RawMessage, error) {
		return json.Marshal(v)
	}, func(data json.RawMessage) (any, error) {
		out := &testContext{}
		if err := json.Unmarshal(data, out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

type plainEvent struct {
	kind EventKind
}

func (e plainEvent) Kind() EventKind { return e.kind }

func buildTwoStateMachine(t *testing.T, invoke *Invoke) (*Machine, *testContext) {
	t.Helper()
	b := &State{Name: "B", Invoke: invoke}
	a := &State{
		Name: "A",
		On: map[EventKind]Transition{
			"GO": {Target: StatePath{"B"}},
		},
	}
	root := &State{
		Name:     "root",
		Initial:  "A",
		Children: map[string]*State{"A": a, "B": b},
	}
	ctx := &testContext{}
	m, err := New(root, testMC(ctx))
	require.NoError(t, err)
	return m, ctx
}

func TestMachine_InitialPlacementNoEntryActions(t *testing.T) {
	entered := false
	a := &State{Name: "A", Entry: []Action{func(context.Context, *MachineContext, any) error {
		entered = true
		return nil
	}}}
	root := &State{Name: "root", Initial: "A", Children: map[string]*State{"A": a}}
	m, err := New(root, testMC(&testContext{}))
	require.NoError(t, err)

	assert.Equal(t, StatePath{"A"}, m.StackPath())
	assert.False(t, entered, "entry actions must not fire for the initial placement")
}

func TestMachine_UnmatchedEventIsNoOp(t *testing.T) {
	m, ctx := buildTwoStateMachine(t, nil)
	ctx.Count = 42

	err := m.Send(context.Background(), plainEvent{kind: "NOT_REGISTERED"})
	require.NoError(t, err)
	assert.Equal(t, StatePath{"A"}, m.StackPath(), "unmatched event must leave state unchanged")
	assert.Equal(t, 42, ctx.Count, "unmatched event must leave context unchanged")
}

func TestMachine_InvokeOnDoneAdvances(t *testing.T) {
	invoke := &Invoke{
		Src: &stubActor{result: "done-payload"},
		InputFn: func(mc *MachineContext) any {
			return nil
		},
		OnDone: Transition{Target: StatePath{"A"}, Actions: []Action{
			func(ctx context.Context, mc *MachineContext, payload any) error {
				mc.Value.(*testContext).Count++
				return nil
			},
		}},
	}
	m, ctx := buildTwoStateMachine(t, invoke)

	err := m.Send(context.Background(), plainEvent{kind: "GO"})
	require.NoError(t, err)
	assert.Equal(t, StatePath{"A"}, m.StackPath(), "on_done should route back through its target")
	assert.Equal(t, 1, ctx.Count)
}

func TestMachine_InvokeOnErrorRoutesToFailure(t *testing.T) {
	wantErr := errors.New("actor blew up")
	invoke := &Invoke{
		Src:     &stubActor{err: wantErr},
		InputFn: func(mc *MachineContext) any { return nil },
		OnDone:  Transition{Target: StatePath{"A"}},
		OnError: Transition{Target: StatePath{"A"}, Actions: []Action{
			func(ctx context.Context, mc *MachineContext, payload any) error {
				mc.Value.(*testContext).Count = -1
				return nil
			},
		}},
	}
	m, ctx := buildTwoStateMachine(t, invoke)

	err := m.Send(context.Background(), plainEvent{kind: "GO"})
	require.NoError(t, err)
	assert.Equal(t, StatePath{"A"}, m.StackPath(), "on_error transition should still be applied")
	assert.Equal(t, -1, ctx.Count, "on_error action must run with the actor's error as payload")
}

func TestMachine_ParentContextCancellationSuppressesOnDone(t *testing.T) {
	started := make(chan struct{})
	block := make(chan struct{})
	invoke := &Invoke{
		Src:     &stubActor{started: started, block: block, result: "late"},
		InputFn: func(mc *MachineContext) any { return nil },
		OnDone: Transition{Target: StatePath{"A"}, Actions: []Action{
			func(ctx context.Context, mc *MachineContext, payload any) error {
				mc.Value.(*testContext).Count = 999
				return nil
			},
		}},
	}
	m, ctx := buildTwoStateMachine(t, invoke)

	callCtx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- m.Send(callCtx, plainEvent{kind: "GO"})
	}()
	<-started

	// Cancel before the actor's Execute call returns: runInvoke must
	// return the cancellation error without ever applying on_done, since
	// the actor only finishes, and block is only closed, after cancel.
	cancel()
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, ctx.Count, "on_done must not apply once the invoke's context was cancelled")

	close(block) // let the goroutine's Execute return so it doesn't leak
}

func TestMachine_DumpLoadRoundTrip(t *testing.T) {
	invoke := &Invoke{
		Src:     &stubActor{result: "x"},
		InputFn: func(mc *MachineContext) any { return nil },
		OnDone:  Transition{Target: StatePath{"B"}},
	}
	m, ctx := buildTwoStateMachine(t, invoke)
	ctx.Count = 7

	require.NoError(t, m.Send(context.Background(), plainEvent{kind: "GO"}))
	assert.Equal(t, StatePath{"B"}, m.StackPath())

	cp, err := m.Dump()
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, cp.StackPath)
	assert.Contains(t, cp.Actors, "B", "the invoked state's actor should be present in the checkpoint")

	b := &State{Name: "B", Invoke: invoke}
	a := &State{Name: "A", On: map[EventKind]Transition{"GO": {Target: StatePath{"B"}}}}
	root := &State{Name: "root", Initial: "A", Children: map[string]*State{"A": a, "B": b}}

	restored, err := Load(root, testMC(&testContext{}), cp, func(stateKey string) (Actor, error) {
		return &stubActor{}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, StatePath{"B"}, restored.StackPath())
	assert.Equal(t, 7, restored.Context().(*testContext).Count)
}

func TestMachine_SelfLoopTransitionRunsActionsWithoutMoving(t *testing.T) {
	count := 0
	a := &State{
		Name: "A",
		On: map[EventKind]Transition{
			"PING": {Actions: []Action{
				func(ctx context.Context, mc *MachineContext, payload any) error {
					count++
					return nil
				},
			}},
		},
	}
	root := &State{Name: "root", Initial: "A", Children: map[string]*State{"A": a}}
	m, err := New(root, testMC(&testContext{}))
	require.NoError(t, err)

	require.NoError(t, m.Send(context.Background(), plainEvent{kind: "PING"}))
	require.NoError(t, m.Send(context.Background(), plainEvent{kind: "PING"}))
	assert.Equal(t, StatePath{"A"}, m.StackPath())
	assert.Equal(t, 2, count)
}

func TestMachine_ChildBeforeAncestorOnDeepestFirstMatch(t *testing.T) {
	var fired string
	child := &State{
		Name: "CHILD",
		On: map[EventKind]Transition{
			"EVT": {Actions: []Action{func(context.Context, *MachineContext, any) error {
				fired = "child"
				return nil
			}}},
		},
	}
	parent := &State{
		Name:     "PARENT",
		Initial:  "CHILD",
		Children: map[string]*State{"CHILD": child},
		On: map[EventKind]Transition{
			"EVT": {Actions: []Action{func(context.Context, *MachineContext, any) error {
				fired = "parent"
				return nil
			}}},
		},
	}
	root := &State{Name: "root", Initial: "PARENT", Children: map[string]*State{"PARENT": parent}}
	m, err := New(root, testMC(&testContext{}))
	require.NoError(t, err)

	require.NoError(t, m.Send(context.Background(), plainEvent{kind: "EVT"}))
	assert.Equal(t, "child", fired, "the deepest active state handling the event should win")
}
