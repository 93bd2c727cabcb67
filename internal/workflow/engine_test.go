package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory SessionStore that round-trips states
// through their serialized form, like the sqlite store does.
type memStore struct {
	mu       sync.Mutex
	sessions map[int64]string
	archived map[string]string
	saveErr  error
}

func newMemStore() *memStore {
	return &memStore{
		sessions: make(map[int64]string),
		archived: make(map[string]string),
	}
}

func (m *memStore) Save(state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	encoded, err := state.Encode()
	if err != nil {
		return err
	}
	m.sessions[state.ChatID] = encoded
	return nil
}

func (m *memStore) Load(chatID int64) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	encoded, ok := m.sessions[chatID]
	if !ok {
		return nil, errors.New("memStore: session not found")
	}
	return DecodeState(encoded)
}

func (m *memStore) Archive(state *State, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.archived[state.SessionID] = reason
	delete(m.sessions, state.ChatID)
	return nil
}

// stubExecutor counts calls and derives its result from the state so
// tests can see which inputs it was given.
type stubExecutor struct {
	mu    sync.Mutex
	fn    func(*State) (string, error)
	calls int
}

func (s *stubExecutor) Execute(_ context.Context, state *State) (string, error) {
	s.mu.Lock()
	s.calls++
	fn := s.fn
	s.mu.Unlock()
	return fn(state)
}

func fixed(result string) *stubExecutor {
	return &stubExecutor{fn: func(*State) (string, error) { return result, nil }}
}

type fixture struct {
	engine    *Engine
	store     *memStore
	executors map[string]*stubExecutor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	stubs := map[string]*stubExecutor{
		ExecutorFramework: fixed("FRAMEWORK"),
		ExecutorDraft:     fixed("draft v1"),
		ExecutorRevision: {fn: func(s *State) (string, error) {
			return fmt.Sprintf("draft revised per %q", s.LastFeedback), nil
		}},
		ExecutorImages:  fixed(`["img/illustration_01.png"]`),
		ExecutorWebpage: fixed("<html><body><h1>lesson</h1></body></html>"),
		ExecutorDeploy:  fixed("file:///tmp/lesson.html"),
	}
	executors := make(map[string]Executor, len(stubs))
	for name, stub := range stubs {
		executors[name] = stub
	}
	engine, err := NewEngine(store, DefaultIntents(), executors)
	require.NoError(t, err)
	return &fixture{engine: engine, store: store, executors: stubs}
}

func TestEngineStartPausesAtDraftCheckpoint(t *testing.T) {
	f := newFixture(t)

	state, err := f.engine.Start(context.Background(), 42, "探索宇宙")
	require.NoError(t, err)
	assert.Equal(t, CheckpointDraft, state.PendingCheckpoint)
	assert.Equal(t, StageDraftPending, state.Stage)
	assert.Equal(t, "draft v1", state.Artifact(ArtifactDraft))
	assert.Equal(t, "FRAMEWORK", state.Artifact(ArtifactFramework))
	assert.False(t, state.IsComplete())

	persisted, err := f.store.Load(42)
	require.NoError(t, err)
	assert.Equal(t, CheckpointDraft, persisted.PendingCheckpoint)
}

func TestEngineDraftApprovalRunsToDeployment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.engine.Start(ctx, 42, "探索宇宙")
	require.NoError(t, err)

	state, decision, err := f.engine.Resume(ctx, 42, "同意")
	require.NoError(t, err)
	assert.Equal(t, DecisionAdvance, decision.Kind)
	assert.Equal(t, CheckpointDeployment, state.PendingCheckpoint)
	assert.Equal(t, StageWebpageDeployed, state.Stage)
	assert.Equal(t, "draft v1", state.Artifact(ArtifactFinalContent))
	assert.Equal(t, "file:///tmp/lesson.html", state.Artifact(ArtifactDeploymentURL))

	// The deployment artifact exists and the draft approval was given,
	// yet the workflow is not complete: feedback from the draft
	// checkpoint was cleared at the transition.
	assert.False(t, state.IsComplete())
	assert.Empty(t, state.LastFeedback)
}

func TestEngineDraftRevisionLoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.engine.Start(ctx, 42, "探索宇宙")
	require.NoError(t, err)

	state, decision, err := f.engine.Resume(ctx, 42, "第二部分太难了")
	require.NoError(t, err)
	assert.Equal(t, DecisionRetry, decision.Kind)
	assert.Equal(t, ExecutorRevision, decision.RetryExecutor)
	assert.Equal(t, `draft revised per "第二部分太难了"`, state.Artifact(ArtifactDraft))
	assert.Equal(t, CheckpointDraft, state.PendingCheckpoint)
	// Cleared when the checkpoint was re-armed, so it cannot leak into
	// a later review.
	assert.Empty(t, state.LastFeedback)
	assert.Equal(t, 0, f.executors[ExecutorImages].calls)
}

func TestEngineDeploymentApprovalTerminatesAndArchives(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.engine.Start(ctx, 42, "探索宇宙")
	require.NoError(t, err)
	_, _, err = f.engine.Resume(ctx, 42, "同意")
	require.NoError(t, err)

	state, decision, err := f.engine.Resume(ctx, 42, "满意")
	require.NoError(t, err)
	assert.Equal(t, DecisionTerminate, decision.Kind)
	assert.True(t, state.IsComplete())
	assert.Equal(t, StageCompleted, state.Stage)
	assert.Equal(t, CheckpointNone, state.PendingCheckpoint)
	assert.Equal(t, "completed", f.store.archived[state.SessionID])

	_, err = f.store.Load(42)
	assert.Error(t, err)
}

func TestEngineImageRetryRerunsDownstream(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.engine.Start(ctx, 42, "探索宇宙")
	require.NoError(t, err)
	_, _, err = f.engine.Resume(ctx, 42, "同意")
	require.NoError(t, err)

	state, decision, err := f.engine.Resume(ctx, 42, "第一张图片换成小猫")
	require.NoError(t, err)
	assert.Equal(t, DecisionRetry, decision.Kind)
	assert.Equal(t, ExecutorImages, decision.RetryExecutor)
	// Images, webpage and deploy re-ran; the draft executors did not.
	assert.Equal(t, 2, f.executors[ExecutorImages].calls)
	assert.Equal(t, 2, f.executors[ExecutorWebpage].calls)
	assert.Equal(t, 2, f.executors[ExecutorDeploy].calls)
	assert.Equal(t, 1, f.executors[ExecutorDraft].calls)
	// Back at the deployment checkpoint only after the pipeline reran.
	assert.Equal(t, CheckpointDeployment, state.PendingCheckpoint)
	assert.False(t, state.IsComplete())
}

func TestEngineWebpageRetrySkipsImages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.engine.Start(ctx, 42, "探索宇宙")
	require.NoError(t, err)
	_, _, err = f.engine.Resume(ctx, 42, "同意")
	require.NoError(t, err)

	state, decision, err := f.engine.Resume(ctx, 42, "字体太小了")
	require.NoError(t, err)
	assert.Equal(t, DecisionRetry, decision.Kind)
	assert.Equal(t, ExecutorWebpage, decision.RetryExecutor)
	assert.Equal(t, 1, f.executors[ExecutorImages].calls)
	assert.Equal(t, 2, f.executors[ExecutorWebpage].calls)
	assert.Equal(t, CheckpointDeployment, state.PendingCheckpoint)
}

func TestEngineExecutorFailureLeavesArtifactUnwritten(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("deployment target unreachable")
	f.executors[ExecutorDeploy].fn = func(*State) (string, error) { return "", boom }
	ctx := context.Background()
	_, err := f.engine.Start(ctx, 42, "探索宇宙")
	require.NoError(t, err)

	_, _, err = f.engine.Resume(ctx, 42, "同意")
	var execErr *ExecutorError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, ExecutorDeploy, execErr.Executor)
	assert.ErrorIs(t, err, boom)

	persisted, loadErr := f.store.Load(42)
	require.NoError(t, loadErr)
	assert.Empty(t, persisted.Artifact(ArtifactDeploymentURL))
	assert.False(t, persisted.IsComplete())
	// The draft checkpoint is re-armed so the approval can be given
	// again once the fault clears.
	assert.Equal(t, CheckpointDraft, persisted.PendingCheckpoint)

	f.executors[ExecutorDeploy].fn = func(*State) (string, error) { return "file:///tmp/lesson.html", nil }
	state, decision, err := f.engine.Resume(ctx, 42, "同意")
	require.NoError(t, err)
	assert.Equal(t, DecisionAdvance, decision.Kind)
	assert.Equal(t, CheckpointDeployment, state.PendingCheckpoint)
	assert.Equal(t, "file:///tmp/lesson.html", state.Artifact(ArtifactDeploymentURL))
}

func TestEngineStaleFeedback(t *testing.T) {
	f := newFixture(t)
	state := NewState("s1", 42, "探索宇宙")
	require.NoError(t, f.store.Save(state))

	_, _, err := f.engine.Resume(context.Background(), 42, "同意")
	assert.ErrorIs(t, err, ErrStaleFeedback)
}

func TestEnginePersistenceFailureSurfaces(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.engine.Start(ctx, 42, "探索宇宙")
	require.NoError(t, err)

	f.store.saveErr = errors.New("disk full")
	_, _, err = f.engine.Resume(ctx, 42, "同意")
	require.Error(t, err)
	assert.ErrorContains(t, err, "persist")
}

func TestEngineUnclassifiedLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.engine.Start(ctx, 42, "探索宇宙")
	require.NoError(t, err)

	state, decision, err := f.engine.Resume(ctx, 42, "   ")
	require.NoError(t, err)
	assert.Equal(t, DecisionUnclassified, decision.Kind)
	assert.Equal(t, CheckpointDraft, state.PendingCheckpoint)
	assert.Equal(t, 1, f.executors[ExecutorDraft].calls)
	assert.Equal(t, 0, f.executors[ExecutorRevision].calls)
}

func TestEngineCancelArchivesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	state, err := f.engine.Start(ctx, 42, "探索宇宙")
	require.NoError(t, err)

	require.NoError(t, f.engine.Cancel(42))
	assert.Equal(t, "cancelled", f.store.archived[state.SessionID])
	_, err = f.store.Load(42)
	assert.Error(t, err)
}

func TestEngineConcurrentSessionsAreIndependent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for chatID := int64(1); chatID <= 8; chatID++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := f.engine.Start(ctx, id, fmt.Sprintf("theme %d", id))
			assert.NoError(t, err)
			_, _, err = f.engine.Resume(ctx, id, "同意")
			assert.NoError(t, err)
		}(chatID)
	}
	wg.Wait()

	for chatID := int64(1); chatID <= 8; chatID++ {
		state, err := f.store.Load(chatID)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("theme %d", chatID), state.Theme)
		assert.Equal(t, CheckpointDeployment, state.PendingCheckpoint)
	}

	f.engine.mu.Lock()
	defer f.engine.mu.Unlock()
	assert.Empty(t, f.engine.sessions)
}

// Lock entries exist only while a call holds or waits on them; a long
// run over many chats must not leave one mutex per chat behind.
func TestEngineSessionLocksAreReleased(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for chatID := int64(1); chatID <= 16; chatID++ {
		_, err := f.engine.Start(ctx, chatID, "探索宇宙")
		require.NoError(t, err)
		_, _, err = f.engine.Resume(ctx, chatID, "同意")
		require.NoError(t, err)
		_, _, err = f.engine.Resume(ctx, chatID, "满意")
		require.NoError(t, err)
	}

	f.engine.mu.Lock()
	defer f.engine.mu.Unlock()
	assert.Empty(t, f.engine.sessions)
}
