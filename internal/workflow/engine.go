package workflow

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Engine orchestrates one workflow instance per chat. Stage executors
// run strictly one at a time within a session; independent sessions
// run concurrently, serialized per chat key.
type Engine struct {
	store      SessionStore
	executors  map[string]Executor
	controller *Controller
	router     *Router
	intents    Intents

	mu       sync.Mutex
	sessions map[int64]*sessionLock
}

// sessionLock serializes work on one chat. refs counts holders and
// waiters so the entry can be dropped from the map once idle instead
// of accumulating one mutex per chat ever seen.
type sessionLock struct {
	sync.Mutex
	refs int
}

func NewEngine(store SessionStore, intents Intents, executors map[string]Executor) (*Engine, error) {
	if err := intents.Validate(); err != nil {
		return nil, fmt.Errorf("invalid intent configuration: %w", err)
	}
	return &Engine{
		store:      store,
		executors:  executors,
		controller: NewController(store, intents),
		router:     NewRouter(intents),
		intents:    intents,
		sessions:   make(map[int64]*sessionLock),
	}, nil
}

func (e *Engine) lockSession(chatID int64) *sessionLock {
	e.mu.Lock()
	lock, ok := e.sessions[chatID]
	if !ok {
		lock = &sessionLock{}
		e.sessions[chatID] = lock
	}
	lock.refs++
	e.mu.Unlock()
	lock.Lock()
	return lock
}

func (e *Engine) unlockSession(chatID int64, lock *sessionLock) {
	lock.Unlock()
	e.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(e.sessions, chatID)
	}
	e.mu.Unlock()
}

// startPlan runs up to the first review gate.
func startPlan() []string {
	return []string{ExecutorFramework, ExecutorDraft}
}

// advancePlan is what approval of a non-final checkpoint triggers.
func advancePlan(cp Checkpoint) []string {
	switch cp {
	case CheckpointDraft:
		return []string{ExecutorImages, ExecutorWebpage, ExecutorDeploy}
	default:
		return nil
	}
}

// retryPlan re-runs the requested executor and every downstream step
// needed to reach the next review gate. A single-image change re-runs
// images, webpage and deploy, not the full pipeline.
func retryPlan(executor string) []string {
	switch executor {
	case ExecutorImages:
		return []string{ExecutorImages, ExecutorWebpage, ExecutorDeploy}
	case ExecutorWebpage:
		return []string{ExecutorWebpage, ExecutorDeploy}
	default:
		return []string{executor}
	}
}

// Start creates a fresh session for the chat, replacing any active
// one, and runs the pipeline until the first checkpoint.
func (e *Engine) Start(ctx context.Context, chatID int64, theme string) (*State, error) {
	lock := e.lockSession(chatID)
	defer e.unlockSession(chatID, lock)

	state := NewState(uuid.NewString(), chatID, theme)
	log.Printf("[%s] starting workflow for chat %d, theme %q", state.SessionID, chatID, theme)
	if err := e.store.Save(state); err != nil {
		return nil, fmt.Errorf("could not persist new session: %w", err)
	}
	if err := e.runPlan(ctx, state, startPlan()); err != nil {
		return state, err
	}
	return state, nil
}

// Resume classifies feedback against the pending checkpoint and acts
// on the routing decision. The returned Decision tells the caller
// whether to re-prompt (Unclassified) or report progress.
func (e *Engine) Resume(ctx context.Context, chatID int64, feedback string) (*State, Decision, error) {
	lock := e.lockSession(chatID)
	defer e.unlockSession(chatID, lock)

	state, err := e.store.Load(chatID)
	if err != nil {
		return nil, Decision{}, err
	}

	decision, err := e.router.Route(state, feedback)
	if err != nil {
		return state, Decision{}, err
	}
	log.Printf("[%s] checkpoint %q, feedback %q -> %s", state.SessionID, state.PendingCheckpoint, feedback, decision.Kind)

	switch decision.Kind {
	case DecisionUnclassified:
		// No state change: the caller re-prompts with the current
		// checkpoint's options.
		return state, decision, nil

	case DecisionRetry:
		state.LastFeedback = feedback
		state.UpdatedAt = time.Now().UTC()
		if err := e.store.Save(state); err != nil {
			return state, decision, fmt.Errorf("could not persist feedback: %w", err)
		}
		if err := e.runPlan(ctx, state, retryPlan(decision.RetryExecutor)); err != nil {
			return state, decision, err
		}
		return state, decision, nil

	case DecisionAdvance:
		cp := state.PendingCheckpoint
		state.PendingCheckpoint = CheckpointNone
		state.LastFeedback = ""
		if cp == CheckpointDraft {
			// Draft approval finalizes the content before generation
			// continues.
			state.Stage = StageDraftApproved
			state.Artifacts[ArtifactFinalContent] = state.Artifact(ArtifactDraft)
		}
		state.UpdatedAt = time.Now().UTC()
		if err := e.store.Save(state); err != nil {
			return state, decision, fmt.Errorf("could not persist approval: %w", err)
		}
		if err := e.runPlan(ctx, state, advancePlan(cp)); err != nil {
			// Re-arm the checkpoint that triggered the plan so the
			// approval can be re-issued once the fault clears.
			state.PendingCheckpoint = cp
			if saveErr := e.store.Save(state); saveErr != nil {
				log.Printf("[%s] could not re-arm checkpoint %q after failure: %v", state.SessionID, cp, saveErr)
			}
			return state, decision, err
		}
		return state, decision, nil

	case DecisionTerminate:
		// The single call site that completes a workflow.
		state.Terminated = true
		state.PendingCheckpoint = CheckpointNone
		state.LastFeedback = ""
		state.Stage = StageCompleted
		state.UpdatedAt = time.Now().UTC()
		if err := e.store.Archive(state, "completed"); err != nil {
			return state, decision, fmt.Errorf("could not archive completed session: %w", err)
		}
		log.Printf("[%s] workflow completed for chat %d", state.SessionID, chatID)
		return state, decision, nil
	}
	return state, decision, nil
}

// Cancel archives and discards the chat's active session.
func (e *Engine) Cancel(chatID int64) error {
	lock := e.lockSession(chatID)
	defer e.unlockSession(chatID, lock)

	state, err := e.store.Load(chatID)
	if err != nil {
		return err
	}
	return e.store.Archive(state, "cancelled")
}

// Status returns the chat's current state without mutating it.
func (e *Engine) Status(chatID int64) (*State, error) {
	lock := e.lockSession(chatID)
	defer e.unlockSession(chatID, lock)
	return e.store.Load(chatID)
}

func (e *Engine) runPlan(ctx context.Context, state *State, plan []string) error {
	for _, name := range plan {
		executor, ok := e.executors[name]
		if !ok {
			return fmt.Errorf("no executor registered for %q", name)
		}
		log.Printf("[%s] running executor %s", state.SessionID, name)
		result, err := executor.Execute(ctx, state)
		if err != nil {
			// No partial artifact is written on failure, so the
			// caller may retry with identical input.
			return &ExecutorError{Executor: name, Err: err}
		}
		if err := e.controller.AdvanceOrPause(state, name, result); err != nil {
			return err
		}
		if state.PendingCheckpoint != CheckpointNone {
			log.Printf("[%s] paused at checkpoint %q", state.SessionID, state.PendingCheckpoint)
			return nil
		}
	}
	return nil
}
