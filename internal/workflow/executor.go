package workflow

import (
	"context"
	"fmt"
)

// Executor names. Each one maps to a unit of work performed by an
// external collaborator (text generation, image generation, deploy).
const (
	ExecutorFramework = "load_framework"
	ExecutorDraft     = "generate_draft"
	ExecutorRevision  = "revise_draft"
	ExecutorImages    = "generate_images"
	ExecutorWebpage   = "generate_webpage"
	ExecutorDeploy    = "deploy_webpage"
)

// Executor performs one unit of work. Implementations read from the
// state but never mutate it; the Controller records the result.
type Executor interface {
	Execute(ctx context.Context, state *State) (string, error)
}

// ExecutorError reports a failed stage by name. The session state is
// left untouched when an executor fails, so a retry is safe.
type ExecutorError struct {
	Executor string
	Err      error
}

func (e *ExecutorError) Error() string {
	return fmt.Sprintf("executor %s failed: %v", e.Executor, e.Err)
}

func (e *ExecutorError) Unwrap() error {
	return e.Err
}
