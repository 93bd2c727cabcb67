package workflow

import (
	"fmt"
	"time"
)

// SessionStore persists workflow state. Implementations must serialize
// reads and writes for a single chat key.
type SessionStore interface {
	Load(chatID int64) (*State, error)
	Save(state *State) error
	Archive(state *State, reason string) error
}

// stepSpec describes what completing an executor means for the state:
// which artifact it produced, which stage the workflow is now in, and
// which checkpoint (if any) gates the next step.
type stepSpec struct {
	artifact   string
	stage      Stage
	checkpoint Checkpoint
}

func stepSpecs() map[string]stepSpec {
	return map[string]stepSpec{
		ExecutorFramework: {ArtifactFramework, StageDraftPending, CheckpointNone},
		ExecutorDraft:     {ArtifactDraft, StageDraftPending, CheckpointDraft},
		ExecutorRevision:  {ArtifactDraft, StageDraftPending, CheckpointDraft},
		ExecutorImages:    {ArtifactImages, StageImagesGenerated, CheckpointNone},
		ExecutorWebpage:   {ArtifactWebpage, StageImagesGenerated, CheckpointNone},
		ExecutorDeploy:    {ArtifactDeploymentURL, StageWebpageDeployed, CheckpointDeployment},
	}
}

// Controller decides, after an executor completes, whether the
// workflow pauses for human review or advances automatically. It is
// the only writer of artifacts and persists every transition before
// returning. No network calls happen here.
type Controller struct {
	store   SessionStore
	intents Intents
	specs   map[string]stepSpec
}

func NewController(store SessionStore, intents Intents) *Controller {
	return &Controller{store: store, intents: intents, specs: stepSpecs()}
}

func (c *Controller) AdvanceOrPause(state *State, executor string, result string) error {
	spec, ok := c.specs[executor]
	if !ok {
		return fmt.Errorf("unknown executor %q", executor)
	}
	state.Artifacts[spec.artifact] = result
	state.Stage = spec.stage
	if spec.checkpoint != CheckpointNone && c.intents.ReviewGated(spec.checkpoint) {
		// Suspend for review. Any feedback that answered an earlier
		// checkpoint is cleared here so it can never be read as an
		// answer to this one.
		state.PendingCheckpoint = spec.checkpoint
		state.LastFeedback = ""
	} else {
		state.PendingCheckpoint = CheckpointNone
	}
	state.UpdatedAt = time.Now().UTC()
	if err := c.store.Save(state); err != nil {
		return fmt.Errorf("could not persist state after %s: %w", executor, err)
	}
	return nil
}
