package workflow

import (
	"encoding/json"
	"fmt"
	"time"
)

// Stage is the workflow's current position in the pipeline.
type Stage string

const (
	StageDraftPending    Stage = "draft_pending"
	StageDraftApproved   Stage = "draft_approved"
	StageImagesGenerated Stage = "images_generated"
	StageWebpageDeployed Stage = "webpage_deployed"
	StageCompleted       Stage = "completed"
)

// Checkpoint identifies a review gate awaiting human input.
// An empty Checkpoint means no review is outstanding.
type Checkpoint string

const (
	CheckpointNone       Checkpoint = ""
	CheckpointDraft      Checkpoint = "draft"
	CheckpointDeployment Checkpoint = "deployment"
)

// Artifact keys. Artifacts are append-only executor outputs and are
// never read as approval signals.
const (
	ArtifactFramework     = "framework"
	ArtifactDraft         = "draft"
	ArtifactFinalContent  = "final_content"
	ArtifactImages        = "images"
	ArtifactWebpage       = "webpage"
	ArtifactDeploymentURL = "deployment_url"
)

// State holds everything the workflow knows about one session. It is
// mutated only by the Controller and the routing code in Engine, and
// persisted after every mutation.
type State struct {
	SessionID         string            `json:"session_id"`
	ChatID            int64             `json:"chat_id"`
	Theme             string            `json:"theme"`
	Stage             Stage             `json:"stage"`
	PendingCheckpoint Checkpoint        `json:"pending_checkpoint"`
	LastFeedback      string            `json:"last_feedback"`
	Terminated        bool              `json:"terminated"`
	Artifacts         map[string]string `json:"artifacts"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

func NewState(sessionID string, chatID int64, theme string) *State {
	now := time.Now().UTC()
	return &State{
		SessionID: sessionID,
		ChatID:    chatID,
		Theme:     theme,
		Stage:     StageDraftPending,
		Artifacts: make(map[string]string),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsComplete is the single authoritative completion check. Completion
// is decided by the explicit Terminated flag and nothing else: not by
// the presence of a deployment URL, not by old feedback text.
func (s *State) IsComplete() bool {
	return s.Terminated
}

func (s *State) Artifact(key string) string {
	if s.Artifacts == nil {
		return ""
	}
	return s.Artifacts[key]
}

func (s *State) Encode() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("could not encode workflow state: %w", err)
	}
	return string(data), nil
}

func DecodeState(data string) (*State, error) {
	var s State
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("could not decode workflow state: %w", err)
	}
	if s.Artifacts == nil {
		s.Artifacts = make(map[string]string)
	}
	return &s, nil
}
