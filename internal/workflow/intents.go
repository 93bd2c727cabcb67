package workflow

import (
	"encoding/json"
	"fmt"
	"os"
)

// IntentTable is the declarative keyword table for one checkpoint.
// Each checkpoint owns its own table; approval tokens are never shared
// between checkpoints, so a token meant for one review can never be
// read as approval of another.
type IntentTable struct {
	// ApprovePhrases are matched before Negations so that phrases like
	// "没问题" are not rejected by their own "没".
	ApprovePhrases []string `json:"approve_phrases"`
	// ApproveKeywords approve only when no negation word is present.
	ApproveKeywords []string `json:"approve_keywords"`
	// Negations turn an approval keyword into a revision request.
	Negations []string `json:"negations"`
	// RetryKeywords route to a specific executor instead of the
	// checkpoint's default revision executor.
	RetryKeywords map[string]string `json:"retry_keywords"`
	// RevisionExecutor is re-run for feedback that is neither an
	// approval nor a targeted retry.
	RevisionExecutor string `json:"revision_executor"`
}

// Intents maps each review-gated checkpoint to its table and names the
// final checkpoint whose approval terminates the workflow.
type Intents struct {
	Tables          map[Checkpoint]IntentTable `json:"tables"`
	FinalCheckpoint Checkpoint                 `json:"final_checkpoint"`
}

// DefaultIntents mirrors the keyword sets the bot shipped with. The
// draft and deployment tables are disjoint on purpose.
func DefaultIntents() Intents {
	return Intents{
		FinalCheckpoint: CheckpointDeployment,
		Tables: map[Checkpoint]IntentTable{
			CheckpointDraft: {
				ApproveKeywords:  []string{"同意", "approve", "定稿"},
				Negations:        []string{"不", "别", "无", "非"},
				RevisionExecutor: ExecutorRevision,
			},
			CheckpointDeployment: {
				ApprovePhrases:  []string{"没问题", "没意见", "没啥问题", "没什么问题"},
				ApproveKeywords: []string{"满意", "确认", "可以", "很好", "ok", "好的", "perfect", "satisfied"},
				Negations:       []string{"不", "别", "无", "非"},
				RetryKeywords: map[string]string{
					"图片":      ExecutorImages,
					"图":       ExecutorImages,
					"照片":      ExecutorImages,
					"配图":      ExecutorImages,
					"picture": ExecutorImages,
					"image":   ExecutorImages,
				},
				RevisionExecutor: ExecutorWebpage,
			},
		},
	}
}

// LoadIntentsFromFile reads a JSON intent configuration, falling back
// to nothing: the caller decides whether a missing file is fatal.
func LoadIntentsFromFile(path string) (Intents, error) {
	var intents Intents
	data, err := os.ReadFile(path)
	if err != nil {
		return intents, fmt.Errorf("could not read intents file: %w", err)
	}
	if err := json.Unmarshal(data, &intents); err != nil {
		return intents, fmt.Errorf("could not parse intents file %s: %w", path, err)
	}
	if err := intents.Validate(); err != nil {
		return intents, err
	}
	return intents, nil
}

// Validate rejects configurations that reintroduce the shared-table
// hazard: every approval token must belong to exactly one checkpoint.
func (in Intents) Validate() error {
	if _, ok := in.Tables[in.FinalCheckpoint]; !ok {
		return fmt.Errorf("final checkpoint %q has no intent table", in.FinalCheckpoint)
	}
	seen := make(map[string]Checkpoint)
	for cp, table := range in.Tables {
		for _, kw := range append(append([]string{}, table.ApproveKeywords...), table.ApprovePhrases...) {
			if other, dup := seen[kw]; dup && other != cp {
				return fmt.Errorf("approval token %q appears in both %q and %q tables", kw, other, cp)
			}
			seen[kw] = cp
		}
	}
	return nil
}

// ReviewGated reports whether feedback is required after the given
// checkpoint's producing stage.
func (in Intents) ReviewGated(cp Checkpoint) bool {
	_, ok := in.Tables[cp]
	return ok
}
