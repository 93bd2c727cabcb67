// Package lesson binds the external collaborators (Gemini, the image
// store, the deployer) to the workflow's uniform executor interface.
package lesson

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"course-bot/internal/ai"
	"course-bot/internal/curriculum"
	"course-bot/internal/deploy"
	"course-bot/internal/workflow"
)

// FrameworkExecutor loads the curriculum framework from disk.
type FrameworkExecutor struct {
	Path string
}

func (e *FrameworkExecutor) Execute(_ context.Context, _ *workflow.State) (string, error) {
	return curriculum.LoadFramework(e.Path)
}

// DraftExecutor generates the first lesson draft from the framework
// and the session theme.
type DraftExecutor struct {
	Generator *ai.Generator
}

func (e *DraftExecutor) Execute(ctx context.Context, state *workflow.State) (string, error) {
	framework := state.Artifact(workflow.ArtifactFramework)
	if framework == "" {
		return "", fmt.Errorf("framework has not been loaded")
	}
	return e.Generator.GenerateDraft(ctx, framework, state.Theme)
}

// RevisionExecutor rewrites the current draft according to the
// feedback recorded for the draft checkpoint.
type RevisionExecutor struct {
	Generator *ai.Generator
}

func (e *RevisionExecutor) Execute(ctx context.Context, state *workflow.State) (string, error) {
	return e.Generator.ReviseDraft(ctx, state.Artifact(workflow.ArtifactDraft), state.LastFeedback)
}

// ImagesExecutor analyzes the finalized content for illustration
// needs, renders each one and stores the files under the session's
// image directory. The result artifact is a JSON list of file paths.
type ImagesExecutor struct {
	Generator *ai.Generator
	Dir       string
	MaxImages int
}

func (e *ImagesExecutor) Execute(ctx context.Context, state *workflow.State) (string, error) {
	content := state.Artifact(workflow.ArtifactFinalContent)
	if content == "" {
		return "", fmt.Errorf("no finalized content to illustrate")
	}
	prompts, err := e.Generator.AnalyzeImageNeeds(ctx, content, e.MaxImages)
	if err != nil {
		return "", err
	}
	// On regeneration the user's request steers every prompt.
	if state.LastFeedback != "" && state.Artifact(workflow.ArtifactImages) != "" {
		for i, prompt := range prompts {
			prompts[i] = fmt.Sprintf("%s. Revision request from the reviewer: %s", prompt, state.LastFeedback)
		}
	}

	sessionDir := filepath.Join(e.Dir, state.SessionID)
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		return "", fmt.Errorf("could not create image directory: %w", err)
	}
	var paths []string
	for i, prompt := range prompts {
		data, err := e.Generator.GenerateImage(ctx, prompt)
		if err != nil {
			return "", fmt.Errorf("image %d: %w", i+1, err)
		}
		path := filepath.Join(sessionDir, fmt.Sprintf("illustration_%02d.png", i+1))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return "", fmt.Errorf("could not save image %d: %w", i+1, err)
		}
		paths = append(paths, path)
	}
	encoded, err := json.Marshal(paths)
	if err != nil {
		return "", fmt.Errorf("could not encode image list: %w", err)
	}
	return string(encoded), nil
}

// WebpageExecutor renders the lesson page, folding in the current page
// and the reviewer's feedback when this is a revision pass.
type WebpageExecutor struct {
	Generator *ai.Generator
}

func (e *WebpageExecutor) Execute(ctx context.Context, state *workflow.State) (string, error) {
	var images []string
	if encoded := state.Artifact(workflow.ArtifactImages); encoded != "" {
		if err := json.Unmarshal([]byte(encoded), &images); err != nil {
			return "", fmt.Errorf("could not decode image list: %w", err)
		}
	}
	return e.Generator.GenerateWebpage(ctx,
		state.Artifact(workflow.ArtifactFinalContent),
		state.Artifact(workflow.ArtifactWebpage),
		state.LastFeedback,
		images,
	)
}

// DeployExecutor publishes the generated page.
type DeployExecutor struct {
	Deployer *deploy.Deployer
}

func (e *DeployExecutor) Execute(_ context.Context, state *workflow.State) (string, error) {
	return e.Deployer.Deploy(state.Artifact(workflow.ArtifactWebpage))
}

// Executors wires the full executor set for the engine.
func Executors(gen *ai.Generator, deployer *deploy.Deployer, frameworkPath, imagesDir string, maxImages int) map[string]workflow.Executor {
	return map[string]workflow.Executor{
		workflow.ExecutorFramework: &FrameworkExecutor{Path: frameworkPath},
		workflow.ExecutorDraft:     &DraftExecutor{Generator: gen},
		workflow.ExecutorRevision:  &RevisionExecutor{Generator: gen},
		workflow.ExecutorImages:    &ImagesExecutor{Generator: gen, Dir: imagesDir, MaxImages: maxImages},
		workflow.ExecutorWebpage:   &WebpageExecutor{Generator: gen},
		workflow.ExecutorDeploy:    &DeployExecutor{Deployer: deployer},
	}
}
