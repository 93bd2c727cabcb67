package lesson

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"course-bot/internal/deploy"
	"course-bot/internal/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameworkExecutor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "framework.md")
	require.NoError(t, os.WriteFile(path, []byte("# 框架"), 0o644))

	exec := &FrameworkExecutor{Path: path}
	result, err := exec.Execute(context.Background(), workflow.NewState("s1", 42, "主题"))
	require.NoError(t, err)
	assert.Equal(t, "# 框架", result)
}

func TestDraftExecutorRequiresFramework(t *testing.T) {
	exec := &DraftExecutor{}
	_, err := exec.Execute(context.Background(), workflow.NewState("s1", 42, "主题"))
	assert.Error(t, err)
}

func TestDeployExecutorPublishesWebpageArtifact(t *testing.T) {
	deployer, err := deploy.NewDeployer(t.TempDir())
	require.NoError(t, err)

	state := workflow.NewState("s1", 42, "主题")
	state.Artifacts[workflow.ArtifactWebpage] = "<html><body><h1>Lesson</h1></body></html>"

	exec := &DeployExecutor{Deployer: deployer}
	url, err := exec.Execute(context.Background(), state)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "file://"), url)
}

func TestWebpageExecutorRejectsBadImageList(t *testing.T) {
	state := workflow.NewState("s1", 42, "主题")
	state.Artifacts[workflow.ArtifactFinalContent] = "content"
	state.Artifacts[workflow.ArtifactImages] = "not json"

	exec := &WebpageExecutor{}
	_, err := exec.Execute(context.Background(), state)
	assert.Error(t, err)
}
