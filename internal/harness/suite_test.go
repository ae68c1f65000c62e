package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverScenarios(t *testing.T) {
	paths, err := DiscoverScenarios(scenariosDir, "")
	require.NoError(t, err)
	assert.Len(t, paths, 6)
	assert.Equal(t, filepath.Join(scenariosDir, "count_clicks.yaml"), paths[0])

	paths, err = DiscoverScenarios(scenariosDir, "*mouse*")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(scenariosDir, "follow_mouse.yaml"),
		filepath.Join(scenariosDir, "show_mouse_down.yaml"),
	}, paths)

	_, err = DiscoverScenarios(scenariosDir, "[")
	assert.ErrorContains(t, err, "invalid filter pattern")
}

func TestRunSuite_Parallel(t *testing.T) {
	paths, err := DiscoverScenarios(scenariosDir, "")
	require.NoError(t, err)

	suite, err := RunSuite(context.Background(), paths, 4)
	require.NoError(t, err)
	assert.Equal(t, len(paths), suite.Passed)
	assert.Zero(t, suite.Failed)
	for i, sr := range suite.Scenarios {
		assert.Equal(t, paths[i], sr.Path)
		assert.True(t, sr.Pass(), "%s: %s %v", sr.Path, sr.Err, sr.Result)
	}
}

func TestRunSuite_RecordsLoadFailure(t *testing.T) {
	bad := writeScenario(t, "name: x\n")
	good := filepath.Join(scenariosDir, "doubler.yaml")

	suite, err := RunSuite(context.Background(), []string{bad, good}, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, suite.Passed)
	assert.Equal(t, 1, suite.Failed)
	assert.Contains(t, suite.Scenarios[0].Err, "invalid scenario")
	assert.Equal(t, "doubler", suite.Scenarios[1].Name)
}

func TestRunSuite_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunSuite(ctx, []string{filepath.Join(scenariosDir, "doubler.yaml")}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
