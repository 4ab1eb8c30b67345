package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeDefinition lays down a minimal application definition.
func writeDefinition(t *testing.T, root string) {
	t.Helper()
	path := filepath.Join(root, "Entities", "Incident.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	content := "name: Incident\nproperties:\n  Status:\n    ruleId: 0549bc30f2ab4d91b9a077b8e6e75bd6\n    ruleType: PRP\n    methodName: standard\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestBuildCmd_Run(t *testing.T) {
	// Note: no t.Parallel() because the commands work in the current directory.

	t.Run("BuildDefinition", func(t *testing.T) {
		root := t.TempDir()
		writeDefinition(t, root)

		cmd := &BuildCmd{Path: root}
		require.NoError(t, cmd.Run())

		_, err := os.Stat(filepath.Join(root, ".appgraph", "badger"))
		assert.NoError(t, err)
	})

	t.Run("NoCacheSkipsWriting", func(t *testing.T) {
		root := t.TempDir()
		writeDefinition(t, root)

		cmd := &BuildCmd{Path: root, NoCache: true}
		require.NoError(t, cmd.Run())

		_, err := os.Stat(filepath.Join(root, ".appgraph"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("InvalidPath", func(t *testing.T) {
		cmd := &BuildCmd{Path: "/nonexistent/path"}
		assert.Error(t, cmd.Run())
	})

	t.Run("NotADirectory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file.txt")
		require.NoError(t, os.WriteFile(file, []byte("test"), 0o644))

		cmd := &BuildCmd{Path: file}
		assert.Error(t, cmd.Run())
	})
}

func TestSearchCmd_Run(t *testing.T) {
	t.Run("SearchWithNoCache", func(t *testing.T) {
		t.Chdir(t.TempDir())

		cmd := &SearchCmd{Pattern: "incident"}
		assert.Error(t, cmd.Run())
	})

	t.Run("SearchBuiltGraph", func(t *testing.T) {
		root := t.TempDir()
		writeDefinition(t, root)
		require.NoError(t, (&BuildCmd{Path: root}).Run())
		t.Chdir(root)

		cmd := &SearchCmd{Pattern: "incident"}
		assert.NoError(t, cmd.Run())
	})

	t.Run("InvalidPattern", func(t *testing.T) {
		root := t.TempDir()
		writeDefinition(t, root)
		require.NoError(t, (&BuildCmd{Path: root}).Run())
		t.Chdir(root)

		cmd := &SearchCmd{Pattern: "[unclosed"}
		assert.Error(t, cmd.Run())
	})
}

func TestMissingCmd_Run(t *testing.T) {
	t.Run("MissingWithNoCache", func(t *testing.T) {
		t.Chdir(t.TempDir())
		assert.Error(t, (&MissingCmd{}).Run())
	})

	t.Run("MissingOnBuiltGraph", func(t *testing.T) {
		root := t.TempDir()
		writeDefinition(t, root)
		require.NoError(t, (&BuildCmd{Path: root}).Run())
		t.Chdir(root)

		assert.NoError(t, (&MissingCmd{}).Run())
	})
}

func TestOrphansCmd_Run(t *testing.T) {
	t.Run("OrphansWithNoCache", func(t *testing.T) {
		t.Chdir(t.TempDir())
		assert.Error(t, (&OrphansCmd{}).Run())
	})

	t.Run("OrphansOnBuiltGraph", func(t *testing.T) {
		root := t.TempDir()
		writeDefinition(t, root)
		require.NoError(t, (&BuildCmd{Path: root}).Run())
		t.Chdir(root)

		assert.NoError(t, (&OrphansCmd{}).Run())
	})
}

func TestStatusCmd_Run(t *testing.T) {
	t.Run("StatusWithNoCache", func(t *testing.T) {
		t.Chdir(t.TempDir())
		assert.Error(t, (&StatusCmd{}).Run())
	})

	t.Run("StatusAfterBuild", func(t *testing.T) {
		root := t.TempDir()
		writeDefinition(t, root)
		require.NoError(t, (&BuildCmd{Path: root}).Run())
		t.Chdir(root)

		assert.NoError(t, (&StatusCmd{}).Run())
	})
}

func TestCleanCmd_Run(t *testing.T) {
	t.Run("CleanWithNoCache", func(t *testing.T) {
		t.Chdir(t.TempDir())

		cmd := &CleanCmd{Force: true}
		assert.Error(t, cmd.Run())
	})

	t.Run("CleanRemovesCache", func(t *testing.T) {
		root := t.TempDir()
		writeDefinition(t, root)
		require.NoError(t, (&BuildCmd{Path: root}).Run())
		t.Chdir(root)

		cmd := &CleanCmd{Force: true}
		require.NoError(t, cmd.Run())

		_, err := os.Stat(filepath.Join(root, ".appgraph"))
		assert.True(t, os.IsNotExist(err))
	})
}
