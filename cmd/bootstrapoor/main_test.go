package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runRootCmd(t *testing.T, args ...string) (*logrus.Logger, *test.Hook, error) {
	t.Helper()

	log, hook := test.NewNullLogger()

	root := newRootCmd(log)
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)

	return log, hook, root.Execute()
}

func writeEnvFile(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("BOOTSTRAPOOR_MAIN_TEST=1\n"), 0o600))

	t.Cleanup(func() { _ = os.Unsetenv("BOOTSTRAPOOR_MAIN_TEST") })

	return path
}

func TestLogLevelFlagEnablesDebugOutput(t *testing.T) {
	log, hook, err := runRootCmd(t, "--log-level", "debug", "--env-file", writeEnvFile(t), "config", "app.port")
	require.NoError(t, err)

	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	var loaded bool

	for _, e := range hook.AllEntries() {
		if e.Message == "Loaded env files" {
			loaded = true
		}
	}

	assert.True(t, loaded)
}

func TestLogLevelDefaultsToInfo(t *testing.T) {
	log, hook, err := runRootCmd(t, "--env-file", writeEnvFile(t), "config", "app.port")
	require.NoError(t, err)

	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	assert.Empty(t, hook.AllEntries())
}

func TestLogLevelFlagRejectsUnknownLevel(t *testing.T) {
	_, _, err := runRootCmd(t, "--log-level", "chatty", "config")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chatty")
}
