package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cuemby/hoist/pkg/deploy"
	"github.com/stretchr/testify/assert"
)

func TestExecuteNoCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := execute([]string{"-os", "lin"}, strings.NewReader(""), &stdout, &stderr)

	assert.Equal(t, deploy.ExitOK, code)
	assert.Contains(t, stdout.String(), "No top-level command detected. Exiting...")
}

func TestExecuteInvalidArguments(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := execute([]string{"-corev", "latest"}, strings.NewReader(""), &stdout, &stderr)

	assert.Equal(t, deploy.ExitFailure, code)
	assert.Contains(t, stdout.String(), `Error: invalid -corev "latest"`)
	assert.NotContains(t, stderr.String(), "Error: invalid")
}

func TestExecuteRebuildWithoutInstall(t *testing.T) {
	var stdout, stderr bytes.Buffer
	dir := filepath.Join(t.TempDir(), "data")
	code := execute([]string{"-update", "true", "-datadir", dir}, strings.NewReader(""), &stdout, &stderr)

	assert.Equal(t, deploy.ExitFailure, code)
	assert.Contains(t, stdout.String(), "run install first")
}

func TestExecuteInstallWithoutAnswers(t *testing.T) {
	var stdout, stderr bytes.Buffer
	dir := filepath.Join(t.TempDir(), "data")
	code := execute([]string{"-install", "true", "-domain", "example.com", "-datadir", dir},
		strings.NewReader(""), &stdout, &stderr)

	assert.Equal(t, deploy.ExitFailure, code)
	assert.Contains(t, stdout.String(), "Enter your installation id")
}
