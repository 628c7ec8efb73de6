package integration_tests

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/converge/internal/cli"
	"github.com/vk/converge/internal/testutil"
)

// cliRun executes one command invocation against a fresh CLI instance and
// returns the captured output streams.
func cliRun(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	out := &testutil.SafeBuffer{}
	errOut := &testutil.SafeBuffer{}
	c := cli.New(out, errOut, strings.NewReader(stdin))
	err := c.Execute(context.Background(), args)
	return out.String(), errOut.String(), err
}

// writeConfig lays out a configuration directory and returns it plus a state
// file path in a sibling directory.
func writeConfig(t *testing.T, src string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.hcl"), []byte(src), 0o644))
	statePath := filepath.Join(t.TempDir(), "converge.state.json")
	return dir, statePath
}

const bucketConfig = `
	resource "mem_bucket" "logs" {
		name = "logs"
	}
`

func TestCLI_ApplyPlanDestroyRoundTrip(t *testing.T) {
	dir, statePath := writeConfig(t, bucketConfig)

	out, _, err := cliRun(t, "", "apply",
		"--config-dir", dir, "--state", statePath, "--auto-approve")
	require.NoError(t, err)
	assert.Contains(t, out, "+ mem_bucket.logs (create)")
	assert.Contains(t, out, "Apply complete. Succeeded: 1")

	// The state document was written next to nothing else.
	_, statErr := os.Stat(statePath)
	require.NoError(t, statErr)

	out, _, err = cliRun(t, "", "plan", "--config-dir", dir, "--state", statePath)
	require.NoError(t, err)
	assert.Contains(t, out, "Plan: 0 to create, 0 to update, 0 to replace, 0 to destroy.")

	out, _, err = cliRun(t, "", "destroy",
		"--config-dir", dir, "--state", statePath, "--auto-approve")
	require.NoError(t, err)
	assert.Contains(t, out, "- mem_bucket.logs (destroy)")
	assert.Contains(t, out, "Apply complete. Succeeded: 1")
}

func TestCLI_ApplyPromptDeclined(t *testing.T) {
	dir, statePath := writeConfig(t, bucketConfig)

	out, _, err := cliRun(t, "no\n", "apply",
		"--config-dir", dir, "--state", statePath)
	require.NoError(t, err)
	assert.Contains(t, out, "Do you want to perform these actions?")
	assert.Contains(t, out, "Apply cancelled.")

	// Nothing was applied, so the next plan still wants to create.
	out, _, err = cliRun(t, "", "plan", "--config-dir", dir, "--state", statePath)
	require.NoError(t, err)
	assert.Contains(t, out, "Plan: 1 to create")
}

func TestCLI_ApplyPromptAccepted(t *testing.T) {
	dir, statePath := writeConfig(t, bucketConfig)

	out, _, err := cliRun(t, "yes\n", "apply",
		"--config-dir", dir, "--state", statePath)
	require.NoError(t, err)
	assert.Contains(t, out, "Apply complete. Succeeded: 1")
}

func TestCLI_Validate(t *testing.T) {
	dir, statePath := writeConfig(t, bucketConfig)
	out, _, err := cliRun(t, "", "validate", "--config-dir", dir, "--state", statePath)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid.")
}

func TestCLI_ValidateReportsCycle(t *testing.T) {
	dir, statePath := writeConfig(t, `
		resource "mem_bucket" "a" {
			name = mem_bucket.b.id
		}
		resource "mem_bucket" "b" {
			name = mem_bucket.a.id
		}
	`)
	_, _, err := cliRun(t, "", "validate", "--config-dir", dir, "--state", statePath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dependency cycle detected")
}

func TestCLI_GraphFormats(t *testing.T) {
	dir, statePath := writeConfig(t, `
		resource "mem_network" "main" {
			cidr = "10.0.0.0/16"
		}

		resource "mem_server" "web" {
			image      = "ubuntu"
			size       = "small"
			network_id = mem_network.main.id
		}
	`)

	out, _, err := cliRun(t, "", "graph", "--config-dir", dir, "--state", statePath)
	require.NoError(t, err)
	assert.Contains(t, out, "digraph converge")
	assert.Contains(t, out, `"mem_server.web"->"mem_network.main"`)

	out, _, err = cliRun(t, "", "graph", "--format", "json",
		"--config-dir", dir, "--state", statePath)
	require.NoError(t, err)
	assert.Contains(t, out, `"relation": "DEPENDS_ON"`)
}

func TestCLI_InvalidLogLevelRejected(t *testing.T) {
	dir, statePath := writeConfig(t, bucketConfig)

	_, _, err := cliRun(t, "", "plan",
		"--config-dir", dir, "--state", statePath, "--log-level", "loud")
	require.Error(t, err)

	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}
