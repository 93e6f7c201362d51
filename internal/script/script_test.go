// SPDX-FileCopyrightText: 2025 blackjack contributors
//
// SPDX-License-Identifier: Apache-2.0

package script

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackjack.io/blackjack/internal/substitute"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

func TestRunExportsBlackjackVariables(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "set.sh", "export BLACKJACK_TOKEN=abc123\n")

	env, err := Run(context.Background(), logr.Discard(), dir, "set.sh", substitute.Env{})
	require.NoError(t, err)
	assert.Equal(t, "abc123", env["BLACKJACK_TOKEN"])
}

func TestRunIgnoresNonBlackjackExports(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "set.sh", "export OTHER_VAR=nope\nexport BLACKJACK_KEEP=yes\n")

	env, err := Run(context.Background(), logr.Discard(), dir, "set.sh", substitute.Env{})
	require.NoError(t, err)
	_, hasOther := env["OTHER_VAR"]
	assert.False(t, hasOther)
	assert.Equal(t, "yes", env["BLACKJACK_KEEP"])
}

func TestRunReturnsErrorOnNonZeroExit(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "fail.sh", "exit 7\n")

	_, err := Run(context.Background(), logr.Discard(), dir, "fail.sh", substitute.Env{})
	assert.Error(t, err)
}

func TestRunSeesExistingEnv(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "echo.sh", `
if [ "$BLACKJACK_NAMESPACE" = "test-ns" ]; then
  export BLACKJACK_SAW_NAMESPACE=yes
fi
`)

	env, err := Run(context.Background(), logr.Discard(), dir, "echo.sh", substitute.Env{"BLACKJACK_NAMESPACE": "test-ns"})
	require.NoError(t, err)
	assert.Equal(t, "yes", env["BLACKJACK_SAW_NAMESPACE"])
}
