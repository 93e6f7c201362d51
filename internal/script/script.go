// SPDX-FileCopyrightText: 2025 blackjack contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package script runs a step's script entries through a shell, capturing
// any variables the script exports back into the environment map seen by
// later steps. Grounded on the reference implementation's script.rs: the
// same ". <path> && export -p > <tmpfile>" mechanism, generalized from
// tokio::process::Command to os/exec, with stdout/stderr streamed
// line-by-line to a structured logger instead of dimmed terminal text.
package script

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-logr/logr"

	"blackjack.io/blackjack/internal/substitute"
	"blackjack.io/blackjack/internal/taxonomy"
)

// killGrace is how long a script is given to exit after SIGTERM before it
// is forcibly killed.
const killGrace = 5 * time.Second

// exportedPrefix is the only family of variables a script may feed back
// into the test's environment view.
const exportedPrefix = "BLACKJACK_"

// Run executes path (resolved relative to workDir) under "sh -c", streams
// its stdout/stderr to log, and returns an environment with any newly
// exported BLACKJACK_* variables merged in. A non-zero exit, or a context
// cancellation that forces a kill, is reported as a taxonomy.Script error.
func Run(ctx context.Context, log logr.Logger, workDir, path string, env substitute.Env) (substitute.Env, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}
	envFile, err := os.CreateTemp("", "blackjack-env-*")
	if err != nil {
		return env, taxonomy.Infra(fmt.Errorf("creating script env capture file: %w", err))
	}
	envFilePath := envFile.Name()
	envFile.Close()
	defer os.Remove(envFilePath)

	shellCommand := fmt.Sprintf(". %s && export -p > %s", path, envFilePath)
	cmd := exec.Command("sh", "-c", shellCommand)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(), env.Pairs()...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return env, taxonomy.Infra(fmt.Errorf("capturing script stdout: %w", err))
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return env, taxonomy.Infra(fmt.Errorf("capturing script stderr: %w", err))
	}

	if err := cmd.Start(); err != nil {
		return env, taxonomy.Script(fmt.Errorf("starting script %s: %w", path, err))
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go streamLines(&wg, log, stdout)
	go streamLines(&wg, log, stderr)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var waitErr error
	select {
	case waitErr = <-done:
	case <-ctx.Done():
		terminate(cmd, done)
		waitErr = ctx.Err()
	}
	wg.Wait()

	if waitErr != nil {
		return env, taxonomy.Script(fmt.Errorf("script %s failed: %w", path, waitErr))
	}

	merged, err := mergeExports(envFilePath, env)
	if err != nil {
		return env, taxonomy.Infra(fmt.Errorf("parsing exported variables from %s: %w", path, err))
	}
	return merged, nil
}

// terminate sends SIGTERM and escalates to SIGKILL if the process has not
// exited within killGrace.
func terminate(cmd *exec.Cmd, done <-chan error) {
	if cmd.Process == nil {
		return
	}
	_ = cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-done:
		return
	case <-time.After(killGrace):
		_ = cmd.Process.Kill()
	}
}

func streamLines(wg *sync.WaitGroup, log logr.Logger, r io.Reader) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		log.V(1).Info(scanner.Text())
	}
}

// mergeExports reads the "export -p" capture file and folds any
// BLACKJACK_-prefixed assignment into a copy of base.
func mergeExports(path string, base substitute.Env) (substitute.Env, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, err
	}

	merged := make(substitute.Env, len(base))
	for k, v := range base {
		merged[k] = v
	}

	for _, line := range strings.Split(string(data), "\n") {
		rest, ok := strings.CutPrefix(line, "export ")
		if !ok {
			continue
		}
		eq := strings.IndexByte(rest, '=')
		if eq < 0 {
			continue
		}
		name := rest[:eq]
		if !strings.HasPrefix(name, exportedPrefix) {
			continue
		}
		value := strings.Trim(rest[eq+1:], "'\"")
		merged[name] = value
	}
	return merged, nil
}
