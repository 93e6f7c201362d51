// SPDX-FileCopyrightText: 2025 blackjack contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package logging bootstraps the logr.Logger every other package receives
// explicitly, fronting go.uber.org/zap through
// sigs.k8s.io/controller-runtime/pkg/log/zap exactly as the teacher's
// cmd/main.go does for its manager, generalized from a single
// Development-mode toggle to an explicit level (so BLACKJACK_LOG_LEVEL and
// --log-level can select "debug"/"info"/"warn"/"error" rather than only
// flipping a boolean).
package logging

import (
	"fmt"

	"github.com/go-logr/logr"
	"go.uber.org/zap/zapcore"
	crzap "sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// New builds a logr.Logger at the given level name ("debug", "info",
// "warn", "error"); an unrecognized name falls back to "info".
func New(level string) logr.Logger {
	opts := crzap.Options{
		Development: level == "debug",
		Level:       parseLevel(level),
	}
	return crzap.New(crzap.UseFlagOptions(&opts))
}

func parseLevel(level string) zapcore.LevelEnabler {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ErrUnknownLevel is returned by Validate for a level name outside the
// recognized set, letting the CLI reject a typo before doing any work.
type ErrUnknownLevel struct{ Level string }

func (e *ErrUnknownLevel) Error() string {
	return fmt.Sprintf("unknown log level %q (want debug, info, warn, or error)", e.Level)
}

// Validate checks level against the recognized set.
func Validate(level string) error {
	switch level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return &ErrUnknownLevel{Level: level}
	}
}
