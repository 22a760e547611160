// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transcode

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/anieflix/internal/log"
	"github.com/ManuGH/anieflix/internal/procgroup"
)

// ExitResult is what an encoder run leaves behind.
type ExitResult struct {
	Code   int
	Stdout string // tail of stdout
	Stderr string // tail of stderr
}

// Encoder runs the external encoder with the given arguments.
//
// Run returns a nil error when the process ran to completion, whatever its exit
// code. A non-nil error means the process could not be started or was stopped
// because ctx ended; in the latter case the whole process tree is gone when Run
// returns.
type Encoder interface {
	Run(ctx context.Context, args []string) (ExitResult, error)
}

// FFmpegEncoder runs a real binary in its own process group.
type FFmpegEncoder struct {
	Bin         string
	KillGrace   time.Duration // SIGTERM to SIGKILL escalation delay
	OutputLines int           // lines of stdout/stderr kept for diagnostics
}

const (
	defaultKillGrace   = 5 * time.Second
	defaultOutputLines = 100
)

func (e *FFmpegEncoder) Run(ctx context.Context, args []string) (ExitResult, error) {
	bin := e.Bin
	if bin == "" {
		bin = "ffmpeg"
	}
	grace := e.KillGrace
	if grace <= 0 {
		grace = defaultKillGrace
	}
	lines := e.OutputLines
	if lines <= 0 {
		lines = defaultOutputLines
	}

	// exec.CommandContext would only kill the leader; cancellation is handled
	// below against the whole group.
	cmd := exec.Command(bin, args...) // #nosec G204 -- binary comes from operator config
	procgroup.Set(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return ExitResult{Code: -1}, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return ExitResult{Code: -1}, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return ExitResult{Code: -1}, fmt.Errorf("start %s: %w", bin, err)
	}

	logger := log.WithComponent("transcode")
	logger.Debug().Int(log.FieldPID, cmd.Process.Pid).Str("bin", bin).Msg("encoder started")

	outRing, errRing := NewRingBuffer(lines), NewRingBuffer(lines)
	var readers sync.WaitGroup
	readers.Add(2)
	go func() { defer readers.Done(); outRing.consume(stdout) }()
	go func() { defer readers.Done(); errRing.consume(stderr) }()

	// Wait must not be called before the pipes are drained.
	waitCh := make(chan error, 1)
	go func() {
		readers.Wait()
		waitCh <- cmd.Wait()
	}()

	result := func() ExitResult {
		code := -1
		if cmd.ProcessState != nil {
			code = cmd.ProcessState.ExitCode()
		}
		return ExitResult{
			Code:   code,
			Stdout: strings.Join(outRing.Lines(), "\n"),
			Stderr: strings.Join(errRing.Lines(), "\n"),
		}
	}

	select {
	case <-waitCh:
		return result(), nil
	case <-ctx.Done():
		logger.Warn().Int(log.FieldPID, cmd.Process.Pid).Err(ctx.Err()).Msg("stopping encoder process group")
		_ = procgroup.Terminate(cmd, waitCh, grace)
		return result(), ctx.Err()
	}
}
