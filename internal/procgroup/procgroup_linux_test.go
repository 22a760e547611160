// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build linux

package procgroup

import (
	"errors"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/anieflix/internal/metrics"
)

func startGroup(t *testing.T, script string) (*exec.Cmd, <-chan error) {
	t.Helper()
	cmd := exec.Command("sh", "-c", script)
	Set(cmd)
	require.NoError(t, cmd.Start())

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	require.NoError(t, err)
	require.Equal(t, cmd.Process.Pid, pgid, "child should lead its own group")
	return cmd, waitCh
}

func groupGone(pgid int) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if err := syscall.Kill(-pgid, syscall.Signal(0)); errors.Is(err, syscall.ESRCH) {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return false
}

func TestKill_ReachesGrandchildren(t *testing.T) {
	cmd, waitCh := startGroup(t, "sleep 100 & sleep 100")
	pgid := cmd.Process.Pid
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, Kill(cmd, syscall.SIGKILL))

	err := <-waitCh
	var exitErr *exec.ExitError
	require.True(t, errors.As(err, &exitErr))
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	require.True(t, ok)
	assert.Equal(t, syscall.SIGKILL, status.Signal())

	if !groupGone(pgid) {
		_ = syscall.Kill(-pgid, syscall.SIGKILL)
		t.Fatalf("process group %d survived", pgid)
	}
}

func TestTerminate_GracefulExit(t *testing.T) {
	metrics.ProcWaitTotal.Reset()
	cmd, waitCh := startGroup(t, "sleep 100")

	err := Terminate(cmd, waitCh, 2*time.Second)
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ProcWaitTotal.WithLabelValues("exit_nonzero")))
}

func TestTerminate_EscalatesToSIGKILL(t *testing.T) {
	metrics.ProcTerminateTotal.Reset()
	// The shell ignores SIGTERM, and so does the background child it forks.
	cmd, waitCh := startGroup(t, `trap "" TERM; sleep 100 & wait`)
	pgid := cmd.Process.Pid
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	err := Terminate(cmd, waitCh, 200*time.Millisecond)
	require.Error(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ProcTerminateTotal.WithLabelValues("SIGKILL", "sent")))
	assert.True(t, groupGone(pgid), "process group should be dead")
}

func TestKill_AlreadyExited(t *testing.T) {
	cmd, waitCh := startGroup(t, "exit 0")
	require.NoError(t, <-waitCh)

	assert.NoError(t, Kill(cmd, syscall.SIGTERM))
	assert.NoError(t, Kill(nil, syscall.SIGTERM))
	assert.NoError(t, Terminate(nil, nil, time.Millisecond))
}
