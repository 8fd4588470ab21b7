// Package revive dispatches the operator-supplied revival command for a
// node whose failure count has crossed the tolerance threshold.
//
// Dispatch is fire-and-forget with respect to the heartbeat: the scheduler
// does not wait for the revival process to finish before the next tick.
// Once spawned, a revival subprocess is detached — it is never cancelled,
// even by Monitor.Stop.
package revive

import (
	"bytes"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nodewatch/nodewatch/internal/nwerr"
)

// Dispatcher spawns revival commands via the host shell.
type Dispatcher struct {
	logger *zap.Logger
}

// New creates a Dispatcher.
func New(logger *zap.Logger) *Dispatcher {
	return &Dispatcher{logger: logger.Named("revive")}
}

// Dispatch invokes cmdName with argsWord as a single argument, via the host
// shell. argsWord is shell-quoted so it always reaches the revival process
// as exactly one argv element, even if it contains spaces — splitting it
// into multiple arguments is explicitly not this package's job.
//
// Returns ErrReviveSpawn if the process fails to start. A spawn failure is
// logged but is still an "attempt": the caller's Revived bookkeeping must
// not be undone. There is no retry here — retrying would storm a node that
// is still down.
//
// id identifies the node for log correlation only — revival decisions never
// depend on it.
func (d *Dispatcher) Dispatch(id uuid.UUID, address, cmdName, argsWord string) error {
	cmd := buildShellCmd(cmdName, argsWord)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Start(); err != nil {
		d.logger.Error("revival command failed to spawn",
			zap.String("node_id", id.String()),
			zap.String("address", address),
			zap.String("revive_cmd", cmdName),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %s: %s", nwerr.ErrReviveSpawn, cmdName, err)
	}

	d.logger.Info("revival dispatched",
		zap.String("node_id", id.String()),
		zap.String("address", address),
		zap.String("revive_cmd", cmdName),
		zap.String("revive_args", argsWord),
	)

	// Reap the detached process in the background so it does not linger as
	// a zombie; its outcome has no bearing on any invariant, it is logged
	// for operator visibility only.
	go func() {
		err := cmd.Wait()
		if err != nil {
			d.logger.Warn("revival command exited with error",
				zap.String("node_id", id.String()),
				zap.String("address", address),
				zap.String("revive_cmd", cmdName),
				zap.Error(err),
				zap.String("output", out.String()),
			)
			return
		}
		d.logger.Debug("revival command completed",
			zap.String("node_id", id.String()),
			zap.String("address", address),
			zap.String("revive_cmd", cmdName),
			zap.String("output", out.String()),
		)
	}()

	return nil
}

// buildShellCmd constructs the exec.Cmd that runs "cmdName argsWord" through
// the host shell, single-quoting argsWord so the shell cannot word-split it.
// No environment variables are injected beyond the process's own default
// environment.
func buildShellCmd(cmdName, argsWord string) *exec.Cmd {
	line := cmdName + " " + shellQuote(argsWord)
	if runtime.GOOS == "windows" {
		return exec.Command("cmd", "/C", line)
	}
	return exec.Command("/bin/sh", "-c", line)
}

// shellQuote wraps s in single quotes, escaping any embedded single quote so
// the shell always hands the revival process exactly one argv element for
// reviveArgs, regardless of spaces or shell metacharacters inside it.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
