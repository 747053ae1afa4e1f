package shell

import (
	"context"
	"os/exec"
)

// We prefer to return stderr over the process exit code
type ExitErrorVerbose struct {
	E exec.ExitError
}

func (e ExitErrorVerbose) Error() string {
	if len(e.E.Stderr) != 0 {
		return string(e.E.Stderr)
	}
	return e.E.Error()
}

func Run(name string, args ...string) (string, error) {
	return RunCtx(context.Background(), name, args...)
}

// RunCtx runs a program and returns its stdout. The program is killed if
// the context is cancelled before it exits.
func RunCtx(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", ExitErrorVerbose{*exitErr}
		}
		return "", err
	}
	return string(out), nil
}
