package platform

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

const commandTimeout = 5 * time.Second

var errNoOutput = errors.New("platform: command produced no output")

// runCommand executes an enumeration tool and returns its stdout. Callers
// treat any error as "no data"; stderr is discarded because several of the
// tools (lsof in particular) write noise there even on success.
func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	if _, err := exec.LookPath(name); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		// lsof exits 1 when nothing matches; partial output is still
		// usable, so only fail on a genuinely empty result.
		if stdout.Len() == 0 {
			return "", err
		}
	}
	if stdout.Len() == 0 {
		return "", errNoOutput
	}
	return stdout.String(), nil
}
