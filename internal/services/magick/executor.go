package magick

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

type commandExecutor struct{}

// Run executes a short-lived magick invocation and forwards its combined
// output line by line once the process exits. Magick runs finish in well
// under a second per image, so there is nothing to stream.
func (commandExecutor) Run(ctx context.Context, binary string, args []string, onLine func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if onLine != nil {
		for _, line := range strings.Split(string(output), "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			onLine(strings.TrimRight(line, "\r"))
		}
	}
	if err != nil {
		return fmt.Errorf("run %s: %w", binary, err)
	}
	return nil
}
