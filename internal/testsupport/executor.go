package testsupport

import (
	"context"
	"sync"
)

// ScriptedExecutor satisfies the executor seam in the external tool clients
// without launching a process. Each Run records the invocation, replays
// Lines through the line callback, and returns Err. OnRun, when set, runs
// first; a non-nil result short-circuits the scripted output, so a hook can
// emulate tool side effects such as writing an output file.
type ScriptedExecutor struct {
	Lines []string
	Err   error
	OnRun func(binary string, args []string) error

	mu    sync.Mutex
	calls [][]string
}

// Run implements the ffmpeg and magick Executor interfaces.
func (s *ScriptedExecutor) Run(ctx context.Context, binary string, args []string, onLine func(string)) error {
	s.mu.Lock()
	s.calls = append(s.calls, append([]string(nil), args...))
	s.mu.Unlock()

	if s.OnRun != nil {
		if err := s.OnRun(binary, args); err != nil {
			return err
		}
	}
	if onLine != nil {
		for _, line := range s.Lines {
			onLine(line)
		}
	}
	return s.Err
}

// Calls returns a copy of every recorded argument list, in call order.
func (s *ScriptedExecutor) Calls() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	calls := make([][]string, len(s.calls))
	copy(calls, s.calls)
	return calls
}
