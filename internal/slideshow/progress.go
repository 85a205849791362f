package slideshow

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
)

// stageTracker renders one terminal bar per validation stage. tick runs on
// pipeline worker goroutines; the bar synchronizes its own state. begin and
// end run on the job goroutine, strictly before and after the stage call,
// so the bar pointer is never written while workers read it.
type stageTracker struct {
	enabled bool
	bar     *progressbar.ProgressBar
}

func newStageTracker(enabled bool) *stageTracker {
	return &stageTracker{enabled: enabled}
}

func (t *stageTracker) begin(description string, total int) {
	if !t.enabled || total <= 0 {
		return
	}
	t.bar = newBar(total, description, progressbar.OptionShowCount())
}

func (t *stageTracker) tick(string, int, int) {
	if t.bar != nil {
		_ = t.bar.Add(1)
	}
}

func (t *stageTracker) end() {
	if t.bar != nil {
		_ = t.bar.Finish()
		t.bar = nil
	}
}

// newPercentBar returns a 0-100 bar for encode progress, or nil when bars
// are disabled.
func newPercentBar(enabled bool, description string) *progressbar.ProgressBar {
	if !enabled {
		return nil
	}
	return newBar(100, description)
}

func newBar(total int, description string, extra ...progressbar.Option) *progressbar.ProgressBar {
	opts := append([]progressbar.Option{
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stdout) }),
	}, extra...)
	return progressbar.NewOptions(total, opts...)
}
