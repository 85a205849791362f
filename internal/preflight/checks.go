package preflight

import (
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/disk"
	"golang.org/x/sys/unix"

	"comicreel/internal/config"
	"comicreel/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// FreeSpace reports the available bytes on the filesystem holding path.
func FreeSpace(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, fmt.Errorf("disk usage for %s: %w", path, err)
	}
	return usage.Free, nil
}

// CheckDiskSpace verifies the filesystem holding path has at least minGB
// gibibytes available. A non-positive minGB passes without probing.
func CheckDiskSpace(name, path string, minGB int) Result {
	if minGB <= 0 {
		return Result{Name: name, Passed: true, Detail: "not enforced"}
	}
	free, err := FreeSpace(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	required := uint64(minGB) << 30
	if free < required {
		return Result{
			Name:   name,
			Detail: fmt.Sprintf("%s (%.1f GiB free, %d GiB required)", path, float64(free)/float64(1<<30), minGB),
		}
	}
	return Result{
		Name:   name,
		Passed: true,
		Detail: fmt.Sprintf("%s (%.1f GiB free)", path, float64(free)/float64(1<<30)),
	}
}

// CheckSystemDeps evaluates the external binaries for the given config.
// Both the batch runner and the check command use this to avoid duplicating
// the requirements list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.PipelineRequirements(cfg.FFmpegBinary(), cfg.MagickBinary()))
}
