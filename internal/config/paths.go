package config

import (
	"os"
	"path/filepath"
	"strings"
)

// runtimeBaseDir anchors relative log and archive paths: the directory of the
// resolved executable, or the working directory when the binary was built
// into the go build cache by `go run` or `go test`.
func runtimeBaseDir() string {
	if exe, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		if dir := filepath.Dir(exe); !strings.Contains(dir, "go-build") {
			return dir
		}
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// resolveRuntimePath returns raw, or subdir when raw is blank, anchored at
// runtimeBaseDir unless already absolute.
func resolveRuntimePath(raw, subdir string) string {
	target := strings.TrimSpace(raw)
	if target == "" {
		target = subdir
	}
	if filepath.IsAbs(target) {
		return filepath.Clean(target)
	}
	return filepath.Join(runtimeBaseDir(), target)
}
