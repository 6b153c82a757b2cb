// Package logging points klog at a file so log output does not corrupt the
// terminal UI.
package logging

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"k8s.io/klog/v2"
)

// Setup sends klog output to path, appending, and raises the verbosity to
// verbosity unless -v was given explicitly on fs. The returned closer
// flushes klog and closes the file.
func Setup(fs *flag.FlagSet, path string, verbosity int) (io.Closer, error) {
	if fs != nil && verbosity > 0 && !flagSet(fs, "v") {
		if f := fs.Lookup("v"); f != nil {
			if err := f.Value.Set(strconv.Itoa(verbosity)); err != nil {
				return nil, fmt.Errorf("set verbosity: %w", err)
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	klog.LogToStderr(false)
	klog.SetOutput(f)
	return &logFile{f: f}, nil
}

type logFile struct {
	f *os.File
}

func (l *logFile) Close() error {
	klog.Flush()
	return l.f.Close()
}

func flagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}
