package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// ResolveProjectRoot walks from start up through its parents and returns the
// first directory whose base name equals marker. It is a startup step; the
// rest of the application only ever sees the resolved path.
func ResolveProjectRoot(start, marker string) (string, error) {
	if marker == "" {
		return "", fmt.Errorf("project marker must not be empty")
	}

	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", start, err)
	}
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}

	for {
		if filepath.Base(dir) == marker {
			slog.Debug("resolved project root",
				slog.String("start", start),
				slog.String("root", dir))
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %q directory above %s", marker, start)
		}
		dir = parent
	}
}

// EnsureProjectRoot fills Project.Root when it was not configured, walking up
// from the working directory. A configured root must exist.
func (c *Config) EnsureProjectRoot() error {
	if c.Project.Root != "" {
		abs, err := filepath.Abs(c.Project.Root)
		if err != nil {
			return fmt.Errorf("failed to resolve project root: %w", err)
		}
		if !DirExists(abs) {
			return fmt.Errorf("project root %s does not exist", abs)
		}
		c.Project.Root = abs
		return nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	root, err := ResolveProjectRoot(wd, c.Project.Marker)
	if err != nil {
		return err
	}
	c.Project.Root = root
	return nil
}

// ProjectPath joins rel onto the project root unless rel is already absolute.
func (c *Config) ProjectPath(rel string) string {
	if rel == "" || filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(c.Project.Root, filepath.FromSlash(rel))
}

// DirExists checks if a directory exists
func DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
