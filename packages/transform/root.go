package transform

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrFileNotFound = errors.New("file not found")

// Root resolves the absolute folder that filename arguments are relative to.
type Root interface {
	Root(ctx context.Context) (string, error)
}

// StaticRoot is a Root fixed at construction time.
type StaticRoot string

func (r StaticRoot) Root(context.Context) (string, error) {
	return string(r), nil
}

// ResolveFile joins filename onto the root and checks that the result is an
// existing regular file that does not escape the root.
func ResolveFile(ctx context.Context, root Root, filename string) (string, error) {
	if root == nil {
		return "", fmt.Errorf("%w: no file root configured for %q", ErrFileNotFound, filename)
	}
	base, err := root.Root(ctx)
	if err != nil {
		return "", err
	}

	rel := strings.TrimLeft(filepath.FromSlash(filename), `/\`)
	full := filepath.Join(base, rel)

	if err := validatePathWithinBase(full, base); err != nil {
		return "", fmt.Errorf("%w: %v", ErrFileNotFound, err)
	}

	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, filename)
	}
	return full, nil
}

// OpenFile resolves filename and opens it as a stream body.
func OpenFile(ctx context.Context, root Root, filename string) (Body, error) {
	path, err := ResolveFile(ctx, root, filename)
	if err != nil {
		return Body{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return Body{}, fmt.Errorf("%w: %v", ErrFileNotFound, err)
	}
	size := int64(-1)
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}
	return StreamBody(f, size), nil
}

// validatePathWithinBase checks that the resolved path stays within the base directory
// to prevent path traversal attacks
func validatePathWithinBase(path, baseDir string) error {
	if baseDir == "" {
		return nil
	}

	cleanBase, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %v", err)
	}

	cleanPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %v", err)
	}

	if !strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator)) && cleanPath != cleanBase {
		return fmt.Errorf("path traversal detected: %s is outside allowed directory %s", path, baseDir)
	}

	return nil
}
