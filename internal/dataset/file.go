package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"mrecommender/pkg/models"
)

// DefaultOutputPath is where prepare writes when no output file is given
const DefaultOutputPath = "./mrecommender.dataset"

// DefaultLockTimeout applies when the caller's context carries no deadline
const DefaultLockTimeout = 30 * time.Second

// LockPath returns the sidecar lock file guarding outPath
func LockPath(outPath string) string {
	return outPath + ".lock"
}

// acquireLock takes the exclusive lock guarding outPath, retrying every 10ms until
// ctx (or DefaultLockTimeout) runs out.
func acquireLock(ctx context.Context, outPath string) (*flock.Flock, error) {
	lockPath := LockPath(outPath)
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	lockCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, DefaultLockTimeout)
		defer cancel()
	}

	fileLock := flock.New(lockPath)
	locked, err := fileLock.TryLockContext(lockCtx, 10*time.Millisecond)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("timed out waiting for lock %s: %w", lockPath, err)
		}
		return nil, fmt.Errorf("failed to acquire lock %s: %w", lockPath, err)
	}
	if !locked {
		return nil, fmt.Errorf("timed out waiting for lock %s", lockPath)
	}
	return fileLock, nil
}

// PrepareFile runs Prepare from inPath into outPath while holding the output's lock,
// so concurrent prepares of the same file never interleave.
func PrepareFile(ctx context.Context, inPath, outPath string, logger *slog.Logger) (int, error) {
	in, err := os.Open(inPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open input: %w", err)
	}
	defer in.Close()

	fileLock, err := acquireLock(ctx, outPath)
	if err != nil {
		return 0, err
	}
	defer fileLock.Unlock()

	out, err := os.Create(outPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create output: %w", err)
	}

	users, err := Prepare(in, out)
	if closeErr := out.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close output: %w", closeErr)
	}
	if err != nil {
		return 0, err
	}

	logger.Info("Dataset prepared", "input", inPath, "output", outPath, "users", users)
	return users, nil
}

// ReadFile parses the dataset stored at path
func ReadFile(path string) ([]models.DatasetRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()
	return ReadRecords(f)
}
