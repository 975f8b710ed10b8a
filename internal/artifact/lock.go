package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// lockStaleAfter is how old a lock file may be before it is presumed
// abandoned by a crashed run.
const lockStaleAfter = 10 * time.Minute

// Lock is a file lock on a run directory, preventing two runs from
// writing artifacts into the same place at once.
type Lock struct {
	path string
}

// AcquireLock takes the lock for dir on behalf of a run against serial.
func AcquireLock(dir, serial string) (*Lock, error) {
	lockPath := filepath.Join(dir, ".droidtune.lock")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	// Check if lock already exists
	if info, err := os.Stat(lockPath); err == nil {
		if time.Since(info.ModTime()) > lockStaleAfter {
			os.Remove(lockPath)
		} else {
			return nil, fmt.Errorf("run directory is locked by another process (lock file: %s). "+
				"If this is an error, remove the lock file manually", lockPath)
		}
	}

	// Create lock file with current PID, serial and timestamp
	content := fmt.Sprintf("pid=%d\nserial=%s\ntime=%s\n",
		os.Getpid(), serial, time.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(lockPath, []byte(content), 0644); err != nil {
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}

	return &Lock{path: lockPath}, nil
}

// Release removes the lock file.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}
