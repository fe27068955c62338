package pidfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// File is a PID file guarding against more than one gridcored instance
// running against the same state directory at once.
type File struct {
	path string
	pid  int
}

// New returns a File for path, stamped with the current process's PID.
func New(path string) *File {
	return &File{
		path: path,
		pid:  os.Getpid(),
	}
}

// Acquire writes the PID file, failing if another live process already
// holds it. A PID file left behind by a process that is no longer running
// is treated as stale and replaced.
func (f *File) Acquire() error {
	if f.exists() {
		existingPID, err := f.readExistingPID()
		if err != nil {
			return fmt.Errorf("read existing pid file: %w", err)
		}
		if f.isProcessRunning(existingPID) {
			return fmt.Errorf("gridcored already running with pid %d", existingPID)
		}
		if err := os.Remove(f.path); err != nil {
			return fmt.Errorf("remove stale pid file: %w", err)
		}
	}

	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create pid file directory: %w", err)
		}
	}

	if err := os.WriteFile(f.path, []byte(fmt.Sprintf("%d\n", f.pid)), 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

// Release removes the PID file, refusing to touch it if it no longer
// belongs to this process.
func (f *File) Release() error {
	if !f.exists() {
		return nil
	}

	existingPID, err := f.readExistingPID()
	if err != nil {
		return os.Remove(f.path)
	}
	if existingPID != f.pid {
		return fmt.Errorf("pid file holds pid %d, not ours (%d); not removing", existingPID, f.pid)
	}
	return os.Remove(f.path)
}

// Path returns the PID file's filesystem path.
func (f *File) Path() string {
	return f.path
}

// CheckRunning reports whether a live process already holds this PID file
// and, if so, its PID.
func (f *File) CheckRunning() (bool, int, error) {
	if !f.exists() {
		return false, 0, nil
	}
	existingPID, err := f.readExistingPID()
	if err != nil {
		return false, 0, fmt.Errorf("read pid file: %w", err)
	}
	return f.isProcessRunning(existingPID), existingPID, nil
}

// ForceRemove deletes the PID file regardless of which process owns it.
// Used by gridcored's -force flag, where the usual ownership check would
// block an operator-requested removal.
func (f *File) ForceRemove() error {
	return os.Remove(f.path)
}

func (f *File) exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

func (f *File) readExistingPID() (int, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return 0, err
	}
	pidStr := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return 0, fmt.Errorf("invalid pid in %s: %q", f.path, pidStr)
	}
	return pid, nil
}

// isProcessRunning signals pid with signal 0: delivery is skipped but the
// kernel still reports ESRCH if the process doesn't exist, which is
// cheaper and more reliable on the embedded Linux gateways gridcored
// targets than shelling out to ps.
func (f *File) isProcessRunning(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
