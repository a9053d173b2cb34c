// Package git shells out to the git binary to version a document directory.
package git

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// DefaultLockName is the lock file created in the working directory.
const DefaultLockName = ".patchwork.lock"

// ErrLockTimeout is returned when the lock could not be acquired in time.
var ErrLockTimeout = errors.New("timed out waiting for git lock")

// Client wraps git command execution with a global file-based lock for process safety.
type Client struct {
	WorkDir string
	Logger  *slog.Logger

	// Name and Email, when set, are used as author and committer.
	Name  string
	Email string

	// LockTimeout bounds Lock. Zero waits forever.
	LockTimeout time.Duration

	lockPath string
}

// NewClient creates a new git client for the given working directory.
// An empty lockName selects DefaultLockName.
func NewClient(workDir, lockName string, logger *slog.Logger) *Client {
	if lockName == "" {
		lockName = DefaultLockName
	}
	return &Client{
		WorkDir:     workDir,
		Logger:      logger,
		LockTimeout: 30 * time.Second,
		lockPath:    lockName,
	}
}

// IsInstalled reports whether the git binary is on PATH.
func IsInstalled() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

// LockPath returns the absolute path of the lock file.
func (c *Client) LockPath() string {
	return filepath.Join(c.WorkDir, c.lockPath)
}

// Lock acquires a file-based lock. It blocks until the lock is acquired or
// LockTimeout elapses.
func (c *Client) Lock() (func(), error) {
	fullLockPath := c.LockPath()
	var deadline time.Time
	if c.LockTimeout > 0 {
		deadline = time.Now().Add(c.LockTimeout)
	}

	for {
		f, err := os.OpenFile(fullLockPath, os.O_CREATE|os.O_EXCL, 0666)
		if err == nil {
			f.Close()
			return func() {
				os.Remove(fullLockPath)
			}, nil
		}

		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to acquire lock: %w", err)
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, fullLockPath)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Run executes a raw git command in the working directory.
// NOTE: It does NOT acquire the lock. The caller must hold it via Client.Lock().
func (c *Client) Run(args ...string) (string, error) {
	if c.Logger != nil {
		c.Logger.Debug("executing git", "args", args, "dir", c.WorkDir)
	}

	cmd := exec.Command("git", args...)
	cmd.Dir = c.WorkDir
	if c.Name != "" && c.Email != "" {
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME="+c.Name,
			"GIT_AUTHOR_EMAIL="+c.Email,
			"GIT_COMMITTER_NAME="+c.Name,
			"GIT_COMMITTER_EMAIL="+c.Email,
		)
	}

	out, err := cmd.CombinedOutput()
	output := string(out)

	if err != nil {
		return output, fmt.Errorf("git %s failed: %w\nOutput: %s", args[0], err, output)
	}

	return strings.TrimSpace(output), nil
}

// IsRepo reports whether the working directory is inside a git repository.
func (c *Client) IsRepo() bool {
	out, err := c.Run("rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

// Init initializes a new git repository. Re-running it is safe.
func (c *Client) Init() error {
	_, err := c.Run("init")
	return err
}

// Add adds files to the stage.
func (c *Client) Add(files ...string) error {
	if len(files) == 0 {
		return nil
	}
	args := append([]string{"add", "--"}, files...)
	_, err := c.Run(args...)
	return err
}

// Rm removes files from the working tree and from the index.
// Paths git does not track are ignored.
func (c *Client) Rm(files ...string) error {
	if len(files) == 0 {
		return nil
	}
	args := append([]string{"rm", "-f", "--quiet", "--ignore-unmatch", "--"}, files...)
	_, err := c.Run(args...)
	return err
}

// HasStaged reports whether the index differs from HEAD.
func (c *Client) HasStaged() (bool, error) {
	_, err := c.Run("diff", "--cached", "--quiet")
	if err == nil {
		return false, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return true, nil
	}
	return false, err
}

// Commit records staged changes.
func (c *Client) Commit(msg string) error {
	_, err := c.Run("commit", "-m", msg)
	return err
}

// Status returns the porcelain status of the repo.
func (c *Client) Status() (string, error) {
	return c.Run("status", "--porcelain")
}

// Log returns the one-line history of path, newest first.
func (c *Client) Log(path string, limit int) ([]string, error) {
	args := []string{"log", "--format=%h %s"}
	if limit > 0 {
		args = append(args, fmt.Sprintf("-n%d", limit))
	}
	if path != "" {
		args = append(args, "--", path)
	}
	out, err := c.Run(args...)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}
