// Package revision resolves the short source-control revision of a project checkout.
package revision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

const (
	// DefaultBinary is the version-control executable looked up on PATH.
	DefaultBinary = "git"
	// DefaultTimeout bounds a single revision query.
	DefaultTimeout = 10 * time.Second

	gitTerminalPromptOff = "GIT_TERMINAL_PROMPT=0"
)

// ErrUnavailable indicates the revision could not be determined.
var ErrUnavailable = errors.New("revision: unavailable")

// Source yields the short revision identifier of the current checkout.
type Source interface {
	Query(ctx context.Context) (string, error)
}

// GitProbe runs `git rev-parse --short HEAD` inside Dir.
type GitProbe struct {
	// Dir is the working directory of the query, normally the project root.
	Dir     string
	Binary  string
	Timeout time.Duration
}

// Query implements Source.
func (p GitProbe) Query(ctx context.Context) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(p.Dir) == "" {
		return "", fmt.Errorf("%w: working directory is not set", ErrUnavailable)
	}

	binary := strings.TrimSpace(p.Binary)
	if binary == "" {
		binary = DefaultBinary
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{"rev-parse", "--short", "HEAD"}
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = p.Dir
	cmd.Env = append(os.Environ(), gitTerminalPromptOff)
	cmd.WaitDelay = time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %s %s in %s timed out after %s", ErrUnavailable, binary, strings.Join(args, " "), p.Dir, timeout)
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return "", fmt.Errorf("%w: %s %s in %s: %s", ErrUnavailable, binary, strings.Join(args, " "), p.Dir, detail)
	}

	hash := strings.TrimSpace(strings.TrimRight(string(out), "\r\n"))
	if hash == "" {
		return "", fmt.Errorf("%w: %s %s in %s printed nothing", ErrUnavailable, binary, strings.Join(args, " "), p.Dir)
	}
	return hash, nil
}

// Fixed is a Source returning a preset revision, e.g. one exported by a CI system.
type Fixed string

// Query implements Source.
func (f Fixed) Query(context.Context) (string, error) {
	value := strings.TrimSpace(string(f))
	if value == "" {
		return "", fmt.Errorf("%w: empty revision override", ErrUnavailable)
	}
	return value, nil
}
