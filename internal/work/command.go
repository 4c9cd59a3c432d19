package work

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/roach88/incr/internal/changes"
	"github.com/roach88/incr/internal/fingerprint"
	"github.com/roach88/incr/internal/history"
	"github.com/roach88/incr/internal/snapshotter"
)

// Environment variables set for every command.
const (
	EnvIncremental    = "INCR_INCREMENTAL"
	EnvFirstExecution = "INCR_FIRST_EXECUTION"
	EnvChangesFile    = "INCR_CHANGES_FILE"
)

// CommandError reports a command that exited with a non-zero status.
type CommandError struct {
	Unit     string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s: command exited with status %d", e.Unit, e.ExitCode)
	}
	return fmt.Sprintf("%s: command exited with status %d: %s", e.Unit, e.ExitCode, e.Stderr)
}

// CommandTask runs a shell command.
//
// Only variables declared in Env are visible to the command, plus the
// INCR_* variables describing the input changes. INCR_CHANGES_FILE names a
// JSON document listing the changes of every incremental input:
//
//	{"incremental":true,"properties":{"src":[{"path":"a.c","kind":"MODIFIED","property":"src"}]}}
type CommandTask struct {
	Base

	// Command is interpreted by "sh -c".
	Command string

	// Env is the complete environment of the command.
	Env map[string]string

	// Dir is the working directory relative to the workspace root.
	Dir string

	stdout bytes.Buffer
	stderr bytes.Buffer
}

var (
	_ UnitOfWork           = (*CommandTask)(nil)
	_ ImplementationHasher = (*CommandTask)(nil)
)

// NewCommandTask returns a command unit.
func NewCommandTask(spec Spec, command string, env map[string]string, dir string, store history.Store, files *snapshotter.Fingerprinter) (*CommandTask, error) {
	if command == "" {
		return nil, fmt.Errorf("unit %s: command is empty", spec.Name)
	}
	base, err := NewBase(spec, store, files)
	if err != nil {
		return nil, err
	}
	return &CommandTask{Base: base, Command: command, Env: env, Dir: dir}, nil
}

// ImplementationHash covers the command line, environment and directory.
func (c *CommandTask) ImplementationHash() (string, error) {
	env := make(map[string]string, len(c.Env))
	for k, v := range c.Env {
		env[k] = v
	}
	return fingerprint.ImplementationHash(map[string]any{
		"kind":    "command",
		"command": c.Command,
		"env":     env,
		"dir":     c.Dir,
	})
}

// ChangingOutputs is unknown for commands: a shell command may write anywhere.
func (c *CommandTask) ChangingOutputs() ([]string, bool) {
	return nil, false
}

// Stdout returns what the last execution wrote to standard output.
func (c *CommandTask) Stdout() string { return c.stdout.String() }

// Stderr returns what the last execution wrote to standard error.
func (c *CommandTask) Stderr() string { return c.stderr.String() }

// Execute runs the command in its own process group. Cancelling ctx kills
// the whole group.
func (c *CommandTask) Execute(ctx context.Context, ec ExecutionContext) (WorkResult, error) {
	changesFile, err := c.writeChangesFile(ec.InputChanges)
	if err != nil {
		return 0, err
	}
	defer os.Remove(changesFile)

	cmd := exec.CommandContext(ctx, "sh", "-c", c.Command)
	cmd.Dir = c.Files().Resolve(c.Dir)
	cmd.Env = c.buildEnv(ec, changesFile)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	c.stdout.Reset()
	c.stderr.Reset()
	cmd.Stdout = &c.stdout
	cmd.Stderr = &c.stderr

	if ec.Logger != nil {
		ec.Logger.Debug("starting command", "dir", cmd.Dir, "incremental", ec.InputChanges.IsIncremental())
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start command: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		if cmd.Process != nil {
			// Negative PID targets the process group.
			_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		<-done
		return 0, fmt.Errorf("execution cancelled: %w", ctx.Err())
	case err = <-done:
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return 0, &CommandError{Unit: c.Identity(), ExitCode: exitErr.ExitCode(), Stderr: lastLine(c.stderr.String())}
		}
		return 0, fmt.Errorf("failed to execute command: %w", err)
	}
	return DidWork, nil
}

// DefaultPath is the PATH of commands that do not set one.
const DefaultPath = "/usr/local/bin:/usr/bin:/bin"

// buildEnv starts from an empty environment: host variables are not passed
// through.
func (c *CommandTask) buildEnv(ec ExecutionContext, changesFile string) []string {
	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys)+4)
	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s=%s", k, c.Env[k]))
	}
	if _, ok := c.Env["PATH"]; !ok {
		env = append(env, "PATH="+DefaultPath)
	}
	env = append(env,
		EnvIncremental+"="+strconv.FormatBool(ec.InputChanges.IsIncremental()),
		EnvFirstExecution+"="+strconv.FormatBool(ec.FirstExecution),
		EnvChangesFile+"="+changesFile,
	)
	return env
}

type changesDocument struct {
	Incremental bool                            `json:"incremental"`
	Properties  map[string][]changes.FileChange `json:"properties"`
}

func (c *CommandTask) writeChangesFile(ic changes.InputChanges) (string, error) {
	doc := changesDocument{
		Incremental: ic.IsIncremental(),
		Properties:  make(map[string][]changes.FileChange),
	}
	var queryErr error
	c.VisitInputProperties(func(name string, value any, _ FileRoots, incremental bool) {
		if !incremental || queryErr != nil {
			return
		}
		fc, err := ic.FileChanges(value)
		if err != nil {
			queryErr = err
			return
		}
		doc.Properties[name] = fc
	})
	if queryErr != nil {
		return "", queryErr
	}

	f, err := os.CreateTemp("", "incr-changes-*.json")
	if err != nil {
		return "", fmt.Errorf("create changes file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write changes file: %w", err)
	}
	return filepath.Clean(f.Name()), nil
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\n")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
