package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/incr/internal/work"
)

// DefaultWorkfiles are tried in order when no workfile is named.
var DefaultWorkfiles = []string{"incr.yaml", "incr.yml", "incr.cue"}

// Workfile error codes.
const (
	ErrCodeNotFound   = "W001"
	ErrCodeParse      = "W002"
	ErrCodeInvalid    = "W003"
	ErrCodeDuplicate  = "W004"
	ErrCodeUnknownRef = "W005"
)

// LoadError describes a workfile that could not be loaded.
type LoadError struct {
	Code    string
	Message string
	File    string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	if e.File != "" {
		return fmt.Sprintf("%s: %s: %s", e.File, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Workfile declares the units of a project, in execution order.
type Workfile struct {
	Units []UnitDecl `yaml:"units" json:"units"`
}

// UnitDecl declares one unit. Exactly one of Command and Transform is set.
type UnitDecl struct {
	Name string `yaml:"name" json:"name"`

	// Command units.
	Command string            `yaml:"command,omitempty" json:"command,omitempty"`
	Dir     string            `yaml:"dir,omitempty" json:"dir,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`

	// Transform units.
	Transform string `yaml:"transform,omitempty" json:"transform,omitempty"`
	Input     string `yaml:"input,omitempty" json:"input,omitempty"`
	Output    string `yaml:"output,omitempty" json:"output,omitempty"`
	Version   string `yaml:"version,omitempty" json:"version,omitempty"`

	Inputs      []InputDecl  `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Outputs     []OutputDecl `yaml:"outputs,omitempty" json:"outputs,omitempty"`
	Overlapping bool         `yaml:"overlapping,omitempty" json:"overlapping,omitempty"`
	Cacheable   bool         `yaml:"cacheable,omitempty" json:"cacheable,omitempty"`
	Timeout     string       `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

type InputDecl struct {
	Name        string   `yaml:"name" json:"name"`
	Roots       []string `yaml:"roots" json:"roots"`
	Incremental bool     `yaml:"incremental,omitempty" json:"incremental,omitempty"`
}

type OutputDecl struct {
	Name  string   `yaml:"name" json:"name"`
	Kind  string   `yaml:"kind,omitempty" json:"kind,omitempty"` // "file" | "directory"
	Roots []string `yaml:"roots" json:"roots"`
}

// FindWorkfile returns path if set, otherwise the first default workfile
// present in dir.
func FindWorkfile(dir, path string) (string, error) {
	if path != "" {
		return path, nil
	}
	for _, name := range DefaultWorkfiles {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("no workfile found in %s (tried %s)", dir, strings.Join(DefaultWorkfiles, ", "))}
}

// LoadWorkfile reads and validates a workfile. Files ending in .cue are
// evaluated with CUE; everything else is parsed as YAML.
func LoadWorkfile(path string) (*Workfile, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, File: path, Message: "workfile not found"}
	}
	if err != nil {
		return nil, fmt.Errorf("read workfile: %w", err)
	}

	var wf *Workfile
	if filepath.Ext(path) == ".cue" {
		wf, err = ParseCUE(path, data)
	} else {
		wf, err = ParseYAML(path, data)
	}
	if err != nil {
		return nil, err
	}
	if err := wf.Validate(); err != nil {
		if le, ok := err.(*LoadError); ok && le.File == "" {
			le.File = path
		}
		return nil, err
	}
	return wf, nil
}

// ParseYAML decodes a YAML workfile. Unknown fields are rejected.
func ParseYAML(name string, data []byte) (*Workfile, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var wf Workfile
	if err := dec.Decode(&wf); err != nil {
		return nil, &LoadError{Code: ErrCodeParse, File: name, Message: err.Error()}
	}
	return &wf, nil
}

// ParseCUE evaluates a CUE workfile and decodes it.
func ParseCUE(name string, data []byte) (*Workfile, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(name))
	if err := v.Err(); err != nil {
		return nil, cueLoadError(name, err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, cueLoadError(name, err)
	}
	var wf Workfile
	if err := v.Decode(&wf); err != nil {
		return nil, cueLoadError(name, err)
	}
	return &wf, nil
}

func cueLoadError(name string, err error) *LoadError {
	le := &LoadError{Code: ErrCodeParse, File: name, Message: err.Error()}
	if errs := cueerrors.Errors(err); len(errs) > 0 {
		le.Pos = errs[0].Position()
		le.Message = errs[0].Error()
	}
	return le
}

// Validate checks the declarations without touching the file system.
func (wf *Workfile) Validate() error {
	seen := make(map[string]bool)
	for i, u := range wf.Units {
		if u.Name == "" {
			return invalid("unit %d: name is required", i)
		}
		if seen[u.Name] {
			return &LoadError{Code: ErrCodeDuplicate, Message: fmt.Sprintf("unit %s declared twice", u.Name)}
		}
		seen[u.Name] = true
		if err := u.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (u UnitDecl) validate() error {
	switch {
	case u.Command == "" && u.Transform == "":
		return invalid("unit %s: one of command or transform is required", u.Name)
	case u.Command != "" && u.Transform != "":
		return invalid("unit %s: command and transform are exclusive", u.Name)
	}
	if u.Transform != "" {
		if _, ok := work.Transforms[u.Transform]; !ok {
			return &LoadError{Code: ErrCodeUnknownRef, Message: fmt.Sprintf("unit %s: unknown transform %q (known: %s)", u.Name, u.Transform, strings.Join(work.TransformNames(), ", "))}
		}
		if u.Input == "" || u.Output == "" {
			return invalid("unit %s: transform needs input and output", u.Name)
		}
		if len(u.Inputs) > 0 || len(u.Outputs) > 0 {
			return invalid("unit %s: transform declares its properties through input and output", u.Name)
		}
	}
	for _, in := range u.Inputs {
		if in.Name == "" || len(in.Roots) == 0 {
			return invalid("unit %s: input needs a name and at least one root", u.Name)
		}
	}
	for _, out := range u.Outputs {
		if out.Name == "" || len(out.Roots) == 0 {
			return invalid("unit %s: output needs a name and at least one root", u.Name)
		}
		if _, err := treeType(out.Kind); err != nil {
			return invalid("unit %s: output %s: %v", u.Name, out.Name, err)
		}
	}
	if _, err := u.timeout(); err != nil {
		return invalid("unit %s: %v", u.Name, err)
	}
	return nil
}

// Select returns the named units in workfile order, or all units when
// names is empty.
func (wf *Workfile) Select(names []string) ([]UnitDecl, error) {
	if len(names) == 0 {
		return wf.Units, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []UnitDecl
	for _, u := range wf.Units {
		if want[u.Name] {
			out = append(out, u)
			delete(want, u.Name)
		}
	}
	for _, n := range names {
		if want[n] {
			return nil, &LoadError{Code: ErrCodeUnknownRef, Message: fmt.Sprintf("unknown unit %q", n)}
		}
	}
	return out, nil
}

func (u UnitDecl) timeout() (time.Duration, error) {
	if u.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(u.Timeout)
	if err != nil {
		return 0, fmt.Errorf("timeout: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("timeout must be positive")
	}
	return d, nil
}

func treeType(kind string) (work.TreeType, error) {
	switch kind {
	case "", "directory":
		return work.DirectoryTree, nil
	case "file":
		return work.FileTree, nil
	default:
		return 0, fmt.Errorf("unknown kind %q", kind)
	}
}

func invalid(format string, args ...any) *LoadError {
	return &LoadError{Code: ErrCodeInvalid, Message: fmt.Sprintf(format, args...)}
}
