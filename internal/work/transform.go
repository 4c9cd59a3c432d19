package work

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/roach88/incr/internal/changes"
	"github.com/roach88/incr/internal/fingerprint"
	"github.com/roach88/incr/internal/history"
	"github.com/roach88/incr/internal/snapshotter"
)

// Artifact is the input handle of a Transform. It is comparable so that it
// can be used to query InputChanges.
type Artifact struct {
	Path string
}

// TransformRequest is what a TransformFunc receives.
type TransformRequest struct {
	// Input is the artifact handle; query Changes with it.
	Input Artifact
	// Changes are the input changes of this execution.
	Changes changes.InputChanges
	// Workspace resolves workspace-relative paths.
	Workspace *snapshotter.Fingerprinter
	// OutputDir is the absolute output directory.
	OutputDir string
}

// TransformFunc transforms an artifact into files under OutputDir.
type TransformFunc func(ctx context.Context, req TransformRequest) (WorkResult, error)

// Transform is a lightweight unit: a Go function over one input artifact
// producing files in one output directory. It knows exactly which paths it
// changes.
type Transform struct {
	Base

	input     Artifact
	outputDir string
	version   string
	fn        TransformFunc
}

var (
	_ UnitOfWork           = (*Transform)(nil)
	_ ImplementationHasher = (*Transform)(nil)
)

// TransformInputProperty is the name of a Transform's input property.
const TransformInputProperty = "input"

// TransformOutputProperty is the name of a Transform's output property.
const TransformOutputProperty = "output"

// NewTransform returns a transform of input into outputDir. version is part
// of the implementation hash; bump it when fn changes behavior.
func NewTransform(name, input, outputDir, version string, fn TransformFunc, cacheable bool, store history.Store, files *snapshotter.Fingerprinter) (*Transform, error) {
	if fn == nil {
		return nil, fmt.Errorf("unit %s: transform function is nil", name)
	}
	artifact := Artifact{Path: input}
	base, err := NewBase(Spec{
		Name: name,
		Inputs: []InputProperty{
			{Name: TransformInputProperty, Roots: FileRoots{input}, Value: artifact, Incremental: true},
		},
		Outputs: []OutputProperty{
			{Name: TransformOutputProperty, Kind: DirectoryTree, Roots: FileRoots{outputDir}},
		},
		Cacheable: cacheable,
	}, store, files)
	if err != nil {
		return nil, err
	}
	return &Transform{Base: base, input: artifact, outputDir: outputDir, version: version, fn: fn}, nil
}

// Input returns the artifact handle.
func (t *Transform) Input() Artifact { return t.input }

func (t *Transform) ImplementationHash() (string, error) {
	return fingerprint.ImplementationHash(map[string]any{
		"kind":    "transform",
		"version": t.version,
		"output":  t.outputDir,
	})
}

// ChangingOutputs is exactly the output directory.
func (t *Transform) ChangingOutputs() ([]string, bool) {
	return []string{t.outputDir}, true
}

func (t *Transform) Execute(ctx context.Context, ec ExecutionContext) (WorkResult, error) {
	out := t.Files().Resolve(t.outputDir)
	if err := os.MkdirAll(out, 0o755); err != nil {
		return 0, fmt.Errorf("create output directory: %w", err)
	}
	return t.fn(ctx, TransformRequest{
		Input:     t.input,
		Changes:   ec.InputChanges,
		Workspace: t.Files(),
		OutputDir: out,
	})
}

// Transforms are the built-in transform functions by name.
var Transforms = map[string]TransformFunc{
	"copy":   CopyTransform,
	"concat": ConcatTransform,
}

// TransformNames returns the names of the built-in transforms, sorted.
func TransformNames() []string {
	names := make([]string, 0, len(Transforms))
	for n := range Transforms {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CopyTransform mirrors the input files into the output directory. It only
// touches the files that changed: added and modified files are copied,
// removed files are deleted.
func CopyTransform(ctx context.Context, req TransformRequest) (WorkResult, error) {
	fc, err := req.Changes.FileChanges(req.Input)
	if err != nil {
		return 0, err
	}
	if len(fc) == 0 {
		return DidNoWork, nil
	}
	base := req.Workspace.Resolve(req.Input.Path)
	for _, c := range fc {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		src := req.Workspace.Resolve(c.Path)
		rel, err := filepath.Rel(base, src)
		if err != nil || rel == "." {
			rel = filepath.Base(src)
		}
		dst := filepath.Join(req.OutputDir, rel)

		if c.Kind == changes.Removed {
			if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
				return 0, fmt.Errorf("remove %s: %w", dst, err)
			}
			continue
		}
		if err := copyFile(src, dst); err != nil {
			return 0, err
		}
	}
	return DidWork, nil
}

// ConcatTransform writes every input file, in path order, into a single
// output file named after the input. Any change rewrites the whole file.
func ConcatTransform(ctx context.Context, req TransformRequest) (WorkResult, error) {
	fc, err := req.Changes.FileChanges(req.Input)
	if err != nil {
		return 0, err
	}
	if req.Changes.IsIncremental() && len(fc) == 0 {
		return DidNoWork, nil
	}

	fp, err := req.Workspace.Fingerprint([]string{req.Input.Path})
	if err != nil {
		return 0, err
	}
	dst := filepath.Join(req.OutputDir, filepath.Base(req.Input.Path)+".concat")
	out, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", dst, err)
	}
	defer out.Close()

	for _, p := range fp.Paths() {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if err := appendFile(out, req.Workspace.Resolve(p)); err != nil {
			return 0, err
		}
	}
	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("close %s: %w", dst, err)
	}
	return DidWork, nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", dst, err)
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}

func appendFile(w io.Writer, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("append %s: %w", src, err)
	}
	return nil
}
