package config

import (
	"fmt"

	"github.com/roach88/incr/internal/history"
	"github.com/roach88/incr/internal/snapshotter"
	"github.com/roach88/incr/internal/work"
)

// Build creates a fresh unit from its declaration. Units hold per-run
// state, so Build is called once per execution.
func (u UnitDecl) Build(store history.Store, files *snapshotter.Fingerprinter) (work.UnitOfWork, error) {
	if err := u.validate(); err != nil {
		return nil, err
	}
	timeout, _ := u.timeout()

	if u.Transform != "" {
		t, err := work.NewTransform(u.Name, u.Input, u.Output, u.Version, work.Transforms[u.Transform], u.Cacheable, store, files)
		if err != nil {
			return nil, fmt.Errorf("unit %s: %w", u.Name, err)
		}
		return t, nil
	}

	spec := work.Spec{
		Name:        u.Name,
		Overlapping: u.Overlapping,
		Cacheable:   u.Cacheable,
		Timeout:     timeout,
	}
	for _, in := range u.Inputs {
		spec.Inputs = append(spec.Inputs, work.InputProperty{
			Name:        in.Name,
			Roots:       work.FileRoots(in.Roots),
			Incremental: in.Incremental,
		})
	}
	for _, out := range u.Outputs {
		kind, _ := treeType(out.Kind)
		spec.Outputs = append(spec.Outputs, work.OutputProperty{
			Name:  out.Name,
			Kind:  kind,
			Roots: work.FileRoots(out.Roots),
		})
	}
	c, err := work.NewCommandTask(spec, u.Command, u.Env, u.Dir, store, files)
	if err != nil {
		return nil, fmt.Errorf("unit %s: %w", u.Name, err)
	}
	return c, nil
}
