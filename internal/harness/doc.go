// Package harness replays change scenarios against the executor.
//
// A scenario declares one unit and a sequence of steps. Each step edits
// the workspace, runs the unit through a fresh Executor pass, and checks
// the outcome, rebuild reasons and input changes the unit body saw.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: copy_incremental
//	description: "Adding a file only copies that file"
//	unit:
//	  name: assets
//	  transform: copy
//	  input: src
//	  output: out
//	cache: memory            # optional: memory build cache
//	history: sqlite          # optional: memory (default) or sqlite
//	steps:
//	  - write: {src/a.txt: a}
//	    expect:
//	      outcome: EXECUTED_NON_INCREMENTALLY
//	  - write: {src/b.txt: b}
//	    expect:
//	      outcome: EXECUTED_INCREMENTALLY
//	      changes:
//	        - {property: input, path: src/b.txt, kind: ADDED}
//	      files: {out/b.txt: b}
//
// Steps may also remove paths, forget the unit's history, or change the
// unit's version (which changes its implementation hash).
//
// Diff scenarios exercise the change set alone, without a workspace:
//
//	name: src_modified_and_added
//	description: "..."
//	diff:
//	  previous: {src: {/f1: h1, /f2: h2}}
//	  current:  {src: {/f1: h1, /f2: h2x, /f3: h3}}
//	  expect:
//	    - {property: src, path: /f2, kind: MODIFIED}
//	    - {property: src, path: /f3, kind: ADDED}
//
// # Golden Files
//
// RunWithGolden compares the scenario trace, in canonical JSON, against
// testdata/golden/{name}.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
