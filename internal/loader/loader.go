// Package loader turns a project directory on disk into the in-memory
// shapes the rest of the execution core consumes: a populated action
// registry and its dependency graph, ready for the resolve pipeline and
// the solver.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/stackforge/actioncore/internal/action"
	"github.com/stackforge/actioncore/internal/config"
	"github.com/stackforge/actioncore/internal/graph"
	"github.com/stackforge/actioncore/internal/provider"
	"github.com/stackforge/actioncore/internal/registry"
	coreerrors "github.com/stackforge/actioncore/pkg/errors"
)

// Project bundles everything a CLI command needs after loading a project
// directory: the active action set, its dependency graph, group variables
// keyed by action, and any non-fatal mode-matching warnings.
type Project struct {
	Config       config.ProjectConfig
	Registry     *registry.Registry
	Graph        *graph.Graph
	GroupVars    map[action.Key]map[string]any
	Warnings     []string
	WorkflowsDir string
	BaseDir      string
}

// Load scans dir/project.yaml, dir/actions/*.yaml, dir/groups/*.yaml and
// builds the registry and graph. routers is consulted for mode support;
// template-reference edges are all classified as needing executed outputs
// (see staticOutputKeysFn).
func Load(dir string, routers *provider.Registry) (*Project, error) {
	projectPath := filepath.Join(dir, "project.yaml")
	projectCfg, err := config.ParseProjectConfig(projectPath)
	if err != nil {
		return nil, err
	}

	actionFiles, err := globYAML(filepath.Join(dir, "actions"))
	if err != nil {
		return nil, err
	}
	groupFiles, err := globYAML(filepath.Join(dir, "groups"))
	if err != nil {
		return nil, err
	}

	reg := registry.New()
	for _, path := range actionFiles {
		file, err := config.ParseActionFile(path)
		if err != nil {
			return nil, err
		}
		for _, cfg := range file.Actions {
			a := convertAction(cfg, dir, path)
			if err := reg.Add(a, path); err != nil {
				return nil, err
			}
		}
	}

	var groups []config.GroupConfig
	for _, path := range groupFiles {
		file, err := config.ParseGroupFile(path)
		if err != nil {
			return nil, err
		}
		groups = append(groups, file.Groups...)
	}

	warnings := reg.ApplyMode(projectCfg.Modes, supportsModeFn(routers))
	groupVars := groupVariables(reg.All(), groups)

	g, err := graph.BuildFromActions(reg.All(), staticOutputKeysFn(routers))
	if err != nil {
		return nil, err
	}

	return &Project{
		Config:       *projectCfg,
		Registry:     reg,
		Graph:        g,
		GroupVars:    groupVars,
		Warnings:     warnings,
		WorkflowsDir: filepath.Join(dir, "workflows"),
		BaseDir:      dir,
	}, nil
}

func convertAction(cfg config.ActionConfig, baseDir, sourcePath string) *action.Action {
	a := &action.Action{
		Kind:      action.Kind(cfg.Kind),
		Name:      cfg.Name,
		Type:      cfg.Name,
		BasePath:  baseDir,
		Spec:      cfg.Config,
		Variables: cfg.Variables,
		Disabled:  !cfg.IsEnabled(),
		Mode:      action.ModeDefault,
		Internal: action.Internal{
			BasePath:       baseDir,
			ConfigFilePath: sourcePath,
		},
	}
	if typ, ok := cfg.Config["type"].(string); ok && typ != "" {
		a.Type = typ
	}
	a.Extends = extendsTypes(cfg.Config["extends"])

	for _, dep := range cfg.DependsOn {
		d := action.Dependency{
			Kind:     action.Kind(dep.Kind),
			Name:     dep.Name,
			Explicit: true,
		}
		switch dep.Outputs {
		case "static":
			d.NeedsStaticOutputs = true
		case "executed":
			d.NeedsExecutedOutputs = true
		}
		a.Dependencies = append(a.Dependencies, d)
	}

	if cfg.CopyFrom != "" {
		a.Dependencies = append(a.Dependencies, action.Dependency{
			Kind:               action.KindBuild,
			Name:               cfg.CopyFrom,
			NeedsStaticOutputs: true,
		})
	}

	return a
}

// extendsTypes normalizes the config "extends" field, accepted as either a
// single type string or a list of them, into the ordered slice
// action.Action.Extends walks for base-type chain validation.
func extendsTypes(raw any) []string {
	switch v := raw.(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// groupVariables matches every active action's key against each group's
// membership patterns and copies every matching group's top-level variables
// in file order: a later group's value replaces an earlier group's value for
// the same top-level key. Nested maps are replaced whole, not merged.
func groupVariables(actions []*action.Action, groups []config.GroupConfig) map[action.Key]map[string]any {
	out := make(map[action.Key]map[string]any, len(actions))
	for _, a := range actions {
		key := a.Key()
		merged := map[string]any{}
		for _, grp := range groups {
			if !groupMatches(grp, key.String()) {
				continue
			}
			for k, v := range grp.Variables {
				merged[k] = v
			}
			a.Internal.GroupName = grp.Name
		}
		if len(merged) > 0 {
			out[key] = merged
		}
	}
	return out
}

func groupMatches(grp config.GroupConfig, name string) bool {
	if len(grp.Patterns) == 0 {
		return false
	}
	for _, p := range grp.Patterns {
		if p.Exact {
			if p.Pattern == name {
				return true
			}
			continue
		}
		if globMatch(p.Pattern, name) {
			return true
		}
	}
	return false
}

// globMatch mirrors the registry's mode-pattern matcher: literal segments
// plus "*" wildcards, no external globbing library needed for this small
// a pattern language.
func globMatch(pattern, name string) bool {
	return globMatchRunes([]rune(pattern), []rune(name))
}

func globMatchRunes(pattern, name []rune) bool {
	if len(pattern) == 0 {
		return len(name) == 0
	}
	if pattern[0] == '*' {
		for i := 0; i <= len(name); i++ {
			if globMatchRunes(pattern[1:], name[i:]) {
				return true
			}
		}
		return false
	}
	if len(name) == 0 || pattern[0] != name[0] {
		return false
	}
	return globMatchRunes(pattern[1:], name[1:])
}

func supportsModeFn(routers *provider.Registry) func(actionType string, mode action.Mode) bool {
	if routers == nil {
		return nil
	}
	return func(actionType string, mode action.Mode) bool {
		router, ok := routers.Lookup(actionType)
		if !ok {
			return true
		}
		cfg, err := router.Configure(context.Background(), nil)
		if err != nil {
			return true
		}
		for _, m := range cfg.SupportedModes {
			if m == mode {
				return true
			}
		}
		return len(cfg.SupportedModes) == 0
	}
}

// staticOutputKeysFn is the graph's static-output classifier. It reports
// false for every key and does not consult the routers (a router that
// implements provider.StaticOutputKeys is not asked), so every
// template-reference edge becomes a full execution dependency.
func staticOutputKeysFn(routers *provider.Registry) func(kind action.Kind, key string) bool {
	return func(kind action.Kind, key string) bool {
		if routers == nil {
			return false
		}
		return false
	}
}

func globYAML(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, coreerrors.NewCoreError(coreerrors.KindFilesystem, fmt.Sprintf("read directory %s", dir), err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
