// Package resolve implements the resolve pipeline: turning an Action plus
// its dependency results into a fully evaluated ResolvedAction (merged
// variables, resolved spec, static outputs).
package resolve

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"dario.cat/mergo"

	"github.com/stackforge/actioncore/internal/action"
	"github.com/stackforge/actioncore/internal/provider"
	"github.com/stackforge/actioncore/internal/template"
	coreerrors "github.com/stackforge/actioncore/pkg/errors"
)

// DependencyResults carries the dependency outputs the pipeline needs:
// ResolvedActions for edges that only need static outputs, ExecutedActions
// for edges that force execution.
type DependencyResults struct {
	Resolved map[action.Key]*action.ResolvedAction
	Executed map[action.Key]*action.ExecutedAction
}

// Input bundles everything the pipeline needs for a single action.
type Input struct {
	Action       *action.Action
	Dependencies DependencyResults
	GroupVars    map[string]any
	CLIOverrides map[string]any
	Environment  map[string]any
	Tree         action.TreeVersion
}

// Pipeline runs the resolve steps against a provider registry.
type Pipeline struct {
	routers *provider.Registry
}

// New returns a Pipeline backed by routers.
func New(routers *provider.Registry) *Pipeline {
	return &Pipeline{routers: routers}
}

// Resolve runs the full pipeline and returns a ResolvedAction. Calling
// Resolve twice with an equal Input must yield an equal ResolvedAction; the
// pipeline itself performs no I/O beyond the provider router calls the
// caller wires in.
func (p *Pipeline) Resolve(ctx context.Context, in Input) (*action.ResolvedAction, error) {
	router, ok := p.routers.Lookup(in.Action.Type)
	if !ok {
		return nil, coreerrors.NewCoreError(coreerrors.KindConfiguration,
			fmt.Sprintf("no provider router registered for action type %q", in.Action.Type), nil)
	}

	outputsBranch := outputsBranch(in.Dependencies)

	// Step 3: resolve inputs (strict) is folded into step 6 below, since
	// this execution core's actions carry config rather than a distinct
	// "inputs" field; the builtin fields resolved here play that role.

	// Step 4: merge variables group < action < CLI overrides, later wins.
	mergedVars, err := mergeVariables(in.GroupVars, in.Action.Variables, in.CLIOverrides)
	if err != nil {
		return nil, coreerrors.NewCoreError(coreerrors.KindConfiguration, "merge variables", err)
	}

	baseCtx := template.NewContext(map[string]any{
		"variables":   mergedVars,
		"actions":     outputsBranch,
		"environment": in.Environment,
	})

	// Step 5: resolve builtin config fields strictly.
	resolvedInclude, err := resolveStrings(in.Action.Include, baseCtx)
	if err != nil {
		return nil, err
	}
	resolvedExclude, err := resolveStrings(in.Action.Exclude, baseCtx)
	if err != nil {
		return nil, err
	}

	// Step 6: resolve the remaining config: partial pass (plugin may still
	// mutate), then configure(), then a strict pass over whatever the
	// plugin left behind.
	partialSpec, err := template.Resolve(in.Action.Spec, baseCtx, template.Partial)
	if err != nil {
		return nil, err
	}
	partialSpecMap, _ := partialSpec.(map[string]any)

	var noTemplateBefore map[string]any
	if fields, ok := router.(provider.NoTemplateFields); ok {
		noTemplateBefore = snapshotKeys(partialSpecMap, fields.NoTemplateFields())
	}

	configured, err := router.Configure(ctx, partialSpecMap)
	if err != nil {
		return nil, err
	}

	if fields, ok := router.(provider.NoTemplateFields); ok {
		noTemplateAfter := snapshotKeys(configured.Config, fields.NoTemplateFields())
		if changed := changedKeys(noTemplateBefore, noTemplateAfter); len(changed) > 0 {
			return nil, coreerrors.NewCoreError(coreerrors.KindPlugin,
				fmt.Sprintf("configure changed noTemplate field(s): %s", strings.Join(changed, ", ")), nil)
		}
	}

	finalSpec, err := template.Resolve(configured.Config, baseCtx, template.Strict)
	if err != nil {
		return nil, err
	}
	finalSpecMap, _ := finalSpec.(map[string]any)

	// Step 7: validate the resolved spec against the action type's schema,
	// then against every base type it extends (chain validation, below).
	resolved := &action.ResolvedAction{
		Action:          in.Action,
		ResolvedSpec:    finalSpecMap,
		MergedVariables: mergedVars,
		ResolvedInputs: map[string]any{
			"include": resolvedInclude,
			"exclude": resolvedExclude,
		},
		Tree: in.Tree,
	}

	validated := *in.Action
	validated.Spec = finalSpecMap
	if err := router.Validate(ctx, &validated); err != nil {
		return nil, err
	}
	if err := p.validateBaseChain(ctx, &validated); err != nil {
		return nil, err
	}

	// Step 8: ask the provider router for static outputs.
	staticOutputs, err := router.GetOutputs(ctx, resolved)
	if err != nil {
		return nil, err
	}
	resolved.StaticOutputs = staticOutputs

	return resolved, nil
}

// validateBaseChain validates a against every base action type its own type
// extends, walking the chain transitively: a base type that itself extends
// another gets its router consulted too. The same base type is never
// validated twice even if reachable through more than one path.
func (p *Pipeline) validateBaseChain(ctx context.Context, a *action.Action) error {
	seen := map[string]bool{}
	queue := append([]string{}, a.Extends...)

	for len(queue) > 0 {
		baseType := queue[0]
		queue = queue[1:]
		if seen[baseType] {
			continue
		}
		seen[baseType] = true

		baseRouter, ok := p.routers.Lookup(baseType)
		if !ok {
			return coreerrors.NewCoreError(coreerrors.KindConfiguration,
				fmt.Sprintf("action type %q extends unknown base type %q", a.Type, baseType), nil)
		}

		baseAction := *a
		baseAction.Type = baseType
		if err := baseRouter.Validate(ctx, &baseAction); err != nil {
			return err
		}

		if chain, ok := baseRouter.(provider.BaseTypeProvider); ok {
			queue = append(queue, chain.BaseTypes()...)
		}
	}

	return nil
}

// mergeVariables deep-merges group, action, and CLI-override layers with
// later layers winning at each leaf. A group variable referencing another
// group variable through a not-yet-merged action variable is intentionally
// left unresolved here: each layer is merged as literal data before any
// template resolution runs.
func mergeVariables(group, actionVars, cliOverrides map[string]any) (map[string]any, error) {
	merged := map[string]any{}
	for _, layer := range []map[string]any{group, actionVars, cliOverrides} {
		if layer == nil {
			continue
		}
		if err := mergo.Merge(&merged, layer, mergo.WithOverride); err != nil {
			return nil, err
		}
	}
	return merged, nil
}

// outputsBranch builds the "actions.<kind>.<name>.outputs" context branch
// from whichever dependency results are available, preferring executed
// outputs over static ones when both are present for the same key.
func outputsBranch(deps DependencyResults) map[string]any {
	out := map[string]any{}

	addOutputs := func(key action.Key, outputs map[string]any) {
		kindMap, _ := out[string(key.Kind)].(map[string]any)
		if kindMap == nil {
			kindMap = map[string]any{}
			out[string(key.Kind)] = kindMap
		}
		kindMap[key.Name] = map[string]any{"outputs": outputs}
	}

	for key, r := range deps.Resolved {
		addOutputs(key, r.StaticOutputs)
	}
	for key, e := range deps.Executed {
		addOutputs(key, e.Outputs)
	}

	return out
}

// snapshotKeys copies the named top-level keys out of spec so they can be
// compared before and after a mutating call.
func snapshotKeys(spec map[string]any, keys []string) map[string]any {
	if len(keys) == 0 {
		return nil
	}
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		out[k] = spec[k]
	}
	return out
}

// changedKeys returns, in stable order, the keys present in before whose
// value differs in after.
func changedKeys(before, after map[string]any) []string {
	var changed []string
	for _, k := range sortedKeys(before) {
		if !reflect.DeepEqual(before[k], after[k]) {
			changed = append(changed, k)
		}
	}
	return changed
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func resolveStrings(values []string, ctx *template.Context) ([]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		resolved, err := template.Resolve(v, ctx, template.Strict)
		if err != nil {
			return nil, err
		}
		s, ok := resolved.(string)
		if !ok {
			return nil, coreerrors.NewCoreError(coreerrors.KindConfiguration,
				fmt.Sprintf("field resolved to non-string value %v", resolved), nil)
		}
		out[i] = s
	}
	return out, nil
}
