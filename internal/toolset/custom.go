package toolset

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperifyio/toolgate/internal/tools"
	"github.com/hyperifyio/toolgate/internal/tools/jsrun"
)

// Postprocess limits for manifest tools.
const (
	postprocessWall   = 2 * time.Second
	postprocessOutput = 256 << 10
)

// RegisterManifest adds operator-defined tools after the built-ins.
func (ts *Toolset) RegisterManifest(reg *tools.Registry, manifest []tools.ManifestTool) error {
	for _, mt := range manifest {
		desc := tools.ToolDescriptor{Name: mt.Name, Description: mt.Description, InputSchema: mt.Schema}
		if err := reg.Register(desc, ts.manifestHandler(mt)); err != nil {
			return fmt.Errorf("manifest: %w", err)
		}
	}
	return nil
}

func (ts *Toolset) manifestHandler(mt tools.ManifestTool) tools.HandlerFunc {
	policy := tools.ExitPolicy{FindingsExitCodes: mt.FindingsExitCodes}
	if len(policy.FindingsExitCodes) == 0 {
		policy = ts.cfg.ExitPolicy(mt.Name)
	}
	return func(ctx context.Context, args map[string]any) tools.ToolCallResult {
		argv, err := mt.RenderArgs(args)
		if err != nil {
			return invalidArgs("%v", err)
		}
		spec, err := ts.manifestSpec(mt, argv)
		if err != nil {
			return tools.ToolCallResult{IsError: true, Kind: tools.KindLaunchFailed, Content: err.Error()}
		}
		res := tools.ClassifyWithPolicy(ts.exec.Run(ctx, spec), policy)
		if res.IsError || strings.TrimSpace(mt.Postprocess) == "" {
			return res
		}
		out, err := jsrun.Transform(ctx, mt.Postprocess, res.Content, jsrun.Limits{Wall: postprocessWall, OutputBytes: postprocessOutput})
		switch {
		case errors.Is(err, jsrun.ErrOutputLimit):
			ts.logger.Warn("postprocess output truncated", "tool", mt.Name)
			return tools.ToolCallResult{Content: out + "\n... (postprocess output truncated)"}
		case err != nil:
			return tools.ToolCallResult{IsError: true, Kind: tools.KindLaunchFailed, Content: fmt.Sprintf("postprocess for %s failed: %v", mt.Name, err)}
		}
		return tools.ToolCallResult{Content: strings.TrimSpace(out)}
	}
}

// manifestSpec resolves the tool's program: a configured program name reuses
// that program's search settings, a path is probed directly, and anything
// else is searched for on the path.
func (ts *Toolset) manifestSpec(mt tools.ManifestTool, argv []string) (tools.ExecutionSpec, error) {
	var spec tools.ExecutionSpec
	if _, ok := ts.cfg.Programs[mt.Program]; ok && mt.ProgramPath == "" {
		var err error
		if spec, err = ts.programSpec(mt.Name, mt.Program, argv, mt.Timeout()); err != nil {
			return spec, err
		}
	} else {
		spec = tools.ExecutionSpec{
			Tool:             mt.Name,
			SearchName:       mt.Program,
			Argv:             argv,
			WorkingDirectory: ts.workDir,
			Timeout:          ts.cfg.ToolTimeout(mt.Name, mt.Timeout()),
			ExtraEnv:         map[string]string{},
		}
		if add := ts.cfg.PathAddition(); add != "" {
			spec.ExtraEnv["PATH"] = add
		}
		if mt.ProgramPath != "" {
			// The full path keys the resolver cache and is never searched for.
			spec.SearchName = mt.ProgramPath
			spec.CandidatePaths = []string{mt.ProgramPath}
		}
	}
	for k, v := range mt.Env {
		spec.ExtraEnv[k] = v
	}
	for _, name := range mt.SecretEnv {
		if v, ok := ts.secrets[name]; ok && v != "" {
			spec.ExtraEnv[name] = v
		}
	}
	return spec, nil
}
