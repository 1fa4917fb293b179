package toolset

import (
	"context"
	"os"
	"time"

	"github.com/hyperifyio/toolgate/internal/config"
	"github.com/hyperifyio/toolgate/internal/tools"
)

const (
	askTimeout     = 120 * time.Second
	codegenTimeout = 300 * time.Second
)

func (ts *Toolset) ask(ctx context.Context, args map[string]any) tools.ToolCallResult {
	prompt := argString(args, "prompt", "")
	var extra []string
	if argBool(args, "include_all_files", false) {
		extra = append(extra, "--all_files")
	}
	res := ts.runPrompt(ctx, "ask_gemini", config.ProgramReview, prompt, extra, askTimeout)
	if res.IsError {
		return failed("request", res)
	}
	res.Content = "Response:\n\n" + res.Content
	return res
}

func (ts *Toolset) generateCode(ctx context.Context, args map[string]any) tools.ToolCallResult {
	prompt := argString(args, "prompt", "")
	p := ts.cfg.Programs[config.ProgramCodegen]
	argv := []string{prompt}
	if p.PromptFlag != "" {
		argv = []string{p.PromptFlag, prompt}
	}
	spec, err := ts.programSpec("generate_code", config.ProgramCodegen, argv, codegenTimeout)
	if err != nil {
		return tools.ToolCallResult{IsError: true, Kind: tools.KindLaunchFailed, Content: err.Error()}
	}
	if dir := argString(args, "working_directory", ""); dir != "" {
		abs := ts.resolvePath(dir)
		if info, err := os.Stat(abs); err != nil || !info.IsDir() {
			return invalidArgs("working directory not found: %s", dir)
		}
		spec.WorkingDirectory = abs
	}
	res := tools.ClassifyWithPolicy(ts.exec.Run(ctx, spec), ts.cfg.ExitPolicy("generate_code"))
	if res.IsError {
		return failed("code generation", res)
	}
	return res
}
