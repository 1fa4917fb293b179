package toolset

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperifyio/toolgate/internal/config"
	"github.com/hyperifyio/toolgate/internal/tools"
)

const (
	reviewTimeout      = 90 * time.Second
	performanceTimeout = 90 * time.Second
)

func (ts *Toolset) reviewCode(ctx context.Context, args map[string]any) tools.ToolCallResult {
	path := argString(args, "file_path", "")
	reviewType := argString(args, "review_type", "general")
	code, err := readSource(ts.resolvePath(path))
	if err != nil {
		return invalidArgs("cannot read file %s: %v", path, err)
	}
	tpl, ok := reviewTypes[reviewType]
	if !ok {
		tpl = reviewTypes["general"]
	}
	prompt, err := renderPrompt(tpl, sourceData{Path: path, Code: code})
	if err != nil {
		return invalidArgs("%v", err)
	}
	res := ts.runPrompt(ctx, "review_code", config.ProgramReview, prompt, nil, reviewTimeout)
	if res.IsError {
		return failed("code review", res)
	}
	res.Content = fmt.Sprintf("Code review completed\n\nFile: %s\nReview Type: %s\n\nAnalysis:\n%s", path, reviewType, res.Content)
	return res
}

func (ts *Toolset) performanceAnalysis(ctx context.Context, args map[string]any) tools.ToolCallResult {
	path := argString(args, "file_path", "")
	language := argString(args, "language", "")
	code, err := readSource(ts.resolvePath(path))
	if err != nil {
		return invalidArgs("cannot read file %s: %v", path, err)
	}
	prompt, err := renderPrompt("performance_analysis", sourceData{Path: path, Code: code, Language: language})
	if err != nil {
		return invalidArgs("%v", err)
	}
	res := ts.runPrompt(ctx, "performance_analysis", config.ProgramReview, prompt, nil, performanceTimeout)
	if res.IsError {
		return failed("performance analysis", res)
	}
	res.Content = fmt.Sprintf("Performance analysis completed\n\nFile: %s\nLanguage: %s\n\nAnalysis:\n%s", path, language, res.Content)
	return res
}
