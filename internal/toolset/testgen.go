package toolset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperifyio/toolgate/internal/config"
	"github.com/hyperifyio/toolgate/internal/tools"
)

const generateTestsTimeout = 120 * time.Second

func (ts *Toolset) generateTests(ctx context.Context, args map[string]any) tools.ToolCallResult {
	source := argString(args, "source_file", "")
	framework := argString(args, "test_framework", "jest")
	coverage := argString(args, "coverage_level", "comprehensive")
	code, err := readSource(ts.resolvePath(source))
	if err != nil {
		return invalidArgs("cannot read source file %s: %v", source, err)
	}
	prompt, err := renderPrompt("generate_tests", sourceData{Path: source, Code: code, Framework: framework, CoverageLevel: coverage})
	if err != nil {
		return invalidArgs("%v", err)
	}
	res := ts.runPrompt(ctx, "generate_tests", config.ProgramReview, prompt, nil, generateTestsTimeout)
	if res.IsError {
		return failed("test generation", res)
	}

	testPath := filepath.Join(ts.workDir, "tests", testFileName(source))
	header := fmt.Sprintf("Source: %s\nFramework: %s\nCoverage: %s", source, framework, coverage)
	if err := writeGenerated(testPath, res.Content); err != nil {
		ts.logger.Warn("could not save generated tests", "path", testPath, "error", err)
		res.Content = fmt.Sprintf("Test cases generated\n\n%s\n\nNote: could not save to file (%v)\n\nGenerated Tests:\n%s", header, err, res.Content)
		return res
	}
	res.Content = fmt.Sprintf("Test cases generated and saved\n\n%s\nTest File: %s\n\nGenerated Tests:\n%s", header, testPath, res.Content)
	return res
}

// testFileName derives the conventional test file name for source.
func testFileName(source string) string {
	base := filepath.Base(source)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	switch ext {
	case ".js", ".ts", ".jsx", ".tsx":
		return stem + ".test" + ext
	case ".py":
		return "test_" + stem + ".py"
	case ".java":
		return stem + "Test.java"
	default:
		return stem + "_test" + ext
	}
}

func writeGenerated(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
