package toolset

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/hyperifyio/toolgate/internal/config"
	"github.com/hyperifyio/toolgate/internal/tools"
)

const (
	qualityTimeout = 150 * time.Second

	treeFilesPerDir = 10
	treeMaxFiles    = 100
	treeMaxLines    = 100
	keyFileLimit    = 5
	keyFileBytes    = 2000
)

// keyFileNames are manifest files worth showing to the reviewer, in priority
// order; markdown files come after them.
var keyFileNames = []string{"package.json", "requirements.txt", "pom.xml", "Cargo.toml", "go.mod"}

func (ts *Toolset) codeQualityReport(ctx context.Context, args map[string]any) tools.ToolCallResult {
	project := argString(args, "project_path", "")
	includeMetrics := argBool(args, "include_metrics", true)
	root := ts.resolvePath(project)
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return invalidArgs("project path not found: %s", project)
	}
	structure, files, err := projectTree(root)
	if err != nil {
		return invalidArgs("cannot scan %s: %v", project, err)
	}
	prompt, err := renderPrompt("code_quality_report", qualityData{
		Path:           project,
		IncludeMetrics: includeMetrics,
		Structure:      structure,
		KeyFiles:       keyFilesExcerpt(root, files),
	})
	if err != nil {
		return invalidArgs("%v", err)
	}
	res := ts.runPrompt(ctx, "code_quality_report", config.ProgramReview, prompt, nil, qualityTimeout)
	if res.IsError {
		return failed("quality report", res)
	}
	report := res.Content
	res.Content = fmt.Sprintf("Code quality report generated\n\nProject: %s\nMetrics Included: %t\n\nReport:\n%s", project, includeMetrics, report)

	if out := argString(args, "export_pdf", ""); out != "" {
		pdfPath := ts.resolvePath(out)
		if err := writeReportPDF(pdfPath, "Code quality report: "+project, report); err != nil {
			ts.logger.Warn("pdf export failed", "path", pdfPath, "error", err)
			res.Content += fmt.Sprintf("\n\nNote: PDF export failed (%v)", err)
		} else {
			res.Content += "\n\nPDF: " + pdfPath
		}
	}
	return res
}

// projectTree renders an indented listing of root, top-down in lexical order,
// and returns every regular file seen (relative, slash separated).
func projectTree(root string) (string, []string, error) {
	var lines, files []string
	shown := 0
	truncated := false
	var walk func(dir string, depth int) error
	walk = func(dir string, depth int) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if depth == 0 {
				return err
			}
			return nil
		}
		lines = append(lines, strings.Repeat("  ", depth)+filepath.Base(dir)+"/")
		indent := strings.Repeat("  ", depth+1)
		perDir := 0
		var subdirs []string
		for _, e := range entries {
			if e.IsDir() {
				if _, skip := skipDirs[e.Name()]; !skip {
					subdirs = append(subdirs, e.Name())
				}
				continue
			}
			if !e.Type().IsRegular() {
				continue
			}
			rel, _ := filepath.Rel(root, filepath.Join(dir, e.Name()))
			files = append(files, filepath.ToSlash(rel))
			if truncated || perDir >= treeFilesPerDir {
				continue
			}
			lines = append(lines, indent+e.Name())
			perDir++
			shown++
			if shown > treeMaxFiles {
				lines = append(lines, indent+"... (truncated)")
				truncated = true
			}
		}
		for _, name := range subdirs {
			if truncated {
				break
			}
			if err := walk(filepath.Join(dir, name), depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root, 0); err != nil {
		return "", nil, err
	}
	if len(lines) > treeMaxLines {
		lines = lines[:treeMaxLines]
	}
	return strings.Join(lines, "\n"), files, nil
}

// keyFilesExcerpt returns the heads of the first few key files.
func keyFilesExcerpt(root string, files []string) string {
	var picked []string
	for _, name := range keyFileNames {
		for _, f := range files {
			if filepath.Base(f) == name {
				picked = append(picked, f)
			}
		}
	}
	var md []string
	for _, f := range files {
		if strings.EqualFold(filepath.Ext(f), ".md") {
			md = append(md, f)
		}
	}
	sort.Strings(md)
	picked = append(picked, md...)
	if len(picked) > keyFileLimit {
		picked = picked[:keyFileLimit]
	}

	var b strings.Builder
	for _, f := range picked {
		head, err := readHead(filepath.Join(root, filepath.FromSlash(f)), keyFileBytes)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "\n\n%s:\n%s", f, head)
	}
	return b.String()
}

func readHead(path string, n int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := f.Close(); err != nil {
			_ = err
		}
	}()
	b, err := io.ReadAll(io.LimitReader(f, n))
	if err != nil && err != io.EOF {
		return "", err
	}
	return string(b), nil
}

// writeReportPDF renders text as a simple A4 document.
func writeReportPDF(path, title, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetTitle(title, true)
	doc.SetCreator("toolgate", true)
	tr := doc.UnicodeTranslatorFromDescriptor("")
	doc.AddPage()
	doc.SetFont("Helvetica", "B", 14)
	doc.MultiCell(0, 7, tr(title), "", "L", false)
	doc.Ln(4)
	doc.SetFont("Courier", "", 9)
	doc.MultiCell(0, 4.5, tr(text), "", "L", false)
	if err := doc.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
