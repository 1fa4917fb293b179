package toolset

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	readability "github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"
)

// maxSourceBytes caps how much of a source file is embedded in a prompt.
const maxSourceBytes = 512 << 10

// readSource returns the text of path for embedding in a prompt. HTML is
// reduced to its readable text and PDF text is extracted; everything else is
// read as-is. Content past maxSourceBytes is cut with a marker.
func readSource(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	var text string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		text, err = readHTML(path)
	case ".pdf":
		text, err = readPDF(path)
	default:
		text, err = readText(path)
	}
	if err != nil {
		return "", err
	}
	return truncateText(text, maxSourceBytes), nil
}

func readText(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := f.Close(); err != nil {
			_ = err
		}
	}()
	// One byte over the cap is enough to know truncation happened.
	b, err := io.ReadAll(io.LimitReader(f, maxSourceBytes+1))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	if bytes.IndexByte(b, 0) >= 0 {
		return "", fmt.Errorf("%s looks like a binary file", path)
	}
	return string(b), nil
}

func readHTML(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := f.Close(); err != nil {
			_ = err
		}
	}()
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	base := &url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	art, err := readability.FromReader(f, base)
	if err != nil {
		return "", fmt.Errorf("readability extract %s: %w", path, err)
	}
	var b strings.Builder
	if t := strings.TrimSpace(art.Title); t != "" {
		b.WriteString(t)
		b.WriteString("\n\n")
	}
	b.WriteString(strings.TrimSpace(art.TextContent))
	return b.String(), nil
}

func readPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			_ = err
		}
	}()
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text %s: %w", path, err)
	}
	b, err := io.ReadAll(io.LimitReader(plain, maxSourceBytes+1))
	if err != nil {
		return "", fmt.Errorf("read pdf text %s: %w", path, err)
	}
	return string(b), nil
}

// truncateText cuts s to at most limit bytes on a rune boundary.
func truncateText(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + fmt.Sprintf("\n... (truncated at %d bytes)", limit)
}
