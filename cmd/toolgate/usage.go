package main

import (
	"io"
	"strings"
)

// helpRequested returns true if any canonical help token is present.
func helpRequested(args []string) bool {
	for _, a := range args {
		if a == "--help" || a == "-h" || a == "-help" || a == "help" {
			return true
		}
	}
	return false
}

// versionRequested returns true if any canonical version token is present.
func versionRequested(args []string) bool {
	for _, a := range args {
		if a == "--version" || a == "-version" {
			return true
		}
	}
	return false
}

func printUsage(w io.Writer) {
	var b strings.Builder
	b.WriteString("toolgate: MCP server exposing local AI command-line tools\n\n")
	b.WriteString("Usage:\n  toolgate [flags]\n\n")
	b.WriteString("Speaks MCP (JSON-RPC) on stdin/stdout; logs go to stderr.\n\n")
	b.WriteString("Flags (precedence: flag > env > config file > default):\n")
	b.WriteString("  -config string\n    Path to the YAML config file (env TOOLGATE_CONFIG; default ./toolgate.yaml when present)\n")
	b.WriteString("  -log-level string\n    Log level debug|info|warn|error (env TOOLGATE_LOG_LEVEL; default info)\n")
	b.WriteString("  -log-format string\n    Log format text|json (env TOOLGATE_LOG_FORMAT; default text)\n")
	b.WriteString("  -workdir string\n    Working directory for tool processes (env TOOLGATE_WORKDIR; default current directory)\n")
	b.WriteString("  -manifest string\n    Path to a tools.json manifest of extra tools (env TOOLGATE_MANIFEST)\n")
	b.WriteString("  -secrets string\n    Path to the KEY=VALUE secrets file (env TOOLGATE_SECRETS_FILE; default .env)\n")
	b.WriteString("  -max-concurrent int\n    Maximum concurrent tool executions (env TOOLGATE_MAX_CONCURRENT; default 4)\n")
	b.WriteString("  -check\n    Run --version for every configured program, print the results and exit (non-zero when one fails)\n")
	b.WriteString("  -list-tools\n    Print the registered tools in order and exit\n")
	b.WriteString("  --version | -version\n    Print version and exit\n")
	b.WriteString("  --help | -h\n    Print this help and exit\n")
	b.WriteString("\nOther environment:\n")
	b.WriteString("  TOOLGATE_AUDIT_DIR, TOOLGATE_REDACT, TOOLGATE_DEFAULT_TIMEOUT\n")
	b.WriteString("\nExamples:\n")
	b.WriteString("  # Check that gemini and claude are reachable\n")
	b.WriteString("  toolgate -check\n\n")
	b.WriteString("  # Serve with extra tools from a manifest\n")
	b.WriteString("  toolgate -manifest ./tools.json -log-level debug\n")
	safeFprintln(w, strings.TrimRight(b.String(), "\n"))
}
