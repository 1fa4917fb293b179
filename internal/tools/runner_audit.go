package tools

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// maxAuditArgLen caps each argv element in the audit log; prompts embed
// whole source files.
const maxAuditArgLen = 256

// Auditor appends one NDJSON line per execution to <Dir>/YYYYMMDD.log.
// A nil Auditor or an empty Dir disables auditing.
type Auditor struct {
	Dir      string
	Redactor *Redactor

	mu sync.Mutex
}

// NewAuditor returns an auditor writing under dir.
func NewAuditor(dir string, redactor *Redactor) *Auditor {
	return &Auditor{Dir: dir, Redactor: redactor}
}

type auditEntry struct {
	TS          string   `json:"ts"`
	ID          string   `json:"id"`
	Tool        string   `json:"tool,omitempty"`
	Program     string   `json:"program"`
	Path        string   `json:"path,omitempty"`
	Argv        []string `json:"argv"`
	CWD         string   `json:"cwd"`
	Kind        string   `json:"kind"`
	Exit        int      `json:"exit"`
	MS          int64    `json:"ms"`
	StdoutBytes int      `json:"stdoutBytes"`
	StderrBytes int      `json:"stderrBytes"`
	Truncated   bool     `json:"truncated"`
	EnvKeys     []string `json:"envKeys,omitempty"`
}

// Record writes an audit line for one run. Failures are swallowed; auditing
// never affects the tool result.
func (a *Auditor) Record(spec ExecutionSpec, out ExecutionOutcome) {
	if a == nil || a.Dir == "" {
		return
	}
	cwd := spec.WorkingDirectory
	if cwd == "" {
		if wd, err := os.Getwd(); err == nil {
			cwd = wd
		}
	}
	argv := make([]string, 0, len(spec.Argv))
	for _, arg := range spec.Argv {
		// Redact before cutting so a secret straddling the cap leaves no prefix.
		arg = a.Redactor.String(arg)
		if len(arg) > maxAuditArgLen {
			arg = arg[:maxAuditArgLen] + "..."
		}
		argv = append(argv, arg)
	}
	envKeys := make([]string, 0, len(spec.ExtraEnv))
	for k := range spec.ExtraEnv {
		envKeys = append(envKeys, k)
	}
	sort.Strings(envKeys)

	entry := auditEntry{
		TS:          timeNow().UTC().Format(time.RFC3339Nano),
		ID:          uuid.NewString(),
		Tool:        spec.Tool,
		Program:     out.Program,
		Path:        a.Redactor.String(out.Path),
		Argv:        argv,
		CWD:         a.Redactor.String(cwd),
		Kind:        out.Kind.String(),
		Exit:        exitCodeOrMinusOne(out.ExitCode),
		MS:          out.Elapsed.Milliseconds(),
		StdoutBytes: len(out.Stdout),
		StderrBytes: len(out.Stderr),
		Truncated:   out.Truncated,
		EnvKeys:     envKeys,
	}
	if err := a.appendLine(entry); err != nil {
		_ = err
	}
}

func (a *Auditor) appendLine(entry any) error {
	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := os.MkdirAll(a.Dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(a.Dir, timeNow().UTC().Format("20060102")+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if err := f.Close(); err != nil {
			_ = err
		}
	}()
	_, err = f.Write(append(b, '\n'))
	return err
}
