package tools

import (
	"fmt"
	"strings"
)

// Classify maps an outcome to a caller-facing result. It is pure and total:
// identical outcomes always produce identical results.
func Classify(o ExecutionOutcome) ToolCallResult {
	return ClassifyWithPolicy(o, ExitPolicy{})
}

// ClassifyWithPolicy is Classify with a per-tool exit policy. Non-zero exit
// codes listed in policy.FindingsExitCodes are reported as successful
// findings rather than failures.
func ClassifyWithPolicy(o ExecutionOutcome, policy ExitPolicy) ToolCallResult {
	switch o.Kind {
	case KindNone:
		return ToolCallResult{Content: strings.TrimSpace(o.Stdout)}
	case KindNotFound:
		return errorResult(o.Kind, notFoundMessage(o))
	case KindTimeout:
		var b strings.Builder
		fmt.Fprintf(&b, "%s timed out after %s", programLabel(o), o.Timeout)
		writeStreams(&b, "partial stdout", o.Stdout, "partial stderr", o.Stderr)
		return errorResult(o.Kind, b.String())
	case KindNonZeroExit:
		code := exitCodeOrMinusOne(o.ExitCode)
		if o.ExitCode != nil && policy.isFinding(code) {
			var b strings.Builder
			b.WriteString(strings.TrimSpace(o.Stdout))
			if s := strings.TrimSpace(o.Stderr); s != "" {
				if b.Len() > 0 {
					b.WriteString("\n\n")
				}
				b.WriteString(s)
			}
			return ToolCallResult{Content: b.String()}
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%s exited with code %d", programLabel(o), code)
		writeStreams(&b, "stdout", o.Stdout, "stderr", o.Stderr)
		return errorResult(o.Kind, b.String())
	case KindPermissionDenied:
		return errorResult(o.Kind, fmt.Sprintf(
			"permission denied launching %s: %s\nhint: the target is not marked executable for this user; check its mode (chmod +x) and ownership",
			programLabel(o), o.Detail))
	case KindLaunchFailed:
		return errorResult(o.Kind, fmt.Sprintf(
			"failed to launch %s: %s\nhint: the executable may have been removed or reinstalled, or the working directory does not exist",
			programLabel(o), o.Detail))
	case KindCanceled:
		var b strings.Builder
		fmt.Fprintf(&b, "%s was canceled before completion", programLabel(o))
		writeStreams(&b, "partial stdout", o.Stdout, "partial stderr", o.Stderr)
		return errorResult(o.Kind, b.String())
	case KindUnknownTool:
		return errorResult(o.Kind, "unknown tool: "+o.Detail)
	case KindInvalidArguments:
		return errorResult(o.Kind, "invalid arguments: "+o.Detail)
	case KindInternal:
		return errorResult(o.Kind, "internal error: "+o.Detail)
	default:
		return errorResult(o.Kind, fmt.Sprintf("unexpected outcome %s: %s", o.Kind, o.Detail))
	}
}

func (p ExitPolicy) isFinding(code int) bool {
	for _, c := range p.FindingsExitCodes {
		if c != 0 && c == code {
			return true
		}
	}
	return false
}

func errorResult(kind ErrorKind, content string) ToolCallResult {
	return ToolCallResult{IsError: true, Content: content, Kind: kind}
}

func programLabel(o ExecutionOutcome) string {
	if o.Path != "" {
		return o.Path
	}
	if o.Program != "" {
		return o.Program
	}
	return "tool process"
}

func notFoundMessage(o ExecutionOutcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "executable %q not found", o.Program)
	if len(o.Tried) == 0 {
		b.WriteString("; no locations were searched")
		return b.String()
	}
	b.WriteString("; searched:")
	for _, p := range o.Tried {
		b.WriteString("\n  ")
		b.WriteString(p)
	}
	return b.String()
}

func writeStreams(b *strings.Builder, outLabel, stdout, errLabel, stderr string) {
	fmt.Fprintf(b, "\n--- %s ---\n%s", outLabel, strings.TrimRight(stdout, "\n"))
	fmt.Fprintf(b, "\n--- %s ---\n%s", errLabel, strings.TrimRight(stderr, "\n"))
}
