package tools

import (
	"regexp"
	"strings"
)

const redactedMark = "***REDACTED***"

// Redactor masks sensitive substrings before they reach the audit log.
type Redactor struct {
	regexps  []*regexp.Regexp
	literals []string
}

// NewRedactor builds redaction patterns from a comma/semicolon separated list
// (each entry compiled as a regex, or used literally when it does not compile)
// and from secret values that must never be written out.
func NewRedactor(patterns string, secrets []string) *Redactor {
	r := &Redactor{}
	fields := strings.FieldsFunc(patterns, func(c rune) bool { return c == ',' || c == ';' })
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if rx, err := regexp.Compile(f); err == nil {
			r.regexps = append(r.regexps, rx)
		} else {
			r.literals = append(r.literals, f)
		}
	}
	for _, s := range secrets {
		if strings.TrimSpace(s) != "" {
			r.literals = append(r.literals, s)
		}
	}
	return r
}

// String masks configured patterns and secret values in s.
func (r *Redactor) String(s string) string {
	if r == nil || s == "" {
		return s
	}
	for _, rx := range r.regexps {
		s = rx.ReplaceAllString(s, redactedMark)
	}
	for _, lit := range r.literals {
		s = strings.ReplaceAll(s, lit, redactedMark)
	}
	return s
}
