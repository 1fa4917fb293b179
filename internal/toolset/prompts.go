package toolset

import (
	"fmt"
	"strings"
	"text/template"
)

var prompts = template.Must(template.New("prompts").Parse(`
{{define "review_security"}}Perform a thorough security review of this code. Look for:
- vulnerabilities and potential exploits
- input validation gaps
- authentication and authorization flaws
- data exposure risks
- injection vectors
- cryptographic weaknesses
- access control problems

File: {{.Path}}

Code:
` + "```" + `
{{.Code}}
` + "```" + `

Give concrete security recommendations and fixes.{{end}}

{{define "review_performance"}}Analyze this code for performance problems and optimization opportunities:
- algorithmic complexity
- memory usage
- I/O efficiency
- database query patterns
- caching opportunities
- resource management
- scalability

File: {{.Path}}

Code:
` + "```" + `
{{.Code}}
` + "```" + `

Give concrete performance improvements.{{end}}

{{define "review_style"}}Review this code for style, readability and idiomatic use of the language:
- organization and structure
- naming
- documentation and comments
- duplication
- design patterns
- language conventions
- maintainability

File: {{.Path}}

Code:
` + "```" + `
{{.Code}}
` + "```" + `

Give concrete style recommendations.{{end}}

{{define "review_general"}}Perform a complete code review covering:
- code quality and organization
- security vulnerabilities
- performance
- style and conventions
- maintainability
- testability
- documentation

File: {{.Path}}

Code:
` + "```" + `
{{.Code}}
` + "```" + `

Give a thorough analysis with specific recommendations.{{end}}

{{define "generate_tests"}}Generate {{.CoverageLevel}} test cases for this code using {{.Framework}}.

Requirements:
- thorough unit tests
- edge cases and boundary conditions
- error paths
- setup and teardown where needed
- descriptive test names
- integration tests where they make sense

Source File: {{.Path}}
Testing Framework: {{.Framework}}
Coverage Level: {{.CoverageLevel}}

Source Code:
` + "```" + `
{{.Code}}
` + "```" + `

Return complete, runnable test code only.{{end}}

{{define "security_audit"}}Audit this file for security issues.

Check for:
- SQL injection
- cross-site scripting
- authentication bypass
- authorization flaws
- input validation problems
- data exposure
- cryptographic weaknesses
- file system misuse
- network security issues
- risky dependencies

File: {{.Path}}

Code:
` + "```" + `
{{.Code}}
` + "```" + `

List each finding with a severity level and a remediation.{{end}}

{{define "performance_analysis"}}Analyze this {{.Language}} code for performance bottlenecks.

Areas:
- algorithmic complexity (Big O)
- memory usage
- I/O efficiency
- database access
- caching
- resource management
- concurrency and parallelism
- {{.Language}}-specific optimizations
- scalability
- what to profile

File: {{.Path}}
Language: {{.Language}}

Code:
` + "```" + `
{{.Code}}
` + "```" + `

Give specific improvements with before/after examples where useful.{{end}}

{{define "code_quality_report"}}Analyze this project and write a code quality report.

Project Path: {{.Path}}
Include Metrics: {{.IncludeMetrics}}

Project Structure:
{{.Structure}}

Key Configuration Files:
{{.KeyFiles}}

Cover:

1. Architecture: structure, design patterns, separation of concerns, modularity.
{{- if .IncludeMetrics}}
2. Metrics: estimated complexity, maintainability, technical debt indicators, documentation coverage.
{{- end}}
3. Conventions: language practices, security practices, performance, testing strategy.
4. Recommendations: priority issues, refactoring opportunities, infrastructure, workflow.
5. Risks: security, performance bottlenecks, maintenance, scalability.

Give actionable recommendations with priority levels.{{end}}
`))

type sourceData struct {
	Path          string
	Code          string
	Framework     string
	CoverageLevel string
	Language      string
}

type qualityData struct {
	Path           string
	IncludeMetrics bool
	Structure      string
	KeyFiles       string
}

// reviewTypes maps review_type values to templates; unknown values fall back
// to the general review.
var reviewTypes = map[string]string{
	"security":    "review_security",
	"performance": "review_performance",
	"style":       "review_style",
	"general":     "review_general",
}

func renderPrompt(name string, data any) (string, error) {
	var b strings.Builder
	if err := prompts.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", name, err)
	}
	return b.String(), nil
}
