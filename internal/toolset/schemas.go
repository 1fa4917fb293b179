package toolset

import "encoding/json"

var (
	schemaReviewCode = json.RawMessage(`{
  "type": "object",
  "properties": {
    "file_path": {"type": "string", "minLength": 1, "description": "Path to the file to review"},
    "review_type": {"type": "string", "description": "security, performance, style or general (default)"}
  },
  "required": ["file_path"]
}`)

	schemaGenerateTests = json.RawMessage(`{
  "type": "object",
  "properties": {
    "source_file": {"type": "string", "minLength": 1, "description": "Source file to test"},
    "test_framework": {"type": "string", "description": "Testing framework (default jest)"},
    "coverage_level": {"type": "string", "description": "basic or comprehensive (default)"}
  },
  "required": ["source_file"]
}`)

	schemaSecurityAudit = json.RawMessage(`{
  "type": "object",
  "properties": {
    "target_path": {"type": "string", "minLength": 1, "description": "File or directory to audit"},
    "audit_level": {"type": "string", "enum": ["quick", "deep"], "description": "quick audits up to 10 files, deep up to 20"}
  },
  "required": ["target_path"]
}`)

	schemaPerformance = json.RawMessage(`{
  "type": "object",
  "properties": {
    "file_path": {"type": "string", "minLength": 1, "description": "File to analyze"},
    "language": {"type": "string", "minLength": 1, "description": "Programming language"}
  },
  "required": ["file_path", "language"]
}`)

	schemaQualityReport = json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_path": {"type": "string", "minLength": 1, "description": "Project directory"},
    "include_metrics": {"type": "boolean", "default": true, "description": "Include quality metrics"},
    "export_pdf": {"type": "string", "description": "Optional path of a PDF copy of the report"}
  },
  "required": ["project_path"]
}`)

	schemaAsk = json.RawMessage(`{
  "type": "object",
  "properties": {
    "prompt": {"type": "string", "minLength": 1, "description": "Prompt to send"},
    "include_all_files": {"type": "boolean", "default": false, "description": "Include all files of the working directory in context"}
  },
  "required": ["prompt"]
}`)

	schemaGenerateCode = json.RawMessage(`{
  "type": "object",
  "properties": {
    "prompt": {"type": "string", "minLength": 1, "description": "What to build or change"},
    "working_directory": {"type": "string", "description": "Directory the assistant works in (default: gateway work directory)"}
  },
  "required": ["prompt"]
}`)
)
