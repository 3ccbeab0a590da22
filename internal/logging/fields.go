package logging

// Field name constants for structured logging.
const (
	FieldError     = "error"
	FieldURI       = "uri"
	FieldPath      = "path"
	FieldVersion   = "version"
	FieldEngine    = "engine"
	FieldConfig    = "config"
	FieldMethod    = "method"
	FieldDocuments = "documents"
	FieldFindings  = "findings"
	FieldWorkspace = "workspace"
	FieldCommit    = "commit"
	FieldBuilt     = "built"
)
