package errors

// ErrorKind is the stable discriminant attached to every error the core
// surfaces. Callers (CLI, workflow runner, server) switch on Kind rather
// than on Go type so that wrapping never loses the classification.
type ErrorKind string

const (
	KindConfiguration  ErrorKind = "configuration"
	KindValidation     ErrorKind = "validation"
	KindTemplateString ErrorKind = "template_string"
	KindParameter      ErrorKind = "parameter"
	KindPlugin         ErrorKind = "plugin"
	KindRuntime        ErrorKind = "runtime"
	KindDeployment     ErrorKind = "deployment"
	KindBuild          ErrorKind = "build"
	KindTimeout        ErrorKind = "timeout"
	KindGraph          ErrorKind = "graph"
	KindWorkflowScript ErrorKind = "workflow_script"
	KindFilesystem     ErrorKind = "filesystem"
	KindInternal       ErrorKind = "internal"
)

// RemediationHint, when non-empty, points the user toward a fix. It is
// carried in CoreError.Hint and is not part of CoreError.Error's text.
type RemediationHint = string
