// Package pipe defines what a pipeline stage reports back: nothing on success
// or a *Failure describing why the run stopped.
package pipe

import (
	"errors"
	"fmt"
)

//go:generate stringer -type=Kind

// Kind classifies why a pipeline run failed.
type Kind int

const (
	// Internal is an unexpected error inside a stage (I/O, recovered panic).
	Internal Kind = iota
	// ExternalToolError is a non-zero exit from apktool or jarsigner.
	ExternalToolError
	// Timeout is a stage that exceeded its deadline.
	Timeout
	// MissingManifest is a decompile that produced no AndroidManifest.xml.
	MissingManifest
	// ManifestParseError is a manifest that is malformed or lacks the package attribute.
	ManifestParseError
	// ArchiveReadError is an original APK that cannot be read as a zip archive.
	ArchiveReadError
	// InputNotFound is a source APK that does not exist.
	InputNotFound
	// InvalidRequest is a request rejected before any stage ran.
	InvalidRequest
)

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Failure is the structured outcome of a failed stage.
type Failure struct {
	Kind    Kind   `json:"kind"`
	Stage   string `json:"stage,omitempty"`
	Message string `json:"message"`
	// Output holds the captured stdout+stderr of a failed external tool,
	// verbatim, for the caller to classify.
	Output string `json:"output,omitempty"`

	err error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Stage != "" {
		return fmt.Sprintf("%s: %s: %s", f.Stage, f.Kind, f.Message)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Unwrap returns the underlying cause, if any.
func (f *Failure) Unwrap() error {
	return f.err
}

// Fail returns a failure of the given kind.
func Fail(kind Kind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns a failure of the given kind caused by err.
func Wrap(kind Kind, err error, msg string) *Failure {
	if err == nil {
		return &Failure{Kind: kind, Message: msg}
	}
	return &Failure{Kind: kind, Message: fmt.Sprintf("%s: %v", msg, err), err: err}
}

// WithOutput attaches captured tool output to the failure.
func (f *Failure) WithOutput(output string) *Failure {
	f.Output = output
	return f
}

// AsFailure extracts a *Failure from err. Errors that are not failures are
// reported as Internal.
func AsFailure(err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return Wrap(Internal, err, "unexpected error")
}

// IsKind reports whether err is a failure of the given kind.
func IsKind(err error, kind Kind) bool {
	var f *Failure
	return errors.As(err, &f) && f.Kind == kind
}
