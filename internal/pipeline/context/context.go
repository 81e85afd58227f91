// Package context provides the state of one pipeline run: the request, the
// paths of its intermediate artifacts, and the logger and runner it owns.
package context

import (
	stdctx "context"
	"path/filepath"

	"github.com/apex/log"
	"github.com/apkcloner/apkclone/internal/metrics"
	"github.com/apkcloner/apkclone/internal/pipeline/config"
	"github.com/apkcloner/apkclone/internal/process"
	"github.com/google/uuid"
)

// Request asks for Source to be re-emitted under Package into OutputDir.
type Request struct {
	Source    string `json:"source"`
	Package   string `json:"package"`
	OutputDir string `json:"output_dir"`
}

// Context carries along one pipeline run.
type Context struct {
	stdctx.Context
	Config  config.Config
	Log     log.Interface
	Runner  *process.Runner
	Metrics metrics.Metrics
	RunID   string

	// Request with Source and OutputDir normalized.
	Request Request

	DecompiledDir string
	RebuiltAPK    string
	SignedAPK     string
	// SigningAPK is where jarsigner writes; it becomes SignedAPK once signing succeeds.
	SigningAPK string
}

// New context. Paths are derived from req as given; callers normalize them
// first.
func New(parent stdctx.Context, conf config.Config, l log.Interface, req Request) *Context {
	id := uuid.NewString()
	if l == nil {
		l = log.Log
	}
	l = l.WithFields(log.Fields{
		"run":     id[:8],
		"package": req.Package,
	})
	runner := process.NewRunner(l)
	runner.Redact = conf.Secrets()
	return &Context{
		Context:       parent,
		Config:        conf,
		Log:           l,
		Runner:        runner,
		Metrics:       metrics.Noop{},
		RunID:         id,
		Request:       req,
		DecompiledDir: filepath.Join(req.OutputDir, config.DecompiledDirName),
		RebuiltAPK:    filepath.Join(req.OutputDir, config.RebuiltName),
		SignedAPK:     filepath.Join(req.OutputDir, SignedName(req.Source)),
		SigningAPK:    filepath.Join(req.OutputDir, "."+SignedName(req.Source)+"."+id[:8]+".part"),
	}
}

// Manifest is the decoded manifest inside DecompiledDir.
func (ctx *Context) Manifest() string {
	return filepath.Join(ctx.DecompiledDir, "AndroidManifest.xml")
}

// SignedName is the file name of the signed result for source.
func SignedName(source string) string {
	return config.SignedPrefix + filepath.Base(source)
}

// Tool builds the invocation of t with the stage arguments appended to the
// configured prefix arguments.
func (ctx *Context) Tool(t config.Tool, timeout int, args ...string) process.Command {
	return process.Command{
		Name:    t.Command,
		Args:    append(append([]string{}, t.Args...), args...),
		Env:     t.Env,
		Timeout: config.Seconds(timeout),
	}
}
