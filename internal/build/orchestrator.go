// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Forgechat Contributors

// Package build invokes the external compiler toolchain to turn
// submitted plugin source into loadable shared-library artifacts.
package build

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/forgechat/forgechat/internal/observability"
	"github.com/forgechat/forgechat/internal/plugin"
)

// CodeBuildFailure marks a compiler invocation that produced diagnostics
// instead of an artifact.
const CodeBuildFailure = "BUILD_FAILURE"

// DefaultTimeout bounds a single compiler invocation.
const DefaultTimeout = 2 * time.Minute

// DefaultArgv is the compiler command template. The placeholders {src}
// and {out} are replaced with the temp source path and the artifact
// output path.
var DefaultArgv = []string{"go", "build", "-buildmode=plugin", "-o", "{out}", "{src}"}

// Runner executes one external compiler invocation and returns its
// combined stdout/stderr.
type Runner interface {
	Run(ctx context.Context, argv []string) ([]byte, error)
}

// ExecRunner runs the compiler as a subprocess.
type ExecRunner struct{}

// Run executes argv with combined output capture.
func (ExecRunner) Run(ctx context.Context, argv []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	out, err := cmd.CombinedOutput()
	return out, err //nolint:wrapcheck // caller wraps with build context
}

// Result reports one completed build.
type Result struct {
	ArtifactPath string
	Output       string // compiler diagnostics, verbatim
}

// Orchestrator turns submitted plugin source into compiled artifacts in
// the plugin directory.
type Orchestrator struct {
	dir     string
	argv    []string
	timeout time.Duration
	runner  Runner
}

// NewOrchestrator creates a build orchestrator over the plugin
// directory. A nil argv selects DefaultArgv; a nil runner selects the
// subprocess-backed ExecRunner.
func NewOrchestrator(dir string, argv []string, runner Runner) *Orchestrator {
	if len(argv) == 0 {
		argv = DefaultArgv
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Orchestrator{
		dir:     dir,
		argv:    argv,
		timeout: DefaultTimeout,
		runner:  runner,
	}
}

// Compile writes source to a temp file in the plugin directory, runs the
// configured compiler, and returns the artifact path with the compiler's
// diagnostics. The temp source is removed whether or not the build
// succeeds; an interrupted process leaves at most a temp_*.go file that
// the startup sweep reclaims.
func (o *Orchestrator) Compile(ctx context.Context, name, source string) (*Result, error) {
	tempSrc := filepath.Join(o.dir, "temp_"+name+".go")
	artifact := filepath.Join(o.dir, name+plugin.LibExt())

	if err := os.WriteFile(tempSrc, []byte(source), 0o644); err != nil {
		observability.RecordBuild("error")
		return nil, oops.Code(CodeBuildFailure).
			With("source", tempSrc).
			Wrapf(err, "could not stage plugin source")
	}
	defer func() {
		if err := os.Remove(tempSrc); err != nil && !os.IsNotExist(err) {
			slog.Warn("could not remove temp source", "source", tempSrc, "error", err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	argv := expandArgv(o.argv, tempSrc, artifact)
	out, err := o.runner.Run(ctx, argv)
	diagnostics := string(out)
	if err != nil {
		observability.RecordBuild("error")
		return nil, oops.Code(CodeBuildFailure).
			With("plugin", name).
			With("output", diagnostics).
			Wrapf(err, "compiler failed for %s", name)
	}

	observability.RecordBuild("ok")
	slog.Info("plugin compiled", "plugin", name, "artifact", filepath.Base(artifact))
	return &Result{ArtifactPath: artifact, Output: diagnostics}, nil
}

// Diagnostics extracts the verbatim compiler output carried by a
// BUILD_FAILURE error, if any.
func Diagnostics(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	if out, ok := oopsErr.Context()["output"].(string); ok {
		return out
	}
	return ""
}

func expandArgv(template []string, src, out string) []string {
	argv := make([]string, len(template))
	for i, arg := range template {
		arg = strings.ReplaceAll(arg, "{src}", src)
		arg = strings.ReplaceAll(arg, "{out}", out)
		argv[i] = arg
	}
	return argv
}
