package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sourceplane/apphost/internal/model"
	"github.com/sourceplane/apphost/internal/params"
)

// ErrRedacted is returned when a secret in the manifest was written redacted
// and the process would receive the mask instead of the value.
var ErrRedacted = errors.New("manifest holds redacted secrets")

// Runner starts a resource's process with its resolved configuration.
type Runner struct {
	WorkDir string
	Stdout  io.Writer
	Stderr  io.Writer
	DryRun  bool
}

func NewRunner(workDir string, stdout, stderr io.Writer, dryRun bool) *Runner {
	return &Runner{
		WorkDir: workDir,
		Stdout:  stdout,
		Stderr:  stderr,
		DryRun:  dryRun,
	}
}

// Run executes argv, or the resource's declared command when argv is empty,
// with the resource's env appended to the current environment.
func (r *Runner) Run(ctx context.Context, manifest *model.Manifest, name string, argv []string) error {
	if manifest == nil {
		return fmt.Errorf("manifest cannot be nil")
	}

	res, ok := manifest.Resource(name)
	if !ok {
		return fmt.Errorf("resource %s not found in manifest", name)
	}
	if res.State != "Running" {
		return fmt.Errorf("resource %s is %s, not Running", name, res.State)
	}
	if len(argv) == 0 {
		argv = res.Command
	}
	if len(argv) == 0 {
		return fmt.Errorf("resource %s declares no command and none was given", name)
	}

	fmt.Fprintf(r.Stdout, "→ Resource %s", res.Name)
	if res.Environment != "" {
		fmt.Fprintf(r.Stdout, " (%s)", res.Environment)
	}
	fmt.Fprintln(r.Stdout)

	if r.DryRun {
		for _, ev := range res.Env {
			value := ev.Value
			if ev.Secret {
				value = params.Redact(value)
			}
			fmt.Fprintf(r.Stdout, "  %s=%s\n", ev.Name, value)
		}
		fmt.Fprintf(r.Stdout, "  %s\n", strings.Join(argv, " "))
		return nil
	}

	if manifest.Metadata.Redacted {
		for _, ev := range res.Env {
			if ev.Secret {
				return fmt.Errorf("resource %s: %s: %w", name, ev.Name, ErrRedacted)
			}
		}
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = r.WorkDir
	cmd.Env = append(os.Environ(), environ(res)...)
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("resource %s command %s failed: %w", name, filepath.Base(argv[0]), err)
	}

	return nil
}

func environ(res *model.ManifestResource) []string {
	out := make([]string, 0, len(res.Env))
	for _, ev := range res.Env {
		out = append(out, ev.Name+"="+ev.Value)
	}
	return out
}
