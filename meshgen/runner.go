package meshgen

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// DefaultTool is the executable name of the image-to-mesh tool
const DefaultTool = "image2mesh"

var ErrCancelled = errors.New("mesh generation cancelled")

// Runner launches the meshing tool as a child process
type Runner struct {
	// Tool is an executable name or path, DefaultTool when empty. Bare names
	// are looked up in Parameters.ToolDir before PATH.
	Tool string
	// Status receives each line the tool prints on stdout
	Status func(line string)
}

func (r *Runner) resolve(p *Parameters) (string, error) {
	tool := r.Tool
	if tool == "" {
		tool = DefaultTool
	}
	if p.ToolDir != "" && !strings.ContainsAny(tool, `/\`) {
		candidate := filepath.Join(p.ToolDir, tool)
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
			return candidate, nil
		}
	}
	return exec.LookPath(tool)
}

// Run executes the tool and waits for it. The returned path is the mesh the
// tool was asked to write; it is an error for the file to be missing.
func (r *Runner) Run(ctx context.Context, p Parameters) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	tool, err := r.resolve(&p)
	if err != nil {
		return "", fmt.Errorf("locating mesh tool: %w", err)
	}

	cmd := exec.CommandContext(ctx, tool, p.Args()...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", err
	}
	if err = cmd.Start(); err != nil {
		return "", fmt.Errorf("starting %s: %w", tool, err)
	}
	sc := bufio.NewScanner(stdout)
	for sc.Scan() {
		if r.Status != nil {
			r.Status(sc.Text())
		}
	}
	err = cmd.Wait()
	if ctx.Err() != nil {
		return "", fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 512 {
			msg = "..." + msg[len(msg)-512:]
		}
		return "", fmt.Errorf("%s: %w: %s", filepath.Base(tool), err, msg)
	}

	out := p.OutputPath()
	if _, err = os.Stat(out); err != nil {
		return "", fmt.Errorf("%s finished without writing %s", filepath.Base(tool), out)
	}
	return out, nil
}
