// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/pdiddy/paper-triage/pkg/types"
)

// executor abstracts command execution for testing.
type executor interface {
	Run(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (osExecutor) Run(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = 2 * time.Second
	return cmd.Run()
}

// CommandBackend runs an external program per analysis. The request is
// written to the program's stdin as JSON; the program prints its JSON
// response on stdout. A non-zero exit is a transient failure.
type CommandBackend struct {
	paper      []string
	repository []string
	exec       executor
}

// NewCommandBackend builds a backend from the configured command lines.
func NewCommandBackend(cfg types.CommandConfig) (*CommandBackend, error) {
	return newCommandBackend(cfg, osExecutor{})
}

func newCommandBackend(cfg types.CommandConfig, exec executor) (*CommandBackend, error) {
	if len(cfg.Paper) == 0 {
		return nil, fmt.Errorf("command backend requires analyzer.command.paper")
	}
	if len(cfg.Repository) == 0 {
		return nil, fmt.Errorf("command backend requires analyzer.command.repository")
	}
	return &CommandBackend{paper: cfg.Paper, repository: cfg.Repository, exec: exec}, nil
}

// AnalyzePaper runs the paper command.
func (c *CommandBackend) AnalyzePaper(ctx context.Context, req PaperRequest) (types.PaperAnalysis, error) {
	out, err := c.invoke(ctx, c.paper, req)
	if err != nil {
		return types.PaperAnalysis{}, err
	}
	return DecodePaper(out)
}

// AnalyzeRepository runs the repository command.
func (c *CommandBackend) AnalyzeRepository(ctx context.Context, req RepositoryRequest) (types.RepositoryAnalysis, error) {
	out, err := c.invoke(ctx, c.repository, req)
	if err != nil {
		return types.RepositoryAnalysis{}, err
	}
	return DecodeRepository(out)
}

func (c *CommandBackend) invoke(ctx context.Context, argv []string, req any) ([]byte, error) {
	in, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %w", ErrPermanent, err)
	}

	var stdout, stderr bytes.Buffer
	err = c.exec.Run(ctx, argv[0], argv[1:], bytes.NewReader(in), &stdout, &stderr)
	if err == nil {
		return stdout.Bytes(), nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("running %s: %w", argv[0], ctxErr)
	}
	if errors.Is(err, exec.ErrNotFound) {
		return nil, fmt.Errorf("%w: running %s: %w", ErrPermanent, argv[0], err)
	}
	msg := strings.TrimSpace(stderr.String())
	if msg == "" {
		return nil, fmt.Errorf("%w: running %s: %w", ErrTransient, argv[0], err)
	}
	return nil, fmt.Errorf("%w: running %s: %w: %s", ErrTransient, argv[0], err, msg)
}
