package fix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// CLIEngine shells out to a model CLI for each fix. The subprocess runs
// headless in its own session and must answer with a JSON document
// carrying the full replacement content.
type CLIEngine struct {
	Command string
	Model   string
	WorkDir string
	Verbose bool
}

// cliResponse is the CLI's outer JSON envelope.
type cliResponse struct {
	Type         string  `json:"type"`
	IsError      bool    `json:"is_error"`
	DurationMs   int64   `json:"duration_ms"`
	Result       string  `json:"result"`
	SessionID    string  `json:"session_id"`
	TotalCostUSD float64 `json:"total_cost_usd"`
}

// fixPayload is the inner document the model is asked to produce.
type fixPayload struct {
	Content string `json:"content"`
	Summary string `json:"summary,omitempty"`
}

// buildEnv strips nested-invocation markers from the environment.
func buildEnv(base []string) []string {
	env := make([]string, 0, len(base))
	for _, e := range base {
		if !strings.HasPrefix(e, "CLAUDECODE=") {
			env = append(env, e)
		}
	}
	return env
}

// buildArgs constructs the CLI arguments for one fix invocation.
func (e *CLIEngine) buildArgs(prompt string) []string {
	args := []string{
		"-p", prompt,
		"--output-format", "json",
	}
	if e.Model != "" {
		args = append(args, "--model", e.Model)
	}
	return args
}

// buildPrompt renders the fix request into a single instruction.
func buildPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Fix exactly one issue in the file %s.\n\n", req.File)
	fmt.Fprintf(&b, "Issue [%s/%s] at line %d: %s\n", req.Issue.Category, req.Issue.Severity, req.Issue.Line, req.Issue.Description)
	if req.Issue.Remedy != "" {
		fmt.Fprintf(&b, "Suggested remedy: %s\n", req.Issue.Remedy)
	}
	if req.Strategy != "" {
		fmt.Fprintf(&b, "Task strategy: %s\n", req.Strategy)
	}
	if req.Focus != "" {
		fmt.Fprintf(&b, "Overall goal: %s\n", req.Focus)
	}
	b.WriteString("\nCurrent file content:\n```\n")
	b.Write(req.Content)
	b.WriteString("\n```\n\n")
	b.WriteString(`Respond with only a JSON object {"content": "<full corrected file content>", "summary": "<one line>"}. Do not modify any files yourself.`)
	return b.String()
}

// ApplyFix runs the CLI once and parses the replacement content out of
// its response. It never writes to the repository.
func (e *CLIEngine) ApplyFix(ctx context.Context, req Request) (Result, error) {
	args := e.buildArgs(buildPrompt(req))

	cmd := exec.CommandContext(ctx, e.Command, args...)
	cmd.Dir = e.WorkDir
	cmd.SysProcAttr = sessionAttr()
	cmd.Env = buildEnv(os.Environ())

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if e.Verbose {
		fmt.Fprintf(os.Stderr, "[fix] running: %s for %s\n", e.Command, req.File)
	}

	if err := cmd.Run(); err != nil {
		return Result{}, fmt.Errorf("fix engine invocation failed: %w\nstderr: %s", err, stderr.String())
	}

	var resp cliResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return Result{}, fmt.Errorf("fix engine returned non-JSON output: %w\nraw: %s", err, stdout.String())
	}
	if resp.IsError {
		return Result{}, fmt.Errorf("%w: %s", ErrNoFix, resp.Result)
	}

	payload, err := parsePayload(resp.Result)
	if err != nil {
		return Result{}, err
	}
	return Result{
		ModifiedContent: []byte(payload.Content),
		Summary:         payload.Summary,
	}, nil
}

// parsePayload extracts the fix document from the model's answer. The
// answer may be the bare JSON object or wrap it in prose or a fence.
func parsePayload(text string) (fixPayload, error) {
	var p fixPayload
	trimmed := strings.TrimSpace(text)
	if err := json.Unmarshal([]byte(trimmed), &p); err == nil && p.Content != "" {
		return p, nil
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start != -1 && end > start {
		if err := json.Unmarshal([]byte(trimmed[start:end+1]), &p); err == nil && p.Content != "" {
			return p, nil
		}
	}
	return fixPayload{}, fmt.Errorf("%w: response carried no content document", ErrNoFix)
}

// Validate checks the CLI binary is reachable before a session starts.
func (e *CLIEngine) Validate() error {
	cmd := exec.Command(e.Command, "--version")
	cmd.Env = buildEnv(os.Environ())
	if _, err := cmd.Output(); err != nil {
		return fmt.Errorf("fix engine CLI not found at %q: %w", e.Command, err)
	}
	return nil
}
