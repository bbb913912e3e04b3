package plz

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pyllemi/pkg/errors"
	"github.com/matzehuels/pyllemi/pkg/observability"
)

// DefaultBinary is the plz executable looked up on PATH.
const DefaultBinary = "plz"

// Defaults used when the repository's .plzconfig does not set a value.
var (
	DefaultModuleDir      = "third_party.python"
	DefaultBuildFileNames = []string{"BUILD", "BUILD.plz"}
)

// Exec runs name with args in dir and returns its stdout and stderr.
// A non-nil error means the process could not start or exited non-zero.
type Exec func(ctx context.Context, dir, name string, args ...string) (stdout, stderr []byte, err error)

// OSExec runs commands with os/exec.
func OSExec(ctx context.Context, dir, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Options configures a Client. Zero values select the defaults.
type Options struct {
	Binary string      // plz executable (default "plz")
	Dir    string      // working directory for invocations (default: current)
	Exec   Exec        // process runner (default OSExec)
	Logger *log.Logger // optional
}

// Client invokes plz. It is safe for concurrent use.
type Client struct {
	bin    string
	dir    string
	exec   Exec
	logger *log.Logger
}

// NewClient creates a Client.
func NewClient(opts Options) *Client {
	c := &Client{bin: opts.Binary, dir: opts.Dir, exec: opts.Exec, logger: opts.Logger}
	if c.bin == "" {
		c.bin = DefaultBinary
	}
	if c.exec == nil {
		c.exec = OSExec
	}
	return c
}

// WithDir returns a copy of the client that runs plz from dir.
func (c *Client) WithDir(dir string) *Client {
	cp := *c
	cp.dir = dir
	return &cp
}

// RepoRoot returns the absolute path of the repository containing the
// client's working directory. Outside a Please repository it fails with
// [errors.ErrCodeNotInRepo].
func (c *Client) RepoRoot(ctx context.Context) (string, error) {
	out, _, err := c.run(ctx, "reporoot", "query", "reporoot")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeNotInRepo, err, "not within a Please repository")
	}
	root := strings.TrimSpace(string(out))
	if root == "" {
		return "", errors.New(errors.ErrCodeNotInRepo, "plz query reporoot returned nothing")
	}
	return root, nil
}

// Config returns the values of a .plzconfig key such as "python.moduledir".
// Unset keys yield no values.
func (c *Client) Config(ctx context.Context, key string) ([]string, error) {
	out, _, err := c.run(ctx, "config", "query", "config", key)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, err, "plz query config %s", key)
	}
	return lines(out), nil
}

// ModuleDir returns python.moduledir in dotted form.
func (c *Client) ModuleDir(ctx context.Context) (string, error) {
	vals, err := c.Config(ctx, "python.moduledir")
	if err != nil {
		return "", err
	}
	if len(vals) == 0 {
		return DefaultModuleDir, nil
	}
	return strings.ReplaceAll(strings.Trim(vals[0], "/"), "/", "."), nil
}

// BuildFileNames returns parse.buildfilename.
func (c *Client) BuildFileNames(ctx context.Context) ([]string, error) {
	vals, err := c.Config(ctx, "parse.buildfilename")
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return DefaultBuildFileNames, nil
	}
	return vals, nil
}

// ThirdPartyTargets lists every target under the python module dir.
func (c *Client) ThirdPartyTargets(ctx context.Context, moduleDir string) ([]string, error) {
	pattern := "//" + strings.ReplaceAll(moduleDir, ".", "/") + "/..."
	out, _, err := c.run(ctx, "alltargets", "query", "alltargets", pattern)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, err, "plz query alltargets %s", pattern)
	}
	return lines(out), nil
}

// QueryResult is the answer to a whatinputs query.
type QueryResult struct {
	// Targets maps each queried path to the targets that take it as input.
	Targets map[string][]string
	// TargetlessPaths lists the queried paths no target takes as input.
	TargetlessPaths []string
}

// AllTargets returns the union of all owning targets in first-seen order.
func (r *QueryResult) AllTargets() []string {
	seen := make(map[string]bool)
	var out []string
	for _, ts := range r.Targets {
		for _, t := range ts {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}

// Querier answers reverse dependency queries.
type Querier interface {
	WhatInputs(ctx context.Context, paths ...string) (*QueryResult, error)
}

var notASourceRE = regexp.MustCompile(`(\S+) is not a source to any current target`)

// WhatInputs runs `plz query whatinputs --echo_files` for paths. plz exits
// non-zero when any path has no owner; that is reported through
// TargetlessPaths rather than as an error as long as the output accounts
// for every path.
func (c *Client) WhatInputs(ctx context.Context, paths ...string) (*QueryResult, error) {
	res := &QueryResult{Targets: make(map[string][]string)}
	if len(paths) == 0 {
		return res, nil
	}

	args := append([]string{"query", "whatinputs", "--echo_files"}, paths...)
	stdout, stderr, err := c.run(ctx, "whatinputs", args...)

	queried := make(map[string]bool, len(paths))
	for _, p := range paths {
		queried[p] = true
	}
	for _, line := range lines(stdout) {
		fields := strings.Fields(line)
		switch {
		case len(fields) >= 2 && queried[fields[0]]:
			res.Targets[fields[0]] = append(res.Targets[fields[0]], fields[1:]...)
		case len(fields) == 1 && len(paths) == 1:
			res.Targets[paths[0]] = append(res.Targets[paths[0]], fields[0])
		}
	}
	for _, m := range notASourceRE.FindAllStringSubmatch(string(stderr), -1) {
		if queried[m[1]] {
			res.TargetlessPaths = append(res.TargetlessPaths, m[1])
		}
	}

	if err != nil && len(res.Targets)+len(res.TargetlessPaths) < len(paths) {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, err,
			"plz query whatinputs %s: %s", strings.Join(paths, " "), strings.TrimSpace(string(stderr)))
	}
	return res, nil
}

// Fmt rewrites the given BUILD files in place with `plz fmt -w`.
func (c *Client) Fmt(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"fmt", "-w"}, paths...)
	if _, stderr, err := c.run(ctx, "fmt", args...); err != nil {
		return errors.Wrap(errors.ErrCodeFormatFailed, err, "plz fmt: %s", strings.TrimSpace(string(stderr)))
	}
	return nil
}

func (c *Client) run(ctx context.Context, command string, args ...string) ([]byte, []byte, error) {
	observability.Query().OnQuery(ctx, command, len(args))
	start := time.Now()
	if c.logger != nil {
		c.logger.Debug("plz", "args", strings.Join(args, " "))
	}
	stdout, stderr, err := c.exec(ctx, c.dir, c.bin, args...)
	if ctx.Err() != nil {
		err = ctx.Err()
	}
	observability.Query().OnQueryComplete(ctx, command, time.Since(start), err)
	if err != nil {
		return stdout, stderr, fmt.Errorf("%s %s: %w", c.bin, args[0], err)
	}
	return stdout, stderr, nil
}

func lines(b []byte) []string {
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(b))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if l := strings.TrimSpace(sc.Text()); l != "" {
			out = append(out, l)
		}
	}
	return out
}

var _ Querier = (*Client)(nil)
