package toolset

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/ShayCichocki/posse/pkg/models"
)

// Invoker executes a named tool with its decoded arguments. Tool-level
// failures (missing file, bad pattern, failed command) come back as results
// with IsError set so the model can react to them; a Go error means the
// invocation itself could not proceed (unknown tool, cancelled context).
type Invoker interface {
	Invoke(ctx context.Context, name string, args map[string]any) (*models.ToolResult, error)
}

const (
	// maxToolOutput caps the content returned from any single tool call.
	maxToolOutput = 100_000
	// maxMatches caps glob and grep result counts.
	maxMatches = 200
)

// LocalExecutor runs catalog tools against the local filesystem, confined
// to a working directory. Paths that resolve outside the root are rejected.
type LocalExecutor struct {
	root   string
	runner CommandRunner
}

// NewLocalExecutor creates an executor rooted at dir. Shell commands run
// through runner with dir as their working directory.
func NewLocalExecutor(dir string, runner CommandRunner) (*LocalExecutor, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve working directory %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat working directory %s: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("working directory %s is not a directory", abs)
	}
	return &LocalExecutor{root: abs, runner: runner}, nil
}

// Root returns the confining working directory.
func (e *LocalExecutor) Root() string {
	return e.root
}

// Invoke dispatches a tool call to its implementation.
func (e *LocalExecutor) Invoke(ctx context.Context, name string, args map[string]any) (*models.ToolResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var result *models.ToolResult
	switch name {
	case ToolReadFile:
		result = e.readFile(args)
	case ToolWriteFile:
		result = e.writeFile(args)
	case ToolEditFile:
		result = e.editFile(args)
	case ToolListDir:
		result = e.listDir(args)
	case ToolGlob:
		result = e.glob(args)
	case ToolGrep:
		result = e.grep(args)
	case ToolBash:
		return e.bash(ctx, args)
	default:
		return nil, fmt.Errorf("unknown tool %q", name)
	}
	return result, nil
}

func (e *LocalExecutor) readFile(args map[string]any) *models.ToolResult {
	path, ok := stringArg(args, "path")
	if !ok {
		return errResult("read_file: missing required argument 'path'")
	}
	resolved, err := e.resolvePath(path)
	if err != nil {
		return errResult(err.Error())
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return errResult(fmt.Sprintf("read_file: %v", err))
	}

	lines := strings.Split(string(data), "\n")
	offset := intArg(args, "offset", 1)
	if offset < 1 {
		offset = 1
	}
	limit := intArg(args, "limit", len(lines))
	if offset > len(lines) {
		return errResult(fmt.Sprintf("read_file: offset %d beyond end of file (%d lines)", offset, len(lines)))
	}
	end := offset - 1 + limit
	if end > len(lines) {
		end = len(lines)
	}

	var b strings.Builder
	for i := offset - 1; i < end; i++ {
		fmt.Fprintf(&b, "%6d\t%s\n", i+1, lines[i])
	}
	return okResult(truncate(b.String()))
}

func (e *LocalExecutor) writeFile(args map[string]any) *models.ToolResult {
	path, ok := stringArg(args, "path")
	if !ok {
		return errResult("write_file: missing required argument 'path'")
	}
	content, ok := stringArg(args, "content")
	if !ok {
		return errResult("write_file: missing required argument 'content'")
	}
	resolved, err := e.resolvePath(path)
	if err != nil {
		return errResult(err.Error())
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0755); err != nil {
		return errResult(fmt.Sprintf("write_file: %v", err))
	}
	if err := os.WriteFile(resolved, []byte(content), 0644); err != nil {
		return errResult(fmt.Sprintf("write_file: %v", err))
	}
	return okResult(fmt.Sprintf("wrote %d bytes to %s", len(content), path))
}

func (e *LocalExecutor) editFile(args map[string]any) *models.ToolResult {
	path, ok := stringArg(args, "path")
	if !ok {
		return errResult("edit_file: missing required argument 'path'")
	}
	oldStr, ok := stringArg(args, "old_string")
	if !ok {
		return errResult("edit_file: missing required argument 'old_string'")
	}
	newStr, ok := stringArg(args, "new_string")
	if !ok {
		return errResult("edit_file: missing required argument 'new_string'")
	}
	replaceAll := boolArg(args, "replace_all")

	resolved, err := e.resolvePath(path)
	if err != nil {
		return errResult(err.Error())
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return errResult(fmt.Sprintf("edit_file: %v", err))
	}
	content := string(data)

	count := strings.Count(content, oldStr)
	if count == 0 {
		return errResult("edit_file: old_string not found in file")
	}
	if count > 1 && !replaceAll {
		return errResult(fmt.Sprintf("edit_file: old_string occurs %d times, pass replace_all to replace every occurrence", count))
	}

	var updated string
	if replaceAll {
		updated = strings.ReplaceAll(content, oldStr, newStr)
	} else {
		updated = strings.Replace(content, oldStr, newStr, 1)
	}
	if err := os.WriteFile(resolved, []byte(updated), 0644); err != nil {
		return errResult(fmt.Sprintf("edit_file: %v", err))
	}

	replaced := 1
	if replaceAll {
		replaced = count
	}
	return okResult(fmt.Sprintf("replaced %d occurrence(s) in %s", replaced, path))
}

func (e *LocalExecutor) listDir(args map[string]any) *models.ToolResult {
	path, ok := stringArg(args, "path")
	if !ok {
		return errResult("list_dir: missing required argument 'path'")
	}
	resolved, err := e.resolvePath(path)
	if err != nil {
		return errResult(err.Error())
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return errResult(fmt.Sprintf("list_dir: %v", err))
	}

	var b strings.Builder
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		b.WriteString(name)
		b.WriteByte('\n')
	}
	if b.Len() == 0 {
		return okResult("(empty directory)")
	}
	return okResult(truncate(b.String()))
}

func (e *LocalExecutor) glob(args map[string]any) *models.ToolResult {
	pattern, ok := stringArg(args, "pattern")
	if !ok {
		return errResult("glob: missing required argument 'pattern'")
	}

	var matches []string
	err := filepath.WalkDir(e.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(e.root, path)
		if err != nil {
			return nil
		}
		if matchGlobPattern(filepath.ToSlash(rel), pattern) {
			matches = append(matches, rel)
			if len(matches) >= maxMatches {
				return fs.SkipAll
			}
		}
		return nil
	})
	if err != nil {
		return errResult(fmt.Sprintf("glob: %v", err))
	}

	if len(matches) == 0 {
		return okResult("no files match " + pattern)
	}
	sort.Strings(matches)
	return okResult(truncate(strings.Join(matches, "\n")))
}

func (e *LocalExecutor) grep(args map[string]any) *models.ToolResult {
	pattern, ok := stringArg(args, "pattern")
	if !ok {
		return errResult("grep: missing required argument 'pattern'")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return errResult(fmt.Sprintf("grep: invalid pattern: %v", err))
	}

	start := e.root
	if path, ok := stringArg(args, "path"); ok {
		resolved, err := e.resolvePath(path)
		if err != nil {
			return errResult(err.Error())
		}
		start = resolved
	}

	var hits []string
	walkErr := filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil || !utf8Like(data) {
			return nil
		}
		rel, _ := filepath.Rel(e.root, path)
		for i, line := range strings.Split(string(data), "\n") {
			if re.MatchString(line) {
				hits = append(hits, fmt.Sprintf("%s:%d:%s", rel, i+1, line))
				if len(hits) >= maxMatches {
					return fs.SkipAll
				}
			}
		}
		return nil
	})
	if walkErr != nil {
		return errResult(fmt.Sprintf("grep: %v", walkErr))
	}

	if len(hits) == 0 {
		return okResult("no matches for " + pattern)
	}
	return okResult(truncate(strings.Join(hits, "\n")))
}

func (e *LocalExecutor) bash(ctx context.Context, args map[string]any) (*models.ToolResult, error) {
	command, ok := stringArg(args, "command")
	if !ok {
		return errResult("bash: missing required argument 'command'"), nil
	}
	if e.runner == nil {
		return errResult("bash: shell execution is not available"), nil
	}

	output, err := e.runner.RunShell(ctx, e.root, command)
	if ctxErr := ctx.Err(); ctxErr != nil {
		// Cancellation is a run-level event, not a tool failure.
		return nil, ctxErr
	}
	if err != nil {
		msg := fmt.Sprintf("command failed: %v", err)
		if len(output) > 0 {
			msg += "\n" + truncate(string(output))
		}
		return errResult(msg), nil
	}
	if len(output) == 0 {
		return okResult("(no output)"), nil
	}
	return okResult(truncate(string(output))), nil
}

// resolvePath joins p with the root and rejects escapes.
func (e *LocalExecutor) resolvePath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", fmt.Errorf("path is empty")
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(e.root, p)
	}
	p = filepath.Clean(p)
	rel, err := filepath.Rel(e.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s escapes the working directory", p)
	}
	return p, nil
}

// skipDir filters directories that tools never need to descend into.
func skipDir(name string) bool {
	switch name {
	case ".git", "node_modules", ".posse":
		return true
	}
	return false
}

// utf8Like reports whether data looks like text rather than a binary blob.
func utf8Like(data []byte) bool {
	const probe = 1024
	n := len(data)
	if n > probe {
		n = probe
	}
	for _, b := range data[:n] {
		if b == 0 {
			return false
		}
	}
	return true
}

func truncate(s string) string {
	if len(s) <= maxToolOutput {
		return s
	}
	return s[:maxToolOutput] + "\n... (output truncated)"
}

func okResult(content string) *models.ToolResult {
	return &models.ToolResult{Content: content}
}

func errResult(msg string) *models.ToolResult {
	return &models.ToolResult{Content: msg, IsError: true}
}

func stringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// intArg reads an integer argument. JSON decoding hands numbers over as
// float64, so both forms are accepted.
func intArg(args map[string]any, key string, fallback int) int {
	v, ok := args[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return fallback
}

func boolArg(args map[string]any, key string) bool {
	v, ok := args[key]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Verify LocalExecutor implements Invoker at compile time.
var _ Invoker = (*LocalExecutor)(nil)
