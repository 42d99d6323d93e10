package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/llmguard/sanitize"
	"github.com/jonwraymond/llmguard/upstream"
)

const (
	defaultMaxFiles     = 20
	maxFilesCap         = sanitize.MaxFilePaths
	defaultMaxFileSize  = 10 << 20
	defaultChunkSize    = 20000
	defaultMaxChunkSize = 25000
	defaultConcurrency  = 5
	maxContextEntries   = 50
)

// FileLimits bounds the file analysis tools regardless of tool arguments.
type FileLimits struct {
	// MaxFileSize caps every file read.
	// Default: 10 MiB
	MaxFileSize int64

	// MaxConcurrency caps concurrent file reads and chunk queries.
	// Default: 20
	MaxConcurrency int

	// MaxChunks caps the number of chunk queries per call.
	// Default: 50
	MaxChunks int
}

func (l FileLimits) withDefaults() FileLimits {
	if l.MaxFileSize <= 0 {
		l.MaxFileSize = defaultMaxFileSize
	}
	if l.MaxConcurrency <= 0 {
		l.MaxConcurrency = 20
	}
	if l.MaxChunks <= 0 {
		l.MaxChunks = 50
	}
	return l
}

type fileContent struct {
	path string
	text string
	size int64
}

type collectOptions struct {
	files       []string
	pattern     string
	extensions  []string
	maxFiles    int
	maxFileSize int64
	concurrency int
}

type analyzeArgs struct {
	Files                 StringList `json:"files"`
	IncludeProjectContext *bool      `json:"include_project_context"`
	MaxFiles              int        `json:"max_files"`
	Pattern               string     `json:"pattern"`
}

func (g *Gateway) analyzeFiles(ctx context.Context, args map[string]any) (*ToolResult, error) {
	var a analyzeArgs
	if err := bindArgs(args, &a); err != nil {
		return nil, err
	}
	if len(a.Files) == 0 {
		return nil, invalidParams("Missing files parameter")
	}
	if a.MaxFiles == 0 {
		a.MaxFiles = defaultMaxFiles
	}
	if a.MaxFiles < 1 || a.MaxFiles > maxFilesCap {
		return nil, invalidParams(fmt.Sprintf("max_files must be between 1 and %d", maxFilesCap))
	}

	files, err := g.collect(ctx, collectOptions{
		files:       a.Files,
		pattern:     a.Pattern,
		maxFiles:    a.MaxFiles,
		maxFileSize: g.config.Files.MaxFileSize,
		concurrency: defaultConcurrency,
	})
	if err != nil {
		return nil, err
	}

	includeContext := a.IncludeProjectContext == nil || *a.IncludeProjectContext
	prompt := analysisPrompt(files, includeContext)

	start := time.Now()
	resp, err := g.deps.Upstream.Complete(ctx, g.deps.Upstream.NewRequest(
		upstream.Message{Role: "user", Content: prompt},
	))
	if err != nil {
		return g.upstreamFailure(ctx, ToolAnalyzeFiles, start, err)
	}
	text, err := resp.Content()
	if err != nil {
		text = "No response generated"
	}

	return textResult(text, map[string]any{
		"tool":             ToolAnalyzeFiles,
		"files_count":      len(files),
		"total_bytes":      totalSize(files),
		"include_context":  includeContext,
		"response_time_ms": time.Since(start).Milliseconds(),
	}), nil
}

type chunkedArgs struct {
	analyzeArgs
	ChunkSize         int      `json:"chunk_size"`
	EnableChunking    *bool    `json:"enable_chunking"`
	PreserveSemantics *bool    `json:"preserve_semantics"`
	MaxChunkSize      int      `json:"max_chunk_size"`
	Concurrency       int      `json:"concurrency"`
	AllowedExtensions []string `json:"allowed_extensions"`
	MaxFileSize       int64    `json:"max_file_size"`
}

func (g *Gateway) chunkedAnalysis(ctx context.Context, args map[string]any) (*ToolResult, error) {
	var a chunkedArgs
	if err := bindArgs(args, &a); err != nil {
		return nil, err
	}
	if len(a.Files) == 0 {
		return nil, invalidParams("Missing files parameter")
	}
	if a.ChunkSize <= 0 {
		a.ChunkSize = defaultChunkSize
	}
	if a.MaxChunkSize <= 0 {
		a.MaxChunkSize = defaultMaxChunkSize
	}
	if a.Concurrency <= 0 {
		a.Concurrency = defaultConcurrency
	}
	a.Concurrency = min(a.Concurrency, g.config.Files.MaxConcurrency)
	if a.MaxFileSize <= 0 || a.MaxFileSize > g.config.Files.MaxFileSize {
		a.MaxFileSize = g.config.Files.MaxFileSize
	}

	files, err := g.collect(ctx, collectOptions{
		files:       a.Files,
		pattern:     a.Pattern,
		extensions:  a.AllowedExtensions,
		maxFiles:    maxFilesCap,
		maxFileSize: a.MaxFileSize,
		concurrency: a.Concurrency,
	})
	if err != nil {
		return nil, err
	}

	includeContext := a.IncludeProjectContext == nil || *a.IncludeProjectContext
	text := analysisPrompt(files, includeContext)

	chunks := []string{text}
	if a.EnableChunking == nil || *a.EnableChunking {
		preserve := a.PreserveSemantics == nil || *a.PreserveSemantics
		chunks = chunkText(text, min(a.ChunkSize, a.MaxChunkSize), preserve)
	}
	if len(chunks) > g.config.Files.MaxChunks {
		return nil, invalidParams(fmt.Sprintf("input needs %d chunks (max %d); raise chunk_size", len(chunks), g.config.Files.MaxChunks))
	}

	start := time.Now()
	answers := make([]string, len(chunks))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(a.Concurrency)
	for i, chunk := range chunks {
		eg.Go(func() error {
			content := chunk
			if len(chunks) > 1 {
				content = fmt.Sprintf("Part %d of %d of a larger input.\n\n%s", i+1, len(chunks), chunk)
			}
			resp, err := g.deps.Upstream.Complete(egCtx, g.deps.Upstream.NewRequest(
				upstream.Message{Role: "user", Content: content},
			))
			if err != nil {
				return err
			}
			answer, err := resp.Content()
			if err != nil {
				answer = "No response generated"
			}
			answers[i] = answer
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return g.upstreamFailure(ctx, ToolChunkedAnalysis, start, err)
	}

	return textResult(joinAnswers(answers), map[string]any{
		"tool":             ToolChunkedAnalysis,
		"files_count":      len(files),
		"total_bytes":      totalSize(files),
		"chunks":           len(chunks),
		"concurrency":      a.Concurrency,
		"include_context":  includeContext,
		"response_time_ms": time.Since(start).Milliseconds(),
	}), nil
}

func joinAnswers(answers []string) string {
	if len(answers) == 1 {
		return answers[0]
	}
	var b strings.Builder
	for i, a := range answers {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "## Chunk %d/%d\n\n%s", i+1, len(answers), a)
	}
	return b.String()
}

// collect validates, expands and reads the requested files. Results keep
// the order in which paths were discovered.
func (g *Gateway) collect(ctx context.Context, opts collectOptions) ([]fileContent, error) {
	paths, err := g.deps.Sanitizer.ValidateFilePaths(opts.files)
	if err != nil {
		return nil, invalidParams("Invalid file path: " + err.Error())
	}

	expanded, err := expandPaths(paths, opts, func(p string) bool {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		return sanitize.CheckSystemPath(p) == nil
	})
	if errors.Is(err, sanitize.ErrForbiddenPath) {
		return nil, invalidParams("Invalid file path: " + err.Error())
	}
	if err != nil {
		return nil, err
	}
	if len(expanded) == 0 {
		return nil, ErrNoFiles
	}

	out := make([]fileContent, len(expanded))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(max(opts.concurrency, 1))
	for i, path := range expanded {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			fc, err := readFile(path, opts.maxFileSize)
			if err != nil {
				return err
			}
			out[i] = fc
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// expandPaths replaces directories with the regular files under them.
// Hidden directories are skipped. Explicit file paths bypass the pattern
// and extension filters. Every path, including the symlink target of each
// requested path and everything met during a walk, must pass allow;
// denied directories are not descended into.
func expandPaths(paths []string, opts collectOptions, allow func(string) bool) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) bool {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
		return len(out) >= opts.maxFiles
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("gateway: stat %s: %w", p, err)
		}
		target, err := filepath.EvalSymlinks(p)
		if err != nil {
			return nil, fmt.Errorf("gateway: resolve %s: %w", p, err)
		}
		if !allow(p) || !allow(target) {
			return nil, fmt.Errorf("gateway: %s resolves to %s: %w", p, target, sanitize.ErrForbiddenPath)
		}
		if !info.IsDir() {
			if add(p) {
				return out, nil
			}
			continue
		}

		full := false
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != p && (strings.HasPrefix(d.Name(), ".") || !allow(path)) {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || !matches(d.Name(), opts) || !allow(path) {
				return nil
			}
			if add(path) {
				full = true
				return filepath.SkipAll
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("gateway: walk %s: %w", p, err)
		}
		if full {
			break
		}
	}
	return out, nil
}

func matches(name string, opts collectOptions) bool {
	if opts.pattern != "" {
		if ok, err := filepath.Match(opts.pattern, name); err != nil || !ok {
			return false
		}
	}
	if len(opts.extensions) > 0 {
		ext := strings.ToLower(filepath.Ext(name))
		return slices.ContainsFunc(opts.extensions, func(e string) bool {
			return strings.ToLower("."+strings.TrimPrefix(e, ".")) == ext
		})
	}
	return true
}

func readFile(path string, maxSize int64) (fileContent, error) {
	f, err := os.Open(path) // #nosec G304 -- path passed ValidateFilePath
	if err != nil {
		return fileContent{}, fmt.Errorf("gateway: open %s: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxSize+1))
	if err != nil {
		return fileContent{}, fmt.Errorf("gateway: read %s: %w", path, err)
	}
	if int64(len(data)) > maxSize {
		return fileContent{}, fmt.Errorf("%w: %s exceeds %d bytes", ErrFileTooLarge, path, maxSize)
	}

	fc := fileContent{path: path, size: int64(len(data))}
	if utf8.Valid(data) {
		fc.text = string(data)
	} else {
		fc.text = "[binary content omitted]"
	}
	return fc, nil
}

func analysisPrompt(files []fileContent, includeContext bool) string {
	var b strings.Builder
	b.WriteString("Analyze the following files. Describe their purpose and structure, point out defects, and suggest improvements.\n\n")
	if includeContext {
		b.WriteString(projectContext(files))
	}
	for _, f := range files {
		fmt.Fprintf(&b, "=== %s ===\n%s\n\n", f.path, f.text)
	}
	return b.String()
}

// projectContext lists the directory holding the first file.
func projectContext(files []fileContent) string {
	dir := filepath.Dir(files[0].path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	names := make([]string, 0, min(len(entries), maxContextEntries))
	for _, e := range entries {
		if len(names) == maxContextEntries {
			break
		}
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	return fmt.Sprintf("Project directory: %s\nEntries: %s\n\n", dir, strings.Join(names, ", "))
}

func totalSize(files []fileContent) int64 {
	var n int64
	for _, f := range files {
		n += f.size
	}
	return n
}

// chunkText splits text into pieces of at most size bytes without
// splitting a rune. With preserveLines a piece ends at the last newline
// that fits, when there is one.
func chunkText(text string, size int, preserveLines bool) []string {
	if size <= 0 || len(text) <= size {
		return []string{text}
	}

	var chunks []string
	for len(text) > size {
		cut := size
		if preserveLines {
			if i := strings.LastIndexByte(text[:size], '\n'); i > 0 {
				cut = i + 1
			}
		}
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if cut == 0 {
			_, cut = utf8.DecodeRuneInString(text)
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
