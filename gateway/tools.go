package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jonwraymond/llmguard/health"
	"github.com/jonwraymond/llmguard/observe"
	"github.com/jonwraymond/llmguard/upstream"
)

// Tool names.
const (
	ToolEnhancedQuery   = "enhanced_query_deepseek"
	ToolAnalyzeFiles    = "analyze_files"
	ToolQuery           = "query_deepseek"
	ToolStatus          = "check_deepseek_status"
	ToolHandoff         = "handoff_to_deepseek"
	ToolChunkedAnalysis = "youtu_agent_analyze_files"
)

// defaultTaskType is used when a query names no task type.
const defaultTaskType = "analysis"

// ToolDescriptor is one entry of the tools/list result.
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// Content is one block of a tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolResult is the result of tools/call. IsError reports a failure the
// caller should see as content rather than as a protocol error.
type ToolResult struct {
	Content  []Content      `json:"content"`
	IsError  bool           `json:"isError"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func textResult(text string, metadata map[string]any) *ToolResult {
	return &ToolResult{
		Content:  []Content{{Type: "text", Text: text}},
		Metadata: metadata,
	}
}

type toolFunc func(ctx context.Context, args map[string]any) (*ToolResult, error)

type tool struct {
	descriptor ToolDescriptor
	run        toolFunc
}

func (g *Gateway) builtinTools() map[string]tool {
	tools := []tool{
		{
			descriptor: ToolDescriptor{
				Name:        ToolEnhancedQuery,
				Description: "Query the model with task classification and optional context",
				InputSchema: objectSchema(map[string]any{
					"prompt":         stringProp("The query or task to analyze and execute"),
					"context":        stringProp("Additional context to improve classification accuracy"),
					"force_deepseek": boolProp("Force model execution even for complex tasks", false),
					"model":          stringProp("Specific model to use"),
					"task_type":      enumProp("Type of task for optimized processing", "coding", "game_dev", "analysis", "debugging", "optimization"),
				}, "prompt"),
			},
			run: g.enhancedQuery,
		},
		{
			descriptor: ToolDescriptor{
				Name:        ToolAnalyzeFiles,
				Description: "Analyze single or multiple files with project context",
				InputSchema: objectSchema(map[string]any{
					"files":                   filesProp(),
					"include_project_context": boolProp("Include a listing of the surrounding directory", true),
					"max_files": map[string]any{
						"type":        "number",
						"description": "Maximum number of files to analyze (1-50)",
						"default":     defaultMaxFiles,
						"minimum":     1,
						"maximum":     maxFilesCap,
					},
					"pattern": stringProp(`File pattern filter (e.g. "*.go")`),
				}, "files"),
			},
			run: g.analyzeFiles,
		},
		{
			descriptor: ToolDescriptor{
				Name:        ToolQuery,
				Description: "Direct model query",
				InputSchema: objectSchema(map[string]any{
					"prompt":    stringProp("The prompt to send"),
					"context":   stringProp("Additional context for the query"),
					"model":     stringProp("Specific model to use"),
					"task_type": enumProp("Type of task", "coding", "game_dev", "analysis", "architecture", "debugging", "optimization"),
				}, "prompt"),
			},
			run: g.query,
		},
		{
			descriptor: ToolDescriptor{
				Name:        ToolStatus,
				Description: "Report upstream health and performance metrics",
				InputSchema: map[string]any{
					"type":                 "object",
					"properties":           map[string]any{},
					"additionalProperties": false,
				},
			},
			run: g.status,
		},
		{
			descriptor: ToolDescriptor{
				Name:        ToolHandoff,
				Description: "Hand the current session context to the model with a goal",
				InputSchema: objectSchema(map[string]any{
					"context": stringProp("Current development context to transfer"),
					"goal":    stringProp("Goal for the session"),
				}, "context", "goal"),
			},
			run: g.handoff,
		},
		{
			descriptor: ToolDescriptor{
				Name:        ToolChunkedAnalysis,
				Description: "Analyze large file sets with context chunking and concurrent reads",
				InputSchema: objectSchema(map[string]any{
					"files":                   filesProp(),
					"chunk_size":              numberProp("Target chunk size in characters", defaultChunkSize),
					"enable_chunking":         boolProp("Split large inputs into chunks", true),
					"preserve_semantics":      boolProp("Split chunks on line boundaries", true),
					"max_chunk_size":          numberProp("Maximum chunk size in characters", defaultMaxChunkSize),
					"concurrency":             numberProp("Number of concurrent file reads and chunk queries", defaultConcurrency),
					"allowed_extensions":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Allowed file extensions"},
					"include_project_context": boolProp("Include a listing of the surrounding directory", true),
					"pattern":                 stringProp("File pattern filter"),
					"max_file_size":           numberProp("Maximum file size in bytes", defaultMaxFileSize),
				}, "files"),
			},
			run: g.chunkedAnalysis,
		},
	}

	out := make(map[string]tool, len(tools))
	for _, t := range tools {
		out[t.descriptor.Name] = t
	}
	return out
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func stringProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func boolProp(desc string, def bool) map[string]any {
	return map[string]any{"type": "boolean", "description": desc, "default": def}
}

func numberProp(desc string, def int) map[string]any {
	return map[string]any{"type": "number", "description": desc, "default": def}
}

func enumProp(desc string, values ...string) map[string]any {
	return map[string]any{"type": "string", "description": desc, "enum": values}
}

func filesProp() map[string]any {
	return map[string]any{
		"oneOf": []any{
			map[string]any{"type": "string"},
			map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"description": "File path(s) or directory path(s) to analyze",
	}
}

// toolDescriptors returns every tool descriptor, sorted by name.
func (g *Gateway) toolDescriptors() []ToolDescriptor {
	out := make([]ToolDescriptor, 0, len(g.tools))
	for _, t := range g.tools {
		out = append(out, t.descriptor)
	}
	slices.SortFunc(out, func(a, b ToolDescriptor) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return out
}

func (g *Gateway) callTool(ctx context.Context, _ observe.Call, params map[string]any) (any, error) {
	if params == nil {
		return nil, invalidParams("Missing tool call parameters")
	}
	name, _ := params["name"].(string)
	if name == "" {
		return nil, invalidParams("Missing tool name")
	}
	t, ok := g.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	args, _ := params["arguments"].(map[string]any)
	if args == nil {
		args = map[string]any{}
	}
	return t.run(ctx, args)
}

// bindArgs decodes tool arguments into v.
func bindArgs(args map[string]any, v any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return invalidParams("Invalid tool arguments")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return invalidParams("Invalid tool arguments: " + err.Error())
	}
	return nil
}

// StringList accepts either a single string or an array of strings.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *StringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*l = StringList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return errors.New("expected a string or an array of strings")
	}
	*l = many
	return nil
}

type queryArgs struct {
	Prompt        string `json:"prompt"`
	Context       string `json:"context"`
	Model         string `json:"model"`
	TaskType      string `json:"task_type"`
	ForceDeepSeek bool   `json:"force_deepseek"`
}

func (a queryArgs) text() string {
	task := a.TaskType
	if task == "" {
		task = defaultTaskType
	}
	if a.Context != "" {
		return fmt.Sprintf("Context: %s\n\nTask: %s\nPrompt: %s", a.Context, task, a.Prompt)
	}
	return fmt.Sprintf("Task: %s\nPrompt: %s", task, a.Prompt)
}

func (g *Gateway) enhancedQuery(ctx context.Context, args map[string]any) (*ToolResult, error) {
	return g.runQuery(ctx, ToolEnhancedQuery, args)
}

func (g *Gateway) query(ctx context.Context, args map[string]any) (*ToolResult, error) {
	return g.runQuery(ctx, ToolQuery, args)
}

func (g *Gateway) runQuery(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	var a queryArgs
	if err := bindArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Prompt == "" {
		return nil, invalidParams("Missing prompt parameter")
	}

	req := g.deps.Upstream.NewRequest(upstream.Message{Role: "user", Content: a.text()})
	if a.Model != "" {
		req.Model = a.Model
	}

	start := time.Now()
	resp, err := g.deps.Upstream.Complete(ctx, req)
	if err != nil {
		return g.upstreamFailure(ctx, name, start, err)
	}
	text, err := resp.Content()
	if err != nil {
		text = "No response generated"
	}

	return textResult(text, map[string]any{
		"tool":             name,
		"model":            req.Model,
		"task_type":        queryTaskType(a.TaskType),
		"response_time_ms": time.Since(start).Milliseconds(),
		"usage":            resp.Usage,
	}), nil
}

func queryTaskType(t string) string {
	if t == "" {
		return defaultTaskType
	}
	return t
}

type handoffArgs struct {
	Context string `json:"context"`
	Goal    string `json:"goal"`
}

func (g *Gateway) handoff(ctx context.Context, args map[string]any) (*ToolResult, error) {
	var a handoffArgs
	if err := bindArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Context == "" || a.Goal == "" {
		return nil, invalidParams("Missing context or goal parameter")
	}

	req := g.deps.Upstream.NewRequest(
		upstream.Message{Role: "system", Content: "You are taking over a development session. Summarize the context and propose next steps toward the goal."},
		upstream.Message{Role: "user", Content: fmt.Sprintf("Context:\n%s\n\nGoal:\n%s", a.Context, a.Goal)},
	)

	start := time.Now()
	resp, err := g.deps.Upstream.Complete(ctx, req)
	if err != nil {
		return g.upstreamFailure(ctx, ToolHandoff, start, err)
	}
	text, err := resp.Content()
	if err != nil {
		text = "No response generated"
	}

	return textResult(text, map[string]any{
		"tool":             ToolHandoff,
		"context_length":   len(a.Context),
		"goal_specified":   true,
		"response_time_ms": time.Since(start).Milliseconds(),
	}), nil
}

func (g *Gateway) status(ctx context.Context, _ map[string]any) (*ToolResult, error) {
	start := time.Now()
	stats := g.deps.Upstream.Stats()

	state := health.StatusHealthy
	message := "reachable"
	if r, err := g.deps.Health.Check(ctx, "upstream"); err == nil {
		state, message = r.Status, r.Message
	}

	body := map[string]any{
		"status":              state,
		"message":             message,
		"performance_metrics": stats,
		"circuit_breaker":     g.deps.Upstream.Breaker().Metrics(),
	}
	text, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return nil, err
	}

	res := textResult(string(text), map[string]any{
		"tool":             ToolStatus,
		"status":           state,
		"response_time_ms": time.Since(start).Milliseconds(),
	})
	res.IsError = state == health.StatusUnhealthy
	return res, nil
}

// upstreamFailure turns a failed completion into an error result. A
// cancelled or expired context is returned as an error instead so the
// routing timeout is reported as such.
func (g *Gateway) upstreamFailure(ctx context.Context, name string, start time.Time, err error) (*ToolResult, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	pub := g.deps.Errors.SanitizeError(ctx, err, name)
	text := "Error processing request: " + pub.Error
	if pub.Details != "" {
		text += ": " + pub.Details
	}

	res := textResult(text, map[string]any{
		"tool":             name,
		"response_time_ms": time.Since(start).Milliseconds(),
	})
	res.IsError = true
	return res, nil
}
