// Package toolbox provides the registry of tools exposed to an agent,
// and the invoker that calls them by name.
package toolbox

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/agenttools/pkg/metricskey"
	"github.com/effective-security/agenttools/pkg/schema"
	"github.com/effective-security/agenttools/tools"
	"github.com/effective-security/xlog"
	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"
)

//go:generate mockgen -source=toolbox.go -destination=../mocks/mocktoolbox/toolbox_mock.gen.go -package mocktoolbox

var logger = xlog.NewPackageLogger("github.com/effective-security/agenttools", "toolbox")

// ErrToolNotFound is returned when the requested tool is not registered
var ErrToolNotFound = errors.New("tool not found")

// Callback receives the events of the tool calls
type Callback interface {
	tools.Callback
	OnToolNotFound(ctx context.Context, name string)
}

// Toolbox is the registry of tools.
// The tool names are matched case-insensitively.
type Toolbox struct {
	lock        sync.RWMutex
	toolsByName map[string]tools.ITool
	toolsNames  []string
	tools       []tools.ITool

	callback Callback
}

// New returns Toolbox with the given tools
func New(list ...tools.ITool) (*Toolbox, error) {
	b := &Toolbox{
		toolsByName: make(map[string]tools.ITool),
	}
	if err := b.Add(list...); err != nil {
		return nil, err
	}
	return b, nil
}

// WithCallback sets the callback handler
func (b *Toolbox) WithCallback(callback Callback) *Toolbox {
	b.callback = callback
	return b
}

// Add registers the tools, a tool with the same name can not be added twice.
func (b *Toolbox) Add(list ...tools.ITool) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	for _, tool := range list {
		name := tool.Name()
		// use lowercase for the key
		key := strings.ToLower(name)
		if b.toolsByName[key] != nil {
			return errors.Newf("tool %s is already registered", name)
		}
		b.toolsByName[key] = tool
		b.toolsNames = append(b.toolsNames, name)
		b.tools = append(b.tools, tool)
	}
	return nil
}

// Get returns the tool by name
func (b *Toolbox) Get(name string) (tools.ITool, bool) {
	b.lock.RLock()
	defer b.lock.RUnlock()
	tool, ok := b.toolsByName[strings.ToLower(name)]
	return tool, ok
}

// Tools returns the registered tools, in the order they were added
func (b *Toolbox) Tools() []tools.ITool {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return append([]tools.ITool(nil), b.tools...)
}

// Names returns the names of the registered tools
func (b *Toolbox) Names() []string {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return append([]string(nil), b.toolsNames...)
}

// Descriptions returns the tools description block for a prompt
func (b *Toolbox) Descriptions() string {
	return tools.GetDescriptions(b.Tools()...)
}

// FunctionTools returns the tools definitions for the chat completions API
func (b *Toolbox) FunctionTools(strict bool) []openai.ChatCompletionToolUnionParam {
	list := b.Tools()
	res := make([]openai.ChatCompletionToolUnionParam, 0, len(list))
	for _, tool := range list {
		def := schema.FunctionDefinition(tool.Name(), tool.Description(), tool.Parameters(), strict)
		res = append(res, openai.ChatCompletionFunctionTool(def))
	}
	return res
}

// Snapshots returns the snapshots of the tools that support it
func (b *Toolbox) Snapshots() ([]*tools.Snapshot, error) {
	var list []*tools.Snapshot
	for _, tool := range b.Tools() {
		s, ok := tool.(tools.Snapshotter)
		if !ok {
			continue
		}
		snapshot, err := s.Snapshot()
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to snapshot tool %s", tool.Name())
		}
		list = append(list, snapshot)
	}
	return list, nil
}

// Call invokes the tool by name with the raw input.
// The tool error is returned unchanged.
func (b *Toolbox) Call(ctx context.Context, name, input string) (string, error) {
	callID := uuid.NewString()

	tool, ok := b.Get(name)
	if !ok {
		metricskey.StatsToolCallsNotFound.IncrCounter(1, name)
		if b.callback != nil {
			b.callback.OnToolNotFound(ctx, name)
		}

		availableTools := strings.Join(b.Names(), ", ")
		logger.ContextKV(ctx, xlog.WARNING,
			"call_id", callID,
			"status", "tool_not_found",
			"tool_name", name,
			"available_tools", availableTools,
		)
		return "", errors.Mark(
			errors.Newf("tool %s not found, available tools: %s", name, availableTools),
			ErrToolNotFound)
	}

	toolName := tool.Name()
	if b.callback != nil {
		b.callback.OnToolStart(ctx, tool, input)
	}

	started := time.Now()
	res, err := tool.Call(ctx, input)
	metricskey.PerfToolCall.MeasureSince(started, toolName)

	if err != nil {
		kind := string(tools.KindOf(err))
		if kind == "" {
			kind = "unknown"
		}
		metricskey.StatsToolCallsFailed.IncrCounter(1, toolName, kind)
		if b.callback != nil {
			b.callback.OnToolError(ctx, tool, input, err)
		}

		logger.ContextKV(ctx, xlog.DEBUG,
			"call_id", callID,
			"status", "tool_call_failed",
			"tool", toolName,
			"kind", kind,
			"elapsed", time.Since(started).String(),
			"err", err.Error(),
		)
		return "", err
	}

	metricskey.StatsToolCallsSucceeded.IncrCounter(1, toolName)
	if b.callback != nil {
		b.callback.OnToolEnd(ctx, tool, input, res)
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"call_id", callID,
		"status", "tool_call_succeeded",
		"tool", toolName,
		"elapsed", time.Since(started).String(),
		"output_size", len(res),
	)
	return res, nil
}
