package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/mkantor-dev/research_agent/internal/conversation"
	"github.com/mkantor-dev/research_agent/internal/models"
	"github.com/mkantor-dev/research_agent/pkg/logger"
)

// ToolResult is the JSON payload fed back into the conversation after a
// tool runs.
type ToolResult struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Execution carries a tool's result plus the context mutations it requests.
// Handlers never touch the AgentContext themselves; the loop applies
// mutations serially after all calls in an iteration have returned.
type Execution struct {
	Result      ToolResult
	Papers      []conversation.Paper
	Searches    int
	Analyses    int
	Annotations map[int]string
}

// ToolHandler is one named, schema-described capability the model may call.
type ToolHandler interface {
	Definition() models.ToolDefinition
	Execute(ctx context.Context, args json.RawMessage, agentCtx *conversation.AgentContext) (*Execution, error)
}

// Registry maps tool names to handlers and validates arguments against each
// tool's declared schema before invocation.
type Registry struct {
	handlers map[string]ToolHandler
	schemas  map[string]*gojsonschema.Schema
	logger   logger.Logger
}

func NewRegistry(log logger.Logger) *Registry {
	return &Registry{
		handlers: make(map[string]ToolHandler),
		schemas:  make(map[string]*gojsonschema.Schema),
		logger:   log.WithFields(logger.StringField("component", "tool_registry")),
	}
}

// Register adds a handler and compiles its parameter schema.
func (r *Registry) Register(h ToolHandler) error {
	def := h.Definition()
	if def.Name == "" {
		return fmt.Errorf("tool definition has no name")
	}
	if _, exists := r.handlers[def.Name]; exists {
		return fmt.Errorf("tool %q already registered", def.Name)
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(def.Parameters))
	if err != nil {
		return fmt.Errorf("compiling schema for tool %q: %w", def.Name, err)
	}

	r.handlers[def.Name] = h
	r.schemas[def.Name] = schema
	return nil
}

// Definitions returns the advertised tool set in stable name order.
func (r *Registry) Definitions() []models.ToolDefinition {
	defs := make([]models.ToolDefinition, 0, len(r.handlers))
	for _, h := range r.handlers {
		defs = append(defs, h.Definition())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Execute validates and runs the named tool. Failures come back as
// {success:false, error} results so the model can see and react to them;
// they never abort the turn.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage, agentCtx *conversation.AgentContext) *Execution {
	handler, ok := r.handlers[name]
	if !ok {
		return failedExecution(fmt.Sprintf("unknown tool: %s", name))
	}

	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	validation, err := r.schemas[name].Validate(gojsonschema.NewBytesLoader(args))
	if err != nil {
		r.logger.Warn("Tool argument validation failed",
			logger.StringField("tool", name),
			logger.ErrorField(err))
		return failedExecution(fmt.Sprintf("invalid arguments for %s: %v", name, err))
	}
	if !validation.Valid() {
		issues := make([]string, 0, len(validation.Errors()))
		for _, e := range validation.Errors() {
			issues = append(issues, e.String())
		}
		return failedExecution(fmt.Sprintf("invalid arguments for %s: %s", name, strings.Join(issues, "; ")))
	}

	execution, err := handler.Execute(ctx, args, agentCtx)
	if err != nil {
		r.logger.Warn("Tool execution failed",
			logger.StringField("tool", name),
			logger.ErrorField(err))
		return failedExecution(err.Error())
	}
	return execution
}

func failedExecution(msg string) *Execution {
	return &Execution{Result: ToolResult{Success: false, Error: msg}}
}
