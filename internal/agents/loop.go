package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sourcegraph/conc/iter"

	"github.com/mkantor-dev/research_agent/internal/conversation"
	"github.com/mkantor-dev/research_agent/internal/memory_service"
	"github.com/mkantor-dev/research_agent/internal/models"
	"github.com/mkantor-dev/research_agent/pkg/logger"
)

// RunTurn executes one user turn: resolve or create the session, append the
// user message, then iterate call/execute cycles until the model produces a
// final answer, an error occurs, or the iteration cap is hit. Every terminal
// state returns a well-formed TurnResult; errors never escape to the caller
// as panics or raw provider failures.
func (l *Loop) RunTurn(ctx context.Context, sessionID, userID, message string) *TurnResult {
	agentCtx := l.resolveContext(ctx, sessionID, userID)
	unlock := l.sessions.LockSession(agentCtx.SessionID)
	defer unlock()

	l.metrics.TurnsCounter.Inc()
	log := l.logger.WithFields(logger.StringField("session_id", agentCtx.SessionID))

	l.sessions.AddMessage(ctx, agentCtx, conversation.ChatMessage{
		Role:    conversation.RoleUser,
		Content: message,
	})
	if l.memory.MaybeCompress(ctx, agentCtx) {
		l.metrics.CompressionsCounter.Inc()
	}

	toolsUsed := make([]string, 0, 4)
	seenTools := make(map[string]bool)
	recordTool := func(name string) {
		l.metrics.ToolExecutionsCounter.WithLabelValues(name).Inc()
		if !seenTools[name] {
			seenTools[name] = true
			toolsUsed = append(toolsUsed, name)
		}
	}

	for n := 1; n <= l.maxIterations; n++ {
		agentCtx.Metadata.TotalIterations++

		l.metrics.ModelCallsCounter.Inc()
		resp, err := l.llm.Complete(ctx, &models.CompletionRequest{
			Messages:   l.buildMessages(agentCtx),
			Tools:      l.registry.Definitions(),
			ToolChoice: "auto",
		})
		if err != nil {
			if models.IsToolUnsupported(err) {
				log.Warn("Model does not support tool calling, using fallback completion",
					logger.ErrorField(err))
				return l.runFallback(ctx, agentCtx, message, n)
			}
			log.Error("Model call failed", logger.ErrorField(err), logger.IntField("iteration", n))
			l.sessions.PersistMetadata(ctx, agentCtx)
			return &TurnResult{
				SessionID:  agentCtx.SessionID,
				Message:    "The language model request failed. Please try again.",
				Papers:     agentCtx.Papers,
				ToolsUsed:  toolsUsed,
				Iterations: n,
				Done:       false,
				Error:      err.Error(),
			}
		}

		if len(resp.ToolCalls) > 0 {
			l.sessions.AddMessage(ctx, agentCtx, conversation.ChatMessage{
				Role:      conversation.RoleAssistant,
				Content:   resp.Content,
				ToolCalls: resp.ToolCalls,
			})
			l.dispatchToolCalls(ctx, agentCtx, resp.ToolCalls, recordTool)
			continue
		}

		if call, ok := parseTextualToolCall(resp.Content); ok {
			l.sessions.AddMessage(ctx, agentCtx, conversation.ChatMessage{
				Role:    conversation.RoleAssistant,
				Content: resp.Content,
			})
			execution := l.registry.Execute(ctx, call.Name, call.Parameters, agentCtx)
			l.applyExecution(ctx, agentCtx, execution)
			recordTool(call.Name)
			l.sessions.AddMessage(ctx, agentCtx, conversation.ChatMessage{
				Role:    conversation.RoleUser,
				Content: fmt.Sprintf("Tool %s returned: %s", call.Name, marshalResult(execution.Result)),
			})
			continue
		}

		// Final answer.
		l.sessions.AddMessage(ctx, agentCtx, conversation.ChatMessage{
			Role:    conversation.RoleAssistant,
			Content: resp.Content,
		})
		if l.memory.MaybeCompress(ctx, agentCtx) {
			l.metrics.CompressionsCounter.Inc()
		}
		l.sessions.PersistMetadata(ctx, agentCtx)
		return &TurnResult{
			SessionID:  agentCtx.SessionID,
			Message:    resp.Content,
			Papers:     agentCtx.Papers,
			ToolsUsed:  toolsUsed,
			Iterations: n,
			Done:       true,
		}
	}

	log.Warn("Iteration cap reached", logger.IntField("max_iterations", l.maxIterations))
	l.metrics.IterationCapHitsCounter.Inc()
	l.sessions.PersistMetadata(ctx, agentCtx)
	return &TurnResult{
		SessionID:  agentCtx.SessionID,
		Message:    "I wasn't able to finish within the allotted steps. Please simplify the request or break it into smaller parts.",
		Papers:     agentCtx.Papers,
		ToolsUsed:  toolsUsed,
		Iterations: l.maxIterations,
		Done:       false,
	}
}

// resolveContext returns the live context for the session id, creating a
// fresh session when the id is empty, unknown, expired, or owned by another
// user.
func (l *Loop) resolveContext(ctx context.Context, sessionID, userID string) *conversation.AgentContext {
	if sessionID != "" {
		if agentCtx := l.sessions.Get(ctx, sessionID, userID); agentCtx != nil {
			return agentCtx
		}
		l.logger.Info("Session unavailable, starting a new one",
			logger.StringField("session_id", sessionID))
	}
	return l.sessions.Create(ctx, userID)
}

// buildMessages assembles the model-facing message array. Once a session
// has ever been compressed the tiered layout is used; before that the model
// sees the enriched system prompt plus a window of raw history.
func (l *Loop) buildMessages(agentCtx *conversation.AgentContext) []conversation.ChatMessage {
	if len(agentCtx.Memory.Summaries) > 0 {
		return l.memory.BuildCompressedContext(l.systemPrompt, agentCtx)
	}

	history := agentCtx.History
	if len(history) > fallbackContextWindow {
		history = history[len(history)-fallbackContextWindow:]
	}
	msgs := make([]conversation.ChatMessage, 0, len(history)+1)
	msgs = append(msgs, conversation.ChatMessage{
		Role:    conversation.RoleSystem,
		Content: memory_service.EnrichSystemPrompt(l.systemPrompt, agentCtx),
	})
	return append(msgs, history...)
}

// dispatchToolCalls runs one iteration's tool calls, concurrently when there
// is more than one, then applies context mutations and appends tool messages
// serially in call order.
func (l *Loop) dispatchToolCalls(ctx context.Context, agentCtx *conversation.AgentContext, calls []conversation.ToolCall, recordTool func(string)) {
	executions := make([]*Execution, len(calls))
	if len(calls) == 1 {
		executions[0] = l.executeCall(ctx, agentCtx, calls[0])
	} else {
		results := iter.Map(calls, func(call *conversation.ToolCall) *Execution {
			return l.executeCall(ctx, agentCtx, *call)
		})
		copy(executions, results)
	}

	for i, call := range calls {
		execution := executions[i]
		l.applyExecution(ctx, agentCtx, execution)
		recordTool(call.Name)
		l.sessions.AddMessage(ctx, agentCtx, conversation.ChatMessage{
			Role:       conversation.RoleTool,
			Content:    marshalResult(execution.Result),
			ToolCallID: call.ID,
		})
	}
}

func (l *Loop) executeCall(ctx context.Context, agentCtx *conversation.AgentContext, call conversation.ToolCall) *Execution {
	args := json.RawMessage(call.Arguments)
	if len(args) > 0 && !json.Valid(args) {
		l.logger.Warn("Malformed tool arguments, substituting empty object",
			logger.StringField("tool", call.Name))
		args = json.RawMessage("{}")
	}
	return l.registry.Execute(ctx, call.Name, args, agentCtx)
}

// applyExecution folds a tool's requested mutations into the context and
// best-effort persists each changed roster position. Only the loop writes to
// the AgentContext, so no locking is needed here.
func (l *Loop) applyExecution(ctx context.Context, agentCtx *conversation.AgentContext, execution *Execution) {
	changed := make([]int, 0, len(execution.Papers)+len(execution.Annotations))
	for _, p := range execution.Papers {
		if idx, added := agentCtx.AddPaper(p); added {
			changed = append(changed, idx)
		}
	}
	agentCtx.Metadata.SearchCount += execution.Searches
	agentCtx.Metadata.AnalysisCount += execution.Analyses
	for idx, note := range execution.Annotations {
		if paper := agentCtx.PaperAt(idx); paper != nil {
			paper.Notes = append(paper.Notes, note)
			changed = append(changed, idx)
		}
	}
	if len(changed) > 0 {
		l.sessions.PersistPapers(ctx, agentCtx, changed...)
	}
}

// runFallback handles models that reject tool calling with a single
// no-tools completion over a reduced prompt and the latest user message.
func (l *Loop) runFallback(ctx context.Context, agentCtx *conversation.AgentContext, message string, iterations int) *TurnResult {
	l.metrics.FallbacksCounter.Inc()

	resp, err := l.llm.Complete(ctx, &models.CompletionRequest{
		Messages: []conversation.ChatMessage{
			{Role: conversation.RoleSystem, Content: memory_service.EnrichSystemPrompt(fallbackSystemPrompt, agentCtx)},
			{Role: conversation.RoleUser, Content: message},
		},
	})
	if err != nil {
		l.logger.Error("Fallback completion failed", logger.ErrorField(err))
		l.sessions.PersistMetadata(ctx, agentCtx)
		return &TurnResult{
			SessionID:  agentCtx.SessionID,
			Message:    "The language model request failed. Please try again.",
			Papers:     agentCtx.Papers,
			Iterations: iterations,
			Done:       false,
			Error:      err.Error(),
		}
	}

	l.sessions.AddMessage(ctx, agentCtx, conversation.ChatMessage{
		Role:    conversation.RoleAssistant,
		Content: resp.Content,
	})
	l.sessions.PersistMetadata(ctx, agentCtx)
	return &TurnResult{
		SessionID:  agentCtx.SessionID,
		Message:    resp.Content,
		Papers:     agentCtx.Papers,
		ToolsUsed:  []string{},
		Iterations: iterations,
		Done:       true,
	}
}

func marshalResult(result ToolResult) string {
	data, err := json.Marshal(result)
	if err != nil {
		return `{"success":false,"error":"result serialization failed"}`
	}
	return string(data)
}
