package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sudheer1135/fin-agent/model"
)

// dispatch executes tool calls sequentially in the order the model issued
// them and returns one tool result message per call, in the same order.
// Failures become error text in the result rather than aborting the run, so
// the model can see what went wrong and recover. The second return value
// reports whether the reconfigure tool completed successfully.
func (l *Loop) dispatch(ctx context.Context, calls []model.ToolCall) ([]model.Message, bool) {
	results := make([]model.Message, 0, len(calls))
	reconfigured := false

	for _, call := range calls {
		start := time.Now()
		content, ok := l.execute(ctx, call)
		results = append(results, model.ToolMessage(call.ID, content))

		if ok && call.Name == l.opts.ReconfigureTool && l.opts.ReconfigureTool != "" {
			reconfigured = true
		}

		l.opts.Logger.Debug("tool call finished",
			"tool", call.Name, "ok", ok, "duration", time.Since(start))
	}

	return results, reconfigured
}

func (l *Loop) execute(ctx context.Context, call model.ToolCall) (string, bool) {
	args := map[string]any{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return fmt.Sprintf("invalid arguments for %s: %v", call.Name, err), false
		}
	}

	result, err := l.registry.Execute(ctx, call.Name, args)
	if err != nil {
		return fmt.Sprintf("error: %v", err), false
	}

	return stringify(result), true
}

func stringify(result any) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}

		return string(data)
	}
}
