package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/KaramelBytes/autolysis-cli/internal/logx"
	"github.com/KaramelBytes/autolysis-cli/internal/utils"
)

// ErrEmptyCompletion is returned when a response decodes but carries no
// message content (zero choices or an empty first choice).
var ErrEmptyCompletion = errors.New("completion carried no message")

// Complete sends req to rt and returns the first choice's content. It never
// fails loudly: transport errors, error statuses and malformed bodies are
// logged as warnings and reported through ok=false.
func Complete(ctx context.Context, rt Runtime, req GenerateRequest, log logx.Logger) (string, bool) {
	if log == nil {
		log = logx.Nop
	}
	if rt == nil {
		log.Warn("no model runtime configured")
		return "", false
	}
	WarnContext(req.Model, req.Messages, log)

	resp, err := rt.Generate(ctx, req)
	if err == nil {
		err = checkResponse(resp)
	}
	if err != nil {
		if h := Hint(err); h != "" {
			log.Warn("model request failed: %v (%s)", err, h)
		} else {
			log.Warn("model request failed: %v", err)
		}
		return "", false
	}
	if resp.RequestID != "" {
		log.Debug("model %s answered (request %s)", req.Model, resp.RequestID)
	}
	if u := resp.Usage; u.TotalTokens > 0 {
		if cost, ok := EstimateCostUSD(req.Model, u.PromptTokens, u.CompletionTokens); ok {
			log.Debug("usage: prompt=%d completion=%d total=%d (≈$%.4f)", u.PromptTokens, u.CompletionTokens, u.TotalTokens, cost)
		} else {
			log.Debug("usage: prompt=%d completion=%d total=%d", u.PromptTokens, u.CompletionTokens, u.TotalTokens)
		}
	}
	return resp.Choices[0].Message.Content, true
}

func checkResponse(resp *GenerateResponse) error {
	if resp == nil || len(resp.Choices) == 0 {
		return ErrEmptyCompletion
	}
	if strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return ErrEmptyCompletion
	}
	return nil
}

// PromptTokens estimates the token count of a request.
func PromptTokens(messages []Message) int {
	n := 0
	for _, m := range messages {
		n += utils.CountTokens(m.Content)
	}
	return n
}

// WarnContext warns when the estimated prompt size approaches the model's
// context window. Unknown models are not checked.
func WarnContext(model string, messages []Message, log logx.Logger) {
	mi, ok := LookupModel(model)
	if !ok || mi.ContextTokens <= 0 {
		return
	}
	tokens := PromptTokens(messages)
	switch {
	case tokens > mi.ContextTokens:
		log.Warn("prompt is ~%d tokens, above the %d-token context of %s", tokens, mi.ContextTokens, model)
	case tokens > mi.ContextTokens*9/10:
		log.Warn("prompt is ~%d tokens, close to the %d-token context of %s", tokens, mi.ContextTokens, model)
	}
}
