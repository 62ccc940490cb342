package router

import (
	"context"
	"fmt"

	"github.com/pagewright/pagewright/internal/llm"
	"github.com/pagewright/pagewright/internal/models"
	"github.com/pagewright/pagewright/internal/parser"
)

// classificationSchema is the JSON shape the classifier must return.
const classificationSchema = `{
  "kind": "templateCreation"|"templateQuery"|"documentAnalysis"|"imageAnalysis"|"generalChat",
  "confidence": number between 0 and 1,
  "explanation": string,
  "templateName": string (the template the user named, or omit)
}`

const classifierHint = `You are an intent classifier. Based on the conversation, classify the latest user message.
Respond with a JSON object of this exact shape:
` + classificationSchema + `
Use "templateCreation" when the user asks to generate a page or code from a template,
"templateQuery" when they ask about available templates,
"documentAnalysis" or "imageAnalysis" for uploaded material,
"generalChat" for everything else.`

const strictClassifierHint = `Your previous answer could not be parsed.
Respond with ONLY a JSON object, no prose, no markdown fences, matching exactly:
` + classificationSchema

// classifyIntent runs the structured classification call with the same
// escalating-strictness retry shape as envelope completion. On exhaustion
// it returns an error; the caller fails open to general chat.
func (r *Router) classifyIntent(ctx context.Context, messages []models.Message) (*models.IntentClassification, error) {
	var lastErr error
	for attempt := 0; attempt <= r.parseAttempts; attempt++ {
		hint := classifierHint
		if attempt == r.parseAttempts {
			hint = strictClassifierHint
		}

		raw, err := r.gateway.Invoke(ctx, messages, &llm.InvokeOptions{SchemaHint: hint})
		if err != nil {
			return nil, err
		}

		classification, strategy, perr := parser.ParseClassification(raw)
		if perr == nil {
			if strategy != "direct" {
				r.logger.Debug("classification recovered", "strategy", strategy, "attempt", attempt+1)
			}
			return classification, nil
		}
		lastErr = perr
	}
	return nil, fmt.Errorf("classification unparsable after retries: %w", lastErr)
}
