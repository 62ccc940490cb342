package parser

import (
	"fmt"

	"github.com/pagewright/pagewright/internal/models"
)

// ParseEnvelope runs the strategy chain against text and returns a
// validated response envelope plus the name of the winning strategy.
func ParseEnvelope(text string) (*models.Envelope, string, error) {
	env, strategy, err := Decode(text, ValidateEnvelope)
	if err != nil {
		return nil, "", err
	}
	if env.FileOperations == nil {
		env.FileOperations = []models.FileOperation{}
	}
	return env, strategy, nil
}

// ValidateEnvelope applies the post-parse rules the contract demands.
// Violations are treated as parse failures by the strategy chain.
func ValidateEnvelope(env *models.Envelope) error {
	if env.Response.Text == "" {
		return fmt.Errorf("response.text must be a non-empty string")
	}
	for i, op := range env.FileOperations {
		if op.Path == "" {
			return fmt.Errorf("fileOperations[%d]: path must be non-empty", i)
		}
		if !op.Action.Valid() {
			return fmt.Errorf("fileOperations[%d]: unknown action %q", i, op.Action)
		}
	}
	return nil
}

// ParseClassification runs the strategy chain against text and returns a
// validated intent classification.
func ParseClassification(text string) (*models.IntentClassification, string, error) {
	return Decode(text, ValidateClassification)
}

// ValidateClassification checks the classifier verdict: kind in the closed
// set, confidence within [0,1].
func ValidateClassification(ic *models.IntentClassification) error {
	if !ic.Kind.Valid() {
		return fmt.Errorf("unknown intent kind %q", ic.Kind)
	}
	if ic.Confidence < 0 || ic.Confidence > 1 {
		return fmt.Errorf("confidence %f out of range", ic.Confidence)
	}
	return nil
}
