package models

// IntentKind categorizes user input into a handling strategy.
type IntentKind string

const (
	IntentTemplateCreation IntentKind = "templateCreation"
	IntentTemplateQuery    IntentKind = "templateQuery"
	IntentDocumentAnalysis IntentKind = "documentAnalysis"
	IntentImageAnalysis    IntentKind = "imageAnalysis"
	IntentGeneralChat      IntentKind = "generalChat"
)

// Valid reports whether the kind is part of the closed intent set.
func (k IntentKind) Valid() bool {
	switch k {
	case IntentTemplateCreation, IntentTemplateQuery, IntentDocumentAnalysis,
		IntentImageAnalysis, IntentGeneralChat:
		return true
	}
	return false
}

// IntentClassification is the classifier's verdict for one submit call.
type IntentClassification struct {
	Kind        IntentKind `json:"kind"`
	Confidence  float64    `json:"confidence"`
	Explanation string     `json:"explanation"`

	// TemplateName is the template the user referred to by name, if any.
	TemplateName string `json:"templateName,omitempty"`
}
