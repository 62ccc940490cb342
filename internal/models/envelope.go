package models

// IntentFlags is the boolean intent triple every handler reports back.
type IntentFlags struct {
	IsInfoRequest     bool `json:"isInfoRequest"`
	IsCodeRequest     bool `json:"isCodeRequest"`
	IsTemplateRequest bool `json:"isTemplateRequest"`
}

// Preview signals whether the caller should start a live preview after
// applying the file operations.
type Preview struct {
	ShouldStartPreview bool `json:"shouldStartPreview"`
}

// ResponseBody holds the user-facing text of an envelope.
type ResponseBody struct {
	Text string `json:"text"`
}

// Envelope is the structured result contract every handler must produce.
// The JSON tags match what the model is instructed to emit, so an envelope
// round-trips through the parser unchanged.
type Envelope struct {
	Intent         IntentFlags     `json:"intent"`
	FileOperations []FileOperation `json:"fileOperations"`
	Preview        Preview         `json:"preview"`
	Response       ResponseBody    `json:"response"`
}

// DefaultEnvelopeText is the response text used when every parsing
// strategy and retry has been exhausted.
const DefaultEnvelopeText = "Sorry, I wasn't able to produce a usable answer for that request. Could you rephrase it?"

// DefaultEnvelope returns the fallback envelope that guarantees every
// submit call terminates with a valid result.
func DefaultEnvelope() Envelope {
	return Envelope{
		Intent:         IntentFlags{IsInfoRequest: true},
		FileOperations: []FileOperation{},
		Response:       ResponseBody{Text: DefaultEnvelopeText},
	}
}
