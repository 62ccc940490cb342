package handlers

// EnvelopeSchema is the JSON shape every handler response must match.
// It is repeated verbatim in the strict retry prompt.
const EnvelopeSchema = `{
  "intent": {"isInfoRequest": bool, "isCodeRequest": bool, "isTemplateRequest": bool},
  "fileOperations": [{"path": string, "content": string, "action": "create"|"update"|"delete", "language": string}],
  "preview": {"shouldStartPreview": bool},
  "response": {"text": string}
}`

// envelopeHint is appended to every handler call as a schema hint.
const envelopeHint = `Respond with a JSON object of this exact shape:
` + EnvelopeSchema + `
Set fileOperations to [] when no files are needed.`

// strictEnvelopeHint is the escalated variant used for the final attempt
// after normal parsing attempts failed.
const strictEnvelopeHint = `Your previous answer could not be parsed.
Respond with ONLY a JSON object, no prose, no markdown fences, matching exactly:
` + EnvelopeSchema + `
Every field is required. Do not output anything before or after the JSON object.`

// chatSystemPrompt is the default persona for conversations without their
// own system prompt.
const chatSystemPrompt = `You are pagewright, an assistant that helps users design and build web pages.
Answer questions conversationally. Only propose file operations when the user asks for code or page changes.`

// templateSystemPrompt drives template-based generation.
const templateSystemPrompt = `You are pagewright, a code generator for web page templates.
Generate the files the template calls for, filling its placeholders from the user's request.
Each file goes into fileOperations with the complete file content. Set preview.shouldStartPreview to true when the generated files form a viewable page.`
