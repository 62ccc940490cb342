package models

import (
	"time"
)

// Template is a reusable scaffold the template handler works against.
// Its content describes the page structure the model should generate
// files for; it is passed to the handler as opaque template context.
type Template struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TemplateInput is the input structure for creating templates.
type TemplateInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Content     string  `json:"content"`
}

// DefaultTemplates returns the set of built-in templates.
func DefaultTemplates() []TemplateInput {
	return []TemplateInput{
		{
			Name:        "Landing Page",
			Description: ptr("Single-page marketing site with hero, features and footer"),
			Content: `# Landing Page

Files to generate:
- index.html: hero section with {headline}, call-to-action button {cta}
- styles.css: responsive layout, {brand color} accent palette
- app.js: smooth-scroll navigation, CTA click tracking stub

Constraints:
- Semantic HTML5, no frameworks
- Mobile-first breakpoints at 640px and 1024px
`,
		},
		{
			Name:        "Contact Form",
			Description: ptr("Accessible contact form with client-side validation"),
			Content: `# Contact Form

Files to generate:
- contact.html: name/email/message fields, {recipient} in the intro copy
- contact.css: form styling consistent with {brand color}
- contact.js: client-side validation, inline error messages

Constraints:
- Labels bound to inputs, aria-live region for errors
- No external dependencies
`,
		},
		{
			Name:        "Pricing Section",
			Description: ptr("Three-tier pricing table section"),
			Content: `# Pricing Section

Files to generate:
- pricing.html: three tiers {tier names}, highlighted {featured tier}
- pricing.css: card layout, hover states

Constraints:
- Monthly/annual toggle markup included, wired by a small inline script
`,
		},
	}
}

func ptr(s string) *string {
	return &s
}
