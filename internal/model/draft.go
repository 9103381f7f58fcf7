package model

import "strings"

// Draft is the edit-time projection of a Template. It exists only while
// a create/edit form is open and is never persisted: variables are held
// as a single comma-separated string (the edit affordance) and parsed
// back into the canonical slice at submission time.
type Draft struct {
	Name         string `json:"name"`
	Language     string `json:"language"`
	Subject      string `json:"subject"`
	HTMLTemplate string `json:"htmlTemplate"`
	TextTemplate string `json:"textTemplate"`
	Variables    string `json:"variables"`
	IsActive     bool   `json:"isActive"`
	Shop         string `json:"shop,omitempty"`
}

// TemplatePayload is the submission body for create and update calls.
type TemplatePayload struct {
	Name         string   `json:"name"`
	Language     string   `json:"language"`
	Subject      string   `json:"subject"`
	HTMLTemplate string   `json:"htmlTemplate"`
	TextTemplate string   `json:"textTemplate"`
	Variables    []string `json:"variables,omitempty"`
	IsActive     bool     `json:"isActive"`
	Shop         string   `json:"shop,omitempty"`
}

// NewDraft hydrates a draft from an existing template, or returns the
// creation defaults when t is nil.
func NewDraft(t *Template) Draft {
	if t == nil {
		return Draft{Language: "en", IsActive: true}
	}
	return Draft{
		Name:         t.Name,
		Language:     t.Language,
		Subject:      t.Subject,
		HTMLTemplate: t.HTMLTemplate,
		TextTemplate: t.TextTemplate,
		Variables:    strings.Join(t.Variables, ", "),
		IsActive:     t.IsActive,
	}
}

// ParseVariables splits a comma-separated variable list and trims
// whitespace around each token. Empty tokens from doubled or trailing
// commas are kept, matching the wire behavior the upstream expects.
func ParseVariables(s string) []string {
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// CreatePayload builds the submission body for a create call.
func (d Draft) CreatePayload() TemplatePayload {
	return TemplatePayload{
		Name:         d.Name,
		Language:     d.Language,
		Subject:      d.Subject,
		HTMLTemplate: d.HTMLTemplate,
		TextTemplate: d.TextTemplate,
		Variables:    ParseVariables(d.Variables),
		IsActive:     d.IsActive,
		Shop:         d.Shop,
	}
}

// UpdatePayload builds the submission body for an update call. The
// variables field is omitted when the draft string is empty, so a
// partial update does not wipe the declared variable list.
func (d Draft) UpdatePayload() TemplatePayload {
	p := d.CreatePayload()
	if d.Variables == "" {
		p.Variables = nil
	}
	return p
}
