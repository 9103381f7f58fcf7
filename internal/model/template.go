package model

import "time"

// Languages is the fixed set of template languages. Name and language
// together identify a template variant and neither can change after
// creation.
var Languages = []string{"en", "es", "fr", "de"}

// Template is an email template as owned by the upstream platform.
// Bodies may embed {{variableName}} placeholders; substitution happens
// upstream at render time, never in the console.
type Template struct {
	ID           string    `json:"_id"`
	Name         string    `json:"name"`
	Language     string    `json:"language"`
	Subject      string    `json:"subject"`
	HTMLTemplate string    `json:"htmlTemplate"`
	TextTemplate string    `json:"textTemplate"`
	Variables    []string  `json:"variables"`
	Version      int       `json:"version"`
	IsActive     bool      `json:"isActive"`
	ShopID       *string   `json:"shopId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Rendered is the output of a preview render: the three template bodies
// with placeholders substituted by the upstream engine.
type Rendered struct {
	Subject     string `json:"subject"`
	HTMLContent string `json:"htmlContent"`
	TextContent string `json:"textContent"`
}

// RawRendered returns the template bodies verbatim, placeholders left
// literal. Used as the degraded preview when rendering is unavailable.
func (t *Template) RawRendered() Rendered {
	return Rendered{
		Subject:     t.Subject,
		HTMLContent: t.HTMLTemplate,
		TextContent: t.TextTemplate,
	}
}

// ValidLanguage reports whether lang is one of the supported languages.
func ValidLanguage(lang string) bool {
	for _, l := range Languages {
		if l == lang {
			return true
		}
	}
	return false
}
