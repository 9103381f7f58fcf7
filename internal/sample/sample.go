// Package sample synthesizes placeholder values for template variables
// so a preview renders with plausible content before the user types
// anything.
package sample

import "time"

// Value returns the sample value for a single variable name. Known
// names get curated examples; everything else falls through to a
// generic "Sample <name>" string. Matching is exact and case-sensitive.
func Value(name string) string {
	switch name {
	case "shopDomain":
		return "example-shop.myshopify.com"
	case "customerEmail":
		return "customer@example.com"
	case "exportDate":
		// Recomputed on every synthesis run, not frozen.
		return time.Now().Format("1/2/2006")
	case "subject":
		return "Sample Subject"
	case "message":
		return "This is a sample message content"
	default:
		return "Sample " + name
	}
}

// Synthesize builds the full sample-value set for an ordered variable
// list. It is total: any name yields a value. Callers re-run it only
// when the previewed template changes identity, so user edits to sample
// values survive while a preview stays open.
func Synthesize(names []string) map[string]string {
	values := make(map[string]string, len(names))
	for _, name := range names {
		values[name] = Value(name)
	}
	return values
}
