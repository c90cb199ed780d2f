// Package model routes LLM requests to endpoints. A request names either a
// capability or a model; the Registry turns that into an ordered chain of
// endpoint names, skipping endpoints whose circuit breaker is open.
package model

import "strings"

// Capability names a kind of work qualcoder asks a model to do.
type Capability string

const (
	// CapabilityCoding assigns thematic codes to interview answers.
	CapabilityCoding Capability = "coding"

	// CapabilityExtraction answers questionnaire questions from transcripts.
	CapabilityExtraction Capability = "extraction"

	// CapabilityFast serves requests that name neither a model nor a
	// known capability.
	CapabilityFast Capability = "fast"
)

// Capabilities lists the known capabilities in routing order.
func Capabilities() []Capability {
	return []Capability{CapabilityCoding, CapabilityExtraction, CapabilityFast}
}

// IsValid reports whether c is a known capability.
func (c Capability) IsValid() bool {
	for _, known := range Capabilities() {
		if c == known {
			return true
		}
	}
	return false
}

func (c Capability) String() string {
	return string(c)
}

// ParseCapability normalizes s and returns the matching capability, or ""
// when s names none.
func ParseCapability(s string) Capability {
	c := Capability(strings.ToLower(strings.TrimSpace(s)))
	if !c.IsValid() {
		return ""
	}
	return c
}
