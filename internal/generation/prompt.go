package generation

import (
	"strings"

	"github.com/tomashavel/faceforge/internal/profile"
)

// Placeholders substituted into prompt templates. Each resolves to a
// profile-derived descriptor, or to a generic fallback when the profile is
// absent or missing that category.
var promptPlaceholders = map[string]string{
	profile.CategoryFace:     "{face}",
	profile.CategoryBody:     "{body}",
	profile.CategoryLighting: "{lighting}",
	profile.CategoryCamera:   "{camera}",
	profile.CategoryStyle:    "{style}",
}

var genericFallbacks = map[string]string{
	profile.CategoryFace:     "the same face as in the reference images",
	profile.CategoryBody:     "natural body proportions matching the reference images",
	profile.CategoryLighting: "soft natural lighting",
	profile.CategoryCamera:   "standard portrait framing",
	profile.CategoryStyle:    "the person's usual clothing and style",
}

// BuildPrompt substitutes profile descriptors into the template. A nil
// profile yields generic fallbacks for every placeholder; the identity is
// then constrained by reference images alone.
func BuildPrompt(template string, p *profile.AggregatedProfile) string {
	descriptors := p.Descriptors()

	out := template
	for category, placeholder := range promptPlaceholders {
		value := descriptors[category]
		if value == "" {
			value = genericFallbacks[category]
		}
		out = strings.ReplaceAll(out, placeholder, value)
	}
	return strings.TrimSpace(out)
}

// AppendHints folds validator correction hints into the prompt for the next
// attempt. Hints accumulate across attempts; prior content is never
// replaced, so the hint history stays visible to the generator.
func AppendHints(prompt string, hints []string) string {
	cleaned := make([]string, 0, len(hints))
	for _, h := range hints {
		h = strings.TrimSpace(h)
		if h != "" {
			cleaned = append(cleaned, h)
		}
	}
	if len(cleaned) == 0 {
		return prompt
	}

	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\n\nCorrections from the previous attempt:\n")
	for _, h := range cleaned {
		b.WriteString("- ")
		b.WriteString(h)
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}
