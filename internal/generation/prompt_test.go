package generation

import (
	"strings"
	"testing"

	"github.com/tomashavel/faceforge/internal/profile"
)

func TestBuildPromptWithProfile(t *testing.T) {
	p, err := profile.Aggregate([]profile.Analysis{
		{
			ImageURL: "a.jpg",
			Quality:  0.9,
			Face:     &profile.FaceGeometry{FaceShape: "oval", HairColor: "black", Confidence: 0.9},
		},
	}, 0.4)
	if err != nil {
		t.Fatalf("failed to build profile: %v", err)
	}

	prompt := BuildPrompt("portrait of the person with {face}, {lighting}", p)

	if strings.Contains(prompt, "{face}") || strings.Contains(prompt, "{lighting}") {
		t.Errorf("placeholders left unsubstituted: %q", prompt)
	}
	if !strings.Contains(prompt, "oval face shape") {
		t.Errorf("expected profile descriptor in prompt: %q", prompt)
	}
	// Profile has no lighting signal, so the generic fallback applies.
	if !strings.Contains(prompt, "soft natural lighting") {
		t.Errorf("expected generic lighting fallback: %q", prompt)
	}
}

func TestBuildPromptNilProfile(t *testing.T) {
	prompt := BuildPrompt("portrait, {face}, {body}, {style}", nil)

	for _, placeholder := range []string{"{face}", "{body}", "{style}"} {
		if strings.Contains(prompt, placeholder) {
			t.Errorf("placeholder %s not substituted: %q", placeholder, prompt)
		}
	}
	if !strings.Contains(prompt, "reference images") {
		t.Errorf("expected generic fallback text: %q", prompt)
	}
}

func TestAppendHints(t *testing.T) {
	base := "portrait of the person"

	once := AppendHints(base, []string{"preserve original hair color"})
	if !strings.HasPrefix(once, base) {
		t.Errorf("hints must append, not replace: %q", once)
	}
	if !strings.Contains(once, "preserve original hair color") {
		t.Errorf("missing hint: %q", once)
	}

	twice := AppendHints(once, []string{"narrow the jawline"})
	if !strings.Contains(twice, "preserve original hair color") || !strings.Contains(twice, "narrow the jawline") {
		t.Errorf("earlier hints lost on second append: %q", twice)
	}
}

func TestAppendHintsEmpty(t *testing.T) {
	base := "portrait"
	if got := AppendHints(base, nil); got != base {
		t.Errorf("empty hints must not change the prompt: %q", got)
	}
	if got := AppendHints(base, []string{"", "  "}); got != base {
		t.Errorf("blank hints must not change the prompt: %q", got)
	}
}
