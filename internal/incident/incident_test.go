package incident

import (
	"errors"
	"strings"
	"testing"
)

// TestValidate verifies the identifier requirement.
func TestValidate(t *testing.T) {
	t.Parallel()

	in := Incident{ID: "INC-1", Description: "db down"}
	if err := in.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	in = Incident{Description: "db down"}
	if err := in.Validate(); !errors.Is(err, ErrMissingID) {
		t.Errorf("expected ErrMissingID, got %v", err)
	}

	in = Incident{ID: "   "}
	if err := in.Validate(); !errors.Is(err, ErrMissingID) {
		t.Errorf("whitespace-only ID must fail, got %v", err)
	}
}

// TestRender_OmitsAbsentFields verifies the default policy leaves absent
// optional fields out instead of rendering filler text.
func TestRender_OmitsAbsentFields(t *testing.T) {
	t.Parallel()

	in := Incident{
		ID:          "INC-42",
		Timestamp:   "2025-03-01T10:00:00Z",
		Category:    "database",
		Severity:    "critical",
		Description: "primary failed over repeatedly",
	}

	got := in.Render(false)
	if strings.Contains(got, "Not specified") || strings.Contains(got, "Not resolved") {
		t.Errorf("default policy rendered filler text:\n%s", got)
	}
	if strings.Contains(got, "ROOT CAUSE") {
		t.Errorf("absent field rendered:\n%s", got)
	}
	for _, want := range []string{"INCIDENT ID: INC-42", "SEVERITY: critical", "DESCRIPTION: primary failed over repeatedly"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
}

// TestRender_PlaceholderPolicy verifies the legacy-compatible policy renders
// the placeholder lines.
func TestRender_PlaceholderPolicy(t *testing.T) {
	t.Parallel()

	in := Incident{ID: "INC-42", Description: "api errors"}

	got := in.Render(true)
	for _, want := range []string{"ROOT CAUSE: Not specified", "RESOLUTION: Not resolved", "IMPACT: Not specified"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
	// Fields with no placeholder stay omitted even under the legacy policy.
	if strings.Contains(got, "RESOLUTION TIME") {
		t.Errorf("unexpected line in:\n%s", got)
	}
}

// TestRender_PresentOptionalFields verifies present optional fields render
// under both policies.
func TestRender_PresentOptionalFields(t *testing.T) {
	t.Parallel()

	in := Incident{
		ID:                 "INC-7",
		Description:        "cache stampede",
		RootCause:          "expired keys en masse",
		AffectedComponents: []string{"edge", "cache"},
	}

	for _, placeholders := range []bool{false, true} {
		got := in.Render(placeholders)
		if !strings.Contains(got, "ROOT CAUSE: expired keys en masse") {
			t.Errorf("placeholders=%v: missing root cause in:\n%s", placeholders, got)
		}
		if !strings.Contains(got, "AFFECTED COMPONENTS: edge, cache") {
			t.Errorf("placeholders=%v: missing components in:\n%s", placeholders, got)
		}
	}
}

// TestHasContent distinguishes embeddable records from empty shells.
func TestHasContent(t *testing.T) {
	t.Parallel()

	if (&Incident{ID: "INC-1"}).HasContent() {
		t.Error("record with only an ID has no content")
	}
	if !(&Incident{ID: "INC-1", Description: "x"}).HasContent() {
		t.Error("description is content")
	}
	if !(&Incident{ID: "INC-1", RootCause: "y"}).HasContent() {
		t.Error("root cause is content")
	}
}
