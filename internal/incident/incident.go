// Package incident defines the incident record ingested by the retrieval
// pipeline and its serialization into embeddable text.
package incident

import (
	"errors"
	"strings"
)

// ErrMissingID is returned when an incident has no identifier.
// Validation happens before any ingestion work begins.
var ErrMissingID = errors.New("incident: incident_id is required")

// Incident is one structured incident record. Immutable once ingested; the
// vector index is the source of truth, not a separate store.
type Incident struct {
	// ID is the unique incident identifier. Required.
	ID string `json:"incident_id"`

	// Timestamp is when the incident occurred (free-form, as reported).
	Timestamp string `json:"timestamp"`

	// Category classifies the incident (e.g. "network", "database").
	Category string `json:"category"`

	// Severity is the reported severity level (e.g. "critical", "low").
	Severity string `json:"severity"`

	// Description is the free-text incident description.
	Description string `json:"description"`

	// RootCause is the identified root cause, if known.
	RootCause string `json:"root_cause,omitempty"`

	// Resolution describes how the incident was resolved, if it was.
	Resolution string `json:"resolution,omitempty"`

	// Impact describes the customer or system impact, if recorded.
	Impact string `json:"impact,omitempty"`

	// ResolutionTime is how long resolution took, if recorded.
	ResolutionTime string `json:"resolution_time,omitempty"`

	// AffectedComponents lists the systems involved, if recorded.
	AffectedComponents []string `json:"affected_components,omitempty"`
}

// Validate checks the record is ingestible.
func (in *Incident) Validate() error {
	if strings.TrimSpace(in.ID) == "" {
		return ErrMissingID
	}
	return nil
}

// HasContent reports whether the incident carries any embeddable text beyond
// its identifier. Records without content are skipped by ingestion.
func (in *Incident) HasContent() bool {
	return strings.TrimSpace(in.Description) != "" ||
		strings.TrimSpace(in.RootCause) != "" ||
		strings.TrimSpace(in.Resolution) != "" ||
		strings.TrimSpace(in.Impact) != ""
}

// Render serializes the incident into the text that gets chunked and
// embedded. Each present field becomes one labelled line.
//
// When placeholders is false (the default policy), absent optional fields are
// omitted entirely since filler like "Not specified" is noise to the
// embedding model. When true, the placeholder lines are rendered for
// compatibility with datasets indexed under the legacy formatting.
func (in *Incident) Render(placeholders bool) string {
	var b strings.Builder

	writeLine := func(label, value, placeholder string) {
		value = strings.TrimSpace(value)
		if value == "" {
			if !placeholders || placeholder == "" {
				return
			}
			value = placeholder
		}
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\n")
	}

	writeLine("INCIDENT ID", in.ID, "")
	writeLine("TIMESTAMP", in.Timestamp, "")
	writeLine("CATEGORY", in.Category, "")
	writeLine("SEVERITY", in.Severity, "")
	writeLine("DESCRIPTION", in.Description, "")
	writeLine("ROOT CAUSE", in.RootCause, "Not specified")
	writeLine("RESOLUTION", in.Resolution, "Not resolved")
	writeLine("IMPACT", in.Impact, "Not specified")
	writeLine("RESOLUTION TIME", in.ResolutionTime, "")
	writeLine("AFFECTED COMPONENTS", strings.Join(in.AffectedComponents, ", "), "")

	return strings.TrimRight(b.String(), "\n")
}
