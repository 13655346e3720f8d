// Package notes implements the note-generation and compliance-screening
// pipeline: prompt construction, generation through an injected text
// service, and deterministic post-processing of the returned note.
package notes

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownFormat    = errors.New("unknown note format")
	ErrEmptyRole        = errors.New("clinician role is required")
	ErrUnknownTier      = errors.New("unknown model tier")
	ErrEmptySessionText = errors.New("session text is required")
	ErrNoFormats        = errors.New("at least one note format is required")
)

type NoteFormat string

const (
	FormatSOAP NoteFormat = "SOAP"
	FormatDAP  NoteFormat = "DAP"
)

var formatInstructions = map[NoteFormat]string{
	FormatSOAP: "Format the response in SOAP (Subjective, Objective, Assessment, Plan) format, with the four sections in that order.",
	FormatDAP:  "Format the response in DAP (Data, Assessment, Plan) format, with the three sections in that order.",
}

// AllFormats lists every supported format in display order.
func AllFormats() []NoteFormat {
	return []NoteFormat{FormatSOAP, FormatDAP}
}

func ParseNoteFormat(value string) (NoteFormat, error) {
	format := NoteFormat(strings.ToUpper(strings.TrimSpace(value)))
	if _, ok := formatInstructions[format]; !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownFormat, value)
	}
	return format, nil
}

func (f NoteFormat) Instruction() string {
	return formatInstructions[f]
}

func (f NoteFormat) Valid() bool {
	_, ok := formatInstructions[f]
	return ok
}

// ClinicianRole is injected verbatim into the prompt.
type ClinicianRole string

const (
	RoleTherapist     ClinicianRole = "Therapist"
	RoleRecoveryCoach ClinicianRole = "Recovery Coach"
)

func ParseClinicianRole(value string) (ClinicianRole, error) {
	role := strings.TrimSpace(value)
	if role == "" {
		return "", ErrEmptyRole
	}
	return ClinicianRole(role), nil
}

type ModelTier string

const (
	TierFast     ModelTier = "fast"
	TierAccurate ModelTier = "accurate"
)

func ParseModelTier(value string) (ModelTier, error) {
	switch tier := ModelTier(strings.ToLower(strings.TrimSpace(value))); tier {
	case TierFast, TierAccurate:
		return tier, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownTier, value)
	}
}
