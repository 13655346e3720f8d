package notes

import (
	"strings"

	"github.com/Nephrolytics-ai/clinical-notes/pkg/catalog"
)

// SystemPersona is the fixed system-level message sent with every prompt.
const SystemPersona = "You are a compliant clinical documentation assistant. " +
	"You write concise, professional notes suitable for insurance review and never invent facts that are not in the session text."

// forbiddenPhrasingExamples are the leading entries of the embedded default
// term list. The prompt is fixed, so a custom term file does not change them.
var forbiddenPhrasingExamples = []string{"inner child", "trauma bonding"}

// BuildPrompt assembles the user-level instruction prompt. It has no failure
// modes; rejecting empty session text is the caller's job.
func BuildPrompt(sessionText string, format NoteFormat, role ClinicianRole, codes *catalog.Catalog) string {
	var b strings.Builder

	b.WriteString("You are a licensed ")
	b.WriteString(string(role))
	b.WriteString(" generating a ")
	b.WriteString(string(format))
	b.WriteString(" note for insurance purposes.\n\n")

	b.WriteString("Requirements:\n")
	b.WriteString("- Use clinical, professional language.\n")
	b.WriteString("- Include only medically recognized diagnoses (DSM-5 / ICD-10).\n")
	b.WriteString("- Do NOT include non-clinical terms like ")
	for i, phrase := range forbiddenPhrasingExamples {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("'")
		b.WriteString(phrase)
		b.WriteString("'")
	}
	b.WriteString(", etc.\n")
	b.WriteString("- ")
	b.WriteString(format.Instruction())
	b.WriteString("\n\n")

	b.WriteString("Billing codes:\n")
	for _, code := range codes.Codes() {
		b.WriteString("- ")
		b.WriteString(code.Code)
		b.WriteString(": ")
		b.WriteString(code.Description)
		b.WriteString("\n")
	}
	b.WriteString("Suggest exactly one billing code from the list above and state the code in the note.\n\n")

	b.WriteString("Session Text:\n")
	b.WriteString(sessionText)

	return b.String()
}
