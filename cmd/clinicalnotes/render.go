package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Nephrolytics-ai/clinical-notes/pkg/catalog"
	"github.com/Nephrolytics-ai/clinical-notes/pkg/notes"
)

func writeJSON(w io.Writer, results []notes.NoteResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(results)
}

func writeText(w io.Writer, results []notes.NoteResult) error {
	var b strings.Builder
	for i, result := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "=== %s note ===\n", result.Format)

		if result.Failed() {
			fmt.Fprintf(&b, "Generation failed: %v\n", result.Err)
			continue
		}

		b.WriteString(strings.TrimSpace(result.RawText))
		b.WriteString("\n\n")

		if result.Clean() {
			b.WriteString("No non-clinical terms detected.\n")
		} else {
			b.WriteString("Non-clinical terms detected:\n")
			for _, term := range result.FlaggedTerms {
				fmt.Fprintf(&b, "- %s\n", term)
			}
		}

		if result.NoCodeFound() {
			b.WriteString("No billing code found in the note.\n")
		} else {
			fmt.Fprintf(&b, "Suggested code: %s\n", result.SuggestedCode)
		}
		if result.SelectedCode != nil {
			fmt.Fprintf(&b, "Selected code: %s (%s)\n", result.SelectedCode, result.Status)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeCatalog(w io.Writer, codes *catalog.Catalog) error {
	var b strings.Builder
	for _, code := range codes.Codes() {
		fmt.Fprintf(&b, "%s\t%s\n", code.Code, code.Description)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
