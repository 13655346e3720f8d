package notes

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Nephrolytics-ai/clinical-notes/pkg/catalog"
	"golang.org/x/text/cases"
)

// ScreenTerms returns every term that occurs anywhere in text, ignoring case,
// in the order the terms are listed. Matching is plain substring search with
// no word boundaries, so over-flagging is expected.
func ScreenTerms(text string, terms catalog.Terms) []string {
	folder := cases.Fold()
	folded := folder.String(text)

	flagged := make([]string, 0)
	for _, term := range terms {
		if term == "" {
			continue
		}
		if strings.Contains(folded, folder.String(term)) {
			flagged = append(flagged, term)
		}
	}
	return flagged
}

// ExtractCode returns the first catalog entry, in catalog order, whose code
// appears in text as a whole token, or nil when none does.
func ExtractCode(text string, codes *catalog.Catalog) *catalog.BillingCode {
	for _, code := range codes.Codes() {
		if containsToken(text, code.Code) {
			matched := code
			return &matched
		}
	}
	return nil
}

// containsToken reports whether token occurs in text with no letter or digit
// immediately before or after it.
func containsToken(text string, token string) bool {
	if token == "" {
		return false
	}

	offset := 0
	for {
		i := strings.Index(text[offset:], token)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(token)

		before, _ := utf8.DecodeLastRuneInString(text[:start])
		after, _ := utf8.DecodeRuneInString(text[end:])
		if !isTokenRune(before) && !isTokenRune(after) {
			return true
		}
		offset = start + 1
	}
}

func isTokenRune(r rune) bool {
	if r == utf8.RuneError {
		return false
	}
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Process screens rawText and resolves a billing code. It never fails: the
// worst case is no flagged terms and no suggested code, in which case the
// selection defaults to the catalog's first entry pending confirmation. A nil
// or empty catalog leaves SelectedCode nil.
func Process(rawText string, terms catalog.Terms, codes *catalog.Catalog) NoteResult {
	result := NoteResult{
		RawText: rawText,
		Status:  StatusGenerated,
	}

	result.FlaggedTerms = ScreenTerms(rawText, terms)
	result.Status = StatusScreened

	result.SuggestedCode = ExtractCode(rawText, codes)
	if result.SuggestedCode != nil {
		selected := *result.SuggestedCode
		result.SelectedCode = &selected
	} else if codes.Len() > 0 {
		first := codes.First()
		result.SelectedCode = &first
	}
	result.Status = StatusCodeResolved

	return result
}
