package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/Nephrolytics-ai/clinical-notes/pkg/utils"
	"gopkg.in/yaml.v3"
)

//go:embed default_terms.yaml
var defaultTermsYAML []byte

// Terms is the ordered list of lowercase phrases that must not appear in
// insurance-facing documentation.
type Terms []string

type termsFile struct {
	Terms []string `yaml:"terms"`
}

// NewTerms lowercases and trims each phrase, dropping blanks and repeats while
// keeping first-seen order.
func NewTerms(phrases []string) Terms {
	seen := make(map[string]struct{}, len(phrases))
	terms := make(Terms, 0, len(phrases))
	for _, phrase := range phrases {
		normalized := strings.ToLower(strings.TrimSpace(phrase))
		if normalized == "" {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		terms = append(terms, normalized)
	}
	return terms
}

func DefaultTerms() (Terms, error) {
	return ParseTerms(defaultTermsYAML)
}

func ParseTerms(data []byte) (Terms, error) {
	var file termsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, utils.WrapIfNotNil(fmt.Errorf("parse terms: %w", err))
	}
	return NewTerms(file.Terms), nil
}

func LoadTermsFile(path string) (Terms, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, utils.WrapIfNotNil(fmt.Errorf("read terms file: %w", err))
	}
	return ParseTerms(data)
}
