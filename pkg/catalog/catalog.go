// Package catalog holds the static reference data the note pipeline reads:
// the ordered billing-code table and the disallowed-term list. Both are loaded
// once at startup and never mutated afterwards, so they are safe to share
// across goroutines without locking.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/Nephrolytics-ai/clinical-notes/pkg/utils"
	"gopkg.in/yaml.v3"
)

var (
	ErrEmptyCatalog  = errors.New("billing code catalog is empty")
	ErrDuplicateCode = errors.New("duplicate billing code")
	ErrInvalidCode   = errors.New("invalid billing code entry")
)

//go:embed default_catalog.yaml
var defaultCatalogYAML []byte

type BillingCode struct {
	Code        string `yaml:"code" json:"code"`
	Description string `yaml:"description" json:"description"`
}

func (c BillingCode) String() string {
	return c.Code + ": " + c.Description
}

// Catalog is an ordered, read-only list of billing codes. Order is the order
// the codes were loaded in and is significant: code extraction and the
// default selection both walk it front to back.
type Catalog struct {
	codes []BillingCode
	index map[string]int
}

type catalogFile struct {
	Codes []BillingCode `yaml:"codes"`
}

func New(codes []BillingCode) (*Catalog, error) {
	if len(codes) == 0 {
		return nil, utils.WrapIfNotNil(ErrEmptyCatalog)
	}

	c := &Catalog{
		codes: make([]BillingCode, 0, len(codes)),
		index: make(map[string]int, len(codes)),
	}
	for i, entry := range codes {
		entry.Code = strings.TrimSpace(entry.Code)
		entry.Description = strings.TrimSpace(entry.Description)
		if entry.Code == "" {
			return nil, utils.WrapIfNotNil(fmt.Errorf("%w: entry %d has no code", ErrInvalidCode, i))
		}
		if strings.ContainsFunc(entry.Code, unicode.IsSpace) {
			return nil, utils.WrapIfNotNil(fmt.Errorf("%w: code %q contains whitespace", ErrInvalidCode, entry.Code))
		}
		if _, exists := c.index[entry.Code]; exists {
			return nil, utils.WrapIfNotNil(fmt.Errorf("%w %q", ErrDuplicateCode, entry.Code))
		}
		c.index[entry.Code] = len(c.codes)
		c.codes = append(c.codes, entry)
	}
	return c, nil
}

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalogYAML)
}

func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, utils.WrapIfNotNil(fmt.Errorf("parse catalog: %w", err))
	}
	return New(file.Codes)
}

func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, utils.WrapIfNotNil(fmt.Errorf("read catalog file: %w", err))
	}
	return Parse(data)
}

// Codes returns a copy of the catalog in stored order.
func (c *Catalog) Codes() []BillingCode {
	if c == nil {
		return nil
	}
	return append([]BillingCode(nil), c.codes...)
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.codes)
}

// First returns the first stored code, or the zero code for an empty catalog.
func (c *Catalog) First() BillingCode {
	if c.Len() == 0 {
		return BillingCode{}
	}
	return c.codes[0]
}

func (c *Catalog) Lookup(code string) (BillingCode, bool) {
	if c == nil {
		return BillingCode{}, false
	}
	i, ok := c.index[strings.TrimSpace(code)]
	if !ok {
		return BillingCode{}, false
	}
	return c.codes[i], true
}
