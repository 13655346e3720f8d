package notes

import (
	"errors"
	"fmt"

	"github.com/Nephrolytics-ai/clinical-notes/pkg/catalog"
	"github.com/Nephrolytics-ai/clinical-notes/pkg/model"
)

var (
	ErrInvalidTransition = errors.New("invalid note result transition")
	ErrCodeNotInCatalog  = errors.New("billing code is not in the catalog")
)

// Status tracks a single format's result through
// Pending → Generated → Screened → CodeResolved → (Confirmed | Overridden).
// Failed is terminal and only reachable from Pending.
type Status string

const (
	StatusPending      Status = "pending"
	StatusGenerated    Status = "generated"
	StatusScreened     Status = "screened"
	StatusCodeResolved Status = "code_resolved"
	StatusConfirmed    Status = "confirmed"
	StatusOverridden   Status = "overridden"
	StatusFailed       Status = "failed"
)

type NoteResult struct {
	RequestID     string                   `json:"request_id"`
	Format        NoteFormat               `json:"format"`
	Status        Status                   `json:"status"`
	RawText       string                   `json:"raw_text,omitempty"`
	FlaggedTerms  []string                 `json:"flagged_terms"`
	SuggestedCode *catalog.BillingCode     `json:"suggested_code,omitempty"`
	SelectedCode  *catalog.BillingCode     `json:"selected_code,omitempty"`
	Err           *GenerationError         `json:"error,omitempty"`
	Metadata      model.GenerationMetadata `json:"metadata,omitempty"`
}

func (r NoteResult) Failed() bool {
	return r.Status == StatusFailed
}

func (r NoteResult) resolved() bool {
	switch r.Status {
	case StatusCodeResolved, StatusConfirmed, StatusOverridden:
		return true
	default:
		return false
	}
}

// NoCodeFound reports that code extraction ran and matched nothing. It is
// false for results that have not been screened yet or that failed.
func (r NoteResult) NoCodeFound() bool {
	return r.resolved() && r.SuggestedCode == nil
}

// Clean reports that screening ran and flagged no terms.
func (r NoteResult) Clean() bool {
	return r.resolved() && len(r.FlaggedTerms) == 0
}

// Confirm accepts the current selection as final.
func (r NoteResult) Confirm() (NoteResult, error) {
	if !r.resolved() {
		return r, fmt.Errorf("%w: cannot confirm a %s result", ErrInvalidTransition, r.Status)
	}
	r.Status = StatusConfirmed
	return r, nil
}

// Override replaces the selected code with an operator choice. The code must
// exist in codes; no generation call is made.
func (r NoteResult) Override(codes *catalog.Catalog, code string) (NoteResult, error) {
	if !r.resolved() {
		return r, fmt.Errorf("%w: cannot override a %s result", ErrInvalidTransition, r.Status)
	}
	selected, ok := codes.Lookup(code)
	if !ok {
		return r, fmt.Errorf("%w: %q", ErrCodeNotInCatalog, code)
	}
	r.SelectedCode = &selected
	r.Status = StatusOverridden
	return r, nil
}
