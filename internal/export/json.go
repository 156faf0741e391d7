package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"budget/internal/core"
)

// Document is the JSON interchange form read by import and written by export.
type Document struct {
	UserID     string       `json:"user_id"`
	ExportedAt time.Time    `json:"exported_at,omitempty"`
	Months     []core.Month `json:"months"`
	Savings    core.Money   `json:"accumulated_savings"`
}

func NewDocument(userID string, months []core.Month, now time.Time) Document {
	if months == nil {
		months = []core.Month{}
	}
	return Document{
		UserID:     userID,
		ExportedAt: now.UTC(),
		Months:     months,
		Savings:    core.CalculateAccumulatedSavings(months),
	}
}

func WriteJSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	return nil
}

// ReadJSON decodes a document and validates every month in it. The savings
// field is recomputed rather than trusted.
func ReadJSON(r io.Reader) (Document, error) {
	var doc Document
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}
	var errs []error
	seen := make(map[string]bool, len(doc.Months))
	for _, m := range doc.Months {
		if seen[m.ID] {
			errs = append(errs, fmt.Errorf("month %s: listed twice", m.ID))
			continue
		}
		seen[m.ID] = true
		if err := m.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("month %s: %w", m.ID, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return Document{}, err
	}
	doc.Savings = core.CalculateAccumulatedSavings(doc.Months)
	return doc, nil
}
