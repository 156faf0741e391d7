package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"budget/internal/core"
)

const maxBodyBytes = 64 << 10

// errBadJSON marks a body that is not the expected JSON document.
var errBadJSON = errors.New("malformed request body")

// decodeJSON reads one JSON object into dst, rejecting unknown fields.
// An empty body leaves dst untouched when optional is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) && optional {
			return nil
		}
		return fmt.Errorf("%w: %v", errBadJSON, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", errBadJSON)
	}
	return nil
}

type createMonthRequest struct {
	Month string `json:"month"`
}

type salariesRequest struct {
	Salary1 string `json:"salary1"`
	Salary2 string `json:"salary2"`
}

func (req salariesRequest) parse(loc core.Locale) (core.Money, core.Money, error) {
	s1, err := parseAmount(req.Salary1, loc, true)
	if err != nil {
		return core.Money{}, core.Money{}, invalid("salary1", "%v", err)
	}
	s2, err := parseAmount(req.Salary2, loc, true)
	if err != nil {
		return core.Money{}, core.Money{}, invalid("salary2", "%v", err)
	}
	return s1, s2, nil
}

type expenseRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Value    string `json:"value"`
	Category string `json:"category"`
	Date     string `json:"date"`
	Type     string `json:"type"`
}

// parse converts the request into an expense. Field checks that core
// validation reports as sentinel errors are left to it.
func (req expenseRequest) parse(loc core.Locale) (core.Expense, error) {
	e := core.Expense{
		ID:       sanitizeInput(req.ID),
		Name:     sanitizeInput(req.Name),
		Category: sanitizeInput(req.Category),
		Type:     core.ExpenseType(strings.ToLower(sanitizeInput(req.Type))),
	}
	if len(e.Name) > 200 {
		return core.Expense{}, invalid("name", "too long (max 200 characters)")
	}
	if len(e.Category) > 100 {
		return core.Expense{}, invalid("category", "too long (max 100 characters)")
	}
	v, err := parseAmount(req.Value, loc, false)
	if err != nil {
		return core.Expense{}, invalid("value", "%v", err)
	}
	e.Value = v
	if strings.TrimSpace(req.Date) != "" {
		d, err := core.ParseDate(req.Date)
		if err != nil {
			return core.Expense{}, invalid("date", "%v", err)
		}
		e.Date = d
	}
	return e, nil
}
