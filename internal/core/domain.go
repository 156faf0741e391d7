package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	Fixed    ExpenseType = "fixed"
	Variable ExpenseType = "variable"
)

// DateLayout is the persisted calendar-date form of Expense.Date.
const DateLayout = "2006-01-02"

type (
	ExpenseType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Expense struct {
		ID       string      `json:"id"`
		Name     string      `json:"name"`
		Value    Money       `json:"value"`
		Category string      `json:"category"`
		Date     Date        `json:"date"`
		Type     ExpenseType `json:"type"`
	}

	// Month is one calendar month of a couple's budget. Expenses keep insertion order.
	Month struct {
		ID       string    `json:"id"`
		Label    string    `json:"label"`
		Salary1  Money     `json:"salary1"`
		Salary2  Money     `json:"salary2"`
		Expenses []Expense `json:"expenses"`
		Closed   bool      `json:"closed"`
	}
)

var (
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyName          = errors.New("empty name")
	ErrEmptyExpenseID     = errors.New("empty expense id")
	ErrInvalidExpenseType = errors.New("invalid expense type")
	ErrInvalidMonthID     = errors.New("invalid month id")
	ErrDuplicateExpenseID = errors.New("duplicate expense id")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses the YYYY-MM-DD form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// String returns the date as YYYY-MM-DD; the zero date renders as "".
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, string(b))
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (t ExpenseType) Valid() bool {
	return t == Fixed || t == Variable
}

// NewExpenseID returns a fresh globally unique expense identifier.
func NewExpenseID() string {
	return uuid.NewString()
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return ErrEmptyExpenseID
	}
	if strings.TrimSpace(e.Name) == "" {
		return ErrEmptyName
	}
	if len(e.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	if e.Value.Cents <= 0 {
		return ErrInvalidAmount
	}
	if !e.Type.Valid() {
		return ErrInvalidExpenseType
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	return nil
}

// NewMonth returns an open, empty month for the calendar month containing t.
func NewMonth(t time.Time, loc Locale) Month {
	return Month{
		ID:    GenerateMonthID(t),
		Label: MonthLabel(t, loc),
	}
}

func (m Month) Validate() error {
	if _, _, err := ParseMonthID(m.ID); err != nil {
		return err
	}
	if m.Salary1.Cents < 0 || m.Salary2.Cents < 0 {
		return ErrInvalidAmount
	}
	seen := make(map[string]struct{}, len(m.Expenses))
	for _, e := range m.Expenses {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("expense %q: %w", e.ID, err)
		}
		if _, dup := seen[e.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateExpenseID, e.ID)
		}
		seen[e.ID] = struct{}{}
	}
	return nil
}

// Clone returns a copy whose expense slice does not alias m's.
func (m Month) Clone() Month {
	out := m
	out.Expenses = append([]Expense(nil), m.Expenses...)
	return out
}

// ExpenseIndex returns the position of the expense with the given id, or -1.
func (m Month) ExpenseIndex(id string) int {
	for i, e := range m.Expenses {
		if e.ID == id {
			return i
		}
	}
	return -1
}
