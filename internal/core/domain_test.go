package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDateRoundTrip(t *testing.T) {
	d, err := ParseDate("2025-03-07")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.String() != "2025-03-07" {
		t.Fatalf("expected 2025-03-07, got %s", d.String())
	}
	b, err := json.Marshal(d)
	if err != nil || string(b) != `"2025-03-07"` {
		t.Fatalf("marshal: %s %v", b, err)
	}
	var back Date
	if err := json.Unmarshal(b, &back); err != nil || !back.Equal(d.Time) {
		t.Fatalf("unmarshal: %v %v", back, err)
	}
	if _, err := ParseDate("07/03/2025"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{
		ID:       "e1",
		Name:     "Aluguel",
		Value:    Money{Cents: 100},
		Category: "Casa",
		Date:     NewDate(2025, 1, 1),
		Type:     Fixed,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []struct {
		mutate func(*Expense)
		want   error
	}{
		{func(e *Expense) { e.ID = " " }, ErrEmptyExpenseID},
		{func(e *Expense) { e.Name = "" }, ErrEmptyName},
		{func(e *Expense) { e.Value = Money{} }, ErrInvalidAmount},
		{func(e *Expense) { e.Type = "monthly" }, ErrInvalidExpenseType},
		{func(e *Expense) { e.Date = Date{} }, ErrInvalidDate},
	}
	for i, tc := range bads {
		e := good
		tc.mutate(&e)
		if err := e.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("case %d expected %v, got %v", i, tc.want, err)
		}
	}
}

func TestMonthValidate(t *testing.T) {
	e := Expense{ID: "a", Name: "x", Value: Money{Cents: 1}, Date: NewDate(2025, 3, 1), Type: Variable}
	m := Month{ID: "2025-03", Expenses: []Expense{e}}
	if err := m.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	dup := m.Clone()
	dup.Expenses = append(dup.Expenses, e)
	if err := dup.Validate(); !errors.Is(err, ErrDuplicateExpenseID) {
		t.Fatalf("expected duplicate id error, got %v", err)
	}

	bad := Month{ID: "2025-3"}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidMonthID) {
		t.Fatalf("expected invalid id, got %v", err)
	}

	neg := Month{ID: "2025-03", Salary1: Money{Cents: -1}}
	if err := neg.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
}

func TestMonthCloneDoesNotAlias(t *testing.T) {
	m := Month{ID: "2025-03", Expenses: []Expense{{ID: "a"}}}
	c := m.Clone()
	c.Expenses[0].ID = "b"
	if m.Expenses[0].ID != "a" {
		t.Fatalf("clone aliases expenses")
	}
}

func TestNewExpenseIDUnique(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 1000; i++ {
		id := NewExpenseID()
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = struct{}{}
	}
}
