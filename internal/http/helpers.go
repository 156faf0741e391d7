package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"budget/internal/core"
)

// HeaderUserID carries the authenticated user, set by the upstream proxy.
const HeaderUserID = "X-User-ID"

const maxUserIDLength = 128

// userID returns the trimmed X-User-ID header, or "" when it is absent or
// malformed.
func userID(r *http.Request) string {
	id := sanitizeInput(r.Header.Get(HeaderUserID))
	if id == "" || len(id) > maxUserIDLength || strings.ContainsAny(id, " /\\") {
		return ""
	}
	return id
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// parseAmount reads a locale-formatted amount. An empty string is zero when
// allowEmpty is set.
func parseAmount(s string, loc core.Locale, allowEmpty bool) (core.Money, error) {
	if strings.TrimSpace(s) == "" && allowEmpty {
		return core.Money{}, nil
	}
	return core.ParseMoney(s, loc)
}

// parseMonth reads "YYYY-MM" and returns its first day. An empty value yields
// the month containing now.
func parseMonth(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC), nil
	}
	return core.MonthStart(s)
}

// invalidInput marks a request that decodes but fails field validation.
type invalidInput struct {
	field string
	msg   string
}

func (e *invalidInput) Error() string { return fmt.Sprintf("%s: %s", e.field, e.msg) }

func invalid(field, format string, args ...any) error {
	return &invalidInput{field: field, msg: fmt.Sprintf(format, args...)}
}

func isInvalidInput(err error) bool {
	var target *invalidInput
	return errors.As(err, &target)
}
