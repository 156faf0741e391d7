package http

import (
	"context"
	"net/http"
	"time"

	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/session"
)

const sessionOpenTimeout = 20 * time.Second

type sessionHandler func(w http.ResponseWriter, r *http.Request, s *session.Session)

// withSession resolves the caller's open session; without one the request
// is rejected with 401.
func (s *Server) withSession(next sessionHandler) http.HandlerFunc {
	return s.authed(func(w http.ResponseWriter, r *http.Request, userID string) {
		sess, err := s.sessions.Get(userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		next(w, r, sess)
	})
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request, userID string) {
	ctx, cancel := context.WithTimeout(r.Context(), sessionOpenTimeout)
	defer cancel()

	sess, err := s.sessions.Open(ctx, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionView{UserID: userID, Months: len(sess.Months())})
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request, userID string) {
	if err := s.sessions.Close(userID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListMonths(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	months := sess.Months()
	out := make([]monthSummaryView, 0, len(months))
	for _, m := range months {
		t, err := sess.Totals(m.ID)
		if err != nil {
			// Deleted between listing and totals.
			continue
		}
		out = append(out, newMonthSummaryView(sess, m, t, s.locale))
	}
	writeJSON(w, http.StatusOK, map[string]any{"months": out})
}

func (s *Server) handleCreateMonth(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req createMonthRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}
	start, err := parseMonth(req.Month, s.now())
	if err != nil {
		writeError(w, r, invalid("month", "%v", err))
		return
	}
	m, err := sess.CreateMonth(start)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Month created", log.FieldMonthID, m.ID)
	s.writeMonth(w, r, sess, m.ID, http.StatusCreated)
}

func (s *Server) handleGetMonth(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	s.writeMonth(w, r, sess, r.PathValue("id"), http.StatusOK)
}

func (s *Server) handleDeleteMonth(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	id := r.PathValue("id")
	if err := sess.DeleteMonth(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Month deleted", log.FieldMonthID, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetSalaries(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req salariesRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	s1, s2, err := req.parse(s.locale)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id := r.PathValue("id")
	if err := sess.SetSalaries(id, s1, s2); err != nil {
		writeError(w, r, err)
		return
	}
	s.writeMonth(w, r, sess, id, http.StatusOK)
}

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := req.parse(s.locale)
	if err != nil {
		writeError(w, r, err)
		return
	}
	added, err := sess.AddExpense(r.PathValue("id"), e)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newExpenseView(added, s.locale))
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	expenseID := r.PathValue("expenseID")
	if req.ID != "" && req.ID != expenseID {
		writeError(w, r, invalid("id", "does not match path"))
		return
	}
	req.ID = expenseID
	e, err := req.parse(s.locale)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := sess.UpdateExpense(r.PathValue("id"), e); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newExpenseView(e, s.locale))
}

func (s *Server) handleRemoveExpense(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if err := sess.RemoveExpense(r.PathValue("id"), r.PathValue("expenseID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleImportFixed(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	id := r.PathValue("id")
	n, err := sess.ImportFixedExpenses(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := sess.Month(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, _ := sess.Totals(id)
	writeJSON(w, http.StatusOK, map[string]any{
		"imported": n,
		"month":    newMonthView(sess, m, t, s.locale),
	})
}

func (s *Server) handleCloseMonth(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	id := r.PathValue("id")
	if err := sess.CloseMonth(id); err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Month closed", log.FieldMonthID, id)
	s.writeMonth(w, r, sess, id, http.StatusOK)
}

func (s *Server) handleSavings(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	months := sess.Months()
	closed := 0
	for _, m := range months {
		if m.Closed {
			closed++
		}
	}
	writeJSON(w, http.StatusOK, savingsView{
		Accumulated: amount(core.CalculateAccumulatedSavings(months), s.locale),
		ClosedCount: closed,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	v := statusView{Save: sess.Status(), Months: map[string]string{}}
	for _, m := range sess.Months() {
		if st := saveState(sess, m.ID); st != "" {
			v.Months[m.ID] = st
		}
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) writeMonth(w http.ResponseWriter, r *http.Request, sess *session.Session, id string, status int) {
	m, err := sess.Month(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := sess.Totals(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, newMonthView(sess, m, t, s.locale))
}
