package http

import (
	"errors"
	"net/http"
	"strconv"

	"nebenkosten/internal/apportion"
	"nebenkosten/internal/core"
	"nebenkosten/internal/history"
	applog "nebenkosten/internal/log"
	"nebenkosten/internal/services"
)

const (
	msgRecordFailed   = "Die Berechnung wurde durchgeführt, konnte aber nicht im Verlauf gespeichert werden."
	msgEntryNotFound  = "Dieser Verlaufseintrag existiert nicht mehr."
	msgEntryMalformed = "Dieser Verlaufseintrag ist beschädigt und kann nicht geladen werden."
	msgHistoryFailed  = "Der Verlauf konnte nicht gelesen werden."
	msgClearFailed    = "Der Verlauf konnte nicht gelöscht werden."
	msgInvalidInput   = "Die Eingaben sind ungültig."
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK, pageData{Form: formFromSnapshot(s.svc.Reset())})
}

func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		BadRequestError("Formular konnte nicht gelesen werden.").Write(w)
		return
	}

	snap, ferrs := parseSnapshotForm(r.PostForm, s.svc.Year())
	if len(ferrs) > 0 {
		applog.FromContext(ctx).InfoContext(ctx, "Rejected form input",
			applog.FieldOperation, applog.OpParse,
			"fields", len(ferrs))
		form := formFromValues(r.PostForm)
		form.Invalid = ferrs.fields()
		s.renderPage(w, r, http.StatusUnprocessableEntity, pageData{Form: form, Errors: ferrs.messages()})
		return
	}

	out, err := s.svc.Calculate(ctx, snap)
	switch {
	case errors.Is(err, services.ErrRecordFailed):
		s.access.LogError(ctx, "Calculation not recorded", err, applog.OpCalculate,
			applog.NewFields().WithCalculation(out.Entry.ID, s.svc.Year(), len(out.Result.Tenants), nil))
		s.renderPage(w, r, http.StatusOK, pageData{
			Form:   formFromSnapshot(out.Snapshot),
			Result: newResultView(out.Result),
			Errors: []string{msgRecordFailed},
		})
		return
	case err != nil:
		applog.FromContext(ctx).WarnContext(ctx, "Snapshot rejected", applog.FieldError, err)
		s.renderPage(w, r, http.StatusUnprocessableEntity, pageData{
			Form:   formFromValues(r.PostForm),
			Errors: []string{validationMessage(err, s.svc.Year())},
		})
		return
	}

	s.access.LogCalculation(ctx, applog.OpCalculate, out.Entry.ID, s.svc.Year(), len(out.Result.Tenants), warningCodes(out.Result))
	s.renderPage(w, r, http.StatusOK, pageData{
		Form:   formFromSnapshot(out.Snapshot),
		Result: newResultView(out.Result),
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Form reset", applog.FieldOperation, applog.OpReset)
	s.renderPage(w, r, http.StatusOK, pageData{
		Form:   formFromSnapshot(s.svc.Reset()),
		Notice: "Eingaben zurückgesetzt.",
	})
}

// handleLoadHistory restores entry n into the form. On failure the
// submitted form is shown again unchanged.
func (s *Server) handleLoadHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_ = r.ParseForm()
	current := s.currentForm(r)

	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil || n < 0 {
		s.renderPage(w, r, http.StatusNotFound, pageData{Form: current, Errors: []string{msgEntryNotFound}})
		return
	}

	out, err := s.svc.Load(ctx, n, r.PostForm.Get(fieldEntryID))
	switch {
	case errors.Is(err, history.ErrEntryNotFound):
		s.renderPage(w, r, http.StatusNotFound, pageData{Form: current, Errors: []string{msgEntryNotFound}})
		return
	case errors.Is(err, history.ErrMalformedEntry):
		s.access.LogError(ctx, "History entry malformed", err, applog.OpLoad, applog.NewFields())
		s.renderPage(w, r, http.StatusUnprocessableEntity, pageData{Form: current, Errors: []string{msgEntryMalformed}})
		return
	case err != nil:
		s.access.LogError(ctx, "History load failed", err, applog.OpLoad, applog.NewFields())
		s.renderPage(w, r, http.StatusInternalServerError, pageData{Form: current, Errors: []string{msgHistoryFailed}})
		return
	}

	s.access.LogCalculation(ctx, applog.OpLoad, out.Entry.ID, s.svc.Year(), len(out.Result.Tenants), warningCodes(out.Result))
	s.renderPage(w, r, http.StatusOK, pageData{
		Form:   formFromSnapshot(out.Snapshot),
		Result: newResultView(out.Result),
		Notice: "Eintrag vom " + out.Entry.Label() + " geladen.",
	})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_ = r.ParseForm()
	current := s.currentForm(r)

	if err := s.svc.ClearHistory(ctx); err != nil {
		s.access.LogError(ctx, "History clear failed", err, applog.OpClear, applog.NewFields())
		s.renderPage(w, r, http.StatusInternalServerError, pageData{Form: current, Errors: []string{msgClearFailed}})
		return
	}
	applog.FromContext(ctx).InfoContext(ctx, "History cleared", applog.FieldOperation, applog.OpClear)
	s.renderPage(w, r, http.StatusOK, pageData{Form: current, Notice: "Verlauf gelöscht."})
}

// currentForm echoes the submitted form, or the defaults when nothing was posted.
func (s *Server) currentForm(r *http.Request) formView {
	if len(r.PostForm) == 0 {
		return formFromSnapshot(s.svc.Reset())
	}
	return formFromValues(r.PostForm)
}

// renderPage fills in the year and history and writes index.html.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	ctx := r.Context()
	if s.templates == nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Templates not loaded", applog.FieldPath, r.URL.Path)
		InternalServerError("templates not loaded").Write(w)
		return
	}

	data.Year = s.svc.Year()
	entries, err := s.svc.History(ctx)
	if err != nil {
		s.access.LogError(ctx, "History list failed", err, applog.OpRender, applog.NewFields())
		data.HistoryError = msgHistoryFailed
	}
	data.History = historyItems(entries)

	resp := NewResponse().Status(status)
	if err := resp.Render(s.templates, "index.html", data); err != nil {
		s.access.LogError(ctx, "Template execution failed", err, applog.OpRender, applog.NewFields())
		InternalServerError("Seite konnte nicht erstellt werden.").Write(w)
		return
	}
	resp.Write(w)
}

func warningCodes(res apportion.Result) []string {
	if len(res.Warnings) == 0 {
		return nil
	}
	codes := make([]string, len(res.Warnings))
	for i, w := range res.Warnings {
		codes[i] = string(w.Code)
	}
	return codes
}

func validationMessage(err error, year int) string {
	switch {
	case errors.Is(err, core.ErrDateOutsideYear):
		return "Alle Daten müssen im Jahr " + strconv.Itoa(year) + " liegen."
	case errors.Is(err, core.ErrNegativeAmount):
		return "Beträge dürfen nicht negativ sein."
	case errors.Is(err, core.ErrInvalidSubPeriodCount):
		return "Die Anzahl der Heizkosten-Zeiträume muss 1, 2 oder 3 sein."
	}
	return msgInvalidInput
}
