package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"iasmeen/internal/analysis"
	"iasmeen/internal/i18n"
	"iasmeen/internal/report"
	"iasmeen/internal/session"
	"iasmeen/internal/store"
)

// PrimaryResponse is the primary slot as seen by clients.
type PrimaryResponse struct {
	Phase     session.Phase `json:"phase"`
	Kind      analysis.Kind `json:"kind,omitempty"`
	Subject   string        `json:"subject,omitempty"`
	Error     string        `json:"error,omitempty"`
	HistoryID string        `json:"historyId,omitempty"`
}

// StateResponse is the JSON form of a session.
type StateResponse struct {
	ID               string                      `json:"id"`
	Language         i18n.Language               `json:"language"`
	Target           analysis.TargetKind         `json:"target"`
	View             session.ViewModel           `json:"view"`
	Primary          PrimaryResponse             `json:"primary"`
	Result           any                         `json:"result,omitempty"`
	ReliabilityPhase session.Phase               `json:"reliabilityPhase"`
	Review           *analysis.ReliabilityReview `json:"review,omitempty"`
	ReliabilityError string                      `json:"reliabilityError,omitempty"`
	UploadError      string                      `json:"uploadError,omitempty"`
}

func newStateResponse(id string, loc *i18n.Localizer, st session.State) StateResponse {
	resp := StateResponse{
		ID:       id,
		Language: loc.Language(),
		Target:   st.Target,
		View:     session.View(st),
		Primary: PrimaryResponse{
			Phase:     st.Primary.Phase,
			Kind:      st.Primary.Kind,
			Subject:   st.Primary.Subject,
			Error:     st.Primary.Err,
			HistoryID: st.Primary.HistoryID,
		},
		ReliabilityPhase: st.Reliability.Phase,
		ReliabilityError: st.Reliability.Err,
		UploadError:      st.UploadErr,
	}
	if st.Primary.Result != nil {
		resp.Result = st.Primary.Result.Record()
	}
	if st.Reliability.Phase == session.PhaseSettled {
		resp.Review = st.Reliability.Review
	}
	return resp
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id, e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newStateResponse(id, e.loc, e.sess.Snapshot()))
}

type targetRequest struct {
	Kind string `json:"kind"`
}

func (s *Server) selectTarget(w http.ResponseWriter, r *http.Request) {
	id, e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req targetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	st, err := e.sess.SelectTarget(analysis.TargetKind(req.Kind))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newStateResponse(id, e.loc, st))
}

type languageRequest struct {
	Language string `json:"language"`
}

func (s *Server) selectLanguage(w http.ResponseWriter, r *http.Request) {
	id, e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req languageRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	lang, err := i18n.ParseLanguage(req.Language)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := e.loc.SetLanguage(lang); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newStateResponse(id, e.loc, e.sess.Snapshot()))
}

type searchRequest struct {
	Subject string `json:"subject"`
}

// search blocks until the producer settles. A producer failure is a 200
// whose state carries the error.
func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	id, e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req searchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	st, err := e.sess.Search(r.Context(), req.Subject)
	if errors.Is(err, session.ErrEmptySubject) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newStateResponse(id, e.loc, st))
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	id, e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if r.ContentLength > s.opts.MaxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, `missing "file" field`)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	// A decode failure is reported through the state's uploadError.
	st, _ := e.sess.Upload(r.Context(), header.Filename, data)
	writeJSON(w, http.StatusOK, newStateResponse(id, e.loc, st))
}

func (s *Server) reliability(w http.ResponseWriter, r *http.Request) {
	id, e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	st, err := e.sess.RequestReliability(r.Context())
	if errors.Is(err, analysis.ErrReliabilityUnavailable) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newStateResponse(id, e.loc, st))
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	id, e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newStateResponse(id, e.loc, e.sess.Reset()))
}

func (s *Server) report(w http.ResponseWriter, r *http.Request) {
	_, e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	md := report.Markdown(e.loc, e.sess.Snapshot())
	if md == "" {
		writeError(w, http.StatusNotFound, "no result to report")
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = io.WriteString(w, md)
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotImplemented, "history is disabled")
		return
	}
	limit := s.opts.HistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, s.opts.HistoryLimit)
	}

	var (
		items []store.Analysis
		err   error
	)
	if domain := strings.TrimSpace(r.URL.Query().Get("domain")); domain != "" {
		items, err = s.history.ByRegistrable(r.Context(), domain, limit)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	} else {
		items, err = s.history.Recent(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	if items == nil {
		items = []store.Analysis{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
