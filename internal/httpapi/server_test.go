package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"iasmeen/internal/analysis"
	"iasmeen/internal/i18n"
	"iasmeen/internal/session"
	"iasmeen/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

type fakeAnalyzer struct {
	err   error
	langs []string
}

func (f *fakeAnalyzer) Dispatch(_ context.Context, kind analysis.TargetKind, subject string) (analysis.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	switch kind {
	case analysis.TargetIP:
		return analysis.NetworkResult{Data: analysis.NetworkRecord{Target: subject}}, nil
	case analysis.TargetEmail:
		return analysis.EmailResult{Data: analysis.EmailRecord{Email: subject}}, nil
	}
	return analysis.WhoisResult{Data: analysis.WhoisRecord{DomainName: subject, Registrar: "ACME Registrar"}}, nil
}

func (f *fakeAnalyzer) Review(_ context.Context, _ analysis.Result, lang string) (*analysis.ReliabilityReview, error) {
	f.langs = append(f.langs, lang)
	return &analysis.ReliabilityReview{Reliability: analysis.ReliabilityHigh, Summary: "Consistent dates"}, nil
}

type fakeHistory struct {
	items  []store.Analysis
	domain string
}

func (f *fakeHistory) Recent(_ context.Context, limit int) ([]store.Analysis, error) {
	if limit < len(f.items) {
		return f.items[:limit], nil
	}
	return f.items, nil
}

func (f *fakeHistory) ByRegistrable(_ context.Context, domain string, _ int) ([]store.Analysis, error) {
	f.domain = domain
	if domain == "1.2.3.4" {
		return nil, errors.New("no registrable domain")
	}
	return f.items[:1], nil
}

type testServer struct {
	t        *testing.T
	handler  http.Handler
	analyzer *fakeAnalyzer
	history  *fakeHistory
}

func newTestServer(t *testing.T, opts Options) *testServer {
	a := &fakeAnalyzer{}
	h := &fakeHistory{items: []store.Analysis{{ID: "1", Kind: analysis.KindWhois, Subject: "example.com"}, {ID: "2"}}}
	factory := func(loc *i18n.Localizer) *session.Session {
		return session.New(a, session.WithLanguage(func() string { return string(loc.Language()) }))
	}
	return &testServer{t: t, handler: New(factory, h, opts).Routes(), analyzer: a, history: h}
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, r)
	return rec
}

func (ts *testServer) create(query string) string {
	rec := ts.do(http.MethodPost, "/api/sessions"+query, "")
	require.Equal(ts.t, http.StatusCreated, rec.Code)
	return decodeState(ts.t, rec).ID
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) StateResponse {
	t.Helper()
	var st StateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st), rec.Body.String())
	return st
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, Options{})
	rec := ts.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestSearchFlow(t *testing.T) {
	ts := newTestServer(t, Options{})
	id := ts.create("")

	rec := ts.do(http.MethodGet, "/api/sessions/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	st := decodeState(t, rec)
	assert.Equal(t, i18n.French, st.Language)
	assert.Equal(t, session.PanelEmpty, st.View.Panel)

	rec = ts.do(http.MethodPost, "/api/sessions/"+id+"/search", `{"subject":"example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	st = decodeState(t, rec)
	assert.Equal(t, session.PhaseSettled, st.Primary.Phase)
	assert.Equal(t, analysis.KindWhois, st.Primary.Kind)
	assert.Equal(t, session.ReliabilityOffer, st.View.Reliability)
	assert.Contains(t, rec.Body.String(), `"registrar":"ACME Registrar"`)

	rec = ts.do(http.MethodGet, "/api/sessions/"+id+"/report", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Bureau d'enregistrement")

	rec = ts.do(http.MethodPost, "/api/sessions/"+id+"/reliability", "")
	require.Equal(t, http.StatusOK, rec.Code)
	st = decodeState(t, rec)
	require.NotNil(t, st.Review)
	assert.Equal(t, "Consistent dates", st.Review.Summary)
	assert.Equal(t, []string{"fr"}, ts.analyzer.langs)

	rec = ts.do(http.MethodPost, "/api/sessions/"+id+"/reset", "")
	st = decodeState(t, rec)
	assert.Equal(t, session.PhaseIdle, st.Primary.Phase)
	assert.Nil(t, st.Result)
}

func TestSearchValidation(t *testing.T) {
	ts := newTestServer(t, Options{})
	id := ts.create("")

	rec := ts.do(http.MethodPost, "/api/sessions/"+id+"/search", `{"subject":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), session.ErrEmptySubject.Error())

	rec = ts.do(http.MethodPost, "/api/sessions/"+id+"/search", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/api/sessions/nope/search", `{"subject":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProducerErrorLivesInState(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.analyzer.err = errors.New("failed to fetch NETWORK data: down")
	id := ts.create("")

	rec := ts.do(http.MethodPut, "/api/sessions/"+id+"/target", `{"kind":"ip"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodPost, "/api/sessions/"+id+"/search", `{"subject":"1.1.1.1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decodeState(t, rec)
	assert.Equal(t, session.PanelError, st.View.Panel)
	assert.Equal(t, "failed to fetch NETWORK data: down", st.Primary.Error)
	assert.Nil(t, st.Result)
}

func TestTargetAndLanguage(t *testing.T) {
	ts := newTestServer(t, Options{})
	id := ts.create("?lang=en")

	rec := ts.do(http.MethodPut, "/api/sessions/"+id+"/target", `{"kind":"phone"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPut, "/api/sessions/"+id+"/target", `{"kind":"email"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decodeState(t, rec)
	assert.Equal(t, analysis.TargetEmail, st.Target)
	assert.Equal(t, i18n.English, st.Language)

	rec = ts.do(http.MethodPut, "/api/sessions/"+id+"/language", `{"language":"fr"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, i18n.French, decodeState(t, rec).Language)

	rec = ts.do(http.MethodPut, "/api/sessions/"+id+"/language", `{"language":"de"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = ts.do(http.MethodGet, "/api/sessions/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, i18n.French, decodeState(t, rec).Language)

	rec = ts.do(http.MethodPost, "/api/sessions?lang=de", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReliabilityUnavailable(t *testing.T) {
	ts := newTestServer(t, Options{})
	id := ts.create("")
	rec := ts.do(http.MethodPost, "/api/sessions/"+id+"/reliability", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(http.MethodGet, "/api/sessions/"+id+"/report", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func multipartUpload(t *testing.T, name string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func (ts *testServer) upload(id, name string, data []byte) *httptest.ResponseRecorder {
	body, ctype := multipartUpload(ts.t, name, data)
	r := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/upload", body)
	r.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, r)
	return rec
}

func TestUpload(t *testing.T) {
	ts := newTestServer(t, Options{})
	id := ts.create("")

	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewGray(image.Rect(0, 0, 4, 3))))

	rec := ts.upload(id, "shot.png", img.Bytes())
	require.Equal(t, http.StatusOK, rec.Code)
	st := decodeState(t, rec)
	assert.Equal(t, analysis.KindMetadata, st.Primary.Kind)
	assert.Equal(t, session.ReliabilityHidden, st.View.Reliability)
	assert.Contains(t, rec.Body.String(), `"Image Width":{"description":"4px"}`)

	rec = ts.upload(id, "notes.txt", []byte("hello"))
	require.Equal(t, http.StatusOK, rec.Code)
	st = decodeState(t, rec)
	assert.NotEmpty(t, st.UploadError)
	assert.Equal(t, analysis.KindMetadata, st.Primary.Kind, "previous result kept")
}

func TestUploadTooLarge(t *testing.T) {
	ts := newTestServer(t, Options{MaxUploadBytes: 64})
	id := ts.create("")
	rec := ts.upload(id, "big.png", bytes.Repeat([]byte{0}, 1024))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestUploadMissingFile(t *testing.T) {
	ts := newTestServer(t, Options{})
	id := ts.create("")
	r := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/upload", strings.NewReader("x"))
	r.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistory(t *testing.T) {
	ts := newTestServer(t, Options{HistoryLimit: 10})

	rec := ts.do(http.MethodGet, "/api/history?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Items []store.Analysis `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Items, 1)

	rec = ts.do(http.MethodGet, "/api/history?domain=www.example.com", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "www.example.com", ts.history.domain)

	rec = ts.do(http.MethodGet, "/api/history?domain=1.2.3.4", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodGet, "/api/history?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, Options{AllowedOrigin: "http://localhost:5173"})
	rec := ts.do(http.MethodOptions, "/api/sessions", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}
