package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shouni/gemini-brand-kit/internal/config"
	"github.com/shouni/gemini-brand-kit/pkg/controller"
	"github.com/shouni/gemini-brand-kit/pkg/domain"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 1x1 の PNG
var tinyPNG, _ = base64.StdEncoding.DecodeString("iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg==")

// stubClient は GenerationClient のテスト用モックなのだ。
type stubClient struct {
	mu          sync.Mutex
	generateErr error
	editErr     error
	lastGen     domain.GenerationRequest
	lastEdit    domain.EditRequest
	block       chan struct{}
}

func (s *stubClient) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.EncodedImage, error) {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastGen = req
	if s.generateErr != nil {
		return nil, s.generateErr
	}
	return &domain.EncodedImage{Data: tinyPNG, MimeType: "image/png"}, nil
}

func (s *stubClient) Edit(ctx context.Context, req domain.EditRequest) (*domain.EncodedImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastEdit = req
	if s.editErr != nil {
		return nil, s.editErr
	}
	return &domain.EncodedImage{Data: []byte("edited"), MimeType: "image/png"}, nil
}

type stubFetcher struct {
	img *domain.EncodedImage
	err error
}

func (f *stubFetcher) FetchReference(ctx context.Context, url string) (*domain.EncodedImage, error) {
	return f.img, f.err
}

// testClient は Cookie を引き継いでリクエストを送るのだ。
type testClient struct {
	t       *testing.T
	handler http.Handler
	cookies []*http.Cookie
}

func newTestServer(t *testing.T, client *stubClient, fetcher ReferenceFetcher) *testClient {
	t.Helper()
	cfg := &config.Config{
		GinMode:        gin.TestMode,
		SessionTTL:     time.Hour,
		MaxUploadBytes: 1 << 20,
	}
	srv, err := New(cfg, func() (*controller.Controller, error) {
		return controller.New(client, nil)
	}, fetcher)
	require.NoError(t, err)
	return &testClient{t: t, handler: srv.Handler()}
}

func (tc *testClient) do(method, path string, body any) *httptest.ResponseRecorder {
	tc.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(tc.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return tc.send(req)
}

func (tc *testClient) send(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range tc.cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	tc.handler.ServeHTTP(w, req)
	if cookies := w.Result().Cookies(); len(cookies) > 0 {
		tc.cookies = cookies
	}
	return w
}

func decodeState(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestServer_HealthAndIndex(t *testing.T) {
	tc := newTestServer(t, &stubClient{}, nil)

	w := tc.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = tc.do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Startup Founder")
}

func TestServer_InitialStateIssuesSession(t *testing.T) {
	tc := newTestServer(t, &stubClient{}, nil)

	w := tc.do(http.MethodGet, "/api/state", nil)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, tc.cookies)
	assert.Equal(t, sessionCookieName, tc.cookies[0].Name)
	st := decodeState(t, w)
	assert.Equal(t, "landing", st["view"])
	assert.Equal(t, string(controller.PhaseIdleEmpty), st["phase"])
	assert.Empty(t, st["roles"])
}

func TestServer_SessionCookieIsRenewedOnEveryRequest(t *testing.T) {
	tc := newTestServer(t, &stubClient{}, nil)

	tc.do(http.MethodPost, "/api/name", map[string]string{"value": "Julian Gray"})
	require.NotEmpty(t, tc.cookies)
	first := tc.cookies[0]

	w := tc.do(http.MethodGet, "/api/state", nil)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookieName, cookies[0].Name)
	assert.Equal(t, first.Value, cookies[0].Value)
	assert.Equal(t, int(time.Hour.Seconds()), cookies[0].MaxAge)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, "Julian Gray", decodeState(t, w)["name"])
}

func TestServer_SessionsAreIsolated(t *testing.T) {
	client := &stubClient{}
	a := newTestServer(t, client, nil)
	b := &testClient{t: t, handler: a.handler}

	a.do(http.MethodPost, "/api/name", map[string]string{"value": "Julian Gray"})
	w := b.do(http.MethodGet, "/api/state", nil)

	assert.Equal(t, "", decodeState(t, w)["name"])
}

func TestServer_GenerateEndToEnd(t *testing.T) {
	client := &stubClient{}
	tc := newTestServer(t, client, nil)

	tc.do(http.MethodPost, "/api/view", map[string]string{"view": "generator"})
	tc.do(http.MethodPost, "/api/name", map[string]string{"value": "Julian Gray"})
	tc.do(http.MethodPost, "/api/roles", map[string]string{"label": "Founder"})
	tc.do(http.MethodPost, "/api/roles", map[string]string{"label": "CTO"})
	tc.do(http.MethodPost, "/api/style", map[string]string{"value": " Warm tones. "})

	w := tc.do(http.MethodPost, "/api/generate", nil)

	require.Equal(t, http.StatusOK, w.Code)
	st := decodeState(t, w)
	assert.Equal(t, string(controller.PhaseIdleReady), st["phase"])
	assert.True(t, strings.HasPrefix(st["image"].(string), "data:image/png;base64,"))
	assert.Equal(t, []string{"Founder", "CTO"}, client.lastGen.Roles)
	assert.Equal(t, " Warm tones. ", client.lastGen.StyleHint)

	w = tc.do(http.MethodGet, "/api/download", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "Julian_Gray_profile_pix.png")
	assert.Equal(t, tinyPNG, w.Body.Bytes())
}

func TestServer_GenerateValidation(t *testing.T) {
	client := &stubClient{}
	tc := newTestServer(t, client, nil)

	tc.do(http.MethodPost, "/api/roles", map[string]string{"label": "Founder"})
	w := tc.do(http.MethodPost, "/api/generate", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, controller.MsgValidation, decodeState(t, w)["error"])
	assert.Empty(t, client.lastGen.Name)
}

func TestServer_GenerateFailureUsesGenericMessage(t *testing.T) {
	client := &stubClient{generateErr: errors.New("upstream 503: quota exhausted")}
	tc := newTestServer(t, client, nil)

	tc.do(http.MethodPost, "/api/name", map[string]string{"value": "A"})
	tc.do(http.MethodPost, "/api/roles", map[string]string{"label": "B"})
	w := tc.do(http.MethodPost, "/api/generate", nil)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, controller.MsgGenerateFailed, decodeState(t, w)["error"])
	assert.NotContains(t, w.Body.String(), "quota")
}

func TestServer_GenerateWhileBusyConflicts(t *testing.T) {
	client := &stubClient{block: make(chan struct{})}
	tc := newTestServer(t, client, nil)

	tc.do(http.MethodPost, "/api/name", map[string]string{"value": "A"})
	tc.do(http.MethodPost, "/api/roles", map[string]string{"label": "B"})

	cookies := append([]*http.Cookie(nil), tc.cookies...)
	done := make(chan int, 1)
	go func() {
		req := httptest.NewRequest(http.MethodPost, "/api/generate", nil)
		for _, c := range cookies {
			req.AddCookie(c)
		}
		w := httptest.NewRecorder()
		tc.handler.ServeHTTP(w, req)
		done <- w.Code
	}()

	require.Eventually(t, func() bool {
		return decodeState(t, tc.do(http.MethodGet, "/api/state", nil))["phase"] == string(controller.PhaseBusy)
	}, time.Second, 5*time.Millisecond)

	w := tc.do(http.MethodPost, "/api/generate", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	close(client.block)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestServer_Edit(t *testing.T) {
	client := &stubClient{}
	tc := newTestServer(t, client, nil)

	tc.do(http.MethodPost, "/api/name", map[string]string{"value": "A"})
	tc.do(http.MethodPost, "/api/roles", map[string]string{"label": "B"})
	tc.do(http.MethodPost, "/api/generate", nil)

	w := tc.do(http.MethodPost, "/api/edit", map[string]string{"refinement": "Add classic glasses"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Add classic glasses", client.lastEdit.Refinement)
	assert.Equal(t, tinyPNG, client.lastEdit.Image.Data)
	st := decodeState(t, w)
	assert.Equal(t, "", st["refinement"])

	client.editErr = errors.New("boom")
	w = tc.do(http.MethodPost, "/api/edit", map[string]string{"refinement": "Make it blue"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, controller.MsgEditFailed, decodeState(t, w)["error"])
}

func TestServer_DownloadWithoutImage(t *testing.T) {
	tc := newTestServer(t, &stubClient{}, nil)
	w := tc.do(http.MethodGet, "/api/download", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_RoleEndpoints(t *testing.T) {
	tc := newTestServer(t, &stubClient{}, nil)

	for _, label := range []string{"A", "B", "C", "D", "A"} {
		tc.do(http.MethodPost, "/api/roles", map[string]string{"label": label})
	}
	st := decodeState(t, tc.do(http.MethodGet, "/api/state", nil))
	roles := st["roles"].([]any)
	require.Len(t, roles, domain.MaxRoles)

	st = decodeState(t, tc.do(http.MethodPost, "/api/roles/2/up", nil))
	labels := func(st map[string]any) []string {
		var out []string
		for _, r := range st["roles"].([]any) {
			out = append(out, r.(map[string]any)["label"].(string))
		}
		return out
	}
	assert.Equal(t, []string{"A", "C", "B"}, labels(st))

	st = decodeState(t, tc.do(http.MethodPost, "/api/roles/0/down", nil))
	assert.Equal(t, []string{"C", "A", "B"}, labels(st))

	w := tc.do(http.MethodPost, "/api/roles/x/up", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	firstID := st["roles"].([]any)[0].(map[string]any)["id"].(string)
	st = decodeState(t, tc.do(http.MethodDelete, "/api/roles/"+firstID, nil))
	assert.Equal(t, []string{"A", "B"}, labels(st))

	st = decodeState(t, tc.do(http.MethodDelete, "/api/roles", nil))
	assert.Empty(t, st["roles"])
}

func TestServer_Reference(t *testing.T) {
	t.Run("Multipart", func(t *testing.T) {
		client := &stubClient{}
		tc := newTestServer(t, client, nil)

		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, err := mw.CreateFormFile("file", "me.png")
		require.NoError(t, err)
		_, err = part.Write(tinyPNG)
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/reference", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := tc.send(req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, decodeState(t, w)["has_reference"])

		tc.do(http.MethodPost, "/api/name", map[string]string{"value": "A"})
		tc.do(http.MethodPost, "/api/roles", map[string]string{"label": "B"})
		tc.do(http.MethodPost, "/api/generate", nil)
		require.NotNil(t, client.lastGen.Reference)
		assert.Equal(t, "image/png", client.lastGen.Reference.MimeType)

		w = tc.do(http.MethodDelete, "/api/reference", nil)
		assert.Equal(t, false, decodeState(t, w)["has_reference"])
	})

	t.Run("DataURI", func(t *testing.T) {
		tc := newTestServer(t, &stubClient{}, nil)
		uri := domain.EncodedImage{Data: tinyPNG, MimeType: "image/png"}.DataURI()
		w := tc.do(http.MethodPost, "/api/reference", map[string]string{"data_uri": uri})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("RejectsNonImage", func(t *testing.T) {
		tc := newTestServer(t, &stubClient{}, nil)
		uri := domain.EncodedImage{Data: []byte("hello world"), MimeType: "image/png"}.DataURI()
		w := tc.do(http.MethodPost, "/api/reference", map[string]string{"data_uri": uri})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("RejectsTooLarge", func(t *testing.T) {
		tc := newTestServer(t, &stubClient{}, nil)
		big := domain.EncodedImage{Data: bytes.Repeat([]byte{0xFF}, 2<<20), MimeType: "image/png"}.DataURI()
		w := tc.do(http.MethodPost, "/api/reference", map[string]string{"data_uri": big})
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("URL", func(t *testing.T) {
		fetcher := &stubFetcher{img: &domain.EncodedImage{Data: tinyPNG, MimeType: "image/png"}}
		tc := newTestServer(t, &stubClient{}, fetcher)
		w := tc.do(http.MethodPost, "/api/reference", map[string]string{"url": "https://example.com/me.png"})
		assert.Equal(t, http.StatusOK, w.Code)

		fetcher.err = errors.New("blocked")
		fetcher.img = nil
		w = tc.do(http.MethodPost, "/api/reference", map[string]string{"url": "http://127.0.0.1/"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("URLDisabled", func(t *testing.T) {
		tc := newTestServer(t, &stubClient{}, nil)
		w := tc.do(http.MethodPost, "/api/reference", map[string]string{"url": "https://example.com/me.png"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestServer_SetViewRejectsUnknown(t *testing.T) {
	tc := newTestServer(t, &stubClient{}, nil)
	w := tc.do(http.MethodPost, "/api/view", map[string]string{"view": "settings"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
