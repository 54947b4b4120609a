package api_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hal9000y/email-writer/internal/api"
	"github.com/hal9000y/email-writer/internal/gemini"
	"github.com/hal9000y/email-writer/internal/reply"
)

type generatorMock struct {
	GenerateFunc func(ctx context.Context, req reply.EmailRequest) (string, error)
}

func (m *generatorMock) Generate(ctx context.Context, req reply.EmailRequest) (string, error) {
	return m.GenerateFunc(ctx, req)
}

func TestPing(t *testing.T) {
	gen := &generatorMock{
		GenerateFunc: func(context.Context, reply.EmailRequest) (string, error) {
			t.Fatal("ping must not call the generator")
			return "", nil
		},
	}

	for _, mode := range []api.ErrorMode{api.ErrorModeStatus, api.ErrorModeInBand} {
		t.Run(string(mode), func(t *testing.T) {
			rec := httptest.NewRecorder()
			api.NewHandler(gen, mode).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/email/ping", nil))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, api.PingText, rec.Body.String())
		})
	}
}

func TestGenerate(t *testing.T) {
	upstreamErr := fmt.Errorf("%w: POST https://example/models/x:generateContent with status 500", reply.ErrUpstream)
	timeoutErr := fmt.Errorf("%w: context deadline exceeded", reply.ErrTimeout)

	cases := []struct {
		name         string
		mode         api.ErrorMode
		body         string
		reply        string
		err          error
		expectedCode int
		expectedBody string
	}{
		{
			name:         "success",
			mode:         api.ErrorModeStatus,
			body:         `{"emailContent":"Lunch?","tone":"casual"}`,
			reply:        "Sure, noon works!",
			expectedCode: http.StatusOK,
			expectedBody: "Sure, noon works!",
		},
		{
			name:         "no_content_is_not_a_failure",
			mode:         api.ErrorModeStatus,
			body:         `{"emailContent":"Lunch?"}`,
			err:          reply.ErrNoContent,
			expectedCode: http.StatusOK,
			expectedBody: reply.NoContent,
		},
		{
			name:         "upstream_failure_status_mode",
			mode:         api.ErrorModeStatus,
			body:         `{"emailContent":"Lunch?"}`,
			err:          upstreamErr,
			expectedCode: http.StatusBadGateway,
			expectedBody: reply.ErrorMarker + upstreamErr.Error(),
		},
		{
			name:         "timeout_status_mode",
			mode:         api.ErrorModeStatus,
			body:         `{"emailContent":"Lunch?"}`,
			err:          timeoutErr,
			expectedCode: http.StatusGatewayTimeout,
			expectedBody: reply.ErrorMarker + timeoutErr.Error(),
		},
		{
			name:         "upstream_failure_inband_mode",
			mode:         api.ErrorModeInBand,
			body:         `{"emailContent":"Lunch?"}`,
			err:          upstreamErr,
			expectedCode: http.StatusOK,
			expectedBody: reply.ErrorMarker + upstreamErr.Error(),
		},
		{
			name:         "timeout_inband_mode",
			mode:         api.ErrorModeInBand,
			body:         `{"emailContent":"Lunch?"}`,
			err:          timeoutErr,
			expectedCode: http.StatusOK,
			expectedBody: reply.ErrorMarker + timeoutErr.Error(),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gen := &generatorMock{
				GenerateFunc: func(context.Context, reply.EmailRequest) (string, error) {
					return tc.reply, tc.err
				},
			}

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/email/generate", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			api.NewHandler(gen, tc.mode).ServeHTTP(rec, req)

			assert.Equal(t, tc.expectedCode, rec.Code)
			assert.Equal(t, tc.expectedBody, rec.Body.String())
			assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
		})
	}
}

func TestGenerateDecodesRequest(t *testing.T) {
	var got reply.EmailRequest
	gen := &generatorMock{
		GenerateFunc: func(_ context.Context, req reply.EmailRequest) (string, error) {
			got = req
			return "ok", nil
		},
	}

	rec := httptest.NewRecorder()
	body := `{"emailContent":"He said \"hi\"","tone":"formal"}`
	api.NewHandler(gen, api.ErrorModeStatus).ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/api/email/generate", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, reply.EmailRequest{EmailContent: `He said "hi"`, Tone: "formal"}, got)
}

func TestGenerateRejectsBadBody(t *testing.T) {
	gen := &generatorMock{
		GenerateFunc: func(context.Context, reply.EmailRequest) (string, error) {
			t.Fatal("generator must not be called")
			return "", nil
		},
	}

	for name, body := range map[string]string{"empty": "", "not_json": "emailContent=hi"} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			api.NewHandler(gen, api.ErrorModeStatus).ServeHTTP(rec,
				httptest.NewRequest(http.MethodPost, "/api/email/generate", strings.NewReader(body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestGenerateMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	api.NewHandler(&generatorMock{}, api.ErrorModeStatus).ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/api/email/generate", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestParseErrorMode(t *testing.T) {
	mode, err := api.ParseErrorMode("")
	require.NoError(t, err)
	assert.Equal(t, api.ErrorModeStatus, mode)

	mode, err = api.ParseErrorMode("inband")
	require.NoError(t, err)
	assert.Equal(t, api.ErrorModeInBand, mode)

	_, err = api.ParseErrorMode("loud")
	require.Error(t, err)
}

func TestGenerateRejectsOversizedBody(t *testing.T) {
	gen := &generatorMock{
		GenerateFunc: func(context.Context, reply.EmailRequest) (string, error) {
			t.Fatal("generator must not be called")
			return "", nil
		},
	}

	body := `{"emailContent":"` + strings.Repeat("a", 2<<20) + `"}`

	rec := httptest.NewRecorder()
	api.NewHandler(gen, api.ErrorModeInBand).ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/api/email/generate", strings.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateSlowUpstream(t *testing.T) {
	const apiKey = "secret-key"

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	client, err := gemini.New(gemini.Config{BaseURL: upstream.URL, APIKey: apiKey})
	require.NoError(t, err)
	gen := reply.NewGenerator(client, reply.WithTimeout(50*time.Millisecond))

	cases := []struct {
		mode         api.ErrorMode
		expectedCode int
	}{
		{mode: api.ErrorModeInBand, expectedCode: http.StatusOK},
		{mode: api.ErrorModeStatus, expectedCode: http.StatusGatewayTimeout},
	}

	for _, tc := range cases {
		t.Run(string(tc.mode), func(t *testing.T) {
			rec := httptest.NewRecorder()
			api.NewHandler(gen, tc.mode).ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
				"/api/email/generate", strings.NewReader(`{"emailContent":"Are we still on?","tone":"brief"}`)))

			assert.Equal(t, tc.expectedCode, rec.Code)
			assert.True(t, strings.HasPrefix(rec.Body.String(), reply.ErrorMarker), rec.Body.String())
			assert.Contains(t, rec.Body.String(), "timed out")
			assert.NotContains(t, rec.Body.String(), apiKey)
		})
	}
}
