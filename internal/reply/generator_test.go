package reply_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hal9000y/email-writer/internal/gemini"
	"github.com/hal9000y/email-writer/internal/reply"
)

type providerMock struct {
	GenerateContentFunc func(ctx context.Context, prompt string) ([]byte, error)
}

func (m *providerMock) GenerateContent(ctx context.Context, prompt string) ([]byte, error) {
	return m.GenerateContentFunc(ctx, prompt)
}

func newUpstream(t *testing.T, status int, body string) *gemini.Client {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	c, err := gemini.New(gemini.Config{BaseURL: srv.URL, APIKey: "test-key"})
	require.NoError(t, err)

	return c
}

func TestGeneratorReply(t *testing.T) {
	cases := []struct {
		name       string
		status     int
		body       string
		expected   string
		wantPrefix string
	}{
		{
			name:     "well_formed_envelope",
			status:   http.StatusOK,
			body:     `{"candidates":[{"content":{"parts":[{"text":"Dear Ann, Friday works."}]}}]}`,
			expected: "Dear Ann, Friday works.",
		},
		{
			name:     "empty_envelope",
			status:   http.StatusOK,
			body:     `{}`,
			expected: reply.NoContent,
		},
		{
			name:     "malformed_envelope",
			status:   http.StatusOK,
			body:     `{"candidates":"nope"}`,
			expected: reply.NoContent,
		},
		{
			name:     "not_json",
			status:   http.StatusOK,
			body:     `upstream says hi`,
			expected: reply.NoContent,
		},
		{
			name:       "upstream_error",
			status:     http.StatusInternalServerError,
			body:       `{"error":{"message":"boom"}}`,
			wantPrefix: reply.ErrorMarker,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gen := reply.NewGenerator(newUpstream(t, tc.status, tc.body))
			got := gen.Reply(context.Background(), reply.EmailRequest{EmailContent: "Friday?"})

			if tc.wantPrefix != "" {
				assert.True(t, strings.HasPrefix(got, tc.wantPrefix), "got %q", got)
				return
			}
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestGeneratorClassifiesErrors(t *testing.T) {
	gen := reply.NewGenerator(newUpstream(t, http.StatusBadGateway, "bad gateway"))
	_, err := gen.Generate(context.Background(), reply.EmailRequest{EmailContent: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, reply.ErrUpstream)
	assert.True(t, gemini.IsStatusErr(err, http.StatusBadGateway))

	gen = reply.NewGenerator(newUpstream(t, http.StatusOK, `{}`))
	_, err = gen.Generate(context.Background(), reply.EmailRequest{EmailContent: "x"})
	assert.ErrorIs(t, err, reply.ErrNoContent)
}

func TestGeneratorTimeout(t *testing.T) {
	p := &providerMock{
		GenerateContentFunc: func(ctx context.Context, _ string) ([]byte, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}

	gen := reply.NewGenerator(p, reply.WithTimeout(30*time.Millisecond))
	got, err := gen.Generate(context.Background(), reply.EmailRequest{EmailContent: "x"})
	require.Error(t, err)
	assert.Empty(t, got)
	assert.ErrorIs(t, err, reply.ErrTimeout)
	assert.True(t, strings.HasPrefix(reply.Text(got, err), reply.ErrorMarker))
}

func TestGeneratorIgnoresCallerCancellation(t *testing.T) {
	started := make(chan struct{})
	p := &providerMock{
		GenerateContentFunc: func(ctx context.Context, _ string) ([]byte, error) {
			close(started)
			time.Sleep(50 * time.Millisecond)
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return []byte(`{"candidates":[{"content":{"parts":[{"text":"done"}]}}]}`), nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	got, err := reply.NewGenerator(p).Generate(ctx, reply.EmailRequest{EmailContent: "x"})
	require.NoError(t, err)
	assert.Equal(t, "done", got)
}

func TestGeneratorBoundsConcurrency(t *testing.T) {
	const workers = 2

	var (
		inFlight atomic.Int32
		peak     atomic.Int32
	)
	p := &providerMock{
		GenerateContentFunc: func(context.Context, string) ([]byte, error) {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			return []byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`), nil
		},
	}

	gen := reply.NewGenerator(p, reply.WithWorkers(workers))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, "ok", gen.Reply(context.Background(), reply.EmailRequest{EmailContent: "x"}))
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(workers))
}

func TestGeneratorSendsPrompt(t *testing.T) {
	var got string
	p := &providerMock{
		GenerateContentFunc: func(_ context.Context, prompt string) ([]byte, error) {
			got = prompt
			return nil, errors.New("offline")
		},
	}

	text := reply.NewGenerator(p).Reply(context.Background(), reply.EmailRequest{EmailContent: "body", Tone: "warm"})
	assert.Equal(t, reply.BuildPrompt(reply.EmailRequest{EmailContent: "body", Tone: "warm"}), got)
	assert.Equal(t, reply.ErrorMarker+"upstream request failed: offline", text)
}

func TestText(t *testing.T) {
	assert.Equal(t, "hello", reply.Text("hello", nil))
	assert.Equal(t, reply.NoContent, reply.Text("", reply.ErrNoContent))
	assert.Equal(t, reply.ErrorMarker+"boom", reply.Text("", errors.New("boom")))
}
