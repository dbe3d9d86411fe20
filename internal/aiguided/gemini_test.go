package aiguided

import (
	"context"
	"encoding/json"
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
	"github.com/vulnsight/vulnsight/internal/status"
	"github.com/vulnsight/vulnsight/internal/techdetect"
)

func init() {
	status.SetOutput(io.Discard, io.Discard)
}

const okBody = `{"candidates":[{"content":{"parts":[{"text":"CVE-2021-23017 (nginx resolver), High"}]}}]}`

var nginx = []techdetect.Entry{
	{Plugins: map[string]techdetect.Plugin{"nginx": {Version: techdetect.Strings{"1.18"}}}},
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

// scripted answers each request with the next status/body pair.
func scripted(t *testing.T, statuses []int, bodies []string) (*httptest.Server, *int32) {
	t.Helper()
	var n int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		i := int(atomic.AddInt32(&n, 1)) - 1
		if i >= len(statuses) {
			i = len(statuses) - 1
		}
		w.WriteHeader(statuses[i])
		_, _ = io.WriteString(w, bodies[i])
	}))
	t.Cleanup(srv.Close)
	return srv, &n
}

func newTestClient(endpoint string, rec *sleepRecorder) *Client {
	return New(Options{APIKey: "test-key", Endpoint: endpoint, Sleep: rec.sleep})
}

func TestSuggest_RetriesServerErrors(t *testing.T) {
	srv, calls := scripted(t, []int{503, 503, 200}, []string{"unavailable", "unavailable", okBody})
	rec := &sleepRecorder{}

	got := newTestClient(srv.URL, rec).Suggest(context.Background(), nginx)

	assert.Equal(t, "CVE-2021-23017 (nginx resolver), High", got)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
	assert.Equal(t, []time.Duration{RetryDelay, RetryDelay}, rec.delays)
}

func TestSuggest_ClientErrorIsTerminal(t *testing.T) {
	srv, calls := scripted(t, []int{401}, []string{`{"error":{"message":"API key not valid"}}`})
	rec := &sleepRecorder{}

	got := newTestClient(srv.URL, rec).Suggest(context.Background(), nginx)

	assert.True(t, strings.HasPrefix(got, "AI API Error: 401 - "), got)
	assert.Contains(t, got, "API key not valid")
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	assert.Empty(t, rec.delays)
}

func TestSuggest_ServerErrorExhaustion(t *testing.T) {
	srv, calls := scripted(t, []int{500}, []string{"boom"})
	rec := &sleepRecorder{}

	got := newTestClient(srv.URL, rec).Suggest(context.Background(), nginx)

	assert.Equal(t, "AI API Error: server error 500 after 3 attempts", got)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
	assert.Len(t, rec.delays, 2, "no delay after the final attempt")
}

func TestSuggest_NetworkErrorExhaustion(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()
	rec := &sleepRecorder{}

	got := newTestClient(endpoint, rec).Suggest(context.Background(), nginx)

	assert.True(t, strings.HasPrefix(got, "AI API Error: "), got)
	assert.NotContains(t, got, "test-key")
	assert.Len(t, rec.delays, 2)
}

func TestSuggest_NoNetworkWhenNothingToDo(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	noKey := New(Options{Endpoint: srv.URL})
	assert.Equal(t, MsgNoKey, noKey.Suggest(context.Background(), nginx))

	c := New(Options{APIKey: "k", Endpoint: srv.URL})
	assert.Equal(t, MsgNoTech, c.Suggest(context.Background(), nil))
	assert.Equal(t, MsgNoTech, c.Suggest(context.Background(), []techdetect.Entry{{}}))

	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestSuggest_MalformedSuccessBody(t *testing.T) {
	bodies := []string{
		`not json`,
		`{}`,
		`{"candidates":[]}`,
		`{"candidates":[{"content":{"parts":[]}}]}`,
		`{"candidates":[{"content":{"parts":[{"text":""}]}}]}`,
	}
	for _, body := range bodies {
		srv, _ := scripted(t, []int{200}, []string{body})
		got := newTestClient(srv.URL, &sleepRecorder{}).Suggest(context.Background(), nginx)
		assert.Equal(t, MsgNoResponse, got, body)
	}
}

func TestSuggest_RequestShape(t *testing.T) {
	var (
		gotPath, gotKey, gotType, gotMethod string
		gotBody                             generateRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		gotType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = io.WriteString(w, okBody)
	}))
	defer srv.Close()

	newTestClient(srv.URL+"/", &sleepRecorder{}).Suggest(context.Background(), nginx)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/v1beta/models/gemini-2.0-flash:generateContent", gotPath)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "application/json", gotType)
	require.Len(t, gotBody.Contents, 1)
	require.Len(t, gotBody.Contents[0].Parts, 1)
	prompt := gotBody.Contents[0].Parts[0].Text
	assert.Contains(t, prompt, "top 3-5 most critical")
	assert.True(t, strings.HasSuffix(prompt, "Technologies detected: nginx 1.18"), prompt)
}

func TestTechStrings(t *testing.T) {
	entries := []techdetect.Entry{
		{Plugins: map[string]techdetect.Plugin{
			"PHP":       {Version: techdetect.Strings{"8.1", "8.2"}},
			"WordPress": {},
		}},
		{Plugins: map[string]techdetect.Plugin{"nginx": {Version: techdetect.Strings{"1.18"}}}},
	}
	assert.Equal(t, []string{"PHP 8.1, 8.2", "WordPress", "nginx 1.18"}, TechStrings(entries))
	assert.Empty(t, TechStrings(nil))
}

func TestClassify(t *testing.T) {
	tests := map[int]action{200: accept, 204: accept, 301: abort, 400: abort, 401: abort, 429: abort, 500: retry, 503: retry}
	for code, want := range tests {
		assert.Equal(t, want, classify(code), code)
	}
}

func TestIsDiagnostic(t *testing.T) {
	for _, s := range []string{MsgNoKey, MsgNoTech, MsgNoResponse, "AI API Error: 401 - denied"} {
		assert.True(t, IsDiagnostic(s), s)
	}
	assert.False(t, IsDiagnostic("CVE-2021-41773 (Critical): path traversal in Apache 2.4.49"))
}
