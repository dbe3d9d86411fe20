package aiguided

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/vulnsight/vulnsight/internal/config"
	"github.com/vulnsight/vulnsight/internal/status"
	"github.com/vulnsight/vulnsight/internal/techdetect"
)

// Retry policy for the generateContent call.
const (
	MaxAttempts    = 3
	RetryDelay     = 5 * time.Second
	AttemptTimeout = 60 * time.Second
)

const (
	MsgNoKey      = "API key not configured. Set gemini_api_key in the config file."
	MsgNoTech     = "No technologies detected for AI analysis."
	MsgNoResponse = "No valid response received from the AI model."
)

const maxErrorBody = 512

type action int

const (
	accept action = iota
	retry
	abort
)

// policy maps an HTTP status class to the next step. Classes not listed abort.
var policy = map[int]action{
	2: accept,
	4: abort,
	5: retry,
}

func classify(status int) action {
	if a, ok := policy[status/100]; ok {
		return a
	}
	return abort
}

// Sleeper waits between attempts. It returns early with ctx's error.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type Options struct {
	APIKey   string
	Model    string
	Endpoint string
	// RPMLimit paces requests; 0 disables pacing.
	RPMLimit   int
	HTTPClient *http.Client
	Sleep      Sleeper
}

// Client asks Gemini for likely CVEs in a detected technology stack.
type Client struct {
	apiKey   string
	model    string
	endpoint string
	http     *http.Client
	sleep    Sleeper
	limiter  *rate.Limiter
}

func New(opts Options) *Client {
	c := &Client{
		apiKey:   strings.TrimSpace(opts.APIKey),
		model:    opts.Model,
		endpoint: strings.TrimRight(opts.Endpoint, "/"),
		http:     opts.HTTPClient,
		sleep:    opts.Sleep,
	}
	if c.model == "" {
		c.model = config.DefaultModel
	}
	if c.endpoint == "" {
		c.endpoint = config.DefaultEndpoint
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.sleep == nil {
		c.sleep = sleep
	}
	if opts.RPMLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RPMLimit)), 1)
	}
	return c
}

func NewFromConfig(cfg *config.Config) *Client {
	return New(Options{
		APIKey:   cfg.AI.APIKey,
		Model:    cfg.AI.Model,
		Endpoint: cfg.AI.Endpoint,
		RPMLimit: cfg.AI.RPMLimit,
	})
}

// TechStrings flattens fingerprint entries into "name v1, v2" or "name".
func TechStrings(entries []techdetect.Entry) []string {
	var out []string
	for _, f := range techdetect.Normalize(entries) {
		out = append(out, f.Display())
	}
	return out
}

func BuildPrompt(tech []string) string {
	return "You are a cybersecurity expert. Based on the following technologies, " +
		"list the top 3-5 most critical potential CVEs (Common Vulnerabilities and Exposures). " +
		"For each CVE, provide the CVE ID, a brief description, and the severity (e.g., Critical, High, Medium). " +
		"Format the output as simple, human-readable plain text. " +
		"Technologies detected: " + strings.Join(tech, ", ")
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type reply struct {
	status int
	body   []byte
	err    error
}

// Suggest returns Gemini's CVE suggestions for the fingerprinted stack.
// It always returns text: on any failure the text is a diagnostic.
func (c *Client) Suggest(ctx context.Context, entries []techdetect.Entry) string {
	if c.apiKey == "" {
		status.Errorf("%s", MsgNoKey)
		return MsgNoKey
	}
	tech := TechStrings(entries)
	if len(tech) == 0 {
		status.Infof("%s", MsgNoTech)
		return MsgNoTech
	}

	status.Infof("Requesting CVE suggestions from Google Gemini...")
	body, err := json.Marshal(generateRequest{Contents: []content{{Parts: []part{{Text: BuildPrompt(tech)}}}}})
	if err != nil {
		return "AI API Error: " + err.Error()
	}

	var last string
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		r := c.post(ctx, body)
		switch {
		case r.err != nil:
			status.Errorf("Attempt %d/%d: could not reach the AI API: %v", attempt, MaxAttempts, r.err)
			last = "AI API Error: " + r.err.Error()
		case classify(r.status) == accept:
			status.Infof("Received AI suggestions.")
			return extractText(r.body)
		case classify(r.status) == retry:
			status.Errorf("Server error (status %d). Attempt %d/%d.", r.status, attempt, MaxAttempts)
			last = fmt.Sprintf("AI API Error: server error %d after %d attempts", r.status, MaxAttempts)
		default:
			msg := fmt.Sprintf("AI API Error: %d - %s", r.status, truncate(strings.TrimSpace(string(r.body)), maxErrorBody))
			status.Errorf("%s", msg)
			return msg
		}

		if attempt < MaxAttempts {
			if err := c.sleep(ctx, RetryDelay); err != nil {
				return "AI API Error: " + err.Error()
			}
		}
	}
	return last
}

func (c *Client) post(ctx context.Context, body []byte) reply {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return reply{err: err}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, AttemptTimeout)
	defer cancel()

	u := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.endpoint, c.model, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return reply{err: c.redact(err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return reply{err: c.redact(err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return reply{err: c.redact(err)}
	}
	return reply{status: resp.StatusCode, body: data}
}

// redact strips the API key out of errors that embed the request URL.
func (c *Client) redact(err error) error {
	msg := err.Error()
	for _, k := range []string{c.apiKey, url.QueryEscape(c.apiKey)} {
		if k != "" {
			msg = strings.ReplaceAll(msg, k, "REDACTED")
		}
	}
	return errors.New(msg)
}

// IsDiagnostic reports whether a Suggest result is a failure message rather
// than model output.
func IsDiagnostic(s string) bool {
	switch s {
	case MsgNoKey, MsgNoTech, MsgNoResponse:
		return true
	}
	return strings.HasPrefix(s, "AI API Error")
}

func extractText(body []byte) string {
	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return MsgNoResponse
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return MsgNoResponse
	}
	if text := resp.Candidates[0].Content.Parts[0].Text; text != "" {
		return text
	}
	return MsgNoResponse
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
