// Package ner implements detector.PersonDetector against an NER sidecar
// (e.g. a spaCy pt_core_news_lg service) reachable over HTTP.
//
// The sidecar exposes GET /health and POST /classify, which takes
// {"text": "..."} and returns {"spans": [{"start","end","label","text"}]}.
// Offsets are character (rune) offsets. Unlike a best-effort sanitizer, an
// unreachable sidecar is an error here: anonymization must not proceed
// without person detection.
package ner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dativo-io/lethe/internal/detector"
)

// DefaultTimeout bounds each sidecar request.
const DefaultTimeout = 30 * time.Second

// PersonLabels are the NER labels treated as person names. spaCy's
// Portuguese models emit PER; English models emit PERSON.
var PersonLabels = []string{"PER", "PERSON"}

// Client calls the NER sidecar.
type Client struct {
	baseURL string
	http    *http.Client
	labels  map[string]bool
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLabels overrides PersonLabels.
func WithLabels(labels ...string) Option {
	return func(c *Client) {
		c.labels = make(map[string]bool, len(labels))
		for _, l := range labels {
			c.labels[strings.ToUpper(l)] = true
		}
	}
}

// New creates a Client for the sidecar at baseURL (e.g. "http://lethe-ner:8001").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	WithLabels(PersonLabels...)(c)
	for _, o := range opts {
		o(c)
	}
	return c
}

var _ detector.PersonDetector = (*Client)(nil)

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Spans []nerSpan `json:"spans"`
}

type nerSpan struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Label string `json:"label"`
	Text  string `json:"text"`
}

type healthResponse struct {
	Status string `json:"status"`
	Model  string `json:"model"`
}

// Ready probes GET /health. Any transport error, non-200 status or a
// non-"ok" status field means the sidecar cannot serve requests.
func (c *Client) Ready(ctx context.Context) error {
	if c.baseURL == "" {
		return fmt.Errorf("%w: ner_url is not set", detector.ErrDetectorUnavailable)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("%w: building health request: %v", detector.ErrDetectorUnavailable, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: sidecar unreachable at %s: %v", detector.ErrDetectorUnavailable, c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: sidecar health returned %d", detector.ErrDetectorUnavailable, resp.StatusCode)
	}
	var h healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return fmt.Errorf("%w: decoding health response: %v", detector.ErrDetectorUnavailable, err)
	}
	if h.Status != "ok" {
		return fmt.Errorf("%w: sidecar status %q (model %q)", detector.ErrDetectorUnavailable, h.Status, h.Model)
	}
	return nil
}

// DetectPersons sends text to /classify and returns person spans with byte
// offsets into text.
func (c *Client) DetectPersons(ctx context.Context, text string) ([]detector.Span, error) {
	body, err := json.Marshal(classifyRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("ner: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ner: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: classify: %v", detector.ErrDetectorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: classify returned %d: %s", detector.ErrDetectorUnavailable, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ner: decode: %w", err)
	}

	offsets := runeToByteOffsets(text)
	spans := make([]detector.Span, 0, len(result.Spans))
	for _, s := range result.Spans {
		if !c.labels[strings.ToUpper(s.Label)] {
			continue
		}
		if s.Start < 0 || s.End < s.Start || s.End >= len(offsets) {
			log.Debug().Int("start", s.Start).Int("end", s.End).Msg("ner_span_out_of_range")
			continue
		}
		start, end := offsets[s.Start], offsets[s.End]
		name := s.Text
		if name == "" {
			name = text[start:end]
		}
		spans = append(spans, detector.Span{Text: name, Start: start, End: end})
	}
	return spans, nil
}

// runeToByteOffsets maps each rune index (plus the end position) to its byte
// offset in s.
func runeToByteOffsets(s string) []int {
	offsets := make([]int, 0, len(s)+1)
	for i := range s {
		offsets = append(offsets, i)
	}
	return append(offsets, len(s))
}
