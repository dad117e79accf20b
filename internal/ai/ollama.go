package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	connectTimeout = 10 * time.Second
	headerTimeout  = 120 * time.Second
	maxLineBytes   = 1024 * 1024
)

// OllamaProvider implements Provider for an Ollama-style generate API.
// Both newline-delimited JSON and SSE "data:" framing are accepted.
type OllamaProvider struct {
	model      string
	endpoint   string
	apiURL     string
	httpClient *http.Client
}

type generateRequest struct {
	Model     string `json:"model"`
	ModelName string `json:"model_name"`
	Prompt    string `json:"prompt"`
	Stream    bool   `json:"stream"`
}

// NewOllamaProvider creates a provider that posts prompts to
// endpoint+generatePath using model.
func NewOllamaProvider(endpoint, generatePath, model string) *OllamaProvider {
	endpoint = strings.TrimRight(endpoint, "/")
	if generatePath != "" && !strings.HasPrefix(generatePath, "/") {
		generatePath = "/" + generatePath
	}
	return &OllamaProvider{
		model:      model,
		endpoint:   endpoint,
		apiURL:     endpoint + generatePath,
		httpClient: newStreamingHTTPClient(),
	}
}

// newStreamingHTTPClient bounds connection setup and time to first byte but
// leaves the body unbounded, since a long generation is not a timeout.
func newStreamingHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: connectTimeout}).DialContext,
			TLSHandshakeTimeout:   connectTimeout,
			ResponseHeaderTimeout: headerTimeout,
		},
	}
}

// Stream implements Provider.
func (o *OllamaProvider) Stream(ctx context.Context, prompt string) <-chan StreamDelta {
	ch := make(chan StreamDelta)
	go func() {
		defer close(ch)
		if err := o.stream(ctx, prompt, ch); err != nil {
			fail(ctx, ch, err)
		}
	}()
	return ch
}

func (o *OllamaProvider) stream(ctx context.Context, prompt string, ch chan<- StreamDelta) error {
	body, err := json.Marshal(generateRequest{
		Model:     o.model,
		ModelName: o.model,
		Prompt:    prompt,
		Stream:    true,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson, text/event-stream")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("could not reach model API at %s, is it running? (%w)", o.apiURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		errMsg := strings.TrimSpace(string(msg))
		if strings.Contains(errMsg, "model") && strings.Contains(errMsg, "not found") {
			return fmt.Errorf("model %q not found, run: ollama pull %s", o.model, o.model)
		}
		return fmt.Errorf("model API error (status %d): %s", resp.StatusCode, errMsg)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") || strings.HasPrefix(line, "event:") {
			continue
		}
		if strings.HasPrefix(line, "data:") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
		if line == "[DONE]" {
			send(ctx, ch, StreamDelta{Done: true})
			return nil
		}
		// Unparseable lines are skipped rather than ending the stream.
		if !gjson.Valid(line) {
			continue
		}

		res := gjson.Parse(line)
		if e := res.Get("error"); e.Exists() {
			return fmt.Errorf("model API error: %s", e.String())
		}
		if tok := res.Get("response").String(); tok != "" {
			if !send(ctx, ch, StreamDelta{Token: tok}) {
				return nil
			}
		}
		if res.Get("done").Bool() {
			send(ctx, ch, StreamDelta{Done: true})
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("stream interrupted: %w", err)
	}

	send(ctx, ch, StreamDelta{Done: true})
	return nil
}

// Models lists the models the endpoint reports through /api/tags.
func (o *OllamaProvider) Models(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.endpoint+"/api/tags", nil)
	if err != nil {
		return nil, err
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not reach %s: %w", o.endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model API error (status %d)", resp.StatusCode)
	}
	if !gjson.ValidBytes(data) {
		return nil, errors.New("unexpected /api/tags response")
	}

	var names []string
	for _, n := range gjson.GetBytes(data, "models.#.name").Array() {
		names = append(names, n.String())
	}
	return names, nil
}

// Model returns the configured model name.
func (o *OllamaProvider) Model() string {
	return o.model
}
