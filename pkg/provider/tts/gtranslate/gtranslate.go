// Package gtranslate provides a credential-free TTS provider backed by the
// public Google Translate speech endpoint. The endpoint only accepts short
// inputs, so longer text is split at word boundaries into chunks of at most
// MaxChunkLen characters and the returned MP3 segments are concatenated.
package gtranslate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MrWong99/radiodj/pkg/provider/tts"
)

const (
	defaultHost     = "https://translate.google.com"
	defaultLanguage = "en"
	defaultTimeout  = 15 * time.Second
	ttsPath         = "/translate_tts"
	browserAgent    = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

	// MaxChunkLen is the longest input, in characters, a single request may carry.
	MaxChunkLen = 200
)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithLanguage sets the spoken language code (default "en").
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		if lang != "" {
			p.language = lang
		}
	}
}

// WithHost overrides the base URL (scheme and host) of the speech endpoint.
func WithHost(host string) Option {
	return func(p *Provider) {
		if host != "" {
			p.host = strings.TrimRight(host, "/")
		}
	}
}

// WithSlow requests the slower speaking speed.
func WithSlow(slow bool) Option {
	return func(p *Provider) {
		p.slow = slow
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// Provider implements tts.Provider. It needs no credentials.
type Provider struct {
	host       string
	language   string
	slow       bool
	httpClient *http.Client
}

// New creates a Provider.
func New(opts ...Option) *Provider {
	p := &Provider{
		host:       defaultHost,
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string) (*tts.Audio, error) {
	chunks := SplitText(text, MaxChunkLen)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("gtranslate: text must not be empty")
	}

	var out bytes.Buffer
	for i, chunk := range chunks {
		data, err := p.fetch(ctx, chunk, i, len(chunks))
		if err != nil {
			return nil, fmt.Errorf("gtranslate: chunk %d/%d: %w", i+1, len(chunks), err)
		}
		out.Write(data)
	}
	return &tts.Audio{Data: out.Bytes(), Format: tts.FormatMP3}, nil
}

func (p *Provider) fetch(ctx context.Context, chunk string, idx, total int) ([]byte, error) {
	speed := "1"
	if p.slow {
		speed = "0.24"
	}
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("q", chunk)
	q.Set("tl", p.language)
	q.Set("total", strconv.Itoa(total))
	q.Set("idx", strconv.Itoa(idx))
	q.Set("textlen", strconv.Itoa(utf8.RuneCountInString(chunk)))
	q.Set("client", "tw-ob")
	q.Set("prev", "input")
	q.Set("ttsspeed", speed)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.host+ttsPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", browserAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", ttsPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s returned status %d", ttsPath, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty audio response")
	}
	return data, nil
}

// SplitText breaks text into chunks of at most maxLen characters, preferring
// word boundaries. Words longer than maxLen are cut hard.
func SplitText(text string, maxLen int) []string {
	var chunks []string
	var cur strings.Builder
	curLen := 0

	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, word := range strings.Fields(text) {
		runes := []rune(word)
		for len(runes) > maxLen {
			flush()
			chunks = append(chunks, string(runes[:maxLen]))
			runes = runes[maxLen:]
		}
		if len(runes) == 0 {
			continue
		}
		need := len(runes)
		if curLen > 0 {
			need++
		}
		if curLen+need > maxLen {
			flush()
			need = len(runes)
		}
		if curLen > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(string(runes))
		curLen += need
	}
	flush()
	return chunks
}

var _ tts.Provider = (*Provider)(nil)
