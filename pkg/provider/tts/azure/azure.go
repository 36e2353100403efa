// Package azure provides a TTS provider backed by the Azure Cognitive Services
// Speech REST API. Requests are SSML documents; responses are MP3 clips.
package azure

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/radiodj/pkg/provider/tts"
)

const (
	endpointFmt        = "https://%s.tts.speech.microsoft.com/cognitiveservices/v1"
	defaultVoice       = "en-US-AvaMultilingualNeural"
	defaultOutputFmt   = "audio-24khz-48kbitrate-mono-mp3"
	defaultRate        = "1.0"
	defaultPitch       = "0%"
	defaultHTTPTimeout = 20 * time.Second
	userAgent          = "radiodj"
)

// Option is a functional option for configuring the Azure Provider.
type Option func(*Provider)

// WithVoice sets the neural voice name (e.g. "en-US-JennyNeural").
func WithVoice(voice string) Option {
	return func(p *Provider) {
		if voice != "" {
			p.voice = voice
		}
	}
}

// WithOutputFormat sets the X-Microsoft-OutputFormat header. Only MP3 formats
// are meaningful since Synthesize reports [tts.FormatMP3].
func WithOutputFormat(format string) Option {
	return func(p *Provider) {
		if format != "" {
			p.outputFormat = format
		}
	}
}

// WithProsody overrides the SSML prosody rate and pitch.
func WithProsody(rate, pitch string) Option {
	return func(p *Provider) {
		if rate != "" {
			p.rate = rate
		}
		if pitch != "" {
			p.pitch = pitch
		}
	}
}

// WithEndpoint replaces the regional endpoint URL. Intended for tests and
// sovereign clouds.
func WithEndpoint(url string) Option {
	return func(p *Provider) {
		p.endpoint = url
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// Provider implements tts.Provider against Azure Speech.
type Provider struct {
	key          string
	endpoint     string
	voice        string
	outputFormat string
	rate         string
	pitch        string
	httpClient   *http.Client
}

// New creates an Azure Provider. Both key and region are required; when either
// is empty New returns an error wrapping [tts.ErrNotConfigured].
func New(key, region string, opts ...Option) (*Provider, error) {
	if key == "" || region == "" {
		return nil, fmt.Errorf("azure: key and region are required: %w", tts.ErrNotConfigured)
	}
	p := &Provider{
		key:          key,
		endpoint:     fmt.Sprintf(endpointFmt, region),
		voice:        defaultVoice,
		outputFormat: defaultOutputFmt,
		rate:         defaultRate,
		pitch:        defaultPitch,
		httpClient:   &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string) (*tts.Audio, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("azure: text must not be empty")
	}

	body, err := p.ssml(text)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("azure: create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", p.key)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", p.outputFormat)
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("azure: POST: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("azure: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("azure: read body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("azure: empty audio response")
	}
	return &tts.Audio{Data: data, Format: tts.FormatMP3}, nil
}

// ssml renders the request document with text XML-escaped.
func (p *Provider) ssml(text string) ([]byte, error) {
	var escaped bytes.Buffer
	if err := xml.EscapeText(&escaped, []byte(text)); err != nil {
		return nil, fmt.Errorf("azure: escape text: %w", err)
	}
	lang := "en-US"
	if parts := strings.SplitN(p.voice, "-", 3); len(parts) == 3 {
		lang = parts[0] + "-" + parts[1]
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, `<speak version="1.0" xmlns="http://www.w3.org/2001/10/synthesis" xml:lang="%s">`, lang)
	fmt.Fprintf(&b, `<voice name="%s">`, p.voice)
	fmt.Fprintf(&b, `<prosody rate="%s" pitch="%s">`, p.rate, p.pitch)
	b.Write(escaped.Bytes())
	b.WriteString(`</prosody></voice></speak>`)
	return b.Bytes(), nil
}

var _ tts.Provider = (*Provider)(nil)
