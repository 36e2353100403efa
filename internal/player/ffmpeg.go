package player

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/MrWong99/radiodj/pkg/audio"
)

// FFmpeg decodes sources by piping them through an ffmpeg process. YouTube
// page URLs are first resolved to a direct media URL with yt-dlp.
type FFmpeg struct {
	// Path is the ffmpeg binary. Defaults to "ffmpeg".
	Path string

	// YTDLPPath is the yt-dlp binary. Defaults to "yt-dlp".
	YTDLPPath string
}

var _ Decoder = (*FFmpeg)(nil)

// Open implements [Decoder].
func (f *FFmpeg) Open(ctx context.Context, source string, volume float64) (io.ReadCloser, error) {
	input := source
	if IsPageURL(source) {
		resolved, err := f.resolve(ctx, source)
		if err != nil {
			return nil, err
		}
		input = resolved
	}

	cmd := exec.CommandContext(ctx, orDefault(f.Path, "ffmpeg"), FFmpegArgs(input, volume)...)
	var stderr bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderr, n: 4096}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("player: ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("player: start ffmpeg: %w", err)
	}
	return &process{cmd: cmd, stdout: stdout, stderr: &stderr}, nil
}

// resolve returns the direct audio URL for a page URL.
func (f *FFmpeg) resolve(ctx context.Context, page string) (string, error) {
	out, err := exec.CommandContext(ctx, orDefault(f.YTDLPPath, "yt-dlp"), YTDLPArgs(page)...).Output()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return "", fmt.Errorf("player: yt-dlp %q: %w: %s", page, err, strings.TrimSpace(string(ee.Stderr)))
		}
		return "", fmt.Errorf("player: yt-dlp %q: %w", page, err)
	}
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			return line, nil
		}
	}
	return "", fmt.Errorf("player: yt-dlp %q: no media url", page)
}

// FFmpegArgs returns the ffmpeg arguments decoding input to the output PCM
// format, scaled by volume.
func FFmpegArgs(input string, volume float64) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		args = append(args, "-reconnect", "1", "-reconnect_streamed", "1", "-reconnect_delay_max", "5")
	}
	args = append(args, "-i", input, "-vn")
	if volume > 0 && volume != 1 {
		args = append(args, "-filter:a", "volume="+strconv.FormatFloat(volume, 'f', -1, 64))
	}
	return append(args,
		"-f", "s16le",
		"-ar", strconv.Itoa(audio.SampleRate),
		"-ac", strconv.Itoa(audio.Channels),
		"pipe:1",
	)
}

// YTDLPArgs returns the yt-dlp arguments printing the best audio URL of page.
func YTDLPArgs(page string) []string {
	return []string{"--no-playlist", "--quiet", "--no-warnings", "-f", "bestaudio/best", "-g", page}
}

// IsPageURL reports whether source is a video page that must be resolved
// before ffmpeg can read it.
func IsPageURL(source string) bool {
	u, err := url.Parse(source)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch host {
	case "youtube.com", "m.youtube.com", "music.youtube.com", "youtu.be":
		return true
	}
	return false
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// process is a running ffmpeg whose stdout is the PCM stream.
type process struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *bytes.Buffer

	once sync.Once
	err  error
}

func (p *process) Read(b []byte) (int, error) {
	n, err := p.stdout.Read(b)
	if errors.Is(err, io.EOF) {
		if werr := p.wait(false); werr != nil {
			return n, werr
		}
	}
	return n, err
}

// Close stops ffmpeg if it is still running.
func (p *process) Close() error {
	return p.wait(true)
}

func (p *process) wait(kill bool) error {
	p.once.Do(func() {
		if kill && p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
		err := p.cmd.Wait()
		if err != nil && !kill {
			p.err = fmt.Errorf("player: ffmpeg: %w: %s", err, strings.TrimSpace(p.stderr.String()))
		}
	})
	return p.err
}

// limitedWriter keeps the first n bytes written to it.
type limitedWriter struct {
	w io.Writer
	n int
}

func (l *limitedWriter) Write(b []byte) (int, error) {
	if l.n > 0 {
		k := min(len(b), l.n)
		_, _ = l.w.Write(b[:k])
		l.n -= k
	}
	return len(b), nil
}
