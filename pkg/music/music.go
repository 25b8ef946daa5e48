// Package music searches YouTube and streams a track as Opus frames:
// yt-dlp fetches the audio, ffmpeg converts it to 16kHz mono PCM, and
// an encoder packetizes it frame by frame.
package music

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/voxpod/voxpod/pkg/audio"
)

const (
	frameSamples = audio.SampleRate * 60 / 1000 // 60ms @ 16kHz
	frameBytes   = frameSamples * 2             // int16 mono

	// DefaultMaxDuration caps track length; compilations and full
	// concerts would pin the connection for an hour.
	DefaultMaxDuration = 10 * time.Minute

	searchResults = 5
)

// ErrNoResults is returned when the search finds nothing playable.
var ErrNoResults = errors.New("music: no results")

// Track is one search hit.
type Track struct {
	Title    string
	URL      string
	Duration time.Duration
}

// Service resolves a query to a track and streams its audio. Each
// stream gets its own encoder so a playing track never shares codec
// state with a TTS round.
type Service struct {
	encoders    audio.EncoderFactory
	maxDuration time.Duration
}

// NewService creates a Service.
func NewService(encoders audio.EncoderFactory) *Service {
	return &Service{encoders: encoders, maxDuration: DefaultMaxDuration}
}

// Search resolves a query (or direct URL) to a track via yt-dlp. For
// free-text queries the top results are scanned for the first one
// under the duration cap.
func (s *Service) Search(ctx context.Context, query string) (Track, error) {
	target := query
	if !strings.HasPrefix(query, "http") {
		target = fmt.Sprintf("ytsearch%d:%s", searchResults, query)
	}

	cmd := exec.CommandContext(ctx, "yt-dlp", "--dump-json", "--no-download", "--flat-playlist", target)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Track{}, fmt.Errorf("music: yt-dlp search: %s", firstLine(exitErr.Stderr))
		}
		return Track{}, fmt.Errorf("music: yt-dlp search: %w", err)
	}

	candidates := parseTracks(out)
	if len(candidates) == 0 {
		return Track{}, fmt.Errorf("%w for %q", ErrNoResults, query)
	}
	return pickTrack(candidates, s.maxDuration)
}

// parseTracks decodes yt-dlp --dump-json output, one JSON object per
// line. Malformed lines are skipped.
func parseTracks(out []byte) []Track {
	var tracks []Track
	sc := bufio.NewScanner(strings.NewReader(string(out)))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var info struct {
			Title      string  `json:"title"`
			WebpageURL string  `json:"webpage_url"`
			URL        string  `json:"url"`
			Duration   float64 `json:"duration"`
		}
		if err := json.Unmarshal([]byte(line), &info); err != nil {
			continue
		}
		url := info.WebpageURL
		if url == "" {
			url = info.URL
		}
		tracks = append(tracks, Track{
			Title:    info.Title,
			URL:      url,
			Duration: time.Duration(info.Duration * float64(time.Second)),
		})
	}
	return tracks
}

// pickTrack returns the first candidate under the duration cap.
func pickTrack(candidates []Track, max time.Duration) (Track, error) {
	for _, c := range candidates {
		if c.Duration <= max {
			slog.Info("music search picked",
				"title", c.Title, "duration", c.Duration, "candidates", len(candidates))
			return c, nil
		}
	}
	return Track{}, fmt.Errorf("music: all %d results exceed %s", len(candidates), max)
}

// Stream starts the yt-dlp|ffmpeg pipeline for a track and returns a
// FrameSource of Opus frames. Closing the source tears the pipeline
// down.
func (s *Service) Stream(ctx context.Context, track Track) (audio.FrameSource, error) {
	ytdlp := exec.CommandContext(ctx, "yt-dlp", "-f", "bestaudio", "--no-warnings", "-o", "-", track.URL)
	ffmpeg := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-f", "s16le", "-ar", "16000", "-ac", "1", "pipe:1")

	var err error
	ffmpeg.Stdin, err = ytdlp.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("music: pipe: %w", err)
	}
	pcm, err := ffmpeg.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("music: pipe: %w", err)
	}

	encoder, err := s.encoders.NewEncoder()
	if err != nil {
		return nil, fmt.Errorf("music: open encoder: %w", err)
	}

	if err := ytdlp.Start(); err != nil {
		encoder.Close()
		return nil, fmt.Errorf("music: start yt-dlp: %w", err)
	}
	if err := ffmpeg.Start(); err != nil {
		encoder.Close()
		ytdlp.Process.Kill()
		ytdlp.Wait()
		return nil, fmt.Errorf("music: start ffmpeg: %w", err)
	}

	return &pipelineSource{
		ctx:     ctx,
		encoder: encoder,
		pcm:     pcm,
		procs:   []*exec.Cmd{ffmpeg, ytdlp},
		title:   track.Title,
	}, nil
}

// pipelineSource reads fixed-size PCM frames from the ffmpeg pipe and
// encodes them one at a time.
type pipelineSource struct {
	ctx     context.Context
	encoder audio.Encoder
	pcm     io.ReadCloser
	procs   []*exec.Cmd
	title   string

	queue  []audio.Frame
	closed bool
}

// Next returns the next Opus frame, or io.EOF at end of stream. The
// final partial frame is zero-padded to a full 60ms.
func (p *pipelineSource) Next() (audio.Frame, error) {
	if len(p.queue) > 0 {
		f := p.queue[0]
		p.queue = p.queue[1:]
		return f, nil
	}
	if p.closed {
		return nil, io.EOF
	}

	buf := make([]byte, frameBytes)
	n, err := io.ReadFull(p.pcm, buf)
	if err != nil {
		if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("music: read pcm: %w", err)
		}
		if n == 0 {
			return nil, io.EOF
		}
		// Zero-pad the tail frame.
		for i := n; i < frameBytes; i++ {
			buf[i] = 0
		}
	}

	frames, err := p.encoder.Encode(p.ctx, buf, audio.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("music: encode: %w", err)
	}
	if len(frames) == 0 {
		return p.Next()
	}
	p.queue = frames[1:]
	return frames[0], nil
}

// Close terminates the pipeline processes and releases the pipe and
// the stream's encoder.
func (p *pipelineSource) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.encoder.Close()
	p.pcm.Close()
	for _, proc := range p.procs {
		if proc.Process != nil {
			proc.Process.Kill()
		}
		proc.Wait()
	}
	slog.Info("music pipeline terminated", "title", p.title)
	return nil
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
