package webrtc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	pion "github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"

	"github.com/bz-harshitha-alikepalli/example-collab-ide/cli/internal/call"
)

// oggPageDuration is the pacing of Opus pages produced by common encoders.
const oggPageDuration = 20 * time.Millisecond

var ErrUnsupportedVideo = errors.New("unsupported video codec")

// FileSource streams local media from an IVF video file and an Ogg/Opus
// audio file, looping both. With neither set the source yields no tracks
// and links negotiate receive-only.
type FileSource struct {
	VideoFile string
	AudioFile string
}

// Acquire opens the configured files, validates their headers and starts
// pacing samples into shared local tracks.
func (s *FileSource) Acquire(ctx context.Context) (call.LocalMedia, error) {
	feedCtx, cancel := context.WithCancel(context.Background())
	m := &Media{cancel: cancel}

	if s.VideoFile != "" {
		track, feed, err := openVideo(s.VideoFile)
		if err != nil {
			cancel()
			return nil, err
		}
		m.add(feedCtx, track, feed)
	}
	if s.AudioFile != "" {
		track, feed, err := openAudio(s.AudioFile)
		if err != nil {
			m.Close()
			return nil, err
		}
		m.add(feedCtx, track, feed)
	}

	if err := ctx.Err(); err != nil {
		m.Close()
		return nil, err
	}
	return m, nil
}

// Media is the captured local track set shared by every link.
type Media struct {
	tracks []pion.TrackLocal
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// Tracks returns the local tracks to attach to a peer connection.
func (m *Media) Tracks() []pion.TrackLocal {
	return m.tracks
}

// Close stops every feeder and waits for them to exit.
func (m *Media) Close() error {
	m.once.Do(func() {
		m.cancel()
		m.wg.Wait()
	})
	return nil
}

func (m *Media) add(ctx context.Context, track pion.TrackLocal, feed func(context.Context)) {
	m.tracks = append(m.tracks, track)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		feed(ctx)
	}()
}

func videoMimeType(fourCC string) (string, error) {
	switch fourCC {
	case "VP80":
		return pion.MimeTypeVP8, nil
	case "VP90":
		return pion.MimeTypeVP9, nil
	case "AV01":
		return pion.MimeTypeAV1, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedVideo, fourCC)
}

func openVideo(path string) (*pion.TrackLocalStaticSample, func(context.Context), error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open video: %w", err)
	}
	_, header, err := ivfreader.NewWith(file)
	file.Close()
	if err != nil {
		return nil, nil, fmt.Errorf("read video header: %w", err)
	}

	mimeType, err := videoMimeType(header.FourCC)
	if err != nil {
		return nil, nil, err
	}
	track, err := pion.NewTrackLocalStaticSample(pion.RTPCodecCapability{MimeType: mimeType}, "video", "coderoom")
	if err != nil {
		return nil, nil, fmt.Errorf("create video track: %w", err)
	}

	interval := frameInterval(header.TimebaseNumerator, header.TimebaseDenominator)
	feed := func(ctx context.Context) {
		loop(ctx, "video", func(ctx context.Context) error {
			return streamVideo(ctx, path, track, interval)
		})
	}
	return track, feed, nil
}

func frameInterval(numerator, denominator uint32) time.Duration {
	if numerator == 0 || denominator == 0 {
		return time.Second / 30
	}
	return time.Duration(float64(time.Second) * float64(numerator) / float64(denominator))
}

func streamVideo(ctx context.Context, path string, track *pion.TrackLocalStaticSample, interval time.Duration) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	reader, _, err := ivfreader.NewWith(file)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		frame, _, err := reader.ParseNextFrame()
		if err != nil {
			return err
		}
		if err := track.WriteSample(media.Sample{Data: frame, Duration: interval}); err != nil {
			return err
		}
	}
}

func openAudio(path string) (*pion.TrackLocalStaticSample, func(context.Context), error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open audio: %w", err)
	}
	_, _, err = oggreader.NewWith(file)
	file.Close()
	if err != nil {
		return nil, nil, fmt.Errorf("read audio header: %w", err)
	}

	track, err := pion.NewTrackLocalStaticSample(pion.RTPCodecCapability{MimeType: pion.MimeTypeOpus}, "audio", "coderoom")
	if err != nil {
		return nil, nil, fmt.Errorf("create audio track: %w", err)
	}

	feed := func(ctx context.Context) {
		loop(ctx, "audio", func(ctx context.Context) error {
			return streamAudio(ctx, path, track)
		})
	}
	return track, feed, nil
}

func streamAudio(ctx context.Context, path string, track *pion.TrackLocalStaticSample) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	reader, _, err := oggreader.NewWith(file)
	if err != nil {
		return err
	}

	var lastGranule uint64
	ticker := time.NewTicker(oggPageDuration)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		page, header, err := reader.ParseNextPage()
		if err != nil {
			return err
		}

		// Opus granule positions count 48kHz samples.
		samples := header.GranulePosition - lastGranule
		lastGranule = header.GranulePosition
		duration := time.Duration(float64(samples) / 48000 * float64(time.Second))
		if err := track.WriteSample(media.Sample{Data: page, Duration: duration}); err != nil {
			return err
		}
	}
}

// loop restarts stream at end of file until ctx is cancelled.
func loop(ctx context.Context, kind string, stream func(context.Context) error) {
	for {
		err := stream(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			slog.Warn("media stream stopped", "kind", kind, "error", err)
			return
		}
	}
}
