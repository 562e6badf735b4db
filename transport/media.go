// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"

	"github.com/bureau-foundation/parley/lib/clock"
	"github.com/bureau-foundation/parley/lib/netutil"
)

// AudioSink consumes remote audio. Consume is called on its own
// goroutine for each remote track and returns when the track ends.
type AudioSink interface {
	Consume(track *webrtc.TrackRemote)
}

// CaptureSource provides the local audio track.
type CaptureSource interface {
	// OpenCapture returns a live track, or an error matching
	// ErrMediaAccessDenied when no input is available.
	OpenCapture(ctx context.Context) (CaptureTrack, error)
}

// CaptureTrack is an open local audio track.
type CaptureTrack interface {
	Track() webrtc.TrackLocal

	// Stop ends capture. Safe to call more than once.
	Stop()
}

// DiscardSink drains remote audio and counts what it read.
type DiscardSink struct {
	Logger *slog.Logger

	packets atomic.Uint64
	bytes   atomic.Uint64
}

// Consume reads RTP from track until it ends.
func (s *DiscardSink) Consume(track *webrtc.TrackRemote) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("remote audio track started",
		"codec", track.Codec().MimeType,
		"ssrc", uint32(track.SSRC()),
	)

	buffer := make([]byte, 1500)
	for {
		count, _, err := track.Read(buffer)
		if err != nil {
			if !netutil.IsExpectedCloseError(err) {
				logger.Warn("remote audio track read failed", "error", err)
			}
			logger.Info("remote audio track ended",
				"packets", s.packets.Load(),
				"bytes", s.bytes.Load(),
			)
			return
		}
		s.packets.Add(1)
		s.bytes.Add(uint64(count))
	}
}

// Stats returns the packets and payload bytes read so far.
func (s *DiscardSink) Stats() (packets, bytes uint64) {
	return s.packets.Load(), s.bytes.Load()
}

// DeniedCapture is a CaptureSource with no input device.
type DeniedCapture struct{}

func (DeniedCapture) OpenCapture(context.Context) (CaptureTrack, error) {
	return nil, ErrMediaAccessDenied
}

// opusSilenceFrame is a single 20ms Opus frame of silence (TOC 0xf8,
// code 3, DTX padding).
var opusSilenceFrame = []byte{0xf8, 0xff, 0xfe}

// silenceFrameDuration is the packetization interval of the silence
// track.
const silenceFrameDuration = 20 * time.Millisecond

// SilenceSource provides an Opus track that sends silence every 20ms,
// for clients without a microphone.
type SilenceSource struct {
	// Clock paces the frames. Nil uses the real clock.
	Clock clock.Clock
}

// OpenCapture starts the silence track.
func (s *SilenceSource) OpenCapture(context.Context) (CaptureTrack, error) {
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", "parley-silence",
	)
	if err != nil {
		return nil, err
	}

	source := s.Clock
	if source == nil {
		source = clock.Real()
	}
	capture := &silenceTrack{
		track: track,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go capture.run(source.NewTicker(silenceFrameDuration))
	return capture, nil
}

type silenceTrack struct {
	track    *webrtc.TrackLocalStaticSample
	frames   atomic.Uint64
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func (s *silenceTrack) Track() webrtc.TrackLocal { return s.track }

func (s *silenceTrack) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

func (s *silenceTrack) run(ticker *clock.Ticker) {
	defer close(s.done)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			// WriteSample returns nil until the track is bound to a
			// negotiated sender.
			if err := s.track.WriteSample(media.Sample{Data: opusSilenceFrame, Duration: silenceFrameDuration}); err != nil {
				return
			}
			s.frames.Add(1)
		}
	}
}
