package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bekovrafik/DreamColor/internal/audio"
	"github.com/bekovrafik/DreamColor/internal/errs"
)

// Speech reads assistant replies aloud. Failures never affect generation.
type Speech struct {
	tts SpeechSynthesizer
	log *zap.Logger
}

// NewSpeech constructs the speech service.
func NewSpeech(tts SpeechSynthesizer, log *zap.Logger) *Speech {
	return &Speech{tts: tts, log: log}
}

// Speak synthesizes text and returns a playable WAV document.
func (s *Speech) Speak(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", errs.ErrValidation)
	}
	pcm, err := s.tts.Synthesize(ctx, text)
	if err != nil {
		s.log.Warn("speech synthesis failed", zap.Error(err))
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	wav, err := audio.WAV(pcm, audio.SampleRate, audio.Channels)
	if err != nil {
		return nil, fmt.Errorf("wrap speech: %w", err)
	}
	s.log.Debug("speech ready", zap.Int64("duration_ms", audio.Duration(pcm, audio.SampleRate, audio.Channels)))
	return wav, nil
}
