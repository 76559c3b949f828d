package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strings"

	"github.com/imyme/imyme-ai/pkg/domain"
)

// RemoteJobs is the slice of the remote job client the speech service uses.
type RemoteJobs interface {
	Configured() bool
	SubmitAndWait(ctx context.Context, input any) (json.RawMessage, error)
	FireAndForget(ctx context.Context, input any) domain.WarmupResult
}

type SpeechService interface {
	Transcribe(ctx context.Context, audioURL string) (domain.Transcription, error)
	Warmup(ctx context.Context) (domain.WarmupResult, error)
}

const (
	transcriptionLanguage = "ko"
	mockTranscriptionText = "This is a mock transcription because RunPod API key is missing."
)

var (
	audioURLPattern = regexp.MustCompile(`(?i)^(?:http|ftp)s?://` +
		`(?:(?:[A-Z0-9](?:[A-Z0-9-]{0,61}[A-Z0-9])?\.)+(?:[A-Z]{2,6}\.?|[A-Z0-9-]{2,}\.?)|` +
		`localhost|` +
		`\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})` +
		`(?::\d+)?` +
		`(?:/?|[/?]\S+)$`)

	supportedAudioExts = []string{".mp3", ".wav", ".m4a", ".flac", ".ogg", ".aac", ".wma"}
)

type speechService struct {
	jobs   RemoteJobs
	mock   bool
	logger *slog.Logger
}

// NewSpeechService wires transcription and warm-up onto the remote GPU
// endpoint. When mockUnconfigured is set and jobs has no credentials, canned
// results are returned instead of calling out.
func NewSpeechService(jobs RemoteJobs, mockUnconfigured bool, logger *slog.Logger) SpeechService {
	if logger == nil {
		logger = slog.Default()
	}
	return &speechService{jobs: jobs, mock: mockUnconfigured, logger: logger}
}

func (s *speechService) mocked() bool {
	return s.mock && !s.jobs.Configured()
}

func (s *speechService) Transcribe(ctx context.Context, audioURL string) (domain.Transcription, error) {
	audioURL = strings.TrimSpace(audioURL)
	if err := ValidateAudioURL(audioURL); err != nil {
		return domain.Transcription{}, err
	}
	if s.mocked() {
		s.logger.WarnContext(ctx, "remote credentials not set, returning mock transcription")
		return domain.Transcription{Text: mockTranscriptionText, Segments: []map[string]any{}, Language: "en", ProcessingTime: 0.1}, nil
	}

	out, err := s.jobs.SubmitAndWait(ctx, map[string]any{
		"audio_url": audioURL,
		"language":  transcriptionLanguage,
	})
	if err != nil {
		return domain.Transcription{}, classifySTTError(err)
	}
	var tr domain.Transcription
	if len(out) > 0 && string(out) != "null" {
		if err := json.Unmarshal(out, &tr); err != nil {
			return domain.Transcription{}, coded(domain.CodeSTTFailure, "", fmt.Errorf("decode transcription: %w", err))
		}
	}
	return tr, nil
}

func (s *speechService) Warmup(ctx context.Context) (domain.WarmupResult, error) {
	if s.mocked() {
		s.logger.WarnContext(ctx, "remote credentials not set, skipping warmup")
		return domain.WarmupResult{Status: domain.WarmupMockSuccess, Message: "Mock warmup (no credentials)"}, nil
	}
	res := s.jobs.FireAndForget(ctx, map[string]any{"warmup": true})
	if res.Status == domain.WarmupFailed {
		return res, coded(domain.CodeWarmupFailed, res.Error, nil)
	}
	s.logger.InfoContext(ctx, "warmup signal sent", "job_id", res.JobID)
	return res, nil
}

// ValidateAudioURL checks the URL shape and the audio extension, ignoring any query string.
func ValidateAudioURL(raw string) error {
	if !audioURLPattern.MatchString(raw) {
		return coded(domain.CodeInvalidURL, "유효한 URL인지 확인하세요.", ErrInvalidInput)
	}
	clean := strings.ToLower(strings.SplitN(raw, "?", 2)[0])
	for _, ext := range supportedAudioExts {
		if strings.HasSuffix(clean, ext) {
			return nil
		}
	}
	ext := strings.TrimPrefix(path.Ext(clean), ".")
	if ext == "" {
		ext = clean[strings.LastIndex(clean, ".")+1:]
	}
	return coded(domain.CodeUnsupportedFormat, fmt.Sprintf("지원하지 않는 오디오 포맷 (%s)", ext), ErrInvalidInput)
}

// classifySTTError maps remote failures onto STT_FAILURE, or DOWNLOAD_FAILURE
// when the worker could not fetch the audio.
func classifySTTError(err error) error {
	msg := err.Error()
	lower := strings.ToLower(msg)
	var ce *CodedError
	if errors.As(err, &ce) {
		return ce
	}
	if strings.Contains(lower, "download") || strings.Contains(msg, "403") || strings.Contains(msg, "404") {
		return coded(domain.CodeDownloadFailure, msg, err)
	}
	return coded(domain.CodeSTTFailure, msg, err)
}
