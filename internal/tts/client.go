// Package tts is a client for the Google Cloud Text-to-Speech REST API.
package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"narration-gateway/internal/upstream"
	"narration-gateway/internal/voice"
)

const (
	DefaultBaseURL = "https://texttospeech.googleapis.com"
	synthesizePath = "/v1/text:synthesize"
	headerAPIKey   = "X-Goog-Api-Key"

	audioEncodingMP3 = "MP3"
)

var (
	errEmptyText  = errors.New("text is empty")
	errEmptyAudio = errors.New("synthesis returned no audio")
)

// Request is one synthesis call.
type Request struct {
	Text  string
	Voice voice.Config
}

// Synthesizer turns text into MP3 bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) ([]byte, error)
}

type Config struct {
	BaseURL string
	// APIKey is sent in the X-Goog-Api-Key header.
	APIKey string
	// AccessToken, when set, is sent as a Bearer token instead.
	AccessToken string

	SpeakingRate float64

	// RequestsPerMinute caps calls to the synthesis API (default: 600).
	RequestsPerMinute int
	// Burst is the number of calls allowed back to back (default: 5).
	Burst int

	UpstreamTimeout time.Duration
	MaxRetries      int
	BaseBackoff     time.Duration
	HTTPClient      *http.Client
}

func (c Config) withDefaults() Config {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.SpeakingRate <= 0 {
		c.SpeakingRate = 1.0
	}
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = 600
	}
	if c.Burst <= 0 {
		c.Burst = 5
	}
	if c.UpstreamTimeout <= 0 {
		c.UpstreamTimeout = 30 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 2
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 200 * time.Millisecond
	}
	return c
}

type synthesizeRequest struct {
	Input       synthesisInput `json:"input"`
	Voice       voiceSelection `json:"voice"`
	AudioConfig audioConfig    `json:"audioConfig"`
}

type synthesisInput struct {
	Text string `json:"text"`
}

type voiceSelection struct {
	LanguageCode string `json:"languageCode"`
	Name         string `json:"name,omitempty"`
	SSMLGender   string `json:"ssmlGender,omitempty"`
}

type audioConfig struct {
	AudioEncoding string  `json:"audioEncoding"`
	SpeakingRate  float64 `json:"speakingRate,omitempty"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Client calls text:synthesize with retries.
type Client struct {
	cfg        Config
	httpClient *http.Client
	retrier    upstream.Retrier
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient creates a synthesis client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	cfg = cfg.withDefaults()
	if cfg.APIKey == "" && cfg.AccessToken == "" {
		return nil, fmt.Errorf("ttsclient: APIKey or AccessToken is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("ttsclient")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: upstream.NewTransport(0, 0)}
	}

	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		retrier: upstream.Retrier{
			MaxRetries:  cfg.MaxRetries,
			BaseBackoff: cfg.BaseBackoff,
			Logger:      logger,
		},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), cfg.Burst),
		logger:  logger,
	}, nil
}

// Synthesize returns MP3 audio for req.Text in the requested voice.
func (c *Client) Synthesize(parentCtx context.Context, req Request) ([]byte, error) {
	start := time.Now()

	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("ttsclient: %w", errEmptyText)
	}

	languageCode := req.Voice.EffectiveLanguageCode
	if languageCode == "" {
		languageCode = req.Voice.LanguageCode
	}

	body, err := json.Marshal(synthesizeRequest{
		Input: synthesisInput{Text: req.Text},
		Voice: voiceSelection{
			LanguageCode: languageCode,
			Name:         req.Voice.VoiceName,
			SSMLGender:   req.Voice.Gender,
		},
		AudioConfig: audioConfig{
			AudioEncoding: audioEncodingMP3,
			SpeakingRate:  c.cfg.SpeakingRate,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("ttsclient: marshal request: %w", err)
	}

	if err := c.limiter.Wait(parentCtx); err != nil {
		return nil, fmt.Errorf("ttsclient: rate limit wait cancelled: %w", err)
	}

	url := c.cfg.BaseURL + synthesizePath

	ctx, cancel := context.WithTimeout(parentCtx, c.cfg.UpstreamTimeout)
	defer cancel()

	resp, err := c.retrier.Do(ctx, func(ctx context.Context) (*http.Response, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("ttsclient: build HTTP request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if c.cfg.AccessToken != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
		} else {
			httpReq.Header.Set(headerAPIKey, c.cfg.APIKey)
		}
		return c.httpClient.Do(httpReq)
	})
	if err != nil {
		return nil, fmt.Errorf("ttsclient: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("ttsclient: upstream %d: %s (%s)",
				resp.StatusCode, apiErr.Error.Message, apiErr.Error.Status)
		}
		return nil, fmt.Errorf("ttsclient: upstream %d: %s",
			resp.StatusCode, upstream.Truncate(string(raw), 200))
	}

	var out synthesizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("ttsclient: decode response: %w", err)
	}
	audio, err := base64.StdEncoding.DecodeString(out.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("ttsclient: decode audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("ttsclient: %w", errEmptyAudio)
	}

	c.logger.Info("speech synthesized",
		zap.String("language_code", languageCode),
		zap.String("voice", req.Voice.VoiceName),
		zap.Int("chars", len([]rune(req.Text))),
		zap.Int("bytes", len(audio)),
		zap.Duration("duration", time.Since(start)),
	)
	return audio, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
