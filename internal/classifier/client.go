// Package classifier talks to the external accident-detection model over HTTP.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"roadAccident/internal/config"
	"roadAccident/internal/domain"
	"roadAccident/pkg/e"
)

type Client struct {
	logger *slog.Logger
	url    string
	http   *http.Client
}

func NewClient(logger *slog.Logger, cfg config.ClassifierConfig) *Client {
	return &Client{
		logger: logger,
		url:    cfg.URL,
		http:   &http.Client{Timeout: cfg.Timeout},
	}
}

type classifyRequest struct {
	MediaRef    string           `json:"media_ref"`
	ContentType string           `json:"content_type"`
	Kind        domain.MediaKind `json:"kind"`
}

type classifyResponse struct {
	IsAccident             *bool    `json:"is_accident"`
	Confidence             *float64 `json:"confidence"`
	AccidentProbability    *float64 `json:"accident_probability"`
	NonAccidentProbability *float64 `json:"non_accident_probability"`
}

// Classify scores one stored media object. Every failure, including a
// malformed verdict, is reported as e.ErrClassificationUnavailable.
func (c *Client) Classify(ctx context.Context, media domain.MediaRef) (domain.Prediction, error) {
	const op = "classifier.Classify"

	body, err := json.Marshal(classifyRequest{
		MediaRef:    media.Ref,
		ContentType: media.ContentType,
		Kind:        media.Kind,
	})
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("classifier request failed", slog.String("op", op), slog.Any("error", err))
		return domain.Prediction{}, fmt.Errorf("%s: %v: %w", op, err, e.ErrClassificationUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		c.logger.Warn("classifier non-2xx", slog.String("op", op), slog.Int("status", resp.StatusCode))
		return domain.Prediction{}, fmt.Errorf("%s: status %d: %w", op, resp.StatusCode, e.ErrClassificationUnavailable)
	}

	var out classifyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return domain.Prediction{}, fmt.Errorf("%s: decode: %v: %w", op, err, e.ErrClassificationUnavailable)
	}

	p, err := out.prediction()
	if err != nil {
		c.logger.Warn("classifier returned invalid verdict", slog.String("op", op), slog.Any("error", err))
		return domain.Prediction{}, fmt.Errorf("%s: %v: %w", op, err, e.ErrClassificationUnavailable)
	}

	c.logger.Debug("classified media",
		slog.String("ref", media.Ref),
		slog.Bool("is_accident", p.IsAccident),
		slog.Float64("confidence", p.Confidence),
		slog.Duration("latency", time.Since(start)))
	return p, nil
}

func (r classifyResponse) prediction() (domain.Prediction, error) {
	if r.IsAccident == nil || r.Confidence == nil || r.AccidentProbability == nil || r.NonAccidentProbability == nil {
		return domain.Prediction{}, errors.New("missing verdict fields")
	}
	for _, v := range []float64{*r.Confidence, *r.AccidentProbability, *r.NonAccidentProbability} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return domain.Prediction{}, fmt.Errorf("probability %v outside [0,1]", v)
		}
	}
	return domain.Prediction{
		IsAccident:             *r.IsAccident,
		Confidence:             *r.Confidence,
		AccidentProbability:    *r.AccidentProbability,
		NonAccidentProbability: *r.NonAccidentProbability,
	}, nil
}
