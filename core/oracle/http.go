package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"vigil-triage/core/risk"
	"vigil-triage/core/utils"
)

const maxResponseBytes = 1 << 16

type HTTPClient struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	logger  *utils.Logger
}

func NewHTTPClient(baseURL string, timeout time.Duration, logger *utils.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		logger:  logger,
	}
}

func (c *HTTPClient) Name() string {
	return "http"
}

func (c *HTTPClient) Available() bool {
	return c.baseURL != ""
}

type classifyRequest struct {
	Text   string         `json:"text"`
	Fields map[string]int `json:"fields"`
}

type classifyResponse struct {
	Tier          string    `json:"tier"`
	Confidence    float64   `json:"confidence"`
	Probabilities []float64 `json:"probabilities"`
}

func (c *HTTPClient) Classify(ctx context.Context, req Request) (Result, error) {
	if !c.Available() {
		return Result{}, ErrTransient
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(classifyRequest{Text: req.Text, Fields: req.Fields})
	if err != nil {
		return Result{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/classify", bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.logger.Debugf("oracle: transport error: %v", err)
		return Result{}, ErrTransient
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.logger.Debugf("oracle: status %d", resp.StatusCode)
		return Result{}, ErrTransient
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{}, ErrTransient
	}
	var payload classifyResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.logger.Debugf("oracle: malformed response: %v", err)
		return Result{}, ErrTransient
	}
	res, err := payload.toResult()
	if err != nil {
		c.logger.Debugf("oracle: rejected response: %v", err)
		return Result{}, ErrTransient
	}
	return res, nil
}

func (p classifyResponse) toResult() (Result, error) {
	tier, err := risk.ParseTier(p.Tier)
	if err != nil {
		return Result{}, err
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return Result{}, fmt.Errorf("confidence %.3f out of range", p.Confidence)
	}
	if len(p.Probabilities) != 3 {
		return Result{}, fmt.Errorf("expected 3 probabilities, got %d", len(p.Probabilities))
	}
	dist := risk.Distribution{Low: p.Probabilities[0], Medium: p.Probabilities[1], High: p.Probabilities[2]}
	if !dist.Normalized() {
		return Result{}, fmt.Errorf("probabilities sum %.3f outside tolerance", dist.Sum())
	}
	return Result{Tier: tier, Confidence: p.Confidence, Probabilities: dist}, nil
}
