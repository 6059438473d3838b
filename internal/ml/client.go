package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aaakaind/letsgetcrypto/internal/domain"
)

// ServiceClient communicates with the external model-training service.
type ServiceClient struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewServiceClient creates a new model service client.
func NewServiceClient(baseURL string, log zerolog.Logger) *ServiceClient {
	return &ServiceClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Minute, // Model fitting can take time
		},
		log: log.With().Str("component", "model_service_client").Logger(),
	}
}

// TrainRequest represents the request payload for a training run.
type TrainRequest struct {
	Columns []string    `json:"columns"`
	Rows    [][]float64 `json:"rows"`
	Labels  []int       `json:"labels"`
}

// TrainResponse represents the response from a training run.
type TrainResponse struct {
	Metrics Metrics `json:"metrics"`
	Elapsed float64 `json:"elapsed_seconds"`
}

// Train sends a feature set to the training service for the given model kind.
func (c *ServiceClient) Train(ctx context.Context, kind ModelKind, fs *domain.FeatureSet) (Metrics, error) {
	if fs == nil || fs.Len() == 0 {
		return nil, fmt.Errorf("no training samples for %s", kind)
	}

	c.log.Debug().
		Str("model", kind.String()).
		Int("samples", fs.Len()).
		Int("features", len(fs.Columns)).
		Msg("Sending training request")

	reqBody, err := json.Marshal(TrainRequest{
		Columns: fs.Columns,
		Rows:    fs.Rows,
		Labels:  fs.Labels,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/models/%s/train", c.baseURL, kind)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	startTime := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("model service returned status %d: %s", resp.StatusCode, string(body))
	}

	var response TrainResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if _, ok := response.Metrics["accuracy"]; !ok {
		return nil, fmt.Errorf("model service response for %s missing accuracy metric", kind)
	}

	c.log.Info().
		Str("model", kind.String()).
		Int("samples", fs.Len()).
		Float64("accuracy", response.Metrics.Accuracy()).
		Float64("elapsed_seconds", time.Since(startTime).Seconds()).
		Float64("service_elapsed", response.Elapsed).
		Msg("Training complete")

	return response.Metrics, nil
}

// HealthCheck checks if the model service is available.
func (c *ServiceClient) HealthCheck(ctx context.Context) error {
	url := fmt.Sprintf("%s/health", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	c.log.Debug().Msg("Model service health check passed")
	return nil
}
