package estimator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/san-kum/pose-coach/server/models"
	"github.com/san-kum/pose-coach/server/pose"
	"go.uber.org/zap"
)

// Client talks to a remote pose service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	config     ClientConfig

	healthy atomic.Bool
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

type ClientConfig struct {
	Timeout             time.Duration
	MaxRetries          int
	RetryDelay          time.Duration
	HealthCheckInterval time.Duration
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:             5 * time.Second,
		MaxRetries:          2,
		RetryDelay:          50 * time.Millisecond,
		HealthCheckInterval: 30 * time.Second,
	}
}

type poseRequest struct {
	ImageData []byte `json:"image_data"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Timestamp int64  `json:"timestamp"`
	ClientID  string `json:"client_id,omitempty"`
}

type poseResponse struct {
	Detected       bool           `json:"detected"`
	Landmarks      []wireLandmark `json:"landmarks"`
	ProcessingTime float64        `json:"processing_time"`
	ModelVersion   string         `json:"model_version"`
}

type wireLandmark struct {
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Z          *float64 `json:"z,omitempty"`
	Visibility float64  `json:"visibility"`
}

// permanentError marks failures a retry cannot fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func NewClient(baseURL string, config ClientConfig, logger *zap.Logger) *Client {
	client := &Client{
		baseURL: baseURL,
		logger:  logger,
		config:  config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:       10,
				IdleConnTimeout:    30 * time.Second,
				DisableCompression: true,
			},
		},
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	if err := client.HealthCheck(ctx); err != nil {
		logger.Warn("Pose service not available at startup", zap.Error(err))
	}
	cancel()

	if config.HealthCheckInterval > 0 {
		go client.healthChecker()
	} else {
		close(client.done)
	}

	return client
}

// Estimate sends the frame to the pose service. Transient failures are
// retried while the context allows; a missing person is not retried.
func (c *Client) Estimate(ctx context.Context, frame *models.Frame) (*models.Pose, error) {
	request := &poseRequest{
		ImageData: frame.ImageData,
		Width:     frame.Width,
		Height:    frame.Height,
		Timestamp: frame.Timestamp,
		ClientID:  frame.ClientID,
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Debug("Retrying pose request",
				zap.Int("attempt", attempt),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay * time.Duration(attempt)):
			}
		}

		p, err := c.executePoseRequest(ctx, request)
		if err == nil {
			return p, nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return nil, perm.err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}

	return nil, fmt.Errorf("pose estimation failed after %d attempts: %w",
		c.config.MaxRetries+1, lastErr)
}

func (c *Client) executePoseRequest(ctx context.Context, request *poseRequest) (*models.Pose, error) {
	requestData, err := json.Marshal(request)
	if err != nil {
		return nil, &permanentError{fmt.Errorf("failed to marshal request: %w", err)}
	}

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/pose", bytes.NewReader(requestData))
	if err != nil {
		return nil, &permanentError{fmt.Errorf("failed to create request: %w", err)}
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("User-Agent", "pose-coach/1.0")

	response, err := c.httpClient.Do(httpRequest)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(response.Body, 1024))
		err := fmt.Errorf("pose service error (status %d): %s", response.StatusCode, string(bodyBytes))
		if response.StatusCode >= 400 && response.StatusCode < 500 {
			return nil, &permanentError{err}
		}
		return nil, err
	}

	var poseResp poseResponse
	if err := json.NewDecoder(response.Body).Decode(&poseResp); err != nil {
		return nil, &permanentError{fmt.Errorf("%w: failed to decode response: %v", ErrInvalidPose, err)}
	}

	p, err := convertResponse(&poseResp, request.Timestamp)
	if err != nil {
		return nil, &permanentError{err}
	}
	return p, nil
}

func convertResponse(resp *poseResponse, timestamp int64) (*models.Pose, error) {
	if !resp.Detected || len(resp.Landmarks) == 0 {
		return nil, ErrNoPose
	}

	p := &models.Pose{
		Landmarks: make([]models.Landmark, len(resp.Landmarks)),
		Timestamp: timestamp,
	}
	for i, l := range resp.Landmarks {
		p.Landmarks[i] = models.Landmark{X: l.X, Y: l.Y, Visibility: l.Visibility}
		if l.Z != nil {
			p.Landmarks[i].Z = *l.Z
			p.Landmarks[i].HasZ = true
		}
	}
	if err := pose.Validate(p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPose, err)
	}
	return p, nil
}

func (c *Client) HealthCheck(ctx context.Context) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		c.healthy.Store(false)
		return fmt.Errorf("health check failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		c.healthy.Store(false)
		return fmt.Errorf("pose service unhealthy (status %d)", response.StatusCode)
	}

	c.healthy.Store(true)
	return nil
}

// Healthy reports the result of the latest health check.
func (c *Client) Healthy() bool {
	return c.healthy.Load()
}

func (c *Client) healthChecker() {
	defer close(c.done)

	ticker := time.NewTicker(c.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
			if err := c.HealthCheck(ctx); err != nil {
				c.logger.Error("Pose service health check failed", zap.Error(err))
			} else {
				c.logger.Debug("Pose service health check passed")
			}
			cancel()
		}
	}
}

func (c *Client) ModelInfo(ctx context.Context) (map[string]any, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models/info", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get model info: %w", err)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("failed to get model info: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model info request failed (status %d)", response.StatusCode)
	}

	var modelInfo map[string]any
	if err := json.NewDecoder(response.Body).Decode(&modelInfo); err != nil {
		return nil, fmt.Errorf("failed to decode model info: %w", err)
	}

	return modelInfo, nil
}

// Close stops the background health checker.
func (c *Client) Close() {
	c.once.Do(func() { close(c.stop) })
	<-c.done
}
