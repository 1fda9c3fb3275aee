package fleet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/c360/envmon/errors"
	"github.com/c360/envmon/pkg/retry"
	"github.com/c360/envmon/sample"
)

const httpSendPath = "/api/metrics/ingest"

// HTTPSender posts samples to the collector's ingestion endpoint with a
// fixed-delay retry. A 400 response is a validation rejection and is never
// retried; other failures are retried up to the configured attempts.
type HTTPSender struct {
	serverURL string
	client    *http.Client
	retryCfg  retry.Config
	logger    *slog.Logger
}

// NewHTTPSender creates a sender posting to serverURL.
func NewHTTPSender(serverURL string, maxAttempts int, logger *slog.Logger) *HTTPSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPSender{
		serverURL: serverURL,
		client:    &http.Client{Timeout: 10 * time.Second},
		retryCfg:  retry.Fixed(maxAttempts, time.Second),
		logger:    logger,
	}
}

// Send posts the sample, retrying transient failures.
func (s *HTTPSender) Send(ctx context.Context, smp sample.Sample) error {
	body, err := json.Marshal(smp)
	if err != nil {
		return errors.WrapInvalid(err, "HTTPSender", "Send", "marshal sample")
	}

	return retry.Do(ctx, s.retryCfg, func() error {
		return s.post(ctx, body)
	})
}

func (s *HTTPSender) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.serverURL+httpSendPath, bytes.NewReader(body))
	if err != nil {
		return retry.NonRetryable(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusBadRequest:
		var outcome struct {
			Reason  string `json:"reason"`
			Message string `json:"message"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = json.Unmarshal(data, &outcome)
		return retry.NonRetryable(&RejectedError{
			Reason:  outcome.Reason,
			Message: outcome.Message,
		})
	default:
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}

// Close releases idle connections
func (s *HTTPSender) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
