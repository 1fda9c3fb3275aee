package fleet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/c360/envmon/device"
	"github.com/c360/envmon/errors"
)

// Registry lists the active devices assigned to a transport.
type Registry interface {
	ActiveDevices(ctx context.Context, protocol device.Protocol) ([]device.Device, error)
}

// RegistryClient polls the collector's device directory over HTTP.
type RegistryClient struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewRegistryClient creates a client for the directory at baseURL.
func NewRegistryClient(baseURL string, logger *slog.Logger) *RegistryClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &RegistryClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

// ActiveDevices fetches the active devices for one protocol. A non-200
// response yields an empty list rather than an error: the server answered,
// it just has nothing usable for us, and reconciliation should proceed.
// Transport failures are returned so the caller can skip the cycle.
func (c *RegistryClient) ActiveDevices(ctx context.Context, protocol device.Protocol) ([]device.Device, error) {
	url := fmt.Sprintf("%s/api/devices/active/%s", c.baseURL, protocol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.WrapInvalid(err, "RegistryClient", "ActiveDevices", "build request")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.WrapTransient(err, "RegistryClient", "ActiveDevices", "fetch devices")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Device directory returned non-OK status",
			"status", resp.StatusCode, "protocol", string(protocol))
		return []device.Device{}, nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WrapTransient(err, "RegistryClient", "ActiveDevices", "read response")
	}

	var devices []device.Device
	if err := json.Unmarshal(data, &devices); err != nil {
		return nil, errors.WrapInvalid(errors.ErrParsingFailed,
			"RegistryClient", "ActiveDevices", fmt.Sprintf("unmarshal devices: %v", err))
	}
	return devices, nil
}
