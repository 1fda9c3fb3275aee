package fleet

import (
	"context"
	"encoding/json"

	"github.com/c360/envmon/errors"
	"github.com/c360/envmon/natsclient"
	"github.com/c360/envmon/sample"
)

// BrokerSender publishes samples to the JetStream sensor stream. Delivery is
// at-least-once; validation happens asynchronously on the collector side, so
// Send returning nil only means the broker accepted the message.
type BrokerSender struct {
	client *natsclient.Client
}

// NewBrokerSender creates a sender over an already connected NATS client.
func NewBrokerSender(client *natsclient.Client) *BrokerSender {
	return &BrokerSender{client: client}
}

// Send publishes the sample to sensors.<deviceId>.
func (s *BrokerSender) Send(ctx context.Context, smp sample.Sample) error {
	body, err := json.Marshal(smp)
	if err != nil {
		return errors.WrapInvalid(err, "BrokerSender", "Send", "marshal sample")
	}
	return s.client.PublishToStream(ctx, "sensors."+smp.DeviceID, body)
}

// Close is a no-op; the NATS client is shared and closed by its owner.
func (s *BrokerSender) Close() error {
	return nil
}
