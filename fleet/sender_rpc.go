package fleet

import (
	"context"
	"encoding/json"
	"time"

	"github.com/c360/envmon/errors"
	"github.com/c360/envmon/natsclient"
	"github.com/c360/envmon/sample"
)

const rpcSubject = "metrics.ingest.rpc"

// RPCSender submits samples over NATS request/reply and waits for the
// collector's verdict.
type RPCSender struct {
	client  *natsclient.Client
	timeout time.Duration
}

// NewRPCSender creates a sender over an already connected NATS client.
func NewRPCSender(client *natsclient.Client) *RPCSender {
	return &RPCSender{client: client, timeout: 5 * time.Second}
}

// Send submits the sample and interprets the reply. A rejecting reply
// becomes a RejectedError.
func (s *RPCSender) Send(ctx context.Context, smp sample.Sample) error {
	body, err := json.Marshal(smp)
	if err != nil {
		return errors.WrapInvalid(err, "RPCSender", "Send", "marshal sample")
	}

	reply, err := s.client.Request(ctx, rpcSubject, body, s.timeout)
	if err != nil {
		return err
	}

	var outcome struct {
		Accepted bool   `json:"accepted"`
		Reason   string `json:"reason"`
		Message  string `json:"message"`
	}
	if err := json.Unmarshal(reply, &outcome); err != nil {
		return errors.WrapInvalid(errors.ErrParsingFailed, "RPCSender", "Send",
			"unmarshal reply")
	}
	if !outcome.Accepted {
		return &RejectedError{Reason: outcome.Reason, Message: outcome.Message}
	}
	return nil
}

// Close is a no-op; the NATS client is shared and closed by its owner.
func (s *RPCSender) Close() error {
	return nil
}
