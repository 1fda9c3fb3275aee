package ingest

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/c360/envmon/errors"
	"github.com/c360/envmon/natsclient"
)

// SubjectRPC is the request/reply subject devices send readings to.
const SubjectRPC = "metrics.ingest.rpc"

// RPCServer answers sample submissions over NATS request/reply.
type RPCServer struct {
	client *natsclient.Client
	gate   *Gate
	logger *slog.Logger
}

// NewRPCServer creates the request/reply ingestion endpoint.
func NewRPCServer(client *natsclient.Client, gate *Gate, logger *slog.Logger) *RPCServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &RPCServer{client: client, gate: gate, logger: logger}
}

// Start subscribes to the RPC subject. Replies carry the ingestion Outcome
// so senders learn about validation rejections synchronously.
func (s *RPCServer) Start(ctx context.Context) error {
	err := s.client.SubscribeReply(ctx, SubjectRPC, func(msgCtx context.Context, data []byte) []byte {
		outcome := s.handle(msgCtx, data)
		reply, err := json.Marshal(outcome)
		if err != nil {
			s.logger.Error("Failed to marshal RPC reply", "error", err)
			return []byte(`{"accepted":false,"message":"internal error"}`)
		}
		return reply
	})
	if err != nil {
		return errors.WrapTransient(err, "RPCServer", "Start", "subscribe")
	}
	s.logger.Info("RPC ingestion endpoint listening", "subject", SubjectRPC)
	return nil
}

func (s *RPCServer) handle(ctx context.Context, data []byte) Outcome {
	smp, err := decodeSample(data)
	if err != nil {
		s.logger.Warn("Rejected malformed RPC reading", "error", err)
		return Outcome{Reason: "malformed", Message: "malformed reading"}
	}

	outcome, err := s.gate.Ingest(ctx, "rpc", smp)
	if err != nil {
		s.logger.Error("RPC ingestion failed", "device_id", smp.DeviceID, "error", err)
		return Outcome{Message: "internal error"}
	}
	return outcome
}
