package fleet

import (
	"context"
	"fmt"

	"github.com/c360/envmon/sample"
)

// Sender delivers one sample to the collector over a specific transport.
type Sender interface {
	Send(ctx context.Context, smp sample.Sample) error
	Close() error
}

// RejectedError reports that the collector received the sample but refused
// it during validation. Rejections are terminal; resending the same sample
// cannot succeed.
type RejectedError struct {
	Reason  string
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("sample rejected (%s): %s", e.Reason, e.Message)
}
