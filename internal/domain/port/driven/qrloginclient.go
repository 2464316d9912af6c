package driven

import (
	"context"

	"github.com/zihaowei/bilipanel/internal/domain/model"
)

// QRLoginClient defines the driven port for the passport QR-code login flow.
type QRLoginClient interface {
	// GenerateQRCode requests a new login QR code.
	GenerateQRCode(ctx context.Context) (*model.QRCode, error)

	// PollQRCode checks the state of a login attempt. When the state is
	// QRStateConfirmed the returned cookie is the full authentication
	// cookie string; it is empty in every other state.
	PollQRCode(ctx context.Context, key string) (model.QRState, string, error)
}
