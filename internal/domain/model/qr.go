package model

// QRState is the lifecycle state of a QR-code login attempt as reported by
// the passport API.
type QRState string

const (
	// QRStateWaiting means the code has not been scanned yet.
	QRStateWaiting QRState = "waiting"
	// QRStateScanned means the code was scanned but not confirmed in the app.
	QRStateScanned QRState = "scanned"
	// QRStateConfirmed means login completed and a cookie was issued.
	QRStateConfirmed QRState = "confirmed"
	// QRStateExpired means the code timed out and a new one is needed.
	QRStateExpired QRState = "expired"
)

// QRCode is a freshly generated login QR code. URL is the content to render
// as a QR image; Key identifies the attempt when polling.
type QRCode struct {
	URL string
	Key string
}
