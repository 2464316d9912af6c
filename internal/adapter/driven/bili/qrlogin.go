package bili

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/zihaowei/bilipanel/internal/domain/model"
)

// Passport poll states. The envelope code is 0 for the poll endpoint; the
// per-attempt state lives in data.code.
const (
	pollCodeConfirmed = 0
	pollCodeExpired   = 86038
	pollCodeScanned   = 86090
	pollCodeWaiting   = 86101
)

// GenerateQRCode requests a new login QR code from the passport service.
func (c *Client) GenerateQRCode(ctx context.Context) (*model.QRCode, error) {
	endpoint := c.passportBase + "/x/passport-login/web/qrcode/generate"

	var data struct {
		URL       string `json:"url"`
		QRCodeKey string `json:"qrcode_key"`
	}
	if _, err := c.getJSON(ctx, endpoint, nil, &data); err != nil {
		return nil, fmt.Errorf("generate qr code: %w", err)
	}
	if data.QRCodeKey == "" {
		return nil, fmt.Errorf("generate qr code: empty qrcode_key")
	}

	return &model.QRCode{URL: data.URL, Key: data.QRCodeKey}, nil
}

// PollQRCode checks the state of a login attempt. On confirmation the cookie
// string is assembled from the Set-Cookie headers of the poll response.
func (c *Client) PollQRCode(ctx context.Context, key string) (model.QRState, string, error) {
	endpoint := fmt.Sprintf("%s/x/passport-login/web/qrcode/poll?qrcode_key=%s",
		c.passportBase, url.QueryEscape(key))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", "", fmt.Errorf("build poll request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", referer)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("poll qr code: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("poll qr code: unexpected status %d", resp.StatusCode)
	}

	var envelope struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Data    struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", "", fmt.Errorf("decode poll response: %w", err)
	}
	if envelope.Code != 0 {
		return "", "", fmt.Errorf("poll qr code: api error %d: %s", envelope.Code, envelope.Message)
	}

	switch envelope.Data.Code {
	case pollCodeWaiting:
		return model.QRStateWaiting, "", nil
	case pollCodeScanned:
		return model.QRStateScanned, "", nil
	case pollCodeExpired:
		return model.QRStateExpired, "", nil
	case pollCodeConfirmed:
		cookie := assembleCookie(resp.Cookies())
		if cookie == "" {
			return "", "", fmt.Errorf("poll qr code: confirmed but no cookies issued")
		}
		return model.QRStateConfirmed, cookie, nil
	default:
		return "", "", fmt.Errorf("poll qr code: unknown state %d: %s", envelope.Data.Code, envelope.Data.Message)
	}
}

// assembleCookie builds the "k=v; k=v" cookie string from the Set-Cookie
// headers of a confirmed poll response, keeping only the fields the API
// requires.
func assembleCookie(cookies []*http.Cookie) string {
	wanted := map[string]bool{
		model.CookieFieldSession: true,
		model.CookieFieldCSRF:    true,
		model.CookieFieldUserID:  true,
	}

	var parts []string
	for _, c := range cookies {
		if wanted[c.Name] && c.Value != "" {
			parts = append(parts, c.Name+"="+c.Value)
			delete(wanted, c.Name)
		}
	}
	if len(wanted) > 0 {
		return ""
	}

	return strings.Join(parts, "; ")
}
