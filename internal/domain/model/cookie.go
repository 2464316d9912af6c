package model

import (
	"strings"
	"time"
)

// Names of the cookie pairs the bilibili API requires on every
// authenticated request.
const (
	CookieFieldSession = "SESSDATA"
	CookieFieldCSRF    = "bili_jct"
	CookieFieldUserID  = "DedeUserID"
)

// CookieStatus describes the state of the stored cookie as shown on the
// settings panel.
type CookieStatus string

const (
	// CookieStatusUnset means no cookie is stored.
	CookieStatusUnset CookieStatus = "unset"
	// CookieStatusExpiring means a cookie is stored but close to expiry.
	CookieStatusExpiring CookieStatus = "expiring"
	// CookieStatusValid means a stored cookie is present and healthy.
	CookieStatusValid CookieStatus = "valid"
)

// Cookie is a parsed bilibili authentication cookie. Raw preserves the exact
// string the user supplied; the three named fields are extracted from it.
type Cookie struct {
	Raw        string
	SessData   string
	BiliJCT    string
	DedeUserID string
}

// StoredCookie is a cookie as persisted by the CookieStore, with the expiry
// bookkeeping the store maintains.
type StoredCookie struct {
	Value     string
	SavedAt   time.Time
	ExpiresAt time.Time
}

// ParseCookie parses a raw "k=v; k=v" cookie string and verifies the three
// required pairs are present and non-empty. A missing or empty pair yields
// a *ValidationError naming the first absent field.
func ParseCookie(raw string) (*Cookie, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, Validationf("cookie is required")
	}

	pairs := make(map[string]string)
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		pairs[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}

	for _, field := range []string{CookieFieldSession, CookieFieldCSRF, CookieFieldUserID} {
		if pairs[field] == "" {
			return nil, Validationf("cookie is missing required field %s", field)
		}
	}

	return &Cookie{
		Raw:        raw,
		SessData:   pairs[CookieFieldSession],
		BiliJCT:    pairs[CookieFieldCSRF],
		DedeUserID: pairs[CookieFieldUserID],
	}, nil
}
