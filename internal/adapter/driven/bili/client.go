// Package bili implements the CommentClient and QRLoginClient ports against
// the bilibili web API.
package bili

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/zihaowei/bilipanel/internal/domain/model"
	"github.com/zihaowei/bilipanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.CommentClient = (*Client)(nil)
	_ driven.QRLoginClient = (*Client)(nil)
)

const (
	defaultAPIBase      = "https://api.bilibili.com"
	defaultPassportBase = "https://passport.bilibili.com"

	// Browser-like headers; the API rejects requests without them.
	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	referer   = "https://www.bilibili.com"

	commentsPerPage = 20
)

// Client talks to the bilibili web API.
type Client struct {
	httpClient   *http.Client
	apiBase      string
	passportBase string
}

// NewClient creates a Client with a 10 second request timeout against the
// production endpoints.
func NewClient() *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		apiBase:      defaultAPIBase,
		passportBase: defaultPassportBase,
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base
// URLs. This constructor is intended for testing.
func NewClientWithHTTPClient(httpClient *http.Client, apiBase, passportBase string) *Client {
	return &Client{
		httpClient:   httpClient,
		apiBase:      apiBase,
		passportBase: passportBase,
	}
}

// apiEnvelope is the response wrapper every bilibili endpoint shares.
type apiEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// getJSON issues a GET with browser headers (and the cookie, when given),
// unwraps the API envelope, and decodes data into out. A non-zero envelope
// code is an error except for codes the caller listed in tolerated.
func (c *Client) getJSON(ctx context.Context, rawURL string, cookie *model.Cookie, out any, tolerated ...int) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", referer)
	if cookie != nil {
		req.Header.Set("Cookie", cookie.Raw)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}

	if envelope.Code != 0 {
		for _, code := range tolerated {
			if envelope.Code == code {
				return envelope.Code, nil
			}
		}
		return envelope.Code, fmt.Errorf("api error %d: %s", envelope.Code, envelope.Message)
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return 0, fmt.Errorf("decode data: %w", err)
		}
	}

	return 0, nil
}

// ResolveVideo looks up a video by BVID and returns its AID and title.
func (c *Client) ResolveVideo(ctx context.Context, bvid string) (*model.Video, error) {
	endpoint := fmt.Sprintf("%s/x/web-interface/view?bvid=%s", c.apiBase, url.QueryEscape(bvid))

	var data struct {
		AID   int64  `json:"aid"`
		BVID  string `json:"bvid"`
		Title string `json:"title"`
	}
	if _, err := c.getJSON(ctx, endpoint, nil, &data); err != nil {
		return nil, fmt.Errorf("resolve video %s: %w", bvid, err)
	}

	return &model.Video{BVID: data.BVID, AID: data.AID, Title: data.Title}, nil
}

// FetchComments retrieves one page of comments for the given AID, newest
// first. hasMore reports whether another page exists.
func (c *Client) FetchComments(ctx context.Context, cookie *model.Cookie, aid int64, page int) ([]model.Comment, bool, error) {
	query := url.Values{}
	query.Set("type", "1") // comment area type 1 = video
	query.Set("oid", strconv.FormatInt(aid, 10))
	query.Set("pn", strconv.Itoa(page))
	query.Set("ps", strconv.Itoa(commentsPerPage))
	query.Set("sort", "2") // newest first

	endpoint := fmt.Sprintf("%s/x/v2/reply?%s", c.apiBase, query.Encode())

	var data struct {
		Page struct {
			Num   int `json:"num"`
			Size  int `json:"size"`
			Count int `json:"count"`
		} `json:"page"`
		Replies []struct {
			RPID    int64 `json:"rpid"`
			Mid     int64 `json:"mid"`
			CTime   int64 `json:"ctime"`
			Like    int   `json:"like"`
			Content struct {
				Message string `json:"message"`
			} `json:"content"`
			Member struct {
				Uname string `json:"uname"`
			} `json:"member"`
		} `json:"replies"`
	}
	if _, err := c.getJSON(ctx, endpoint, cookie, &data); err != nil {
		return nil, false, fmt.Errorf("fetch comments for aid %d page %d: %w", aid, page, err)
	}

	now := time.Now().UTC()
	comments := make([]model.Comment, 0, len(data.Replies))
	for _, reply := range data.Replies {
		comments = append(comments, model.Comment{
			RPID:      reply.RPID,
			UserID:    reply.Mid,
			Username:  reply.Member.Uname,
			Message:   reply.Content.Message,
			Likes:     reply.Like,
			PostedAt:  time.Unix(reply.CTime, 0).UTC(),
			FetchedAt: now,
		})
	}

	hasMore := data.Page.Num*data.Page.Size < data.Page.Count
	return comments, hasMore, nil
}

// CheckLogin probes whether the cookie corresponds to a live session using
// the nav endpoint.
func (c *Client) CheckLogin(ctx context.Context, cookie *model.Cookie) (bool, error) {
	endpoint := c.apiBase + "/x/web-interface/nav"

	var data struct {
		IsLogin bool `json:"isLogin"`
	}
	// Code -101 means "not logged in"; the nav data still carries isLogin.
	if _, err := c.getJSON(ctx, endpoint, cookie, &data, -101); err != nil {
		return false, fmt.Errorf("check login: %w", err)
	}

	return data.IsLogin, nil
}
