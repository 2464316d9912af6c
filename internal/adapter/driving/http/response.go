package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/zihaowei/bilipanel/internal/application"
	"github.com/zihaowei/bilipanel/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeWarning writes a JSON error response flagged as a user-input warning
// rather than a server fault.
func writeWarning(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message, Kind: "warning"})
}

// errorResponse is the standard error response body. Kind is "warning" for
// rejected user input and empty for server faults.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// CookieStatusResponse is the JSON representation of the cookie panel state.
// Cookie carries the stored cookie text whenever one exists so the panel can
// refill its input field.
type CookieStatusResponse struct {
	Status string `json:"status"`
	Cookie string `json:"cookie"`
}

// SaveCookieRequest is the JSON body for the cookie save and validate endpoints.
type SaveCookieRequest struct {
	Cookie string `json:"cookie"`
}

// ValidateCookieResponse is the JSON representation of a passed validation.
type ValidateCookieResponse struct {
	Valid bool `json:"valid"`
}

// ProbeCookieResponse is the JSON representation of a live-session probe.
type ProbeCookieResponse struct {
	LoggedIn bool `json:"logged_in"`
}

// QRSessionResponse is the JSON representation of a QR login session.
type QRSessionResponse struct {
	ID    string `json:"id"`
	QRURL string `json:"qr_url"`
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

// ParamsRequest is the JSON body for the crawler parameters endpoint. All
// three values are written as one batch on every update.
type ParamsRequest struct {
	DelayMin   int `json:"delay_min"`
	DelayMax   int `json:"delay_max"`
	MaxRetries int `json:"max_retries"`
}

// ParamsResponse is the JSON representation of the crawler parameters.
type ParamsResponse struct {
	DelayMin   int `json:"delay_min"`
	DelayMax   int `json:"delay_max"`
	MaxRetries int `json:"max_retries"`
}

// AddVideoRequest is the JSON body for the add video endpoint.
type AddVideoRequest struct {
	BVID string `json:"bvid"`
}

// VideoResponse is the JSON representation of a watched video.
type VideoResponse struct {
	BVID          string `json:"bvid"`
	AID           int64  `json:"aid"`
	Title         string `json:"title"`
	AddedAt       string `json:"added_at"`
	LastCrawledAt string `json:"last_crawled_at,omitempty"`
}

// CommentResponse is the JSON representation of a crawled comment.
type CommentResponse struct {
	RPID     int64  `json:"rpid"`
	BVID     string `json:"bvid"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Message  string `json:"message"`
	Likes    int    `json:"likes"`
	PostedAt string `json:"posted_at"`
}

// DatabaseStatsResponse is the JSON representation of the stored-data counts.
type DatabaseStatsResponse struct {
	CommentCount int64 `json:"comment_count"`
	VideoCount   int   `json:"video_count"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// toCookieStatusResponse converts a cookie status result to its JSON representation.
func toCookieStatusResponse(result *application.CookieStatusResult) CookieStatusResponse {
	return CookieStatusResponse{
		Status: string(result.Status),
		Cookie: result.Cookie,
	}
}

// toQRSessionResponse converts a session snapshot to its JSON representation.
func toQRSessionResponse(info application.QRSessionInfo) QRSessionResponse {
	return QRSessionResponse{
		ID:    info.ID,
		QRURL: info.QRURL,
		State: string(info.State),
		Error: info.Error,
	}
}

// toParamsResponse converts domain crawler parameters to their JSON representation.
func toParamsResponse(params model.CrawlerParams) ParamsResponse {
	return ParamsResponse{
		DelayMin:   params.DelayMin,
		DelayMax:   params.DelayMax,
		MaxRetries: params.MaxRetries,
	}
}

// toVideoResponse converts a domain Video to its JSON representation.
func toVideoResponse(video model.Video) VideoResponse {
	resp := VideoResponse{
		BVID:    video.BVID,
		AID:     video.AID,
		Title:   video.Title,
		AddedAt: video.AddedAt.UTC().Format(time.RFC3339),
	}
	if !video.LastCrawledAt.IsZero() {
		resp.LastCrawledAt = video.LastCrawledAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// toCommentResponse converts a domain Comment to its JSON representation.
func toCommentResponse(comment model.Comment) CommentResponse {
	return CommentResponse{
		RPID:     comment.RPID,
		BVID:     comment.BVID,
		UserID:   comment.UserID,
		Username: comment.Username,
		Message:  comment.Message,
		Likes:    comment.Likes,
		PostedAt: comment.PostedAt.UTC().Format(time.RFC3339),
	}
}
