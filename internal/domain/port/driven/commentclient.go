package driven

import (
	"context"

	"github.com/zihaowei/bilipanel/internal/domain/model"
)

// CommentClient defines the driven port for the bilibili API.
type CommentClient interface {
	// ResolveVideo looks up a video by BVID and returns its AID and title.
	ResolveVideo(ctx context.Context, bvid string) (*model.Video, error)

	// FetchComments retrieves one page of comments for the given AID.
	// hasMore reports whether another page exists.
	FetchComments(ctx context.Context, cookie *model.Cookie, aid int64, page int) (comments []model.Comment, hasMore bool, err error)

	// CheckLogin probes whether the cookie corresponds to a live session.
	CheckLogin(ctx context.Context, cookie *model.Cookie) (bool, error)
}
