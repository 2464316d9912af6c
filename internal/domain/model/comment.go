package model

import "time"

// Comment is a single crawled comment (bilibili "reply"). RPID is the
// upstream reply identifier and is unique per comment.
type Comment struct {
	RPID      int64
	BVID      string
	UserID    int64
	Username  string
	Message   string
	Likes     int
	PostedAt  time.Time
	FetchedAt time.Time
}
