package model

import "time"

// Video is a watched bilibili video whose comment section the crawl service
// keeps in sync.
type Video struct {
	BVID          string
	AID           int64
	Title         string
	AddedAt       time.Time
	LastCrawledAt time.Time // zero until the first successful crawl
}
