package model

// Bounds for the crawler pacing parameters. Values outside these ranges are
// clamped, never rejected.
const (
	DelayMinBound = 0
	DelayMaxBound = 100

	RetriesMinBound = 0
	RetriesMaxBound = 10
)

// CrawlerParams holds the request pacing parameters: the random per-request
// delay range in seconds and the retry ceiling. DelayMin exceeding DelayMax
// is accepted as-is; callers that sleep must tolerate an inverted range.
type CrawlerParams struct {
	DelayMin   int
	DelayMax   int
	MaxRetries int
}

// DefaultCrawlerParams returns the first-boot pacing defaults.
func DefaultCrawlerParams() CrawlerParams {
	return CrawlerParams{
		DelayMin:   2,
		DelayMax:   5,
		MaxRetries: 3,
	}
}

// Clamped returns a copy with each field forced into its allowed range.
func (p CrawlerParams) Clamped() CrawlerParams {
	return CrawlerParams{
		DelayMin:   clamp(p.DelayMin, DelayMinBound, DelayMaxBound),
		DelayMax:   clamp(p.DelayMax, DelayMinBound, DelayMaxBound),
		MaxRetries: clamp(p.MaxRetries, RetriesMinBound, RetriesMaxBound),
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
