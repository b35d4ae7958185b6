package analytics

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// Summary renders Stats as a human-readable one-line dashboard string,
// e.g. "1,204 queries, avg relevance 0.78, avg latency 312ms, 48 k tokens
// saved, 91% useful".
func (s Stats) Summary() string {
	useful := "n/a"
	if total := s.UsefulCount + s.NotUsefulCount; total > 0 {
		pct := float64(s.UsefulCount) / float64(total) * 100
		useful = fmt.Sprintf("%.0f%% useful", pct)
	}
	return fmt.Sprintf("%s queries, avg relevance %.2f, avg latency %s, %s tokens saved, %s",
		humanize.Comma(int64(s.TotalQueries)),
		s.AverageRelevance,
		time.Duration(s.AverageLatencyMS*float64(time.Millisecond)).Round(time.Millisecond),
		humanize.SIWithDigits(float64(s.TotalTokensSaved), 1, ""),
		useful,
	)
}
