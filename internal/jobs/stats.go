package jobs

import (
	"context"
	"fmt"
	"time"

	"vench/internal/emotion"
)

// EmotionTotals sums emotion scores over completed diary jobs created at or
// after since. Every closed-set label is present; sums are rounded to one
// decimal.
func (s *Store) EmotionTotals(ctx context.Context, since time.Time) (emotion.Vector, int, error) {
	diaries, err := s.List(ctx, Filter{
		Kinds:    []Kind{KindDiaryAnalysis},
		Statuses: []Status{StatusCompleted},
		Since:    since,
	})
	if err != nil {
		return nil, 0, err
	}
	total := emotion.Zero()
	for _, job := range diaries {
		total = total.Add(job.Output.Emotions)
	}
	return total.Rounded(), len(diaries), nil
}

// KeywordStats returns the most frequent keywords across completed feedback
// jobs created at or after since.
func (s *Store) KeywordStats(ctx context.Context, since time.Time, limit int) ([]KeywordCount, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT k.keyword, COUNT(1) AS n
         FROM job_keywords k JOIN jobs j ON j.id = k.job_id
         WHERE j.kind = ? AND j.status = ? AND j.created_at >= ?
         GROUP BY k.keyword
         ORDER BY n DESC, k.keyword
         LIMIT ?`,
		KindFeedbackAnalysis, StatusCompleted, formatTime(since), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("keyword stats: %w", err)
	}
	defer rows.Close()

	var out []KeywordCount
	for rows.Next() {
		var kc KeywordCount
		if err := rows.Scan(&kc.Keyword, &kc.Count); err != nil {
			return nil, err
		}
		out = append(out, kc)
	}
	return out, rows.Err()
}
