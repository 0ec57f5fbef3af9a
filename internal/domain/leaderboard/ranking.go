package leaderboard

import (
	"sort"
	"time"
)

// BuildSnapshot ranks the given per-user stats into a snapshot for one
// (period, label) pair. The ordering is total and deterministic:
//
//  1. higher composite score first
//  2. earlier last event in the window first (reached the score sooner)
//  3. lexicographically smaller user ID first
//
// Ranks are dense 1..N with no gaps and no sharing; users with zero
// events are excluded before ranking.
func BuildSnapshot(period Period, label string, stats []UserStats, weights ScoreWeights, computedAt time.Time) (*Snapshot, error) {
	if !period.IsValid() {
		return nil, ErrInvalidPeriod
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	entries := make([]*Entry, 0, len(stats))
	for _, s := range stats {
		if s.EventCount <= 0 {
			continue
		}
		entries = append(entries, &Entry{
			UserID:       s.UserID,
			Period:       period,
			PeriodLabel:  label,
			Score:        s.CompositeScore(weights),
			EventCount:   s.EventCount,
			AverageScore: s.AverageScore,
			HighestScore: s.HighestScore,
			LastEventAt:  s.LastEventAt,
			ComputedAt:   computedAt,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.LastEventAt.Equal(b.LastEventAt) {
			return a.LastEventAt.Before(b.LastEventAt)
		}
		return a.UserID < b.UserID
	})

	for i, e := range entries {
		e.Rank = Rank(i + 1)
	}

	return &Snapshot{
		Period:      period,
		PeriodLabel: label,
		Entries:     entries,
		ComputedAt:  computedAt,
	}, nil
}

// Top returns the first n entries of the snapshot, or all of them when
// fewer exist.
func (s *Snapshot) Top(n int) []*Entry {
	if n < 0 {
		n = 0
	}
	if n > len(s.Entries) {
		n = len(s.Entries)
	}
	return s.Entries[:n]
}

// Find returns the entry for the given user, or nil when the user is not
// ranked in this snapshot.
func (s *Snapshot) Find(userID string) *Entry {
	for _, e := range s.Entries {
		if e.UserID.String() == userID {
			return e
		}
	}
	return nil
}
