package domain

import (
	"time"
)

type Player struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Match is a completed 2v2 contest. Exactly one side's score equals the win
// threshold; the other side's score is strictly lower. Bonus counters record
// per-slot "klinker" shots and take no part in rating math.
type Match struct {
	ID         string    `json:"id"`
	Home1ID    string    `json:"home1_id"`
	Home2ID    string    `json:"home2_id"`
	Away1ID    string    `json:"away1_id"`
	Away2ID    string    `json:"away2_id"`
	HomeScore  int       `json:"home_score"`
	AwayScore  int       `json:"away_score"`
	Home1Bonus int       `json:"home1_bonus"`
	Home2Bonus int       `json:"home2_bonus"`
	Away1Bonus int       `json:"away1_bonus"`
	Away2Bonus int       `json:"away2_bonus"`
	PlayedAt   time.Time `json:"played_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ParticipantIDs returns the four player ids in slot order: home1, home2,
// away1, away2.
func (m *Match) ParticipantIDs() [4]string {
	return [4]string{m.Home1ID, m.Home2ID, m.Away1ID, m.Away2ID}
}

// RatingEvent is one immutable fact: a player's rating after one match.
// Events for a player form a strictly (PlayedAt, MatchID)-ordered sequence
// that must always equal what a full replay of the match store produces.
type RatingEvent struct {
	ID       string
	PlayerID string
	MatchID  string
	Rating   int
	PlayedAt time.Time
}

// HistoryPoint is one step of a player's rating development.
type HistoryPoint struct {
	PlayedAt time.Time `json:"played_at"`
	Rating   int       `json:"rating"`
}
