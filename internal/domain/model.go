// Package domain defines the entities, error taxonomy, and store ports shared by the
// ledger, registry, and lottery engine.
package domain

import (
	"fmt"
	"time"
)

// StepRecord is the canonical per-user-per-day step count. At most one exists per (UserID, Date).
type StepRecord struct {
	UserID     string    `json:"user_id"`
	Date       Date      `json:"date"`
	Steps      int64     `json:"steps"`
	IngestedAt time.Time `json:"ingested_at"`
}

// UpsertOutcome describes what a replace-or-insert did to one record.
type UpsertOutcome struct {
	Record StepRecord
	// Previous holds the replaced value; nil when the record was newly inserted.
	Previous *int64
	// Stale is set when a newer ingestion already owns the (user, date) key and the
	// record was left untouched.
	Stale bool
}

// Decreased reports whether the upsert lowered a previously recorded count.
func (o UpsertOutcome) Decreased() bool {
	return !o.Stale && o.Previous != nil && *o.Previous > o.Record.Steps
}

// DailyTotal is one point of a user's step history.
type DailyTotal struct {
	Date  Date  `json:"date"`
	Steps int64 `json:"steps"`
}

// DayActivity aggregates one day across a cohort.
type DayActivity struct {
	Date          Date
	TotalSteps    int64
	ActivePlayers int
}

// User is a registered participant.
type User struct {
	UserID    string    `json:"user_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	CreatedAt time.Time `json:"created_at"`
}

// League is a named competition. Names are unique and case-sensitive.
type League struct {
	LeagueID  string    `json:"league_id"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Membership links a player to a league. Each (PlayerID, LeagueID) pair exists at most once.
type Membership struct {
	PlayerID string    `json:"player_id"`
	LeagueID string    `json:"league_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// Scope selects the cohort an aggregation runs over.
type Scope struct {
	// LeagueID is empty for the global cohort.
	LeagueID string
}

// GlobalScope is the cohort of every known user.
var GlobalScope = Scope{}

// LeagueScope is the cohort of a league's members.
func LeagueScope(leagueID string) Scope { return Scope{LeagueID: leagueID} }

// IsGlobal reports whether s is the global cohort.
func (s Scope) IsGlobal() bool { return s.LeagueID == "" }

func (s Scope) String() string {
	if s.IsGlobal() {
		return "global"
	}
	return s.LeagueID
}

// Standing is one leaderboard row.
type Standing struct {
	Rank           int     `json:"rank"`
	UserID         string  `json:"user_id"`
	TotalSteps     int64   `json:"total_steps"`
	WinProbability float64 `json:"win_probability"`
}

// Money is an amount in minor currency units.
type Money int64

func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// PotPeriod is one day of the pot schedule. It is derived, never persisted.
type PotPeriod struct {
	Date          Date  `json:"date"`
	TotalSteps    int64 `json:"total_steps"`
	PayingPlayers int   `json:"paying_players"`
	DailyPot      Money `json:"daily_pot"`
	CumulativePot Money `json:"cumulative_pot"`
}
