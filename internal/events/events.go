// Package events defines the change events the store records in its outbox and the step
// submission envelope accepted from Kafka.
package events

import "time"

// Event types written to the outbox.
const (
	TypeStepsRecorded      = "steps.recorded"
	TypeLeagueCreated      = "league.created"
	TypeLeagueMemberJoined = "league.member_joined"
	TypeStepSubmission     = "steps.submitted"
)

// StepsRecorded is emitted once per ledger row written by an ingestion.
type StepsRecorded struct {
	UserID        string    `json:"user_id"`
	Date          string    `json:"date"`
	Steps         int64     `json:"steps"`
	PreviousSteps *int64    `json:"previous_steps,omitempty"`
	IngestedAt    time.Time `json:"ingested_at"`
}

// LeagueCreated is emitted when a league row is inserted.
type LeagueCreated struct {
	LeagueID  string    `json:"league_id"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// LeagueMemberJoined is emitted when a membership row is inserted.
type LeagueMemberJoined struct {
	LeagueID string    `json:"league_id"`
	PlayerID string    `json:"player_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// Route tells the outbox where an event type is published.
type Route struct {
	AggregateType string
	Topic         string
	SchemaSubject string
}

// Routes maps each outbox event type to its topic and Schema Registry subject.
var Routes = map[string]Route{
	TypeStepsRecorded: {
		AggregateType: "step_record",
		Topic:         "steplotto_steps",
		SchemaSubject: "steplotto_steps-value",
	},
	TypeLeagueCreated: {
		AggregateType: "league",
		Topic:         "steplotto_leagues",
		SchemaSubject: "steplotto_leagues-league_created-value",
	},
	TypeLeagueMemberJoined: {
		AggregateType: "league",
		Topic:         "steplotto_leagues",
		SchemaSubject: "steplotto_leagues-member_joined-value",
	},
}
