package outbox

import "github.com/chrisnesbitt427/steplotto/internal/events"

const stepsRecordedSchema = `{
  "type": "object",
  "title": "StepsRecorded",
  "properties": {
    "user_id": {"type": "string"},
    "date": {"type": "string", "format": "date"},
    "steps": {"type": "integer", "minimum": 0},
    "previous_steps": {"type": "integer", "minimum": 0},
    "ingested_at": {"type": "string", "format": "date-time"}
  },
  "required": ["user_id", "date", "steps", "ingested_at"],
  "additionalProperties": false
}`

const leagueCreatedSchema = `{
  "type": "object",
  "title": "LeagueCreated",
  "properties": {
    "league_id": {"type": "string", "minLength": 1},
    "created_by": {"type": "string"},
    "created_at": {"type": "string", "format": "date-time"}
  },
  "required": ["league_id", "created_by", "created_at"],
  "additionalProperties": false
}`

const leagueMemberJoinedSchema = `{
  "type": "object",
  "title": "LeagueMemberJoined",
  "properties": {
    "league_id": {"type": "string", "minLength": 1},
    "player_id": {"type": "string"},
    "joined_at": {"type": "string", "format": "date-time"}
  },
  "required": ["league_id", "player_id", "joined_at"],
  "additionalProperties": false
}`

// SchemaCatalogEntry maps event type to schema definition.
type SchemaCatalogEntry struct {
	Schema string
}

var schemaCatalog = map[string]SchemaCatalogEntry{
	events.TypeStepsRecorded:      {Schema: stepsRecordedSchema},
	events.TypeLeagueCreated:      {Schema: leagueCreatedSchema},
	events.TypeLeagueMemberJoined: {Schema: leagueMemberJoinedSchema},
}
