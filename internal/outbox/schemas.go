package outbox

import "github.com/scottdixon-github/App-Garden/internal/events"

// SchemaCatalogEntry maps event type to schema definition.
type SchemaCatalogEntry struct {
	Schema string
}

var schemaCatalog = map[string]SchemaCatalogEntry{
	events.TypeSessionCompleted: {Schema: sessionEventSchema},
	events.TypeSessionDeleted:   {Schema: sessionEventSchema},
}

// Both event types share one subject, so they share one schema.
const sessionEventSchema = `{
  "type": "object",
  "title": "SessionEvent",
  "properties": {
    "session_id": {"type": "string"},
    "title": {"type": "string"},
    "duration": {"type": "string"},
    "completed_at": {"type": "string", "format": "date-time"},
    "deleted_at": {"type": "string", "format": "date-time"}
  },
  "required": ["session_id"],
  "additionalProperties": false
}`
