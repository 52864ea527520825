package types

import "time"

// Entity is the base type for persisted records with timestamps.
// Embed this in domain types to get uniform timestamp handling.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntity creates a new Entity with current timestamps.
func NewEntity() Entity {
	now := time.Now().UTC()
	return Entity{CreatedAt: now, UpdatedAt: now}
}

// NewEntityAt creates an Entity stamped with the given time. Used by
// callers running against an injected clock.
func NewEntityAt(now time.Time) Entity {
	now = now.UTC()
	return Entity{CreatedAt: now, UpdatedAt: now}
}

// Touch updates the UpdatedAt timestamp to now.
func (e *Entity) Touch() {
	e.UpdatedAt = time.Now().UTC()
}

// TouchAt updates the UpdatedAt timestamp to the given time.
func (e *Entity) TouchAt(now time.Time) {
	e.UpdatedAt = now.UTC()
}

// Age returns how long ago the entity was created.
func (e Entity) Age() time.Duration {
	return time.Since(e.CreatedAt)
}
