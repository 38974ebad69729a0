package domain

import "time"

type RevisionKind string

const (
	RevisionCreated  RevisionKind = "CREATED"
	RevisionModified RevisionKind = "MODIFIED"
	RevisionDeleted  RevisionKind = "DELETED"
)

// RevisionInfo identifies one write transaction in the revision log. Every
// entity change made by that transaction shares it.
type RevisionInfo struct {
	ID        int64     `json:"revision_id"`
	Timestamp time.Time `json:"revision_date"`
	Actor     string    `json:"actor"`
}

// Revision is one historical version of an entity.
type Revision[T any] struct {
	RevisionInfo
	Kind     RevisionKind `json:"revision_type"`
	Snapshot T            `json:"snapshot"`
}
