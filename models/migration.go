package models

import "time"

// CollectionMigrationState is the persisted progress of the encryption
// migration for one (user, collection) pair.
type CollectionMigrationState struct {
	Processed int        `json:"processed"`
	Updated   int        `json:"updated"`
	Done      bool       `json:"done"`
	Cursor    *time.Time `json:"cursor,omitempty"`
	// CursorID is the id of the last document read at Cursor; together they
	// order documents that share a creation time.
	CursorID string `json:"cursorId,omitempty"`
}

// MigrationSummary aggregates one migration run.
type MigrationSummary struct {
	UserID    string                                  `json:"userId"`
	Processed int                                     `json:"processed"`
	Updated   int                                     `json:"updated"`
	Completed bool                                    `json:"completed"`
	Aborted   bool                                    `json:"aborted"`
	States    map[Collection]CollectionMigrationState `json:"states"`
}

// WipeProgress is reported while a user's remote data is being cleared.
type WipeProgress struct {
	Phase   string `json:"phase"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message"`
}
