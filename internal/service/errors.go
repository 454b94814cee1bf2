package service

import "errors"

var (
	// ErrNotAuthenticated is returned by operations that need a signed-in user.
	ErrNotAuthenticated = errors.New("no user is signed in")
	// ErrOffline is returned by operations that need the Remote Store.
	ErrOffline = errors.New("remote store is offline")
	// ErrNotFound is returned when a trip, weather log or catch does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrUserMismatch is returned when an operation names a user other than
	// the signed-in one.
	ErrUserMismatch = errors.New("user does not match the signed-in session")
	// ErrEncryptionNotReady is returned when the migration is started without a key.
	ErrEncryptionNotReady = errors.New("encryption key is not ready")
	// ErrMigrationInterrupted is returned by a migration pass that stopped
	// because the user signed out, switched or the pass was stopped.
	ErrMigrationInterrupted = errors.New("migration interrupted by a session change")
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("sync queue is closed")
	// ErrInvalidPhoto is returned for a photo that is not a base64 data URI.
	ErrInvalidPhoto = errors.New("photo is not a base64 data URI")
	// ErrNoPhoto is returned by GetFishPhoto for a catch without a photo.
	ErrNoPhoto = errors.New("catch has no photo")
)
