package crypto

import (
	"context"

	"github.com/MKhiriev/go-fish-log/models"
)

// Engine is the field-level encryption engine of the sync core.
//
// It holds one AES-256-GCM key per signed-in session. The key is derived
// deterministically from the user's email, a build-time pepper and a random
// per-user salt, so every device of the same user derives the same key.
// Until a key is set every encrypt/decrypt call is a passthrough.
type Engine interface {
	// SetDeterministicKey looks up (or creates and persists) the user's salt
	// and derives the session key. Only the salt is ever persisted.
	SetDeterministicKey(ctx context.Context, userID, email string) error

	// IsReady reports whether a key has been derived.
	IsReady() bool

	// Clear forgets the session key. Subsequent calls pass data through.
	Clear()

	// EncryptFields returns a copy of doc with the configured fields of coll
	// encrypted and the _encrypted marker set. The input is never mutated.
	EncryptFields(ctx context.Context, coll models.Collection, doc models.Document) models.Document

	// DecryptObject is the tolerant inverse of EncryptFields: every field is
	// decrypted independently and falls back to its stored value on failure.
	DecryptObject(ctx context.Context, coll models.Collection, doc models.Document) models.Document

	// ObjectNeedsEncryption reports whether doc still holds plaintext in any
	// configured field of coll.
	ObjectNeedsEncryption(coll models.Collection, doc models.Document) bool

	// EncryptBytes seals binary data (photos) with a sub-key of the session key.
	// Output framing is iv(12) ‖ ciphertext+tag.
	EncryptBytes(plain []byte) ([]byte, error)

	// DecryptBytes opens data produced by EncryptBytes.
	DecryptBytes(sealed []byte) ([]byte, error)

	// IsEncryptedValue reports whether s carries the ciphertext prefix.
	IsEncryptedValue(s string) bool
}

// KeyValueStore is the local persisted key/value table the engine keeps
// per-user salts in.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
}
