package crypto

import "errors"

var (
	// ErrNotReady is returned by byte-level operations before a key is derived.
	ErrNotReady = errors.New("encryption key is not set")
	// ErrEmptyIdentity is returned when a key is requested for an empty user id or email.
	ErrEmptyIdentity = errors.New("user id and email are required to derive a key")
	// ErrMalformedCiphertext is returned when a value does not follow the enc:v1 framing.
	ErrMalformedCiphertext = errors.New("malformed ciphertext")
	// ErrInvalidSalt is returned when the persisted salt cannot be decoded.
	ErrInvalidSalt = errors.New("invalid persisted salt")
	// ErrUnknownKDF is returned for an unsupported key derivation function name.
	ErrUnknownKDF = errors.New("unknown key derivation function")
)
