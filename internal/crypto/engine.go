// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package crypto

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/MKhiriev/go-fish-log/internal/logger"
	"github.com/MKhiriev/go-fish-log/models"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

// Key derivation parameters. They define the ciphertext every device of a
// user must be able to read and therefore never change between releases.
const (
	KDFPBKDF2 = "pbkdf2"
	KDFSHA256 = "sha256"

	pbkdf2Iterations = 60000
	keyLen           = 32
	saltLen          = 16

	// CiphertextPrefix marks an encrypted field value.
	CiphertextPrefix = "enc:v1:"

	photoKeyInfo = "fishlog-photo-v1"
)

// engine is the private implementation of [Engine].
type engine struct {
	salts  KeyValueStore
	pepper string
	kdf    string

	mu       sync.RWMutex
	key      []byte
	photoKey []byte
	aead     cipher.AEAD
	photo    cipher.AEAD
}

// NewEngine constructs an [Engine] that persists salts in salts.
//
// pepper is the build-time secret mixed into every derivation; kdf selects
// the derivation function ([KDFPBKDF2] or [KDFSHA256], empty means PBKDF2).
func NewEngine(salts KeyValueStore, pepper, kdf string) (Engine, error) {
	switch kdf {
	case "":
		kdf = KDFPBKDF2
	case KDFPBKDF2, KDFSHA256:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKDF, kdf)
	}

	return &engine{
		salts:  salts,
		pepper: pepper,
		kdf:    kdf,
	}, nil
}

// SetDeterministicKey implements [Engine].
func (e *engine) SetDeterministicKey(ctx context.Context, userID, email string) error {
	log := logger.FromContext(ctx)

	if userID == "" || email == "" {
		return ErrEmptyIdentity
	}

	salt, err := e.loadOrCreateSalt(ctx, userID)
	if err != nil {
		log.Err(err).Str("func", "engine.SetDeterministicKey").Str("user_id", userID).Msg("salt lookup failed")
		return err
	}

	key := e.deriveKey([]byte(email+"|"+e.pepper), salt)

	photoKey := make([]byte, keyLen)
	if _, err = io.ReadFull(hkdf.New(sha256.New, key, nil, []byte(photoKeyInfo)), photoKey); err != nil {
		return fmt.Errorf("derive photo key: %w", err)
	}

	aead, err := newGCM(key)
	if err != nil {
		return err
	}
	photo, err := newGCM(photoKey)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.key, e.photoKey, e.aead, e.photo = key, photoKey, aead, photo
	e.mu.Unlock()

	log.Debug().Str("func", "engine.SetDeterministicKey").Str("user_id", userID).Str("kdf", e.kdf).Msg("encryption key derived")
	return nil
}

func (e *engine) loadOrCreateSalt(ctx context.Context, userID string) ([]byte, error) {
	saltKey := models.SaltKey(userID)

	stored, found, err := e.salts.Get(ctx, saltKey)
	if err != nil {
		return nil, fmt.Errorf("read salt: %w", err)
	}
	if found {
		salt, err := base64.StdEncoding.DecodeString(stored)
		if err != nil || len(salt) != saltLen {
			return nil, ErrInvalidSalt
		}
		return salt, nil
	}

	salt := make([]byte, saltLen)
	if _, err = io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	if err = e.salts.Set(ctx, saltKey, base64.StdEncoding.EncodeToString(salt)); err != nil {
		return nil, fmt.Errorf("persist salt: %w", err)
	}
	return salt, nil
}

func (e *engine) deriveKey(secret, salt []byte) []byte {
	if e.kdf == KDFSHA256 {
		h := sha256.New()
		h.Write(salt)
		h.Write(secret)
		return h.Sum(nil)
	}
	return pbkdf2.Key(secret, salt, pbkdf2Iterations, keyLen, sha256.New)
}

// IsReady implements [Engine].
func (e *engine) IsReady() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.aead != nil
}

// Clear implements [Engine].
func (e *engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()

	clear(e.key)
	clear(e.photoKey)
	e.key, e.photoKey, e.aead, e.photo = nil, nil, nil, nil
}

func (e *engine) ciphers() (field, photo cipher.AEAD) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.aead, e.photo
}

// EncryptFields implements [Engine].
func (e *engine) EncryptFields(ctx context.Context, coll models.Collection, doc models.Document) models.Document {
	aead, _ := e.ciphers()
	set, known := encryptedFields[coll]
	if aead == nil || !known || doc == nil {
		return doc
	}

	log := logger.FromContext(ctx)
	out := doc.Clone()
	typed := typedFields(doc)

	for _, field := range set.scalars {
		value, ok := out[field]
		if !ok || value == nil {
			continue
		}

		var plain string
		switch v := value.(type) {
		case string:
			if v == "" || strings.HasPrefix(v, CiphertextPrefix) {
				continue
			}
			plain = v
		case float64, float32, int, int32, int64, uint, uint32, uint64, bool, json.Number:
			raw, err := json.Marshal(v)
			if err != nil {
				continue
			}
			plain = string(raw)
			typed[field] = struct{}{}
		default:
			continue
		}

		sealed, err := sealString(aead, plain)
		if err != nil {
			log.Err(err).Str("func", "engine.EncryptFields").Str("collection", coll.String()).Str("field", field).Msg("field left in plaintext")
			delete(typed, field)
			continue
		}
		out[field] = sealed
	}

	for _, field := range set.arrays {
		switch values := out[field].(type) {
		case []string:
			for i, v := range values {
				if strings.HasPrefix(v, CiphertextPrefix) {
					continue
				}
				if sealed, err := sealString(aead, v); err == nil {
					values[i] = sealed
				}
			}
		case []any:
			for i, item := range values {
				v, ok := item.(string)
				if !ok || strings.HasPrefix(v, CiphertextPrefix) {
					continue
				}
				if sealed, err := sealString(aead, v); err == nil {
					values[i] = sealed
				}
			}
		}
	}

	out[models.FieldEncrypted] = true
	if len(typed) > 0 {
		names := make([]string, 0, len(typed))
		for _, field := range set.scalars {
			if _, ok := typed[field]; ok {
				names = append(names, field)
			}
		}
		out[models.FieldEncTyped] = names
	}

	return out
}

// DecryptObject implements [Engine].
func (e *engine) DecryptObject(ctx context.Context, coll models.Collection, doc models.Document) models.Document {
	aead, _ := e.ciphers()
	set, known := encryptedFields[coll]
	if aead == nil || !known || doc == nil {
		return doc
	}

	log := logger.FromContext(ctx)
	out := doc.Clone()
	typed := typedFields(doc)

	for _, field := range set.scalars {
		v, ok := out[field].(string)
		if !ok || !strings.HasPrefix(v, CiphertextPrefix) {
			continue
		}

		plain, err := openString(aead, v)
		if err != nil {
			log.Debug().Err(err).Str("func", "engine.DecryptObject").Str("collection", coll.String()).Str("field", field).Msg("keeping stored value")
			continue
		}

		if _, isTyped := typed[field]; isTyped {
			var restored any
			if err = json.Unmarshal([]byte(plain), &restored); err == nil {
				out[field] = restored
				continue
			}
		}
		out[field] = plain
	}

	for _, field := range set.arrays {
		switch values := out[field].(type) {
		case []string:
			for i, v := range values {
				if plain, err := openString(aead, v); err == nil {
					values[i] = plain
				}
			}
		case []any:
			for i, item := range values {
				v, ok := item.(string)
				if !ok {
					continue
				}
				if plain, err := openString(aead, v); err == nil {
					values[i] = plain
				}
			}
		}
	}

	delete(out, models.FieldEncrypted)
	delete(out, models.FieldEncTyped)
	return out
}

// ObjectNeedsEncryption implements [Engine].
func (e *engine) ObjectNeedsEncryption(coll models.Collection, doc models.Document) bool {
	set, known := encryptedFields[coll]
	if !known || doc == nil {
		return false
	}

	for _, field := range set.scalars {
		switch v := doc[field].(type) {
		case nil:
		case string:
			if v != "" && !strings.HasPrefix(v, CiphertextPrefix) {
				return true
			}
		case float64, float32, int, int32, int64, uint, uint32, uint64, bool, json.Number:
			return true
		}
	}

	for _, field := range set.arrays {
		switch values := doc[field].(type) {
		case []string:
			for _, v := range values {
				if !strings.HasPrefix(v, CiphertextPrefix) {
					return true
				}
			}
		case []any:
			for _, item := range values {
				if v, ok := item.(string); ok && !strings.HasPrefix(v, CiphertextPrefix) {
					return true
				}
			}
		}
	}

	return false
}

// EncryptBytes implements [Engine].
func (e *engine) EncryptBytes(plain []byte) ([]byte, error) {
	_, photo := e.ciphers()
	if photo == nil {
		return nil, ErrNotReady
	}

	nonce := make([]byte, photo.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return photo.Seal(nonce, nonce, plain, nil), nil
}

// DecryptBytes implements [Engine].
func (e *engine) DecryptBytes(sealed []byte) ([]byte, error) {
	_, photo := e.ciphers()
	if photo == nil {
		return nil, ErrNotReady
	}

	nonceSize := photo.NonceSize()
	if len(sealed) < nonceSize+photo.Overhead() {
		return nil, ErrMalformedCiphertext
	}
	plain, err := photo.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt photo: %w", err)
	}
	return plain, nil
}

// IsEncryptedValue implements [Engine].
func (e *engine) IsEncryptedValue(s string) bool {
	return strings.HasPrefix(s, CiphertextPrefix)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return aead, nil
}

// sealString encrypts value as enc:v1:<iv_b64>:<ct_b64> with a fresh 12-byte IV.
func sealString(aead cipher.AEAD, value string) (string, error) {
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ct := aead.Seal(nil, nonce, []byte(value), nil)
	return CiphertextPrefix +
		base64.StdEncoding.EncodeToString(nonce) + ":" +
		base64.StdEncoding.EncodeToString(ct), nil
}

func openString(aead cipher.AEAD, value string) (string, error) {
	rest, ok := strings.CutPrefix(value, CiphertextPrefix)
	if !ok {
		return "", ErrMalformedCiphertext
	}
	ivPart, ctPart, ok := strings.Cut(rest, ":")
	if !ok {
		return "", ErrMalformedCiphertext
	}

	nonce, err := base64.StdEncoding.DecodeString(ivPart)
	if err != nil || len(nonce) != aead.NonceSize() {
		return "", ErrMalformedCiphertext
	}
	ct, err := base64.StdEncoding.DecodeString(ctPart)
	if err != nil {
		return "", ErrMalformedCiphertext
	}

	plain, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedCiphertext, err)
	}
	return string(plain), nil
}

// typedFields reads the _encTyped list of doc into a set.
func typedFields(doc models.Document) map[string]struct{} {
	out := make(map[string]struct{})
	switch list := doc[models.FieldEncTyped].(type) {
	case []string:
		for _, name := range list {
			out[name] = struct{}{}
		}
	case []any:
		for _, item := range list {
			if name, ok := item.(string); ok {
				out[name] = struct{}{}
			}
		}
	}
	return out
}
