package crypto

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/MKhiriev/go-fish-log/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── helpers ───────────────────────────────────────────────────────────────────

type mapStore struct {
	mu     sync.Mutex
	values map[string]string
	getErr error
	setErr error
}

func newMapStore() *mapStore {
	return &mapStore{values: make(map[string]string)}
}

func (m *mapStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *mapStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	return nil
}

func testContext() context.Context {
	return zerolog.Nop().WithContext(context.Background())
}

func newReadyEngine(t *testing.T, kdf string) (Engine, *mapStore) {
	t.Helper()
	kv := newMapStore()
	e, err := NewEngine(kv, "pepper", kdf)
	require.NoError(t, err)
	require.NoError(t, e.SetDeterministicKey(testContext(), "user-1", "angler@example.com"))
	return e, kv
}

// ── construction & key derivation ─────────────────────────────────────────────

func TestNewEngine_UnknownKDF(t *testing.T) {
	_, err := NewEngine(newMapStore(), "pepper", "scrypt")
	assert.ErrorIs(t, err, ErrUnknownKDF)
}

func TestSetDeterministicKey_PersistsSaltOnly(t *testing.T) {
	e, kv := newReadyEngine(t, KDFPBKDF2)

	assert.True(t, e.IsReady())
	require.Len(t, kv.values, 1)

	stored, ok := kv.values["enc_salt_user-1"]
	require.True(t, ok)
	salt, err := base64.StdEncoding.DecodeString(stored)
	require.NoError(t, err)
	assert.Len(t, salt, 16)
}

func TestSetDeterministicKey_SameInputsSameKey(t *testing.T) {
	kv := newMapStore()
	ctx := testContext()

	first, err := NewEngine(kv, "pepper", KDFPBKDF2)
	require.NoError(t, err)
	require.NoError(t, first.SetDeterministicKey(ctx, "user-1", "angler@example.com"))

	sealed := first.EncryptFields(ctx, models.CollectionTrips, models.Document{"water": "Lake X"})

	// A second device sharing the salt derives the same key.
	second, err := NewEngine(kv, "pepper", KDFPBKDF2)
	require.NoError(t, err)
	require.NoError(t, second.SetDeterministicKey(ctx, "user-1", "angler@example.com"))

	opened := second.DecryptObject(ctx, models.CollectionTrips, sealed)
	assert.Equal(t, "Lake X", opened["water"])
}

func TestSetDeterministicKey_DifferentPepperCannotDecrypt(t *testing.T) {
	kv := newMapStore()
	ctx := testContext()

	first, _ := NewEngine(kv, "pepper-a", KDFSHA256)
	require.NoError(t, first.SetDeterministicKey(ctx, "user-1", "angler@example.com"))
	sealed := first.EncryptFields(ctx, models.CollectionTrips, models.Document{"water": "Lake X"})

	second, _ := NewEngine(kv, "pepper-b", KDFSHA256)
	require.NoError(t, second.SetDeterministicKey(ctx, "user-1", "angler@example.com"))
	opened := second.DecryptObject(ctx, models.CollectionTrips, sealed)

	assert.Equal(t, sealed["water"], opened["water"], "undecryptable value must be returned as stored")
}

func TestSetDeterministicKey_Errors(t *testing.T) {
	ctx := testContext()

	t.Run("empty identity", func(t *testing.T) {
		e, _ := NewEngine(newMapStore(), "pepper", "")
		assert.ErrorIs(t, e.SetDeterministicKey(ctx, "", "a@b.c"), ErrEmptyIdentity)
		assert.False(t, e.IsReady())
	})

	t.Run("corrupt salt", func(t *testing.T) {
		kv := newMapStore()
		kv.values["enc_salt_u"] = "not-base64!!"
		e, _ := NewEngine(kv, "pepper", "")
		assert.ErrorIs(t, e.SetDeterministicKey(ctx, "u", "a@b.c"), ErrInvalidSalt)
	})

	t.Run("store read failure", func(t *testing.T) {
		kv := newMapStore()
		kv.getErr = errors.New("disk gone")
		e, _ := NewEngine(kv, "pepper", "")
		assert.Error(t, e.SetDeterministicKey(ctx, "u", "a@b.c"))
		assert.False(t, e.IsReady())
	})

	t.Run("store write failure", func(t *testing.T) {
		kv := newMapStore()
		kv.setErr = errors.New("read-only")
		e, _ := NewEngine(kv, "pepper", "")
		assert.Error(t, e.SetDeterministicKey(ctx, "u", "a@b.c"))
	})
}

func TestClear_ReturnsToPassthrough(t *testing.T) {
	e, _ := newReadyEngine(t, KDFSHA256)
	e.Clear()

	assert.False(t, e.IsReady())
	doc := models.Document{"water": "Lake X"}
	assert.Equal(t, doc, e.EncryptFields(testContext(), models.CollectionTrips, doc))

	_, err := e.EncryptBytes([]byte("x"))
	assert.ErrorIs(t, err, ErrNotReady)
}

// ── field encryption ──────────────────────────────────────────────────────────

func TestEncryptFields_Passthrough_WhenNotReady(t *testing.T) {
	e, err := NewEngine(newMapStore(), "pepper", "")
	require.NoError(t, err)

	doc := models.Document{"water": "Lake X", "notes": "windy"}
	ctx := testContext()

	assert.Equal(t, doc, e.EncryptFields(ctx, models.CollectionTrips, doc))
	assert.Equal(t, doc, e.DecryptObject(ctx, models.CollectionTrips, doc))
}

func TestEncryptFields_RoundTrip_AllCollections(t *testing.T) {
	e, _ := newReadyEngine(t, KDFSHA256)
	ctx := testContext()

	tests := []struct {
		name string
		coll models.Collection
		doc  models.Document
	}{
		{
			name: "trips",
			coll: models.CollectionTrips,
			doc: models.Document{
				"id": float64(1709251200000), "date": "2024-03-01", "hours": float64(3),
				"water": "Lake X", "location": "Bay", "companions": "Ana", "notes": "calm",
			},
		},
		{
			name: "weather logs",
			coll: models.CollectionWeatherLogs,
			doc: models.Document{
				"id": "1-ab", "tripId": float64(1),
				"timeOfDay": "morning", "sky": "clear", "windCondition": "light",
				"windDirection": "NW", "waterTemp": "12", "airTemp": "15",
			},
		},
		{
			name: "fish caught with numbers and gear",
			coll: models.CollectionFishCaught,
			doc: models.Document{
				"id": "1-cd", "tripId": float64(1),
				"species": "Pike", "length": float64(72.5), "weight": "4.1kg",
				"time": "07:30", "details": "released",
				"gear": []any{"spinner", "wire leader"},
			},
		},
		{
			name: "tackle items",
			coll: models.CollectionTackleItems,
			doc: models.Document{
				"id": "t1", "type": "lure", "name": "Spinner", "brand": "Mepps", "colour": "silver", "notes": "size 3",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed := e.EncryptFields(ctx, tt.coll, tt.doc)

			assert.Equal(t, true, sealed[models.FieldEncrypted])
			scalars, _ := EncryptedFields(tt.coll)
			for _, field := range scalars {
				if _, ok := tt.doc[field]; !ok {
					continue
				}
				s, ok := sealed[field].(string)
				require.True(t, ok, "field %s must be a string after encryption", field)
				assert.True(t, strings.HasPrefix(s, CiphertextPrefix), "field %s", field)
			}

			opened := e.DecryptObject(ctx, tt.coll, sealed)
			assert.Equal(t, tt.doc, opened)
		})
	}
}

func TestEncryptFields_DoesNotMutateInput(t *testing.T) {
	e, _ := newReadyEngine(t, KDFSHA256)

	gear := []any{"spinner"}
	doc := models.Document{"species": "Perch", "gear": gear}

	_ = e.EncryptFields(testContext(), models.CollectionFishCaught, doc)

	assert.Equal(t, "Perch", doc["species"])
	assert.Equal(t, "spinner", gear[0])
	assert.NotContains(t, doc, models.FieldEncrypted)
}

func TestEncryptFields_PreservesPlaintextFields(t *testing.T) {
	e, _ := newReadyEngine(t, KDFSHA256)

	doc := models.Document{"id": float64(7), "date": "2024-03-01", "hours": float64(2), "userId": "u", "contentHash": "abc", "water": "Lake"}
	sealed := e.EncryptFields(testContext(), models.CollectionTrips, doc)

	for _, key := range []string{"id", "date", "hours", "userId", "contentHash"} {
		assert.Equal(t, doc[key], sealed[key], key)
	}
}

func TestEncryptFields_NeverDoubleEncrypts(t *testing.T) {
	e, _ := newReadyEngine(t, KDFSHA256)
	ctx := testContext()

	once := e.EncryptFields(ctx, models.CollectionFishCaught, models.Document{"species": "Pike", "gear": []string{"jig"}})
	twice := e.EncryptFields(ctx, models.CollectionFishCaught, once)

	assert.Equal(t, once["species"], twice["species"])
	assert.Equal(t, once["gear"], twice["gear"])
}

func TestEncryptFields_KeepsArrayContainerType(t *testing.T) {
	e, _ := newReadyEngine(t, KDFSHA256)
	ctx := testContext()

	sealed := e.EncryptFields(ctx, models.CollectionFishCaught, models.Document{"gear": []string{"jig", "spoon"}})
	values, ok := sealed["gear"].([]string)
	require.True(t, ok)
	require.Len(t, values, 2)
	assert.NotEqual(t, values[0], values[1], "each element gets its own IV")

	opened := e.DecryptObject(ctx, models.CollectionFishCaught, sealed)
	assert.Equal(t, []string{"jig", "spoon"}, opened["gear"])
}

func TestEncryptFields_FreshIVPerCall(t *testing.T) {
	e, _ := newReadyEngine(t, KDFSHA256)
	ctx := testContext()
	doc := models.Document{"water": "Lake X"}

	a := e.EncryptFields(ctx, models.CollectionTrips, doc)
	b := e.EncryptFields(ctx, models.CollectionTrips, doc)

	assert.NotEqual(t, a["water"], b["water"])
}

func TestEncryptFields_UnknownCollection(t *testing.T) {
	e, _ := newReadyEngine(t, KDFSHA256)
	doc := models.Document{"water": "Lake X"}

	assert.Equal(t, doc, e.EncryptFields(testContext(), models.Collection("gearBags"), doc))
}

// ── tolerant decryption ───────────────────────────────────────────────────────

func TestDecryptObject_MixedAndMalformedValues(t *testing.T) {
	e, _ := newReadyEngine(t, KDFSHA256)
	ctx := testContext()

	sealed := e.EncryptFields(ctx, models.CollectionTrips, models.Document{"water": "Lake X"})
	doc := models.Document{
		"water":      sealed["water"],
		"location":   "Bay",              // legacy plaintext
		"companions": "enc:v1:garbage",   // malformed framing
		"notes":      "enc:v1:AAAA:BBBB", // wrong iv length
		"_encrypted": true,
	}

	opened := e.DecryptObject(ctx, models.CollectionTrips, doc)

	assert.Equal(t, "Lake X", opened["water"])
	assert.Equal(t, "Bay", opened["location"])
	assert.Equal(t, "enc:v1:garbage", opened["companions"])
	assert.Equal(t, "enc:v1:AAAA:BBBB", opened["notes"])
	assert.NotContains(t, opened, models.FieldEncrypted)
}

// ── needs-encryption classification ───────────────────────────────────────────

func TestObjectNeedsEncryption(t *testing.T) {
	e, _ := newReadyEngine(t, KDFSHA256)

	tests := []struct {
		name string
		coll models.Collection
		doc  models.Document
		want bool
	}{
		{"plaintext field", models.CollectionTrips, models.Document{"water": "Lake Test"}, true},
		{"empty field", models.CollectionTrips, models.Document{"water": ""}, false},
		{"only plaintext-by-design fields", models.CollectionTrips, models.Document{"date": "2024-03-01", "hours": float64(2)}, false},
		{"already encrypted", models.CollectionTrips, models.Document{"water": "enc:v1:a:b"}, false},
		{"numeric sensitive field", models.CollectionFishCaught, models.Document{"length": float64(40)}, true},
		{"empty gear array", models.CollectionFishCaught, models.Document{"gear": []any{}}, false},
		{"plaintext gear element", models.CollectionFishCaught, models.Document{"gear": []any{"enc:v1:a:b", "jig"}}, true},
		{"encrypted gear", models.CollectionFishCaught, models.Document{"gear": []string{"enc:v1:a:b"}}, false},
		{"unknown collection", models.Collection("other"), models.Document{"water": "x"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.ObjectNeedsEncryption(tt.coll, tt.doc))
		})
	}
}

func TestObjectNeedsEncryption_FalseAfterEncrypt(t *testing.T) {
	e, _ := newReadyEngine(t, KDFSHA256)
	doc := models.Document{"water": "Lake Test"}

	require.True(t, e.ObjectNeedsEncryption(models.CollectionTrips, doc))

	sealed := e.EncryptFields(testContext(), models.CollectionTrips, doc)
	assert.False(t, e.ObjectNeedsEncryption(models.CollectionTrips, sealed))
}

// ── bytes ─────────────────────────────────────────────────────────────────────

func TestEncryptBytes_RoundTrip(t *testing.T) {
	e, _ := newReadyEngine(t, KDFPBKDF2)
	photo := bytes.Repeat([]byte{0xff, 0xd8}, 512)

	sealed, err := e.EncryptBytes(photo)
	require.NoError(t, err)
	assert.Len(t, sealed, len(photo)+12+16)

	opened, err := e.DecryptBytes(sealed)
	require.NoError(t, err)
	assert.Equal(t, photo, opened)
}

func TestDecryptBytes_Errors(t *testing.T) {
	e, _ := newReadyEngine(t, KDFSHA256)

	_, err := e.DecryptBytes([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrMalformedCiphertext)

	sealed, err := e.EncryptBytes([]byte("photo"))
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xff
	_, err = e.DecryptBytes(sealed)
	assert.Error(t, err)
}

func TestIsEncryptedValue(t *testing.T) {
	e, _ := NewEngine(newMapStore(), "p", "")
	assert.True(t, e.IsEncryptedValue("enc:v1:a:b"))
	assert.False(t, e.IsEncryptedValue("Lake"))
}
