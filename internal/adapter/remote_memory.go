package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MKhiriev/go-fish-log/internal/utils"
	"github.com/MKhiriev/go-fish-log/models"
)

// MemoryRemoteStore is an in-process RemoteStore. Besides serving the
// "memory" DSN it lets callers switch availability off, fail writes and hide
// the ordering index to exercise every degraded path of the sync core.
type MemoryRemoteStore struct {
	mu   sync.RWMutex
	docs map[string]models.RemoteDocument // keyed by collection + "/" + id

	ids      *utils.UUIDGenerator
	now      func() time.Time
	lastTime time.Time
	helpLink string

	unavailable  bool
	failWrites   bool
	indexMissing bool

	writes  int
	queries int
}

// NewMemoryRemoteStore returns an empty, available store.
func NewMemoryRemoteStore(helpLink string) *MemoryRemoteStore {
	return &MemoryRemoteStore{
		docs:     make(map[string]models.RemoteDocument),
		ids:      utils.NewUUIDGenerator(),
		now:      time.Now,
		helpLink: helpLink,
	}
}

// SetAvailable toggles every call between success and ErrUnavailable.
func (m *MemoryRemoteStore) SetAvailable(available bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unavailable = !available
}

// SetFailWrites makes every write fail with ErrUnavailable while reads keep
// working.
func (m *MemoryRemoteStore) SetFailWrites(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrites = fail
}

// SetIndexMissing makes ordered queries fail with *IndexMissingError.
func (m *MemoryRemoteStore) SetIndexMissing(missing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indexMissing = missing
}

// Writes returns the number of write calls that reached the store
// (CommitBatch counts once).
func (m *MemoryRemoteStore) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

// Queries returns the number of Query calls served.
func (m *MemoryRemoteStore) Queries() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queries
}

// Seed stores doc verbatim, including a nil CreatedAt. It bypasses
// availability switches and counters.
func (m *MemoryRemoteStore) Seed(doc models.RemoteDocument) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc.Data = doc.Data.Clone()
	m.docs[docKey(doc.Collection, doc.ID)] = doc
}

// Documents returns every stored document of collection ordered by id.
func (m *MemoryRemoteStore) Documents(collection models.Collection) []models.RemoteDocument {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.RemoteDocument, 0)
	for _, doc := range m.docs {
		if doc.Collection == collection {
			out = append(out, copyDocument(doc))
		}
	}
	slices.SortFunc(out, func(a, b models.RemoteDocument) int { return strings.Compare(a.ID, b.ID) })
	return out
}

func (m *MemoryRemoteStore) Add(_ context.Context, collection models.Collection, data models.Document) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.writable(); err != nil {
		return "", err
	}
	if !collection.Valid() {
		return "", ErrInvalidDocument
	}

	id := m.ids.Generate()
	m.setLocked(collection, id, data)
	return id, nil
}

func (m *MemoryRemoteStore) Set(_ context.Context, collection models.Collection, id string, data models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.writable(); err != nil {
		return err
	}
	if id == "" || !collection.Valid() {
		return ErrInvalidDocument
	}

	m.setLocked(collection, id, data)
	return nil
}

func (m *MemoryRemoteStore) Update(_ context.Context, collection models.Collection, id string, data models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.writable(); err != nil {
		return err
	}
	return m.mergeLocked(collection, id, data)
}

func (m *MemoryRemoteStore) Get(_ context.Context, collection models.Collection, id string) (models.RemoteDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.unavailable {
		return models.RemoteDocument{}, ErrUnavailable
	}

	doc, ok := m.docs[docKey(collection, id)]
	if !ok {
		return models.RemoteDocument{}, ErrNotFound
	}
	return copyDocument(doc), nil
}

func (m *MemoryRemoteStore) Delete(_ context.Context, collection models.Collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.writable(); err != nil {
		return err
	}
	delete(m.docs, docKey(collection, id))
	return nil
}

func (m *MemoryRemoteStore) Query(_ context.Context, q Query) ([]models.RemoteDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unavailable {
		return nil, ErrUnavailable
	}
	if q.OrderByCreatedAt && m.indexMissing {
		return nil, &IndexMissingError{Collection: q.Collection, Index: CreatedAtIndex, Link: m.helpLink}
	}
	m.queries++

	out := make([]models.RemoteDocument, 0)
	for _, doc := range m.docs {
		if doc.Collection != q.Collection || doc.UserID != q.UserID {
			continue
		}
		if !matchesFilters(doc.Data, q.Filters) {
			continue
		}
		if q.OrderByCreatedAt && q.CreatedAfter != nil && !createdAfter(doc, *q.CreatedAfter, q.CreatedAfterID) {
			continue
		}
		out = append(out, copyDocument(doc))
	}

	slices.SortFunc(out, func(a, b models.RemoteDocument) int {
		if q.OrderByCreatedAt {
			if c := compareCreatedAt(a.CreatedAt, b.CreatedAt); c != 0 {
				return c
			}
		}
		return strings.Compare(a.ID, b.ID)
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// createdAfter reports whether doc sorts after the (at, id) cursor. An empty
// id compares by time only.
func createdAfter(doc models.RemoteDocument, at time.Time, id string) bool {
	switch {
	case doc.CreatedAt == nil:
		return false
	case doc.CreatedAt.After(at):
		return true
	case id != "" && doc.CreatedAt.Equal(at):
		return doc.ID > id
	}
	return false
}

func (m *MemoryRemoteStore) CommitBatch(_ context.Context, ops []BatchOp) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(ops) == 0 {
		return nil
	}
	if err := m.writable(); err != nil {
		return err
	}

	// validate first so a failing op leaves nothing applied
	for _, op := range ops {
		if op.ID == "" || !op.Collection.Valid() {
			return ErrInvalidDocument
		}
		if op.Kind == BatchUpdate {
			if _, ok := m.docs[docKey(op.Collection, op.ID)]; !ok {
				return ErrNotFound
			}
		}
	}

	for _, op := range ops {
		switch op.Kind {
		case BatchSet:
			m.setLocked(op.Collection, op.ID, op.Data)
		case BatchUpdate:
			_ = m.mergeLocked(op.Collection, op.ID, op.Data)
		case BatchDelete:
			delete(m.docs, docKey(op.Collection, op.ID))
		}
	}
	return nil
}

func (m *MemoryRemoteStore) writable() error {
	if m.unavailable || m.failWrites {
		return ErrUnavailable
	}
	m.writes++
	return nil
}

func (m *MemoryRemoteStore) setLocked(collection models.Collection, id string, data models.Document) {
	now := m.tick()
	key := docKey(collection, id)

	doc, exists := m.docs[key]
	if !exists {
		doc = models.RemoteDocument{ID: id, Collection: collection, CreatedAt: &now}
	}
	doc.UserID = data.String(models.FieldUserID)
	doc.Data = data.Clone()
	doc.UpdatedAt = &now
	m.docs[key] = doc
}

func (m *MemoryRemoteStore) mergeLocked(collection models.Collection, id string, data models.Document) error {
	key := docKey(collection, id)
	doc, ok := m.docs[key]
	if !ok {
		return ErrNotFound
	}

	now := m.tick()
	merged := doc.Data.Clone()
	if merged == nil {
		merged = models.Document{}
	}
	for k, v := range data.Clone() {
		merged[k] = v
	}
	doc.Data = merged
	doc.UserID = merged.String(models.FieldUserID)
	doc.UpdatedAt = &now
	m.docs[key] = doc
	return nil
}

// tick returns a strictly increasing timestamp so creation order is total.
func (m *MemoryRemoteStore) tick() time.Time {
	now := m.now().UTC()
	if !now.After(m.lastTime) {
		now = m.lastTime.Add(time.Microsecond)
	}
	m.lastTime = now
	return now
}

func docKey(collection models.Collection, id string) string {
	return collection.String() + "/" + id
}

func copyDocument(doc models.RemoteDocument) models.RemoteDocument {
	doc.Data = doc.Data.Clone()
	return doc
}

func compareCreatedAt(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}

// matchesFilters compares values by their JSON form, so 12 and 12.0 match
// while "12" and 12 do not.
func matchesFilters(data models.Document, filters []Filter) bool {
	for _, f := range filters {
		got, ok := data[f.Field]
		if !ok {
			return false
		}
		a, errA := json.Marshal(got)
		b, errB := json.Marshal(f.Value)
		if errA != nil || errB != nil || !bytes.Equal(a, b) {
			return false
		}
	}
	return true
}
