package service

import (
	"context"
	"fmt"

	"github.com/MKhiriev/go-fish-log/internal/store"
	"github.com/MKhiriev/go-fish-log/models"
)

type idMapper struct {
	kv store.KeyValueRepository
}

// NewIDMapper stores mappings in the local key/value table under
// "idMapping_<userId>_<collection>_<localId>", with the user id escaped.
func NewIDMapper(kv store.KeyValueRepository) IDMapper {
	return &idMapper{kv: kv}
}

func (m *idMapper) Get(ctx context.Context, userID string, collection models.Collection, localID string) (string, bool, error) {
	if userID == "" || localID == "" {
		return "", false, nil
	}
	remoteID, found, err := m.kv.Get(ctx, models.IDMappingKey(userID, collection, localID))
	if err != nil {
		return "", false, fmt.Errorf("read id mapping: %w", err)
	}
	return remoteID, found && remoteID != "", nil
}

func (m *idMapper) Set(ctx context.Context, userID string, collection models.Collection, localID, remoteID string) error {
	if userID == "" || localID == "" || remoteID == "" {
		return nil
	}
	if err := m.kv.Set(ctx, models.IDMappingKey(userID, collection, localID), remoteID); err != nil {
		return fmt.Errorf("write id mapping: %w", err)
	}
	return nil
}

func (m *idMapper) Delete(ctx context.Context, userID string, collection models.Collection, localID string) error {
	if userID == "" || localID == "" {
		return nil
	}
	return m.kv.Delete(ctx, models.IDMappingKey(userID, collection, localID))
}

func (m *idMapper) DeleteAll(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, nil
	}
	return m.kv.DeleteByPrefix(ctx, models.IDMappingPrefix(userID))
}
