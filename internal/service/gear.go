package service

import (
	"context"
	"slices"
	"strings"

	"github.com/MKhiriev/go-fish-log/internal/adapter"
	"github.com/MKhiriev/go-fish-log/internal/logger"
	"github.com/MKhiriev/go-fish-log/models"
)

// gearKey normalizes free-text gear: pipe-separated parts trimmed, lowercased.
func gearKey(gear string) string {
	parts := strings.Split(gear, "|")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return strings.ToLower(strings.Join(parts, "|"))
}

// resolveGear fills GearIDs from legacy free-text gear by matching the
// user's tackle items on their composite key, then on their name. Catches
// that already carry ids are left alone.
func (s *dataService) resolveGear(ctx context.Context, userID string, fish models.FishCaught) models.FishCaught {
	if len(fish.Gear) == 0 || len(fish.GearIDs) > 0 {
		return fish
	}

	q := adapter.Query{Collection: models.CollectionTackleItems, UserID: userID}
	items, err := queryRemote(ctx, s, q, func(*models.TackleItem, string) {})
	if err != nil {
		logger.FromContext(ctx).Warn().Err(err).Str("func", "dataService.resolveGear").Msg("tackle items unavailable")
		return fish
	}
	if len(items) == 0 {
		return fish
	}

	byKey := make(map[string]string, len(items))
	byName := make(map[string]string, len(items))
	for _, item := range items {
		if item.ID == "" {
			continue
		}
		if _, dup := byKey[item.CompositeKey()]; !dup {
			byKey[item.CompositeKey()] = item.ID
		}
		name := strings.ToLower(strings.TrimSpace(item.Name))
		if _, dup := byName[name]; !dup && name != "" {
			byName[name] = item.ID
		}
	}

	var ids []string
	for _, g := range fish.Gear {
		key := gearKey(g)
		id, ok := byKey[key]
		if !ok {
			id, ok = byName[key]
		}
		if ok && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	fish.GearIDs = ids
	return fish
}
