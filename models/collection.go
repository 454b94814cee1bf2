// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package models holds the data types shared by every layer of the fishing
// log: trip, weather and catch entities, their document form, sync queue
// entries and migration bookkeeping.
package models

// Collection names a logical collection in both the Local Store and the
// Remote Store.
type Collection string

const (
	CollectionTrips       Collection = "trips"
	CollectionWeatherLogs Collection = "weatherLogs"
	CollectionFishCaught  Collection = "fishCaught"
	CollectionTackleItems Collection = "tackleItems"
)

// SyncedCollections are the collections mirrored between the Local Store and
// the Remote Store, in parent-first order.
var SyncedCollections = []Collection{
	CollectionTrips,
	CollectionWeatherLogs,
	CollectionFishCaught,
}

// MigratedCollections are the collections walked by the encryption migration.
var MigratedCollections = []Collection{
	CollectionTrips,
	CollectionWeatherLogs,
	CollectionFishCaught,
	CollectionTackleItems,
}

// Valid reports whether c is one of the known collections.
func (c Collection) Valid() bool {
	switch c {
	case CollectionTrips, CollectionWeatherLogs, CollectionFishCaught, CollectionTackleItems:
		return true
	}
	return false
}

func (c Collection) String() string {
	return string(c)
}
