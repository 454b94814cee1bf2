package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Keys of values persisted in the local key/value table. Every per-user key
// carries the user id so nothing leaks between accounts. The id is escaped so
// it never contains the '_' separator: a prefix ending in "<user>_" matches
// that user's keys only.
const (
	MigrationAbortKey = "encMigrationAbort"

	saltKeyPrefix       = "enc_salt_"
	idMappingPrefix     = "idMapping_"
	syncQueuePrefix     = "syncQueue_"
	quarantinePrefix    = "syncQueue_quarantine_"
	migrationStatePref  = "encMigration_"
	migrationDonePrefix = "encMigrationComplete_"
	lastSyncPrefix      = "lastSync_"
)

var userSegmentEscaper = strings.NewReplacer("%", "%25", "_", "%5F")

// userSegment renders userID as a single key segment.
func userSegment(userID string) string {
	return userSegmentEscaper.Replace(userID)
}

func SaltKey(userID string) string {
	return saltKeyPrefix + userSegment(userID)
}

func IDMappingKey(userID string, collection Collection, localID string) string {
	return fmt.Sprintf("%s%s_%s_%s", idMappingPrefix, userSegment(userID), collection, localID)
}

// IDMappingPrefix is the key prefix of every mapping owned by userID.
func IDMappingPrefix(userID string) string {
	return idMappingPrefix + userSegment(userID) + "_"
}

func SyncQueueKey(userID string) string {
	return syncQueuePrefix + userSegment(userID)
}

func QuarantineKey(userID string, at time.Time) string {
	return fmt.Sprintf("%s%s_%d", quarantinePrefix, userSegment(userID), at.UnixMilli())
}

// QuarantinePrefix is the key prefix of every quarantine bucket owned by userID.
func QuarantinePrefix(userID string) string {
	return quarantinePrefix + userSegment(userID) + "_"
}

func MigrationStateKey(userID string, collection Collection) string {
	return fmt.Sprintf("%s%s_%s", migrationStatePref, userSegment(userID), collection)
}

func MigrationCompleteKey(userID string) string {
	return migrationDonePrefix + userSegment(userID)
}

func LastSyncKey(userID string) string {
	return lastSyncPrefix + userSegment(userID)
}

// LocalIDString renders a local id found in a document. Numeric ids decoded
// from JSON arrive as float64 and are printed without an exponent.
func LocalIDString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case int64:
		return strconv.FormatInt(id, 10)
	case int:
		return strconv.Itoa(id)
	case float64:
		if id == math.Trunc(id) {
			return strconv.FormatInt(int64(id), 10)
		}
		return strconv.FormatFloat(id, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(id)
	}
}

// TripIDFromDocument extracts a numeric trip id from a document field.
func TripIDFromDocument(doc Document, key string) (int64, bool) {
	switch v := doc[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		return id, err == nil
	}
	return 0, false
}
