// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

const (
	tableTrips       = "trips"
	tableWeatherLogs = "weather_logs"
	tableFishCaught  = "fish_caught"

	saveTrip = `
		INSERT INTO trips (id, date, data)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			date = excluded.date,
			data = excluded.data;`

	// %s is the child table name.
	saveChild = `
		INSERT INTO %s (id, trip_id, data)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			trip_id = excluded.trip_id,
			data    = excluded.data;`

	deleteChildrenOfTrip = `DELETE FROM %s WHERE trip_id = ?;`

	deleteOrphanChildren = `DELETE FROM %s WHERE trip_id NOT IN (SELECT id FROM trips);`

	saveKeyValue = `
		INSERT INTO kv_store (k, v)
		VALUES (?, ?)
		ON CONFLICT (k) DO UPDATE SET v = excluded.v;`

	getKeyValue = `SELECT v FROM kv_store WHERE k = ?;`

	deleteKeyValue = `DELETE FROM kv_store WHERE k = ?;`
)
