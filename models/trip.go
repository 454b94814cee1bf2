package models

import "strconv"

// Trip is a single fishing trip. ID is a millisecond-timestamp based local id
// assigned before any remote document exists.
type Trip struct {
	ID          int64   `json:"id"`
	Date        string  `json:"date"`
	Water       string  `json:"water"`
	Location    string  `json:"location"`
	Hours       float64 `json:"hours"`
	Companions  string  `json:"companions"`
	Notes       string  `json:"notes"`
	RemoteDocID string  `json:"remoteDocId,omitempty"`
	ContentHash string  `json:"contentHash,omitempty"`
}

// LocalID returns the trip id in the textual form used by id-mapping keys.
func (t Trip) LocalID() string {
	return strconv.FormatInt(t.ID, 10)
}

// WeatherLog is a weather observation attached to a trip. ID has the form
// "<tripId>-<suffix>".
type WeatherLog struct {
	ID            string `json:"id"`
	TripID        int64  `json:"tripId"`
	TimeOfDay     string `json:"timeOfDay"`
	Sky           string `json:"sky"`
	WindCondition string `json:"windCondition"`
	WindDirection string `json:"windDirection"`
	WaterTemp     string `json:"waterTemp"`
	AirTemp       string `json:"airTemp"`
	RemoteDocID   string `json:"remoteDocId,omitempty"`
	ContentHash   string `json:"contentHash,omitempty"`
}

// LocalID returns the weather log id.
func (w WeatherLog) LocalID() string {
	return w.ID
}

// ParentID returns the id of the trip the log belongs to.
func (w WeatherLog) ParentID() int64 {
	return w.TripID
}

// TripChild is implemented by records that belong to a trip.
type TripChild interface {
	WeatherLog | FishCaught
	LocalID() string
	ParentID() int64
}
