package models

import "strings"

// PhotoEncryption describes how an encrypted photo blob was produced.
type PhotoEncryption struct {
	Version string `json:"version"`
	Mime    string `json:"mime"`
}

// FishCaught is a single catch attached to a trip. ID has the form
// "<tripId>-<suffix>".
//
// A photo is held in exactly one of two forms: inline (Photo holds a data
// URI) or stored (PhotoPath, PhotoHash and PhotoMime point at a blob).
type FishCaught struct {
	ID          string           `json:"id"`
	TripID      int64            `json:"tripId"`
	Species     string           `json:"species"`
	Length      string           `json:"length"`
	Weight      string           `json:"weight"`
	Time        string           `json:"time"`
	Details     string           `json:"details"`
	Gear        []string         `json:"gear"`
	GearIDs     []string         `json:"gearIds,omitempty"`
	Photo       string           `json:"photo,omitempty"`
	PhotoPath   string           `json:"photoPath,omitempty"`
	PhotoHash   string           `json:"photoHash,omitempty"`
	PhotoMime   string           `json:"photoMime,omitempty"`
	PhotoURL    string           `json:"photoUrl,omitempty"`
	PhotoEnc    *PhotoEncryption `json:"photoEnc,omitempty"`
	RemoteDocID string           `json:"remoteDocId,omitempty"`
	ContentHash string           `json:"contentHash,omitempty"`
}

// LocalID returns the catch id.
func (f FishCaught) LocalID() string {
	return f.ID
}

// ParentID returns the id of the trip the catch belongs to.
func (f FishCaught) ParentID() int64 {
	return f.TripID
}

// HasInlinePhoto reports whether the photo is still an inline data URI.
func (f FishCaught) HasInlinePhoto() bool {
	return strings.HasPrefix(f.Photo, "data:")
}

// HasStoredPhoto reports whether the photo lives in blob storage.
func (f FishCaught) HasStoredPhoto() bool {
	return f.PhotoPath != ""
}

// TackleItem is an entry of the user's tackle catalogue. Fish records refer
// to it by ID through GearIDs.
type TackleItem struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Brand  string `json:"brand"`
	Name   string `json:"name"`
	Colour string `json:"colour"`
	Notes  string `json:"notes,omitempty"`
}

// CompositeKey returns the lowercase "type|brand|name|colour" key used to
// match legacy free-text gear.
func (t TackleItem) CompositeKey() string {
	return strings.ToLower(strings.Join([]string{
		strings.TrimSpace(t.Type),
		strings.TrimSpace(t.Brand),
		strings.TrimSpace(t.Name),
		strings.TrimSpace(t.Colour),
	}, "|"))
}
