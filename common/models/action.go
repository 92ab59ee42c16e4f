package models

import "encoding/json"

// ActionAddRelease is the only action type currently written to the log.
const ActionAddRelease = "addRelease"

// Action is one entry of the append-only action log. Entries are immutable
// and totally ordered by ID; consumers resume from their own persisted
// cursor.
type Action struct {
	ID     int64
	Action string
	Data   json.RawMessage
}

// ReleaseData is the payload of an addRelease action
type ReleaseData struct {
	Repo     string         `json:"repo"`
	Tag      string         `json:"tag"`
	File     string         `json:"file"`
	Manifest map[string]any `json:"manifest"`
}
