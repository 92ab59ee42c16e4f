package models

import "time"

// Failure is one row of the retry queue. The signature is the canonical
// serialization of method plus arguments and doubles as the dedup key:
// repeated failures of the same logical operation bump Tries instead of
// inserting another row.
type Failure struct {
	Signature string
	Method    string
	Args      []string
	Tries     int
	Timestamp time.Time
}
