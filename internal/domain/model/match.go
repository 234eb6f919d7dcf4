package model

import "time"

// Match records a mutual positive interaction between two participants.
// LoID < HiID always holds.
type Match struct {
	ID        string    `json:"id"`
	LoID      string    `json:"lo_id"`
	HiID      string    `json:"hi_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Other returns the counterpart of id in the match, or "" if id is not part of it.
func (m Match) Other(id string) string {
	switch id {
	case m.LoID:
		return m.HiID
	case m.HiID:
		return m.LoID
	default:
		return ""
	}
}

// CanonicalPair orders two identifiers so an unordered pair maps to one key.
func CanonicalPair(a, b string) (lo, hi string) {
	if a > b {
		return b, a
	}
	return a, b
}
