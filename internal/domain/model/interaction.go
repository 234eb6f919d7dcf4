package model

import "time"

// Rating value bounds.
const (
	MinValue = 1
	MaxValue = 10
)

// Interaction is one directed evaluation event. Interactions are append-only.
type Interaction struct {
	ID         string    `json:"id"`
	FromID     string    `json:"from_id"`
	ToID       string    `json:"to_id"`
	Value      int       `json:"value"`
	IsPositive bool      `json:"is_positive"`
	CreatedAt  time.Time `json:"created_at"`
}

// Direction tags an interaction relative to the participant whose history is read.
type Direction string

const (
	Given    Direction = "given"
	Received Direction = "received"
)

// HistoryEntry is an interaction seen from one participant's side.
type HistoryEntry struct {
	Interaction
	Direction Direction `json:"direction"`
}
