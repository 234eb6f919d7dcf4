package model

// Stats summarizes a participant's given and received interactions.
// Rates are percentages in [0, 100].
type Stats struct {
	GivenCount        int     `json:"given_count"`
	ReceivedCount     int     `json:"received_count"`
	MatchesGiven      int     `json:"matches_given"`
	MatchesReceived   int     `json:"matches_received"`
	AvgValueGiven     float64 `json:"avg_value_given"`
	AvgValueReceived  float64 `json:"avg_value_received"`
	MatchRateGiven    float64 `json:"match_rate_given"`
	MatchRateReceived float64 `json:"match_rate_received"`
}

// Summary aggregates scores across all participants.
type Summary struct {
	TotalParticipants int     `json:"total_participants"`
	HighestScore      float64 `json:"highest_score"`
	LowestScore       float64 `json:"lowest_score"`
	AverageScore      float64 `json:"average_score"`
}

// RankedParticipant is a leaderboard row.
type RankedParticipant struct {
	Rank int    `json:"rank"`
	Tier string `json:"tier"`
	Participant
}
