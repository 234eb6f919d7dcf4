package loadgen

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/elove/pkg/logger"
)

// Score bounds every participant must stay within.
const (
	minScore = 100
	maxScore = 3000
)

// verify checks the service state left by a run and returns every violation.
func verify(ctx context.Context, cfg Config, client *Client, ids []string, mutual map[[2]string]struct{}, stats *Stats) error {
	log := logger.Get().Named("verify")
	var problems []error

	ps, err := client.Participants(ctx)
	if err != nil {
		return fmt.Errorf("list participants: %w", err)
	}
	problems = append(problems, checkScores(ps)...)

	board, err := client.Leaderboard(ctx, cfg.TopN)
	if err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}
	problems = append(problems, checkLeaderboard(board)...)

	sum, err := client.Summary(ctx)
	if err != nil {
		return fmt.Errorf("summary: %w", err)
	}
	if sum.TotalParticipants < len(ids) {
		problems = append(problems, fmt.Errorf("summary counts %d participants, created %d", sum.TotalParticipants, len(ids)))
	}

	found, matchProblems, err := checkMatches(ctx, client, ids, mutual)
	if err != nil {
		return err
	}
	problems = append(problems, matchProblems...)
	stats.MatchesExpected = len(mutual)
	stats.MatchesFound = found

	if stats.ReplaysAccepted > 0 {
		problems = append(problems, fmt.Errorf("%d replayed ratings were accepted", stats.ReplaysAccepted))
	}

	if len(problems) == 0 {
		log.Info(ctx, "state verified",
			logger.Int("participants", len(ps)),
			logger.Int("leaderboard", len(board)),
			logger.Int("matches", found),
		)
		return nil
	}
	for _, p := range problems {
		log.Warn(ctx, "verification problem", logger.Error(p))
	}
	return errors.Join(problems...)
}

func checkScores(ps []Participant) []error {
	var out []error
	for _, p := range ps {
		if p.Score < minScore || p.Score > maxScore {
			out = append(out, fmt.Errorf("participant %s score %.2f out of bounds", p.ID, p.Score))
		}
	}
	return out
}

// checkLeaderboard asserts non-increasing scores with dense ranks.
func checkLeaderboard(rows []RankedParticipant) []error {
	var out []error
	for i, r := range rows {
		if i == 0 {
			if r.Rank != 1 {
				out = append(out, fmt.Errorf("leaderboard starts at rank %d", r.Rank))
			}
			continue
		}
		prev := rows[i-1]
		switch {
		case r.Score > prev.Score:
			out = append(out, fmt.Errorf("leaderboard not sorted at %d", i))
		case r.Score == prev.Score && r.Rank != prev.Rank:
			out = append(out, fmt.Errorf("tied scores at %d have ranks %d and %d", i, prev.Rank, r.Rank))
		case r.Score < prev.Score && r.Rank != prev.Rank+1:
			out = append(out, fmt.Errorf("rank gap at %d: %d after %d", i, r.Rank, prev.Rank))
		}
	}
	return out
}

// checkMatches asserts each mutual pair has exactly one match visible from
// both sides and that no other pair among ids was matched.
func checkMatches(ctx context.Context, client *Client, ids []string, mutual map[[2]string]struct{}) (int, []error, error) {
	var out []error
	ours := make(map[string]bool, len(ids))
	for _, id := range ids {
		ours[id] = true
	}

	seen := make(map[[2]string]map[string]int)
	for _, id := range ids {
		ms, err := client.Matches(ctx, id)
		if err != nil {
			return 0, nil, fmt.Errorf("matches for %s: %w", id, err)
		}
		for _, m := range ms {
			if !ours[m.PartnerID] {
				continue
			}
			pair := [2]string{id, m.PartnerID}
			if pair[0] > pair[1] {
				pair[0], pair[1] = pair[1], pair[0]
			}
			if seen[pair] == nil {
				seen[pair] = make(map[string]int)
			}
			seen[pair][m.ID]++
		}
	}

	for pair, byID := range seen {
		if _, ok := mutual[pair]; !ok {
			out = append(out, fmt.Errorf("unexpected match between %s and %s", pair[0], pair[1]))
			continue
		}
		if len(byID) != 1 {
			out = append(out, fmt.Errorf("pair %s/%s has %d matches", pair[0], pair[1], len(byID)))
		}
		for id, n := range byID {
			if n != 2 {
				out = append(out, fmt.Errorf("match %s visible from %d sides", id, n))
			}
		}
	}
	for pair := range mutual {
		if _, ok := seen[pair]; !ok {
			out = append(out, fmt.Errorf("missing match between %s and %s", pair[0], pair[1]))
		}
	}
	return len(seen), out, nil
}
