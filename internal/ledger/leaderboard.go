package ledger

import (
	"context"
	"errors"
	"sort"

	"github.com/timbro-mach/stock-simulator-backend/internal/model"
	"github.com/timbro-mach/stock-simulator-backend/internal/store"
)

// Rank returns the individual leaderboard for a competition: every
// member valued at cash plus mark-to-market holdings, sorted descending
// by total value. The sort is stable, so ties keep membership creation
// order.
func (s *Service) Rank(ctx context.Context, competitionCode string) ([]model.LeaderboardEntry, error) {
	comp, err := s.store.GetCompetitionByCode(ctx, competitionCode)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCompetitionNotFound
		}
		return nil, err
	}

	members, err := s.store.ListCompetitionMembers(ctx, comp.ID)
	if err != nil {
		return nil, err
	}

	entries := make([]model.LeaderboardEntry, 0, len(members))
	for _, m := range members {
		v, err := s.Value(ctx, m.AccountID)
		if err != nil {
			return nil, err
		}
		name := m.UserID
		if u, err := s.store.GetUserByID(ctx, m.UserID); err == nil {
			name = u.Username
		}
		entries = append(entries, model.LeaderboardEntry{
			DisplayName: name,
			TotalValue:  v.Total,
		})
	}

	sortByValueDesc(entries)
	return entries, nil
}

// RankTeams returns the team leaderboard for a competition, computed by
// the same valuation over the competition-team accounts.
func (s *Service) RankTeams(ctx context.Context, competitionCode string) ([]model.LeaderboardEntry, error) {
	comp, err := s.store.GetCompetitionByCode(ctx, competitionCode)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCompetitionNotFound
		}
		return nil, err
	}

	teams, err := s.store.ListCompetitionTeams(ctx, comp.ID)
	if err != nil {
		return nil, err
	}

	entries := make([]model.LeaderboardEntry, 0, len(teams))
	for _, ct := range teams {
		v, err := s.Value(ctx, ct.AccountID)
		if err != nil {
			return nil, err
		}
		name := ct.TeamID
		if t, err := s.store.GetTeam(ctx, ct.TeamID); err == nil {
			name = t.Name
		}
		entries = append(entries, model.LeaderboardEntry{
			DisplayName: name,
			TotalValue:  v.Total,
		})
	}

	sortByValueDesc(entries)
	return entries, nil
}

func sortByValueDesc(entries []model.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TotalValue.GreaterThan(entries[j].TotalValue)
	})
}
