// Package storage - reconstructor.go
// Ledger recap: rebuilds per-user economy totals from the ledger.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// Ledger entry types as stored in the entry_type column.
const (
	EntryPurchase      = "PURCHASE"
	EntryPrestige      = "PRESTIGE"
	EntryQuestReward   = "QUEST_REWARD"
	EntryOfflineGrant  = "OFFLINE_GRANT"
	EntryDailyReward   = "DAILY_REWARD"
	EntryConsistencyFx = "CONSISTENCY_REPAIR"
)

// Reconstructor rebuilds economy totals from the ledger.
// This is used for:
// 1. The recap endpoint - what happened to a user's economy
// 2. Auditing saves against the ledger after a consistency repair
type Reconstructor struct {
	ledger LedgerRepository
}

func NewReconstructor(ledger LedgerRepository) *Reconstructor {
	return &Reconstructor{ledger: ledger}
}

// LedgerTotals aggregates a user's ledger.
type LedgerTotals struct {
	UserID         string  `json:"user_id"`
	Spent          float64 `json:"spent"`
	Purchases      int     `json:"purchases"`
	Prestiges      int     `json:"prestiges"`
	QuestRewards   float64 `json:"quest_rewards"`
	OfflineGranted float64 `json:"offline_granted"`
	DailyGranted   float64 `json:"daily_granted"`
	Repairs        int     `json:"repairs"`
}

// RecapEntry is a simplified ledger line for display.
type RecapEntry struct {
	Timestamp string `json:"timestamp"`
	EntryType string `json:"entry_type"`
	Summary   string `json:"summary"`
	Impact    string `json:"impact"` // "GAIN", "SPEND", "NEUTRAL"
}

// Totals reduces every ledger entry of a user.
func (r *Reconstructor) Totals(ctx context.Context, userID string) (*LedgerTotals, error) {
	recs, err := r.ledger.GetByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger for user: %w", err)
	}

	t := &LedgerTotals{UserID: userID}
	for _, rec := range recs {
		switch rec.EntryType {
		case EntryPurchase:
			t.Spent += rec.Amount
			t.Purchases++
		case EntryPrestige:
			t.Prestiges++
		case EntryQuestReward:
			t.QuestRewards += rec.Amount
		case EntryOfflineGrant:
			t.OfflineGranted += rec.Amount
		case EntryDailyReward:
			t.DailyGranted += rec.Amount
		case EntryConsistencyFx:
			t.Repairs++
		}
	}
	return t, nil
}

// GenerateRecap lists a user's ledger entries since a point in time.
func (r *Reconstructor) GenerateRecap(ctx context.Context, userID string, since time.Time) ([]RecapEntry, error) {
	recs, err := r.ledger.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var recap []RecapEntry
	for _, rec := range recs {
		if rec.Timestamp.Before(since) {
			continue
		}
		recap = append(recap, RecapEntry{
			Timestamp: rec.Timestamp.UTC().Format(time.RFC3339),
			EntryType: rec.EntryType,
			Summary:   summarize(rec),
			Impact:    impact(rec),
		})
	}
	return recap, nil
}

func summarize(rec LedgerRecord) string {
	switch rec.EntryType {
	case EntryPurchase:
		return fmt.Sprintf("Spent %s crystals (%s)", humanize.Commaf(rec.Amount), rec.Details)
	case EntryPrestige:
		return fmt.Sprintf("Rebirth: %s", rec.Details)
	case EntryQuestReward:
		return fmt.Sprintf("Quest reward of %s dark matter (%s)", humanize.Commaf(rec.Amount), rec.Details)
	case EntryOfflineGrant:
		return fmt.Sprintf("Earned %s crystals while away", humanize.Commaf(rec.Amount))
	case EntryDailyReward:
		return fmt.Sprintf("Daily reward of %s crystals", humanize.Commaf(rec.Amount))
	case EntryConsistencyFx:
		return "Save repaired on load: " + rec.Details
	default:
		return rec.Details
	}
}

func impact(rec LedgerRecord) string {
	switch rec.EntryType {
	case EntryPurchase:
		return "SPEND"
	case EntryQuestReward, EntryOfflineGrant, EntryDailyReward:
		return "GAIN"
	default:
		return "NEUTRAL"
	}
}
