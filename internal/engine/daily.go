package engine

import (
	"fmt"
	"time"

	"github.com/MRamiBalles/ResourceRush/server/internal/domain/player"
	"github.com/MRamiBalles/ResourceRush/server/internal/events"
)

// dailyStreakCycle is the longest streak; the day after it starts over at 1.
const dailyStreakCycle = 7

// day truncates t to its UTC calendar day.
func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func canClaimDaily(d player.DailyLogin, now time.Time) bool {
	return d.LastClaimAt.IsZero() || !day(d.LastClaimAt).Equal(day(now))
}

// nextStreak is the streak a claim at now would reach.
func nextStreak(d player.DailyLogin, now time.Time) int {
	if d.LastClaimAt.IsZero() || !day(d.LastClaimAt).AddDate(0, 0, 1).Equal(day(now)) {
		return 1
	}
	if d.ConsecutiveDays >= dailyStreakCycle {
		return 1
	}
	return d.ConsecutiveDays + 1
}

func (e *Engine) dailyState(st *player.State, now time.Time) events.DailyRewardState {
	return events.DailyRewardState{
		CanClaim:        canClaimDaily(st.Daily, now),
		ConsecutiveDays: st.Daily.ConsecutiveDays,
		NextReward:      e.cfg.DailyRewardBase * float64(nextStreak(st.Daily, now)),
	}
}

// ClaimDaily grants the daily login reward, once per UTC calendar day.
func (e *Engine) ClaimDaily(userID string) error {
	return e.mutate(userID, func(st *player.State, o *op) error {
		if !canClaimDaily(st.Daily, o.now) {
			return rejected("daily reward already claimed by %s", userID)
		}

		streak := nextStreak(st.Daily, o.now)
		reward := e.cfg.DailyRewardBase * float64(streak)
		st.Balance += reward
		st.Daily = player.DailyLogin{LastClaimAt: o.now, ConsecutiveDays: streak}

		e.record(o.now, events.EntryDailyReward, userID, reward, fmt.Sprintf("day %d", streak))
		e.logger.Event("DAILY_REWARD", userID, fmt.Sprintf("day %d reward %.0f", streak, reward))

		e.evaluateQuests(st, o)
		o.persist = true
		o.notify(events.Daily(e.dailyState(st, o.now)))
		o.notify(events.Snapshot(e.buildSnapshot(st)))
		return nil
	})
}
