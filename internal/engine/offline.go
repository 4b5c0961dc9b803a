package engine

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/MRamiBalles/ResourceRush/server/internal/domain/player"
	"github.com/MRamiBalles/ResourceRush/server/internal/domain/rules"
	"github.com/MRamiBalles/ResourceRush/server/internal/events"
)

// reconcileOffline credits production for the time since the last save,
// at the current rate, and moves the save timestamp to now. A state that
// was never saved earns nothing.
func (e *Engine) reconcileOffline(st *player.State, o *op) {
	last := st.LastPersistedAt
	st.LastPersistedAt = o.now
	if last.IsZero() {
		return
	}

	elapsed := o.now.Sub(last)
	if elapsed < e.window.Min {
		// clock skew or a quick reconnect
		return
	}
	rate := rules.TotalProductionRate(e.reg, st, e.params)
	earned, seconds := rules.OfflineEarnings(rate, elapsed, e.window)
	if earned <= 0 {
		return
	}

	st.Balance += earned
	o.persist = true
	e.record(o.now, events.EntryOfflineGrant, st.UserID, earned, fmt.Sprintf("%ds offline", seconds))
	e.logger.Info("Offline catch-up for %s: %s over %s (away %s)",
		st.UserID, humanize.Commaf(earned), time.Duration(seconds)*time.Second, elapsed.Round(time.Second))
	o.notify(events.Offline(events.OfflineEarnings{Amount: earned, ElapsedSeconds: seconds}))
}
