// Package events defines what the engine tells the outside world: typed
// notifications for the connected display, and the economy ledger.
package events

import "sync"

// Kind identifies an outbound notification.
type Kind string

const (
	KindStateSnapshot     Kind = "STATE_SNAPSHOT"
	KindBalanceUpdate     Kind = "BALANCE_UPDATE"
	KindQuestCompleted    Kind = "QUEST_COMPLETED"
	KindMilestoneReached  Kind = "MILESTONE_REACHED"
	KindOfflineEarnings   Kind = "OFFLINE_EARNINGS"
	KindDailyRewardState  Kind = "DAILY_REWARD_STATE"
	KindPrestigeCompleted Kind = "PRESTIGE_COMPLETED"
)

// Notification is one message for one user's display.
type Notification struct {
	Kind    Kind        `json:"type"`
	Payload interface{} `json:"payload"`
}

// Notifier delivers notifications. Notify must not block the caller.
type Notifier interface {
	Notify(userID string, n Notification)
}

// GeneratorView is one ownership line of a snapshot.
type GeneratorView struct {
	GeneratorID    int      `json:"generatorId"`
	Name           string   `json:"name"`
	Owned          int      `json:"owned"`
	CurrentCost    float64  `json:"currentCost"`
	Rate           float64  `json:"rate"`
	NextMilestone  *int     `json:"nextMilestone,omitempty"`
	NextMultiplier *float64 `json:"nextMultiplier,omitempty"`
}

// QuestView is the quest currently shown to the user.
type QuestView struct {
	QuestID     int     `json:"questId"`
	Description string  `json:"description"`
	Reward      float64 `json:"reward"`
}

// ClickMilestoneView is the next click-yield step.
type ClickMilestoneView struct {
	Clicks int64   `json:"clicks"`
	Yield  float64 `json:"yield"`
}

// PrestigeView is the prestige block of a snapshot.
type PrestigeView struct {
	BonusCurrency  float64 `json:"bonusCurrency"`
	PeakProduction float64 `json:"peakProduction"`
	Count          int     `json:"count"`
	Multiplier     float64 `json:"multiplier"`
	CanPrestige    bool    `json:"canPrestige"`
	NextReward     float64 `json:"nextReward"`
	NextCost       float64 `json:"nextCost"`
}

// StateSnapshot is the full UI state.
type StateSnapshot struct {
	Balance            float64             `json:"balance"`
	Generators         []GeneratorView     `json:"generators"`
	CurrentQuest       *QuestView          `json:"currentQuest,omitempty"`
	ClickYield         float64             `json:"clickYield"`
	NextClickMilestone *ClickMilestoneView `json:"nextClickMilestone,omitempty"`
	TotalProduction    float64             `json:"totalProduction"`
	Depth              int64               `json:"depth"`
	Prestige           PrestigeView        `json:"prestige"`
	TotalManualActions int64               `json:"totalManualActions"`
}

type BalanceUpdate struct {
	Balance         float64 `json:"balance"`
	TotalProduction float64 `json:"totalProduction"`
}

type QuestCompleted struct {
	QuestID int     `json:"questId"`
	Reward  float64 `json:"reward"`
}

type MilestoneReached struct {
	GeneratorID int     `json:"generatorId"`
	Owned       int     `json:"owned"`
	Multiplier  float64 `json:"multiplier"`
}

type OfflineEarnings struct {
	Amount         float64 `json:"amount"`
	ElapsedSeconds int64   `json:"elapsedSeconds"`
}

type DailyRewardState struct {
	CanClaim        bool    `json:"canClaim"`
	ConsecutiveDays int     `json:"consecutiveDays"`
	NextReward      float64 `json:"nextReward"`
}

type PrestigeCompleted struct {
	Count         int     `json:"count"`
	Cost          float64 `json:"cost"`
	Reward        float64 `json:"reward"`
	BonusCurrency float64 `json:"bonusCurrency"`
}

func Snapshot(s StateSnapshot) Notification {
	return Notification{Kind: KindStateSnapshot, Payload: s}
}

func Balance(b BalanceUpdate) Notification {
	return Notification{Kind: KindBalanceUpdate, Payload: b}
}

func Quest(q QuestCompleted) Notification {
	return Notification{Kind: KindQuestCompleted, Payload: q}
}

func Milestone(m MilestoneReached) Notification {
	return Notification{Kind: KindMilestoneReached, Payload: m}
}

func Offline(o OfflineEarnings) Notification {
	return Notification{Kind: KindOfflineEarnings, Payload: o}
}

func Daily(d DailyRewardState) Notification {
	return Notification{Kind: KindDailyRewardState, Payload: d}
}

func Prestige(p PrestigeCompleted) Notification {
	return Notification{Kind: KindPrestigeCompleted, Payload: p}
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Notify(string, Notification) {}

// Recorder keeps every notification in memory. Useful in tests.
type Recorder struct {
	mu   sync.Mutex
	sent map[string][]Notification
}

func NewRecorder() *Recorder {
	return &Recorder{sent: make(map[string][]Notification)}
}

func (r *Recorder) Notify(userID string, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent[userID] = append(r.sent[userID], n)
}

// For returns the notifications sent to a user, oldest first.
func (r *Recorder) For(userID string) []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.sent[userID]...)
}

// OfKind filters For by kind.
func (r *Recorder) OfKind(userID string, kind Kind) []Notification {
	var out []Notification
	for _, n := range r.For(userID) {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// Last returns the most recent notification of a kind.
func (r *Recorder) Last(userID string, kind Kind) (Notification, bool) {
	all := r.OfKind(userID, kind)
	if len(all) == 0 {
		return Notification{}, false
	}
	return all[len(all)-1], true
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = make(map[string][]Notification)
}
