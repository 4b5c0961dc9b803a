// Package savegame is the versioned persistence contract for session state.
// A save is two records: a small metadata record carrying the schema version,
// and the game data document itself.
package savegame

import (
	"time"

	"github.com/MRamiBalles/ResourceRush/server/internal/domain/player"
)

const keyPrefix = "ResourceRush"

// MetaKey addresses the metadata record of a user.
func MetaKey(userID string) string { return keyPrefix + ":MetaData:" + userID }

// DataKey addresses the game data document of a user.
func DataKey(userID string) string { return keyPrefix + ":GameData:" + userID }

// Metadata decides between trusting and merging the document on load.
type Metadata struct {
	Version int       `json:"version" jsonschema:"minimum=1"`
	SavedAt time.Time `json:"savedAt"`
}

// Document is the persisted form of player.State. Every field is optional
// so a document written by another schema version still decodes; Merge
// decides which fields survive.
type Document struct {
	Balance            *float64                    `json:"balance,omitempty" jsonschema:"minimum=0"`
	TotalManualActions *int64                      `json:"totalManualActions,omitempty" jsonschema:"minimum=0"`
	Depth              *int64                      `json:"depth,omitempty" jsonschema:"minimum=0"`
	LastPersistedAt    *time.Time                  `json:"lastPersistedAt,omitempty"`
	Generators         []player.GeneratorOwnership `json:"generators,omitempty"`
	Quests             []player.QuestProgress      `json:"quests,omitempty"`
	Prestige           *player.PrestigeState       `json:"prestige,omitempty"`
	Daily              *player.DailyLogin          `json:"daily,omitempty"`
}

// FromState captures a state for persistence.
func FromState(st player.State) Document {
	c := st.Clone()
	return Document{
		Balance:            &c.Balance,
		TotalManualActions: &c.TotalManualActions,
		Depth:              &c.Depth,
		LastPersistedAt:    &c.LastPersistedAt,
		Generators:         c.Generators,
		Quests:             c.Quests,
		Prestige:           &c.Prestige,
		Daily:              &c.Daily,
	}
}
