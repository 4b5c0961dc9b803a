package savegame

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MRamiBalles/ResourceRush/server/internal/domain/player"
	"github.com/MRamiBalles/ResourceRush/server/internal/infra/storage"
	"github.com/MRamiBalles/ResourceRush/server/internal/platform/clock"
)

// ErrCorruptSave means the stored document could not be decoded.
// Callers recover by starting from defaults.
var ErrCorruptSave = errors.New("savegame: corrupt save")

// Repository reads and writes saves through a storage.KV.
type Repository struct {
	kv      storage.KV
	codec   storage.Codec
	version int
	clock   clock.Clock
}

func NewRepository(kv storage.KV, version int, clk clock.Clock) *Repository {
	return &Repository{kv: kv, version: version, clock: clk}
}

// Version is the schema version written with every save.
func (r *Repository) Version() int { return r.version }

// Load returns the stored document and metadata. found is false when the
// user has never been saved. A document that cannot be decoded yields
// ErrCorruptSave; store failures are returned wrapped.
func (r *Repository) Load(ctx context.Context, userID string) (Document, Metadata, bool, error) {
	var meta Metadata
	rawMeta, err := r.kv.Get(ctx, MetaKey(userID))
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return Document{}, Metadata{}, false, fmt.Errorf("load metadata: %w", err)
	default:
		// An unreadable metadata record reads as version 0, forcing a merge.
		if json.Unmarshal(rawMeta, &meta) != nil {
			meta = Metadata{}
		}
	}

	raw, err := r.kv.Get(ctx, DataKey(userID))
	if errors.Is(err, storage.ErrNotFound) {
		return Document{}, meta, false, nil
	}
	if err != nil {
		return Document{}, meta, false, fmt.Errorf("load game data: %w", err)
	}

	plain, err := r.codec.Decode(raw)
	if err != nil {
		return Document{}, meta, true, fmt.Errorf("%w: %v", ErrCorruptSave, err)
	}
	var doc Document
	if err := json.Unmarshal(plain, &doc); err != nil {
		return Document{}, meta, true, fmt.Errorf("%w: %v", ErrCorruptSave, err)
	}
	return doc, meta, true, nil
}

// Save writes the document first and the metadata second, so metadata
// never vouches for a document that was not written.
func (r *Repository) Save(ctx context.Context, st player.State) error {
	plain, err := json.Marshal(FromState(st))
	if err != nil {
		return fmt.Errorf("encode game data: %w", err)
	}
	enc, err := r.codec.Encode(plain)
	if err != nil {
		return err
	}
	if err := r.kv.Set(ctx, DataKey(st.UserID), enc); err != nil {
		return fmt.Errorf("save game data: %w", err)
	}

	meta, err := json.Marshal(Metadata{Version: r.version, SavedAt: r.clock.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := r.kv.Set(ctx, MetaKey(st.UserID), meta); err != nil {
		return fmt.Errorf("save metadata: %w", err)
	}
	return nil
}
