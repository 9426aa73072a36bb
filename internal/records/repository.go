// Package records reads and writes substances and override logs through a
// key/value store.
package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/noahxzhu/medtracker/internal/history"
	"github.com/noahxzhu/medtracker/internal/model"
	"github.com/noahxzhu/medtracker/internal/storage"
)

const substancesKey = "drugs"

var (
	ErrNotFound = errors.New("substance not found")
	ErrExists   = errors.New("substance already exists")
)

// OverridesKey is the key holding the override log of a substance.
func OverridesKey(id model.ID) string {
	return string(id) + "_overrides"
}

// storedSubstance defers the dose log to history.Decode so a malformed dose
// is dropped instead of failing the whole collection.
type storedSubstance struct {
	model.Substance
	Doses json.RawMessage `json:"doses"`
}

type Repository struct {
	kv storage.KV
}

func NewRepository(kv storage.KV) *Repository {
	return &Repository{kv: kv}
}

// List returns every substance in stored order.
func (r *Repository) List(ctx context.Context) ([]model.Substance, error) {
	subs, _, err := r.load(ctx)
	return subs, err
}

func (r *Repository) Get(ctx context.Context, id model.ID) (model.Substance, error) {
	subs, _, err := r.load(ctx)
	if err != nil {
		return model.Substance{}, err
	}
	i := indexOf(subs, id)
	if i < 0 {
		return model.Substance{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return subs[i], nil
}

// Add appends a new substance.
func (r *Repository) Add(ctx context.Context, s model.Substance) error {
	subs, rev, err := r.load(ctx)
	if err != nil {
		return err
	}
	if indexOf(subs, s.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrExists, s.ID)
	}
	if s.Doses == nil {
		s.Doses = []model.Dose{}
	}
	subs = append(subs, s)

	data, err := json.Marshal(subs)
	if err != nil {
		return fmt.Errorf("failed to marshal substances: %w", err)
	}
	return r.kv.Commit(ctx, storage.Write{Key: substancesKey, Value: data, Expect: rev})
}

// Delete removes a substance from the collection. Its override log is kept.
func (r *Repository) Delete(ctx context.Context, id model.ID) (model.Substance, error) {
	subs, rev, err := r.load(ctx)
	if err != nil {
		return model.Substance{}, err
	}
	i := indexOf(subs, id)
	if i < 0 {
		return model.Substance{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	removed := subs[i]
	subs = slices.Delete(subs, i, i+1)

	data, err := json.Marshal(subs)
	if err != nil {
		return model.Substance{}, fmt.Errorf("failed to marshal substances: %w", err)
	}
	if err := r.kv.Commit(ctx, storage.Write{Key: substancesKey, Value: data, Expect: rev}); err != nil {
		return model.Substance{}, fmt.Errorf("failed to delete %s: %w", id, err)
	}
	return removed, nil
}

// Search returns the substances whose name contains query, ignoring case.
// An empty query matches everything.
func (r *Repository) Search(ctx context.Context, query string) ([]model.Substance, error) {
	subs, _, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(strings.TrimSpace(query))
	return slices.DeleteFunc(subs, func(s model.Substance) bool {
		return !strings.Contains(strings.ToLower(s.Name), query)
	}), nil
}

// Overrides returns the override log of a substance, oldest first.
func (r *Repository) Overrides(ctx context.Context, id model.ID) ([]model.OverrideLog, error) {
	logs, _, err := r.loadOverrides(ctx, id)
	return logs, err
}

// Change collects the side effects of one Update besides the substance
// itself.
type Change struct {
	overrides []model.OverrideLog
}

// AppendOverride queues an override log entry for the updated substance.
func (c *Change) AppendOverride(entry model.OverrideLog) {
	c.overrides = append(c.overrides, entry)
}

// Update reads the current state, lets fn modify the substance with id and
// writes the substance collection and any queued override entries in one
// commit. Nothing is written if fn returns an error, or if the stored state
// changed since it was read (storage.ErrConflict).
func (r *Repository) Update(ctx context.Context, id model.ID, fn func(s *model.Substance, c *Change) error) (model.Substance, error) {
	subs, rev, err := r.load(ctx)
	if err != nil {
		return model.Substance{}, err
	}
	i := indexOf(subs, id)
	if i < 0 {
		return model.Substance{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	updated := subs[i]
	updated.Doses = append([]model.Dose(nil), subs[i].Doses...)
	var change Change
	if err := fn(&updated, &change); err != nil {
		return model.Substance{}, err
	}
	subs[i] = updated

	data, err := json.Marshal(subs)
	if err != nil {
		return model.Substance{}, fmt.Errorf("failed to marshal substances: %w", err)
	}
	writes := []storage.Write{{Key: substancesKey, Value: data, Expect: rev}}

	if len(change.overrides) > 0 {
		logs, logRev, err := r.loadOverrides(ctx, id)
		if err != nil {
			return model.Substance{}, err
		}
		logs = append(logs, change.overrides...)
		logData, err := json.Marshal(logs)
		if err != nil {
			return model.Substance{}, fmt.Errorf("failed to marshal override log: %w", err)
		}
		writes = append(writes, storage.Write{Key: OverridesKey(id), Value: logData, Expect: logRev})
	}

	if err := r.kv.Commit(ctx, writes...); err != nil {
		return model.Substance{}, fmt.Errorf("failed to commit %s: %w", id, err)
	}
	return updated, nil
}

func (r *Repository) load(ctx context.Context) ([]model.Substance, storage.Revision, error) {
	item, err := r.kv.Get(ctx, substancesKey)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read substances: %w", err)
	}
	if !item.Exists() {
		return []model.Substance{}, "", nil
	}
	var stored []storedSubstance
	if err := json.Unmarshal(item.Value, &stored); err != nil {
		return nil, "", fmt.Errorf("failed to unmarshal substances: %w", err)
	}
	subs := make([]model.Substance, len(stored))
	for i, st := range stored {
		subs[i] = st.Substance
		subs[i].Doses = history.Decode(st.Doses)
		if subs[i].Doses == nil {
			subs[i].Doses = []model.Dose{}
		}
	}
	return subs, item.Revision, nil
}

func (r *Repository) loadOverrides(ctx context.Context, id model.ID) ([]model.OverrideLog, storage.Revision, error) {
	item, err := r.kv.Get(ctx, OverridesKey(id))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read override log: %w", err)
	}
	if !item.Exists() {
		return []model.OverrideLog{}, "", nil
	}
	var logs []model.OverrideLog
	if err := json.Unmarshal(item.Value, &logs); err != nil {
		return nil, "", fmt.Errorf("failed to unmarshal override log: %w", err)
	}
	return logs, item.Revision, nil
}

func indexOf(subs []model.Substance, id model.ID) int {
	for i, s := range subs {
		if s.ID == id {
			return i
		}
	}
	return -1
}
