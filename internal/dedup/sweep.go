package dedup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/anderson-ufrj/meeting-intelligence/internal/store"
)

// Result of one sweep over a namespace.
type Result struct {
	Removed int      `json:"removed"`
	Kept    []string `json:"kept"`
}

// Sweeper groups live records by their logical identity (case-normalized
// title within the tier) and keeps exactly one per group. It reads and
// writes only through the record store and runs synchronously on explicit
// invocation — there is no schedule.
type Sweeper struct {
	store store.RecordStore
}

func NewSweeper(s store.RecordStore) *Sweeper {
	return &Sweeper{store: s}
}

// Sweep retains the earliest-indexed record of each duplicate group and
// deletes the rest. The sweep is read-then-act: a record another actor
// deleted between the scan and the delete call is treated as already
// resolved, not an error.
func (sw *Sweeper) Sweep(ctx context.Context, ns store.Namespace) (*Result, error) {
	if err := ns.Validate(); err != nil {
		return nil, err
	}

	summaries, err := sw.store.List(ctx, ns)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", ns, err)
	}

	groups := map[string][]store.Summary{}
	for _, s := range summaries {
		key := identityKey(s.Metadata.Title)
		groups[key] = append(groups[key], s)
	}

	result := &Result{}
	for _, group := range groups {
		sort.Slice(group, func(i, j int) bool {
			if !group[i].IndexedAt.Equal(group[j].IndexedAt) {
				return group[i].IndexedAt.Before(group[j].IndexedAt)
			}
			return group[i].ID < group[j].ID
		})

		result.Kept = append(result.Kept, group[0].ID)
		for _, dup := range group[1:] {
			err := sw.store.Delete(ctx, ns, dup.ID)
			if errors.Is(err, store.ErrNotFound) {
				slog.Info("duplicate already removed", "namespace", ns, "id", dup.ID)
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("delete duplicate %s/%s: %w", ns, dup.ID, err)
			}
			slog.Info("duplicate removed",
				"namespace", ns, "id", dup.ID, "kept", group[0].ID)
			result.Removed++
		}
	}

	sort.Strings(result.Kept)
	return result, nil
}

func identityKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}
