package taxonomy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bryanwahyu/webtaxon/internal/application"
	"github.com/bryanwahyu/webtaxon/internal/domain/classification"
	domain "github.com/bryanwahyu/webtaxon/internal/domain/taxonomy"
)

// ErrSnapshotsDisabled is returned by Snapshot when no store is configured.
var ErrSnapshotsDisabled = errors.New("tree snapshots are not configured")

// Service aggregates history into the taxonomy tree. The tree is rebuilt on every call.
type Service struct {
	History   classification.HistoryRepository
	Snapshots domain.SnapshotStore
	Clock     application.Clock
	// Prefix is prepended to snapshot object keys.
	Prefix string
}

type Snapshot struct {
	Key       string    `json:"key"`
	Location  string    `json:"location"`
	Entries   int       `json:"entries"`
	CreatedAt time.Time `json:"created_at"`
}

// Tree builds the tree from the whole stored history.
// Without a repository the tree is empty.
func (s *Service) Tree(ctx context.Context) (*domain.Tree, error) {
	if s.History == nil {
		return domain.Build(nil)
	}
	entries, err := s.History.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return domain.BuildFrom(entries)
}

// TreeOf builds a tree from caller-supplied entries without touching storage.
func (s *Service) TreeOf(entries []classification.HistoryEntry) (*domain.Tree, error) {
	return domain.Build(entries)
}

// Snapshot exports the current tree as JSON to object storage.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	if s.Snapshots == nil {
		return Snapshot{}, ErrSnapshotsDisabled
	}
	tree, err := s.Tree(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	data, err := json.Marshal(tree)
	if err != nil {
		return Snapshot{}, err
	}

	now := time.Now()
	if s.Clock != nil {
		now = s.Clock.Now()
	}
	key := fmt.Sprintf("%stree-%s.json", s.Prefix, now.UTC().Format("20060102T150405Z"))
	loc, err := s.Snapshots.Put(ctx, key, data, "application/json")
	if err != nil {
		return Snapshot{}, fmt.Errorf("upload snapshot: %w", err)
	}
	return Snapshot{Key: key, Location: loc, Entries: tree.Count(), CreatedAt: now}, nil
}
