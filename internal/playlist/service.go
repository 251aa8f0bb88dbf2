package playlist

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mmcdole/setlist/internal/domain"
	"github.com/mmcdole/setlist/internal/membership"
	"github.com/mmcdole/setlist/internal/store"
)

// Service orchestrates the membership cache, its loader and toggles, and records rebuild reports.
type Service struct {
	*Queries

	loader      *membership.Loader
	coordinator *membership.Coordinator
	reports     *store.ReportStore
	logger      *slog.Logger
}

// NewService creates a new playlist service. reports may be nil.
func NewService(
	repo domain.PlaylistRepository,
	reports *store.ReportStore,
	opts membership.LoaderOptions,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	cache := membership.NewCache()
	return &Service{
		Queries:     NewQueries(cache),
		loader:      membership.NewLoader(repo, cache, opts, logger.With("component", "loader")),
		coordinator: membership.NewCoordinator(repo, cache, logger.With("component", "toggle")),
		reports:     reports,
		logger:      logger,
	}
}

// Rebuild refreshes the membership cache. obs may be nil.
func (s *Service) Rebuild(ctx context.Context, obs membership.Observer) (*membership.Result, error) {
	result, err := s.loader.Rebuild(ctx, obs)
	s.saveReport(result, err)
	return result, err
}

// Cancel stops a running rebuild
func (s *Service) Cancel() {
	s.loader.Cancel()
}

// LoaderState returns the state of the last rebuild
func (s *Service) LoaderState() membership.LoaderState {
	return s.loader.State()
}

// Toggle adds or removes itemID from playlistID.
// Fails with domain.ErrAlreadyPending while the same pair is in flight.
func (s *Service) Toggle(ctx context.Context, itemID, playlistID string, dir domain.Direction) (*membership.Snapshot, error) {
	snap, err := s.coordinator.Toggle(ctx, itemID, playlistID, dir)
	if err != nil {
		return nil, err
	}
	s.logger.Info("toggled membership", "itemID", itemID, "playlistID", playlistID, "direction", dir.String())
	return snap, nil
}

// ToggleQueued is Toggle, waiting behind a toggle in flight for the same pair
func (s *Service) ToggleQueued(ctx context.Context, itemID, playlistID string, dir domain.Direction) (*membership.Snapshot, error) {
	snap, err := s.coordinator.ToggleQueued(ctx, itemID, playlistID, dir)
	if err != nil {
		return nil, err
	}
	s.logger.Info("toggled membership", "itemID", itemID, "playlistID", playlistID, "direction", dir.String())
	return snap, nil
}

// IsPending reports whether a toggle for the pair is in flight
func (s *Service) IsPending(itemID, playlistID string) bool {
	return s.coordinator.Pending(itemID, playlistID) != nil
}

// Reports returns up to n recent rebuild reports, newest first
func (s *Service) Reports(n int) ([]store.Report, error) {
	if s.reports == nil {
		return nil, nil
	}
	return s.reports.Recent(n)
}

func (s *Service) saveReport(result *membership.Result, err error) {
	if s.reports == nil || result == nil {
		return
	}

	report := store.Report{
		ID:         uuid.NewString(),
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
		State:      result.State.String(),
		Version:    s.Snapshot().Version,
		Playlists:  result.Playlists,
		Items:      result.Items,
	}
	if result.Snapshot != nil {
		report.Version = result.Snapshot.Version
	}
	if len(result.Missing) > 0 {
		report.Missing = make(map[string]string, len(result.Missing))
		for id, missingErr := range result.Missing {
			report.Missing[id] = missingErr.Error()
		}
	}
	if err != nil {
		report.Error = err.Error()
	}

	if saveErr := s.reports.Save(report); saveErr != nil {
		s.logger.Error("failed to save rebuild report", "error", saveErr, "reportID", report.ID)
	}
}
