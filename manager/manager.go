package manager

import (
	"context"
	"log"
	"os"
	"time"

	"media-manager/config"
	"media-manager/nfo"
	"media-manager/notion"
	"media-manager/storage"
)

// CatalogStore is what the engine needs from the local catalog repository.
type CatalogStore interface {
	UpsertMovie(meta *nfo.Metadata, label, moviePath string, posters storage.PosterSource, ranks storage.RankSource) (*storage.Movie, error)
	AddPath(movieID int64, label, path string) error
	PathsForLocation(label string) ([]storage.StoragePath, error)
	DeletePaths(paths []storage.StoragePath) error
	PruneOrphans() ([]string, error)
	AllMovies() ([]*storage.Movie, error)
	SetRemoteID(movieID int64, remoteID string) error
	LastModifiedWatermark() (*time.Time, error)
	UpdateGenreRemoteIDs(lookup map[string]string) (int, error)
}

// RemoteCatalog is what the engine needs from the remote catalog adapter.
type RemoteCatalog interface {
	LoadAllMovies() ([]*notion.MovieRecord, error)
	LoadGenreLinks() (map[string]string, error)
	CreateMovie(movie *storage.Movie) (string, error)
	PatchMovie(recordID string, delta *notion.Delta) error
	ClearLocations(recordIDs []string) error
}

// RankingSource is the ranking cache as the engine sees it.
type RankingSource interface {
	storage.RankSource
	IsRefreshDue() bool
	Refresh() error
}

// PosterSource is the poster cache as the engine sees it. Reset is called at
// the start of every run so failed lookups from an earlier run are retried.
type PosterSource interface {
	storage.PosterSource
	Reset()
}

// MovieManager drives one full reconciliation run: scan, prune, diff, patch.
type MovieManager struct {
	store   CatalogStore
	remote  RemoteCatalog
	posters PosterSource
	ranking RankingSource
}

func NewMovieManager(store CatalogStore, remote RemoteCatalog, posters PosterSource, ranking RankingSource) *MovieManager {
	return &MovieManager{
		store:   store,
		remote:  remote,
		posters: posters,
		ranking: ranking,
	}
}

// Reconcile runs the full pipeline over the given locations. Every step is
// per-item fault tolerant: failures are collected on the report and the run
// always completes with a result.
func (m *MovieManager) Reconcile(ctx context.Context, locations []config.Location) *RunReport {
	report := NewRunReport()
	defer report.Finish()

	if m.posters != nil {
		m.posters.Reset()
	}

	if watermark, err := m.store.LastModifiedWatermark(); err != nil {
		log.Printf("Failed to read last update watermark: %v", err)
	} else if watermark != nil {
		log.Printf("Last local update: %s", watermark.Format(time.RFC3339))
	}

	if m.ranking != nil && m.ranking.IsRefreshDue() {
		if err := m.ranking.Refresh(); err != nil {
			report.AddError("Failed to refresh ranking cache: %v", err)
		}
	}

	// Prune first: vanished paths under mounted locations go away, and
	// movies left without any path are deleted locally, surfacing their
	// remote ids for location-clearing.
	prunedIDs := m.removeMissingMovies(locations, report)
	report.PrunedRemoteIDs = prunedIDs

	m.scanLocations(ctx, locations, report)

	m.syncRemote(ctx, prunedIDs, report)

	return report
}

// removeMissingMovies deletes storage paths that no longer exist on disk,
// then prunes movies left with zero paths. Locations with an absent mount
// point are skipped entirely: a path unreachable because its device is
// unmounted is not evidence of deletion.
func (m *MovieManager) removeMissingMovies(locations []config.Location, report *RunReport) []string {
	var missingPaths []storage.StoragePath

	for _, location := range locations {
		if location.MountPoint != "" && !isMountPoint(location.MountPoint) {
			log.Printf("Skipping %s because it is not mounted", location.Label)
			continue
		}

		paths, err := m.store.PathsForLocation(location.Label)
		if err != nil {
			report.AddError("Failed to load paths for %s: %v", location.Label, err)
			continue
		}
		for _, path := range paths {
			if _, err := os.Stat(path.Path); os.IsNotExist(err) {
				log.Printf("Path %s no longer exists", path.Path)
				missingPaths = append(missingPaths, path)
			}
		}
	}

	if len(missingPaths) == 0 {
		return nil
	}

	if err := m.store.DeletePaths(missingPaths); err != nil {
		report.AddError("Failed to delete missing paths: %v", err)
		return nil
	}

	prunedIDs, err := m.store.PruneOrphans()
	if err != nil {
		report.AddError("Failed to prune orphaned movies: %v", err)
		return nil
	}
	return prunedIDs
}

// scanLocations walks every mounted location and upserts each qualifying
// movie folder. A failing folder is logged and skipped; it never aborts the
// scan.
func (m *MovieManager) scanLocations(ctx context.Context, locations []config.Location, report *RunReport) {
	for _, location := range locations {
		select {
		case <-ctx.Done():
			report.AddError("Scan cancelled: %v", ctx.Err())
			return
		default:
		}

		if location.MountPoint != "" && !isMountPoint(location.MountPoint) {
			continue
		}

		log.Printf("Updating movies stored @ %s (%s)", location.Label, location.Path)
		err := walkLocation(location.Label, location.Path, func(folder movieFolder) {
			if err := m.upsertFolder(folder); err != nil {
				report.AddError("Skipping %s: %v", folder.moviePath, err)
			}
		})
		if err != nil {
			report.AddError("Failed to scan %s: %v", location.Label, err)
		}
	}
}

func (m *MovieManager) upsertFolder(folder movieFolder) error {
	sidecarPath := nfo.RenameToCanonical(folder.sidecarPath)

	meta, err := nfo.Parse(sidecarPath)
	if err != nil {
		return err
	}

	_, err = m.store.UpsertMovie(meta, folder.label, folder.moviePath, m.posters, m.ranking)
	return err
}

// syncRemote pushes the local catalog state to the remote one: clears
// location markers of pruned movies, creates records for added movies,
// patches changed overlapping ones and surfaces remote-only movies as the
// wishlist.
func (m *MovieManager) syncRemote(ctx context.Context, prunedIDs []string, report *RunReport) {
	// Refresh genre links first so newly created records can resolve their
	// genre relations.
	if links, err := m.remote.LoadGenreLinks(); err != nil {
		report.AddError("Failed to load genre links: %v", err)
	} else if linked, err := m.store.UpdateGenreRemoteIDs(links); err != nil {
		report.AddError("Failed to update genre links: %v", err)
	} else if linked > 0 {
		log.Printf("Linked %d genres to the remote genre database", linked)
	}

	// Stale location tags of pruned movies are cleared before the diff
	// pass; the records themselves stay for manual curation.
	if len(prunedIDs) > 0 {
		if err := m.remote.ClearLocations(prunedIDs); err != nil {
			report.AddError("Failed to clear locations of pruned movies: %v", err)
		}
	}

	localMovies, err := m.store.AllMovies()
	if err != nil {
		report.AddError("Failed to load local movies: %v", err)
		return
	}
	remoteMovies, err := m.remote.LoadAllMovies()
	if err != nil {
		report.AddError("Failed to load remote movies: %v", err)
		return
	}

	diff := classifyMovies(localMovies, remoteMovies)
	log.Printf("Diff: %d added, %d overlapping, %d remote-only",
		len(diff.added), len(diff.overlapping), len(diff.missing))

	for _, movie := range diff.added {
		select {
		case <-ctx.Done():
			report.AddError("Sync cancelled: %v", ctx.Err())
			return
		default:
		}

		remoteID, err := m.remote.CreateMovie(movie)
		if err != nil {
			report.AddError("Failed to create record for %s: %v", movie.DisplayName(), err)
			continue
		}
		if err := m.store.SetRemoteID(movie.ID, remoteID); err != nil {
			report.AddError("Failed to store remote id for %s: %v", movie.DisplayName(), err)
			continue
		}
		log.Printf("Created record for %s", movie.DisplayName())
		report.Added = append(report.Added, movie.DisplayName())
	}

	for _, pair := range diff.overlapping {
		select {
		case <-ctx.Done():
			report.AddError("Sync cancelled: %v", ctx.Err())
			return
		default:
		}

		// A missing or stale remote id is fixed locally; that alone
		// costs no remote call.
		if pair.local.RemoteID == nil || *pair.local.RemoteID != pair.remote.ID {
			if err := m.store.SetRemoteID(pair.local.ID, pair.remote.ID); err != nil {
				report.AddError("Failed to fix remote id for %s: %v", pair.local.DisplayName(), err)
				continue
			}
		}

		delta := buildDelta(pair.local, pair.remote)
		if delta.Empty() {
			continue
		}
		if err := m.remote.PatchMovie(pair.remote.ID, delta); err != nil {
			report.AddError("Failed to patch %s: %v", pair.local.DisplayName(), err)
			continue
		}
		log.Printf("Patched %s (%v)", pair.local.DisplayName(), delta.Fields())
		report.Patched = append(report.Patched, pair.local.DisplayName())
	}

	for _, record := range diff.missing {
		report.Wishlist = append(report.Wishlist, record.String())
	}
}

// UpdateGenreLinks refreshes the remote ids on local genre rows from the
// remote genre database.
func (m *MovieManager) UpdateGenreLinks() error {
	links, err := m.remote.LoadGenreLinks()
	if err != nil {
		return err
	}
	linked, err := m.store.UpdateGenreRemoteIDs(links)
	if err != nil {
		return err
	}
	log.Printf("Linked %d genres to the remote genre database", linked)
	return nil
}
