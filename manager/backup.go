package manager

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"unicode"

	"media-manager/config"
	"media-manager/notion"
	"media-manager/storage"
)

// Backup copies every movie that has no copy at the backup location yet from
// one of the primary locations into <backup root>/<letter>/<Title (Year)>.
// The new path is registered locally and the remote location tags are
// patched once the copy is complete. Partial copies are discarded.
func (m *MovieManager) Backup(ctx context.Context, backup config.Location, primaryLabels []string, report *RunReport) {
	if backup.MountPoint != "" && !isMountPoint(backup.MountPoint) {
		report.AddError("Backup location %s is not mounted", backup.Label)
		return
	}

	movies, err := m.store.AllMovies()
	if err != nil {
		report.AddError("Failed to load movies for backup: %v", err)
		return
	}

	// A locations patch replaces the whole remote tag set, so it has to be
	// built as a merge: labels the remote side lists without a local
	// backing path survive until a prune event clears them. When the
	// remote state cannot be loaded, patching is skipped entirely and the
	// next reconcile run merges the new label instead.
	remoteLocations := make(map[string][]string)
	remoteKnown := false
	if records, err := m.remote.LoadAllMovies(); err != nil {
		report.AddError("Failed to load remote movies for backup: %v", err)
	} else {
		remoteKnown = true
		for _, record := range records {
			remoteLocations[record.ID] = record.Locations
		}
	}

	for _, movie := range movies {
		select {
		case <-ctx.Done():
			report.AddError("Backup cancelled: %v", ctx.Err())
			return
		default:
		}

		if movie.HasLocation(backup.Label) {
			continue
		}

		source := backupSource(movie, primaryLabels)
		if source == "" {
			continue
		}

		target := filepath.Join(backup.Path, backupLetter(movie.Title), movie.DisplayName())
		log.Printf("Backing up %s to %s", movie.DisplayName(), target)

		if err := copyTree(source, target); err != nil {
			report.AddError("Failed to back up %s: %v", movie.DisplayName(), err)
			if rmErr := os.RemoveAll(target); rmErr != nil {
				log.Printf("Failed to discard partial backup %s: %v", target, rmErr)
			}
			continue
		}

		if err := m.store.AddPath(movie.ID, backup.Label, target); err != nil {
			report.AddError("Failed to register backup path for %s: %v", movie.DisplayName(), err)
			continue
		}
		movie.Paths = append(movie.Paths, storage.StoragePath{
			Path:          target,
			LocationLabel: backup.Label,
			MovieID:       movie.ID,
		})

		if movie.RemoteID != nil && remoteKnown {
			merged, _ := mergeLocations(remoteLocations[*movie.RemoteID], movie.Locations())
			delta := notion.NewDelta()
			delta.SetLocations(merged)
			if err := m.remote.PatchMovie(*movie.RemoteID, delta); err != nil {
				report.AddError("Failed to patch locations of %s: %v", movie.DisplayName(), err)
			}
		}

		report.BackedUp = append(report.BackedUp, movie.DisplayName())
	}
}

// backupSource picks the first path of the movie that sits under one of the
// primary locations and still exists on disk.
func backupSource(movie *storage.Movie, primaryLabels []string) string {
	for _, label := range primaryLabels {
		for _, path := range movie.Paths {
			if path.LocationLabel != label {
				continue
			}
			if _, err := os.Stat(path.Path); err == nil {
				return path.Path
			}
		}
	}
	return ""
}

// backupLetter namespaces the backup tree by the uppercased first letter of
// the title, with "0" for titles not starting with a letter.
func backupLetter(title string) string {
	for _, r := range title {
		if unicode.IsLetter(r) {
			return string(unicode.ToUpper(r))
		}
		return "0"
	}
	return "0"
}

func copyTree(source, target string) error {
	return filepath.WalkDir(source, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}
		dest := filepath.Join(target, rel)
		if entry.IsDir() {
			return os.MkdirAll(dest, 0o755)
		}
		return copyFile(path, dest)
	})
}

func copyFile(source, target string) error {
	in, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("failed to open %s: %v", source, err)
	}
	defer in.Close()

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create %s: %v", target, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s: %v", source, err)
	}
	return out.Close()
}
