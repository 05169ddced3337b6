package manager

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"media-manager/nfo"
)

// Extensions treated as movie files during a scan.
var videoExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true,
	".m4v": true, ".wmv": true, ".flv": true, ".webm": true,
	".ts": true, ".m2ts": true, ".mpg": true, ".mpeg": true,
}

// movieFolder is one qualifying folder found during a scan: exactly one video
// file next to exactly one sidecar file.
type movieFolder struct {
	label       string
	moviePath   string
	sidecarPath string
}

func isVideoFile(name string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(name))]
}

// walkLocation visits every qualifying movie folder under the location root.
// Hidden directories are skipped; symlinked directories are followed; folders
// with any other combination of video and sidecar files are logged and passed
// over.
func walkLocation(label, root string, visit func(folder movieFolder)) error {
	return filepath.WalkDir(root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			log.Printf("Failed to walk %s: %v", path, err)
			return nil
		}
		if path == root {
			return nil
		}
		if strings.HasPrefix(entry.Name(), ".") {
			if entry.IsDir() {
				log.Printf("Skipping hidden directory %s", entry.Name())
				return filepath.SkipDir
			}
			return nil
		}
		// WalkDir does not descend into symlinked directories, but a
		// library may be stitched together from them.
		if entry.Type()&os.ModeSymlink != 0 {
			info, err := os.Stat(path)
			if err != nil || !info.IsDir() {
				return nil
			}
			inspectFolder(label, path, visit)
			return walkLocation(label, path, visit)
		}
		if !entry.IsDir() {
			return nil
		}
		inspectFolder(label, path, visit)
		return nil
	})
}

// inspectFolder checks one directory for the one-video-one-sidecar layout and
// visits it when it qualifies.
func inspectFolder(label, path string, visit func(folder movieFolder)) {
	entries, err := os.ReadDir(path)
	if err != nil {
		log.Printf("Failed to read directory %s: %v", path, err)
		return
	}

	var movies, sidecars []string
	for _, file := range entries {
		if file.IsDir() {
			continue
		}
		filePath := filepath.Join(path, file.Name())
		if isVideoFile(file.Name()) {
			movies = append(movies, filePath)
		} else if nfo.IsSidecarFile(filePath) {
			sidecars = append(sidecars, filePath)
		}
	}

	switch {
	case len(movies) == 1 && len(sidecars) == 1:
		visit(movieFolder{label: label, moviePath: movies[0], sidecarPath: sidecars[0]})
	case len(movies) > 1:
		log.Printf("More than one movie found in %s", path)
	case len(sidecars) > 1:
		log.Printf("More than one sidecar file found in %s", path)
	case len(sidecars) == 1 && len(movies) == 0:
		log.Printf("Found sidecar file but no movie in %s", path)
	case len(movies) == 1 && len(sidecars) == 0:
		log.Printf("Found no sidecar file but a movie in %s", path)
	}
}

// isMountPoint reports whether the path is the root of a mounted filesystem,
// by comparing its device id against its parent's. An absent path is never a
// mount point.
func isMountPoint(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	parent := filepath.Dir(path)
	if parent == path {
		return true
	}
	parentInfo, err := os.Stat(parent)
	if err != nil {
		return false
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	parentStat, parentOK := parentInfo.Sys().(*syscall.Stat_t)
	if !ok || !parentOK {
		return false
	}
	return stat.Dev != parentStat.Dev
}
