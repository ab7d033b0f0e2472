package faceswap

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// outputToken marks the file the model is expected to write.
const outputToken = "output"

// FileEntry is one file of a directory listing.
type FileEntry struct {
	Path string
	Size int64
}

// OutputNotFoundError reports that the model left no usable video behind.
// Candidate is set when a video was found but is empty. Err is set when the
// scratch directory could not be read at all.
type OutputNotFoundError struct {
	Dir       string
	Candidate string
	Listing   []string
	Err       error
}

func (e *OutputNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generated output could not be listed: %v", e.Err)
	}
	if e.Candidate != "" {
		return fmt.Sprintf("generated output video is empty (0 bytes): %s", e.Candidate)
	}
	return fmt.Sprintf("generated output video not found in %s (contents: %v)", e.Dir, e.Listing)
}

func (e *OutputNotFoundError) Unwrap() error {
	return e.Err
}

// DiscoverOutput picks the model's output from a listing. The first video
// whose name contains "output" wins; failing that, the first video that is
// not excludePath. A zero-byte pick is rejected rather than skipped.
func DiscoverOutput(listing []FileEntry, excludePath string) (FileEntry, error) {
	var pick *FileEntry

	for i := range listing {
		e := listing[i]
		if isVideo(e.Path) && e.Path != excludePath &&
			strings.Contains(strings.ToLower(filepath.Base(e.Path)), outputToken) {
			pick = &listing[i]
			break
		}
	}

	if pick == nil {
		for i := range listing {
			e := listing[i]
			if isVideo(e.Path) && e.Path != excludePath {
				pick = &listing[i]
				break
			}
		}
	}

	if pick == nil {
		names := make([]string, len(listing))
		for i, e := range listing {
			names[i] = filepath.Base(e.Path)
		}
		var dir string
		if len(listing) > 0 {
			dir = filepath.Dir(listing[0].Path)
		}
		return FileEntry{}, &OutputNotFoundError{Dir: dir, Listing: names}
	}
	if pick.Size == 0 {
		return FileEntry{}, &OutputNotFoundError{Dir: filepath.Dir(pick.Path), Candidate: pick.Path}
	}
	return *pick, nil
}

// listDir returns the regular files of dir, sorted by name.
func listDir(dir string) ([]FileEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	listing := make([]FileEntry, 0, len(entries))
	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		listing = append(listing, FileEntry{
			Path: filepath.Join(dir, de.Name()),
			Size: info.Size(),
		})
	}
	return listing, nil
}

func isVideo(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".mp4")
}
