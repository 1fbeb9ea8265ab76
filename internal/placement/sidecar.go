package placement

import (
	"os"
	"path/filepath"
	"strings"
)

// SidecarExtensions lists the subtitle formats carried along with a video.
var SidecarExtensions = map[string]bool{
	".srt": true,
	".ass": true,
	".ssa": true,
	".sub": true,
	".vtt": true,
	".smi": true,
	".idx": true,
}

// Sidecar is a companion file and where it goes.
type Sidecar struct {
	Source      string
	Destination string
}

// FindSidecars lists subtitle files next to video whose name without
// extension equals the video's base or starts with "<base>.", e.g.
// Movie.srt and Movie.en.forced.ass for Movie.mkv. Destinations keep
// the part after the base, appended to dst without its extension.
func FindSidecars(video, dst string) ([]Sidecar, error) {
	dir := filepath.Dir(video)
	base := strings.TrimSuffix(filepath.Base(video), filepath.Ext(video))
	dstBase := strings.TrimSuffix(dst, filepath.Ext(dst))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var out []Sidecar
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		if !SidecarExtensions[strings.ToLower(ext)] {
			continue
		}
		stem := strings.TrimSuffix(name, ext)
		if stem != base && !strings.HasPrefix(stem, base+".") {
			continue
		}
		out = append(out, Sidecar{
			Source:      filepath.Join(dir, name),
			Destination: dstBase + strings.TrimPrefix(name, base),
		})
	}
	return out, nil
}
