package pipeline

import (
	"github.com/fuunylmz/Re-aniname/internal/config"
	"github.com/fuunylmz/Re-aniname/internal/placement"
	"github.com/fuunylmz/Re-aniname/internal/scanner"
)

// OptionsFromConfig builds batch and scan options from the loaded
// configuration.
func OptionsFromConfig(cfg *config.Config) (Options, scanner.Options, error) {
	mode, err := placement.ParseMode(cfg.Library.Mode)
	if err != nil {
		return Options{}, scanner.Options{}, &ConfigError{Field: "library.mode", Reason: err.Error()}
	}
	dirMode, err := cfg.Library.ParseDirMode()
	if err != nil {
		return Options{}, scanner.Options{}, &ConfigError{Field: "library.dir_mode", Reason: err.Error()}
	}
	timeout, err := cfg.Pipeline.Timeout()
	if err != nil {
		return Options{}, scanner.Options{}, &ConfigError{Field: "pipeline.batch_timeout", Reason: err.Error()}
	}
	workers := cfg.Pipeline.Workers
	if workers == 0 {
		workers = DefaultWorkers
	}
	opts := Options{
		OutputDir: cfg.Library.OutputDir,
		Placement: placement.Options{
			Mode:      mode,
			Overwrite: cfg.Library.Overwrite,
			DirMode:   dirMode,
		},
		Workers: workers,
		Timeout: timeout,
	}
	scan := scanner.Options{
		Recursive:    cfg.Library.Recursive,
		MinSizeBytes: cfg.Library.MinSizeBytes(),
	}
	return opts, scan, nil
}
