package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/canopy-watch/internal/domain"
)

// defaultWatchSizeKm applies to watchlist entries that omit size_km.
const defaultWatchSizeKm = 10.0

// WatchedRegion is one monitored region. Schedule, when set, is a cron
// expression or descriptor overriding the monitor-wide MONITOR_SCHEDULE for
// this region alone; empty means the region follows the default cadence.
type WatchedRegion struct {
	Region   domain.Region
	Schedule string
}

// watchEntry is the YAML shape of one monitored region.
type watchEntry struct {
	Name     string  `yaml:"name"`
	Lat      float64 `yaml:"lat"`
	Lon      float64 `yaml:"lon"`
	SizeKm   float64 `yaml:"size_km"`
	Schedule string  `yaml:"schedule"`
}

type watchlistFile struct {
	Regions []watchEntry `yaml:"regions"`
}

// LoadWatchlist reads the monitored-region list from a YAML file. Every entry
// must validate and names must be unique; entries without a size get
// defaultWatchSizeKm. Schedule strings pass through unparsed; the monitor
// owns that grammar and rejects bad ones at construction.
func LoadWatchlist(path string) ([]WatchedRegion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read watchlist: %w", err)
	}

	var file watchlistFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse watchlist %s: %w", path, err)
	}
	if len(file.Regions) == 0 {
		return nil, fmt.Errorf("watchlist %s contains no regions", path)
	}

	seen := make(map[string]bool, len(file.Regions))
	watched := make([]WatchedRegion, 0, len(file.Regions))
	for i, e := range file.Regions {
		region := domain.Region{Name: e.Name, Lat: e.Lat, Lon: e.Lon, SizeKm: e.SizeKm}
		if region.SizeKm == 0 {
			region.SizeKm = defaultWatchSizeKm
		}
		if err := region.Validate(); err != nil {
			return nil, fmt.Errorf("watchlist region %d (%q): %w", i, e.Name, err)
		}
		if seen[region.Name] {
			return nil, fmt.Errorf("watchlist region %d: duplicate name %q", i, region.Name)
		}
		seen[region.Name] = true
		watched = append(watched, WatchedRegion{Region: region, Schedule: e.Schedule})
	}
	return watched, nil
}

// Regions strips the schedules off a watchlist, for callers that only need
// the geography.
func Regions(watched []WatchedRegion) []domain.Region {
	regions := make([]domain.Region, len(watched))
	for i, w := range watched {
		regions[i] = w.Region
	}
	return regions
}
