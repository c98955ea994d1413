package service

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// RegionFeature is one selectable feature from an uploaded GeoJSON
// FeatureCollection. Name comes from the feature's "name" property or a
// synthetic "Feature N" default; it is only a selection label.
type RegionFeature struct {
	Name     string `json:"name" doc:"Feature display name" example:"Kakuma"`
	Geometry orb.Geometry
}

// RegionService manages uploaded region files.
type RegionService struct {
	regionsDir string
}

// NewRegionService creates a region service storing uploads under
// dataDir/regions.
func NewRegionService(dataDir string) *RegionService {
	return &RegionService{
		regionsDir: filepath.Join(dataDir, "regions"),
	}
}

// RegionsDir returns the regions directory path.
func (s *RegionService) RegionsDir() string {
	return s.regionsDir
}

// Save stores an uploaded GeoJSON file after validating that it parses
// as a FeatureCollection.
func (s *RegionService) Save(filename string, r io.Reader) error {
	if strings.ContainsAny(filename, "/\\") || strings.Contains(filename, "..") {
		return fmt.Errorf("invalid filename")
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".geojson" && ext != ".json" {
		return fmt.Errorf("only .geojson or .json files are allowed")
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read upload: %w", err)
	}
	if _, err := geojson.UnmarshalFeatureCollection(data); err != nil {
		return fmt.Errorf("not a valid GeoJSON FeatureCollection: %w", err)
	}

	if err := os.MkdirAll(s.regionsDir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.regionsDir, filename), data, 0644)
}

// List returns the uploaded region file names.
func (s *RegionService) List() ([]string, error) {
	entries, err := os.ReadDir(s.regionsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".geojson" || ext == ".json" {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// Features parses a stored region file into its selectable features.
func (s *RegionService) Features(filename string) ([]RegionFeature, error) {
	data, err := os.ReadFile(filepath.Join(s.regionsDir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("region file %s: %w", filename, ErrNotFound)
		}
		return nil, err
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, err)
	}

	features := make([]RegionFeature, 0, len(fc.Features))
	for i, f := range fc.Features {
		name, _ := f.Properties["name"].(string)
		if name == "" {
			name = fmt.Sprintf("Feature %d", i)
		}
		features = append(features, RegionFeature{Name: name, Geometry: f.Geometry})
	}
	return features, nil
}

// Find returns the named feature from a stored region file.
func (s *RegionService) Find(filename, name string) (RegionFeature, error) {
	features, err := s.Features(filename)
	if err != nil {
		return RegionFeature{}, err
	}
	for _, f := range features {
		if f.Name == name {
			return f, nil
		}
	}
	return RegionFeature{}, fmt.Errorf("feature %q in %s: %w", name, filename, ErrNotFound)
}
