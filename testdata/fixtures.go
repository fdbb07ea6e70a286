// Package testdata provides recorded hand poses for tests.
package testdata

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/ayusman/fingerspell/internal/detector"
)

//go:embed poses/*.json
var posesFS embed.FS

// PoseFile is the on-disk shape of a pose fixture, the same body the
// frames endpoint accepts.
type PoseFile struct {
	Handedness string             `json:"handedness"`
	Landmarks  []detector.Point3D `json:"landmarks"`
}

// LoadPoseFile loads a fixture by name without validating it.
func LoadPoseFile(name string) (PoseFile, error) {
	data, err := posesFS.ReadFile(path.Join("poses", name+".json"))
	if err != nil {
		return PoseFile{}, fmt.Errorf("load pose %s: %w", name, err)
	}

	var pf PoseFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return PoseFile{}, fmt.Errorf("decode pose %s: %w", name, err)
	}
	return pf, nil
}

// LoadPose loads a fixture by name as a validated pose.
func LoadPose(name string) (detector.HandLandmarks, error) {
	pf, err := LoadPoseFile(name)
	if err != nil {
		return detector.HandLandmarks{}, err
	}
	return detector.NewHandLandmarks(pf.Landmarks, detector.ParseHandedness(pf.Handedness))
}

// PoseNames lists the available fixtures in name order.
func PoseNames() ([]string, error) {
	entries, err := fs.ReadDir(posesFS, "poses")
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
	}
	sort.Strings(names)
	return names, nil
}
