package robot

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

const DefaultCalibrationFile = "calibration.json"

// CalibrationFile is the on-disk form of an exported calibration.
type CalibrationFile struct {
	SavedAt time.Time   `json:"saved_at"`
	Server  string      `json:"server,omitempty"`
	Joints  Calibration `json:"joints"`
}

// LoadCalibration loads an exported calibration from a JSON file.
func LoadCalibration(path string) (*CalibrationFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calibration file: %w", err)
	}

	// Parse into a map with string keys first
	var raw struct {
		SavedAt time.Time             `json:"saved_at"`
		Server  string                `json:"server"`
		Joints  map[string]JointRange `json:"joints"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse calibration JSON: %w", err)
	}

	cal := make(Calibration, len(raw.Joints))
	for name, r := range raw.Joints {
		cal[MotorName(name)] = r
	}

	return &CalibrationFile{SavedAt: raw.SavedAt, Server: raw.Server, Joints: cal}, nil
}

// SaveTo writes the calibration to a specific file.
func (f *CalibrationFile) SaveTo(path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// CalibrationExists returns true if the file exists.
func CalibrationExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
