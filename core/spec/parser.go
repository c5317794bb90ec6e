// Package spec parses YAML tuning specifications into requests.
package spec

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"finetune-orchestrator/core/models"
)

// TuningSpec is the YAML document submitted via the CLI
type TuningSpec struct {
	Tuning TuningSpecBody `yaml:"tuning"`
}

// TuningSpecBody is the tuning section of the spec
type TuningSpecBody struct {
	Model     string                 `yaml:"model"`
	Dataset   string                 `yaml:"dataset"`
	Hardware  string                 `yaml:"hardware"`
	Precision string                 `yaml:"precision"`
	UserID    string                 `yaml:"user_id"`
	Config    map[string]interface{} `yaml:"config"`
}

// ParseTuningSpec parses a YAML tuning spec into a validated request
func ParseTuningSpec(specYAML []byte) (*models.TuningRequest, error) {
	var s TuningSpec
	if err := yaml.Unmarshal(specYAML, &s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	req := &models.TuningRequest{
		Model:     s.Tuning.Model,
		Dataset:   s.Tuning.Dataset,
		Hardware:  models.HardwareType(s.Tuning.Hardware),
		Precision: models.Precision(s.Tuning.Precision),
		UserID:    s.Tuning.UserID,
		Config:    s.Tuning.Config,
	}
	if req.Config == nil {
		req.Config = map[string]interface{}{}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}
