package guiderepo

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/yanqian/trip-planner/internal/domain/guide"
)

type seedFile struct {
	Documents []guide.Document `yaml:"documents"`
}

// LoadSeed reads the guide corpus shipped with the service.
func LoadSeed(path string) ([]guide.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read guide seed: %w", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse guide seed: %w", err)
	}
	return seed.Documents, nil
}
