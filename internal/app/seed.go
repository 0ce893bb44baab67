package app

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"casedocs/internal/locks"
	"casedocs/internal/masterdata"
)

// Seed is the development fixture loaded into the in-memory stores.
//
//	cases:
//	  case-1:
//	    applicant_first_name: Anna
//	documents:
//	  - id: doc-1
//	    case_id: case-1
//	    name: power of attorney
type Seed struct {
	Cases     map[string]map[string]any `yaml:"cases"`
	Documents []SeedDocument            `yaml:"documents"`
}

type SeedDocument struct {
	ID     string `yaml:"id"`
	CaseID string `yaml:"case_id"`
	Name   string `yaml:"name"`
}

func LoadSeed(path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(data)
}

func ParseSeed(data []byte) (Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return Seed{}, fmt.Errorf("parse seed file: %w", err)
	}
	for i, doc := range seed.Documents {
		if doc.ID == "" {
			return Seed{}, fmt.Errorf("seed document %d has no id", i)
		}
	}
	return seed, nil
}

func (s Seed) Apply(records *masterdata.InMemoryStore, documents *locks.InMemoryStore) {
	for caseID, fields := range s.Cases {
		records.Put(caseID, masterdata.Record(fields))
	}
	for _, doc := range s.Documents {
		documents.AddDocument(locks.Document{ID: doc.ID, CaseID: doc.CaseID, Name: doc.Name})
	}
}
