package analysis

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/localnerve/voicehome/data"
	"gopkg.in/yaml.v3"
)

// Entry maps a keyword phrase to the value it classifies as
type Entry struct {
	Keyword string `yaml:"keyword"`
	Value   string `yaml:"value"`
}

// Table is an ordered list of entries; earlier entries win ties
type Table []Entry

// Tables holds the three independent keyword tables
type Tables struct {
	Actions     Table `yaml:"actions"`
	DeviceTypes Table `yaml:"device_types"`
	Locations   Table `yaml:"locations"`
}

var (
	defaultTables    *Tables
	defaultTablesErr error
	defaultOnce      sync.Once
)

// DefaultTables returns the embedded keyword tables, parsed once
func DefaultTables() (*Tables, error) {
	defaultOnce.Do(func() {
		defaultTables, defaultTablesErr = ParseTables(data.Keywords)
	})
	if defaultTablesErr != nil {
		return nil, defaultTablesErr
	}
	return defaultTables.clone(), nil
}

// LoadTables reads keyword tables from a YAML file
func LoadTables(path string) (*Tables, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keywords file: %w", err)
	}
	return ParseTables(raw)
}

// ParseTables decodes and validates a YAML keyword document.
// Keywords are lowercased so they compare against lowercased input.
func ParseTables(raw []byte) (*Tables, error) {
	var tables Tables
	if err := yaml.Unmarshal(raw, &tables); err != nil {
		return nil, fmt.Errorf("failed to parse keywords: %w", err)
	}

	if len(tables.Actions) == 0 {
		return nil, errors.New("keywords: actions table is empty")
	}

	for name, table := range map[string]Table{
		"actions":      tables.Actions,
		"device_types": tables.DeviceTypes,
		"locations":    tables.Locations,
	} {
		for i := range table {
			table[i].Keyword = strings.ToLower(strings.TrimSpace(table[i].Keyword))
			table[i].Value = strings.TrimSpace(table[i].Value)
			if table[i].Keyword == "" || table[i].Value == "" {
				return nil, fmt.Errorf("keywords: %s entry %d has an empty keyword or value", name, i)
			}
		}
	}

	return &tables, nil
}

func (t *Tables) clone() *Tables {
	return &Tables{
		Actions:     append(Table(nil), t.Actions...),
		DeviceTypes: append(Table(nil), t.DeviceTypes...),
		Locations:   append(Table(nil), t.Locations...),
	}
}

// match returns the value of the first entry whose keyword occurs in text
func (t Table) match(text string) (string, bool) {
	for _, e := range t {
		if strings.Contains(text, e.Keyword) {
			return e.Value, true
		}
	}
	return "", false
}
