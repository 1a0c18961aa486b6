package cards

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"
)

// Loader reads a card list from disk.
type Loader struct {
	path string
}

// NewLoader creates a loader for the card list at path.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load reads every card in file order. The format is chosen by extension:
// .json (array), .jsonl, .yaml/.yml (sequence) or .parquet.
func (l *Loader) Load() ([]Card, error) {
	ext := strings.ToLower(filepath.Ext(l.path))

	var (
		list []Card
		err  error
	)
	switch ext {
	case ".json":
		list, err = l.loadJSON()
	case ".jsonl":
		list, err = l.loadJSONL()
	case ".yaml", ".yml":
		list, err = l.loadYAML()
	case ".parquet":
		list, err = l.loadParquet()
	default:
		return nil, fmt.Errorf("unsupported card list format: %s (supported: .json, .jsonl, .yaml, .parquet)", ext)
	}
	if err != nil {
		return nil, err
	}

	slog.Debug("Loaded card list", "path", l.path, "cards", len(list))
	return list, nil
}

func (l *Loader) loadJSON() ([]Card, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read card list: %w", err)
	}

	var list []Card
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse card list JSON: %w", err)
	}
	return list, nil
}

func (l *Loader) loadJSONL() ([]Card, error) {
	file, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open card list: %w", err)
	}
	defer file.Close()

	var list []Card
	scanner := bufio.NewScanner(file)
	const maxCapacity = 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var card Card
		if err := json.Unmarshal([]byte(line), &card); err != nil {
			return nil, fmt.Errorf("failed to parse JSON at line %d: %w", lineNum, err)
		}
		list = append(list, card)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading card list: %w", err)
	}
	return list, nil
}

func (l *Loader) loadYAML() ([]Card, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read card list: %w", err)
	}

	var list []Card
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse card list YAML: %w", err)
	}
	return list, nil
}

func (l *Loader) loadParquet() ([]Card, error) {
	file, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[Card](pf)
	defer reader.Close()

	var list []Card
	rows := make([]Card, 128)
	for {
		n, err := reader.Read(rows)
		list = append(list, rows[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}
	return list, nil
}
