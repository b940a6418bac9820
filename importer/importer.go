// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package importer

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/danielhkuo/affect-exp/models"
)

// AcceptedFile is the file name the text generation pipeline writes
// approved stimuli to.
const AcceptedFile = "accepted.jsonl"

// Uncategorized is used when neither the row nor its path names a category.
const Uncategorized = "uncategorized"

// Sink receives imported stimuli. store.Store satisfies it; PutStimulus
// must upsert.
type Sink interface {
	PutStimulus(ctx context.Context, s models.Stimulus) error
}

// Summary reports one import run.
type Summary struct {
	Root       string `json:"root"`
	Version    string `json:"version"`
	FilesFound int    `json:"files_found"`
	Inserted   int    `json:"inserted"`
	Skipped    int    `json:"skipped"`
}

type row struct {
	Stimulus *struct {
		StimID    string `json:"stim_id"`
		Text      string `json:"text"`
		CreatedAt string `json:"created_at"`
	} `json:"stimulus"`
	Controls struct {
		Layer1Dimension string `json:"layer1_dimension"`
		Layer1Direction string `json:"layer1_direction"`
		Layer3Relation  any    `json:"layer3_relation"`
	} `json:"controls"`
}

type Importer struct {
	sink    Sink
	version string
	now     func() time.Time
}

func New(sink Sink, version string) *Importer {
	return &Importer{sink: sink, version: version, now: time.Now}
}

// FindAcceptedFiles returns every accepted.jsonl under root, sorted.
func FindAcceptedFiles(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", root)
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == AcceptedFile {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// Import loads every accepted file under root into the sink. Malformed
// lines, rows without an id or text, and ids already seen in this run are
// skipped. A sink error aborts the run.
func (im *Importer) Import(ctx context.Context, root string) (Summary, error) {
	files, err := FindAcceptedFiles(root)
	if err != nil {
		return Summary{}, err
	}
	if len(files) == 0 {
		return Summary{}, fmt.Errorf("no %s files found under %s", AcceptedFile, root)
	}

	sum := Summary{Root: root, Version: im.version, FilesFound: len(files)}
	seen := map[string]bool{}

	for _, file := range files {
		stimuli, skipped, err := im.readFile(root, file)
		if err != nil {
			return sum, err
		}
		sum.Skipped += skipped

		for _, st := range stimuli {
			if seen[st.StimulusID] {
				sum.Skipped++
				continue
			}
			seen[st.StimulusID] = true

			if err := im.sink.PutStimulus(ctx, st); err != nil {
				return sum, fmt.Errorf("put stimulus %q: %w", st.StimulusID, err)
			}
			sum.Inserted++
		}
		slog.Debug("imported stimulus file", "file", file, "stimuli", len(stimuli), "skipped", skipped)
	}
	return sum, nil
}

func (im *Importer) readFile(root, file string) ([]models.Stimulus, int, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", file, err)
	}
	defer f.Close()

	rel, err := filepath.Rel(root, file)
	if err != nil {
		rel = file
	}

	var out []models.Stimulus
	skipped := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		st, ok := im.parseLine(rel, line)
		if !ok {
			skipped++
			continue
		}
		out = append(out, st)
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", file, err)
	}
	return out, skipped, nil
}

func (im *Importer) parseLine(rel, line string) (models.Stimulus, bool) {
	var r row
	if err := json.Unmarshal([]byte(line), &r); err != nil {
		return models.Stimulus{}, false
	}
	if r.Stimulus == nil || r.Stimulus.StimID == "" {
		return models.Stimulus{}, false
	}
	text := strings.TrimSpace(r.Stimulus.Text)
	if text == "" {
		return models.Stimulus{}, false
	}

	created, err := time.Parse(time.RFC3339, r.Stimulus.CreatedAt)
	if err != nil {
		created = im.now()
	}

	return models.Stimulus{
		StimulusID: r.Stimulus.StimID,
		Text:       text,
		Category:   deriveCategory(rel, r),
		Active:     true,
		Version:    im.version,
		SourcePath: filepath.ToSlash(rel),
		CreatedAt:  created.UTC(),
	}, true
}

// deriveCategory names a stimulus's category from its generation controls,
// falling back to the first directory of its path relative to the root.
func deriveCategory(rel string, r row) string {
	c := r.Controls
	relation := ""
	switch v := c.Layer3Relation.(type) {
	case string:
		relation = strings.ToLower(v)
	case float64:
		if v != 0 {
			relation = fmt.Sprint(v)
		}
	case bool:
		if v {
			relation = "true"
		}
	}
	if c.Layer1Dimension != "" && c.Layer1Direction != "" && relation != "" {
		return c.Layer1Dimension + "_" + c.Layer1Direction + "_" + relation
	}

	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) > 1 {
		return parts[0]
	}
	return Uncategorized
}
