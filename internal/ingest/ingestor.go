// Package ingest loads backlog documents from the inputs directory and
// upserts projects and tasks into the task store.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/vibeos/vibecore/internal/planning/domain"
	"github.com/vibeos/vibecore/internal/planning/infrastructure/persistence"
)

// unprefixedRank sorts files without a numeric prefix after all prefixed
// ones.
const unprefixedRank = 999

// Document is one backlog input file: a project and its tasks.
type Document struct {
	ProjectName     string         `json:"project_name"`
	DefaultCategory string         `json:"default_category"`
	Category        string         `json:"category"` // legacy fallback for default_category
	Priority        int            `json:"priority"`
	Color           string         `json:"color"`
	Tags            []string       `json:"tags"`
	RealityFactor   float64        `json:"reality_factor"`
	Tasks           []TaskDocument `json:"tasks"`
}

// TaskDocument is one task entry inside a Document. Every field except
// name is optional.
type TaskDocument struct {
	Name           string `json:"name"`
	Duration       int    `json:"duration"`
	Energy         string `json:"energy"`
	Type           string `json:"type"`
	FixedSlot      string `json:"fixed_slot"`
	DependsOn      string `json:"depends_on"`
	DeadlineOffset int    `json:"deadline_offset_days"`
	Notes          string `json:"notes"`
	Category       string `json:"category"`
	Priority       *int   `json:"priority"`
}

// Ingestor reads the inputs directory and feeds the task store.
type Ingestor struct {
	store  *persistence.TaskStore
	dir    string
	logger *slog.Logger
}

// New creates an ingestor over the given inputs directory.
func New(store *persistence.TaskStore, dir string, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{store: store, dir: dir, logger: logger}
}

// Run ingests every *.json document in the inputs directory and returns
// the number of newly inserted tasks. Unparseable files are logged and
// skipped; the rest of the directory continues.
func (i *Ingestor) Run(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(i.dir)
	if err != nil {
		if os.IsNotExist(err) {
			i.logger.Warn("inputs directory missing, nothing to ingest", "dir", i.dir)
			return 0, nil
		}
		return 0, fmt.Errorf("read inputs dir %s: %w", i.dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		files = append(files, entry.Name())
	}

	// Numeric-prefixed files first, ascending by N; the rest at the tail.
	sort.SliceStable(files, func(a, b int) bool {
		return fileRank(files[a]) < fileRank(files[b])
	})

	inserted := 0
	for _, name := range files {
		n, err := i.ingestFile(ctx, filepath.Join(i.dir, name))
		if err != nil {
			i.logger.Error("skipping input file", "file", name, "error", err)
			continue
		}
		inserted += n
	}

	i.logger.Info("ingestion finished", "files", len(files), "new_tasks", inserted)
	return inserted, nil
}

func (i *Ingestor) ingestFile(ctx context.Context, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return 0, fmt.Errorf("parse: %w", err)
	}

	project := projectFromDocument(doc, filepath.Base(path))
	projectID, err := i.store.UpsertProject(ctx, project)
	if err != nil {
		return 0, err
	}

	inserted := 0
	for _, td := range doc.Tasks {
		if td.Name == "" {
			i.logger.Warn("skipping task without name", "file", filepath.Base(path))
			continue
		}

		exists, err := i.store.TaskExists(ctx, projectID, td.Name)
		if err != nil {
			return inserted, err
		}
		if exists {
			continue
		}

		task := taskFromDocument(td, projectID, project)
		if err := i.store.InsertTask(ctx, task); err != nil {
			return inserted, err
		}
		inserted++
	}

	return inserted, nil
}

func projectFromDocument(doc Document, filename string) *domain.Project {
	p := domain.NewProject(doc.ProjectName)
	if p.Name == "" {
		p.Name = "General Project"
	}

	if doc.DefaultCategory != "" {
		p.Category = doc.DefaultCategory
	} else if doc.Category != "" {
		p.Category = doc.Category
	}

	if prio, ok := FilePriority(filename); ok {
		p.Priority = prio
	} else if doc.Priority != 0 {
		p.Priority = doc.Priority
	}

	if doc.Color != "" {
		p.Color = doc.Color
	}
	p.Tags = doc.Tags
	if doc.RealityFactor != 0 {
		p.RealityFactor = doc.RealityFactor
	}

	return p
}

func taskFromDocument(td TaskDocument, projectID string, project *domain.Project) *domain.Task {
	t := domain.NewTask(projectID, td.Name)

	t.Category = project.Category
	if td.Category != "" {
		t.Category = td.Category
	}

	t.Priority = project.Priority
	if td.Priority != nil {
		t.Priority = *td.Priority
	}

	if td.Duration > 0 {
		t.Duration = td.Duration
	}
	if td.Energy != "" {
		t.EnergyReq = domain.Energy(td.Energy)
	}
	if td.Type != "" {
		t.Type = domain.TaskType(td.Type)
	}
	if t.Type == domain.TaskFixed {
		t.FixedSlot = td.FixedSlot
	}

	t.Dependency = td.DependsOn
	t.DeadlineOffset = td.DeadlineOffset
	t.Notes = td.Notes

	// A task waiting on another starts blocked; the dependency must
	// complete before it becomes schedulable.
	if t.Dependency != "" {
		t.Status = domain.StatusBlocked
	}

	return t
}

// FilePriority maps a numeric filename prefix onto a project priority:
// "1_foo.json" -> 110, "2_bar.json" -> 100. The prefix always overrides
// the priority field inside the document.
func FilePriority(filename string) (int, bool) {
	base := filepath.Base(filename)
	idx := strings.IndexByte(base, '_')
	if idx <= 0 {
		return 0, false
	}
	n, err := strconv.Atoi(base[:idx])
	if err != nil {
		return 0, false
	}
	return 120 - n*10, true
}

func fileRank(filename string) int {
	base := filepath.Base(filename)
	idx := strings.IndexByte(base, '_')
	if idx <= 0 {
		return unprefixedRank
	}
	if n, err := strconv.Atoi(base[:idx]); err == nil {
		return n
	}
	return unprefixedRank
}
