package results

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrRunNotFound is returned when a run ID does not match any stored run.
var ErrRunNotFound = errors.New("run not found")

// RunStore provides read access to persisted run reports.
type RunStore interface {
	// ListRuns returns summaries of all runs, newest first.
	ListRuns() ([]RunSummary, error)
	// GetRun returns a single full report.
	GetRun(id string) (*RunReport, error)
	// Summary returns aggregate metrics across all runs.
	Summary() (*AggregateSummary, error)
}

// RunSummary is the list-view projection of a report.
type RunSummary struct {
	ID          string  `json:"id"`
	Participant string  `json:"participant,omitempty"`
	TaskCount   int     `json:"task_count"`
	Succeeded   int     `json:"succeeded"`
	AvgScore    float64 `json:"avg_score"`
	Timestamp   string  `json:"timestamp"`
}

// AggregateSummary covers every stored run.
type AggregateSummary struct {
	TotalRuns   int     `json:"total_runs"`
	TotalTasks  int     `json:"total_tasks"`
	SuccessRate float64 `json:"success_rate"`
	AvgScore    float64 `json:"avg_score"`
}

// FileStore reads run report JSON files from a directory.
type FileStore struct {
	dir string

	mu     sync.RWMutex
	runs   map[string]*RunReport
	loaded bool
}

// NewFileStore creates a FileStore over dir. A missing directory behaves
// like an empty one.
func NewFileStore(dir string) *FileStore {
	return &FileStore{
		dir:  dir,
		runs: make(map[string]*RunReport),
	}
}

func (fs *FileStore) load() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.runs = make(map[string]*RunReport)

	if fs.dir == "" {
		fs.loaded = true
		return nil
	}

	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		if os.IsNotExist(err) {
			fs.loaded = true
			return nil
		}
		return err
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(fs.dir, e.Name()))
		if err != nil {
			continue
		}
		var report RunReport
		if err := json.Unmarshal(data, &report); err != nil {
			continue
		}
		if report.RunID == "" {
			report.RunID = strings.TrimSuffix(e.Name(), ".json")
		}
		fs.runs[report.RunID] = &report
	}

	fs.loaded = true
	return nil
}

func (fs *FileStore) ensureLoaded() error {
	fs.mu.RLock()
	if fs.loaded {
		fs.mu.RUnlock()
		return nil
	}
	fs.mu.RUnlock()
	return fs.load()
}

// Reload forces a fresh read of all report files from disk.
func (fs *FileStore) Reload() error {
	return fs.load()
}

// ListRuns returns summaries of all runs, newest first.
func (fs *FileStore) ListRuns() ([]RunSummary, error) {
	if err := fs.ensureLoaded(); err != nil {
		return nil, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	runs := make([]RunSummary, 0, len(fs.runs))
	for _, r := range fs.runs {
		runs = append(runs, RunSummary{
			ID:          r.RunID,
			Participant: r.Participant,
			TaskCount:   r.Digest.TotalTasks,
			Succeeded:   r.Digest.Succeeded,
			AvgScore:    r.Digest.AvgScore,
			Timestamp:   r.Timestamp.Format("2006-01-02T15:04:05Z"),
		})
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp > runs[j].Timestamp
	})
	return runs, nil
}

// GetRun returns a single full report.
func (fs *FileStore) GetRun(id string) (*RunReport, error) {
	if err := fs.ensureLoaded(); err != nil {
		return nil, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	r, ok := fs.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return r, nil
}

// Summary returns aggregate metrics across all runs.
func (fs *FileStore) Summary() (*AggregateSummary, error) {
	if err := fs.ensureLoaded(); err != nil {
		return nil, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	resp := &AggregateSummary{}
	if len(fs.runs) == 0 {
		return resp, nil
	}

	succeeded := 0
	scoreSum := 0.0
	for _, r := range fs.runs {
		resp.TotalRuns++
		resp.TotalTasks += r.Digest.TotalTasks
		succeeded += r.Digest.Succeeded
		scoreSum += r.Digest.AvgScore
	}
	if resp.TotalTasks > 0 {
		resp.SuccessRate = round4(float64(succeeded) / float64(resp.TotalTasks))
	}
	resp.AvgScore = round4(scoreSum / float64(resp.TotalRuns))

	return resp, nil
}

var _ RunStore = (*FileStore)(nil)
