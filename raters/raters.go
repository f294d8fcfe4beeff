// Package raters manages human evaluation of generated output: task
// creation from samples, rater assignment with a controlled overlap for
// agreement measurement, and Cohen's kappa inter-rater reliability.
package raters

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AltairaLabs/EvalKit/logger"
	"github.com/AltairaLabs/EvalKit/types"
)

// Scale identifies the rating scale of a criterion.
type Scale string

const (
	// ScaleBinary accepts 0 or 1.
	ScaleBinary Scale = "binary"
	// ScaleOrdinal5 accepts integers 1 through 5.
	ScaleOrdinal5 Scale = "ordinal-5"
	// ScaleOrdinal7 accepts integers 1 through 7.
	ScaleOrdinal7 Scale = "ordinal-7"
	// ScaleNumeric accepts any value in [0, 1].
	ScaleNumeric Scale = "numeric"
)

// validRating checks a rating against the scale bounds.
func (s Scale) validRating(v float64) bool {
	switch s {
	case ScaleBinary:
		return v == 0 || v == 1
	case ScaleOrdinal5:
		return v == math.Trunc(v) && v >= 1 && v <= 5
	case ScaleOrdinal7:
		return v == math.Trunc(v) && v >= 1 && v <= 7
	case ScaleNumeric:
		return v >= 0 && v <= 1
	default:
		return false
	}
}

// Criterion is one dimension raters score, with its weight in aggregate
// quality summaries.
type Criterion struct {
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Scale       Scale   `json:"scale" yaml:"scale"`
	Weight      float64 `json:"weight" yaml:"weight"`
}

// Evaluation is one rater's completed scoring of one task.
type Evaluation struct {
	Rater       string             `json:"rater"`
	Ratings     map[string]float64 `json:"ratings"` // criterion name to rating
	Comment     string             `json:"comment,omitempty"`
	SubmittedAt time.Time          `json:"submitted_at"`
}

// Task is one (input, output) sample awaiting human judgment.
type Task struct {
	ID          string       `json:"id"`
	Sample      types.Sample `json:"sample"`
	Assignees   []string     `json:"assignees"`
	Evaluations []Evaluation `json:"evaluations"`
}

// Completed reports whether every assignee has submitted.
func (t *Task) Completed() bool {
	return len(t.Assignees) > 0 && len(t.Evaluations) >= len(t.Assignees)
}

// Manager owns the task pool for one evaluation round.
type Manager struct {
	mu       sync.RWMutex
	criteria []Criterion
	tasks    []*Task
	byID     map[string]*Task
}

// NewManager creates a manager with the given criteria set.
func NewManager(criteria []Criterion) (*Manager, error) {
	if len(criteria) == 0 {
		return nil, fmt.Errorf("at least one criterion is required")
	}
	seen := make(map[string]bool, len(criteria))
	for _, criterion := range criteria {
		if criterion.Name == "" {
			return nil, fmt.Errorf("criterion name must not be empty")
		}
		if seen[criterion.Name] {
			return nil, fmt.Errorf("duplicate criterion %s", criterion.Name)
		}
		seen[criterion.Name] = true
		if !validScale(criterion.Scale) {
			return nil, fmt.Errorf("criterion %s has unknown scale %q", criterion.Name, criterion.Scale)
		}
		if criterion.Weight <= 0 {
			return nil, fmt.Errorf("criterion %s weight %g must be positive", criterion.Name, criterion.Weight)
		}
	}
	return &Manager{criteria: criteria, byID: make(map[string]*Task)}, nil
}

func validScale(s Scale) bool {
	switch s {
	case ScaleBinary, ScaleOrdinal5, ScaleOrdinal7, ScaleNumeric:
		return true
	}
	return false
}

// Criteria returns the criteria set.
func (m *Manager) Criteria() []Criterion {
	out := make([]Criterion, len(m.criteria))
	copy(out, m.criteria)
	return out
}

// CreateTasks adds one task per sample and returns the created task IDs in
// sample order.
func (m *Manager) CreateTasks(samples []types.Sample) ([]string, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples to create tasks from")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, len(samples))
	for i, sample := range samples {
		task := &Task{ID: uuid.New().String(), Sample: sample}
		m.tasks = append(m.tasks, task)
		m.byID[task.ID] = task
		ids[i] = task.ID
	}
	logger.Info("evaluation tasks created", "count", len(samples))
	return ids, nil
}

// Tasks returns a snapshot of all tasks in creation order.
func (m *Manager) Tasks() []Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Task, len(m.tasks))
	for i, task := range m.tasks {
		out[i] = *task
	}
	return out
}

// AssignWithOverlap assigns tasks to raters. The first ceil(fraction * n)
// tasks go to every rater so agreement can be measured; the remainder is
// distributed round-robin. Re-assignment of an already assigned pool is an
// error.
func (m *Manager) AssignWithOverlap(raterIDs []string, fraction float64) error {
	if len(raterIDs) == 0 {
		return fmt.Errorf("no raters to assign")
	}
	if fraction < 0 || fraction > 1 {
		return fmt.Errorf("overlap fraction %g outside [0, 1]", fraction)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.tasks) == 0 {
		return fmt.Errorf("no tasks to assign")
	}
	for _, task := range m.tasks {
		if len(task.Assignees) > 0 {
			return fmt.Errorf("task %s already assigned", task.ID)
		}
	}

	overlap := int(math.Ceil(fraction * float64(len(m.tasks))))
	for i, task := range m.tasks {
		if i < overlap {
			task.Assignees = append([]string(nil), raterIDs...)
		} else {
			task.Assignees = []string{raterIDs[(i-overlap)%len(raterIDs)]}
		}
	}
	logger.Info("tasks assigned", "raters", len(raterIDs), "overlap_tasks", overlap, "total", len(m.tasks))
	return nil
}

// TasksFor returns the tasks assigned to a rater, in creation order.
func (m *Manager) TasksFor(raterID string) []Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Task
	for _, task := range m.tasks {
		for _, assignee := range task.Assignees {
			if assignee == raterID {
				out = append(out, *task)
				break
			}
		}
	}
	return out
}

// SubmitEvaluation records a rater's scores for a task. The rater must be
// assigned, must not have already submitted, and every criterion must carry
// a rating valid for its scale.
func (m *Manager) SubmitEvaluation(taskID, raterID string, ratings map[string]float64, comment string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.byID[taskID]
	if !ok {
		return fmt.Errorf("unknown task %s", taskID)
	}
	assigned := false
	for _, assignee := range task.Assignees {
		if assignee == raterID {
			assigned = true
			break
		}
	}
	if !assigned {
		return fmt.Errorf("rater %s not assigned to task %s", raterID, taskID)
	}
	for _, evaluation := range task.Evaluations {
		if evaluation.Rater == raterID {
			return fmt.Errorf("rater %s already submitted for task %s", raterID, taskID)
		}
	}
	for _, criterion := range m.criteria {
		rating, ok := ratings[criterion.Name]
		if !ok {
			return fmt.Errorf("missing rating for criterion %s", criterion.Name)
		}
		if !criterion.Scale.validRating(rating) {
			return fmt.Errorf("rating %g invalid for criterion %s (%s scale)", rating, criterion.Name, criterion.Scale)
		}
	}
	for name := range ratings {
		if !m.hasCriterion(name) {
			return fmt.Errorf("unknown criterion %s", name)
		}
	}

	copied := make(map[string]float64, len(ratings))
	for name, rating := range ratings {
		copied[name] = rating
	}
	task.Evaluations = append(task.Evaluations, Evaluation{
		Rater:       raterID,
		Ratings:     copied,
		Comment:     comment,
		SubmittedAt: time.Now(),
	})
	return nil
}

func (m *Manager) hasCriterion(name string) bool {
	for _, criterion := range m.criteria {
		if criterion.Name == name {
			return true
		}
	}
	return false
}

// Progress summarizes completion over the pool.
type Progress struct {
	Total     int `json:"total"`
	Assigned  int `json:"assigned"`
	Completed int `json:"completed"`
}

// Progress reports pool completion.
func (m *Manager) Progress() Progress {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p := Progress{Total: len(m.tasks)}
	for _, task := range m.tasks {
		if len(task.Assignees) > 0 {
			p.Assigned++
		}
		if task.Completed() {
			p.Completed++
		}
	}
	return p
}
