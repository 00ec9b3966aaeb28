package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/papercomputeco/engram/pkg/memory"
)

const (
	AddTaskToolName      = "add_task"
	ListTasksToolName    = "list_tasks"
	CompleteTaskToolName = "complete_task"
)

// Task priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// ErrTaskNotFound is returned for an unknown task ID.
var ErrTaskNotFound = errors.New("task not found")

// Task is one entry of a TaskList.
type Task struct {
	ID          int        `json:"task_id"`
	Title       string     `json:"title"`
	Priority    string     `json:"priority,omitempty"`
	Done        bool       `json:"done"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TaskList is an in-process task list backing the todo tools.
type TaskList struct {
	mu     sync.Mutex
	tasks  []Task
	nextID int
	now    func() time.Time
}

// NewTaskList creates an empty TaskList.
func NewTaskList() *TaskList {
	return &TaskList{nextID: 1, now: time.Now}
}

// Add creates a task. A title matching an open task case-insensitively is
// not added twice; the existing task is returned with created false.
func (l *TaskList) Add(title, priority string) (Task, bool, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Task{}, false, fmt.Errorf("%w: title is required", ErrInvalidArgument)
	}
	priority, err := normalizePriority(priority)
	if err != nil {
		return Task{}, false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, t := range l.tasks {
		if !t.Done && strings.EqualFold(t.Title, title) {
			return t, false, nil
		}
	}

	t := Task{
		ID:        l.nextID,
		Title:     title,
		Priority:  priority,
		CreatedAt: l.now(),
	}
	l.nextID++
	l.tasks = append(l.tasks, t)
	return t, true, nil
}

// List returns tasks in creation order, open ones only unless
// includeDone is set.
func (l *TaskList) List(includeDone bool) []Task {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Task, 0, len(l.tasks))
	for _, t := range l.tasks {
		if t.Done && !includeDone {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Complete marks a task done. Completing a done task is a no-op.
func (l *TaskList) Complete(id int) (Task, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := slices.IndexFunc(l.tasks, func(t Task) bool { return t.ID == id })
	if i < 0 {
		return Task{}, fmt.Errorf("%w: %d", ErrTaskNotFound, id)
	}
	if !l.tasks[i].Done {
		now := l.now()
		l.tasks[i].Done = true
		l.tasks[i].CompletedAt = &now
	}
	return l.tasks[i], nil
}

func normalizePriority(p string) (string, error) {
	switch p = strings.ToLower(strings.TrimSpace(p)); p {
	case "", PriorityHigh, PriorityMedium, PriorityLow:
		return p, nil
	default:
		return "", fmt.Errorf("%w: priority must be high, medium or low", ErrInvalidArgument)
	}
}

var addTaskParameters = json.RawMessage(`{
  "type": "object",
  "properties": {
    "title": {"type": "string", "description": "Short task title"},
    "priority": {"type": "string", "enum": ["high", "medium", "low"]}
  },
  "required": ["title"]
}`)

var listTasksParameters = json.RawMessage(`{
  "type": "object",
  "properties": {
    "include_done": {"type": "boolean", "description": "Also list completed tasks"}
  }
}`)

var completeTaskParameters = json.RawMessage(`{
  "type": "object",
  "properties": {
    "task_id": {"type": "integer", "description": "ID returned by add_task or list_tasks"}
  },
  "required": ["task_id"]
}`)

// RegisterTodoTools adds the todo skill backed by list.
func RegisterTodoTools(r *Registry, list *TaskList) error {
	domains := []memory.Domain{memory.DomainTodo}

	tools := []Tool{
		{
			Name:        AddTaskToolName,
			Description: "Create one task. An open task with the same title is returned instead of a duplicate.",
			Parameters:  addTaskParameters,
			Domains:     domains,
			Handler: func(_ context.Context, args map[string]any) (any, error) {
				title, err := StringArg(args, "title")
				if err != nil {
					return nil, err
				}
				priority, _, err := OptionalStringArg(args, "priority")
				if err != nil {
					return nil, err
				}
				task, created, err := list.Add(title, priority)
				if err != nil {
					return nil, err
				}
				return map[string]any{"task": task, "created": created}, nil
			},
		},
		{
			Name:        ListTasksToolName,
			Description: "List tasks in creation order.",
			Parameters:  listTasksParameters,
			Domains:     domains,
			Handler: func(_ context.Context, args map[string]any) (any, error) {
				includeDone, err := BoolArg(args, "include_done", false)
				if err != nil {
					return nil, err
				}
				tasks := list.List(includeDone)
				return map[string]any{"tasks": tasks, "count": len(tasks)}, nil
			},
		},
		{
			Name:        CompleteTaskToolName,
			Description: "Mark a task as done.",
			Parameters:  completeTaskParameters,
			Domains:     domains,
			Handler: func(_ context.Context, args map[string]any) (any, error) {
				id, err := IntArg(args, "task_id", 0)
				if err != nil {
					return nil, err
				}
				return list.Complete(id)
			},
		},
	}

	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}
