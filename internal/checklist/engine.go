// Package checklist maintains order checklists and derives completion
// percentages from them. All operations return new slices and leave the
// caller's slice untouched.
package checklist

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/erikfacundo/mechiv2-sub000/internal/apperr"
	"github.com/erikfacundo/mechiv2-sub000/internal/models"
)

// Engine applies checklist mutations.
type Engine struct {
	linker Linker
	now    func() time.Time
	newID  func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLinker replaces the default TextLinker.
func WithLinker(l Linker) Option {
	return func(e *Engine) { e.linker = l }
}

// WithClock sets the time source used for CompletedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDFunc sets the generator for new item ids.
func WithIDFunc(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// NewEngine creates an Engine with text-based linkage, the wall clock and
// random UUIDs unless overridden.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		linker: TextLinker{},
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CompletionPercentage returns round(100*completed/total) over every item,
// parents and children alike. An empty list is 0%.
func CompletionPercentage(items []models.ChecklistItem) int {
	if len(items) == 0 {
		return 0
	}
	done := 0
	for _, it := range items {
		if it.Completed {
			done++
		}
	}
	return int(math.Round(100 * float64(done) / float64(len(items))))
}

// Reconcile recomputes the percentage for items. If hint is non-nil and
// differs from the derived value, disagreed is true. The hint is never used.
func Reconcile(items []models.ChecklistItem, hint *int) (pct int, disagreed bool) {
	pct = CompletionPercentage(items)
	return pct, hint != nil && *hint != pct
}

// SetCompletion marks the item with id as completed or pending.
//
// When the target is top-level, every child linked to it is forced to the
// same state and CompletedAt. Toggling a child never touches its parent or
// siblings. CompletedAt is only stamped on a false->true transition so that
// repeating the call is a no-op.
func (e *Engine) SetCompletion(items []models.ChecklistItem, id string, completed bool) ([]models.ChecklistItem, error) {
	idx := indexOf(items, id)
	if idx < 0 {
		return nil, fmt.Errorf("checklist item %s: %w", id, apperr.ErrNotFound)
	}

	out := Clone(items)
	target := &out[idx]
	if completed {
		if !target.Completed || target.CompletedAt == nil {
			now := e.now()
			target.CompletedAt = &now
		}
	} else {
		target.CompletedAt = nil
	}
	target.Completed = completed

	if !target.IsTopLevel() {
		return out, nil
	}

	parent := *target
	for i := range out {
		if i == idx || !e.linker.IsChildOf(out[i], parent) {
			continue
		}
		out[i].Completed = completed
		out[i].CompletedAt = copyTime(parent.CompletedAt)
	}
	return out, nil
}

// AddItem appends a pending standalone item with the given text.
func (e *Engine) AddItem(items []models.ChecklistItem, text string) []models.ChecklistItem {
	out := Clone(items)
	return append(out, models.ChecklistItem{
		ID:   e.newID(),
		Task: strings.TrimSpace(text),
	})
}

// RemoveItem drops the item with id. Children of a removed parent are kept
// with their now-dangling ParentTask.
func RemoveItem(items []models.ChecklistItem, id string) []models.ChecklistItem {
	out := make([]models.ChecklistItem, 0, len(items))
	for _, it := range items {
		if it.ID == id {
			continue
		}
		out = append(out, cloneItem(it))
	}
	return out
}

// ExpandCategory builds a parent item for cat followed by one child per
// sub-item. If selected is non-empty only those labels become children, in
// the category's order.
func (e *Engine) ExpandCategory(cat models.Category, selected ...string) []models.ChecklistItem {
	parent := models.ChecklistItem{
		ID:    e.newID(),
		Task:  cat.Name,
		Notes: cat.Description,
	}
	out := []models.ChecklistItem{parent}

	var want map[string]struct{}
	if len(selected) > 0 {
		want = make(map[string]struct{}, len(selected))
		for _, s := range selected {
			want[s] = struct{}{}
		}
	}

	ref := e.linker.ParentRef(parent)
	for _, label := range cat.SubItems {
		if want != nil {
			if _, ok := want[label]; !ok {
				continue
			}
		}
		p := ref
		out = append(out, models.ChecklistItem{
			ID:         e.newID(),
			Task:       label,
			ParentTask: &p,
		})
	}
	return out
}

// Orphans returns the children whose parent reference matches no top-level
// item. Nothing is removed.
func (e *Engine) Orphans(items []models.ChecklistItem) []models.ChecklistItem {
	var out []models.ChecklistItem
	for _, it := range items {
		if it.IsTopLevel() {
			continue
		}
		linked := false
		for _, p := range items {
			if p.IsTopLevel() && e.linker.IsChildOf(it, p) {
				linked = true
				break
			}
		}
		if !linked {
			out = append(out, cloneItem(it))
		}
	}
	return out
}

// Clone deep-copies items, including pointer fields.
func Clone(items []models.ChecklistItem) []models.ChecklistItem {
	if items == nil {
		return nil
	}
	out := make([]models.ChecklistItem, len(items))
	for i, it := range items {
		out[i] = cloneItem(it)
	}
	return out
}

func cloneItem(it models.ChecklistItem) models.ChecklistItem {
	if it.ParentTask != nil {
		p := *it.ParentTask
		it.ParentTask = &p
	}
	it.CompletedAt = copyTime(it.CompletedAt)
	return it
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func indexOf(items []models.ChecklistItem, id string) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}
