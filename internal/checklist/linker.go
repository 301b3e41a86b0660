package checklist

import "github.com/erikfacundo/mechiv2-sub000/internal/models"

// Linker decides which checklist items belong to which parent.
type Linker interface {
	// IsChildOf reports whether child is a sub-item of parent.
	IsChildOf(child, parent models.ChecklistItem) bool
	// ParentRef returns the value a new child stores in ParentTask to point at parent.
	ParentRef(parent models.ChecklistItem) string
}

// TextLinker links children to parents by the parent's Task text.
//
// Editing a parent's Task after children exist silently breaks the link.
// Orphans reports the resulting dangling children.
type TextLinker struct{}

// IsChildOf implements Linker.
func (TextLinker) IsChildOf(child, parent models.ChecklistItem) bool {
	if child.ParentTask == nil || parent.ParentTask != nil {
		return false
	}
	return *child.ParentTask == parent.Task
}

// ParentRef implements Linker.
func (TextLinker) ParentRef(parent models.ChecklistItem) string {
	return parent.Task
}
