package domain

import "sort"

// The ordering core is pure and shared by the optimistic client and the
// authoritative server path, so both sides compute identical positions from
// identical inputs.
//
// Placement produces a rank key: a possibly fractional order value that
// sorts the moved task into the desired slot without touching any sibling.
// MoveColumnTask assigns the key and then settles both affected columns back
// to contiguous integers, so stored orders never accumulate float drift.

// columnTaskIndexes returns the indexes of tasks in the given column, sorted
// by ascending order.
func columnTaskIndexes(tasks []Task, columnID string) []int {
	var idx []int
	for i := range tasks {
		if tasks[i].ColumnID == columnID {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return tasks[idx[a]].Order < tasks[idx[b]].Order
	})
	return idx
}

// AppendOrder returns the order value placing a new or moved task at the
// bottom of the column: max(order)+1, or 0 for an empty column.
func AppendOrder(tasks []Task, columnID string) float64 {
	found := false
	max := 0.0
	for i := range tasks {
		if tasks[i].ColumnID != columnID {
			continue
		}
		if !found || tasks[i].Order > max {
			max = tasks[i].Order
		}
		found = true
	}
	if !found {
		return 0
	}
	return max + 1
}

// HeadOrder returns the order value placing a task above the current top of
// the column: min(order)-1, or 0 for an empty column. No sibling's relative
// order changes.
func HeadOrder(tasks []Task, columnID string) float64 {
	found := false
	min := 0.0
	for i := range tasks {
		if tasks[i].ColumnID != columnID {
			continue
		}
		if !found || tasks[i].Order < min {
			min = tasks[i].Order
		}
		found = true
	}
	if !found {
		return 0
	}
	return min - 1
}

// PlacementOrder resolves an anchor-based placement to a rank key. The task
// lands immediately after afterTaskID within columnID: the key is the
// midpoint between the anchor and its next sibling, or anchor+1 when the
// anchor is last. A nil anchor appends to the end of the column.
//
// Returns ErrTaskNotFound when the anchor is not in the target column.
func PlacementOrder(tasks []Task, columnID string, afterTaskID *string) (float64, error) {
	if afterTaskID == nil {
		return AppendOrder(tasks, columnID), nil
	}
	idx := columnTaskIndexes(tasks, columnID)
	pos := -1
	for i, ti := range idx {
		if tasks[ti].ID == *afterTaskID {
			pos = i
			break
		}
	}
	if pos == -1 {
		return 0, ErrTaskNotFound
	}
	anchor := tasks[idx[pos]].Order
	if pos == len(idx)-1 {
		return anchor + 1, nil
	}
	next := tasks[idx[pos+1]].Order
	return anchor + (next-anchor)/2, nil
}

// MoveColumnTask relocates the task identified by taskID to targetColumnID
// at the given rank key, restamps its UpdatedAt, and renumbers the vacated
// and destination columns to contiguous integer orders. Tasks in other
// columns are untouched. The slice is modified in place; on error it is left
// unchanged.
//
// When the key ties with an existing sibling's order the moved task lands
// above the incumbent.
func MoveColumnTask(tasks []Task, taskID, targetColumnID string, order float64, now string) error {
	moved := -1
	for i := range tasks {
		if tasks[i].ID == taskID {
			moved = i
			break
		}
	}
	if moved == -1 {
		return ErrTaskNotFound
	}

	sourceColumnID := tasks[moved].ColumnID
	tasks[moved].ColumnID = targetColumnID
	tasks[moved].Order = order
	tasks[moved].UpdatedAt = now

	renumberColumn(tasks, targetColumnID, moved)
	if sourceColumnID != targetColumnID {
		renumberColumn(tasks, sourceColumnID, -1)
	}
	return nil
}

// NormalizeColumns reassigns contiguous integer orders 0..n-1 to every task
// in the given columns, eliminating gaps, duplicates and fractional drift
// accumulated from midpoint inserts. Idempotent: normalizing twice yields
// the same result as normalizing once.
func NormalizeColumns(tasks []Task, columnIDs ...string) {
	seen := make(map[string]struct{}, len(columnIDs))
	for _, col := range columnIDs {
		if _, ok := seen[col]; ok {
			continue
		}
		seen[col] = struct{}{}
		renumberColumn(tasks, col, -1)
	}
}

// NormalizeAllColumns normalizes every column referenced by any task.
func NormalizeAllColumns(tasks []Task) {
	cols := make([]string, 0, 4)
	seen := make(map[string]struct{}, 4)
	for i := range tasks {
		if _, ok := seen[tasks[i].ColumnID]; ok {
			continue
		}
		seen[tasks[i].ColumnID] = struct{}{}
		cols = append(cols, tasks[i].ColumnID)
	}
	NormalizeColumns(tasks, cols...)
}

// renumberColumn rewrites the column's orders to 0..n-1. preferred, when
// non-negative, is the slice index of a task that wins order ties against
// its siblings.
func renumberColumn(tasks []Task, columnID string, preferred int) {
	idx := columnTaskIndexes(tasks, columnID)
	if preferred >= 0 {
		sort.SliceStable(idx, func(a, b int) bool {
			ta, tb := idx[a], idx[b]
			if tasks[ta].Order == tasks[tb].Order {
				return ta == preferred && tb != preferred
			}
			return tasks[ta].Order < tasks[tb].Order
		})
	}
	for rank, ti := range idx {
		tasks[ti].Order = float64(rank)
	}
}
