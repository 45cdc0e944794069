package scene

import (
	"errors"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
)

// ErrDuplicateID is returned by AddShape when the id is already present.
// Callers generate ids with NewID and never reuse them, so hitting this
// means a caller bug rather than a race.
var ErrDuplicateID = errors.New("duplicate shape id")

// CommitOp names the local mutation that just committed.
type CommitOp string

const (
	CommitAdd    CommitOp = "add"
	CommitUpdate CommitOp = "update"
	CommitRemove CommitOp = "remove"
)

// Commit describes one committed local edit. Shape is set for add/update,
// ShapeID for remove.
type Commit struct {
	Op      CommitOp
	Shape   *Shape
	ShapeID string
}

// CommitFunc receives exactly one call per committed local mutation. The
// owner routes it to either local persistence or a sync publish, never both.
type CommitFunc func(Commit)

// Store holds the authoritative client-side scene: the ordered shape
// sequence, the selection, undo/redo history and the in-progress draft.
//
// Local mutations (AddShape, UpdateShape, RemoveShape) push a full snapshot
// onto the undo stack, clear the redo stack and fire the commit hook.
// Remote applications (ApplyAdded and friends) do none of that; they are
// idempotent merges of peer edits.
type Store struct {
	mu        sync.RWMutex
	shapes    []Shape
	selection []string // insertion order; first entry is the primary selection
	past      [][]Shape
	future    [][]Shape
	draft     *Shape

	onCommit CommitFunc
	logger   *log.Logger
}

// NewStore creates an empty scene store.
func NewStore(logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{logger: logger.With("component", "scene")}
}

// SetCommitFunc installs the commit hook. Pass nil to detach.
func (st *Store) SetCommitFunc(fn CommitFunc) {
	st.mu.Lock()
	st.onCommit = fn
	st.mu.Unlock()
}

// Shapes returns a deep copy of the shape sequence in paint order.
func (st *Store) Shapes() []Shape {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return CloneShapes(st.shapes)
}

// Len returns the number of shapes.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.shapes)
}

// ShapeByID returns a copy of the shape with the given id.
func (st *Store) ShapeByID(id string) (Shape, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	for _, s := range st.shapes {
		if s.ID == id {
			return s.Clone(), true
		}
	}
	return Shape{}, false
}

func (st *Store) indexOf(id string) int {
	for i, s := range st.shapes {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// snapshot must be called with the lock held, before the mutation.
func (st *Store) snapshot() {
	st.past = append(st.past, CloneShapes(st.shapes))
	st.future = nil
}

// AddShape appends a shape and commits the edit.
func (st *Store) AddShape(s Shape) error {
	if err := s.Validate(); err != nil {
		return err
	}
	st.mu.Lock()
	if st.indexOf(s.ID) >= 0 {
		st.mu.Unlock()
		return ErrDuplicateID
	}
	st.snapshot()
	st.shapes = append(st.shapes, s.Clone())
	fn := st.onCommit
	st.mu.Unlock()

	if fn != nil {
		fn(Commit{Op: CommitAdd, Shape: &s})
	}
	return nil
}

// UpdateShape applies the mutator to the shape with the given id and commits
// the edit. Unknown ids are a silent no-op: a remote delete may race a local
// update.
func (st *Store) UpdateShape(id string, mutate func(Shape) Shape) {
	st.mu.Lock()
	i := st.indexOf(id)
	if i < 0 {
		st.mu.Unlock()
		return
	}
	next := mutate(st.shapes[i].Clone())
	next.ID = id // the id is immutable
	if err := next.Validate(); err != nil {
		st.mu.Unlock()
		st.logger.Warn("rejecting update", "shape", id, "err", err)
		return
	}
	st.snapshot()
	st.shapes[i] = next.Clone()
	fn := st.onCommit
	st.mu.Unlock()

	if fn != nil {
		fn(Commit{Op: CommitUpdate, Shape: &next})
	}
}

// RemoveShape deletes a shape, prunes it from the selection and commits the
// edit. Unknown ids are a silent no-op.
func (st *Store) RemoveShape(id string) {
	st.mu.Lock()
	i := st.indexOf(id)
	if i < 0 {
		st.mu.Unlock()
		return
	}
	st.snapshot()
	st.shapes = slices.Delete(st.shapes, i, i+1)
	st.selection = slices.DeleteFunc(st.selection, func(sid string) bool { return sid == id })
	fn := st.onCommit
	st.mu.Unlock()

	if fn != nil {
		fn(Commit{Op: CommitRemove, ShapeID: id})
	}
}

// ReplaceAll swaps in a whole new shape sequence. Used for the initial room
// load and full resyncs; it records no history and fires no commit.
func (st *Store) ReplaceAll(shapes []Shape) {
	st.mu.Lock()
	st.shapes = CloneShapes(shapes)
	st.pruneSelection()
	st.mu.Unlock()
}

// Undo steps back one committed edit. The selection is cleared: what it
// referred to may no longer exist in the restored sequence.
func (st *Store) Undo() {
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.past) == 0 {
		return
	}
	prev := st.past[len(st.past)-1]
	st.past = st.past[:len(st.past)-1]
	st.future = append([][]Shape{CloneShapes(st.shapes)}, st.future...)
	st.shapes = prev
	st.selection = nil
}

// Redo reverses the most recent Undo.
func (st *Store) Redo() {
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.future) == 0 {
		return
	}
	next := st.future[0]
	st.future = st.future[1:]
	st.past = append(st.past, CloneShapes(st.shapes))
	st.shapes = next
	st.selection = nil
}

// ClearHistory drops both the undo and redo stacks. Called at room
// boundaries: once a room's scene is authoritative, an Undo must not be able
// to resurrect the pre-join scene and push it back to every peer.
func (st *Store) ClearHistory() {
	st.mu.Lock()
	st.past = nil
	st.future = nil
	st.mu.Unlock()
}

// CanUndo reports whether an Undo would change anything.
func (st *Store) CanUndo() bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.past) > 0
}

// CanRedo reports whether a Redo would change anything.
func (st *Store) CanRedo() bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.future) > 0
}

// pruneSelection drops selected ids that no longer resolve. Lock held.
func (st *Store) pruneSelection() {
	st.selection = slices.DeleteFunc(st.selection, func(id string) bool {
		return st.indexOf(id) < 0
	})
}

// SetSelection replaces the selection, dropping ids not present in the scene.
func (st *Store) SetSelection(ids []string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.selection = st.selection[:0]
	for _, id := range ids {
		if st.indexOf(id) >= 0 && !slices.Contains(st.selection, id) {
			st.selection = append(st.selection, id)
		}
	}
}

// ToggleSelection adds the id if absent, removes it if present. Ids not in
// the scene are silently dropped.
func (st *Store) ToggleSelection(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if i := slices.Index(st.selection, id); i >= 0 {
		st.selection = slices.Delete(st.selection, i, i+1)
		return
	}
	if st.indexOf(id) >= 0 {
		st.selection = append(st.selection, id)
	}
}

// Selection returns the selected ids in insertion order.
func (st *Store) Selection() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return slices.Clone(st.selection)
}

// PrimarySelection returns the first-inserted selected id, the stable target
// for single-shape operations.
func (st *Store) PrimarySelection() (string, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if len(st.selection) == 0 {
		return "", false
	}
	return st.selection[0], true
}

// SetDraft installs the in-progress shape preview. At most one draft exists;
// it is never persisted, never broadcast and never enters the sequence.
func (st *Store) SetDraft(s Shape) {
	st.mu.Lock()
	c := s.Clone()
	st.draft = &c
	st.mu.Unlock()
}

// Draft returns the current draft shape, if any.
func (st *Store) Draft() (Shape, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if st.draft == nil {
		return Shape{}, false
	}
	return st.draft.Clone(), true
}

// ClearDraft removes the draft preview.
func (st *Store) ClearDraft() {
	st.mu.Lock()
	st.draft = nil
	st.mu.Unlock()
}

// ApplyAdded merges a peer's added shape. Duplicate delivery is a no-op.
func (st *Store) ApplyAdded(s Shape) {
	if err := s.Validate(); err != nil {
		st.logger.Warn("dropping remote add", "err", err)
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.indexOf(s.ID) >= 0 {
		st.logger.Debug("remote add already present", "shape", s.ID)
		return
	}
	st.shapes = append(st.shapes, s.Clone())
}

// ApplyUpdated merges a peer's whole-shape overwrite. Unknown ids are a
// no-op.
func (st *Store) ApplyUpdated(s Shape) {
	if err := s.Validate(); err != nil {
		st.logger.Warn("dropping remote update", "err", err)
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	i := st.indexOf(s.ID)
	if i < 0 {
		return
	}
	st.shapes[i] = s.Clone()
}

// ApplyRemoved merges a peer's delete. Unknown ids are a no-op.
func (st *Store) ApplyRemoved(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	i := st.indexOf(id)
	if i < 0 {
		return
	}
	st.shapes = slices.Delete(st.shapes, i, i+1)
	st.selection = slices.DeleteFunc(st.selection, func(sid string) bool { return sid == id })
}

// ApplySynced replaces the whole sequence with the relay's authoritative
// copy. Like ReplaceAll it records no history.
func (st *Store) ApplySynced(shapes []Shape) {
	st.ReplaceAll(shapes)
}
