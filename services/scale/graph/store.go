// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
)

// EventKind identifies the mutation that produced an Event.
type EventKind int

const (
	// EventAdd is emitted after a node is inserted.
	EventAdd EventKind = iota

	// EventRemove is emitted after a single node is removed.
	EventRemove

	// EventCascade is emitted after an atomic cascade removal.
	EventCascade

	// EventUpdate is emitted after a field or item edit.
	EventUpdate

	// EventClear is emitted after the collection is emptied.
	EventClear
)

// eventKindNames maps EventKind values to their string representations.
var eventKindNames = map[EventKind]string{
	EventAdd:     "add",
	EventRemove:  "remove",
	EventCascade: "cascade",
	EventUpdate:  "update",
	EventClear:   "clear",
}

// String returns the string representation of the EventKind.
func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event describes a committed mutation.
type Event struct {
	// Kind is the mutation class.
	Kind EventKind

	// NodeIDs lists the affected node IDs, sorted for reproducibility.
	NodeIDs []string

	// Generation is the store generation after the commit.
	Generation uint64
}

// Observer receives post-commit notifications. Future features (persistence,
// undo, minimap refresh) subscribe here instead of editing the gateway.
type Observer interface {
	GraphChanged(ev Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ev Event)

// GraphChanged implements Observer.
func (f ObserverFunc) GraphChanged(ev Event) { f(ev) }

// StoreOptions configures Store behavior.
type StoreOptions struct {
	// Strict enables shape validation on Add. Disabling it is a documented
	// risk, not a recommended default.
	Strict bool

	// Layout holds the placement constants the store reports to callers.
	Layout LayoutConstants
}

// StoreOption is a functional option for configuring the Store.
type StoreOption func(*StoreOptions)

// WithRelaxedValidation disables shape validation on Add.
func WithRelaxedValidation() StoreOption {
	return func(o *StoreOptions) { o.Strict = false }
}

// WithLayoutConstants overrides the default placement constants.
func WithLayoutConstants(c LayoutConstants) StoreOption {
	return func(o *StoreOptions) { o.Layout = c }
}

// Store is the sole authorized mutation gateway for the scale graph.
//
// Lifecycle of a node: absent -> created (root|branch) -> updated* ->
// removed (terminal). A removed ID is never reused for another node.
//
// The Store also owns the "currently active node" reference, clearing it
// whenever the selected node is removed.
//
// Thread Safety:
//
//	All methods are safe for concurrent use. Writes hold an exclusive lock;
//	reads share it. View hands out a detached snapshot, so callers never
//	observe a mutation in progress through a previously obtained view.
type Store struct {
	mu         sync.RWMutex
	collection *Collection
	options    StoreOptions
	selected   string
	retired    map[string]bool
	generation uint64
	observers  []Observer
	logger     *slog.Logger
}

// NewStore creates a Store with an empty collection.
func NewStore(opts ...StoreOption) *Store {
	options := StoreOptions{
		Strict: true,
		Layout: DefaultLayoutConstants(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	s := &Store{
		collection: newCollection(),
		options:    options,
		retired:    make(map[string]bool),
		logger:     slog.Default().With("component", "scale_store"),
	}
	if !options.Strict {
		s.logger.Warn("store created with relaxed validation; malformed nodes will be accepted")
	}
	return s
}

// View returns a point-in-time snapshot of the collection. The snapshot is
// detached: mutations committed after View returns do not show through it.
func (s *Store) View() *Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collection.snapshot()
}

// Layout returns the placement constants in effect.
func (s *Store) Layout() LayoutConstants {
	return s.options.Layout
}

// Generation returns the number of committed mutations. Callers capture it
// before a suspending external call and compare on completion to detect that
// the graph changed underneath them.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Subscribe registers a post-commit observer. Observers are invoked while the
// write lock is held and must not call back into the Store.
func (s *Store) Subscribe(obs Observer) {
	if obs == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, obs)
}

// Selected returns the active node ID, or "" if nothing is selected.
func (s *Store) Selected() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// Select marks the node as the active selection.
func (s *Store) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.collection.Has(id) {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	s.selected = id
	return nil
}

// ClearSelection drops the active selection.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = ""
}

// Add inserts a node into the collection.
//
// Description:
//
//	In strict mode the node must pass shape validation: non-empty ID and
//	name, non-nil dimensions, finite position, and for branches a present
//	parent (which must exist, one level up), BranchIndex >= 0 and
//	PositionLocked. At most
//	one root may exist; a second root is rejected rather than silently
//	replacing the family (that path goes through Clear).
//
//	The store keeps its own deep copy, so the caller's node can be reused
//	or dropped freely after Add returns.
//
// Errors:
//
//	ErrInvalidNode - Shape validation failed (wraps a field diagnostic).
//	ErrDuplicateNode - A node with this ID already exists.
//	ErrIDRetired - The ID belonged to a removed node.
//	ErrRootExists - A root is already present.
//	ErrParentNotFound - The branch references an absent parent.
func (s *Store) Add(node *ScaleNode) error {
	if node == nil {
		return fmt.Errorf("%w: node is nil", ErrInvalidNode)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.options.Strict {
		if err := s.validateShape(node); err != nil {
			return err
		}
	}
	if s.collection.Has(node.ID) {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, node.ID)
	}
	if s.retired[node.ID] {
		return fmt.Errorf("%w: %s", ErrIDRetired, node.ID)
	}
	if node.IsRoot && len(s.collection.Roots()) > 0 {
		return ErrRootExists
	}
	if !node.IsRoot {
		parent, ok := s.collection.nodes[node.ParentID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrParentNotFound, node.ParentID)
		}
		if s.options.Strict && node.Depth != parent.Depth+1 {
			return fmt.Errorf("%w: depth %d under parent at depth %d", ErrInvalidNode, node.Depth, parent.Depth)
		}
	}

	stored := node.Clone()
	s.collection.nodes[stored.ID] = stored
	s.collection.order = append(s.collection.order, stored.ID)
	s.commit(EventAdd, []string{stored.ID})
	s.logger.Debug("node added",
		"node_id", stored.ID,
		"is_root", stored.IsRoot,
		"depth", stored.Depth,
		"items", ItemCount(stored.Dimensions))
	return nil
}

// validateShape checks the required node shape, returning a diagnostic that
// names the offending field.
func (s *Store) validateShape(node *ScaleNode) error {
	switch {
	case node.ID == "":
		return fmt.Errorf("%w: id is empty", ErrInvalidNode)
	case node.Name == "":
		return fmt.Errorf("%w: name is empty", ErrInvalidNode)
	case node.Dimensions == nil:
		return fmt.Errorf("%w: dimensions is missing", ErrInvalidNode)
	case !finite(node.Position.X) || !finite(node.Position.Y):
		return fmt.Errorf("%w: position must have numeric x/y", ErrInvalidNode)
	}
	if node.IsRoot {
		if node.ParentID != "" {
			return fmt.Errorf("%w: root must not have parent_id", ErrInvalidNode)
		}
		if node.Depth != 0 {
			return fmt.Errorf("%w: root depth must be 0", ErrInvalidNode)
		}
		return nil
	}
	switch {
	case node.ParentID == "":
		return fmt.Errorf("%w: parent_id is missing", ErrInvalidNode)
	case node.BranchIndex < 0:
		return fmt.Errorf("%w: branch_index must be >= 0", ErrInvalidNode)
	case !node.PositionLocked:
		return fmt.Errorf("%w: position_locked must be true for branches", ErrInvalidNode)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Remove deletes a single node.
//
// Description:
//
//	Removing an unknown ID is a no-op. The root is protected; nodes with
//	children are refused so that referential integrity can only be broken
//	through no path (subtrees go through RemoveCascade). Clears the active
//	selection if it pointed at the removed node.
//
// Errors:
//
//	ErrRootProtected - The target is the root.
//	ErrHasChildren - The target still has children.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.collection.nodes[id]
	if !ok {
		return nil
	}
	if node.IsRoot {
		return ErrRootProtected
	}
	if len(s.collection.Children(id)) > 0 {
		return fmt.Errorf("%w: %s", ErrHasChildren, id)
	}
	s.delete(id)
	s.commit(EventRemove, []string{id})
	s.logger.Debug("node removed", "node_id", id)
	return nil
}

// RemoveCascade atomically removes a whole cascade set.
//
// Description:
//
//	The set must be exactly the output of CascadeDeleteSet: transitively
//	closed under the child relation. A set that would orphan nodes is
//	refused before anything is touched, so the collection is never left
//	with a partial subtree. IDs absent from the collection are ignored.
//
// Errors:
//
//	ErrRootProtected - The set contains the root.
//	ErrPartialCascade - Some member's child is outside the set.
func (s *Store) RemoveCascade(set map[string]bool) error {
	if len(set) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range set {
		node, ok := s.collection.nodes[id]
		if !ok {
			continue
		}
		if node.IsRoot {
			return ErrRootProtected
		}
		for _, child := range s.collection.Children(id) {
			if !set[child] {
				return fmt.Errorf("%w: %s has child %s outside the set", ErrPartialCascade, id, child)
			}
		}
	}

	removed := make([]string, 0, len(set))
	for id := range set {
		if s.collection.Has(id) {
			s.delete(id)
			removed = append(removed, id)
		}
	}
	if len(removed) == 0 {
		return nil
	}
	sort.Strings(removed)
	s.commit(EventCascade, removed)
	s.logger.Info("cascade removed", "count", len(removed))
	return nil
}

// NodePatch is the set of node fields Update may change. Lineage fields are
// deliberately absent: they are frozen at creation.
type NodePatch struct {
	Name      *string
	Collapsed *bool
}

// Update shallow-merges the patch into an existing node.
func (s *Store) Update(id string, patch NodePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.collection.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if patch.Name != nil {
		node.Name = *patch.Name
	}
	if patch.Collapsed != nil {
		node.Collapsed = *patch.Collapsed
	}
	s.commit(EventUpdate, []string{id})
	return nil
}

// SetItemText edits an item's statement text in place.
func (s *Store) SetItemText(nodeID, itemID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, err := s.findItem(nodeID, itemID)
	if err != nil {
		return err
	}
	item.Text = text
	s.commit(EventUpdate, []string{nodeID})
	return nil
}

// SetItemRubric replaces an item's current rubric.
//
// The baseline rubric is untouched; divergence from it is a display fact,
// not a constraint. Source must record how the new tags were produced
// (edited or re-extracted), never inherited.
func (s *Store) SetItemRubric(nodeID, itemID string, tags []string, source RubricSource) error {
	if source == RubricSourceInherited {
		return fmt.Errorf("%w: rubric edits cannot claim inheritance", ErrInvalidNode)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item, err := s.findItem(nodeID, itemID)
	if err != nil {
		return err
	}
	item.CurrentRubric = append([]string(nil), tags...)
	item.RubricSource = source
	s.commit(EventUpdate, []string{nodeID})
	return nil
}

func (s *Store) findItem(nodeID, itemID string) (*Item, error) {
	node, ok := s.collection.nodes[nodeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}
	for di := range node.Dimensions {
		items := node.Dimensions[di].Items
		for ii := range items {
			if items[ii].ItemID == itemID {
				return &items[ii], nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s in node %s", ErrItemNotFound, itemID, nodeID)
}

// Clear empties the collection, drops the selection, and forgets retired
// IDs.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.collection.IDs()
	s.collection = newCollection()
	s.retired = make(map[string]bool)
	s.selected = ""
	s.commit(EventClear, removed)
	s.logger.Info("collection cleared", "removed", len(removed))
}

// Replace atomically swaps the whole family for a single new root.
//
// Description:
//
//	Validation runs before anything is dropped, so a rejected root leaves
//	the existing collection untouched. On success the old family goes, the
//	new root is inserted, retired IDs are forgotten, and the root becomes
//	the active selection. Observers see an EventClear followed by an
//	EventAdd.
//
// Errors:
//
//	ErrInvalidNode - The node is nil, is not a root, or fails shape
//	validation in strict mode.
func (s *Store) Replace(root *ScaleNode) error {
	if root == nil {
		return fmt.Errorf("%w: node is nil", ErrInvalidNode)
	}
	if !root.IsRoot {
		return fmt.Errorf("%w: replacement must be a root", ErrInvalidNode)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.options.Strict {
		if err := s.validateShape(root); err != nil {
			return err
		}
	}

	removed := s.collection.IDs()
	s.collection = newCollection()
	s.retired = make(map[string]bool)
	stored := root.Clone()
	s.collection.nodes[stored.ID] = stored
	s.collection.order = append(s.collection.order, stored.ID)
	s.selected = stored.ID
	s.commit(EventClear, removed)
	s.commit(EventAdd, []string{stored.ID})
	s.logger.Info("family replaced",
		"node_id", stored.ID,
		"removed", len(removed),
		"items", ItemCount(stored.Dimensions))
	return nil
}

// delete drops a node from the collection and retires its ID.
func (s *Store) delete(id string) {
	delete(s.collection.nodes, id)
	for i, ordered := range s.collection.order {
		if ordered == id {
			s.collection.order = append(s.collection.order[:i], s.collection.order[i+1:]...)
			break
		}
	}
	s.retired[id] = true
	if s.selected == id {
		s.selected = ""
	}
}

// commit bumps the generation and notifies observers.
func (s *Store) commit(kind EventKind, ids []string) {
	s.generation++
	ev := Event{Kind: kind, NodeIDs: ids, Generation: s.generation}
	for _, obs := range s.observers {
		obs.GraphChanged(ev)
	}
}
