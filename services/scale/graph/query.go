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

import "strings"

// Collection is the read-only view over the node collection.
//
// All query methods are pure: they never mutate, never fail, and return
// empty results for unknown IDs. Iteration follows insertion order so that
// results are reproducible, but no query result depends on that order (see
// CascadeDeleteSet).
//
// Mutation happens only through the Store, which owns the Collection.
type Collection struct {
	nodes map[string]*ScaleNode
	order []string
}

// newCollection creates an empty collection.
func newCollection() *Collection {
	return &Collection{nodes: make(map[string]*ScaleNode)}
}

// snapshot returns a deep copy detached from the live collection.
func (c *Collection) snapshot() *Collection {
	out := &Collection{
		nodes: make(map[string]*ScaleNode, len(c.nodes)),
		order: append([]string(nil), c.order...),
	}
	for id, node := range c.nodes {
		out.nodes[id] = node.Clone()
	}
	return out
}

// Len returns the number of nodes in the collection.
func (c *Collection) Len() int {
	return len(c.nodes)
}

// Has reports whether a node with the given ID exists.
func (c *Collection) Has(id string) bool {
	_, ok := c.nodes[id]
	return ok
}

// Get returns a deep copy of the node, or nil if it does not exist.
//
// Copies keep callers from reaching the stored instance's slices; the only
// mutation path is the Store.
func (c *Collection) Get(id string) *ScaleNode {
	return c.nodes[id].Clone()
}

// IDs returns all node IDs in insertion order.
func (c *Collection) IDs() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// All returns deep copies of every node in insertion order.
func (c *Collection) All() []*ScaleNode {
	out := make([]*ScaleNode, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.nodes[id].Clone())
	}
	return out
}

// Children returns the IDs of nodes whose ParentID matches parentID, in
// insertion order. Empty for unknown or childless parents.
func (c *Collection) Children(parentID string) []string {
	out := make([]string, 0)
	if parentID == "" {
		return out
	}
	for _, id := range c.order {
		if c.nodes[id].ParentID == parentID {
			out = append(out, id)
		}
	}
	return out
}

// Descendants returns every transitive child of startID in breadth-first
// order, excluding startID itself. Empty for unknown IDs.
func (c *Collection) Descendants(startID string) []string {
	out := make([]string, 0)
	if !c.Has(startID) {
		return out
	}
	queue := []string{startID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, child := range c.Children(current) {
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out
}

// CascadeDeleteSet returns the set of IDs that must be removed together to
// delete targetID without orphaning anything: the target plus all transitive
// descendants.
//
// Description:
//
//	Grows {targetID} by fixed-point iteration: repeatedly scan the full
//	collection and add any node whose parent is already in the set, until a
//	full scan adds nothing. Chosen over a maintained child index for
//	simplicity, and because the result is immune to collection iteration
//	order — reversing insertion order yields the identical set. First thing
//	to replace with an adjacency index if node counts grow large.
//
// Outputs:
//
//	map[string]bool - The cascade set. Empty (not nil) for unknown IDs.
func (c *Collection) CascadeDeleteSet(targetID string) map[string]bool {
	set := make(map[string]bool)
	if !c.Has(targetID) {
		return set
	}
	set[targetID] = true
	for {
		added := false
		for _, id := range c.order {
			node := c.nodes[id]
			if !set[id] && node.ParentID != "" && set[node.ParentID] {
				set[id] = true
				added = true
			}
		}
		if !added {
			break
		}
	}
	return set
}

// Roots returns the IDs of all root nodes in insertion order. Under the
// single-active-family invariant this has at most one element, but the query
// does not assume it.
func (c *Collection) Roots() []string {
	out := make([]string, 0, 1)
	for _, id := range c.order {
		if c.nodes[id].IsRoot {
			out = append(out, id)
		}
	}
	return out
}

// Root returns a copy of the first root found, or nil if none exists.
func (c *Collection) Root() *ScaleNode {
	for _, id := range c.order {
		if c.nodes[id].IsRoot {
			return c.nodes[id].Clone()
		}
	}
	return nil
}

// Parent returns a copy of the node's parent, or nil for the root or
// unknown IDs.
func (c *Collection) Parent(id string) *ScaleNode {
	node, ok := c.nodes[id]
	if !ok || node.ParentID == "" {
		return nil
	}
	return c.nodes[node.ParentID].Clone()
}

// Siblings returns the IDs of nodes sharing the node's parent, excluding the
// node itself. Empty for the root and for unknown IDs.
func (c *Collection) Siblings(id string) []string {
	out := make([]string, 0)
	node, ok := c.nodes[id]
	if !ok || node.ParentID == "" {
		return out
	}
	for _, sib := range c.Children(node.ParentID) {
		if sib != id {
			out = append(out, sib)
		}
	}
	return out
}

// BranchCount returns the number of children of parentID. A non-empty
// idPrefix restricts the count to children whose ID starts with it, for
// callers that namespace generated IDs.
func (c *Collection) BranchCount(parentID, idPrefix string) int {
	n := 0
	for _, id := range c.Children(parentID) {
		if idPrefix == "" || strings.HasPrefix(id, idPrefix) {
			n++
		}
	}
	return n
}
