// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routing

import (
	"container/heap"

	"github.com/AleutianAI/wayfinder/services/wayfinder/graph"
)

type openEntry struct {
	node int
	g    float64
	f    float64
}

// openSet is a binary min-heap of frontier entries ordered by f, then by
// larger g, then by node id. Superseded entries stay in the heap and are
// skipped when popped.
type openSet struct {
	entries []openEntry
	snap    *graph.Snapshot
}

var _ heap.Interface = (*openSet)(nil)

func (q *openSet) Len() int { return len(q.entries) }

func (q *openSet) Less(i, j int) bool {
	a, b := &q.entries[i], &q.entries[j]
	if a.f != b.f {
		return a.f < b.f
	}
	if a.g != b.g {
		return a.g > b.g
	}
	return q.snap.NodeAt(a.node).ID < q.snap.NodeAt(b.node).ID
}

func (q *openSet) Swap(i, j int) { q.entries[i], q.entries[j] = q.entries[j], q.entries[i] }

func (q *openSet) Push(x any) { q.entries = append(q.entries, x.(openEntry)) }

func (q *openSet) Pop() any {
	last := len(q.entries) - 1
	e := q.entries[last]
	q.entries = q.entries[:last]
	return e
}

func (q *openSet) push(e openEntry) { heap.Push(q, e) }

func (q *openSet) pop() openEntry { return heap.Pop(q).(openEntry) }
