package workflow

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// NodeID identifies a step of the graph.
type NodeID string

const (
	NodeFetchNews         NodeID = "fetch_news"
	NodeFetchFundamentals NodeID = "fetch_fundamentals"
	NodeSummarizeNews     NodeID = "summarize_news"
	NodeRecommend         NodeID = "recommend"
	NodeGuardrail         NodeID = "guardrail"
)

// NodeFunc reads a snapshot of the state and returns what it produced.
type NodeFunc func(ctx context.Context, st RunState) (Patch, error)

// Node 描述图中的一个步骤：依赖、可写字段与超时。
type Node struct {
	ID      NodeID
	Deps    []NodeID
	Writes  Field
	Timeout time.Duration
	Run     NodeFunc
}

// Graph is an immutable, validated DAG. Nodes without deps hang off the implicit start.
type Graph struct {
	nodes  map[NodeID]Node
	levels [][]NodeID
}

// NewGraph validates nodes and resolves their topological levels once.
func NewGraph(nodes ...Node) (*Graph, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("graph has no nodes")
	}
	index := make(map[NodeID]Node, len(nodes))
	var owned Field
	for _, n := range nodes {
		if strings.TrimSpace(string(n.ID)) == "" {
			return nil, fmt.Errorf("node with empty id")
		}
		if n.Run == nil {
			return nil, fmt.Errorf("node %s has no run func", n.ID)
		}
		if _, dup := index[n.ID]; dup {
			return nil, fmt.Errorf("duplicate node %s", n.ID)
		}
		if shared := owned & n.Writes; shared != 0 {
			return nil, fmt.Errorf("node %s writes %s already owned by another node", n.ID, fieldList(shared))
		}
		owned |= n.Writes
		index[n.ID] = n
	}
	for _, n := range nodes {
		for _, dep := range n.Deps {
			if _, ok := index[dep]; !ok {
				return nil, fmt.Errorf("node %s depends on unknown node %s", n.ID, dep)
			}
			if dep == n.ID {
				return nil, fmt.Errorf("node %s depends on itself", n.ID)
			}
		}
	}
	levels, err := resolveLevels(index)
	if err != nil {
		return nil, err
	}
	return &Graph{nodes: index, levels: levels}, nil
}

// resolveLevels groups nodes by longest distance from start (Kahn's algorithm).
func resolveLevels(index map[NodeID]Node) ([][]NodeID, error) {
	indegree := make(map[NodeID]int, len(index))
	children := make(map[NodeID][]NodeID, len(index))
	for id, n := range index {
		indegree[id] += 0
		for _, dep := range n.Deps {
			indegree[id]++
			children[dep] = append(children[dep], id)
		}
	}
	var current []NodeID
	for id, d := range indegree {
		if d == 0 {
			current = append(current, id)
		}
	}
	var levels [][]NodeID
	seen := 0
	for len(current) > 0 {
		sort.Slice(current, func(i, j int) bool { return current[i] < current[j] })
		levels = append(levels, current)
		seen += len(current)
		var next []NodeID
		for _, id := range current {
			for _, child := range children[id] {
				indegree[child]--
				if indegree[child] == 0 {
					next = append(next, child)
				}
			}
		}
		current = next
	}
	if seen != len(index) {
		return nil, fmt.Errorf("graph has a cycle")
	}
	return levels, nil
}

// Levels returns the resolved topological levels; nodes within a level are independent.
func (g *Graph) Levels() [][]NodeID {
	out := make([][]NodeID, len(g.levels))
	for i, lvl := range g.levels {
		out[i] = append([]NodeID(nil), lvl...)
	}
	return out
}

// Node returns the declaration for id.
func (g *Graph) Node(id NodeID) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

func (g *Graph) order() []NodeID {
	var out []NodeID
	for _, lvl := range g.levels {
		out = append(out, lvl...)
	}
	return out
}
