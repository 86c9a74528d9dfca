package models

import (
	"errors"
	"fmt"
)

var (
	ErrMissingStartNode  = errors.New("workflow has no start node")
	ErrMultipleStartNode = errors.New("workflow has more than one start node")
	ErrDanglingEdge      = errors.New("edge references unknown node")
)

// ValidateGraph checks that nodes form a runnable graph: exactly one start
// node and every edge pointing at a node of the same set. Cycles are allowed.
func ValidateGraph(nodes []*WorkflowNode) error {
	byID := make(map[string]*WorkflowNode, len(nodes))
	starts := 0

	for _, node := range nodes {
		byID[node.ID] = node

		if node.Kind == NodeKindStart {
			starts++
		}
	}

	switch {
	case starts == 0:
		return ErrMissingStartNode
	case starts > 1:
		return ErrMultipleStartNode
	}

	for _, node := range nodes {
		for _, edge := range node.Edges() {
			if _, ok := byID[edge]; !ok {
				return fmt.Errorf("%w: %s -> %s", ErrDanglingEdge, node.ID, edge)
			}
		}
	}

	return nil
}
