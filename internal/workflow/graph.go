package workflow

import (
	"fmt"

	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/models"
)

// graph is the resolved walkable form of a workflow.
type graph struct {
	entry *models.WorkflowNode
	nodes map[string]*models.WorkflowNode
	bySrc map[string][]*models.WorkflowEdge
}

// buildGraph indexes the workflow and resolves its entry node: the declared
// one when set, otherwise the single node with no incoming edge.
func buildGraph(wf *models.Workflow) (*graph, error) {
	if len(wf.Nodes) == 0 {
		return nil, fmt.Errorf("workflow %s has no nodes", wf.ID)
	}

	g := &graph{
		nodes: make(map[string]*models.WorkflowNode, len(wf.Nodes)),
		bySrc: make(map[string][]*models.WorkflowEdge),
	}
	for i := range wf.Nodes {
		node := &wf.Nodes[i]
		g.nodes[node.ID] = node
	}

	hasIncoming := make(map[string]bool)
	for i := range wf.Edges {
		edge := &wf.Edges[i]
		if _, ok := g.nodes[edge.SourceID]; !ok {
			return nil, fmt.Errorf("edge %s references unknown source node %s", edge.ID, edge.SourceID)
		}
		if _, ok := g.nodes[edge.TargetID]; !ok {
			return nil, fmt.Errorf("edge %s references unknown target node %s", edge.ID, edge.TargetID)
		}
		g.bySrc[edge.SourceID] = append(g.bySrc[edge.SourceID], edge)
		hasIncoming[edge.TargetID] = true
	}

	if wf.EntryNodeID != nil && *wf.EntryNodeID != "" {
		entry, ok := g.nodes[*wf.EntryNodeID]
		if !ok {
			return nil, fmt.Errorf("entry node %s not found in workflow %s", *wf.EntryNodeID, wf.ID)
		}
		g.entry = entry
		return g, nil
	}

	for _, node := range wf.Nodes {
		if !hasIncoming[node.ID] {
			if g.entry != nil {
				return nil, fmt.Errorf("workflow %s has multiple entry candidates", wf.ID)
			}
			g.entry = g.nodes[node.ID]
		}
	}
	if g.entry == nil {
		// Fully cyclic graph with no declared entry: start at the first
		// node in definition order and let the step budget bound the walk.
		g.entry = g.nodes[wf.Nodes[0].ID]
	}
	return g, nil
}

// next follows the outgoing edge with the given label. An empty label
// matches the first unlabeled edge, or the only edge when there is one.
func (g *graph) next(node *models.WorkflowNode, label string) *models.WorkflowNode {
	edges := g.bySrc[node.ID]
	if len(edges) == 0 {
		return nil
	}
	if label == "" && len(edges) == 1 {
		return g.nodes[edges[0].TargetID]
	}
	for _, edge := range edges {
		if edge.Label == label {
			return g.nodes[edge.TargetID]
		}
	}
	return nil
}
