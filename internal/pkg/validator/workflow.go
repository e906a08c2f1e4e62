package validator

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/zyra-ai/zyra/internal/pkg/metrics"
)

// StartNodeID is the id the editor gives the entry node of every workflow.
const StartNodeID = "start"

// Node types with special meaning for validation
const (
	NodeTypeStart = "start"
	NodeTypeAgent = "agent"
)

// Issue codes
const (
	CodeEmptyWorkflow       = "EMPTY_WORKFLOW"
	CodeNoStartNode         = "NO_START_NODE"
	CodeDisconnectedNode    = "DISCONNECTED_NODE"
	CodeStartNotConnected   = "START_NOT_CONNECTED"
	CodeCycleDetected       = "CYCLE_DETECTED"
	CodeDeadEnd             = "DEAD_END"
	CodeAmbiguousBranch     = "AMBIGUOUS_BRANCH"
	CodeInvalidCondition    = "INVALID_CONDITION"
	CodeUnknownEdgeEndpoint = "UNKNOWN_EDGE_ENDPOINT"
	CodeNoAgentNodes        = "NO_AGENT_NODES"
)

// WorkflowNode represents a node of the visual editor graph
type WorkflowNode struct {
	ID   string                 `json:"id"`
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data,omitempty"`
}

func (n WorkflowNode) isStart() bool {
	return n.ID == StartNodeID || n.Type == NodeTypeStart
}

func (n WorkflowNode) hasAgent() bool {
	if n.Type == NodeTypeAgent {
		return true
	}
	id, _ := n.Data["agentId"].(string)
	return id != ""
}

func (n WorkflowNode) label() string {
	if label, ok := n.Data["label"].(string); ok && label != "" {
		return label
	}
	return n.ID
}

// WorkflowEdge represents a directed connection between two nodes
type WorkflowEdge struct {
	ID        string                 `json:"id"`
	Source    string                 `json:"source"`
	Target    string                 `json:"target"`
	Condition string                 `json:"condition,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// EffectiveCondition returns the edge condition, falling back to data.condition.
func (e WorkflowEdge) EffectiveCondition() string {
	if c := strings.TrimSpace(e.Condition); c != "" {
		return c
	}
	c, _ := e.Data["condition"].(string)
	return strings.TrimSpace(c)
}

// WorkflowValidationError is a single finding, reported either as an error or a warning
type WorkflowValidationError struct {
	Field   string `json:"field"`
	NodeID  string `json:"nodeId,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e WorkflowValidationError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("[%s] %s: %s", e.NodeID, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// WorkflowValidationResult holds the errors that block execution and the
// warnings that merely inform
type WorkflowValidationResult struct {
	Valid    bool                      `json:"valid"`
	Errors   []WorkflowValidationError `json:"errors"`
	Warnings []WorkflowValidationError `json:"warnings"`
}

func (r *WorkflowValidationResult) AddError(err WorkflowValidationError) {
	r.Valid = false
	r.Errors = append(r.Errors, err)
}

func (r *WorkflowValidationResult) AddWarning(w WorkflowValidationError) {
	r.Warnings = append(r.Warnings, w)
}

func (r *WorkflowValidationResult) Error() string {
	if r.Valid {
		return ""
	}
	var msgs []string
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// graph is the adjacency view shared by the structural checks
type graph struct {
	nodes    []WorkflowNode
	nodeIDs  map[string]bool
	outgoing map[string][]WorkflowEdge
	touched  map[string]bool
}

func buildGraph(nodes []WorkflowNode, edges []WorkflowEdge) *graph {
	g := &graph{
		nodes:    nodes,
		nodeIDs:  make(map[string]bool, len(nodes)),
		outgoing: make(map[string][]WorkflowEdge),
		touched:  make(map[string]bool),
	}
	for _, n := range nodes {
		g.nodeIDs[n.ID] = true
	}
	for _, e := range edges {
		g.outgoing[e.Source] = append(g.outgoing[e.Source], e)
		g.touched[e.Source] = true
		g.touched[e.Target] = true
	}
	return g
}

// ValidateWorkflow statically analyses a workflow graph before execution.
// It never fails: findings are classified into errors and warnings.
func ValidateWorkflow(nodes []WorkflowNode, edges []WorkflowEdge) *WorkflowValidationResult {
	result := &WorkflowValidationResult{
		Valid:    true,
		Errors:   []WorkflowValidationError{},
		Warnings: []WorkflowValidationError{},
	}
	defer func() { metrics.RecordValidation(result.Valid) }()

	if len(nodes) == 0 {
		result.AddError(WorkflowValidationError{
			Field:   "nodes",
			Code:    CodeEmptyWorkflow,
			Message: "Workflow is empty. Add at least one node",
		})
		return result
	}

	g := buildGraph(nodes, edges)

	var start *WorkflowNode
	for i := range nodes {
		if nodes[i].isStart() {
			start = &nodes[i]
			break
		}
	}
	if start == nil {
		result.AddError(WorkflowValidationError{
			Field:   "nodes",
			Code:    CodeNoStartNode,
			Message: "Workflow must have a start node",
		})
	}

	for _, n := range nodes {
		if n.isStart() || g.touched[n.ID] {
			continue
		}
		result.AddWarning(WorkflowValidationError{
			Field:   "nodes",
			NodeID:  n.ID,
			Code:    CodeDisconnectedNode,
			Message: fmt.Sprintf("Node '%s' is not connected to any other node", n.label()),
		})
	}

	if start != nil && len(g.outgoing[start.ID]) == 0 {
		result.AddError(WorkflowValidationError{
			Field:   "edges",
			NodeID:  start.ID,
			Code:    CodeStartNotConnected,
			Message: "Start node must be connected to at least one node",
		})
	}

	if cycle := g.findCycle(); cycle != nil {
		result.AddWarning(WorkflowValidationError{
			Field:   "edges",
			NodeID:  cycle[0],
			Code:    CodeCycleDetected,
			Message: fmt.Sprintf("Workflow contains a cycle (%s). Make sure the loop has an exit condition", strings.Join(cycle, " -> ")),
		})
	}

	for _, n := range nodes {
		if n.isStart() || len(g.outgoing[n.ID]) > 0 {
			continue
		}
		result.AddWarning(WorkflowValidationError{
			Field:   "nodes",
			NodeID:  n.ID,
			Code:    CodeDeadEnd,
			Message: fmt.Sprintf("Node '%s' has no outgoing connections; the workflow ends there", n.label()),
		})
	}

	for _, n := range nodes {
		out := g.outgoing[n.ID]
		if len(out) < 2 {
			continue
		}
		conditioned := false
		for _, e := range out {
			if e.EffectiveCondition() != "" {
				conditioned = true
				break
			}
		}
		if !conditioned {
			result.AddWarning(WorkflowValidationError{
				Field:   "edges",
				NodeID:  n.ID,
				Code:    CodeAmbiguousBranch,
				Message: fmt.Sprintf("Node '%s' has %d outgoing connections without conditions; all branches will run", n.label(), len(out)),
			})
		}
	}

	for i, e := range edges {
		cond := e.EffectiveCondition()
		if cond == "" {
			continue
		}
		if _, err := expr.Compile(cond); err != nil {
			result.AddWarning(WorkflowValidationError{
				Field:   fmt.Sprintf("edges[%d].condition", i),
				NodeID:  e.Source,
				Code:    CodeInvalidCondition,
				Message: fmt.Sprintf("Condition on edge %s -> %s cannot be parsed: %v", e.Source, e.Target, err),
			})
		}
	}

	for i, e := range edges {
		for _, endpoint := range []string{e.Source, e.Target} {
			if g.nodeIDs[endpoint] {
				continue
			}
			result.AddWarning(WorkflowValidationError{
				Field:   fmt.Sprintf("edges[%d]", i),
				NodeID:  endpoint,
				Code:    CodeUnknownEdgeEndpoint,
				Message: fmt.Sprintf("Edge references unknown node '%s'", endpoint),
			})
		}
	}

	hasAgent := false
	for _, n := range nodes {
		if n.hasAgent() {
			hasAgent = true
			break
		}
	}
	if !hasAgent {
		result.AddWarning(WorkflowValidationError{
			Field:   "nodes",
			Code:    CodeNoAgentNodes,
			Message: "Workflow has no agent nodes",
		})
	}

	return result
}

// findCycle runs a depth-first search with an explicit recursion stack and
// returns the first cycle found as a closed path of node ids.
func (g *graph) findCycle() []string {
	const (
		unvisited = iota
		onStack
		done
	)
	state := make(map[string]int, len(g.nodes))
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		state[id] = onStack
		stack = append(stack, id)
		for _, e := range g.outgoing[id] {
			switch state[e.Target] {
			case onStack:
				for i, sid := range stack {
					if sid == e.Target {
						cycle := append([]string(nil), stack[i:]...)
						return append(cycle, e.Target)
					}
				}
			case unvisited:
				if cycle := visit(e.Target); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		return nil
	}

	for _, n := range g.nodes {
		if state[n.ID] != unvisited {
			continue
		}
		if cycle := visit(n.ID); cycle != nil {
			return cycle
		}
	}
	return nil
}

// GetReachableNodes returns the ids reachable from the start node by
// breadth-first search, in visiting order.
func GetReachableNodes(nodes []WorkflowNode, edges []WorkflowEdge) []string {
	g := buildGraph(nodes, edges)
	visited := map[string]bool{StartNodeID: true}
	order := []string{StartNodeID}
	queue := []string{StartNodeID}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, e := range g.outgoing[id] {
			if visited[e.Target] {
				continue
			}
			visited[e.Target] = true
			order = append(order, e.Target)
			queue = append(queue, e.Target)
		}
	}
	return order
}

// FindUnreachableNodes returns the nodes the start node cannot reach.
func FindUnreachableNodes(nodes []WorkflowNode, edges []WorkflowEdge) []WorkflowNode {
	reachable := make(map[string]bool)
	for _, id := range GetReachableNodes(nodes, edges) {
		reachable[id] = true
	}

	var unreachable []WorkflowNode
	for _, n := range nodes {
		if !reachable[n.ID] {
			unreachable = append(unreachable, n)
		}
	}
	return unreachable
}
