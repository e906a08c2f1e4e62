package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codes(issues []WorkflowValidationError) []string {
	out := make([]string, 0, len(issues))
	for _, i := range issues {
		out = append(out, i.Code)
	}
	return out
}

func agentNode(id string) WorkflowNode {
	return WorkflowNode{ID: id, Type: NodeTypeAgent, Data: map[string]interface{}{"agentId": "agent-" + id}}
}

func TestValidateWorkflow_Empty(t *testing.T) {
	result := ValidateWorkflow(nil, nil)

	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, CodeEmptyWorkflow, result.Errors[0].Code)
	assert.Empty(t, result.Warnings)
}

func TestValidateWorkflow_NoStartNode(t *testing.T) {
	nodes := []WorkflowNode{agentNode("a"), agentNode("b")}
	edges := []WorkflowEdge{{ID: "e1", Source: "a", Target: "b"}}

	result := ValidateWorkflow(nodes, edges)

	assert.False(t, result.Valid)
	assert.Equal(t, []string{CodeNoStartNode}, codes(result.Errors))
}

func TestValidateWorkflow_StartWithoutOutgoingEdge(t *testing.T) {
	nodes := []WorkflowNode{{ID: "start", Type: "start"}, agentNode("a")}

	result := ValidateWorkflow(nodes, nil)

	assert.False(t, result.Valid)
	assert.Equal(t, []string{CodeStartNotConnected}, codes(result.Errors))
	assert.Contains(t, codes(result.Warnings), CodeDisconnectedNode)
}

func TestValidateWorkflow_CycleIsOnlyAWarning(t *testing.T) {
	nodes := []WorkflowNode{{ID: "start", Type: "start"}, agentNode("A"), agentNode("B")}
	edges := []WorkflowEdge{
		{ID: "e1", Source: "start", Target: "A"},
		{ID: "e2", Source: "A", Target: "B"},
		{ID: "e3", Source: "B", Target: "A"},
	}

	result := ValidateWorkflow(nodes, edges)

	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	require.Contains(t, codes(result.Warnings), CodeCycleDetected)
	for _, w := range result.Warnings {
		if w.Code == CodeCycleDetected {
			assert.Contains(t, w.Message, "A -> B -> A")
		}
	}
}

func TestValidateWorkflow_LinearWorkflow(t *testing.T) {
	nodes := []WorkflowNode{{ID: "start", Type: "start"}, agentNode("a"), agentNode("b")}
	edges := []WorkflowEdge{
		{ID: "e1", Source: "start", Target: "a"},
		{ID: "e2", Source: "a", Target: "b"},
	}

	result := ValidateWorkflow(nodes, edges)

	assert.True(t, result.Valid)
	// only the terminal node is reported, as information
	assert.Equal(t, []string{CodeDeadEnd}, codes(result.Warnings))
	assert.Equal(t, "b", result.Warnings[0].NodeID)
}

func TestValidateWorkflow_AmbiguousBranch(t *testing.T) {
	nodes := []WorkflowNode{{ID: "start", Type: "start"}, agentNode("a"), agentNode("b"), agentNode("c")}
	edges := []WorkflowEdge{
		{ID: "e1", Source: "start", Target: "a"},
		{ID: "e2", Source: "a", Target: "b"},
		{ID: "e3", Source: "a", Target: "c"},
	}

	result := ValidateWorkflow(nodes, edges)
	assert.Contains(t, codes(result.Warnings), CodeAmbiguousBranch)

	edges[1].Condition = `status == "ok"`
	result = ValidateWorkflow(nodes, edges)
	assert.NotContains(t, codes(result.Warnings), CodeAmbiguousBranch)
}

func TestValidateWorkflow_ConditionFromEdgeData(t *testing.T) {
	nodes := []WorkflowNode{{ID: "start", Type: "start"}, agentNode("a"), agentNode("b")}
	edges := []WorkflowEdge{
		{ID: "e1", Source: "start", Target: "a", Data: map[string]interface{}{"condition": "score > 0.5"}},
		{ID: "e2", Source: "start", Target: "b"},
	}

	result := ValidateWorkflow(nodes, edges)

	assert.NotContains(t, codes(result.Warnings), CodeAmbiguousBranch)
	assert.NotContains(t, codes(result.Warnings), CodeInvalidCondition)
}

func TestValidateWorkflow_InvalidCondition(t *testing.T) {
	nodes := []WorkflowNode{{ID: "start", Type: "start"}, agentNode("a")}
	edges := []WorkflowEdge{{ID: "e1", Source: "start", Target: "a", Condition: "status == ("}}

	result := ValidateWorkflow(nodes, edges)

	assert.True(t, result.Valid)
	assert.Contains(t, codes(result.Warnings), CodeInvalidCondition)
}

func TestValidateWorkflow_UnknownEndpointAndNoAgents(t *testing.T) {
	nodes := []WorkflowNode{{ID: "start", Type: "start"}, {ID: "slack", Type: "slack"}}
	edges := []WorkflowEdge{
		{ID: "e1", Source: "start", Target: "slack"},
		{ID: "e2", Source: "slack", Target: "ghost"},
	}

	result := ValidateWorkflow(nodes, edges)

	assert.True(t, result.Valid)
	assert.Contains(t, codes(result.Warnings), CodeUnknownEdgeEndpoint)
	assert.Contains(t, codes(result.Warnings), CodeNoAgentNodes)
}

func TestGetReachableNodes(t *testing.T) {
	nodes := []WorkflowNode{{ID: "start", Type: "start"}, agentNode("a"), agentNode("b"), agentNode("island")}
	edges := []WorkflowEdge{
		{ID: "e1", Source: "start", Target: "a"},
		{ID: "e2", Source: "a", Target: "b"},
		{ID: "e3", Source: "b", Target: "a"},
	}

	assert.Equal(t, []string{"start", "a", "b"}, GetReachableNodes(nodes, edges))

	unreachable := FindUnreachableNodes(nodes, edges)
	require.Len(t, unreachable, 1)
	assert.Equal(t, "island", unreachable[0].ID)
}
