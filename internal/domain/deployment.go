package domain

import "strings"

// DeploymentRequest is the unit of work handled by the reconciler.
type DeploymentRequest struct {
	Host       string
	Token      string
	SwarmID    string // presence implies a swarm stack
	EndpointID int
	StackName  string

	// Definition is the path of the stack file, relative to the workspace.
	Definition        string
	TemplateVariables map[string]string
	// TagReplacements is the raw multi-line "image:tag" text.
	TagReplacements string
}

// Kind returns the stack type a new stack would be created with.
func (r DeploymentRequest) Kind() StackType {
	if r.SwarmID != "" {
		return StackTypeSwarm
	}
	return StackTypeCompose
}

// HasTagReplacements reports whether the request carries any non-blank
// tag replacement text.
func (r DeploymentRequest) HasTagReplacements() bool {
	return strings.TrimSpace(r.TagReplacements) != ""
}

// DeployAction records what the reconciler did to the remote stack.
type DeployAction string

const (
	ActionCreated DeployAction = "created"
	ActionUpdated DeployAction = "updated"
)

// DeployResult is returned after a successful deployment.
type DeployResult struct {
	Action    DeployAction `json:"action"`
	StackName string       `json:"stackName"`
	// StackID is zero when the remote did not echo the id of a created stack.
	StackID int `json:"stackId"`
}
