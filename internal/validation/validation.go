// Package validation checks deployment inputs before anything is sent to
// the remote API.
package validation

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/bcnelson/portainer-stack-deploy/internal/domain"
)

// Input names as they appear in the action definition.
const (
	FieldHost            = "portainer-host"
	FieldToken           = "token"
	FieldTimeout         = "timeout"
	FieldEndpointID      = "endpoint-id"
	FieldStackName       = "stack-name"
	FieldStackDefinition = "stack-definition"
)

// ValidateHost checks that host is an absolute http or https URL.
func ValidateHost(host string) error {
	if host == "" {
		return fmt.Errorf("host must not be empty")
	}
	u, err := url.Parse(host)
	if err != nil {
		return fmt.Errorf("host is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("host must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("host must include a hostname")
	}
	return nil
}

// ValidateStackName checks that a stack name is usable as a lookup key.
func ValidateStackName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("stack name must not be empty")
	}
	if name != strings.TrimSpace(name) {
		return fmt.Errorf("stack name must not have leading or trailing whitespace")
	}
	return nil
}

// ValidateRequest checks the input combination of a deployment request.
// At least one of a definition source or tag replacements is required.
func ValidateRequest(req domain.DeploymentRequest) error {
	var errs ValidationErrors

	if err := ValidateStackName(req.StackName); err != nil {
		errs.Add(FieldStackName, req.StackName, err.Error())
	}
	if req.EndpointID < 0 {
		errs.Add(FieldEndpointID, strconv.Itoa(req.EndpointID), "endpoint id must not be negative")
	}
	if req.Definition == "" && !req.HasTagReplacements() {
		errs.Add(FieldStackDefinition, "", "either stack definition or tag replacements must be provided")
	}

	return errs.Err()
}
