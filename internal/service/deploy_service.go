package service

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/bcnelson/portainer-stack-deploy/internal/domain"
	"github.com/bcnelson/portainer-stack-deploy/internal/portainer"
	"github.com/bcnelson/portainer-stack-deploy/internal/render"
	"github.com/bcnelson/portainer-stack-deploy/internal/tags"
	"github.com/bcnelson/portainer-stack-deploy/internal/validation"
)

// DeployService creates or updates a single Portainer stack.
type DeployService struct {
	client   portainer.DirectoryClient
	renderer *render.Renderer
	log      logr.Logger
}

// NewDeployService creates a new DeployService.
func NewDeployService(client portainer.DirectoryClient, renderer *render.Renderer, log logr.Logger) *DeployService {
	return &DeployService{
		client:   client,
		renderer: renderer,
		log:      log,
	}
}

// Deploy reconciles the stack named in req: an existing stack with that
// name is updated, otherwise a new one is created. Every failure is
// returned as a *domain.DeploymentError wrapping the cause.
func (s *DeployService) Deploy(ctx context.Context, req domain.DeploymentRequest) (*domain.DeployResult, error) {
	log := s.log.WithValues("run", uuid.NewString(), "stack", req.StackName)
	log.Info("Using host", "host", req.Host)

	result, err := s.deploy(ctx, log, req)
	if err != nil {
		return nil, &domain.DeploymentError{
			StackName:  req.StackName,
			EndpointID: req.EndpointID,
			Err:        err,
		}
	}
	return result, nil
}

func (s *DeployService) deploy(ctx context.Context, log logr.Logger, req domain.DeploymentRequest) (*domain.DeployResult, error) {
	if err := validation.ValidateRequest(req); err != nil {
		return nil, err
	}

	stacks, err := s.client.ListStacks(ctx, req.EndpointID, req.SwarmID)
	if err != nil {
		return nil, err
	}
	existing := domain.FindStack(stacks, req.StackName)

	definition, err := s.obtainDefinition(ctx, log, req, existing)
	if err != nil {
		return nil, err
	}

	if req.HasTagReplacements() {
		spec := tags.Parse(req.TagReplacements)
		log.Info("Using image tag replacements", "images", spec.Images())
		replaced := tags.Replace(definition, spec)
		if diff := tags.Changes(definition, replaced); diff != "" {
			log.V(1).Info("Image tags rewritten", "diff", diff)
		} else {
			log.Info("Tag replacements did not change the stack definition")
		}
		definition = replaced
	}

	if existing != nil {
		log.Info("Found existing stack", "id", existing.ID, "endpoint", req.EndpointID)
		log.Info("Updating existing stack...")
		// The stack's own endpoint, not the request's, owns the update.
		if err := s.client.UpdateStack(ctx, existing.ID, existing.EndpointID, existing.Env, definition); err != nil {
			return nil, err
		}
		log.Info("Successfully updated existing stack")
		return &domain.DeployResult{
			Action:    domain.ActionUpdated,
			StackName: req.StackName,
			StackID:   existing.ID,
		}, nil
	}

	log.Info("Deploying new stack...", "kind", req.Kind().String())
	id, err := s.client.CreateStack(ctx, req.Kind(), req.EndpointID, req.StackName, definition, req.SwarmID)
	if err != nil {
		return nil, err
	}
	log.Info("Successfully created new stack", "id", id)
	return &domain.DeployResult{
		Action:    domain.ActionCreated,
		StackName: req.StackName,
		StackID:   id,
	}, nil
}

// obtainDefinition renders the definition source when one is given and
// otherwise falls back to the stored definition of the existing stack.
func (s *DeployService) obtainDefinition(ctx context.Context, log logr.Logger, req domain.DeploymentRequest, existing *domain.Stack) (string, error) {
	if req.Definition != "" {
		log.Info("Using stack definition file", "file", req.Definition)
		return s.renderer.Render(req.Definition, req.TemplateVariables)
	}
	if existing == nil {
		return "", &domain.NotFoundError{
			Resource: "stack",
			Name:     req.StackName,
			Message:  "no stack definition file provided and no existing stack found with name: " + req.StackName,
		}
	}

	log.Info("No stack definition file provided. Will use existing stack definition.")
	return s.client.GetStackFile(ctx, existing.ID)
}
