package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/fatih/color"
	"github.com/go-logr/logr"
	"github.com/sethvargo/go-githubactions"
	"github.com/spf13/cobra"

	"github.com/bcnelson/portainer-stack-deploy/internal/config"
	"github.com/bcnelson/portainer-stack-deploy/internal/domain"
	"github.com/bcnelson/portainer-stack-deploy/internal/logging"
	"github.com/bcnelson/portainer-stack-deploy/internal/portainer"
	"github.com/bcnelson/portainer-stack-deploy/internal/render"
	"github.com/bcnelson/portainer-stack-deploy/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// flagOverrides holds command-line values that replace environment inputs.
type flagOverrides struct {
	host              string
	token             string
	swarmID           string
	endpointID        string
	stackName         string
	definition        string
	templateVariables string
	tagReplacements   string
	workspace         string
	logLevel          string
}

func newRootCommand() *cobra.Command {
	var flags flagOverrides

	cmd := &cobra.Command{
		Use:   "portainer-deploy",
		Short: "Create or update a Portainer stack",
		Long: `portainer-deploy creates a Portainer stack, or updates it when a stack with
the same name already exists. Inputs are read from the GitHub Actions
environment (INPUT_*) and can be overridden with flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			gha := githubactions.New(githubactions.WithWriter(out))

			cfg, err := config.Load()
			if err != nil {
				gha.Errorf("Failed to load configuration: %v", err)
				return err
			}
			flags.apply(cmd, cfg)
			if cfg.Portainer.Token != "" {
				gha.AddMask(cfg.Portainer.Token)
			}

			res, err := run(cmd.Context(), cfg)
			if err != nil {
				gha.Errorf("%s", err)
				return err
			}

			gha.SetOutput("action", string(res.Action))
			gha.SetOutput("stack-id", strconv.Itoa(res.StackID))
			color.New(color.FgGreen, color.Bold).Fprintln(out, "✅ Deployment done")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.host, "host", "", "Portainer URL, e.g. https://portainer.example.com (INPUT_PORTAINER-HOST)")
	f.StringVar(&flags.token, "token", "", "Portainer API key (INPUT_TOKEN)")
	f.StringVar(&flags.swarmID, "swarm-id", "", "swarm id; deploys a swarm stack when set (INPUT_SWARM-ID)")
	f.StringVar(&flags.endpointID, "endpoint-id", "", "Portainer endpoint id, defaults to 1 (INPUT_ENDPOINT-ID)")
	f.StringVar(&flags.stackName, "stack-name", "", "name of the stack to create or update (INPUT_STACK-NAME)")
	f.StringVar(&flags.definition, "stack-definition", "", "stack file path relative to the workspace (INPUT_STACK-DEFINITION)")
	f.StringVar(&flags.templateVariables, "template-variables", "", "JSON object of template variables (INPUT_TEMPLATE-VARIABLES)")
	f.StringVar(&flags.tagReplacements, "tag-replacements", "", "newline separated image:tag pairs (INPUT_TAG-REPLACEMENTS)")
	f.StringVar(&flags.workspace, "workspace", "", "directory stack files are resolved against (GITHUB_WORKSPACE)")
	f.StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error (LOG_LEVEL)")

	return cmd
}

// apply copies every flag the user set onto cfg.
func (o *flagOverrides) apply(cmd *cobra.Command, cfg *config.Config) {
	overrides := []struct {
		name string
		src  string
		dst  *string
	}{
		{"host", o.host, &cfg.Portainer.Host},
		{"token", o.token, &cfg.Portainer.Token},
		{"swarm-id", o.swarmID, &cfg.Stack.SwarmID},
		{"endpoint-id", o.endpointID, &cfg.Stack.EndpointID},
		{"stack-name", o.stackName, &cfg.Stack.Name},
		{"stack-definition", o.definition, &cfg.Stack.Definition},
		{"template-variables", o.templateVariables, &cfg.Stack.TemplateVariables},
		{"tag-replacements", o.tagReplacements, &cfg.Stack.TagReplacements},
		{"workspace", o.workspace, &cfg.Workspace.Root},
		{"log-level", o.logLevel, &cfg.Log.Level},
	}
	for _, ov := range overrides {
		if cmd.Flags().Changed(ov.name) {
			*ov.dst = ov.src
		}
	}
}

// run wires the configured collaborators and performs one deployment.
func run(ctx context.Context, cfg *config.Config) (*domain.DeployResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, flush, err := logging.New(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	defer flush()

	client, err := newDirectoryClient(cfg, log)
	if err != nil {
		return nil, err
	}

	req, err := cfg.DeploymentRequest()
	if err != nil {
		return nil, &domain.DeploymentError{StackName: cfg.Stack.Name, EndpointID: cfg.Stack.ParsedEndpointID(), Err: err}
	}

	svc := service.NewDeployService(client, render.New(cfg.Workspace.Root, log), log)
	return svc.Deploy(ctx, req)
}

// newDirectoryClient returns the Portainer client, or the file shim when
// one is configured.
func newDirectoryClient(cfg *config.Config, log logr.Logger) (portainer.DirectoryClient, error) {
	if cfg.UseFileShim() {
		log.Info("Using file shim for Portainer API", "file", cfg.Portainer.FileShim)
		return portainer.NewFileShim(cfg.Portainer.FileShim, log), nil
	}

	httpClient := &http.Client{Timeout: cfg.Portainer.Timeout}
	client, err := portainer.New(cfg.Portainer.Host, cfg.Portainer.Token, httpClient, log)
	if err != nil {
		return nil, fmt.Errorf("initializing portainer client: %w", err)
	}
	return client, nil
}
