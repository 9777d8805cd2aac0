package portainer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"sync"

	"github.com/go-logr/logr"

	"github.com/bcnelson/portainer-stack-deploy/internal/domain"
)

// DefaultShimVersion is the version a FileShim reports when its state file
// does not record one.
const DefaultShimVersion = "2.19.0"

// FileShim is a DirectoryClient that keeps stacks in a local JSON file
// instead of calling Portainer. It is meant for dry runs and testing.
type FileShim struct {
	filePath string
	log      logr.Logger
	mu       sync.Mutex
}

// Ensure FileShim implements DirectoryClient.
var _ DirectoryClient = (*FileShim)(nil)

type shimStack struct {
	domain.Stack
	StackFileContent string `json:"StackFileContent"`
}

type shimState struct {
	Version string      `json:"version,omitempty"`
	NextID  int         `json:"nextId"`
	Stacks  []shimStack `json:"stacks"`
}

// NewFileShim creates a new file-based shim. The state file is created on
// the first write.
func NewFileShim(filePath string, log logr.Logger) *FileShim {
	return &FileShim{
		filePath: filePath,
		log:      log,
	}
}

// load reads the state file; a missing file is an empty registry.
func (f *FileShim) load() (*shimState, error) {
	data, err := os.ReadFile(f.filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &shimState{NextID: 1}, nil
		}
		return nil, fmt.Errorf("reading shim file: %w", err)
	}

	var state shimState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing shim file: %w", err)
	}
	if state.NextID < 1 {
		state.NextID = 1
	}
	for _, s := range state.Stacks {
		if s.ID >= state.NextID {
			state.NextID = s.ID + 1
		}
	}
	return &state, nil
}

func (f *FileShim) save(state *shimState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling shim state: %w", err)
	}
	if err := os.WriteFile(f.filePath, data, 0644); err != nil {
		return fmt.Errorf("writing shim file: %w", err)
	}
	return nil
}

// ListStacks applies the same scoping rules as the remote API.
func (f *FileShim) ListStacks(ctx context.Context, endpointID int, swarmID string) ([]domain.Stack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, err := f.load()
	if err != nil {
		return nil, err
	}

	stacks := []domain.Stack{}
	for _, s := range state.Stacks {
		switch {
		case swarmID != "":
			if s.SwarmID != swarmID {
				continue
			}
		case endpointID != 0:
			if s.EndpointID != endpointID {
				continue
			}
		}
		stacks = append(stacks, s.Stack)
	}
	return stacks, nil
}

// GetStackFile returns the stored definition of a stack.
func (f *FileShim) GetStackFile(ctx context.Context, id int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, err := f.load()
	if err != nil {
		return "", err
	}
	for _, s := range state.Stacks {
		if s.ID == id {
			return s.StackFileContent, nil
		}
	}
	return "", &domain.NotFoundError{Resource: "stack file", Name: strconv.Itoa(id)}
}

// ResolveVersion returns the version recorded in the state file, or
// DefaultShimVersion.
func (f *FileShim) ResolveVersion(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, err := f.load()
	if err != nil {
		return "", err
	}
	if state.Version != "" {
		return state.Version, nil
	}
	return DefaultShimVersion, nil
}

// CreateStack records a new stack and returns its id.
func (f *FileShim) CreateStack(ctx context.Context, kind domain.StackType, endpointID int, name, definition, swarmID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, err := f.load()
	if err != nil {
		return 0, err
	}

	s := shimStack{
		Stack: domain.Stack{
			ID:         state.NextID,
			Name:       name,
			EndpointID: endpointID,
			SwarmID:    swarmID,
			Env:        []domain.EnvEntry{},
			Type:       kind,
		},
		StackFileContent: definition,
	}
	state.NextID++
	state.Stacks = append(state.Stacks, s)

	if err := f.save(state); err != nil {
		return 0, err
	}
	f.log.Info("[FileShim] Stack created", "file", f.filePath, "id", s.ID, "name", name)
	return s.ID, nil
}

// UpdateStack replaces the definition and environment of a stack.
func (f *FileShim) UpdateStack(ctx context.Context, id, endpointID int, env []domain.EnvEntry, definition string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, err := f.load()
	if err != nil {
		return err
	}

	for i := range state.Stacks {
		s := &state.Stacks[i]
		if s.ID != id {
			continue
		}
		if s.EndpointID != endpointID {
			return fmt.Errorf("stack %d belongs to endpoint %d, not %d", id, s.EndpointID, endpointID)
		}
		if env == nil {
			env = []domain.EnvEntry{}
		}
		s.Env = env
		s.StackFileContent = definition
		if err := f.save(state); err != nil {
			return err
		}
		f.log.Info("[FileShim] Stack updated", "file", f.filePath, "id", id)
		return nil
	}
	return &domain.NotFoundError{Resource: "stack", Name: strconv.Itoa(id)}
}
