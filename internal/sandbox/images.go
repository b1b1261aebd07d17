package sandbox

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
)

// ImageStatus reports whether one recipe image is tagged on the daemon.
type ImageStatus struct {
	Name    string `json:"name"`
	Present bool   `json:"present"`
}

// ImageProbe talks to the Docker Engine API to check the runtime before any
// tool call reaches it. It is only used for diagnostics; invocations go
// through the CLI.
type ImageProbe struct {
	cli    *client.Client
	logger *slog.Logger
}

// NewImageProbe connects to the daemon using the standard DOCKER_* environment.
func NewImageProbe(logger *slog.Logger) (*ImageProbe, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	return &ImageProbe{cli: cli, logger: logger}, nil
}

// Ping checks that the daemon answers.
func (p *ImageProbe) Ping(ctx context.Context) error {
	if _, err := p.cli.Ping(ctx); err != nil {
		return fmt.Errorf("docker daemon unreachable: %w", err)
	}
	return nil
}

// Images reports the presence of each named image.
func (p *ImageProbe) Images(ctx context.Context, names []string) ([]ImageStatus, error) {
	statuses := make([]ImageStatus, 0, len(names))
	for _, name := range names {
		list, err := p.cli.ImageList(ctx, image.ListOptions{
			Filters: filters.NewArgs(filters.Arg("reference", name)),
		})
		if err != nil {
			return nil, fmt.Errorf("listing image %s: %w", name, err)
		}
		statuses = append(statuses, ImageStatus{Name: name, Present: len(list) > 0})
	}
	return statuses, nil
}

// CheckImages returns an error naming every missing image.
func (p *ImageProbe) CheckImages(ctx context.Context, names []string) error {
	statuses, err := p.Images(ctx, names)
	if err != nil {
		return err
	}
	var missing []string
	for _, s := range statuses {
		if !s.Present {
			missing = append(missing, s.Name)
		}
	}
	if len(missing) > 0 {
		if p.logger != nil {
			p.logger.Warn("recipe images missing", slog.Any("images", missing))
		}
		return fmt.Errorf("images not tagged: %v", missing)
	}
	return nil
}

// Close releases the API client.
func (p *ImageProbe) Close() error {
	return p.cli.Close()
}
