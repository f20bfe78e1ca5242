package workspace

import (
	"context"

	"github.com/docker/docker/client"
)

// DockerPinger adapts a docker client.APIClient to the single-method
// Ping(ctx) error contract the API server's health check expects,
// discarding the engine version/info payload the raw client returns.
type DockerPinger struct {
	Client client.APIClient
}

// NewDockerPinger connects to the Docker daemon using the environment's
// standard DOCKER_HOST configuration, negotiating the API version.
func NewDockerPinger() (*DockerPinger, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}
	return &DockerPinger{Client: cli}, nil
}

// Ping reports whether the Docker daemon backing workspace provisioning
// is reachable.
func (p *DockerPinger) Ping(ctx context.Context) error {
	_, err := p.Client.Ping(ctx)
	return err
}
