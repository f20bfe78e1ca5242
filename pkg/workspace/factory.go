package workspace

import "context"

// ContainerWorkspaceFactory provisions fresh server/frontend workspace
// containers from the two base images the generated application's
// server and frontend code are rooted on. It satisfies
// agentsession.WorkspaceFactory without pkg/workspace needing to import
// pkg/agentsession.
type ContainerWorkspaceFactory struct {
	ServerImage   string
	FrontendImage string
	Workdir       string
}

// NewContainerWorkspaceFactory builds a factory rooting server
// workspaces at serverImage and frontend workspaces at frontendImage,
// both checked out at workdir.
func NewContainerWorkspaceFactory(serverImage, frontendImage, workdir string) *ContainerWorkspaceFactory {
	return &ContainerWorkspaceFactory{ServerImage: serverImage, FrontendImage: frontendImage, Workdir: workdir}
}

func (f *ContainerWorkspaceFactory) NewServerWorkspace(ctx context.Context) (Workspace, error) {
	return NewContainerWorkspace(ctx, f.ServerImage, f.Workdir)
}

func (f *ContainerWorkspaceFactory) NewFrontendWorkspace(ctx context.Context) (Workspace, error) {
	return NewContainerWorkspace(ctx, f.FrontendImage, f.Workdir)
}
