package externalsync

import "context"

// ProviderClient abstracts a ticket-tracking provider (ClickUp-shaped:
// team/space/list hierarchy over tasks with a solution custom field).
type ProviderClient interface {
	ListTeams(ctx context.Context, apiToken string) ([]Team, error)
	ListSpaces(ctx context.Context, apiToken, teamID string) ([]Space, error)
	ListLists(ctx context.Context, apiToken, spaceID string) ([]List, error)
	ListTasks(ctx context.Context, apiToken, listID string) ([]Task, error)
	GetTask(ctx context.Context, apiToken, taskID string) (Task, error)
}

// CredentialStore resolves the stored API token for a workspace's
// external integration.
type CredentialStore interface {
	APIToken(ctx context.Context, workspaceID string) (string, bool, error)
}
