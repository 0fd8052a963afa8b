// Package externalclient implements externalsync.ProviderClient against
// the ClickUp REST API.
package externalclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/yanqian/ai-helloworld/internal/domain/externalsync"
)

const defaultBaseURL = "https://api.clickup.com/api/v2"

// ClickUpClient implements externalsync.ProviderClient.
type ClickUpClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewClickUpClient constructs a client with a bounded per-request
// timeout, matching the external-fetch budget. An empty baseURL or
// non-positive timeout falls back to the ClickUp default API root and
// the spec's 30s external-fetch budget respectively.
func NewClickUpClient(baseURL string, timeout time.Duration) *ClickUpClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ClickUpClient{httpClient: &http.Client{Timeout: timeout}, baseURL: baseURL}
}

func (c *ClickUpClient) get(ctx context.Context, apiToken, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("clickup returned status %d for %s", resp.StatusCode, path)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *ClickUpClient) ListTeams(ctx context.Context, apiToken string) ([]externalsync.Team, error) {
	var payload struct {
		Teams []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"teams"`
	}
	if err := c.get(ctx, apiToken, "/team", &payload); err != nil {
		return nil, err
	}
	teams := make([]externalsync.Team, len(payload.Teams))
	for i, t := range payload.Teams {
		teams[i] = externalsync.Team{ID: t.ID, Name: t.Name}
	}
	return teams, nil
}

func (c *ClickUpClient) ListSpaces(ctx context.Context, apiToken, teamID string) ([]externalsync.Space, error) {
	var payload struct {
		Spaces []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"spaces"`
	}
	if err := c.get(ctx, apiToken, "/team/"+teamID+"/space", &payload); err != nil {
		return nil, err
	}
	spaces := make([]externalsync.Space, len(payload.Spaces))
	for i, s := range payload.Spaces {
		spaces[i] = externalsync.Space{ID: s.ID, Name: s.Name, TeamID: teamID}
	}
	return spaces, nil
}

type clickupList struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ListLists merges folderless lists with lists nested under folders,
// since ClickUp exposes both shapes under the same space.
func (c *ClickUpClient) ListLists(ctx context.Context, apiToken, spaceID string) ([]externalsync.List, error) {
	var folderless struct {
		Lists []clickupList `json:"lists"`
	}
	if err := c.get(ctx, apiToken, "/space/"+spaceID+"/list", &folderless); err != nil {
		return nil, err
	}

	var folders struct {
		Folders []struct {
			ID    string        `json:"id"`
			Lists []clickupList `json:"lists"`
		} `json:"folders"`
	}
	_ = c.get(ctx, apiToken, "/space/"+spaceID+"/folder", &folders)

	all := folderless.Lists
	for _, folder := range folders.Folders {
		folderLists := folder.Lists
		if len(folderLists) == 0 {
			var fetched struct {
				Lists []clickupList `json:"lists"`
			}
			if err := c.get(ctx, apiToken, "/folder/"+folder.ID+"/list", &fetched); err == nil {
				folderLists = fetched.Lists
			}
		}
		all = append(all, folderLists...)
	}

	lists := make([]externalsync.List, len(all))
	for i, l := range all {
		lists[i] = externalsync.List{ID: l.ID, Name: l.Name, SpaceID: spaceID}
	}
	return lists, nil
}

type clickupTask struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	DueDate     string `json:"due_date"`
	Status      struct {
		Status string `json:"status"`
	} `json:"status"`
	Priority struct {
		Priority string `json:"priority"`
	} `json:"priority"`
	Assignees []struct {
		Username string `json:"username"`
	} `json:"assignees"`
	CustomFields []struct {
		Name  string `json:"name"`
		Value any    `json:"value"`
	} `json:"custom_fields"`
}

func (c *ClickUpClient) ListTasks(ctx context.Context, apiToken, listID string) ([]externalsync.Task, error) {
	var payload struct {
		Tasks []clickupTask `json:"tasks"`
	}
	if err := c.get(ctx, apiToken, "/list/"+listID+"/task?include_closed=true", &payload); err != nil {
		return nil, err
	}
	tasks := make([]externalsync.Task, len(payload.Tasks))
	for i, t := range payload.Tasks {
		tasks[i] = toTask(t, listID)
	}
	return tasks, nil
}

func (c *ClickUpClient) GetTask(ctx context.Context, apiToken, taskID string) (externalsync.Task, error) {
	var t clickupTask
	if err := c.get(ctx, apiToken, "/task/"+taskID, &t); err != nil {
		return externalsync.Task{}, err
	}
	return toTask(t, ""), nil
}

func toTask(t clickupTask, listID string) externalsync.Task {
	var dueDate *time.Time
	if t.DueDate != "" {
		if ms, err := strconv.ParseInt(t.DueDate, 10, 64); err == nil {
			parsed := time.UnixMilli(ms)
			dueDate = &parsed
		}
	}
	assignees := make([]string, 0, len(t.Assignees))
	for _, a := range t.Assignees {
		assignees = append(assignees, a.Username)
	}
	return externalsync.Task{
		ID:          t.ID,
		Name:        t.Name,
		Status:      t.Status.Status,
		Priority:    t.Priority.Priority,
		Assignees:   assignees,
		DueDate:     dueDate,
		Description: t.Description,
		ListID:      listID,
		Solution:    extractSolution(t.CustomFields),
	}
}

// extractSolution pulls the value out of the custom field named
// "Solution", matching the provider's support-ticket template.
func extractSolution(fields []struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}) string {
	for _, f := range fields {
		if f.Name == "Solution" {
			if s, ok := f.Value.(string); ok {
				return s
			}
		}
	}
	return ""
}
