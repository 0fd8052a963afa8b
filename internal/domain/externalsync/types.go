package externalsync

import "time"

// Task is an external ticket as reported by a provider such as
// ClickUp: an id, human text, and enough metadata to render a picker.
type Task struct {
	ID          string
	Name        string
	Status      string
	Priority    string
	Assignees   []string
	DueDate     *time.Time
	Description string
	ListID      string
	IsSynced    bool
	// Solution holds the provider's "Solution" custom field, when set.
	Solution string
}

// Space groups Lists under a Team.
type Space struct {
	ID     string
	Name   string
	TeamID string
}

// List groups Tasks under a Space.
type List struct {
	ID      string
	Name    string
	SpaceID string
}

// Team is the top-level grouping in a provider workspace.
type Team struct {
	ID   string
	Name string
}

// SyncResult reports what a single task sync produced.
type SyncResult struct {
	Status       string
	Filename     string
	TaskID       string
	TaskName     string
	ChunksAdded  int
	LastSyncedAt time.Time
}

// Failure records one task's sync error inside a batch.
type Failure struct {
	TaskID string `json:"task_id"`
	Error  string `json:"error"`
}

// BatchResult reports an all-tasks or all-list sync outcome.
type BatchResult struct {
	SyncedCount    int        `json:"synced_count"`
	TotalDocsAdded int        `json:"total_docs_added"`
	Failed         []Failure  `json:"failed"`
}

// canonicalFilename is the on-disk / reference name every synced task
// is stored under, mirrored by DataSource.Reference.
func canonicalFilename(taskID string) string {
	return "clickup_" + taskID + ".txt"
}
