package domain

// DuplicateGroup is one cluster of records the similarity agent judged
// equivalent, together with its rationale.
type DuplicateGroup struct {
	// Members lists the link IDs in the group, including the kept one.
	Members []string `json:"members"`

	// KeptID is the member the agent selected as the survivor.
	KeptID string `json:"kept_id,omitempty"`

	// Rationale is the agent's free-text explanation of the grouping.
	Rationale string `json:"rationale,omitempty"`
}

// DuplicateVerdict is the parsed outcome of one similarity-agent call for a
// single page of records. It is transient and never persisted directly.
type DuplicateVerdict struct {
	// SelectedLinkIDs are the survivors. The agent's selection is
	// authoritative; the pipeline does not second-guess it.
	SelectedLinkIDs []string `json:"selected_link_ids"`

	DuplicateGroups []DuplicateGroup `json:"duplicate_groups"`

	Summary DuplicateSummary `json:"summary"`
}

// DuplicateSummary is the agent's own accounting of a page verdict. It is
// informational; the pipeline derives its counts from the verdict itself.
type DuplicateSummary struct {
	TotalInput     int `json:"total_input"`
	UniqueKept     int `json:"unique_kept"`
	DuplicateFound int `json:"duplicate_found"`
}

// DedupResult reports the outcome of running the dedup stage for one
// workflow.
type DedupResult struct {
	WorkflowID string `json:"workflow_id"`

	// Skipped is true when the workflow was already processed and the stage
	// short-circuited without calling the similarity agent.
	Skipped bool `json:"skipped"`

	Input                int `json:"input"`
	Selected             int `json:"selected"`
	DuplicateGroupsFound int `json:"duplicate_groups_found"`
}
