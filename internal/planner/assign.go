package planner

import (
	"github.com/quorumhq/quorum/internal/orchestrator"
)

// AssignModels distributes model identifiers across tasks round-robin by
// index (model i goes to task i mod len(tasks)). Every model lands in
// exactly one task, and every task gets at least one model whenever there
// are at least as many models as tasks. Pure function; callers that want
// a different mapping simply hand their own map to RunTaskQuery.
func AssignModels(tasks []orchestrator.ResearchTask, modelIDs []string) map[string][]string {
	assignments := make(map[string][]string, len(tasks))
	for _, task := range tasks {
		assignments[task.ID] = []string{}
	}
	if len(tasks) == 0 {
		return assignments
	}

	for i, modelID := range modelIDs {
		taskID := tasks[i%len(tasks)].ID
		assignments[taskID] = append(assignments[taskID], modelID)
	}
	return assignments
}
