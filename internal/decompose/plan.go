package decompose

import (
	"errors"
	"fmt"

	"parley/internal/logging"
	"parley/internal/types"
)

// ErrCycleDetected means task dependencies form a cycle. Append-only
// construction cannot produce one, so hitting this is an invariant
// violation, not a recoverable condition.
var ErrCycleDetected = errors.New("task dependency cycle detected")

// ExecutionPlan is the ordered schedule for a decomposed utterance.
type ExecutionPlan struct {
	// ExecutionOrder lists task indices in a valid topological order.
	ExecutionOrder []int

	// EstimatedSteps is the number of sequential phases: tasks with no
	// mutual dependency share a phase.
	EstimatedSteps int
}

// CreateExecutionPlan topologically sorts tasks. The sort is stable:
// among ready tasks the earliest-declared index always runs first.
func CreateExecutionPlan(tasks []types.Task) (ExecutionPlan, error) {
	timer := logging.StartTimer(logging.CategoryDecompose, "CreateExecutionPlan")
	defer timer.Stop()

	n := len(tasks)
	if n == 0 {
		return ExecutionPlan{ExecutionOrder: []int{}}, nil
	}

	indegree := make([]int, n)
	dependents := make([][]int, n)
	depth := make([]int, n) // phase index per task

	for _, task := range tasks {
		for _, dep := range task.DependsOn {
			if dep < 0 || dep >= n {
				return ExecutionPlan{}, fmt.Errorf("task %d references unknown dependency %d", task.Index, dep)
			}
			indegree[task.Index]++
			dependents[dep] = append(dependents[dep], task.Index)
		}
	}

	order := make([]int, 0, n)
	for len(order) < n {
		// Pick the smallest-index ready task: stable, earliest-declared-first.
		next := -1
		for i := 0; i < n; i++ {
			if indegree[i] == 0 {
				next = i
				break
			}
		}
		if next == -1 {
			logging.Get(logging.CategoryDecompose).Error("Dependency cycle among %d unplanned tasks", n-len(order))
			return ExecutionPlan{}, ErrCycleDetected
		}

		order = append(order, next)
		indegree[next] = -1 // consumed
		for _, dep := range dependents[next] {
			indegree[dep]--
			if d := depth[next] + 1; d > depth[dep] {
				depth[dep] = d
			}
		}
	}

	steps := 0
	for _, d := range depth {
		if d+1 > steps {
			steps = d + 1
		}
	}

	logging.DecomposeDebug("Execution plan: order=%v steps=%d", order, steps)

	return ExecutionPlan{ExecutionOrder: order, EstimatedSteps: steps}, nil
}
