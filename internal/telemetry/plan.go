package telemetry

import "github.com/Iron-Ham/fabricctl/internal/step"

// PlanFor builds the plan of a run over defs, led by the submission step.
func PlanFor(defs []step.Definition) Plan {
	steps := make([]PlannedStep, 0, len(defs)+1)
	steps = append(steps, PlannedStep{ID: SubmitStepID, Title: SubmitTitle})
	for _, d := range defs {
		steps = append(steps, PlannedStep{ID: d.ID, Title: d.Title})
	}
	return Plan{Steps: steps}
}
