package planner

import "context"

// Classifier maps instruction text to a Plan. For a fixed classifier the
// same instruction always yields the same Plan shape. A Plan whose steps
// lack required arguments is still returned; the orchestrator reports the
// missing parameter on that step. An error means no operation could be
// resolved at all.
type Classifier interface {
	Classify(ctx context.Context, instruction string) (Plan, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, instruction string) (Plan, error)

// Classify calls f.
func (f ClassifierFunc) Classify(ctx context.Context, instruction string) (Plan, error) {
	return f(ctx, instruction)
}
