package planner

import (
	"context"
	"fmt"

	"github.com/Mindburn-Labs/degreeplan/pkg/audit"
)

// Audit classifies the plan and checks the taken courses against it.
func (p *Planner) Audit(ctx context.Context, req Request, taken audit.Plan) (*Run, *audit.Report, error) {
	run, err := p.Classify(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	check, err := audit.Compile(run.Result.Root)
	if err != nil {
		return nil, nil, fmt.Errorf("audit %s: %w", req.Ref, err)
	}
	report, err := check.Evaluate(ctx, taken)
	if err != nil {
		return nil, nil, fmt.Errorf("audit %s: %w", req.Ref, err)
	}
	p.logger.InfoContext(ctx, "plan audited",
		"run_id", run.ID,
		"plan", req.Ref.Code,
		"satisfied", report.Satisfied,
		"failed", len(report.Failed()),
	)
	return run, report, nil
}
