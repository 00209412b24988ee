// Package preflight validates the environment before the service starts
// serving or ingesting.
//
// The package validates:
//   - Configuration validity
//   - Lock and results directory writability
//   - Disk space availability (minimum 100MB)
//   - Search engine reachability
//   - Registry collection presence
//
// Use the Checker type to run all validations:
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, cfg, client)
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
