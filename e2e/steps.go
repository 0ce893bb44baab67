// Package e2e drives a running casedocs server through the Gherkin scenarios in features/.
package e2e

import (
	"github.com/cucumber/godog"

	"casedocs/e2e/steps/auth"
	"casedocs/e2e/steps/common"
	"casedocs/e2e/steps/jobs"
	"casedocs/e2e/steps/locks"
)

// RegisterSteps registers all step definitions from the step packages.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	auth.RegisterSteps(ctx, tc)
	locks.RegisterSteps(ctx, tc, func() locks.TestContext { return NewTestContext(tc.cfg) })
	jobs.RegisterSteps(ctx, tc)
}
