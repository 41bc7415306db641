package e2e

import (
	"github.com/cucumber/godog"

	"vetclinic/e2e/steps/common"
	"vetclinic/e2e/steps/person"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (generic requests, assertions)
	common.RegisterSteps(ctx, tc)

	// Register person registry steps
	person.RegisterSteps(ctx, tc)
}
