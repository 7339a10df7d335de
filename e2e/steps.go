package e2e

import (
	"github.com/cucumber/godog"

	"propreg/e2e/steps/common"
	"propreg/e2e/steps/property"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	property.RegisterSteps(ctx, tc)
}
