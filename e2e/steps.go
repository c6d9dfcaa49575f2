package e2e

import (
	"github.com/cucumber/godog"

	"ereader/e2e/steps/auth"
	"ereader/e2e/steps/catalog"
	"ereader/e2e/steps/common"
	"ereader/e2e/steps/library"
	"ereader/e2e/steps/reader"
)

// RegisterSteps registers all step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	auth.RegisterSteps(ctx, tc)
	catalog.RegisterSteps(ctx, tc)
	library.RegisterSteps(ctx, tc)
	reader.RegisterSteps(ctx, tc)
}
