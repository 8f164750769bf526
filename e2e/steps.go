package e2e

import (
	"github.com/cucumber/godog"

	"bloodlink/e2e/steps/common"
	"bloodlink/e2e/steps/donation"
	"bloodlink/e2e/steps/identity"
	"bloodlink/e2e/steps/pledge"
)

// RegisterSteps binds every step package to one scenario. Each package declares the
// slice of *TestContext it needs as its own interface.
func RegisterSteps(sc *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(sc, tc)
	identity.RegisterSteps(sc, tc)
	donation.RegisterSteps(sc, tc)
	pledge.RegisterSteps(sc, tc)
}
