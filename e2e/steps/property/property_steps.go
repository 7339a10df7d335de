package property

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"

	"propreg/pkg/domain"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Do(method, path string, caller domain.Principal, body any) error
}

// RegisterSteps registers property registry step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &propertySteps{tc: tc}

	ctx.Step(`^"([^"]*)" registers a property at "([^"]*)" of size (\d+) built of "([^"]*)" in zone "([^"]*)"$`, steps.register)
	ctx.Step(`^"([^"]*)" fetches property (\d+)$`, steps.fetch)
	ctx.Step(`^"([^"]*)" counts the properties$`, steps.count)
	ctx.Step(`^"([^"]*)" sets the risk zone of property (\d+) to "([^"]*)"$`, steps.setRiskZone)
	ctx.Step(`^an anonymous caller counts the properties$`, steps.anonymousCount)
}

type propertySteps struct {
	tc TestContext
}

func (s *propertySteps) register(ctx context.Context, owner, location string, size int, construction, zone string) error {
	return s.tc.Do(http.MethodPost, "/properties", domain.Principal(owner), map[string]any{
		"location":          location,
		"size":              size,
		"construction_type": construction,
		"risk_zone":         zone,
	})
}

func (s *propertySteps) fetch(ctx context.Context, caller string, id int) error {
	return s.tc.Do(http.MethodGet, fmt.Sprintf("/properties/%d", id), domain.Principal(caller), nil)
}

func (s *propertySteps) count(ctx context.Context, caller string) error {
	return s.tc.Do(http.MethodGet, "/properties/count", domain.Principal(caller), nil)
}

func (s *propertySteps) setRiskZone(ctx context.Context, caller string, id int, zone string) error {
	return s.tc.Do(http.MethodPut, fmt.Sprintf("/properties/%d/risk-zone", id), domain.Principal(caller),
		map[string]string{"risk_zone": zone})
}

func (s *propertySteps) anonymousCount(ctx context.Context) error {
	return s.tc.Do(http.MethodGet, "/properties/count", "", nil)
}
