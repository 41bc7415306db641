package common

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Request(method, path string, body interface{}) error
	RequestRaw(method, path, body string) error
	StatusCode() int
	Body() []byte
	GetResponseField(field string) (interface{}, error)
}

// RegisterSteps registers generic request and assertion steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^I send a (GET|DELETE) request to "([^"]*)"$`, steps.sendRequest)
	ctx.Step(`^I send a (POST|PUT) request to "([^"]*)" with body:$`, steps.sendRequestWithBody)

	ctx.Step(`^the response status should be (\d+)$`, steps.responseStatusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, steps.responseFieldShouldEqual)
	ctx.Step(`^the response body should be empty$`, steps.responseBodyShouldBeEmpty)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) sendRequest(ctx context.Context, method, path string) error {
	return s.tc.Request(method, path, nil)
}

func (s *commonSteps) sendRequestWithBody(ctx context.Context, method, path string, body *godog.DocString) error {
	return s.tc.RequestRaw(method, path, body.Content)
}

func (s *commonSteps) responseStatusShouldBe(ctx context.Context, status int) error {
	if got := s.tc.StatusCode(); got != status {
		return fmt.Errorf("expected status %d, got %d: %s", status, got, string(s.tc.Body()))
	}
	return nil
}

func (s *commonSteps) responseFieldShouldEqual(ctx context.Context, field, expected string) error {
	v, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != expected {
		return fmt.Errorf("expected %s=%q, got %q", field, expected, got)
	}
	return nil
}

func (s *commonSteps) responseBodyShouldBeEmpty(ctx context.Context) error {
	if body := s.tc.Body(); len(body) > 0 {
		return fmt.Errorf("expected empty body, got %q", string(body))
	}
	return nil
}
