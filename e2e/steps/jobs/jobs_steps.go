package jobs

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
)

// TestContext is the slice of the scenario context these steps need.
type TestContext interface {
	Do(method, path string, body any) error
	Field(name string) (any, error)
	Save(key, value string)
	Saved(key string) string
}

// RegisterSteps registers document generation job steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &jobSteps{tc: tc}

	ctx.Step(`^I request a "([^"]*)" document for case "([^"]*)"$`, steps.enqueue)
	ctx.Step(`^I save the job id$`, steps.saveJobID)
	ctx.Step(`^I fetch the saved job$`, steps.fetchJob)
	ctx.Step(`^I run the worker once$`, steps.runOnce)
	ctx.Step(`^I request coverage of "([^"]*)" for case "([^"]*)"$`, steps.coverage)
}

type jobSteps struct {
	tc TestContext
}

func (s *jobSteps) enqueue(_ context.Context, templateType, caseID string) error {
	return s.tc.Do(http.MethodPost, "/cases/"+caseID+"/documents", map[string]any{"template_type": templateType})
}

func (s *jobSteps) saveJobID(context.Context) error {
	id, err := s.tc.Field("id")
	if err != nil {
		return err
	}
	s.tc.Save("job_id", fmt.Sprint(id))
	return nil
}

func (s *jobSteps) fetchJob(context.Context) error {
	return s.tc.Do(http.MethodGet, "/jobs/"+s.tc.Saved("job_id"), nil)
}

func (s *jobSteps) runOnce(context.Context) error {
	return s.tc.Do(http.MethodPost, "/jobs/run", nil)
}

func (s *jobSteps) coverage(_ context.Context, templateType, caseID string) error {
	return s.tc.Do(http.MethodGet, "/cases/"+caseID+"/coverage/"+templateType, nil)
}
