package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
)

// TestContext is the slice of the scenario context these steps need.
type TestContext interface {
	SignIn(subject string, roles []string) error
	SetToken(token string)
	SetClientIP(ip string)
	Do(method, path string, body any) error
	LastStatus() int
	Field(name string) (any, error)
}

// RegisterSteps registers bearer authentication and failed-attempt limit steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &authSteps{tc: tc}

	ctx.Step(`^I am calling from IP "([^"]*)"$`, steps.callingFromIP)
	ctx.Step(`^I present the invalid token "([^"]*)" (\d+) times to "([^"]*)"$`, steps.presentInvalidTokenNTimes)
	ctx.Step(`^every attempt should have returned (\d+)$`, steps.everyAttemptReturned)
	ctx.Step(`^the error code should be "([^"]*)"$`, steps.errorCodeShouldBe)
}

type authSteps struct {
	tc       TestContext
	statuses []int
}

func (s *authSteps) callingFromIP(_ context.Context, ip string) error {
	s.tc.SetClientIP(ip)
	return nil
}

func (s *authSteps) presentInvalidTokenNTimes(_ context.Context, token string, n int, path string) error {
	s.tc.SetToken(token)
	s.statuses = s.statuses[:0]
	for range n {
		if err := s.tc.Do(http.MethodGet, path, nil); err != nil {
			return err
		}
		s.statuses = append(s.statuses, s.tc.LastStatus())
	}
	return nil
}

func (s *authSteps) everyAttemptReturned(_ context.Context, want int) error {
	for i, got := range s.statuses {
		if got != want {
			return fmt.Errorf("attempt %d returned %d, want %d", i+1, got, want)
		}
	}
	return nil
}

func (s *authSteps) errorCodeShouldBe(_ context.Context, code string) error {
	v, err := s.tc.Field("error")
	if err != nil {
		return err
	}
	if v != code {
		return fmt.Errorf("expected error %q, got %v", code, v)
	}
	return nil
}
