package locks

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/cucumber/godog"
)

// TestContext is the slice of the scenario context these steps need.
type TestContext interface {
	SignIn(subject string, roles []string) error
	Do(method, path string, body any) error
	Field(name string) (any, error)
	LastStatus() int
}

// NewWorker returns an independent context for one concurrent caller.
type NewWorker func() TestContext

// RegisterSteps registers document lock steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext, newWorker NewWorker) {
	steps := &lockSteps{tc: tc, newWorker: newWorker}

	ctx.Step(`^I acquire the lock on "([^"]*)"$`, steps.acquire)
	ctx.Step(`^I acquire the lock on "([^"]*)" for worker "([^"]*)"$`, steps.acquireFor)
	ctx.Step(`^I release the lock on "([^"]*)"$`, steps.release)
	ctx.Step(`^I check the lock on "([^"]*)"$`, steps.status)
	ctx.Step(`^I clean up locks older than (\d+) seconds$`, steps.cleanup)
	ctx.Step(`^"([^"]*)" holds the lock on "([^"]*)"$`, steps.holds)
	ctx.Step(`^(\d+) workers race for the lock on "([^"]*)"$`, steps.race)
	ctx.Step(`^exactly one worker should win and the rest should see "([^"]*)"$`, steps.exactlyOneWinner)
}

type lockSteps struct {
	tc        TestContext
	newWorker NewWorker
	reasons   []string
}

func lockPath(documentID string) string {
	return "/documents/" + documentID + "/lock"
}

func (s *lockSteps) acquire(_ context.Context, documentID string) error {
	return s.tc.Do(http.MethodPost, lockPath(documentID), map[string]any{})
}

func (s *lockSteps) acquireFor(_ context.Context, documentID, workerID string) error {
	return s.tc.Do(http.MethodPost, lockPath(documentID), map[string]any{"worker_id": workerID})
}

func (s *lockSteps) release(_ context.Context, documentID string) error {
	return s.tc.Do(http.MethodDelete, lockPath(documentID), nil)
}

func (s *lockSteps) status(_ context.Context, documentID string) error {
	return s.tc.Do(http.MethodGet, lockPath(documentID), nil)
}

func (s *lockSteps) cleanup(_ context.Context, seconds int) error {
	return s.tc.Do(http.MethodPost, "/locks/cleanup", map[string]any{"timeout_seconds": seconds})
}

// holds acquires documentID as another staff member through a separate client.
func (s *lockSteps) holds(_ context.Context, workerID, documentID string) error {
	w := s.newWorker()
	if err := w.SignIn(workerID, []string{"staff"}); err != nil {
		return err
	}
	if err := w.Do(http.MethodPost, lockPath(documentID), map[string]any{}); err != nil {
		return err
	}
	ok, err := w.Field("success")
	if err != nil {
		return err
	}
	if ok != true {
		reason, _ := w.Field("reason")
		return fmt.Errorf("%s could not take the lock on %s: %v", workerID, documentID, reason)
	}
	return nil
}

func (s *lockSteps) race(_ context.Context, n int, documentID string) error {
	s.reasons = make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		w := s.newWorker()
		if err := w.SignIn(fmt.Sprintf("racer-%d", i), []string{"staff"}); err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if errs[i] = w.Do(http.MethodPost, lockPath(documentID), map[string]any{}); errs[i] != nil {
				return
			}
			reason, err := w.Field("reason")
			if err != nil {
				errs[i] = err
				return
			}
			s.reasons[i] = fmt.Sprint(reason)
		}()
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *lockSteps) exactlyOneWinner(_ context.Context, loserReason string) error {
	winners := 0
	for i, reason := range s.reasons {
		switch reason {
		case "SUCCESS":
			winners++
		case loserReason:
		default:
			return fmt.Errorf("racer-%d got unexpected reason %q", i, reason)
		}
	}
	if winners != 1 {
		return fmt.Errorf("expected exactly one winner, got %d (%v)", winners, s.reasons)
	}
	return nil
}
