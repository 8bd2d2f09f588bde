package workflow

import (
	"context"
	"sync"
	"time"

	"oatty/internal/api"
	"oatty/internal/workflow/template"
	"oatty/pkg/logging"
)

// DefaultConcurrency bounds how many steps of a single run may execute at
// once.
const DefaultConcurrency = 8

// scheduler drives one Run to completion: it repeatedly computes the ready
// set from the dependency graph, dispatches each ready step on a bounded
// worker pool, and folds results back in until every step is terminal or
// the run is cancelled.
type scheduler struct {
	run    *Run
	tmpl   *template.Engine
	invoke *invoker

	concurrency int
}

func newScheduler(run *Run, tmpl *template.Engine, invoke *invoker, concurrency int) *scheduler {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &scheduler{run: run, tmpl: tmpl, invoke: invoke, concurrency: concurrency}
}

func (s *scheduler) execute(ctx context.Context) {
	r := s.run
	r.setState(api.RunRunning)
	r.StartedAt = time.Now()
	r.emit(api.RunEvent{Kind: api.EventRunStarted})

	done := map[string]bool{}
	skipped := map[string]bool{}
	pending := map[string]bool{}
	for _, st := range r.Doc.Steps {
		pending[st.ID] = true
	}

	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex // guards done/skipped/pending/failed
	failed := false

	advance := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return r.Graph.Ready(done, pending)
	}

	for {
		select {
		case <-ctx.Done():
			s.cancelRemaining(pending, &mu)
			wg.Wait()
			r.setState(api.RunCancelled)
			r.EndedAt = time.Now()
			r.emit(api.RunEvent{Kind: api.EventRunCancelled})
			close(r.events)
			return
		default:
		}

		ready := advance()
		if len(ready) == 0 {
			break
		}

		for _, stepID := range ready {
			stepID := stepID
			mu.Lock()
			delete(pending, stepID)
			mu.Unlock()

			step := s.stepByID(stepID)
			r.emit(api.RunEvent{Kind: api.EventStepReady, StepID: stepID})

			wg.Add(1)
			sem <- struct{}{}
			go func() {
				defer wg.Done()
				defer func() { <-sem }()

				res := s.runStep(ctx, step)

				mu.Lock()
				r.setResult(stepID, res)
				switch res.State {
				case api.StepSucceeded:
					// Only a Succeeded dependency satisfies Graph.Ready;
					// a Failed dependency must never unblock its
					// dependents, which fall through to the bulk
					// skip pass once the ready set runs dry.
					done[stepID] = true
				case api.StepSkipped:
					skipped[stepID] = true
				default:
					failed = true
				}
				mu.Unlock()

				switch res.State {
				case api.StepSucceeded:
					r.emit(api.RunEvent{Kind: api.EventStepSucceeded, StepID: stepID, Attempt: res.Attempts})
				case api.StepFailed:
					r.emit(api.RunEvent{Kind: api.EventStepFailed, StepID: stepID, Error: res.Error, Attempt: res.Attempts})
				case api.StepSkipped:
					r.emit(api.RunEvent{Kind: api.EventStepSkipped, StepID: stepID})
				}
			}()
		}
		wg.Wait()

		mu.Lock()
		stillPending := len(pending)
		mu.Unlock()
		if stillPending == 0 {
			break
		}
	}

	// Any step that never became ready (an ancestor failed) is skipped.
	mu.Lock()
	for id := range pending {
		r.setResult(id, api.StepResult{StepID: id, State: api.StepSkipped})
		skipped[id] = true
	}
	mu.Unlock()
	for id := range pending {
		r.emit(api.RunEvent{Kind: api.EventStepSkipped, StepID: id})
	}

	r.EndedAt = time.Now()
	if failed {
		r.setState(api.RunFailed)
	} else {
		r.setState(api.RunSucceeded)
	}
	r.emit(api.RunEvent{Kind: api.EventRunCompleted})
	close(r.events)
}

func (s *scheduler) cancelRemaining(pending map[string]bool, mu *sync.Mutex) {
	mu.Lock()
	defer mu.Unlock()
	for id := range pending {
		s.run.setResult(id, api.StepResult{StepID: id, State: api.StepCancelled})
	}
}

func (s *scheduler) stepByID(id string) api.StepDef {
	for _, st := range s.run.Doc.Steps {
		if st.ID == id {
			return st
		}
	}
	return api.StepDef{ID: id}
}

// runStep evaluates the step's "if" guard, then executes it (with its
// repeat/retry loop if configured), rendering With/Body against the run's
// current context on every attempt so later attempts see fresh upstream
// step output.
func (s *scheduler) runStep(ctx context.Context, step api.StepDef) api.StepResult {
	res := api.StepResult{StepID: step.ID, State: api.StepRunning, StartedAt: time.Now()}

	ctxView := s.run.contextView()
	ok, err := s.tmpl.Bool(step.If, ctxView)
	if err != nil {
		res.State = api.StepFailed
		res.Error = err.Error()
		res.EndedAt = time.Now()
		return res
	}
	if !ok {
		res.State = api.StepSkipped
		res.EndedAt = time.Now()
		return res
	}

	s.run.emit(api.RunEvent{Kind: api.EventStepStarted, StepID: step.ID})

	if step.Repeat == nil {
		output, err := s.executeOnce(ctx, step)
		res.Attempts = 1
		if err != nil {
			res.State = api.StepFailed
			res.Error = err.Error()
		} else {
			res.State = api.StepSucceeded
			res.Output = output
		}
		res.EndedAt = time.Now()
		return res
	}

	return s.runWithRepeat(ctx, step, res)
}

func (s *scheduler) executeOnce(ctx context.Context, step api.StepDef) (interface{}, error) {
	ctxView := s.run.contextView()

	var args map[string]interface{}
	if step.With != nil {
		rendered, err := s.tmpl.Render(step.With, ctxView)
		if err != nil {
			return nil, err
		}
		m, ok := rendered.(map[string]interface{})
		if !ok {
			return nil, err
		}
		args = m
	}
	if step.Body != nil {
		rendered, err := s.tmpl.Render(step.Body, ctxView)
		if err != nil {
			return nil, err
		}
		if args == nil {
			args = map[string]interface{}{}
		}
		args["body"] = rendered
	}

	return s.invoke.invoke(ctx, step.Run, args)
}

// runWithRepeat drives a step's repeat/poll loop: re-execute every
// Repeat.Every until Repeat.Until renders true, Repeat.Timeout elapses, or
// Repeat.MaxAttempts is exhausted.
func (s *scheduler) runWithRepeat(ctx context.Context, step api.StepDef, res api.StepResult) api.StepResult {
	rep := step.Repeat
	deadline := time.Time{}
	if rep.Timeout > 0 {
		deadline = time.Now().Add(rep.Timeout)
	}

	attempt := 0
	var lastOutput interface{}
	var lastErr error

	for {
		attempt++
		lastOutput, lastErr = s.executeOnce(ctx, step)

		// Persist intermediate output so "${{ steps.x.output }}" inside
		// Until sees this attempt's result.
		s.run.setResult(step.ID, api.StepResult{
			StepID: step.ID, State: api.StepRunning, Output: lastOutput, Attempts: attempt,
		})
		s.run.emit(api.RunEvent{Kind: api.EventStepProgress, StepID: step.ID, Attempt: attempt})

		if lastErr == nil {
			done, err := s.tmpl.Bool(rep.Until, s.run.contextView())
			if err != nil {
				lastErr = err
			} else if done {
				break
			}
		}

		if rep.MaxAttempts > 0 && attempt >= rep.MaxAttempts {
			break
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			if lastErr == nil {
				lastErr = &api.TimeoutError{Operation: "step " + step.ID + " repeat.until", Budget: rep.Timeout.String()}
			}
			break
		}

		wait := rep.Every
		if wait <= 0 {
			wait = time.Second
		}
		select {
		case <-ctx.Done():
			lastErr = &api.CancelledError{Operation: "step " + step.ID}
		case <-time.After(wait):
		}
		if lastErr != nil {
			break
		}
	}

	res.Attempts = attempt
	res.EndedAt = time.Now()
	if lastErr != nil {
		res.State = api.StepFailed
		res.Error = lastErr.Error()
		logging.Debug("WorkflowScheduler", "step %s failed after %d attempts: %v", step.ID, attempt, lastErr)
	} else {
		res.State = api.StepSucceeded
		res.Output = lastOutput
	}
	return res
}
