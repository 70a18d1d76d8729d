package harness

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Condition is the predicate a WaitCondition applies to its locator.
type Condition int

const (
	// Present waits for the element to be attached to the DOM
	Present Condition = iota
	// Visible waits for the element to be rendered
	Visible
	// Clickable waits for the element to be visible; clicks also wait for
	// it to be enabled and stable
	Clickable
	// Hidden waits for the element to be hidden or removed
	Hidden
	// TextPresent waits for some matching element's text to contain Text
	TextPresent
	// TextAbsent waits for no matching element's text to contain Text
	TextAbsent
)

var conditionNames = map[Condition]string{
	Present:     "present",
	Visible:     "visible",
	Clickable:   "clickable",
	Hidden:      "hidden",
	TextPresent: "text_present",
	TextAbsent:  "text_absent",
}

// String implements fmt.Stringer.
func (c Condition) String() string {
	if name, ok := conditionNames[c]; ok {
		return name
	}
	return fmt.Sprintf("condition(%d)", int(c))
}

// WaitCondition pairs a predicate over page state with a timeout.
type WaitCondition struct {
	Locator   Locator
	Condition Condition
	Text      string
	Timeout   time.Duration
}

// pollInterval is how often text conditions are re-evaluated.
const pollInterval = 250 * time.Millisecond

// Wait blocks until cond holds or its timeout expires. A timeout is reported
// as an error wrapping ErrWaitTimeout.
func (s *Session) Wait(ctx context.Context, cond WaitCondition) error {
	if err := s.touch(ctx); err != nil {
		return err
	}

	timeout := cond.Timeout
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}

	switch cond.Condition {
	case Present:
		return s.page.WaitFor(cond.Locator, StateAttached, timeout)
	case Visible, Clickable:
		return s.page.WaitFor(cond.Locator, StateVisible, timeout)
	case Hidden:
		return s.page.WaitFor(cond.Locator, StateHidden, timeout)
	case TextPresent, TextAbsent:
		want := cond.Condition == TextPresent
		err := poll(ctx, timeout, func() (bool, error) {
			texts, err := s.page.InnerTexts(cond.Locator)
			if err != nil {
				return false, err
			}
			return containsFold(texts, cond.Text) == want, nil
		})
		if err != nil {
			return fmt.Errorf("wait for %s %s %q failed: %w", cond.Locator, cond.Condition, cond.Text, err)
		}
		return nil
	default:
		return fmt.Errorf("unknown wait condition: %s", cond.Condition)
	}
}

// poll evaluates check immediately and then every pollInterval until it
// reports true, returns an error, or timeout elapses.
func poll(ctx context.Context, timeout time.Duration, check func() (bool, error)) error {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := check()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrWaitTimeout
		}

		wait := pollInterval
		if remaining < wait {
			wait = remaining
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// containsFold reports whether any text contains substr, ignoring case.
func containsFold(texts []string, substr string) bool {
	needle := strings.ToLower(substr)
	for _, text := range texts {
		if strings.Contains(strings.ToLower(text), needle) {
			return true
		}
	}
	return false
}
