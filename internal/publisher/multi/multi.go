// Package multi fans a run result out to several notifiers.
package multi

import (
	"context"
	"errors"
	"fmt"

	"github.com/JakeFAU/career-crawler/internal/crawler"
)

// Named pairs a notifier with the name used in error messages.
type Named struct {
	Name     string
	Notifier crawler.Notifier
}

// Notifier delivers to every target in order. One failing target does not
// stop the others.
type Notifier struct {
	targets []Named
}

// New builds a fan-out notifier.
func New(targets ...Named) *Notifier {
	return &Notifier{targets: targets}
}

// Len reports the number of targets.
func (n *Notifier) Len() int {
	return len(n.targets)
}

// Notify joins every target error.
func (n *Notifier) Notify(ctx context.Context, result crawler.RunResult) error {
	var errs []error
	for _, target := range n.targets {
		if err := target.Notifier.Notify(ctx, result); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", target.Name, err))
		}
	}
	return errors.Join(errs...)
}
