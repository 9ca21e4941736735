package canvas

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"
)

type guard struct {
	name    string
	release func() error
}

// resources is the ordered set of release guards a surface runs on unmount.
// Each guard releases whatever its resource currently holds, so a guard can
// also be run on its own when a single resource is swapped.
type resources struct {
	mu     sync.Mutex
	guards []guard
}

func (r *resources) add(name string, release func() error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.guards = append(r.guards, guard{name: name, release: release})
}

// run releases the named resource.
func (r *resources) run(name string) error {
	r.mu.Lock()
	var target *guard
	for i := range r.guards {
		if r.guards[i].name == name {
			target = &r.guards[i]
			break
		}
	}
	r.mu.Unlock()
	if target == nil {
		return fmt.Errorf("canvas: unknown resource %q", name)
	}
	return safeRelease(*target)
}

// releaseAll runs every guard in registration order. A failing or panicking
// guard never stops the ones after it.
func (r *resources) releaseAll() error {
	r.mu.Lock()
	guards := append([]guard(nil), r.guards...)
	r.mu.Unlock()

	var err error
	for _, g := range guards {
		err = multierr.Append(err, safeRelease(g))
	}
	return err
}

func safeRelease(g guard) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("canvas: release %s panicked: %v", g.name, rec)
		}
	}()
	if relErr := g.release(); relErr != nil {
		return fmt.Errorf("canvas: release %s: %w", g.name, relErr)
	}
	return nil
}
