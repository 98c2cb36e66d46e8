package sim

import (
	"fmt"
	"sort"

	"github.com/inference-sim/popsim/sim/model"
)

// Component is a unit of model behavior. The kernel calls Init once before
// the first plan, ExecutePlan for each of the component's due plans, and
// Close once after the last. Each call is a turn: the component holds focus
// for its duration and may mutate state through ctx.
type Component interface {
	Init(ctx *Context) error
	ExecutePlan(ctx *Context, payload any) error
	Close(ctx *Context) error
}

// Observer is implemented by components that subscribe to observations.
type Observer interface {
	Observe(ctx *Context, obs Observation) error
}

// FuncComponent adapts plain functions to Component and Observer. Nil
// fields are no-ops.
type FuncComponent struct {
	OnInit    func(ctx *Context) error
	OnPlan    func(ctx *Context, payload any) error
	OnClose   func(ctx *Context) error
	OnObserve func(ctx *Context, obs Observation) error
}

func (f *FuncComponent) Init(ctx *Context) error {
	if f.OnInit == nil {
		return nil
	}
	return f.OnInit(ctx)
}

func (f *FuncComponent) ExecutePlan(ctx *Context, payload any) error {
	if f.OnPlan == nil {
		return nil
	}
	return f.OnPlan(ctx, payload)
}

func (f *FuncComponent) Close(ctx *Context) error {
	if f.OnClose == nil {
		return nil
	}
	return f.OnClose(ctx)
}

func (f *FuncComponent) Observe(ctx *Context, obs Observation) error {
	if f.OnObserve == nil {
		return nil
	}
	return f.OnObserve(ctx, obs)
}

// FocusRegistry knows every component and which one, if any, holds focus.
type FocusRegistry struct {
	components map[model.ComponentID]Component
	declared   []model.ComponentID
	focal      model.ComponentID
	held       bool
}

// NewFocusRegistry returns an empty registry with nobody in focus.
func NewFocusRegistry() *FocusRegistry {
	return &FocusRegistry{components: make(map[model.ComponentID]Component)}
}

// Register adds a component. Declaration order is kept within each kind.
func (r *FocusRegistry) Register(id model.ComponentID, c Component) error {
	if c == nil {
		return fmt.Errorf("%w: component %s is nil", ErrInvalidArgument, id)
	}
	if _, dup := r.components[id]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateComponent, id)
	}
	r.components[id] = c
	r.declared = append(r.declared, id)
	return nil
}

// Component returns the component registered under id.
func (r *FocusRegistry) Component(id model.ComponentID) (Component, bool) {
	c, ok := r.components[id]
	return c, ok
}

// Ordered returns component ids in lifecycle order: globals, regions,
// compartments, then producers, each in declaration order.
func (r *FocusRegistry) Ordered() []model.ComponentID {
	out := append([]model.ComponentID(nil), r.declared...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// Focus gives focus to id. Focus is never nested.
func (r *FocusRegistry) Focus(id model.ComponentID) error {
	if _, ok := r.components[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownComponent, id)
	}
	if r.held {
		return fmt.Errorf("%w: %s holds focus, %s requested it", ErrFocusHeld, r.focal, id)
	}
	r.focal, r.held = id, true
	return nil
}

// Release takes focus back from id.
func (r *FocusRegistry) Release(id model.ComponentID) error {
	if err := r.Require(id); err != nil {
		return err
	}
	r.focal, r.held = model.ComponentID{}, false
	return nil
}

// Focal returns the component holding focus.
func (r *FocusRegistry) Focal() (model.ComponentID, bool) {
	return r.focal, r.held
}

// Require fails unless id holds focus.
func (r *FocusRegistry) Require(id model.ComponentID) error {
	if !r.held {
		return fmt.Errorf("%w: %s called outside any turn", ErrNoFocus, id)
	}
	if r.focal != id {
		return fmt.Errorf("%w: %s called during the turn of %s", ErrNoFocus, id, r.focal)
	}
	return nil
}
