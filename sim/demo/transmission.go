package demo

import (
	"fmt"

	"github.com/inference-sim/popsim/sim"
	"github.com/inference-sim/popsim/sim/filter"
	"github.com/inference-sim/popsim/sim/model"
	"github.com/inference-sim/popsim/sim/population"
)

// Plan payloads of the transmission producer.
type (
	contactEvent  struct{}
	recoveryEvent struct{ person model.PersonID }
)

const contactKey = "contact"

func recoveryKey(p model.PersonID) string { return fmt.Sprintf("recover-%d", p) }

// transmission runs the epidemic as a sequence of contact events whose
// rate is proportional to the number of non-isolated infectious people.
type transmission struct {
	sim.FuncComponent
	params Params
}

func (tr *transmission) Init(ctx *sim.Context) error {
	cases, err := ctx.Select(filter.Attribute(Status, model.Equal, model.String(Infectious)))
	if err != nil {
		return err
	}
	for _, p := range cases {
		if err := tr.scheduleRecovery(ctx, p); err != nil {
			return err
		}
	}
	return tr.scheduleContact(ctx)
}

func (tr *transmission) ExecutePlan(ctx *sim.Context, payload any) error {
	switch ev := payload.(type) {
	case contactEvent:
		if err := tr.contact(ctx); err != nil {
			return err
		}
		return tr.scheduleContact(ctx)
	case recoveryEvent:
		return tr.recover(ctx, ev.person)
	}
	return fmt.Errorf("unexpected payload %T", payload)
}

// scheduleContact queues the next contact unless one is pending or nobody
// can transmit.
func (tr *transmission) scheduleContact(ctx *sim.Context) error {
	if _, pending, err := ctx.PlanTime(contactKey); err != nil || pending {
		return err
	}
	n, err := ctx.IndexSize(InfectiousIndex)
	if err != nil || n == 0 {
		return err
	}
	dt := ctx.Random().ExpFloat64() / (tr.params.ContactRate * float64(n))
	return ctx.SchedulePlan(ctx.Time()+dt, contactKey, contactEvent{})
}

func (tr *transmission) scheduleRecovery(ctx *sim.Context, p model.PersonID) error {
	dt := ctx.Random().ExpFloat64() / tr.params.RecoveryRate
	return ctx.SchedulePlan(ctx.Time()+dt, recoveryKey(p), recoveryEvent{p})
}

func (tr *transmission) contact(ctx *sim.Context) error {
	src, ok, err := ctx.RandomIndexMember(InfectiousIndex, model.NoPerson)
	if err != nil || !ok {
		return err
	}
	target, ok, err := tr.pickContact(ctx, src)
	if err != nil || !ok {
		return err
	}
	susceptible, err := ctx.Matches(target, filter.And(
		filter.Attribute(Status, model.Equal, model.String(Susceptible)),
		filter.InCompartment(Community),
	))
	if err != nil || !susceptible {
		return err
	}
	vacc, err := ctx.AttributeValue(target, Vaccinated)
	if err != nil {
		return err
	}
	if vacc.AsBool() && ctx.Random().Float64() < tr.params.Efficacy {
		return nil
	}
	return tr.infect(ctx, target)
}

// pickContact draws a household member of src with probability
// HouseholdShare and otherwise anybody in src's region.
func (tr *transmission) pickContact(ctx *sim.Context, src model.PersonID) (model.PersonID, bool, error) {
	rng := ctx.Random()
	if rng.Float64() < tr.params.HouseholdShare {
		groups, err := ctx.GroupsForPerson(src)
		if err != nil {
			return model.NoPerson, false, err
		}
		if len(groups) > 0 {
			members, err := ctx.GroupMembers(groups[0])
			if err != nil {
				return model.NoPerson, false, err
			}
			others := make([]model.PersonID, 0, len(members))
			for _, m := range members {
				if m != src {
					others = append(others, m)
				}
			}
			if len(others) > 0 {
				return others[rng.Intn(len(others))], true, nil
			}
		}
	}
	r, err := ctx.PersonRegion(src)
	if err != nil {
		return model.NoPerson, false, err
	}
	return ctx.RandomPartitionMember(RegionStatus, population.NewQuery().Region(r), src)
}

func (tr *transmission) infect(ctx *sim.Context, p model.PersonID) error {
	if err := ctx.SetAttributeValue(p, Status, model.String(Infectious)); err != nil {
		return err
	}
	if ctx.Random().Float64() < tr.params.IsolationProb {
		if err := ctx.SetPersonCompartment(p, Isolation); err != nil {
			return err
		}
	}
	return tr.scheduleRecovery(ctx, p)
}

func (tr *transmission) recover(ctx *sim.Context, p model.PersonID) error {
	if err := ctx.SetAttributeValue(p, Status, model.String(Recovered)); err != nil {
		return err
	}
	return ctx.SetPersonCompartment(p, Community)
}
