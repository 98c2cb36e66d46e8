package demo

import (
	"github.com/sirupsen/logrus"

	"github.com/inference-sim/popsim/sim"
	"github.com/inference-sim/popsim/sim/model"
	"github.com/inference-sim/popsim/sim/population"
)

const doseKey = "dose"

// vaccination gives one dose every DoseInterval to a random eligible
// person and cancels its pending dose once nobody is eligible.
type vaccination struct {
	sim.FuncComponent
	params Params
}

func (v *vaccination) Init(ctx *sim.Context) error {
	if err := ctx.Observe(sim.ObserveIndex, EligibleIndex); err != nil {
		return err
	}
	return ctx.SchedulePlan(ctx.Time()+v.params.DoseInterval, doseKey, nil)
}

func (v *vaccination) ExecutePlan(ctx *sim.Context, _ any) error {
	p, ok, err := ctx.RandomIndexMember(EligibleIndex, model.NoPerson)
	if err != nil || !ok {
		return err
	}
	if err := ctx.SetAttributeValue(p, Vaccinated, model.Bool(true)); err != nil {
		return err
	}
	if err := ctx.AddResource(p, Doses, 1); err != nil {
		return err
	}
	return ctx.SchedulePlan(ctx.Time()+v.params.DoseInterval, doseKey, nil)
}

func (v *vaccination) Observe(ctx *sim.Context, obs sim.Observation) error {
	if obs.Change != population.Removed {
		return nil
	}
	n, err := ctx.IndexSize(EligibleIndex)
	if err != nil || n > 0 {
		return err
	}
	if _, canceled, err := ctx.CancelPlan(doseKey); err != nil {
		return err
	} else if canceled {
		logrus.Debugf("[t=%g] campaign over, nobody left to vaccinate", ctx.Time())
	}
	return nil
}
