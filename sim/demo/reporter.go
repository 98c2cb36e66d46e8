package demo

import (
	"github.com/sirupsen/logrus"

	"github.com/inference-sim/popsim/sim"
	"github.com/inference-sim/popsim/sim/filter"
	"github.com/inference-sim/popsim/sim/model"
	"github.com/inference-sim/popsim/sim/population"
)

// RegionCounts is the final status breakdown of one region.
type RegionCounts struct {
	Susceptible int `json:"susceptible"`
	Infectious  int `json:"infectious"`
	Recovered   int `json:"recovered"`
}

// Result summarizes a finished epidemic.
type Result struct {
	EndTime        float64                        `json:"end_time"`
	Population     int                            `json:"population"`
	Susceptible    int                            `json:"susceptible"`
	Infectious     int                            `json:"infectious"`
	Recovered      int                            `json:"recovered"`
	Vaccinated     int                            `json:"vaccinated"`
	Doses          int64                          `json:"doses"`
	Infections     int                            `json:"infections"` // includes the initial cases
	PeakInfectious int                            `json:"peak_infectious"`
	PeakTime       float64                        `json:"peak_time"`
	ByRegion       map[model.RegionID]RegionCounts `json:"by_region"`
}

// Reporter tracks infections as they happen, halts the run when the last
// case recovers and tallies the final state while the environment closes.
type Reporter struct {
	params Params
	result Result
}

// Result returns the summary. It is complete only after the run.
func (r *Reporter) Result() Result { return r.result }

func infectiousQuery() *population.Query {
	return population.NewQuery().Attribute(Status, Infectious)
}

func (r *Reporter) Init(ctx *sim.Context) error {
	if err := ctx.Observe(sim.ObserveAttribute, string(Status)); err != nil {
		return err
	}
	n, err := ctx.PartitionSize(RegionStatus, infectiousQuery())
	if err != nil {
		return err
	}
	r.result.Infections = n
	r.result.PeakInfectious = n
	return nil
}

func (r *Reporter) ExecutePlan(*sim.Context, any) error { return nil }

func (r *Reporter) Observe(ctx *sim.Context, obs sim.Observation) error {
	if obs.Current.AsString() == Infectious && obs.Previous.AsString() != Infectious {
		r.result.Infections++
	}
	n, err := ctx.PartitionSize(RegionStatus, infectiousQuery())
	if err != nil {
		return err
	}
	if n > r.result.PeakInfectious {
		r.result.PeakInfectious = n
		r.result.PeakTime = ctx.Time()
	}
	if n == 0 {
		logrus.Infof("[t=%g] last case recovered after %d infections", ctx.Time(), r.result.Infections)
		return ctx.Halt()
	}
	return nil
}

func (r *Reporter) Close(ctx *sim.Context) error {
	res := &r.result
	res.EndTime = ctx.Time()
	var err error
	if res.Population, err = ctx.PopulationCount(); err != nil {
		return err
	}
	res.ByRegion = make(map[model.RegionID]RegionCounts, r.params.Regions)
	for i := 0; i < r.params.Regions; i++ {
		region := RegionID(i)
		var rc RegionCounts
		for status, dst := range map[string]*int{Susceptible: &rc.Susceptible, Infectious: &rc.Infectious, Recovered: &rc.Recovered} {
			if *dst, err = ctx.PartitionSize(RegionStatus, population.NewQuery().Region(region).Attribute(Status, status)); err != nil {
				return err
			}
		}
		res.ByRegion[region] = rc
		res.Susceptible += rc.Susceptible
		res.Infectious += rc.Infectious
		res.Recovered += rc.Recovered
	}

	vaccinated, err := ctx.Select(filter.Attribute(Vaccinated, model.Equal, model.Bool(true)))
	if err != nil {
		return err
	}
	res.Vaccinated = len(vaccinated)
	dosed, err := ctx.Select(filter.Resource(Doses, model.GreaterThan, 0))
	if err != nil {
		return err
	}
	for _, p := range dosed {
		level, err := ctx.ResourceLevel(p, Doses)
		if err != nil {
			return err
		}
		res.Doses += level
	}
	return nil
}
