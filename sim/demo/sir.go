// Package demo is a small SIR epidemic built on the kernel. It exercises
// every kernel facility a real model needs: regions and compartments,
// indexed attributes, households, a dose resource, keyed and canceled
// plans, and an observer that halts the run.
package demo

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/popsim/sim"
	"github.com/inference-sim/popsim/sim/filter"
	"github.com/inference-sim/popsim/sim/model"
	"github.com/inference-sim/popsim/sim/population"
	"github.com/inference-sim/popsim/sim/store"
)

// State identifiers shared by the components.
const (
	Status     model.AttributeID = "status"
	Vaccinated model.AttributeID = "vaccinated"
	Age        model.AttributeID = "age"

	Doses     model.ResourceID  = "doses"
	Household model.GroupTypeID = "household"

	Community model.CompartmentID = "community"
	Isolation model.CompartmentID = "isolation"

	Susceptible = "S"
	Infectious  = "I"
	Recovered   = "R"

	// InfectiousIndex holds infectious people who are not isolated.
	InfectiousIndex = "infectious"
	// EligibleIndex holds unvaccinated susceptible people old enough for a dose.
	EligibleIndex = "eligible"
	// RegionStatus partitions everybody by region and status.
	RegionStatus = "region-status"
)

// Params are the epidemic's rates and sizes. Rates are per simulated day.
type Params struct {
	Population      int     `json:"population"`
	Regions         int     `json:"regions"`
	HouseholdSize   int     `json:"household_size"`
	InitialInfected int     `json:"initial_infected"`
	ContactRate     float64 `json:"contact_rate"`    // contacts per infectious person
	HouseholdShare  float64 `json:"household_share"` // fraction of contacts inside the household
	RecoveryRate    float64 `json:"recovery_rate"`
	IsolationProb   float64 `json:"isolation_prob"`
	DoseInterval    float64 `json:"dose_interval"` // 0 disables vaccination
	Efficacy        float64 `json:"efficacy"`
	MinDoseAge      int64   `json:"min_dose_age"`
}

func DefaultParams() Params {
	return Params{
		Population:      1000,
		Regions:         2,
		HouseholdSize:   4,
		InitialInfected: 5,
		ContactRate:     0.6,
		HouseholdShare:  0.4,
		RecoveryRate:    0.2,
		IsolationProb:   0.3,
		DoseInterval:    0.05,
		Efficacy:        0.9,
		MinDoseAge:      12,
	}
}

func (p Params) Validate() error {
	switch {
	case p.Population <= 0:
		return fmt.Errorf("population must be positive, got %d", p.Population)
	case p.Regions <= 0:
		return fmt.Errorf("regions must be positive, got %d", p.Regions)
	case p.HouseholdSize <= 0:
		return fmt.Errorf("household_size must be positive, got %d", p.HouseholdSize)
	case p.InitialInfected <= 0 || p.InitialInfected > p.Population:
		return fmt.Errorf("initial_infected must be in [1, %d], got %d", p.Population, p.InitialInfected)
	case p.ContactRate <= 0 || p.RecoveryRate <= 0:
		return fmt.Errorf("contact_rate and recovery_rate must be positive")
	case p.DoseInterval < 0:
		return fmt.Errorf("dose_interval must be non-negative, got %v", p.DoseInterval)
	}
	for name, v := range map[string]float64{"household_share": p.HouseholdShare, "isolation_prob": p.IsolationProb, "efficacy": p.Efficacy} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be in [0, 1], got %v", name, v)
		}
	}
	return nil
}

// RegionID names the i-th region.
func RegionID(i int) model.RegionID { return model.RegionID(fmt.Sprintf("region-%d", i)) }

// Build returns the epidemic scenario and the reporter that collects its
// Result once the environment has run.
func Build(p Params) (*sim.Scenario, *Reporter, error) {
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}
	rep := &Reporter{params: p}
	sc := sim.NewScenario().
		AddCompartment(Community, nil).
		AddCompartment(Isolation, nil).
		DefineAttribute(store.AttributeDef{ID: Status, Kind: model.KindString, Default: model.String(Susceptible), Indexed: true, TrackTimes: true}).
		DefineAttribute(store.AttributeDef{ID: Vaccinated, Kind: model.KindBool, Indexed: true}).
		DefineAttribute(store.AttributeDef{ID: Age, Kind: model.KindInt}).
		DefineResource(Doses).
		DefineGroupType(Household)
	for i := 0; i < p.Regions; i++ {
		sc.AddRegion(RegionID(i), nil)
	}
	sc.AddGlobal("seeder", &seeder{params: p}).
		AddGlobal("reporter", rep).
		AddProducer("transmission", &transmission{params: p})
	if p.DoseInterval > 0 {
		sc.AddGlobal("vaccination", &vaccination{params: p})
	}
	return sc, rep, nil
}

func statusLabel(v model.Value) any { return v.AsString() }

// seeder creates the population, its households and the shared indexes,
// then infects the initial cases.
type seeder struct {
	sim.FuncComponent
	params Params
}

func (s *seeder) Init(ctx *sim.Context) error {
	rng := ctx.Random()
	var household model.GroupID
	for i := 0; i < s.params.Population; i++ {
		p, err := ctx.AddPerson(RegionID(i%s.params.Regions), Community, map[model.AttributeID]model.Value{
			Age: model.Int(rng.Int63n(90)),
		})
		if err != nil {
			return err
		}
		if i%s.params.HouseholdSize == 0 {
			if household, err = ctx.AddGroup(Household); err != nil {
				return err
			}
		}
		if err := ctx.AddPersonToGroup(p, household); err != nil {
			return err
		}
	}

	if err := ctx.AddIndex(InfectiousIndex, filter.And(
		filter.Attribute(Status, model.Equal, model.String(Infectious)),
		filter.InCompartment(Community),
	)); err != nil {
		return err
	}
	if err := ctx.AddIndex(EligibleIndex, filter.AllOf(
		filter.Attribute(Status, model.Equal, model.String(Susceptible)),
		filter.Attribute(Vaccinated, model.Equal, model.Bool(false)),
		filter.Attribute(Age, model.GreaterThanOrEqual, model.Int(s.params.MinDoseAge)),
	)); err != nil {
		return err
	}
	if err := ctx.AddPartition(RegionStatus, population.Definition{
		Region:     &population.RegionDimension{},
		Attributes: []population.AttributeDimension{{Attribute: Status, Label: statusLabel}},
	}); err != nil {
		return err
	}

	for i := 0; i < s.params.InitialInfected; i++ {
		p, ok, err := ctx.RandomPartitionMember(RegionStatus, population.NewQuery().Attribute(Status, Susceptible), model.NoPerson)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if err := ctx.SetAttributeValue(p, Status, model.String(Infectious)); err != nil {
			return err
		}
	}
	logrus.Debugf("seeded %d people in %d regions", s.params.Population, s.params.Regions)
	return nil
}
