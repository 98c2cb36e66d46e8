package demo

import (
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/popsim/sim"
)

func TestMain(m *testing.M) {
	if os.Getenv("DEBUG_TESTS") == "" {
		logrus.SetLevel(logrus.WarnLevel)
	}
	os.Exit(m.Run())
}

func run(t *testing.T, cfg sim.Config, p Params) (Result, *sim.Environment) {
	t.Helper()
	sc, rep, err := Build(p)
	require.NoError(t, err)
	env, err := sim.NewEnvironment(cfg, sc)
	require.NoError(t, err)
	require.NoError(t, env.Run())
	return rep.Result(), env
}

func TestRun_SameSeedSameEpidemic(t *testing.T) {
	p := DefaultParams()
	p.Population = 400

	a, _ := run(t, sim.DefaultConfig(), p)
	b, _ := run(t, sim.DefaultConfig(), p)

	assert.Equal(t, a, b)
}

func TestRun_ConservesPopulation(t *testing.T) {
	// GIVEN a run with no horizon
	p := DefaultParams()
	p.Population = 500
	p.Regions = 3
	res, env := run(t, sim.DefaultConfig(), p)

	// THEN every person ends in exactly one status and region
	assert.Equal(t, p.Population, res.Population)
	assert.Equal(t, p.Population, res.Susceptible+res.Infectious+res.Recovered)
	sum := 0
	for _, rc := range res.ByRegion {
		sum += rc.Susceptible + rc.Infectious + rc.Recovered
	}
	assert.Equal(t, p.Population, sum)
	assert.Len(t, res.ByRegion, 3)

	// AND the epidemic ran to extinction
	assert.Zero(t, res.Infectious, "every case has a recovery plan")
	assert.Equal(t, res.Infections, res.Recovered, "recovered people were all infected once")
	assert.GreaterOrEqual(t, res.Infections, p.InitialInfected)
	assert.GreaterOrEqual(t, res.PeakInfectious, p.InitialInfected)
	assert.Equal(t, sim.PhaseDone, env.Phase())
	assert.Equal(t, 2, env.IndexCount())
	assert.Equal(t, 1, env.PartitionCount())
}

func TestRun_CampaignVaccinatesEligibleOnly(t *testing.T) {
	// GIVEN almost no transmission and a slow recovery, so the campaign
	// runs out of eligible people long before the single case recovers
	p := DefaultParams()
	p.Population = 60
	p.InitialInfected = 1
	p.ContactRate = 1e-9
	p.RecoveryRate = 0.01
	p.DoseInterval = 0.1

	res, _ := run(t, sim.DefaultConfig(), p)

	// THEN each vaccinated person got exactly one dose
	assert.Positive(t, res.Vaccinated)
	assert.Equal(t, int64(res.Vaccinated), res.Doses)
	assert.Less(t, res.Vaccinated, p.Population)
	assert.Equal(t, 1, res.Infections)
}

func TestRun_HorizonStopsEarly(t *testing.T) {
	p := DefaultParams()
	p.Population = 300
	p.RecoveryRate = 0.001
	cfg := sim.DefaultConfig()
	cfg.Horizon = 1

	res, env := run(t, cfg, p)

	assert.LessOrEqual(t, res.EndTime, 1.0)
	assert.Positive(t, res.Infectious, "cases outlive a one-day horizon")
	assert.Positive(t, env.PendingPlans())
}

func TestRun_NoVaccination(t *testing.T) {
	p := DefaultParams()
	p.Population = 200
	p.DoseInterval = 0

	res, _ := run(t, sim.DefaultConfig(), p)

	assert.Zero(t, res.Vaccinated)
	assert.Zero(t, res.Doses)
}

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"zero population", func(p *Params) { p.Population = 0 }},
		{"zero regions", func(p *Params) { p.Regions = 0 }},
		{"zero household", func(p *Params) { p.HouseholdSize = 0 }},
		{"no initial cases", func(p *Params) { p.InitialInfected = 0 }},
		{"too many initial cases", func(p *Params) { p.InitialInfected = p.Population + 1 }},
		{"zero contact rate", func(p *Params) { p.ContactRate = 0 }},
		{"negative dose interval", func(p *Params) { p.DoseInterval = -1 }},
		{"efficacy above one", func(p *Params) { p.Efficacy = 1.5 }},
	}
	require.NoError(t, DefaultParams().Validate())
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := DefaultParams()
			tc.mutate(&p)
			assert.Error(t, p.Validate())
			_, _, err := Build(p)
			assert.Error(t, err)
		})
	}
}
