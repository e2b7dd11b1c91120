package process

import (
	"math"
	"sync"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/tunnelhill/wtprtu/internal/wtplog"
)

const simTimeOffset = 6 * 3600 // start at 06:00 simulated

// Generator composes the OU processes, rain events, and chlorine model
// into one sensor vector per tick. It owns all stochastic state and the
// event list; every mutation happens under mu, so a single RNG stream
// stays single-threaded even though the Sensor worker and the injection
// handler both call into it.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand

	speed      float64
	autoEvents bool

	simTime float64

	turbOU  *OU
	phOU    *OU
	flowOU  *OU
	levelOU *OU
	tempOU  *OU

	cl2 *ChlorineModel

	reservoirLevel float64

	events       []*RainEvent
	nextRainTime float64

	faults map[string]bool

	glitchUntil float64

	log *wtplog.Logger
}

// Config bundles the construction-time parameters for a Generator.
type Config struct {
	Speed      float64
	Seed       uint64
	AutoEvents bool
}

// New builds a Generator. Speed must be positive; callers validate
// configuration before construction.
func New(cfg Config, logger *wtplog.Logger) *Generator {
	g := &Generator{
		rng:        rand.New(rand.NewSource(cfg.Seed)),
		speed:      cfg.Speed,
		autoEvents: cfg.AutoEvents,

		turbOU:  NewOU(3.5, 0.4, 0.001, 3.5),
		phOU:    NewOU(7.2, 0.03, 0.005, 7.2),
		flowOU:  NewOU(0, 15.0, 0.01, 0),
		levelOU: NewOU(65.0, 0.05, 0.1, 65.0),
		tempOU:  NewOU(0, 0.1, 0.01, 0),

		cl2: NewChlorineModel(),

		reservoirLevel: 65.0,

		faults: map[string]bool{
			SensorTurbidity: false,
			SensorChlorine:  false,
			SensorFlow:      false,
		},

		log: logger,
	}
	g.nextRainTime = g.scheduleNextRain()
	return g
}

// scheduleNextRain draws the next Poisson arrival time for an automatic
// rain event (mean interval 18-36 simulated hours). Caller holds mu.
func (g *Generator) scheduleNextRain() float64 {
	if !g.autoEvents {
		return math.Inf(1)
	}
	meanInterval := (distuv.Uniform{Min: 18, Max: 36, Src: g.rng}).Rand() * 3600
	interarrival := (distuv.Exponential{Rate: 1.0 / meanInterval, Src: g.rng}).Rand()
	return g.simTime + interarrival
}

// Inject applies an external event-injection request. It validates the
// request before mutating any state (Input-range fault semantics).
func (g *Generator) Inject(req InjectRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.injectLocked(req)
}

func (g *Generator) injectLocked(req InjectRequest) error {
	switch req.Kind {
	case KindRain:
		peak := req.PeakTurb
		if peak == 0 {
			peak = 400.0
		}
		duration := req.DurationHours
		if duration == 0 {
			duration = 6.0
		}
		if peak < 0 || duration <= 0 {
			return &ErrInvalidInjection{Reason: "peak_turb and duration_hours must be positive"}
		}
		g.events = append(g.events, NewRainEvent(g.simTime, peak, duration))
		g.log.Infow("rain event injected", "peak_turb", peak, "duration_hours", duration)
	case KindDoseOff:
		g.cl2.DosingActive = false
		g.log.Info("chlorine dosing disabled")
	case KindDoseOn:
		g.cl2.DosingActive = true
		g.log.Info("chlorine dosing enabled")
	case KindFault:
		if !validSensor(req.Sensor) {
			return &ErrInvalidInjection{Reason: "unknown sensor: " + req.Sensor}
		}
		g.faults[req.Sensor] = true
		g.log.Infow("fault injected", "sensor", req.Sensor)
	case KindClear:
		if !validSensor(req.Sensor) {
			return &ErrInvalidInjection{Reason: "unknown sensor: " + req.Sensor}
		}
		g.faults[req.Sensor] = false
		g.log.Infow("fault cleared", "sensor", req.Sensor)
	case KindGlitch:
		g.glitchUntil = g.simTime + 30
		g.log.Info("data glitch injected")
	default:
		return &ErrInvalidInjection{Reason: "unknown event kind: " + string(req.Kind)}
	}
	return nil
}

// Tick advances the simulated clock by wall_dt*speed seconds and returns
// the new sensor vector. coils reflects the operator command bits
// observed no earlier than this tick; when haveCoils is false, coils is
// ignored and the cold-start defaults (see DefaultCoils) are used.
func (g *Generator) Tick(wallDt float64, coils Coils, haveCoils bool) Sensors {
	g.mu.Lock()
	defer g.mu.Unlock()

	simDt := wallDt * g.speed
	g.simTime += simDt
	hour := math.Mod((g.simTime+simTimeOffset)/3600, 24)

	g.autoScheduleRain()
	g.expireEvents()
	anyRain := g.anyActiveRain()

	turbRaw := g.stepTurbidity(simDt)
	ph := g.stepPH(simDt, hour)
	cl2 := g.cl2.Step(simDt, anyRain, g.rng)
	if g.faults[SensorChlorine] {
		cl2 = math.Max(0, cl2-1.5)
	}
	flowRaw := g.stepFlow(simDt, hour)
	levelPct := g.stepLevel(simDt, hour, flowRaw, coils, haveCoils)
	temp := g.stepTemp(simDt, hour)

	turbRaw, ph, flowRaw = g.applyGlitch(turbRaw, ph, flowRaw)

	s := Sensors{
		TurbRaw:  turbRaw,
		PH:       ph,
		Cl2:      cl2,
		FlowRaw:  flowRaw,
		LevelPct: levelPct,
		LevelCm:  levelPct * 30,
		Temp:     temp,
		LvlHi:    levelPct > 95,
		LvlLo:    levelPct < 20,
		Pulses:   uint32(flowRaw * 0.02),
	}

	if haveCoils {
		s.PIntake, s.PAlum, s.PCl2, s.VBw = coils.Intake, coils.Alum, coils.Cl2, coils.Bw
	} else {
		d := DefaultCoils()
		s.PIntake, s.PAlum, s.PCl2, s.VBw = d.Intake, d.Alum, d.Cl2, d.Bw
	}

	return s
}

func (g *Generator) autoScheduleRain() {
	if g.autoEvents && g.simTime >= g.nextRainTime {
		peak := (distuv.Uniform{Min: 200, Max: 800, Src: g.rng}).Rand()
		duration := (distuv.Uniform{Min: 3, Max: 10, Src: g.rng}).Rand()
		g.events = append(g.events, NewRainEvent(g.simTime, peak, duration))
		g.nextRainTime = g.scheduleNextRain()
	}
}

func (g *Generator) expireEvents() {
	live := g.events[:0]
	for _, e := range g.events {
		if !e.Expired(g.simTime) {
			live = append(live, e)
		}
	}
	g.events = live
}

func (g *Generator) anyActiveRain() bool {
	for _, e := range g.events {
		if e.Active(g.simTime) {
			return true
		}
	}
	return false
}

func (g *Generator) stepTurbidity(simDt float64) float64 {
	g.turbOU.Step(simDt, g.rng)
	turbBase := math.Max(0.5, g.turbOU.X)
	var rain float64
	for _, e := range g.events {
		rain += e.TurbidityContribution(g.simTime)
	}
	turbRaw := turbBase + rain
	sigmaN := math.Max(0.3, 0.02*turbRaw)
	noise := (distuv.Normal{Mu: 0, Sigma: sigmaN, Src: g.rng}).Rand()
	turbRaw = math.Max(0, turbRaw+noise)

	if g.faults[SensorTurbidity] {
		turbRaw = (distuv.Uniform{Min: 900, Max: 999, Src: g.rng}).Rand()
	}
	return turbRaw
}

func (g *Generator) stepPH(simDt, hour float64) float64 {
	diurnal := 7.2 + 0.2*math.Sin(2*math.Pi*hour/24)
	g.phOU.SetMu(diurnal)
	g.phOU.Step(simDt, g.rng)
	ph := g.phOU.X
	for _, e := range g.events {
		ph += e.PHContribution(g.simTime)
	}
	return clamp(ph, 4, 10)
}

func (g *Generator) stepFlow(simDt, hour float64) float64 {
	base := DiurnalFlow(hour, 500)
	g.flowOU.Step(simDt, g.rng)
	flow := base + g.flowOU.X
	for _, e := range g.events {
		flow += e.FlowContribution(g.simTime, base)
	}
	noise := (distuv.Normal{Mu: 0, Sigma: math.Abs(flow) * 0.03, Src: g.rng}).Rand()
	flow += noise
	if g.faults[SensorFlow] {
		return 0
	}
	return math.Max(0, flow)
}

func (g *Generator) stepLevel(simDt, hour, flowRaw float64, coils Coils, haveCoils bool) float64 {
	intakeRunning := true
	if haveCoils {
		intakeRunning = coils.Intake
	}
	inflow := 0.0
	if intakeRunning {
		inflow = flowRaw
	}
	demand := DiurnalFlow(hour, 500)
	rate := (inflow - demand) / 500.0 * (3.6 / 3600.0)
	g.reservoirLevel += rate * simDt
	g.reservoirLevel = clamp(g.reservoirLevel, 0, 100)

	g.levelOU.SetMu(g.reservoirLevel)
	g.levelOU.Step(simDt, g.rng)
	levelPct := clamp(g.levelOU.X, 0, 100)

	// Anti-windup: write the clamped level back into both the integrator
	// and the OU state so sensor noise never fights the mass balance.
	g.levelOU.X = levelPct
	g.reservoirLevel = levelPct
	return levelPct
}

func (g *Generator) stepTemp(simDt, hour float64) float64 {
	base := DiurnalTemp(hour, 22, 28)
	g.tempOU.Step(simDt, g.rng)
	temp := base + g.tempOU.X
	for _, e := range g.events {
		temp += e.TempContribution(g.simTime)
	}
	return clamp(temp, 10, 45)
}

func (g *Generator) applyGlitch(turbRaw, ph, flowRaw float64) (float64, float64, float64) {
	if g.simTime >= g.glitchUntil {
		return turbRaw, ph, flowRaw
	}
	turbRaw += (distuv.Uniform{Min: -50, Max: 200, Src: g.rng}).Rand()
	ph += (distuv.Uniform{Min: -2, Max: 2, Src: g.rng}).Rand()
	flowRaw += (distuv.Uniform{Min: -200, Max: 200, Src: g.rng}).Rand()
	turbRaw = math.Max(0, turbRaw)
	ph = clamp(ph, 0, 14)
	flowRaw = math.Max(0, flowRaw)
	return turbRaw, ph, flowRaw
}

// StateSummary is a read-only view of the generator's simulation-level
// state, used by Snapshot and the console `status` command.
type StateSummary struct {
	SimTime          float64
	SimHour          float64
	SimDay           int
	Speed            float64
	ActiveRainEvents int
	DosingActive     bool
	Faults           map[string]bool
}

// State returns a StateSummary snapshot of the generator's current
// simulation-level state.
func (g *Generator) State() StateSummary {
	g.mu.Lock()
	defer g.mu.Unlock()

	total := g.simTime + simTimeOffset
	hour := math.Mod(total/3600, 24)
	day := int(total / 86400)

	active := 0
	for _, e := range g.events {
		if e.Active(g.simTime) {
			active++
		}
	}

	faults := make(map[string]bool)
	for k, v := range g.faults {
		if v {
			faults[k] = true
		}
	}

	return StateSummary{
		SimTime:          g.simTime,
		SimHour:          hour,
		SimDay:           day,
		Speed:            g.speed,
		ActiveRainEvents: active,
		DosingActive:     g.cl2.DosingActive,
		Faults:           faults,
	}
}
