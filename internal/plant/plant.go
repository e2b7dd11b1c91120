// Package plant wires the process generator, control logic, and
// register bank together and runs the scan-cycle workers: a sensor
// worker that ticks the stochastic model, a scan worker that runs the
// control logic and republishes into the register bank, a command
// reader that watches for coil writes, and an injection handler for
// externally triggered scenario events.
package plant

import (
	"context"
	"sync"
	"time"

	"github.com/tunnelhill/wtprtu/internal/config"
	"github.com/tunnelhill/wtprtu/internal/control"
	"github.com/tunnelhill/wtprtu/internal/process"
	"github.com/tunnelhill/wtprtu/internal/registers"
	"github.com/tunnelhill/wtprtu/internal/snapshot"
	"github.com/tunnelhill/wtprtu/internal/wtplog"
)

const scanInterval = 1 * time.Second

// Plant is the running simulator: the stochastic generator, the
// control logic, and the register bank, plus the snapshot most
// recently published for the dashboard and console.
type Plant struct {
	gen  *process.Generator
	ctl  *control.Logic
	regs *registers.Map
	log  *wtplog.Logger

	mu   sync.RWMutex
	snap snapshot.Snapshot

	injectCh chan injectRequest
}

type injectRequest struct {
	req  process.InjectRequest
	resp chan error
}

// New builds a Plant from configuration.
func New(cfg config.Config, logger *wtplog.Logger) *Plant {
	gen := process.New(process.Config{
		Speed:      cfg.Simulation.Speed,
		Seed:       uint64(cfg.Simulation.Seed),
		AutoEvents: cfg.Simulation.AutoEvents,
	}, logger.Named("process"))

	return &Plant{
		gen:      gen,
		ctl:      control.New(),
		regs:     registers.New(),
		log:      logger.Named("plant"),
		injectCh: make(chan injectRequest, 32),
	}
}

// Run starts the combined sensor/scan worker, the command reader, and
// the injection handler as goroutines and returns at once; the workers
// stop when ctx is cancelled.
func (p *Plant) Run(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(3)
	go p.sensorAndScanWorker(ctx, wg)
	go p.commandReader(ctx, wg)
	go p.injectionHandler(ctx, wg)
}

// sensorAndScanWorker runs the 1-second scan cycle: tick the process
// generator, run the control logic, and publish both into the register
// bank and the cached snapshot. The Python reference splits this into
// a data-reader thread and a process-logic thread; a single goroutine
// is sufficient here because both steps are fast and strictly
// sequential (control logic always consumes the tick it triggered).
func (p *Plant) sensorAndScanWorker(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	ticker := time.NewTicker(scanInterval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			p.tick(dt)
		}
	}
}

func (p *Plant) tick(dt float64) {
	coilBank := p.regs.Coils()
	coils := process.Coils{
		Intake: coilBank[registers.CoIntakeCmd],
		Alum:   coilBank[registers.CoAlumCmd],
		Cl2:    coilBank[registers.CoCl2Cmd],
		Bw:     coilBank[registers.CoBwCmd],
	}
	sensors := p.gen.Tick(dt, coils, true)
	if sensors.LevelPct < 0 || sensors.LevelPct > 100 {
		p.log.Fatal("invariant violated: level_pct outside [0,100]: ", sensors.LevelPct)
	}

	ctlCoils := control.Coils{
		Auto:   coilBank[registers.CoAutoMode],
		EStop:  coilBank[registers.CoEStop],
		Intake: coilBank[registers.CoIntakeCmd],
		Bw:     coilBank[registers.CoBwCmd],
	}
	result := p.ctl.Tick(dt, control.Inputs{
		TurbRaw:  sensors.TurbRaw,
		PH:       sensors.PH,
		Cl2:      sensors.Cl2,
		FlowRaw:  sensors.FlowRaw,
		LevelPct: sensors.LevelPct,
	}, ctlCoils)

	p.regs.ApplyHolding(registers.HoldingUpdate{
		TurbRaw:      result.TurbRaw,
		TurbFiltered: result.TurbFiltered,
		PH:           result.PH,
		Cl2:          result.Cl2,
		FlowRaw:      result.FlowRaw,
		FlowTreated:  result.FlowTreated,
		LevelPct:     result.LevelPct,
		Temp:         sensors.Temp,
		FilterDP:     result.FilterDP,
		LevelCm:      sensors.LevelCm,
		BwCount:      result.BackwashCount,
		TotalFlowML:  result.TotalFlowML,
		RuntimeHours: result.RuntimeHours,
	})
	p.regs.ApplyDiscreteInputs(registers.DiscreteInputUpdate{
		IntakeRun: sensors.PIntake,
		AlumRun:   sensors.PAlum,
		Cl2Run:    sensors.PCl2,
		BwOpen:    sensors.VBw,
		LevelHigh: sensors.LvlHi,
		LevelLow:  sensors.LvlLo,
		BwActive:  result.Status == control.StatusBackwash,
		AlmTurb:   result.TurbShutdown,
		AlmCl2:    result.Cl2 < 0.2,
		CommFault: false,
	})
	p.regs.ApplyInputRegisters(result.TurbRaw, int(result.Status), result.AlarmWord)
	p.regs.WriteCoil(registers.CoTurbShutdown, result.TurbShutdown)

	if result.TurbShutdown {
		p.log.Warnw("high turbidity shutdown", "turb_raw", result.TurbRaw)
	}

	p.mu.Lock()
	p.snap = snapshot.Snapshot{Sensors: sensors, Result: result, Sim: p.gen.State()}
	p.mu.Unlock()
}

// commandReader watches the coil bank for changes an operator or
// SCADA master made via the fieldbus, at 4Hz, and logs them — mirroring
// the Python reference's command-writer thread.
func (p *Plant) commandReader(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	prev := p.regs.Coils()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur := p.regs.Coils()
			if cur != prev {
				p.log.Infow("coil state changed", "coils", cur)
				prev = cur
			}
		}
	}
}

// injectionHandler serializes external event-injection requests onto
// the generator, decoupling the dashboard/console callers from the
// generator's internal lock.
func (p *Plant) injectionHandler(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ir := <-p.injectCh:
			ir.resp <- p.gen.Inject(ir.req)
		}
	}
}

// Inject submits an event-injection request and waits for it to be
// applied or rejected.
func (p *Plant) Inject(req process.InjectRequest) error {
	resp := make(chan error, 1)
	p.injectCh <- injectRequest{req: req, resp: resp}
	return <-resp
}

// SetCoil writes a single coil, as an operator/SCADA command would.
func (p *Plant) SetCoil(addr int, v bool) bool {
	return p.regs.WriteCoil(addr, v)
}

// Snapshot returns the most recently published plant snapshot.
func (p *Plant) Snapshot() snapshot.Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}

// Registers exposes the register bank directly, for the fieldbus
// transport's Modbus function-code handlers.
func (p *Plant) Registers() *registers.Map {
	return p.regs
}
