// Package registers implements the Modbus-shaped register bank that
// sits between the plant's control logic and the fieldbus transport:
// coils, discrete inputs, input registers, and holding registers, each
// addressed and scaled exactly as a real SCADAPack RTU would expose
// them.
package registers

import "sync"

// Bank sizes, matching the 0-indexed internal offsets a real device
// would map to 00001+/10001+/30001+/40001+.
const (
	NumCoils            = 20
	NumDiscreteInputs   = 20
	NumInputRegisters   = 20
	NumHoldingRegisters = 30
)

// Coil offsets.
const (
	CoIntakeCmd = iota
	CoAlumCmd
	CoCl2Cmd
	CoBwCmd
	CoAutoMode
	CoEStop
	CoAlarmAck
	CoTurbShutdown
)

// Discrete input offsets.
const (
	DiIntakeRun = iota
	DiAlumRun
	DiCl2Run
	DiBwOpen
	DiLevelHigh
	DiLevelLow
	DiBwActive
	DiAlmTurb
	DiAlmCl2
	DiCommFault
)

// Input register offsets.
const (
	IrTurbBackup = iota
	IrPlantStatus
	IrAlarmWord
)

// Holding register offsets.
const (
	HrTurbRaw = iota
	HrTurbFiltered
	HrPH
	HrCl2
	HrFlowRaw
	HrFlowTreated
	HrLevelPct
	HrTemp
	HrAlumDose
	HrFilterDP
	HrDamRelease
	HrLevelCm
	HrBwCount
	HrTotalFlow
	HrRuntime
)

// Map is the full register bank. All banks are protected by a single
// RWMutex: the scan worker writes every bank, the fieldbus and
// dashboard transports read, and Modbus function codes 5/15 and the
// dashboard's coil endpoint write coils.
type Map struct {
	mu sync.RWMutex

	coils [NumCoils]bool
	di    [NumDiscreteInputs]bool
	ir    [NumInputRegisters]uint16
	hr    [NumHoldingRegisters]uint16
}

// New returns a Map with coils at their cold-start defaults: intake,
// alum, and chlorine dosing commanded on, auto mode on.
func New() *Map {
	m := &Map{}
	m.coils[CoIntakeCmd] = true
	m.coils[CoAlumCmd] = true
	m.coils[CoCl2Cmd] = true
	m.coils[CoAutoMode] = true
	return m
}

// Coils returns a snapshot of the coil bank.
func (m *Map) Coils() [NumCoils]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.coils
}

// ReadCoils returns count coil values starting at addr (Modbus FC1).
func (m *Map) ReadCoils(addr, count int) []bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]bool, count)
	for i := 0; i < count && addr+i < NumCoils; i++ {
		out[i] = m.coils[addr+i]
	}
	return out
}

// WriteCoil sets a single coil (Modbus FC5).
func (m *Map) WriteCoil(addr int, v bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if addr < 0 || addr >= NumCoils {
		return false
	}
	m.coils[addr] = v
	return true
}

// WriteCoils sets a run of coils (Modbus FC15).
func (m *Map) WriteCoils(addr int, vs []bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if addr < 0 || addr+len(vs) > NumCoils {
		return false
	}
	for i, v := range vs {
		m.coils[addr+i] = v
	}
	return true
}

// ReadDiscreteInputs returns count discrete-input values (Modbus FC2).
func (m *Map) ReadDiscreteInputs(addr, count int) []bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]bool, count)
	for i := 0; i < count && addr+i < NumDiscreteInputs; i++ {
		out[i] = m.di[addr+i]
	}
	return out
}

// ReadHoldingRegisters returns count holding-register values (Modbus FC3).
func (m *Map) ReadHoldingRegisters(addr, count int) []uint16 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]uint16, count)
	for i := 0; i < count && addr+i < NumHoldingRegisters; i++ {
		out[i] = m.hr[addr+i]
	}
	return out
}

// ReadInputRegisters returns count input-register values (Modbus FC4).
func (m *Map) ReadInputRegisters(addr, count int) []uint16 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]uint16, count)
	for i := 0; i < count && addr+i < NumInputRegisters; i++ {
		out[i] = m.ir[addr+i]
	}
	return out
}

// DiscreteInputUpdate is the digital-derivation vector the scan worker
// writes into the discrete-input bank each cycle.
type DiscreteInputUpdate struct {
	IntakeRun bool
	AlumRun   bool
	Cl2Run    bool
	BwOpen    bool
	LevelHigh bool
	LevelLow  bool
	BwActive  bool
	AlmTurb   bool
	AlmCl2    bool
	CommFault bool
}

// HoldingUpdate is the engineering-unit vector the scan worker writes
// into the holding-register bank each cycle; scaling to integers
// happens in ApplyHolding.
type HoldingUpdate struct {
	TurbRaw      float64 // NTU, x10
	TurbFiltered float64 // NTU, x100
	PH           float64 // x100
	Cl2          float64 // mg/L, x100
	FlowRaw      float64 // L/s, x10
	FlowTreated  float64 // L/s, x10
	LevelPct     float64 // %, x10
	Temp         float64 // °C, x10
	AlumDose     float64 // mg/L, x100
	FilterDP     float64 // kPa, x10
	DamReleaseML float64 // ML, x1
	LevelCm      float64 // cm, x1
	BwCount      uint32
	TotalFlowML  float64
	RuntimeHours float64
}

func scale(v, factor float64) uint16 {
	scaled := v * factor
	if scaled < 0 {
		return 0
	}
	if scaled > 65535 {
		return 65535
	}
	return uint16(scaled)
}

// ApplyHolding scales and writes one HoldingUpdate into the bank.
func (m *Map) ApplyHolding(u HoldingUpdate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hr[HrTurbRaw] = scale(u.TurbRaw, 10)
	m.hr[HrTurbFiltered] = scale(u.TurbFiltered, 100)
	m.hr[HrPH] = scale(u.PH, 100)
	m.hr[HrCl2] = scale(u.Cl2, 100)
	m.hr[HrFlowRaw] = scale(u.FlowRaw, 10)
	m.hr[HrFlowTreated] = scale(u.FlowTreated, 10)
	m.hr[HrLevelPct] = scale(u.LevelPct, 10)
	m.hr[HrTemp] = scale(u.Temp, 10)
	m.hr[HrAlumDose] = scale(u.AlumDose, 100)
	m.hr[HrFilterDP] = scale(u.FilterDP, 10)
	m.hr[HrDamRelease] = scale(u.DamReleaseML, 1)
	m.hr[HrLevelCm] = scale(u.LevelCm, 1)
	m.hr[HrBwCount] = scale(float64(u.BwCount), 1)
	m.hr[HrTotalFlow] = scale(u.TotalFlowML, 1)
	m.hr[HrRuntime] = scale(u.RuntimeHours, 1)
}

// ApplyDiscreteInputs writes one DiscreteInputUpdate into the bank.
func (m *Map) ApplyDiscreteInputs(u DiscreteInputUpdate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.di[DiIntakeRun] = u.IntakeRun
	m.di[DiAlumRun] = u.AlumRun
	m.di[DiCl2Run] = u.Cl2Run
	m.di[DiBwOpen] = u.BwOpen
	m.di[DiLevelHigh] = u.LevelHigh
	m.di[DiLevelLow] = u.LevelLow
	m.di[DiBwActive] = u.BwActive
	m.di[DiAlmTurb] = u.AlmTurb
	m.di[DiAlmCl2] = u.AlmCl2
	m.di[DiCommFault] = u.CommFault
}

// ApplyInputRegisters writes the backup turbidity reading, plant
// status, and packed alarm word into the input-register bank.
func (m *Map) ApplyInputRegisters(turbRaw float64, plantStatus int, alarmWord uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ir[IrTurbBackup] = scale(turbRaw, 10)
	m.ir[IrPlantStatus] = uint16(plantStatus)
	m.ir[IrAlarmWord] = alarmWord
}
