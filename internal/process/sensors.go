package process

// Sensors is the sensor vector produced by one Generator.Tick call.
type Sensors struct {
	TurbRaw  float64 // NTU
	PH       float64
	Cl2      float64 // mg/L
	FlowRaw  float64 // L/s
	LevelPct float64 // %
	LevelCm  float64
	Temp     float64 // °C

	LvlHi bool
	LvlLo bool

	Pulses uint32

	PIntake bool
	PAlum   bool
	PCl2    bool
	VBw     bool
}

// Coils is the subset of operator command bits the Generator cares about.
// The full coil layout lives in package registers; Generator only needs
// the first four run/open commands to derive the equipment-running bits
// and the intake command for the reservoir mass balance.
type Coils struct {
	Intake bool
	Alum   bool
	Cl2    bool
	Bw     bool
}

// DefaultCoils is used when the scan loop has not yet observed any coil
// writes (matches the Python reference's `coils=None` default: intake,
// alum, and chlorine dosing running, backwash valve closed).
func DefaultCoils() Coils {
	return Coils{Intake: true, Alum: true, Cl2: true, Bw: false}
}
