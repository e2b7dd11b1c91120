package control

import "testing"

func runningCoils() Coils {
	return Coils{Auto: true, Intake: true}
}

func bringUp(t *testing.T, l *Logic) Result {
	t.Helper()
	var r Result
	r = l.Tick(1, Inputs{PH: 7.2, LevelPct: 50}, runningCoils())
	if r.Status != StatusStarting {
		t.Fatalf("expected Starting after first auto tick, got %v", r.Status)
	}
	r = l.Tick(1, Inputs{PH: 7.2, LevelPct: 50}, runningCoils())
	if r.Status != StatusRunning {
		t.Fatalf("expected Running after second auto tick, got %v", r.Status)
	}
	return r
}

func TestStateMachineStartupSequence(t *testing.T) {
	l := New()
	bringUp(t, l)
}

func TestEStopForcesOffline(t *testing.T) {
	l := New()
	bringUp(t, l)

	r := l.Tick(1, Inputs{PH: 7.2, LevelPct: 50}, Coils{Auto: true, Intake: true, EStop: true})
	if r.Status != StatusOffline {
		t.Fatalf("expected Offline under e-stop, got %v", r.Status)
	}
}

func TestHighTurbidityAutoShutdown(t *testing.T) {
	l := New()
	bringUp(t, l)

	r := l.Tick(1, Inputs{TurbRaw: 600, PH: 7.2, LevelPct: 50}, runningCoils())
	if r.Status != StatusShutdown {
		t.Fatalf("expected Shutdown on high turbidity, got %v", r.Status)
	}
	if !r.TurbShutdown {
		t.Fatal("expected TurbShutdown flag set")
	}
}

func TestBackwashCyclesFilterDP(t *testing.T) {
	l := New()
	bringUp(t, l)

	// Load up filter DP by running for a while.
	for i := 0; i < 200; i++ {
		l.Tick(1, Inputs{PH: 7.2, LevelPct: 50}, runningCoils())
	}
	dpBefore := l.filterDP
	if dpBefore <= 0 {
		t.Fatalf("expected filter DP to have accumulated, got %v", dpBefore)
	}

	// The backwash transition only fires on the tick where status is
	// still Running; once it flips to Backwash there is no transition
	// back to Running in this state machine (an open question in the
	// original PLC logic this mirrors), so a single backwash-commanded
	// tick is what exercises the DP reduction.
	bwCoils := Coils{Auto: true, Intake: true, Bw: true}
	r := l.Tick(1, Inputs{PH: 7.2, LevelPct: 50}, bwCoils)
	if r.Status != StatusBackwash {
		t.Fatalf("expected Backwash status on bw-commanded tick, got %v", r.Status)
	}
	if l.filterDP >= dpBefore {
		t.Fatalf("expected backwash to reduce filter DP: before=%v after=%v", dpBefore, l.filterDP)
	}
}

func TestAlarmWordBits(t *testing.T) {
	l := New()
	in := Inputs{TurbRaw: 250, PH: 9.0, Cl2: 0.1, LevelPct: 97}
	r := l.Tick(1, in, Coils{})

	if r.AlarmWord&AlarmTurbWarning == 0 {
		t.Error("expected turbidity warning bit set")
	}
	if r.AlarmWord&AlarmCl2Low == 0 {
		t.Error("expected chlorine low bit set")
	}
	if r.AlarmWord&AlarmPHHigh == 0 {
		t.Error("expected pH high bit set")
	}
	if r.AlarmWord&AlarmLevelHigh == 0 {
		t.Error("expected level high bit set")
	}
	if r.AlarmWord&AlarmPHLow != 0 {
		t.Error("did not expect pH low bit set")
	}
}

func TestTotalisersMonotonicallyIncrease(t *testing.T) {
	l := New()
	bringUp(t, l)

	var prevFlow, prevRuntime float64
	for i := 0; i < 50; i++ {
		r := l.Tick(1, Inputs{FlowRaw: 100, PH: 7.2, LevelPct: 50}, runningCoils())
		if r.TotalFlowML < prevFlow {
			t.Fatalf("total_flow_ml decreased: %v < %v", r.TotalFlowML, prevFlow)
		}
		if r.RuntimeHours < prevRuntime {
			t.Fatalf("runtime_hours decreased: %v < %v", r.RuntimeHours, prevRuntime)
		}
		prevFlow, prevRuntime = r.TotalFlowML, r.RuntimeHours
	}
	if prevFlow == 0 || prevRuntime == 0 {
		t.Fatal("expected totalisers to have advanced while running")
	}
}
