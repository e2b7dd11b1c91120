package console

import (
	"strings"
	"testing"

	"github.com/tunnelhill/wtprtu/internal/control"
	"github.com/tunnelhill/wtprtu/internal/process"
	"github.com/tunnelhill/wtprtu/internal/snapshot"
)

type fakePlant struct {
	injected []process.InjectRequest
	err      error
	snap     snapshot.Snapshot
}

func (f *fakePlant) Inject(req process.InjectRequest) error {
	f.injected = append(f.injected, req)
	return f.err
}

func (f *fakePlant) Snapshot() snapshot.Snapshot {
	return f.snap
}

func TestConsoleRainCommand(t *testing.T) {
	fp := &fakePlant{}
	out := &strings.Builder{}
	c := New(fp, strings.NewReader("rain 600\n"), out)

	if err := c.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fp.injected) != 1 {
		t.Fatalf("expected 1 injection, got %d", len(fp.injected))
	}
	req := fp.injected[0]
	if req.Kind != process.KindRain || req.PeakTurb != 600 {
		t.Fatalf("unexpected injection: %+v", req)
	}
}

func TestConsoleRainDefaultsPeak(t *testing.T) {
	fp := &fakePlant{}
	out := &strings.Builder{}
	c := New(fp, strings.NewReader("rain\n"), out)
	_ = c.Run()

	if fp.injected[0].PeakTurb != 400 {
		t.Fatalf("expected default peak 400, got %v", fp.injected[0].PeakTurb)
	}
}

func TestConsoleDoseOffOn(t *testing.T) {
	fp := &fakePlant{}
	out := &strings.Builder{}
	c := New(fp, strings.NewReader("dose off\ndose on\ndose\n"), out)
	_ = c.Run()

	if len(fp.injected) != 3 {
		t.Fatalf("expected 3 injections, got %d", len(fp.injected))
	}
	if fp.injected[0].Kind != process.KindDoseOff {
		t.Errorf("expected dose_off, got %v", fp.injected[0].Kind)
	}
	if fp.injected[1].Kind != process.KindDoseOn {
		t.Errorf("expected dose_on, got %v", fp.injected[1].Kind)
	}
	if fp.injected[2].Kind != process.KindDoseOn {
		t.Errorf("bare 'dose' should default to dose_on, got %v", fp.injected[2].Kind)
	}
}

func TestConsoleFaultAndClearDefaultSensor(t *testing.T) {
	fp := &fakePlant{}
	out := &strings.Builder{}
	c := New(fp, strings.NewReader("fault\nclear flow\n"), out)
	_ = c.Run()

	if fp.injected[0].Sensor != "chlorine" {
		t.Errorf("expected default sensor 'chlorine', got %q", fp.injected[0].Sensor)
	}
	if fp.injected[1].Sensor != "flow" {
		t.Errorf("expected sensor 'flow', got %q", fp.injected[1].Sensor)
	}
}

func TestConsoleStatusPrintsSummary(t *testing.T) {
	fp := &fakePlant{snap: snapshot.Snapshot{
		Sim: process.StateSummary{
			SimTime: 120, SimHour: 6.5, SimDay: 1, Speed: 60,
			DosingActive: true,
		},
		Result: control.Result{Status: control.StatusRunning, AlarmWord: 0x3},
	}}
	out := &strings.Builder{}
	c := New(fp, strings.NewReader("status\n"), out)
	_ = c.Run()

	text := out.String()
	if !strings.Contains(text, "running") {
		t.Errorf("expected status output to mention plant status, got: %s", text)
	}
	if !strings.Contains(text, "ON") {
		t.Errorf("expected dosing ON in output, got: %s", text)
	}
}

func TestConsoleUnknownCommand(t *testing.T) {
	fp := &fakePlant{}
	out := &strings.Builder{}
	c := New(fp, strings.NewReader("frobnicate\n"), out)
	_ = c.Run()

	if len(fp.injected) != 0 {
		t.Fatalf("expected no injections for unknown command, got %d", len(fp.injected))
	}
	if !strings.Contains(out.String(), "unknown command") {
		t.Errorf("expected unknown-command message, got: %s", out.String())
	}
}

func TestConsoleHelp(t *testing.T) {
	fp := &fakePlant{}
	out := &strings.Builder{}
	c := New(fp, strings.NewReader("help\n"), out)
	_ = c.Run()

	if !strings.Contains(out.String(), "Commands:") {
		t.Errorf("expected help banner, got: %s", out.String())
	}
}
