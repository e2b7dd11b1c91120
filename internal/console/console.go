// Package console implements the interactive stdin command loop:
// operators can trigger scenario events and print plant status without
// going through the fieldbus or dashboard, mirroring the Python
// reference's parse_stdin_command loop.
package console

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/tunnelhill/wtprtu/internal/process"
	"github.com/tunnelhill/wtprtu/internal/snapshot"
)

// Plant is the subset of *plant.Plant the console needs: inject
// scenario events and read the latest snapshot for `status`.
type Plant interface {
	Inject(req process.InjectRequest) error
	Snapshot() snapshot.Snapshot
}

// Console reads commands from in and writes output to out.
type Console struct {
	plant Plant
	in    io.Reader
	out   io.Writer
}

// New builds a Console bound to a Plant.
func New(p Plant, in io.Reader, out io.Writer) *Console {
	return &Console{plant: p, in: in, out: out}
}

// IsInteractive reports whether fd looks like a terminal, for deciding
// whether to print the console-ready banner.
func (c *Console) IsInteractive(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Run reads and dispatches commands until in is exhausted (EOF) or a
// read error occurs.
func (c *Console) Run() error {
	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		c.dispatch(scanner.Text())
	}
	return scanner.Err()
}

func (c *Console) dispatch(line string) {
	parts := strings.Fields(strings.ToLower(strings.TrimSpace(line)))
	if len(parts) == 0 {
		return
	}

	cmd := parts[0]
	switch cmd {
	case "rain":
		peak := 400.0
		if len(parts) > 1 {
			if v, err := strconv.ParseFloat(parts[1], 64); err == nil {
				peak = v
			}
		}
		c.inject(process.InjectRequest{Kind: process.KindRain, PeakTurb: peak})

	case "dose":
		if len(parts) > 1 && parts[1] == "off" {
			c.inject(process.InjectRequest{Kind: process.KindDoseOff})
		} else {
			c.inject(process.InjectRequest{Kind: process.KindDoseOn})
		}

	case "fault":
		sensor := "chlorine"
		if len(parts) > 1 {
			sensor = parts[1]
		}
		c.inject(process.InjectRequest{Kind: process.KindFault, Sensor: sensor})

	case "clear":
		sensor := "chlorine"
		if len(parts) > 1 {
			sensor = parts[1]
		}
		c.inject(process.InjectRequest{Kind: process.KindClear, Sensor: sensor})

	case "glitch":
		c.inject(process.InjectRequest{Kind: process.KindGlitch})

	case "status":
		c.printStatus()

	case "help":
		c.printHelp()

	default:
		fmt.Fprintf(c.out, "  unknown command: %s (try 'help')\n", cmd)
	}
}

func (c *Console) inject(req process.InjectRequest) {
	if err := c.plant.Inject(req); err != nil {
		fmt.Fprintf(c.out, "  %v\n", err)
	}
}

func (c *Console) printStatus() {
	snap := c.plant.Snapshot()
	state := snap.Sim
	fmt.Fprintf(c.out, "  Sim time: %s | Hour: %.1f | Day: %d\n",
		humanize.Comma(int64(state.SimTime)), state.SimHour, state.SimDay)
	fmt.Fprintf(c.out, "  Speed: %vx | Rain events: %d\n", state.Speed, state.ActiveRainEvents)

	dosing := "OFF"
	if state.DosingActive {
		dosing = "ON"
	}
	faults := "none"
	if len(state.Faults) > 0 {
		names := make([]string, 0, len(state.Faults))
		for k := range state.Faults {
			names = append(names, k)
		}
		faults = strings.Join(names, ", ")
	}
	fmt.Fprintf(c.out, "  Dosing: %s | Faults: %s\n", dosing, faults)
	fmt.Fprintf(c.out, "  Plant status: %s | Alarm word: 0x%04x\n", snap.Result.Status, snap.Result.AlarmWord)
}

func (c *Console) printHelp() {
	fmt.Fprint(c.out, `  Commands:
    rain [peak_ntu]   - trigger a rain event (default 400 NTU)
    dose off|on       - stop/resume chlorine dosing
    fault <sensor>    - inject a sensor fault (chlorine, flow, turbidity)
    clear <sensor>    - clear a sensor fault
    glitch            - random data glitch for 30 sim-seconds
    status            - print simulation state
    help              - show this message
`)
}
