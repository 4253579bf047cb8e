// Package console provides a line-oriented command interface for
// driving the device interactively over a serial port or stdin.
package console

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"sort"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"motionsense-go/bus"
	"motionsense-go/services/app"
	"motionsense-go/types"
)

// Sampler is the subset of the sampling engine the console drives directly.
type Sampler interface {
	Start() error
	Stop() error
	SetFrequency(freqHz int) error
	SetPrintEnabled(enabled bool)
	GetSample() (types.InertialSample, error)
}

// Console reads commands line by line and dispatches them against the
// application state machine and sampling engine. Synthetic gesture
// commands publish on the button channel exactly as the hardware
// detector would, so the full event path is exercised.
type Console struct {
	in       io.Reader
	out      io.Writer
	machine  *app.Machine
	sampler  Sampler
	resetter app.SessionResetter
	buttons  *bus.Channel[types.ButtonEvent]
	logger   *log.Logger

	commands map[string]command
}

type command struct {
	help string
	run  func(c *Console, args []string) error
}

// New builds a console bound to the given reader and writer.
func New(in io.Reader, out io.Writer, machine *app.Machine, sampler Sampler,
	resetter app.SessionResetter, buttons *bus.Channel[types.ButtonEvent]) *Console {
	c := &Console{
		in:       in,
		out:      out,
		machine:  machine,
		sampler:  sampler,
		resetter: resetter,
		buttons:  buttons,
		logger:   log.New(log.Writer(), "console: ", log.LstdFlags),
	}
	c.commands = map[string]command{
		"help":   {"list available commands", (*Console).cmdHelp},
		"state":  {"show the current application mode", (*Console).cmdState},
		"start":  {"start periodic sampling", (*Console).cmdStart},
		"stop":   {"stop periodic sampling", (*Console).cmdStop},
		"rate":   {"rate <hz>: set the sampling frequency", (*Console).cmdRate},
		"print":  {"print on|off: toggle CSV sample output", (*Console).cmdPrint},
		"sample": {"read and show one sample on demand", (*Console).cmdSample},
		"reset":  {"clear the detection session state", (*Console).cmdReset},
		"single": {"inject a single-press gesture", gestureCmd(types.SinglePress).run},
		"double": {"inject a double-press gesture", gestureCmd(types.DoublePress).run},
		"long":   {"inject a long-press gesture", gestureCmd(types.LongPress).run},
	}
	return c
}

// Run processes commands until the reader is exhausted or fails.
func (c *Console) Run() error {
	sc := bufio.NewScanner(c.in)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if err := c.Dispatch(line); err != nil {
			fmt.Fprintf(c.out, "error: %v\n", err)
		}
	}
	return sc.Err()
}

// Dispatch parses and executes a single command line.
func (c *Console) Dispatch(line string) error {
	args, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	if len(args) == 0 {
		return nil
	}
	cmd, ok := c.commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q, try help", args[0])
	}
	return cmd.run(c, args[1:])
}

func (c *Console) cmdHelp(args []string) error {
	names := make([]string, 0, len(c.commands))
	for name := range c.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(c.out, "  %-8s %s\n", name, c.commands[name].help)
	}
	return nil
}

func (c *Console) cmdState(args []string) error {
	fmt.Fprintf(c.out, "%s\n", c.machine.Current())
	return nil
}

func (c *Console) cmdStart(args []string) error {
	return c.sampler.Start()
}

func (c *Console) cmdStop(args []string) error {
	return c.sampler.Stop()
}

func (c *Console) cmdRate(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: rate <hz>")
	}
	hz, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("usage: rate <hz>")
	}
	return c.sampler.SetFrequency(hz)
}

func (c *Console) cmdPrint(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: print on|off")
	}
	switch args[0] {
	case "on":
		c.sampler.SetPrintEnabled(true)
	case "off":
		c.sampler.SetPrintEnabled(false)
	default:
		return fmt.Errorf("usage: print on|off")
	}
	return nil
}

func (c *Console) cmdSample(args []string) error {
	s, err := c.sampler.GetSample()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "accel: %.3f %.3f %.3f  gyro: %.3f %.3f %.3f\n",
		s.AccelX, s.AccelY, s.AccelZ, s.GyroX, s.GyroY, s.GyroZ)
	return nil
}

func (c *Console) cmdReset(args []string) error {
	c.resetter.ResetState()
	fmt.Fprintln(c.out, "detection state cleared")
	return nil
}

func gestureCmd(ev types.ButtonEvent) command {
	return command{run: func(c *Console, args []string) error {
		if err := c.buttons.Publish(ev); err != nil {
			c.logger.Printf("gesture %s dropped: %v", ev, err)
			return err
		}
		fmt.Fprintf(c.out, "injected %s\n", ev)
		return nil
	}}
}
