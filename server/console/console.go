package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/df-mc/tileworld/server"
	"github.com/df-mc/tileworld/server/world"
	"github.com/go-gl/mathgl/mgl64"
)

// Console provides a simple CLI that reads commands from an io.Reader
// (defaulting to os.Stdin) and applies them to the observer and World of the
// provided server.
type Console struct {
	srv    *server.Server
	log    *slog.Logger
	reader io.Reader
	stop   func()
}

// New returns a Console bound to the provided server. The console reads from
// os.Stdin and writes command output to the supplied logger. stop is called
// when the stop command is entered and may be nil.
func New(srv *server.Server, log *slog.Logger, stop func()) *Console {
	if log == nil {
		log = slog.Default()
	}
	if stop == nil {
		stop = func() {}
	}
	return &Console{
		srv:    srv,
		log:    log,
		reader: os.Stdin,
		stop:   stop,
	}
}

// WithReader sets a custom reader for the console input. It enables testing the
// console without relying on os.Stdin.
func (c *Console) WithReader(r io.Reader) *Console {
	if r != nil {
		c.reader = r
	}
	return c
}

// Run starts consuming commands from the console. It blocks until the context
// is cancelled or the underlying reader reaches EOF.
func (c *Console) Run(ctx context.Context) {
	scanner := bufio.NewScanner(c.reader)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				c.log.Error("console input error", "err", err)
			}
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if out, err := c.Execute(line); err != nil {
			c.log.Error(err.Error())
		} else if out != "" {
			c.log.Info(out)
		}
	}
}

// command is a console command. It returns the output to log.
type command struct {
	usage string
	run   func(c *Console, args []string) (string, error)
}

var commands = map[string]command{
	"move":   {usage: "move <x> <y>", run: (*Console).move},
	"radius": {usage: "radius <chunks>", run: (*Console).radius},
	"tile":   {usage: "tile <x> <y>", run: (*Console).tile},
	"where":  {usage: "where", run: (*Console).where},
	"stats":  {usage: "stats", run: (*Console).stats},
	"stop":   {usage: "stop", run: (*Console).stopServer},
}

func init() {
	// help lists the commands map, so it cannot be part of its initialiser.
	commands["help"] = command{usage: "help", run: (*Console).help}
}

// Execute executes a single command line. A leading slash is ignored.
func (c *Console) Execute(line string) (string, error) {
	args := strings.Fields(strings.TrimPrefix(strings.TrimSpace(line), "/"))
	if len(args) == 0 {
		return "", nil
	}
	cmd, ok := commands[strings.ToLower(args[0])]
	if !ok {
		return "", fmt.Errorf("unknown command %q, type help for a list of commands", args[0])
	}
	out, err := cmd.run(c, args[1:])
	if err != nil {
		return "", fmt.Errorf("%v (usage: %v)", err, cmd.usage)
	}
	return out, nil
}

func (c *Console) move(args []string) (string, error) {
	if len(args) != 2 {
		return "", fmt.Errorf("expected 2 arguments, got %d", len(args))
	}
	x, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return "", fmt.Errorf("invalid x %q", args[0])
	}
	y, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return "", fmt.Errorf("invalid y %q", args[1])
	}
	c.srv.Observer().Move(mgl64.Vec2{x, y})
	return c.where(nil)
}

func (c *Console) radius(args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("expected 1 argument, got %d", len(args))
	}
	r, err := strconv.Atoi(args[0])
	if err != nil || r < 0 || r > world.MaxRadius {
		return "", fmt.Errorf("invalid radius %q, must be in [0, %d]", args[0], world.MaxRadius)
	}
	c.srv.Observer().ChangeRadius(r)
	return c.where(nil)
}

func (c *Console) tile(args []string) (string, error) {
	if len(args) != 2 {
		return "", fmt.Errorf("expected 2 arguments, got %d", len(args))
	}
	x, err := strconv.Atoi(args[0])
	if err != nil {
		return "", fmt.Errorf("invalid x %q", args[0])
	}
	y, err := strconv.Atoi(args[1])
	if err != nil {
		return "", fmt.Errorf("invalid y %q", args[1])
	}
	t, err := c.srv.World().Tile(world.TilePos{x, y})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Tile (%d, %d) is %v.", x, y, t), nil
}

func (c *Console) where([]string) (string, error) {
	l := c.srv.Observer()
	pos := l.Position()
	return fmt.Sprintf("Observer at (%.1f, %.1f) in chunk %v, radius %d.", pos[0], pos[1], l.ChunkPos(), l.Radius()), nil
}

func (c *Console) stats([]string) (string, error) {
	w := c.srv.World()
	m := w.Metrics().Snapshot()
	return fmt.Sprintf("Tick %d (%.1f TPS): %d resident, %d in flight, %d generated, %d evicted, %d failed.",
		w.CurrentTick(), w.TPS(), m.Resident, m.InFlight, m.Generated, m.Evicted, m.Failed), nil
}

func (c *Console) help([]string) (string, error) {
	usages := make([]string, 0, len(commands))
	for _, cmd := range commands {
		usages = append(usages, cmd.usage)
	}
	sort.Strings(usages)
	return "Commands: " + strings.Join(usages, ", "), nil
}

func (c *Console) stopServer([]string) (string, error) {
	c.stop()
	return "Stopping...", nil
}
