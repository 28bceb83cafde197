// cmd/ctrlscript/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"ctrlscript/internal/iolink"
	"ctrlscript/internal/module"
	"ctrlscript/internal/proxy"
	"ctrlscript/internal/repl"
	"ctrlscript/internal/scheduler"
	"ctrlscript/internal/store"
)

// commandAliases follows the teacher's cmd/sentra/main.go idiom: a
// small map resolving single-letter shortcuts before dispatch, rather
// than a flags/cobra dependency.
var commandAliases = map[string]string{
	"r": "run",
	"i": "repl",
	"s": "serve",
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		return
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}
	rest := args[1:]

	switch cmd {
	case "run":
		if len(rest) < 1 {
			log.Fatal("usage: ctrlscript run <file> [--store dialect:dsn]")
		}
		runScript(rest)
	case "repl":
		runRepl(rest)
	case "serve":
		runServe(rest)
	case "help", "--help", "-h":
		showUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		showUsage()
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println("ctrlscript - interactive embedded control runtime")
	fmt.Println()
	fmt.Println("usage:")
	fmt.Println("  ctrlscript run <file> [--store dialect:dsn]   run a script to completion (alias: r)")
	fmt.Println("  ctrlscript repl [--store dialect:dsn]         start the interactive REPL     (alias: i)")
	fmt.Println("  ctrlscript serve --listen addr [--store ...]  accept an expander over WebSocket (alias: s)")
}

// parseStoreFlag extracts "--store dialect:dsn" from args, returning
// the remaining args and an opened backend (nil if the flag was absent).
func parseStoreFlag(args []string) ([]string, *store.Backend) {
	var out []string
	var backend *store.Backend
	for i := 0; i < len(args); i++ {
		if args[i] == "--store" && i+1 < len(args) {
			dialect, dsn, ok := strings.Cut(args[i+1], ":")
			if !ok {
				log.Fatalf("--store expects dialect:dsn, got %q", args[i+1])
			}
			b, err := store.Connect(dialect, dsn)
			if err != nil {
				log.Fatalf("failed to connect startup store: %s", err)
			}
			backend = b
			i++
			continue
		}
		out = append(out, args[i])
	}
	return out, backend
}

func runScript(args []string) {
	args, backend := parseStoreFlag(args)
	filename := args[0]

	f, err := os.Open(filename)
	if err != nil {
		log.Fatalf("could not open %s: %s", filename, err)
	}
	defer f.Close()

	sched, err := scheduler.New(hostDrivers{}, backend)
	if err != nil {
		log.Fatalf("could not construct scheduler: %s", err)
	}
	sched.LoadStartup()

	go func() {
		for line := range sched.Output {
			fmt.Println(line)
		}
	}()

	stop := make(chan struct{})
	go sched.Run(stop)
	defer close(stop)

	// The file's lines are read by the same iolink.Reader/Group a live
	// serial or socket source would use (§5), just pointed at a file
	// instead of a device; forwarding them into sched.Input keeps the
	// scheduler's own input path identical between the two cases.
	group := iolink.NewGroup(context.Background())
	reader := iolink.NewReader(f)
	group.Add(reader)
	for line := range reader.Lines {
		sched.Input <- line
	}
	if err := group.Wait(); err != nil {
		log.Fatalf("error reading %s: %s", filename, err)
	}
}

func runRepl(args []string) {
	_, backend := parseStoreFlag(args)

	sched, err := scheduler.New(hostDrivers{}, backend)
	if err != nil {
		log.Fatalf("could not construct scheduler: %s", err)
	}
	sched.LoadStartup()
	repl.Start(sched)
}

func runServe(args []string) {
	args, backend := parseStoreFlag(args)
	var addr string
	for i := 0; i < len(args); i++ {
		if args[i] == "--listen" && i+1 < len(args) {
			addr = args[i+1]
			i++
		}
	}
	if addr == "" {
		log.Fatal("usage: ctrlscript serve --listen addr")
	}

	sched, err := scheduler.New(hostDrivers{}, backend)
	if err != nil {
		log.Fatalf("could not construct scheduler: %s", err)
	}
	sched.LoadStartup()

	go func() {
		for line := range sched.Output {
			fmt.Println(line)
		}
	}()

	link, err := proxy.ListenExpanderLink(addr, func(line string) {
		sched.Input <- line
	})
	if err != nil {
		log.Fatalf("could not accept expander connection: %s", err)
	}
	defer link.Close()

	fmt.Printf("expander connected on %s\n", addr)
	go logPeriodicStatus(sched)
	sched.Run(nil)
}

// logPeriodicStatus prints a humanized uptime/tick-count line every
// minute, the only place this CLI surfaces Scheduler.Uptime/
// TickSummary outside the REPL's end-of-session summary.
func logPeriodicStatus(sched *scheduler.Scheduler) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		log.Printf("running for %s, %s ticks processed", sched.Uptime(), sched.TickSummary())
	}
}

// hostDrivers is the default Drivers wiring for the CLI: concrete GPIO,
// PWM, and bus drivers are out of scope (§1), so digital/PWM pins and
// buses fall back to module.NoPin(); only Channel is backed by a real
// collaborator, dialing a WebSocket expander link when given a ws://
// URL and falling back to the stub otherwise.
type hostDrivers struct{}

func (hostDrivers) DigitalPin(string, int64) (module.DigitalPin, error) { return module.NoPin(), nil }
func (hostDrivers) PWMPin(string, int64) (module.PWMPin, error)         { return module.NoPin(), nil }
func (hostDrivers) Bus(string, int64, int64, int64) (module.Bus, error) { return module.NoPin(), nil }

func (hostDrivers) Channel(name string) (module.LineChannel, error) {
	if strings.HasPrefix(name, "ws://") || strings.HasPrefix(name, "wss://") {
		return proxy.DialExpanderLink(name, nil)
	}
	return module.NoPin(), nil
}
