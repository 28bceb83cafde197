// Package repl drives the scheduler interactively: lines typed on
// stdin feed the scheduler's input channel, and every diagnostic line
// the scheduler produces is printed as it arrives. The scheduler's own
// 10ms tick loop runs on a background goroutine the whole time, so
// rules and routines keep advancing between commands exactly as they
// would in the free-running loop (§4.7).
package repl

import (
	"bufio"
	"fmt"
	"os"

	"ctrlscript/internal/scheduler"
)

// Start runs the REPL against an already-constructed scheduler until
// stdin closes or the user types "exit".
func Start(s *scheduler.Scheduler) {
	fmt.Println("ctrlscript REPL | type 'exit' to quit")

	stop := make(chan struct{})
	go s.Run(stop)
	defer close(stop)

	defer func() {
		fmt.Printf("session ended after %s, %s ticks\n", s.Uptime(), s.TickSummary())
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for line := range s.Output {
			fmt.Println(line)
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(">>> ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if line == "exit" {
			break
		}
		s.Input <- line
	}
}
