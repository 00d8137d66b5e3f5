package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn and printFn are test seams for user-facing output.
var (
	printlnFn = fmt.Println
	printFn   = fmt.Print
)

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	Add(ctx context.Context, args []string) error
	Update(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	List(ctx context.Context, args []string) error
	Pending(ctx context.Context) error
	Sync(ctx context.Context) error
	Status(ctx context.Context) error
	SetOffline(ctx context.Context, args []string) error
}

const helpText = `Available commands:
  add <collection> key=value...        create a record
  update <collection> <id> key=value...  change fields (key=null removes one)
  delete <collection> <id>             remove a record locally
  list <collection>                    show records
  pending                              unsynced counts per collection
  sync                                 run a sync pass now
  status                               sync progress
  offline on|off                       enable or disable background sync
  exit | quit                          leave the program`

// runREPL reads one command per line from scanner and dispatches it to a.
// The loop exits on scanner EOF, when ctx is done, or when the user types
// "exit" or "quit". The prompt, built by statusFn, is only printed when
// interactive is set. Command errors are reported and the loop goes on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner, interactive bool) {
	for {
		if interactive {
			printFn(fmt.Sprintf("tally %s> ", statusFn()))
		}
		if !scanner.Scan() {
			return
		}
		if ctx.Err() != nil {
			return
		}

		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			printlnFn(helpText)
		case "add":
			err = a.Add(ctx, args)
		case "update":
			err = a.Update(ctx, args)
		case "delete":
			err = a.Delete(ctx, args)
		case "l", "list":
			err = a.List(ctx, args)
		case "pending":
			err = a.Pending(ctx)
		case "sync":
			err = a.Sync(ctx)
		case "status":
			err = a.Status(ctx)
		case "offline":
			err = a.SetOffline(ctx, args)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("error:", err)
		}
	}
}
