package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to.
type execIface interface {
	Upload(ctx context.Context, args []string) error
	Pending(ctx context.Context) error
	Sync(ctx context.Context) error
	Sweep(ctx context.Context) error
	Status(ctx context.Context) error
}

const helpText = `Available commands:
  upload <path> [--compress|--no-compress] [--force-original]
  pending    list captures waiting for sync
  sync       upload pending captures now
  sweep      resolve uploads that never finished
  status     connectivity, queue and last sync
  exit`

// runREPL reads one command per line and dispatches it. Handlers report
// their own errors to the user, so they are dropped here. The loop ends on
// EOF or exit/quit.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("vox %s > ", statusFn()))

		line, err := reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			printlnFn(helpText)
		case "upload", "u":
			_ = a.Upload(ctx, args)
		case "pending", "p":
			_ = a.Pending(ctx)
		case "sync":
			_ = a.Sync(ctx)
		case "sweep":
			_ = a.Sweep(ctx)
		case "status":
			_ = a.Status(ctx)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}

		if ctx.Err() != nil {
			return
		}
	}
}
