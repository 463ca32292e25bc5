package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to. *App implements
// it; tests use a recording stub.
type execIface interface {
	Status(ctx context.Context) error
	New(ctx context.Context) error
	Edit(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) error
	Search(ctx context.Context, query string) error
	Show(ctx context.Context, id string) error
	Upload(ctx context.Context, path, ownerID string) error
	Files(ctx context.Context, ownerID string) error
	DeleteFile(ctx context.Context, id string) error
	Cancel(ctx context.Context, sessionID string) error
	Sync(ctx context.Context) error
	Meta(ctx context.Context, reset bool) error
}

const helpText = `Available commands:
  status                 connectivity and pending changes
  new                    create a note
  edit <id>              edit a note
  rm <id>                delete a note and its files
  (l)ist                 list notes, newest first
  search <text>          search titles and bodies
  show <id>              show a note with its files
  upload <path> [owner]  store a file, optionally attached to a note
  files [owner]          list files
  rmfile <id>            delete a file
  cancel <session>       cancel a running transfer
  sync                   replicate pending changes now
  meta [clear]           show or forget sync bookkeeping
  exit | quit            leave`

// runREPL reads commands from scanner until EOF, "exit" or "quit", or until
// ctx is done. Handlers report their own errors; the loop keeps going.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("gophsync %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		arg := func(i int) (string, bool) {
			if i < len(args) {
				return args[i], true
			}
			return "", false
		}
		need := func(usage string) (string, bool) {
			v, ok := arg(0)
			if !ok {
				printlnFn("Usage:", usage)
			}
			return v, ok
		}

		switch cmd {
		case "help":
			printlnFn(helpText)
		case "status":
			_ = a.Status(ctx)
		case "new":
			_ = a.New(ctx)
		case "edit":
			if id, ok := need("edit <id>"); ok {
				_ = a.Edit(ctx, id)
			}
		case "rm":
			if id, ok := need("rm <id>"); ok {
				_ = a.Delete(ctx, id)
			}
		case "l", "list":
			_ = a.List(ctx)
		case "search":
			if len(args) == 0 {
				printlnFn("Usage: search <text>")
				continue
			}
			_ = a.Search(ctx, strings.Join(args, " "))
		case "show":
			if id, ok := need("show <id>"); ok {
				_ = a.Show(ctx, id)
			}
		case "upload":
			if path, ok := need("upload <path> [owner]"); ok {
				owner, _ := arg(1)
				_ = a.Upload(ctx, path, owner)
			}
		case "files":
			owner, _ := arg(0)
			_ = a.Files(ctx, owner)
		case "rmfile":
			if id, ok := need("rmfile <id>"); ok {
				_ = a.DeleteFile(ctx, id)
			}
		case "cancel":
			if id, ok := need("cancel <session>"); ok {
				_ = a.Cancel(ctx, id)
			}
		case "sync":
			_ = a.Sync(ctx)
		case "meta":
			sub, _ := arg(0)
			switch sub {
			case "":
				_ = a.Meta(ctx, false)
			case "clear":
				_ = a.Meta(ctx, true)
			default:
				printlnFn("Usage: meta [clear]")
			}
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
