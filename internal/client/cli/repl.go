package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
// Every command receives the words typed after its name.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context, args []string) error
	Login(ctx context.Context, args []string) error
	Logout(ctx context.Context, args []string) error

	Items(ctx context.Context, args []string) error
	Item(ctx context.Context, args []string) error
	CreateItem(ctx context.Context, args []string) error
	UpdateItem(ctx context.Context, args []string) error
	DeleteItem(ctx context.Context, args []string) error

	Connections(ctx context.Context, args []string) error
	Invite(ctx context.Context, args []string) error
	AcceptInvitation(ctx context.Context, args []string) error

	Share(ctx context.Context, args []string) error
	Shares(ctx context.Context, args []string) error
	Shared(ctx context.Context, args []string) error
	AcceptShare(ctx context.Context, args []string) error
	DeleteShare(ctx context.Context, args []string) error

	Tasks(ctx context.Context, args []string) error
	RunTasks(ctx context.Context, args []string) error
	TaskHistory(ctx context.Context, args []string) error
}

const (
	helpLoggedOut = `Available commands:
  register                            create an account
  login [secret]                      log in
  task-history [task-id|limit]        show locally recorded task runs
  exit | quit                         leave the program`

	helpLoggedIn = `Available commands:
  items [templates]                   list items
  item <item-id>                      show an item
  create-item <template> <label>      create an item, slots are prompted for
  update-item <item-id>               update slots of an item
  delete-item <item-id>               delete an item
  connections                         list connections
  invite <name>                       create an invitation token
  accept-invitation <token> <name>    connect using a token
  share [flags] <conn-id> <item-id>   share an item (-anyone, -require-acceptance, -slot, -terms)
  shares [incoming|outgoing]          list shares
  shared <share-id> [incoming|outgoing]  show a shared item
  accept-share <share-id>             accept an incoming share
  delete-share <share-id>             delete a share
  tasks [state]                       show client tasks
  run-tasks [todo|failed]             execute client tasks
  task-history [task-id|limit]        show locally recorded task runs
  logout [forget]                     log out, forget drops the stored secret
  exit | quit                         leave the program`
)

// runREPL starts a simple read-eval-print loop for the meecokeeper CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command and the rest as its arguments, and dispatches to methods on 'a'.
// Unknown commands are reported back to the user. The loop exits on scanner
// EOF, when ctx is done, or when the user types "exit" or "quit".
//
// Errors returned by command handlers are printed and the loop goes on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	commands := map[string]func(context.Context, []string) error{
		"register":          a.Register,
		"login":             a.Login,
		"logout":            a.Logout,
		"items":             a.Items,
		"item":              a.Item,
		"create-item":       a.CreateItem,
		"update-item":       a.UpdateItem,
		"delete-item":       a.DeleteItem,
		"connections":       a.Connections,
		"invite":            a.Invite,
		"accept-invitation": a.AcceptInvitation,
		"share":             a.Share,
		"shares":            a.Shares,
		"shared":            a.Shared,
		"accept-share":      a.AcceptShare,
		"delete-share":      a.DeleteShare,
		"tasks":             a.Tasks,
		"run-tasks":         a.RunTasks,
		"task-history":      a.TaskHistory,
	}

	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("meeco %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn(helpLoggedIn)
			} else {
				printlnFn(helpLoggedOut)
			}
			continue

		case "exit", "quit":
			printlnFn("Bye!")
			return
		}

		run, ok := commands[cmd]
		if !ok {
			printlnFn("Unknown command:", cmd)
			continue
		}
		if err := run(ctx, args); err != nil {
			printlnFn(color.RedString("✗"), err)
		}
	}
}
