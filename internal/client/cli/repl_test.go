package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	name string
	args []string
}

type fakeExec struct {
	loggedIn bool
	fail     error

	calls []call
}

func (f *fakeExec) record(name string, args []string) error {
	f.calls = append(f.calls, call{name: name, args: args})
	return f.fail
}

func (f *fakeExec) isLoggedIn() bool { return f.loggedIn }
func (f *fakeExec) Register(ctx context.Context, args []string) error {
	return f.record("register", args)
}
func (f *fakeExec) Login(ctx context.Context, args []string) error {
	f.loggedIn = true
	return f.record("login", args)
}
func (f *fakeExec) Logout(ctx context.Context, args []string) error {
	f.loggedIn = false
	return f.record("logout", args)
}
func (f *fakeExec) Items(ctx context.Context, args []string) error { return f.record("items", args) }
func (f *fakeExec) Item(ctx context.Context, args []string) error  { return f.record("item", args) }
func (f *fakeExec) CreateItem(ctx context.Context, args []string) error {
	return f.record("create-item", args)
}
func (f *fakeExec) UpdateItem(ctx context.Context, args []string) error {
	return f.record("update-item", args)
}
func (f *fakeExec) DeleteItem(ctx context.Context, args []string) error {
	return f.record("delete-item", args)
}
func (f *fakeExec) Connections(ctx context.Context, args []string) error {
	return f.record("connections", args)
}
func (f *fakeExec) Invite(ctx context.Context, args []string) error { return f.record("invite", args) }
func (f *fakeExec) AcceptInvitation(ctx context.Context, args []string) error {
	return f.record("accept-invitation", args)
}
func (f *fakeExec) Share(ctx context.Context, args []string) error  { return f.record("share", args) }
func (f *fakeExec) Shares(ctx context.Context, args []string) error { return f.record("shares", args) }
func (f *fakeExec) Shared(ctx context.Context, args []string) error { return f.record("shared", args) }
func (f *fakeExec) AcceptShare(ctx context.Context, args []string) error {
	return f.record("accept-share", args)
}
func (f *fakeExec) DeleteShare(ctx context.Context, args []string) error {
	return f.record("delete-share", args)
}
func (f *fakeExec) Tasks(ctx context.Context, args []string) error { return f.record("tasks", args) }
func (f *fakeExec) RunTasks(ctx context.Context, args []string) error {
	return f.record("run-tasks", args)
}
func (f *fakeExec) TaskHistory(ctx context.Context, args []string) error {
	return f.record("task-history", args)
}

// capturePrints swaps printlnFn for the duration of the test and returns
// everything printed through it.
func capturePrints(t *testing.T) *[]string {
	t.Helper()
	var printed []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		printed = append(printed, fmt.Sprint(a...))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &printed
}

func scannerOf(lines ...string) *bufio.Scanner {
	return bufio.NewScanner(strings.NewReader(strings.Join(lines, "\n")))
}

func TestRunREPL_DispatchesWithArgs(t *testing.T) {
	capturePrints(t)

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "status" }, scannerOf(
		"login 1.user.secret",
		"",
		"items food,note",
		"share -anyone conn-1 item-1",
		"accept-invitation tok Bob Smith",
		"run-tasks failed",
		"logout",
		"exit",
		"items",
	))

	want := []call{
		{"login", []string{"1.user.secret"}},
		{"items", []string{"food,note"}},
		{"share", []string{"-anyone", "conn-1", "item-1"}},
		{"accept-invitation", []string{"tok", "Bob", "Smith"}},
		{"run-tasks", []string{"failed"}},
		{"logout", []string{}},
	}
	assert.Equal(t, want, exec.calls)
}

func TestRunREPL_HelpDependsOnLogin(t *testing.T) {
	printed := capturePrints(t)

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "s" }, scannerOf("help", "login", "help", "quit"))

	var helps []string
	for _, p := range *printed {
		if strings.HasPrefix(p, "Available commands") {
			helps = append(helps, p)
		}
	}
	require.Len(t, helps, 2)
	assert.Equal(t, helpLoggedOut, helps[0])
	assert.Equal(t, helpLoggedIn, helps[1])
	assert.Equal(t, "Bye!", (*printed)[len(*printed)-1])
}

func TestRunREPL_UnknownCommandAndErrors(t *testing.T) {
	printed := capturePrints(t)

	exec := &fakeExec{fail: errors.New("boom")}
	runREPL(context.Background(), exec, func() string { return "s" }, scannerOf("foobar", "items", "tasks"))

	assert.Contains(t, *printed, "Unknown command:foobar")
	var errs int
	for _, p := range *printed {
		if strings.HasSuffix(p, "boom") {
			errs++
		}
	}
	assert.Equal(t, 2, errs, "the loop keeps going after a failed command")
	assert.Len(t, exec.calls, 2)
}

func TestRunREPL_StopsOnCancelledContext(t *testing.T) {
	capturePrints(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := &fakeExec{}
	runREPL(ctx, exec, func() string { return "s" }, scannerOf("items"))
	assert.Empty(t, exec.calls)
}
