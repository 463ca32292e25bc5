package cli

import (
	"bufio"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	calls []string
}

func (f *fakeExec) rec(call string) error {
	f.calls = append(f.calls, call)
	return nil
}

func (f *fakeExec) Status(context.Context) error            { return f.rec("status") }
func (f *fakeExec) New(context.Context) error               { return f.rec("new") }
func (f *fakeExec) Edit(_ context.Context, id string) error { return f.rec("edit " + id) }
func (f *fakeExec) Delete(_ context.Context, id string) error {
	return f.rec("rm " + id)
}
func (f *fakeExec) List(context.Context) error { return f.rec("list") }
func (f *fakeExec) Search(_ context.Context, q string) error {
	return f.rec("search " + q)
}
func (f *fakeExec) Show(_ context.Context, id string) error { return f.rec("show " + id) }
func (f *fakeExec) Upload(_ context.Context, path, owner string) error {
	return f.rec("upload " + path + " " + owner)
}
func (f *fakeExec) Files(_ context.Context, owner string) error { return f.rec("files " + owner) }
func (f *fakeExec) DeleteFile(_ context.Context, id string) error {
	return f.rec("rmfile " + id)
}
func (f *fakeExec) Cancel(_ context.Context, id string) error { return f.rec("cancel " + id) }
func (f *fakeExec) Sync(context.Context) error                { return f.rec("sync") }
func (f *fakeExec) Meta(_ context.Context, reset bool) error {
	if reset {
		return f.rec("meta clear")
	}
	return f.rec("meta")
}

func silence(t *testing.T) *[]string {
	t.Helper()
	var printed []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		parts := make([]string, len(a))
		for i, v := range a {
			parts[i], _ = v.(string)
		}
		printed = append(printed, strings.Join(parts, " "))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &printed
}

func TestRunREPL_DispatchesCommands(t *testing.T) {
	silence(t)

	input := strings.NewReader(strings.Join([]string{
		"help",
		"",
		"status",
		"new",
		"edit e1",
		"l",
		"search milk and eggs",
		"show e1",
		"upload /tmp/a.bin e1",
		"upload /tmp/b.bin",
		"files",
		"rmfile f1",
		"cancel s1",
		"sync",
		"meta",
		"meta clear",
		"rm e1",
		"exit",
		"list",
	}, "\n"))

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "status" }, bufio.NewScanner(input))

	assert.Equal(t, []string{
		"status",
		"new",
		"edit e1",
		"list",
		"search milk and eggs",
		"show e1",
		"upload /tmp/a.bin e1",
		"upload /tmp/b.bin ",
		"files ",
		"rmfile f1",
		"cancel s1",
		"sync",
		"meta",
		"meta clear",
		"rm e1",
	}, exec.calls)
}

func TestRunREPL_UsageAndQuit(t *testing.T) {
	printed := silence(t)

	input := strings.NewReader("show\nsearch\nmeta wipe\nfrobnicate\nquit\n")
	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "s" }, bufio.NewScanner(input))

	assert.Empty(t, exec.calls)
	assert.Contains(t, *printed, "Usage: show <id>")
	assert.Contains(t, *printed, "Usage: search <text>")
	assert.Contains(t, *printed, "Usage: meta [clear]")
	assert.Contains(t, *printed, "Unknown command: frobnicate")
	assert.Contains(t, *printed, "Bye!")
}

func TestRunREPL_StopsOnCancelledContext(t *testing.T) {
	silence(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := &fakeExec{}
	runREPL(ctx, exec, func() string { return "s" }, bufio.NewScanner(strings.NewReader("status\n")))
	assert.Empty(t, exec.calls)
}
