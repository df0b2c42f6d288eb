package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	unlocked bool
	failOn   string

	calls []string
	args  map[string][]string
}

func (f *fakeExec) record(name string, args []string) error {
	f.calls = append(f.calls, name)
	if f.args == nil {
		f.args = map[string][]string{}
	}
	f.args[name] = args
	if name == f.failOn {
		return errors.New("failed")
	}
	return nil
}

func (f *fakeExec) isUnlocked() bool { return f.unlocked }
func (f *fakeExec) Unlock(ctx context.Context, args []string) error {
	f.unlocked = true
	return f.record("unlock", args)
}
func (f *fakeExec) Send(ctx context.Context, args []string) error { return f.record("send", args) }
func (f *fakeExec) Pay(ctx context.Context, args []string) error  { return f.record("pay", args) }
func (f *fakeExec) ListContacts(ctx context.Context, args []string) error {
	return f.record("contacts", args)
}
func (f *fakeExec) View(ctx context.Context, args []string) error   { return f.record("view", args) }
func (f *fakeExec) Seen(ctx context.Context, args []string) error   { return f.record("seen", args) }
func (f *fakeExec) Delete(ctx context.Context, args []string) error { return f.record("delete", args) }
func (f *fakeExec) Alias(ctx context.Context, args []string) error  { return f.record("alias", args) }
func (f *fakeExec) StartSync(ctx context.Context, args []string) error {
	return f.record("start", args)
}
func (f *fakeExec) StopSync(ctx context.Context, args []string) error {
	return f.record("stop", args)
}
func (f *fakeExec) Status(ctx context.Context, args []string) error { return f.record("status", args) }

func capturePrintln(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	origPrint := printlnFn
	printlnFn = func(a ...any) (int, error) {
		lines = append(lines, strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = origPrint })
	return &lines
}

func TestRunREPL_UnlockFlowAndCommands(t *testing.T) {
	out := capturePrintln(t)

	input := strings.NewReader(strings.Join([]string{
		"help",
		"contacts",
		"unlock neo",
		"help",
		"send addr-b hello there",
		"view alice 5",
		"seen alice",
		"start",
		"stop",
		"status",
		"foobar",
		"",
		"exit",
		"status",
	}, "\n"))

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "status" }, bufio.NewScanner(input))

	assert.Equal(t, []string{"unlock", "send", "view", "seen", "start", "stop", "status"}, exec.calls)
	assert.Equal(t, []string{"addr-b", "hello", "there"}, exec.args["send"])
	assert.Equal(t, []string{"alice", "5"}, exec.args["view"])
	assert.Contains(t, *out, "Vault is locked, run 'unlock' first")
	assert.Contains(t, *out, "Unknown command: foobar")
	assert.Contains(t, *out, "Bye!")
}

func TestRunREPL_ErrorsDoNotStopLoop(t *testing.T) {
	out := capturePrintln(t)

	input := strings.NewReader("delete x\nalias a b\nquit\n")
	exec := &fakeExec{unlocked: true, failOn: "delete"}
	runREPL(context.Background(), exec, func() string { return "s" }, bufio.NewScanner(input))

	assert.Equal(t, []string{"delete", "alias"}, exec.calls)
	assert.Contains(t, *out, "Error: failed")
}

func TestRunREPL_StopsOnCancelledContext(t *testing.T) {
	capturePrintln(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := &fakeExec{unlocked: true}
	runREPL(ctx, exec, func() string { return "s" }, bufio.NewScanner(strings.NewReader("status\n")))
	assert.Empty(t, exec.calls)
}
