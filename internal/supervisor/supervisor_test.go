// SPDX-License-Identifier: MPL-2.0

package supervisor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"slices"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/simplensm/simplensm/internal/container"
)

const (
	exitEarlyImage = "exit-early"
	// longLineImage writes one line larger than maxLineSize, then exits.
	longLineImage = "long-line"
	longLineSize  = 2*maxLineSize + 100
)

type (
	// fakeEngine launches the test binary as the engine client. Stop
	// interrupts the helper process that was launched for the container.
	fakeEngine struct {
		*container.DockerEngine

		mu      sync.Mutex
		calls   []string
		procs   map[string]*exec.Cmd
		stopErr map[string]error
	}

	// syncBuffer is a bytes.Buffer safe for one writer and polling readers.
	syncBuffer struct {
		mu  sync.Mutex
		buf bytes.Buffer
	}
)

func newFakeEngine() *fakeEngine {
	f := &fakeEngine{procs: map[string]*exec.Cmd{}, stopErr: map[string]error{}}
	f.DockerEngine = container.NewDockerEngine(
		container.WithBinaryPath("docker"),
		container.WithExecCommand(f.command),
	)
	return f
}

func (f *fakeEngine) command(ctx context.Context, name string, args ...string) *exec.Cmd {
	cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
	cmd := exec.CommandContext(ctx, os.Args[0], cs...)
	cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range args {
		if n, ok := strings.CutPrefix(a, "--name="); ok {
			f.procs[n] = cmd
		}
	}
	return cmd
}

func (f *fakeEngine) Stop(_ context.Context, name, signal string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, strings.TrimSpace("stop "+name+" "+signal))
	if cmd := f.procs[name]; cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Signal(os.Interrupt)
	}
	return f.stopErr[name]
}

func (f *fakeEngine) QuietRemove(_ context.Context, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "rm "+name)
}

func (f *fakeEngine) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// TestHelperProcess stands in for `docker run`. It prints one line on each
// stream, then waits for an interrupt unless the image is exit-early.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	for i, a := range args {
		if a == "--" {
			args = args[i+1:]
			break
		}
	}

	var name, image string
	for _, a := range args {
		if n, ok := strings.CutPrefix(a, "--name="); ok {
			name = n
		}
		if a == exitEarlyImage || a == longLineImage {
			image = a
		}
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	if image == longLineImage {
		fmt.Fprintf(os.Stdout, "%s\nafter long line\n", strings.Repeat("x", longLineSize))
		os.Exit(0)
	}

	fmt.Fprintf(os.Stdout, "%s ready\n", name)
	fmt.Fprintf(os.Stderr, "%s warming up\n", name)
	if image == exitEarlyImage {
		os.Exit(0)
	}

	<-sigs
	fmt.Fprintf(os.Stdout, "%s stopped\n", name)
	os.Exit(0)
}

// testSpec builds an attached run of the helper process for image.
func testSpec(t *testing.T, engine *fakeEngine, image, name string) *container.RunSpec {
	t.Helper()

	spec, err := engine.NewRun(image).Name(name).Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	return spec
}

func testUnits(t *testing.T, engine *fakeEngine, evebox string) []Unit {
	t.Helper()

	return []Unit{
		{
			Label: "simplensm-suricata",
			Spec:  testSpec(t, engine, "suricata", "simplensm-suricata"),
		},
		{
			Label:      "simplensm-evebox",
			Spec:       testSpec(t, engine, evebox, "simplensm-evebox"),
			StopSignal: "SIGINT",
		},
	}
}

func waitForOutput(t *testing.T, out *syncBuffer, want ...string) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		got := out.String()
		all := true
		for _, w := range want {
			if !strings.Contains(got, w) {
				all = false
				break
			}
		}
		if all {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %q in output:\n%s", want, out.String())
}

func TestSupervisor_RunAndShutdown(t *testing.T) {
	engine := newFakeEngine()
	out := &syncBuffer{}
	var hookCalls int
	var hookMu sync.Mutex

	sup := New(engine, testUnits(t, engine, "evebox"),
		WithOutput(out),
		WithAfterLaunch(func(context.Context) error {
			hookMu.Lock()
			defer hookMu.Unlock()
			hookCalls++
			return errors.New("crond not found")
		}),
	)

	interrupts := make(chan os.Signal, 2)
	errCh := make(chan error, 1)
	go func() { errCh <- sup.Run(context.Background(), interrupts) }()

	waitForOutput(t, out, "simplensm-suricata ready", "simplensm-evebox ready")

	// The second interrupt must be ignored.
	interrupts <- os.Interrupt
	interrupts <- os.Interrupt

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run() did not return after interrupt")
	}

	wantCalls := []string{
		"rm simplensm-suricata",
		"rm simplensm-evebox",
		"stop simplensm-evebox SIGINT",
		"stop simplensm-suricata",
		"rm simplensm-suricata",
		"rm simplensm-evebox",
	}
	if got := engine.Calls(); !slices.Equal(got, wantCalls) {
		t.Errorf("engine calls = %v, want %v", got, wantCalls)
	}

	got := out.String()
	for _, want := range []string{
		"simplensm-suricata | stdout | simplensm-suricata ready",
		"simplensm-suricata | stderr | simplensm-suricata warming up",
		"simplensm-evebox   | stdout | simplensm-evebox ready",
		"simplensm-evebox   | stdout | simplensm-evebox stopped",
		"simplensm-suricata | stdout | simplensm-suricata stopped",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}

	hookMu.Lock()
	defer hookMu.Unlock()
	if hookCalls != 1 {
		t.Errorf("after-launch hook ran %d times, want 1", hookCalls)
	}
}

func TestSupervisor_EarlyExitDoesNotShutDown(t *testing.T) {
	engine := newFakeEngine()
	out := &syncBuffer{}
	sup := New(engine, testUnits(t, engine, exitEarlyImage), WithOutput(out))

	interrupts := make(chan os.Signal, 1)
	errCh := make(chan error, 1)
	go func() { errCh <- sup.Run(context.Background(), interrupts) }()

	waitForOutput(t, out, "simplensm-suricata ready", "simplensm-evebox ready")

	select {
	case err := <-errCh:
		t.Fatalf("Run() returned before interrupt: %v", err)
	case <-time.After(200 * time.Millisecond):
	}
	if stops := slices.DeleteFunc(engine.Calls(), func(c string) bool { return !strings.HasPrefix(c, "stop") }); len(stops) != 0 {
		t.Fatalf("no unit should be stopped before interrupt, got %v", stops)
	}

	interrupts <- os.Interrupt
	select {
	case <-errCh:
	case <-time.After(10 * time.Second):
		t.Fatal("Run() did not return after interrupt")
	}
}

func TestSupervisor_ContextCancelShutsDown(t *testing.T) {
	engine := newFakeEngine()
	engine.stopErr["simplensm-evebox"] = errors.New("no such container")
	out := &syncBuffer{}
	sup := New(engine, testUnits(t, engine, "evebox"), WithOutput(out))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- sup.Run(ctx, nil) }()

	waitForOutput(t, out, "simplensm-suricata ready", "simplensm-evebox ready")
	cancel()

	select {
	case err := <-errCh:
		if err == nil || !strings.Contains(err.Error(), "no such container") {
			t.Errorf("Run() error = %v, want stop failure", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
	// The failed EveBox stop must not prevent stopping Suricata.
	if !slices.Contains(engine.Calls(), "stop simplensm-suricata") {
		t.Errorf("Suricata was not stopped: %v", engine.Calls())
	}
}

func TestShutdown_FireOnce(t *testing.T) {
	t.Parallel()

	sd := newShutdown()
	var wg sync.WaitGroup
	for range 10 {
		wg.Go(sd.Fire)
	}
	wg.Wait()

	select {
	case <-sd.Done():
	default:
		t.Fatal("Done() should be closed after Fire()")
	}
}

func TestWatchInterrupts_ReturnsWhenShutdownFiresElsewhere(t *testing.T) {
	t.Parallel()

	sd := newShutdown()
	returned := make(chan struct{})
	go func() {
		watchInterrupts(context.Background(), nil, sd, discardLogger())
		close(returned)
	}()

	sd.Fire()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("watcher did not return")
	}
}
