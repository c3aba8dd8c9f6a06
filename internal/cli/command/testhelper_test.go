package command

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/cli/connection/hosttest"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/core/domain"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/storage/credential"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/storage/sessionfile"
)

// harness runs the CLI against a fake host with its own config dir.
// Every run is a fresh App, standing in for a separate process.
type harness struct {
	t    *testing.T
	host *hosttest.Server
	dir  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{
		t:    t,
		host: hosttest.New(t),
		dir:  t.TempDir(),
	}
}

// result is the outcome of one invocation.
type result struct {
	code   int
	stdout string
	stderr string
}

// run invokes the CLI with args, answering prompts from stdin.
func (h *harness) run(stdin string, args ...string) result {
	h.t.Helper()
	var out, errOut bytes.Buffer
	app := NewApp(strings.NewReader(stdin), &out, &errOut)
	full := append([]string{"aerie-cli", "--config-dir", h.dir}, args...)
	code := Execute(context.Background(), app, full)
	return result{code: code, stdout: out.String(), stderr: errOut.String()}
}

// mustRun fails the test unless the invocation succeeds.
func (h *harness) mustRun(stdin string, args ...string) result {
	h.t.Helper()
	r := h.run(stdin, args...)
	if r.code != 0 {
		h.t.Fatalf("%v exited %d\nstdout: %s\nstderr: %s", args, r.code, r.stdout, r.stderr)
	}
	return r
}

func (h *harness) configuration(name string) domain.HostConfiguration {
	return domain.HostConfiguration{
		Name:       name,
		GraphQLURL: h.host.GraphQLURL(),
		GatewayURL: h.host.GatewayURL(),
		Username:   "alice",
	}
}

// addConfiguration stores configurations directly in the credential file.
func (h *harness) addConfiguration(names ...string) {
	h.t.Helper()
	store := credential.NewStore(filepath.Join(h.dir, "config.json"))
	for _, name := range names {
		if err := store.Create(h.configuration(name)); err != nil {
			h.t.Fatalf("Create(%s) error = %v", name, err)
		}
	}
}

// activate makes name the active session.
func (h *harness) activate(name string) {
	h.t.Helper()
	h.mustRun("secret\n", "activate", "--name", name)
}

func (h *harness) configurations() []domain.HostConfiguration {
	h.t.Helper()
	configs, err := credential.ReadFile(filepath.Join(h.dir, "config.json"))
	if err != nil {
		h.t.Fatal(err)
	}
	return configs
}

func (h *harness) sessionRecords() int {
	h.t.Helper()
	entries, err := os.ReadDir(filepath.Join(h.dir, "sessions"))
	if err != nil {
		if os.IsNotExist(err) {
			return 0
		}
		h.t.Fatal(err)
	}
	n := 0
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), sessionfile.FileExtension) {
			n++
		}
	}
	return n
}

// status runs status -o json and decodes the result.
func (h *harness) status(args ...string) statusView {
	h.t.Helper()
	r := h.mustRun("", append(args, "-o", "json", "status")...)
	var view statusView
	if err := json.Unmarshal([]byte(r.stdout), &view); err != nil {
		h.t.Fatalf("decode status %q: %v", r.stdout, err)
	}
	return view
}

func assertContains(t *testing.T, got, want string) {
	t.Helper()
	if !strings.Contains(got, want) {
		t.Errorf("output does not contain %q:\n%s", want, got)
	}
}
