package prompt

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/warden-dev/warden/internal/approval"
	"github.com/warden-dev/warden/internal/clog"
)

func init() {
	clog.Discard()
}

func TestStdinYesNoPrompter(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		defaultYes bool
		want       bool
		wantErr    bool
	}{
		{"yes", "y\n", false, true, false},
		{"yes word", "yes\n", false, true, false},
		{"yes uppercase", "Y\n", false, true, false},
		{"no", "n\n", true, false, false},
		{"no word", "no\n", true, false, false},
		{"empty uses default yes", "\n", true, true, false},
		{"empty uses default no", "\n", false, false, false},
		{"eof uses default", "", true, true, false},
		{"garbage", "maybe\n", false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out strings.Builder
			p := NewStdinYesNoPrompter(strings.NewReader(tt.input), &out)
			got, err := p.PromptYesNo("Continue? ", tt.defaultYes)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr = %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("PromptYesNo = %v, want %v", got, tt.want)
			}
			if !strings.Contains(out.String(), "Continue?") {
				t.Errorf("prompt text not written: %q", out.String())
			}
		})
	}
}

func waitForResolution(t *testing.T, ch <-chan bool) bool {
	t.Helper()
	select {
	case approved := <-ch:
		return approved
	case <-time.After(2 * time.Second):
		t.Fatal("approval was never resolved")
		return false
	}
}

func TestTerminalApproverApproves(t *testing.T) {
	broker := approval.NewBroker()
	pending := approval.NewPending("git push origin main", "/tmp", "push requires approval")
	ch := broker.Register(pending)

	mock := NewMockYesNoPrompter(true)
	approver := &TerminalApprover{Prompter: mock, Broker: broker}
	go approver.HandleApproval(pending)

	if !waitForResolution(t, ch) {
		t.Error("resolved as rejected, want approved")
	}
	if len(mock.Calls) != 1 {
		t.Fatalf("prompter called %d times, want 1", len(mock.Calls))
	}
	if !strings.Contains(mock.Calls[0].Prompt, "git push origin main") {
		t.Errorf("prompt = %q, want command text", mock.Calls[0].Prompt)
	}
	if mock.Calls[0].DefaultYes {
		t.Error("approval prompt must default to no")
	}
}

func TestTerminalApproverRejects(t *testing.T) {
	broker := approval.NewBroker()
	pending := approval.NewPending("sudo reboot", "/tmp", "sudo requires approval")
	ch := broker.Register(pending)

	approver := &TerminalApprover{Prompter: NewMockYesNoPrompter(false), Broker: broker}
	go approver.HandleApproval(pending)

	if waitForResolution(t, ch) {
		t.Error("resolved as approved, want rejected")
	}
}

func TestTerminalApproverPromptError(t *testing.T) {
	broker := approval.NewBroker()
	pending := approval.NewPending("sudo reboot", "/tmp", "sudo requires approval")
	ch := broker.Register(pending)

	mock := &MockYesNoPrompter{Errors: []error{errors.New("stdin closed")}}
	approver := &TerminalApprover{Prompter: mock, Broker: broker}
	go approver.HandleApproval(pending)

	if waitForResolution(t, ch) {
		t.Error("prompt failure must resolve as rejected")
	}
}
