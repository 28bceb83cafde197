package lineproto

import (
	"testing"

	"ctrlscript/internal/errors"
)

// §8 testable property 7: for every line L emitted by the core, feeding
// L back through the checksum checker succeeds and returns L's payload
// unchanged.
func TestFrameUnframeRoundTrip(t *testing.T) {
	for _, payload := range []string{
		"",
		"x",
		"3.500000",
		`m = Output(2)`,
		"!!m.level=true;m2.level=false;",
	} {
		framed := Frame(payload)
		got, err := Unframe(framed)
		if err != nil {
			t.Fatalf("Unframe(%q): %s", framed, err)
		}
		if got != payload {
			t.Fatalf("round trip mismatch: got %q, want %q", got, payload)
		}
	}
}

func TestFrameAppendsTwoHexDigitChecksum(t *testing.T) {
	framed := Frame("ab")
	if len(framed) != len("ab")+3 {
		t.Fatalf("expected a 3-byte @xx suffix, got %q", framed)
	}
	if framed[len(framed)-3] != '@' {
		t.Fatalf("expected '@' before the checksum, got %q", framed)
	}
}

func TestUnframeRejectsChecksumMismatch(t *testing.T) {
	framed := Frame("hello")
	tampered := framed[:len(framed)-2] + "00"
	if tampered == framed {
		t.Fatal("test setup produced no actual tamper")
	}
	_, err := Unframe(tampered)
	if errors.KindOf(err) != errors.DeviceError {
		t.Fatalf("expected DeviceError on checksum mismatch, got %v", err)
	}
}

func TestUnframeToleratesTrailingCR(t *testing.T) {
	framed := Frame("line") + "\r"
	got, err := Unframe(framed)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got != "line" {
		t.Fatalf("got %q", got)
	}
}

func TestUnframePassesThroughLinesWithoutChecksum(t *testing.T) {
	got, err := Unframe("no checksum here")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got != "no checksum here" {
		t.Fatalf("got %q", got)
	}
}

func TestUnframeRejectsInvalidHex(t *testing.T) {
	_, err := Unframe("body@zz")
	if errors.KindOf(err) != errors.ParseError {
		t.Fatalf("expected ParseError for invalid hex suffix, got %v", err)
	}
}

func TestParseBroadcastSplitsAssignments(t *testing.T) {
	got := ParseBroadcast("a.b=1;c.d=2;")
	want := []Assignment{
		{Module: "a", Property: "b", RawValue: "1"},
		{Module: "c", Property: "d", RawValue: "2"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d assignments, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("assignment %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

type stubCommands struct {
	ran        string
	saved      bool
	appended   string
	removed    string
	printed    string
	echoed     string
	claimEchos bool
	ranOut     string
	ranErr     error
}

func (s *stubCommands) AppendStartup(line string) error { s.appended = line; return nil }
func (s *stubCommands) RemoveFromStartup(prefix string) error {
	s.removed = prefix
	return nil
}
func (s *stubCommands) PrintStartup(prefix string) ([]string, error) {
	s.printed = prefix
	return []string{"startup line"}, nil
}
func (s *stubCommands) SaveStartup() error { s.saved = true; return nil }
func (s *stubCommands) ApplyBroadcast(body string) (bool, error) {
	s.echoed = body
	return s.claimEchos, nil
}
func (s *stubCommands) RunScript(line string) (string, error) {
	s.ran = line
	return s.ranOut, s.ranErr
}

func TestDispatchRoutesControlPrefixes(t *testing.T) {
	cmds := &stubCommands{claimEchos: true}

	if _, err := Dispatch(cmds, "!+number x = 0"); err != nil {
		t.Fatalf("!+: %s", err)
	}
	if cmds.appended != "number x = 0" {
		t.Fatalf("got appended=%q", cmds.appended)
	}

	if _, err := Dispatch(cmds, "!-number"); err != nil {
		t.Fatalf("!-: %s", err)
	}
	if cmds.removed != "number" {
		t.Fatalf("got removed=%q", cmds.removed)
	}

	out, err := Dispatch(cmds, "!?number")
	if err != nil || len(out) != 1 || out[0] != "startup line" {
		t.Fatalf("!?: got out=%v err=%v", out, err)
	}

	if _, err := Dispatch(cmds, "!."); err != nil {
		t.Fatalf(".: %s", err)
	}
	if !cmds.saved {
		t.Fatal("expected SaveStartup to be invoked")
	}

	if _, err := Dispatch(cmds, "!!m.level=true;"); err != nil {
		t.Fatalf("!!: %s", err)
	}
	if cmds.echoed != "m.level=true;" {
		t.Fatalf("got echoed=%q", cmds.echoed)
	}

	out, err = Dispatch(cmds, `!"hello`)
	if err != nil || len(out) != 1 || out[0] != "hello" {
		t.Fatalf("!\": got out=%v err=%v", out, err)
	}

	if _, err := Dispatch(cmds, "!#nope"); errors.KindOf(err) != errors.ParseError {
		t.Fatalf("expected ParseError for unrecognized control command, got %v", err)
	}
}

// A "!!" body that ApplyBroadcast does not claim (no proxy-targeted
// assignment clauses) is processed as a normal DSL line instead (§6).
func TestDispatchBangBangFallsThroughToScript(t *testing.T) {
	cmds := &stubCommands{claimEchos: false, ranOut: "ok"}
	out, err := Dispatch(cmds, "!!r()")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if cmds.echoed != "r()" {
		t.Fatalf("expected ApplyBroadcast offered the body first, got %q", cmds.echoed)
	}
	if cmds.ran != "r()" {
		t.Fatalf("expected the unclaimed body run as a script, got %q", cmds.ran)
	}
	if len(out) != 1 || out[0] != "ok" {
		t.Fatalf("got %v", out)
	}
}

func TestDispatchRunsScriptForNonControlLines(t *testing.T) {
	cmds := &stubCommands{ranOut: "42"}
	out, err := Dispatch(cmds, "x")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if cmds.ran != "x" {
		t.Fatalf("expected RunScript to receive %q, got %q", "x", cmds.ran)
	}
	if len(out) != 1 || out[0] != "42" {
		t.Fatalf("got %v", out)
	}
}

func TestDispatchRunScriptEmptyOutputProducesNoDiagnostic(t *testing.T) {
	cmds := &stubCommands{ranOut: ""}
	out, err := Dispatch(cmds, "m.mute()")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected no diagnostic line, got %v", out)
	}
}
