package client

import (
	"reflect"
	"testing"

	"github.com/quillfs/quillfs/wire"
)

func TestParseCommandBasic(t *testing.T) {
	cmd, err := ParseCommand("lock notes.txt 2")
	if err != nil {
		t.Fatalf("ParseCommand: %v", err)
	}
	want := Command{Verb: "lock", Args: []string{"notes.txt", "2"}}
	if !reflect.DeepEqual(cmd, want) {
		t.Errorf("got %+v, want %+v", cmd, want)
	}
}

func TestParseCommandQuotedArgument(t *testing.T) {
	cmd, err := ParseCommand(`word notes.txt 0 "hello there"`)
	if err != nil {
		t.Fatalf("ParseCommand: %v", err)
	}
	want := Command{Verb: "word", Args: []string{"notes.txt", "0", "hello there"}}
	if !reflect.DeepEqual(cmd, want) {
		t.Errorf("got %+v, want %+v", cmd, want)
	}
}

func TestParseCommandUnterminatedQuote(t *testing.T) {
	if _, err := ParseCommand(`word notes.txt 0 "oops`); err == nil {
		t.Fatal("expected error for unterminated quote")
	}
}

func TestParseCommandBlankLine(t *testing.T) {
	cmd, err := ParseCommand("   ")
	if err != nil {
		t.Fatalf("ParseCommand: %v", err)
	}
	if cmd.Verb != "" {
		t.Errorf("got verb %q, want empty", cmd.Verb)
	}
}

func TestBuildFrameLock(t *testing.T) {
	cmd, _ := ParseCommand("lock notes.txt 2")
	frame, ok, err := BuildFrame("alice", cmd)
	if err != nil || !ok {
		t.Fatalf("BuildFrame: ok=%v err=%v", ok, err)
	}
	if frame.Header.OpCode != wire.OpWriteLock || frame.Header.Filename != "notes.txt" || frame.Header.SentenceIndex != 2 {
		t.Errorf("unexpected header: %+v", frame.Header)
	}
}

func TestBuildFrameWordJoinsTrailingWords(t *testing.T) {
	cmd, _ := ParseCommand("word notes.txt 0 hello there")
	frame, ok, err := BuildFrame("alice", cmd)
	if err != nil || !ok {
		t.Fatalf("BuildFrame: ok=%v err=%v", ok, err)
	}
	if string(frame.Payload) != "0 hello there" {
		t.Errorf("payload = %q, want %q", frame.Payload, "0 hello there")
	}
}

func TestBuildFrameLockInvalidIndex(t *testing.T) {
	cmd, _ := ParseCommand("lock notes.txt two")
	if _, _, err := BuildFrame("alice", cmd); err == nil {
		t.Fatal("expected error for non-numeric sentence index")
	}
}

func TestBuildFrameUnknownVerb(t *testing.T) {
	cmd, _ := ParseCommand("frobnicate notes.txt")
	if _, _, err := BuildFrame("alice", cmd); err == nil {
		t.Fatal("expected error for unknown verb")
	}
}

func TestBuildFrameBlankLineIsNoop(t *testing.T) {
	cmd, _ := ParseCommand("")
	frame, ok, err := BuildFrame("alice", cmd)
	if err != nil || ok || frame.Header.OpCode != "" {
		t.Errorf("expected no-op for blank line, got frame=%+v ok=%v err=%v", frame, ok, err)
	}
}

func TestFormatRepliesStreamJoinsWords(t *testing.T) {
	replies := []wire.Frame{
		{Header: wire.Header{MsgType: wire.MsgResponse}, Payload: []byte("hello")},
		{Header: wire.Header{MsgType: wire.MsgResponse}, Payload: []byte("world")},
		{Header: wire.Header{MsgType: wire.MsgStop}},
	}
	got := FormatReplies(wire.OpStream, replies)
	if got != "hello world" {
		t.Errorf("got %q, want %q", got, "hello world")
	}
}

func TestFormatRepliesError(t *testing.T) {
	replies := []wire.Frame{
		{Header: wire.Header{MsgType: wire.MsgError, ErrorCode: "SENTENCE_LOCKED"}, Payload: []byte("held by bob")},
	}
	got := FormatReplies(wire.OpWriteLock, replies)
	want := "error: SENTENCE_LOCKED: held by bob"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
