package dispatcher

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/quillfs/quillfs/errcode"
	"github.com/quillfs/quillfs/filestore"
	"github.com/quillfs/quillfs/lockregistry"
	"github.com/quillfs/quillfs/session"
	"github.com/quillfs/quillfs/wire"
)

func newTestServer(t *testing.T) (*httptest.Server, *filestore.Store) {
	t.Helper()
	store, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("filestore.New: %v", err)
	}
	engine := session.New(store, lockregistry.New(16), 0)
	d := New(engine, store, nil)
	srv := httptest.NewServer(d)
	t.Cleanup(srv.Close)
	return srv, store
}

func dialTest(t *testing.T, srv *httptest.Server) *wire.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	conn, err := wire.Dial(url)
	if err != nil {
		t.Fatalf("wire.Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestCreateReadRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dialTest(t, srv)

	if err := conn.Send(wire.Frame{
		Header:  wire.Header{MsgType: wire.MsgRequest, OpCode: wire.OpCreate, Username: "alice", Filename: "a.txt"},
		Payload: []byte("alice"),
	}); err != nil {
		t.Fatalf("send CREATE: %v", err)
	}
	reply, err := conn.Recv()
	if err != nil {
		t.Fatalf("recv CREATE reply: %v", err)
	}
	if reply.Header.MsgType != wire.MsgAck {
		t.Fatalf("expected ACK, got %+v", reply.Header)
	}

	conn2 := dialTest(t, srv)
	if err := conn2.Send(wire.Frame{Header: wire.Header{MsgType: wire.MsgRequest, OpCode: wire.OpRead, Filename: "a.txt"}}); err != nil {
		t.Fatalf("send READ: %v", err)
	}
	readReply, err := conn2.Recv()
	if err != nil {
		t.Fatalf("recv READ reply: %v", err)
	}
	if readReply.Header.MsgType != wire.MsgResponse || len(readReply.Payload) != 0 {
		t.Fatalf("expected empty RESPONSE, got %+v payload=%q", readReply.Header, readReply.Payload)
	}
}

func TestCreateDuplicateFails(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dialTest(t, srv)
	create := wire.Frame{Header: wire.Header{MsgType: wire.MsgRequest, OpCode: wire.OpCreate, Username: "alice", Filename: "dup.txt"}}
	conn.Send(create)
	conn.Recv()

	conn2 := dialTest(t, srv)
	conn2.Send(create)
	reply, err := conn2.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if reply.Header.MsgType != wire.MsgError || reply.Header.ErrorCode != errcode.FileExists {
		t.Fatalf("expected FILE_EXISTS error, got %+v", reply.Header)
	}
}

func TestLockWordUnlockOverWire(t *testing.T) {
	srv, store := newTestServer(t)
	if err := store.Create("b.txt", "alice"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.WriteAtomic("b.txt", []byte("Hello world.")); err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}

	conn := dialTest(t, srv)
	if err := conn.Send(wire.Frame{Header: wire.Header{MsgType: wire.MsgRequest, OpCode: wire.OpWriteLock, Username: "alice", Filename: "b.txt", SentenceIndex: 0}}); err != nil {
		t.Fatalf("send LOCK: %v", err)
	}
	lockReply, err := conn.Recv()
	if err != nil {
		t.Fatalf("recv LOCK reply: %v", err)
	}
	if lockReply.Header.MsgType != wire.MsgAck {
		t.Fatalf("expected ACK for LOCK, got %+v", lockReply.Header)
	}

	if err := conn.Send(wire.Frame{
		Header:  wire.Header{MsgType: wire.MsgRequest, OpCode: wire.OpWriteWord, Username: "alice", Filename: "b.txt"},
		Payload: []byte("-1 Howdy."),
	}); err != nil {
		t.Fatalf("send WORD: %v", err)
	}
	wordReply, err := conn.Recv()
	if err != nil {
		t.Fatalf("recv WORD reply: %v", err)
	}
	if wordReply.Header.MsgType != wire.MsgAck {
		t.Fatalf("expected ACK for WORD, got %+v", wordReply.Header)
	}

	if err := conn.Send(wire.Frame{Header: wire.Header{MsgType: wire.MsgRequest, OpCode: wire.OpWriteUnlock, Username: "alice", Filename: "b.txt"}}); err != nil {
		t.Fatalf("send UNLOCK: %v", err)
	}
	unlockReply, err := conn.Recv()
	if err != nil {
		t.Fatalf("recv UNLOCK reply: %v", err)
	}
	if unlockReply.Header.MsgType != wire.MsgAck {
		t.Fatalf("expected ACK for UNLOCK, got %+v", unlockReply.Header)
	}

	content, err := store.Read("b.txt")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(content) != "Howdy." {
		t.Fatalf("unexpected content: %q", content)
	}
}

func TestWordErrorKeepsSessionOpen(t *testing.T) {
	srv, store := newTestServer(t)
	if err := store.Create("c.txt", "alice"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.WriteAtomic("c.txt", []byte("Hi.")); err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}

	conn := dialTest(t, srv)
	conn.Send(wire.Frame{Header: wire.Header{MsgType: wire.MsgRequest, OpCode: wire.OpWriteLock, Username: "alice", Filename: "c.txt", SentenceIndex: 0}})
	conn.Recv()

	// malformed WORD payload (no space) yields ERROR but keeps the
	// connection (and write session) open.
	if err := conn.Send(wire.Frame{Header: wire.Header{MsgType: wire.MsgRequest, OpCode: wire.OpWriteWord, Username: "alice", Filename: "c.txt"}, Payload: []byte("garbage")}); err != nil {
		t.Fatalf("send bad WORD: %v", err)
	}
	badReply, err := conn.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if badReply.Header.MsgType != wire.MsgError {
		t.Fatalf("expected ERROR, got %+v", badReply.Header)
	}

	// the same connection can still complete the session.
	conn.Send(wire.Frame{Header: wire.Header{MsgType: wire.MsgRequest, OpCode: wire.OpWriteWord, Username: "alice", Filename: "c.txt"}, Payload: []byte("-1 Yo.")})
	wordReply, err := conn.Recv()
	if err != nil {
		t.Fatalf("recv second WORD: %v", err)
	}
	if wordReply.Header.MsgType != wire.MsgAck {
		t.Fatalf("expected ACK, got %+v", wordReply.Header)
	}

	conn.Send(wire.Frame{Header: wire.Header{MsgType: wire.MsgRequest, OpCode: wire.OpWriteUnlock, Username: "alice", Filename: "c.txt"}})
	conn.Recv()

	content, _ := store.Read("c.txt")
	if string(content) != "Yo." {
		t.Fatalf("unexpected content: %q", content)
	}
}

func TestStreamTerminatesWithStop(t *testing.T) {
	srv, store := newTestServer(t)
	if err := store.Create("d.txt", "alice"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.WriteAtomic("d.txt", []byte("one two three.")); err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}

	conn := dialTest(t, srv)
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	conn.Send(wire.Frame{Header: wire.Header{MsgType: wire.MsgRequest, OpCode: wire.OpStream, Filename: "d.txt"}})

	var words []string
	for {
		frame, err := conn.Recv()
		if err != nil {
			t.Fatalf("recv stream: %v", err)
		}
		if frame.Header.MsgType == wire.MsgStop {
			break
		}
		words = append(words, string(frame.Payload))
	}
	if strings.Join(words, " ") != "one two three." {
		t.Fatalf("unexpected streamed words: %v", words)
	}
}
