package server

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/warden-dev/warden/internal/executor"
)

// wsTestConn is a minimal websocket client for handshake and frame
// exchange against the daemon.
type wsTestConn struct {
	conn   net.Conn
	reader *bufio.Reader
}

func dialWebsocket(t *testing.T, httpURL string) *wsTestConn {
	t.Helper()
	addr := strings.TrimPrefix(httpURL, "http://")
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	handshake := "GET /ws HTTP/1.1\r\n" +
		"Host: " + addr + "\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
		"Sec-WebSocket-Version: 13\r\n\r\n"
	if _, err := conn.Write([]byte(handshake)); err != nil {
		t.Fatalf("write handshake: %v", err)
	}

	reader := bufio.NewReader(conn)
	status, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read status line: %v", err)
	}
	if !strings.Contains(status, "101") {
		t.Fatalf("status line = %q, want 101", status)
	}
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read headers: %v", err)
		}
		if line == "\r\n" {
			break
		}
	}
	return &wsTestConn{conn: conn, reader: reader}
}

// readTextFrame reads one unmasked server frame, skipping pings.
func (c *wsTestConn) readTextFrame(t *testing.T) []byte {
	t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var head [2]byte
		if _, err := io.ReadFull(c.reader, head[:]); err != nil {
			t.Fatalf("read frame header: %v", err)
		}
		opcode := head[0] & 0x0F
		size := uint64(head[1] & 0x7F)
		switch size {
		case 126:
			var ext [2]byte
			if _, err := io.ReadFull(c.reader, ext[:]); err != nil {
				t.Fatalf("read extended length: %v", err)
			}
			size = uint64(binary.BigEndian.Uint16(ext[:]))
		case 127:
			var ext [8]byte
			if _, err := io.ReadFull(c.reader, ext[:]); err != nil {
				t.Fatalf("read extended length: %v", err)
			}
			size = binary.BigEndian.Uint64(ext[:])
		}
		payload := make([]byte, size)
		if _, err := io.ReadFull(c.reader, payload); err != nil {
			t.Fatalf("read payload: %v", err)
		}
		if opcode == opText {
			return payload
		}
	}
}

// writeText sends one masked text frame, as clients must.
func (c *wsTestConn) writeText(t *testing.T, payload []byte) {
	t.Helper()
	header := []byte{0x80 | opText}
	size := len(payload)
	switch {
	case size <= 125:
		header = append(header, 0x80|byte(size))
	case size <= 65535:
		header = append(header, 0x80|126, byte(size>>8), byte(size))
	default:
		t.Fatalf("payload too large for test helper: %d", size)
	}
	mask := [4]byte{0x12, 0x34, 0x56, 0x78}
	header = append(header, mask[:]...)
	masked := make([]byte, size)
	for i, b := range payload {
		masked[i] = b ^ mask[i%4]
	}
	if _, err := c.conn.Write(append(header, masked...)); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func decodeFrame(t *testing.T, payload []byte) map[string]any {
	t.Helper()
	var msg map[string]any
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("unmarshal %q: %v", payload, err)
	}
	return msg
}

func TestWebsocketSnapshotOnJoin(t *testing.T) {
	d := newTestDaemon(t, false)
	ws := dialWebsocket(t, d.ts.URL)

	msg := decodeFrame(t, ws.readTextFrame(t))
	if msg["type"] != "state" {
		t.Fatalf("first message type = %v, want state", msg["type"])
	}
	if _, ok := msg["data"].(map[string]any); !ok {
		t.Errorf("state data is %T, want object", msg["data"])
	}
	if msg["timestamp"] == "" {
		t.Error("envelope missing timestamp")
	}
}

func TestWebsocketPingPong(t *testing.T) {
	d := newTestDaemon(t, false)
	ws := dialWebsocket(t, d.ts.URL)
	ws.readTextFrame(t) // state snapshot

	ws.writeText(t, []byte(`{"type":"ping"}`))
	msg := decodeFrame(t, ws.readTextFrame(t))
	if msg["type"] != "pong" {
		t.Errorf("reply type = %v, want pong", msg["type"])
	}
}

func TestWebsocketInvalidJSON(t *testing.T) {
	d := newTestDaemon(t, false)
	ws := dialWebsocket(t, d.ts.URL)
	ws.readTextFrame(t)

	ws.writeText(t, []byte(`{not json`))
	msg := decodeFrame(t, ws.readTextFrame(t))
	if msg["error"] == nil {
		t.Errorf("reply = %v, want error", msg)
	}
}

func TestWebsocketGetState(t *testing.T) {
	d := newTestDaemon(t, false)
	ws := dialWebsocket(t, d.ts.URL)
	ws.readTextFrame(t)

	ws.writeText(t, []byte(`{"type":"get_state"}`))
	msg := decodeFrame(t, ws.readTextFrame(t))
	if msg["type"] != "state" {
		t.Errorf("reply type = %v, want state", msg["type"])
	}
}

func TestWebsocketBroadcast(t *testing.T) {
	d := newTestDaemon(t, false)
	ws := dialWebsocket(t, d.ts.URL)
	ws.readTextFrame(t)

	d.hub.Log("info", "broadcast check", "test")
	msg := decodeFrame(t, ws.readTextFrame(t))
	if msg["type"] != "log" {
		t.Fatalf("message type = %v, want log", msg["type"])
	}
	data := msg["data"].(map[string]any)
	if data["message"] != "broadcast check" {
		t.Errorf("log message = %v", data["message"])
	}
}

func TestWebsocketApprove(t *testing.T) {
	d := newTestDaemon(t, false)
	ws := dialWebsocket(t, d.ts.URL)
	ws.readTextFrame(t)

	done := make(chan executor.Result, 1)
	go func() {
		result, _ := d.client.Run(context.Background(), RunRequest{Command: "sudo echo ok", Cwd: d.dir})
		done <- result
	}()

	// The hub mirror broadcasts the approval to observers.
	msg := decodeFrame(t, ws.readTextFrame(t))
	if msg["type"] != "approval_required" {
		t.Fatalf("message type = %v, want approval_required", msg["type"])
	}
	id := msg["data"].(map[string]any)["id"].(string)

	ws.writeText(t, []byte(`{"type":"approve","approval_id":"`+id+`"}`))

	sawApproved := false
	for i := 0; i < 3; i++ {
		reply := decodeFrame(t, ws.readTextFrame(t))
		if reply["type"] == "approved" && reply["id"] == id {
			sawApproved = true
			break
		}
	}
	if !sawApproved {
		t.Error("never received approved confirmation")
	}

	result := <-done
	if result.Status != executor.StatusCompleted {
		t.Errorf("Status = %q, want completed", result.Status)
	}
}
