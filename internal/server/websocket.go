package server

import (
	"bufio"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/warden-dev/warden/internal/clog"
	"github.com/warden-dev/warden/internal/hub"
)

const websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

const (
	opText  = 0x1
	opClose = 0x8
	opPing  = 0x9
	opPong  = 0xA
)

// wsClient is one upgraded observer connection. It implements
// hub.Observer; writes are serialized so broadcast and heartbeat can
// run concurrently.
type wsClient struct {
	conn net.Conn
	mu   sync.Mutex
}

func (c *wsClient) Send(env hub.Envelope) error {
	return c.sendJSON(env)
}

func (c *wsClient) Ping() error {
	return c.writeFrame(opPing, nil)
}

func (c *wsClient) sendJSON(v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.writeFrame(opText, body)
}

// writeFrame sends a single unmasked server-to-client frame.
func (c *wsClient) writeFrame(opcode byte, payload []byte) error {
	header := make([]byte, 0, 10)
	header = append(header, 0x80|opcode)
	size := len(payload)
	switch {
	case size <= 125:
		header = append(header, byte(size))
	case size <= 65535:
		header = append(header, 126)
		header = append(header, byte(size>>8), byte(size))
	default:
		header = append(header, 127)
		extended := make([]byte, 8)
		binary.BigEndian.PutUint64(extended, uint64(size))
		header = append(header, extended...)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return err
	}
	_, err := c.conn.Write(append(header, payload...))
	return err
}

func (c *wsClient) Close() error {
	return c.conn.Close()
}

// inboundMessage is a control message from an observer.
type inboundMessage struct {
	Type       string `json:"type"`
	ApprovalID string `json:"approval_id,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, reader, err := upgradeWebSocket(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	client := &wsClient{conn: conn}
	defer func() {
		s.hub.RemoveObserver(client)
		client.Close()
		s.hub.Log("INFO", "observer disconnected", "server")
	}()

	s.hub.AddObserver(client)
	s.hub.Log("INFO", fmt.Sprintf("observer connected from %s", conn.RemoteAddr()), "server")

	for {
		opcode, payload, err := readFrame(reader)
		if err != nil {
			return
		}
		switch opcode {
		case opClose:
			return
		case opPing:
			if err := client.writeFrame(opPong, payload); err != nil {
				return
			}
		case opPong:
			// Reply to our heartbeat, nothing to do.
		case opText:
			s.handleInbound(client, payload)
		}
	}
}

// handleInbound dispatches one observer message. Malformed input gets
// an error reply on that connection only.
func (s *Server) handleInbound(client *wsClient, payload []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		_ = client.sendJSON(map[string]string{"error": "invalid JSON"})
		return
	}

	switch msg.Type {
	case "get_state":
		_ = client.Send(hub.Envelope{
			Type:      hub.EventState,
			Data:      s.hub.Snapshot(),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	case "approve":
		if broker := s.exec.Broker(); broker != nil && broker.Resolve(msg.ApprovalID, true) {
			_ = client.sendJSON(map[string]string{"type": "approved", "id": msg.ApprovalID})
		}
	case "reject":
		if broker := s.exec.Broker(); broker != nil && broker.Resolve(msg.ApprovalID, false) {
			_ = client.sendJSON(map[string]string{"type": "rejected", "id": msg.ApprovalID})
		}
	case "ping":
		_ = client.sendJSON(map[string]string{"type": "pong"})
	default:
		clog.Debug("websocket: unknown message type %q", msg.Type)
	}
}

// upgradeWebSocket performs the RFC 6455 opening handshake over a
// hijacked connection.
func upgradeWebSocket(w http.ResponseWriter, req *http.Request) (net.Conn, *bufio.Reader, error) {
	if !headerContainsToken(req.Header.Get("Connection"), "upgrade") {
		return nil, nil, errors.New("connection header must include Upgrade")
	}
	if !strings.EqualFold(strings.TrimSpace(req.Header.Get("Upgrade")), "websocket") {
		return nil, nil, errors.New("upgrade header must be websocket")
	}
	if strings.TrimSpace(req.Header.Get("Sec-WebSocket-Version")) != "13" {
		return nil, nil, errors.New("sec-websocket-version must be 13")
	}
	key := strings.TrimSpace(req.Header.Get("Sec-WebSocket-Key"))
	if key == "" {
		return nil, nil, errors.New("sec-websocket-key is required")
	}
	hijacker, ok := w.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	conn, rw, err := hijacker.Hijack()
	if err != nil {
		return nil, nil, err
	}

	var response strings.Builder
	response.WriteString("HTTP/1.1 101 Switching Protocols\r\n")
	response.WriteString("Upgrade: websocket\r\n")
	response.WriteString("Connection: Upgrade\r\n")
	response.WriteString("Sec-WebSocket-Accept: ")
	response.WriteString(websocketAcceptKey(key))
	response.WriteString("\r\n\r\n")
	if _, err := rw.WriteString(response.String()); err != nil {
		conn.Close()
		return nil, nil, err
	}
	if err := rw.Flush(); err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, rw.Reader, nil
}

func websocketAcceptKey(key string) string {
	hash := sha1.Sum([]byte(key + websocketGUID))
	return base64.StdEncoding.EncodeToString(hash[:])
}

// readFrame reads one client-to-server frame. Client frames must be
// masked per RFC 6455; fragmented messages are not supported.
func readFrame(r *bufio.Reader) (byte, []byte, error) {
	var head [2]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return 0, nil, err
	}
	if head[0]&0x80 == 0 {
		return 0, nil, errors.New("fragmented frames not supported")
	}
	opcode := head[0] & 0x0F
	masked := head[1]&0x80 != 0
	if !masked {
		return 0, nil, errors.New("client frames must be masked")
	}

	size := uint64(head[1] & 0x7F)
	switch size {
	case 126:
		var ext [2]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return 0, nil, err
		}
		size = uint64(binary.BigEndian.Uint16(ext[:]))
	case 127:
		var ext [8]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return 0, nil, err
		}
		size = binary.BigEndian.Uint64(ext[:])
	}
	if size > 1<<20 {
		return 0, nil, errors.New("frame too large")
	}

	var mask [4]byte
	if _, err := io.ReadFull(r, mask[:]); err != nil {
		return 0, nil, err
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, err
	}
	for i := range payload {
		payload[i] ^= mask[i%4]
	}
	return opcode, payload, nil
}

func headerContainsToken(header, token string) bool {
	for _, part := range strings.Split(header, ",") {
		if strings.EqualFold(strings.TrimSpace(part), token) {
			return true
		}
	}
	return false
}
