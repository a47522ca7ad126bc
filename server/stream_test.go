package server

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hubertat/pacball/machine"
	"github.com/hubertat/pacball/wsframe"
)

var testMask = [4]byte{0x12, 0x34, 0x56, 0x78}

// rawDial performs the handshake by hand so tests can look at the bytes on
// the wire.
func rawDial(t *testing.T, ts *httptest.Server) (net.Conn, *bufio.Reader) {
	t.Helper()

	addr := ts.Listener.Addr().String()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	fmt.Fprintf(conn, "GET / HTTP/1.1\r\nHost: %s\r\nUpgrade: websocket\r\nConnection: Upgrade\r\nSec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\nSec-WebSocket-Version: 13\r\n\r\n", addr)

	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, nil)
	if err != nil {
		t.Fatal(err)
	}
	assertStatus(t, resp.StatusCode, http.StatusSwitchingProtocols)
	assertHeader(t, resp.Header, "Sec-WebSocket-Accept", "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=")

	return conn, br
}

func sendMasked(t *testing.T, conn net.Conn, f wsframe.Frame) {
	t.Helper()

	f.Masked = true
	f.MaskKey = testMask
	_, err := conn.Write(wsframe.Encode(f))
	if err != nil {
		t.Fatal(err)
	}
}

func readServerFrame(t *testing.T, br *bufio.Reader) *wsframe.Frame {
	t.Helper()

	frame, err := wsframe.ReadFrame(br, 1<<16)
	if err != nil {
		t.Fatalf("failed to read server frame: %v", err)
	}
	return frame
}

func assertCloseCode(t *testing.T, frame *wsframe.Frame, want int) {
	t.Helper()

	if frame.Opcode != wsframe.OpClose {
		t.Fatalf("expected close frame, got %s", frame)
	}
	if len(frame.Payload) < 2 {
		t.Fatalf("close frame without code")
	}
	if got := int(binary.BigEndian.Uint16(frame.Payload)); got != want {
		t.Errorf("got close code %d want %d", got, want)
	}
}

func TestStreamSendsUnmaskedTextFrame(t *testing.T) {
	s := newTestServer()
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	conn, br := rawDial(t, ts)
	defer conn.Close()

	want := machine.Inputs{TiltSwitch: true, Checker2Sensor: true}
	s.Inputs.Publish(want)

	frame := readServerFrame(t, br)
	if !frame.Fin || frame.Opcode != wsframe.OpText || frame.Masked {
		t.Fatalf("unexpected frame header %s", frame)
	}

	var got machine.Inputs
	err := json.Unmarshal(frame.Payload, &got)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("got %+v want %+v", got, want)
	}
}

func TestStreamOneFramePerPublish(t *testing.T) {
	s := newTestServer()
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	conn, br := rawDial(t, ts)
	defer conn.Close()

	s.Inputs.Publish(machine.Inputs{EnterSwitch: true})
	readServerFrame(t, br)

	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, err := wsframe.ReadFrame(br, 1<<16)
	if ne, ok := err.(net.Error); !ok || !ne.Timeout() {
		t.Fatalf("expected no further frame, got %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	s.Inputs.Publish(machine.Inputs{TestSwitch: true})
	frame := readServerFrame(t, br)
	if !strings.Contains(string(frame.Payload), `"test_switch":true`) {
		t.Errorf("unexpected payload %s", frame.Payload)
	}
}

func TestStreamPublishesCommand(t *testing.T) {
	s := newTestServer()
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	conn, _ := rawDial(t, ts)
	defer conn.Close()

	sendMasked(t, conn, wsframe.Frame{Fin: true, Opcode: wsframe.OpText, Payload: []byte(`{"table_motor":true,"ray_lamp":true}`)})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	got, err := s.Commands.Wait(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := machine.Outputs{TableMotor: true, RayLamp: true}
	if got != want {
		t.Errorf("got %+v want %+v", got, want)
	}
}

func TestStreamRejectsFragmentedText(t *testing.T) {
	s := newTestServer()
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	conn, br := rawDial(t, ts)
	defer conn.Close()

	sendMasked(t, conn, wsframe.Frame{Fin: false, Opcode: wsframe.OpText, Payload: []byte(`{"ray_lamp":true}`)})

	assertCloseCode(t, readServerFrame(t, br), websocket.CloseUnsupportedData)
	if _, ok := s.Commands.TryTake(); ok {
		t.Error("fragmented frame must not publish a command")
	}
}

func TestStreamClosesOnBadPayload(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"not json", `hello`},
		{"unknown field", `{"coin":true}`},
		{"trailing bytes", `{"ray_lamp":true} x`},
		{"case folded name", `{"RAY_LAMP":true,"Table_Motor":true}`},
		{"duplicate name", `{"ray_lamp":true,"ray_lamp":true}`},
		{"null", `null`},
		{"array", `[]`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer()
			ts := httptest.NewServer(s.Handler())
			defer ts.Close()
			conn, br := rawDial(t, ts)
			defer conn.Close()

			sendMasked(t, conn, wsframe.Frame{Fin: true, Opcode: wsframe.OpText, Payload: []byte(tc.payload)})

			assertCloseCode(t, readServerFrame(t, br), websocket.CloseInvalidFramePayloadData)
			if _, ok := s.Commands.TryTake(); ok {
				t.Error("invalid payload must not publish a command")
			}
		})
	}
}

func TestStreamClosesOnBinaryFrame(t *testing.T) {
	s := newTestServer()
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	conn, br := rawDial(t, ts)
	defer conn.Close()

	sendMasked(t, conn, wsframe.Frame{Fin: true, Opcode: wsframe.OpBinary, Payload: []byte{1, 2, 3}})

	assertCloseCode(t, readServerFrame(t, br), websocket.CloseUnsupportedData)
}

func TestStreamRejectsUnmaskedFrame(t *testing.T) {
	s := newTestServer()
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	conn, br := rawDial(t, ts)
	defer conn.Close()

	conn.Write(wsframe.Encode(wsframe.Frame{Fin: true, Opcode: wsframe.OpText, Payload: []byte(`{}`)}))

	assertCloseCode(t, readServerFrame(t, br), websocket.CloseProtocolError)
}

func TestStreamRejectsOversizedFrame(t *testing.T) {
	s := newTestServer()
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	conn, br := rawDial(t, ts)
	defer conn.Close()

	// header only: the length alone must be enough to refuse the frame
	header := []byte{0x81, 0x80 | 127, 0, 0, 0, 0, 0, 0, 0, 0}
	binary.BigEndian.PutUint64(header[2:], MaxPayload+1)
	conn.Write(header)

	assertCloseCode(t, readServerFrame(t, br), websocket.CloseMessageTooBig)
}

func TestStreamEchoesClose(t *testing.T) {
	s := newTestServer()
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	conn, br := rawDial(t, ts)
	defer conn.Close()

	sendMasked(t, conn, wsframe.Frame{Fin: true, Opcode: wsframe.OpClose, Payload: websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")})

	assertCloseCode(t, readServerFrame(t, br), websocket.CloseNormalClosure)
}

func TestStreamCloseCodeEcho(t *testing.T) {
	cases := []struct {
		name    string
		payload []byte
		want    int
	}{
		{"going away", websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), websocket.CloseGoingAway},
		{"private range", websocket.FormatCloseMessage(4000, "app"), 4000},
		{"below range", []byte{0x03, 0xE7}, websocket.CloseProtocolError},
		{"reserved no status", []byte{0x03, 0xED}, websocket.CloseProtocolError},
		{"above range", []byte{0x13, 0x88}, websocket.CloseProtocolError},
		{"one byte", []byte{0x03}, websocket.CloseProtocolError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer()
			ts := httptest.NewServer(s.Handler())
			defer ts.Close()
			conn, br := rawDial(t, ts)
			defer conn.Close()

			sendMasked(t, conn, wsframe.Frame{Fin: true, Opcode: wsframe.OpClose, Payload: tc.payload})

			assertCloseCode(t, readServerFrame(t, br), tc.want)
		})
	}
}

func TestValidCloseCode(t *testing.T) {
	valid := []int{1000, 1001, 1002, 1003, 1007, 1008, 1011, 1014, 3000, 4999}
	invalid := []int{0, 999, 1004, 1005, 1006, 1015, 2000, 2999, 5000, 65535}

	for _, code := range valid {
		assertBools(t, validCloseCode(code), true)
	}
	for _, code := range invalid {
		assertBools(t, validCloseCode(code), false)
	}
}

func TestStreamWithGorillaClient(t *testing.T) {
	s := newTestServer()
	streaming := make(chan bool, 2)
	s.OnStream = func(active bool) { streaming <- active }

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	header := http.Header{}
	header.Set("Origin", "https://chrisprice.dev")
	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/", header)
	if err != nil {
		t.Fatal(err)
	}

	select {
	case active := <-streaming:
		assertBools(t, active, true)
	case <-time.After(5 * time.Second):
		t.Fatal("OnStream(true) not called")
	}

	err = ws.WriteJSON(machine.Outputs{PayoutSolenoid: true})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cmd, err := s.Commands.Wait(ctx)
	if err != nil || !cmd.PayoutSolenoid {
		t.Fatalf("command not received: %+v %v", cmd, err)
	}

	s.Inputs.Publish(machine.Inputs{HopperOutSensor: true})
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	var in machine.Inputs
	err = ws.ReadJSON(&in)
	if err != nil {
		t.Fatal(err)
	}
	if !in.HopperOutSensor {
		t.Errorf("unexpected inputs %+v", in)
	}

	ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	ws.Close()

	select {
	case active := <-streaming:
		assertBools(t, active, false)
	case <-time.After(5 * time.Second):
		t.Fatal("OnStream(false) not called")
	}
}

func assertBools(t testing.TB, got, want bool) {
	t.Helper()

	if got != want {
		t.Errorf("got %v want %v", got, want)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	s := newTestServer()
	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- s.Serve(ctx, l) }()

	resp, err := http.Get("http://" + l.Addr().String() + "/")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	assertStatus(t, resp.StatusCode, http.StatusOK)

	cancel()
	select {
	case err := <-result:
		if err != nil {
			t.Errorf("expected clean stop, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not stop")
	}
}

func TestServeClosesStreamsOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	s := newTestServer()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Serve(ctx, l)

	ws, _, err := websocket.DefaultDialer.Dial("ws://"+l.Addr().String()+"/", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer ws.Close()

	cancel()
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err = ws.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("expected going away close, got %v", err)
	}
}
