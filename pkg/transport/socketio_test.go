package transport

import (
	"errors"
	"testing"
)

func TestSocketURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://localhost:8000", "ws://localhost:8000/socket.io/?EIO=4&transport=websocket"},
		{"https://arm.local/", "wss://arm.local/socket.io/?EIO=4&transport=websocket"},
		{"http://10.0.0.2:8000/copilot", "ws://10.0.0.2:8000/copilot/socket.io/?EIO=4&transport=websocket"},
	}
	for _, tt := range tests {
		got, err := socketURL(tt.in)
		if err != nil {
			t.Errorf("socketURL(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("socketURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if _, err := socketURL("ftp://x"); err == nil {
		t.Error("socketURL(ftp) = nil error, want error")
	}
}

func TestEncodeEvent(t *testing.T) {
	got, err := encodeEvent(EventControlKey, KeyCommand{Key: "i", EventType: KeyDown, Timestamp: 42})
	if err != nil {
		t.Fatal(err)
	}
	want := `42["control:key",{"key":"i","event_type":"keydown","timestamp":42}]`
	if string(got) != want {
		t.Errorf("encodeEvent = %s, want %s", got, want)
	}
}

func TestParseFrame(t *testing.T) {
	tests := []struct {
		in      string
		engine  byte
		sio     byte
		event   string
		payload string
	}{
		{`0{"sid":"abc","pingInterval":25000,"pingTimeout":20000}`, eioOpen, 0, "", `{"sid":"abc","pingInterval":25000,"pingTimeout":20000}`},
		{"2", eioPing, 0, "", ""},
		{`40{"sid":"x"}`, eioMessage, sioConnect, "", `{"sid":"x"}`},
		{`42["state:update",{"status":"Connected"}]`, eioMessage, sioEvent, "state:update", `{"status":"Connected"}`},
		{`42/admin,["server:hello",{"message":"hi"}]`, eioMessage, sioEvent, "server:hello", `{"message":"hi"}`},
		{`4217["robot:error",{"message":"x"}]`, eioMessage, sioEvent, "robot:error", `{"message":"x"}`},
		{`42["server:hello"]`, eioMessage, sioEvent, "server:hello", ""},
		{`41`, eioMessage, sioDisconnect, "", ""},
	}
	for _, tt := range tests {
		f, err := parseFrame([]byte(tt.in))
		if err != nil {
			t.Errorf("parseFrame(%q) error: %v", tt.in, err)
			continue
		}
		if f.engine != tt.engine || f.sio != tt.sio || f.event != tt.event || string(f.payload) != tt.payload {
			t.Errorf("parseFrame(%q) = {%c %c %q %s}, want {%c %c %q %s}",
				tt.in, f.engine, f.sio, f.event, f.payload, tt.engine, tt.sio, tt.event, tt.payload)
		}
	}
}

func TestParseFrameMalformed(t *testing.T) {
	for _, in := range []string{"", "4", `42`, `42[]`, `42{"a":1}`, `42/ns["x"]`} {
		if _, err := parseFrame([]byte(in)); !errors.Is(err, errMalformedFrame) {
			t.Errorf("parseFrame(%q) error = %v, want errMalformedFrame", in, err)
		}
	}
}

func TestPingDeadline(t *testing.T) {
	o := openPayload{PingInterval: 25000, PingTimeout: 20000}
	if got := o.pingDeadline().Seconds(); got != 45 {
		t.Errorf("pingDeadline = %vs, want 45s", got)
	}
	if got := (openPayload{}).pingDeadline().Seconds(); got != 45 {
		t.Errorf("default pingDeadline = %vs, want 45s", got)
	}
}
