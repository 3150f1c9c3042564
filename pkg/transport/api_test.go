package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

// newTestAPI serves routes from a map of path to handler.
func newTestAPI(t *testing.T, routes map[string]http.HandlerFunc) *API {
	t.Helper()
	mux := http.NewServeMux()
	for path, h := range routes {
		mux.HandleFunc(path, h)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewAPI(APIConfig{ServerURL: srv.URL, ClientID: "test-client"})
}

func reply(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}
}

func replyStatus(code int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		io.WriteString(w, body)
	}
}

func TestConnect(t *testing.T) {
	var got ConnectRequest
	var clientID string
	api := newTestAPI(t, map[string]http.HandlerFunc{
		"POST /api/connect": func(w http.ResponseWriter, r *http.Request) {
			clientID = r.Header.Get("X-Client-ID")
			json.NewDecoder(r.Body).Decode(&got)
			io.WriteString(w, `{"ok":true,"details":{"port":"/dev/ttyUSB0","baudrate":1000000,"status":"Connected","config_loaded":true}}`)
		},
	})

	d, err := api.Connect(context.Background(), ConnectRequest{Port: "/dev/ttyUSB0"})
	if err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	if got.Port != "/dev/ttyUSB0" || got.Baudrate != 0 {
		t.Errorf("request = %+v, want port only", got)
	}
	if clientID != "test-client" {
		t.Errorf("X-Client-ID = %q, want test-client", clientID)
	}
	if d.Port != "/dev/ttyUSB0" || d.Baudrate != "1000000" || d.Status != "Connected" || !d.ConfigLoaded {
		t.Errorf("details = %+v", d)
	}
}

func TestConnectFailureCarriesPorts(t *testing.T) {
	api := newTestAPI(t, map[string]http.HandlerFunc{
		"POST /api/connect": reply(`{"ok":false,"error":"no robot found","ports":[{"port":"/dev/ttyACM0","description":"USB"}]}`),
	})

	_, err := api.Connect(context.Background(), ConnectRequest{})
	var re *RequestError
	if !errors.As(err, &re) {
		t.Fatalf("Connect error = %v, want *RequestError", err)
	}
	if re.Detail != "no robot found" {
		t.Errorf("Detail = %q, want %q", re.Detail, "no robot found")
	}
	ports := AvailablePorts(err)
	if len(ports) != 1 || ports[0].Port != "/dev/ttyACM0" {
		t.Errorf("AvailablePorts = %+v, want [/dev/ttyACM0]", ports)
	}
}

func TestRequestErrorDetail(t *testing.T) {
	tests := []struct {
		name   string
		h      http.HandlerFunc
		status int
		detail string
	}{
		{"http detail", replyStatus(400, `{"detail":"Robot not connected"}`), 400, "Robot not connected"},
		{"http non-json", replyStatus(502, `bad gateway`), 502, "Bad Gateway"},
		{"ok false message", reply(`{"ok":false,"message":"Already at the last step"}`), 200, "Already at the last step"},
		{"malformed", reply(`not json`), 200, "malformed response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t, map[string]http.HandlerFunc{"POST /api/disconnect": tt.h})
			err := api.Disconnect(context.Background())
			var re *RequestError
			if !errors.As(err, &re) {
				t.Fatalf("Disconnect error = %v, want *RequestError", err)
			}
			if re.Status != tt.status || re.Detail != tt.detail {
				t.Errorf("RequestError = {%d %q}, want {%d %q}", re.Status, re.Detail, tt.status, tt.detail)
			}
			if Detail(err) != tt.detail {
				t.Errorf("Detail(err) = %q, want %q", Detail(err), tt.detail)
			}
		})
	}
}

func TestWizardStep(t *testing.T) {
	api := newTestAPI(t, map[string]http.HandlerFunc{
		"POST /api/calibration/wizard/step": reply(`{"ok":true,"status":"in_progress","message":"Move joints","step":1,"max_steps":3}`),
	})
	got, err := api.WizardStep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := WizardStep{Step: 1, MaxSteps: 3, Message: "Move joints", Status: StepInProgress}
	if got != want {
		t.Errorf("WizardStep = %+v, want %+v", got, want)
	}
}

func TestWizardStepError(t *testing.T) {
	api := newTestAPI(t, map[string]http.HandlerFunc{
		"POST /api/calibration/wizard/step": reply(`{"ok":false,"status":"error","message":"Torque failed","step":1,"max_steps":3}`),
	})
	_, err := api.WizardStep(context.Background())
	if Detail(err) != "Torque failed" {
		t.Errorf("WizardStep error = %v, want Torque failed", err)
	}
}

func TestWizardRecordExtrema(t *testing.T) {
	api := newTestAPI(t, map[string]http.HandlerFunc{
		"POST /api/calibration/wizard/record-max": reply(`{"ok":true,"current_step":2,"max_steps":3,"current_joint_index":1,
			"recorded_min":[-90.5,null,null,null,null,null],"recorded_max":[88,null,null,null,null,null]}`),
	})
	st, err := api.WizardRecordMax(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.CurrentJointIndex != 1 || st.CurrentStep != 2 {
		t.Errorf("status = %+v", st)
	}
	if st.RecordedMin[0] == nil || *st.RecordedMin[0] != -90.5 {
		t.Errorf("RecordedMin[0] = %v, want -90.5", st.RecordedMin[0])
	}
	if st.RecordedMax[1] != nil {
		t.Errorf("RecordedMax[1] = %v, want nil", *st.RecordedMax[1])
	}
}

func TestWizardRealtimePositionsFallback(t *testing.T) {
	api := newTestAPI(t, map[string]http.HandlerFunc{
		"GET /api/calibration/wizard/realtime": reply(`{"ok":true,"positions":[1,2,3,4,5,6],"current_joint_index":2,
			"min_positions":[0,null,null,null,null,null],"max_positions":[9,null,null,null,null,null]}`),
	})
	rt, err := api.WizardRealtime(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(rt.CurrentPositions) != 6 || rt.CurrentPositions[5] != 6 {
		t.Errorf("CurrentPositions = %v, want [1..6]", rt.CurrentPositions)
	}
	if rt.CurrentJointIndex != 2 {
		t.Errorf("CurrentJointIndex = %d, want 2", rt.CurrentJointIndex)
	}
	if rt.MaxPositions[0] == nil || *rt.MaxPositions[0] != 9 {
		t.Errorf("MaxPositions[0] = %v, want 9", rt.MaxPositions[0])
	}
}

func TestControlStartStop(t *testing.T) {
	api := newTestAPI(t, map[string]http.HandlerFunc{
		"POST /api/control/start": reply(`{"ok":true,"action":"control_started","message":"Keyboard control started","status":{"mode":"joint","speed_multiplier":1,"running":true}}`),
		"POST /api/control/stop":  reply(`{"ok":true,"action":"control_stopped","status":{"mode":"joint","running":false}}`),
		"GET /api/control/status":  reply(`{"ok":true,"status":{"mode":"cartesian","speed_multiplier":1.5,"running":true}}`),
	})
	ctx := context.Background()

	ack, err := api.StartControl(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ack.Action != ActionControlStarted || !ack.Status.Running {
		t.Errorf("StartControl = %+v", ack)
	}

	ack, err = api.StopControl(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ack.Action != ActionControlStopped || ack.Status.Running {
		t.Errorf("StopControl = %+v", ack)
	}

	st, err := api.ControlStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Mode != "cartesian" || st.SpeedMultiplier != 1.5 {
		t.Errorf("ControlStatus = %+v", st)
	}
}

func TestPorts(t *testing.T) {
	api := newTestAPI(t, map[string]http.HandlerFunc{
		"GET /api/ports": reply(`{"ok":true,"ports":[{"port":"/dev/ttyUSB0","description":"CH340"},{"port":"/dev/ttyUSB1"}]}`),
	})
	ports, err := api.Ports(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(ports) != 2 || ports[0].Description != "CH340" {
		t.Errorf("Ports = %+v", ports)
	}
}
