package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gwillem/armpilot/pkg/robot"
)

// RequestError is a REST call the server did not complete.
type RequestError struct {
	Op     string
	Status int
	Detail string
	body   []byte
}

func (e *RequestError) Error() string {
	if e.Status != 0 && e.Status != http.StatusOK {
		return fmt.Sprintf("%s: %s (HTTP %d)", e.Op, e.Detail, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Detail)
}

// Detail returns the server's failure detail for err, or err's text when err
// is not a RequestError.
func Detail(err error) string {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Detail
	}
	return err.Error()
}

// envelope holds the fields every response may carry.
type envelope struct {
	OK      *bool  `json:"ok"`
	Detail  string `json:"detail"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (e envelope) reason() string {
	switch {
	case e.Detail != "":
		return e.Detail
	case e.Message != "":
		return e.Message
	case e.Error != "":
		return e.Error
	}
	return "request failed"
}

// APIConfig configures the REST client.
type APIConfig struct {
	ServerURL string
	ClientID  string
	Timeout   time.Duration
}

// API is the REST client.
type API struct {
	base     string
	clientID string
	http     *http.Client
}

// NewAPI creates a REST client for the server at cfg.ServerURL.
func NewAPI(cfg APIConfig) *API {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &API{
		base:     strings.TrimSuffix(cfg.ServerURL, "/"),
		clientID: cfg.ClientID,
		http:     &http.Client{Timeout: cfg.Timeout},
	}
}

// do performs a call and decodes a successful response into out. Non-2xx
// responses and bodies with ok=false become a *RequestError.
func (a *API) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.base+path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.clientID != "" {
		req.Header.Set("X-Client-ID", a.clientID)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", path, err)
	}

	var env envelope
	jsonErr := json.Unmarshal(data, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := http.StatusText(resp.StatusCode)
		if jsonErr == nil {
			detail = env.reason()
		}
		return &RequestError{Op: path, Status: resp.StatusCode, Detail: detail, body: data}
	}
	if jsonErr != nil {
		return &RequestError{Op: path, Status: resp.StatusCode, Detail: "malformed response", body: data}
	}
	if env.OK != nil && !*env.OK {
		return &RequestError{Op: path, Status: resp.StatusCode, Detail: env.reason(), body: data}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return &RequestError{Op: path, Status: resp.StatusCode, Detail: "malformed response: " + err.Error(), body: data}
		}
	}
	return nil
}

// PortInfo is a serial port visible to the server.
type PortInfo struct {
	Port        string `json:"port"`
	Description string `json:"description"`
}

// ConnectRequest asks the server to connect to the robot. Empty fields let
// the server auto-detect.
type ConnectRequest struct {
	Port     string `json:"port,omitempty"`
	Host     string `json:"host,omitempty"`
	Baudrate int    `json:"baudrate,omitempty"`
}

// ConnectDetails describes an established robot connection.
type ConnectDetails struct {
	ConnectionInfo
	Status          string   `json:"status"`
	DetectedVoltage *float64 `json:"detected_voltage"`
	ConfigLoaded    bool     `json:"config_loaded"`
}

// Connect connects the server to the robot.
func (a *API) Connect(ctx context.Context, req ConnectRequest) (ConnectDetails, error) {
	var out struct {
		Details *ConnectDetails `json:"details"`
	}
	if err := a.do(ctx, http.MethodPost, "/api/connect", req, &out); err != nil {
		return ConnectDetails{}, err
	}
	if out.Details == nil {
		return ConnectDetails{}, &RequestError{Op: "/api/connect", Status: http.StatusOK, Detail: "missing connection details"}
	}
	return *out.Details, nil
}

// AvailablePorts returns the port list a failed Connect reported, if any.
func AvailablePorts(err error) []PortInfo {
	var re *RequestError
	if !errors.As(err, &re) || len(re.body) == 0 {
		return nil
	}
	var out struct {
		Ports []PortInfo `json:"ports"`
	}
	if json.Unmarshal(re.body, &out) != nil {
		return nil
	}
	return out.Ports
}

// Disconnect disconnects the server from the robot.
func (a *API) Disconnect(ctx context.Context) error {
	return a.do(ctx, http.MethodPost, "/api/disconnect", nil, nil)
}

// Ports lists the server's serial ports.
func (a *API) Ports(ctx context.Context) ([]PortInfo, error) {
	var out struct {
		Ports []PortInfo `json:"ports"`
	}
	if err := a.do(ctx, http.MethodGet, "/api/ports", nil, &out); err != nil {
		return nil, err
	}
	return out.Ports, nil
}

// CalibrationResult is the reply to the quick calibration actions.
type CalibrationResult struct {
	Message string    `json:"message"`
	File    string    `json:"file,omitempty"`
	Offsets []float64 `json:"offsets,omitempty"`
}

// Home moves the arm to its home position.
func (a *API) Home(ctx context.Context) (CalibrationResult, error) {
	return a.calibration(ctx, "/api/calibration/home")
}

// Zero records the current joint positions as zero.
func (a *API) Zero(ctx context.Context) (CalibrationResult, error) {
	return a.calibration(ctx, "/api/calibration/zero")
}

// RunCalibration homes, zeroes and saves in one call.
func (a *API) RunCalibration(ctx context.Context) (CalibrationResult, error) {
	return a.calibration(ctx, "/api/calibration/run")
}

func (a *API) calibration(ctx context.Context, path string) (CalibrationResult, error) {
	var out CalibrationResult
	err := a.do(ctx, http.MethodPost, path, nil, &out)
	return out, err
}

// ControlAck is the reply to control start/stop.
type ControlAck struct {
	Action  string        `json:"action"`
	Message string        `json:"message"`
	Status  ControlStatus `json:"status"`
}

// StartControl starts keyboard control on the server.
func (a *API) StartControl(ctx context.Context) (ControlAck, error) {
	var out ControlAck
	err := a.do(ctx, http.MethodPost, "/api/control/start", nil, &out)
	return out, err
}

// StopControl stops keyboard control on the server.
func (a *API) StopControl(ctx context.Context) (ControlAck, error) {
	var out ControlAck
	err := a.do(ctx, http.MethodPost, "/api/control/stop", nil, &out)
	return out, err
}

// ControlStatus returns the server's keyboard controller status.
func (a *API) ControlStatus(ctx context.Context) (ControlStatus, error) {
	var out struct {
		Status ControlStatus `json:"status"`
	}
	err := a.do(ctx, http.MethodGet, "/api/control/status", nil, &out)
	return out.Status, err
}

// Wizard step statuses.
const (
	StepInProgress = "in_progress"
	StepSuccess    = "success"
	StepError      = "error"
)

// WizardStep is the reply to a wizard step request.
type WizardStep struct {
	Step     int    `json:"step"`
	MaxSteps int    `json:"max_steps"`
	Message  string `json:"message"`
	Status   string `json:"status"`
}

// Extrema holds one optional value per joint; nil means not yet measured.
type Extrema [robot.NumJoints]*float64

// WizardStatus is the wizard state after a record action.
type WizardStatus struct {
	CurrentStep       int       `json:"current_step"`
	MaxSteps          int       `json:"max_steps"`
	CurrentJointIndex int       `json:"current_joint_index"`
	RealtimePositions []float64 `json:"realtime_positions"`
	RealtimeMin       Extrema   `json:"realtime_min"`
	RealtimeMax       Extrema   `json:"realtime_max"`
	RecordedMin       Extrema   `json:"recorded_min"`
	RecordedMax       Extrema   `json:"recorded_max"`
}

// Realtime is one realtime poll during range recording.
type Realtime struct {
	CurrentJointIndex int       `json:"current_joint_index"`
	CurrentPositions  []float64 `json:"current_positions"`
	MinPositions      Extrema   `json:"min_positions"`
	MaxPositions      Extrema   `json:"max_positions"`
	RecordedMin       *Extrema  `json:"recorded_min"`
	RecordedMax       *Extrema  `json:"recorded_max"`
}

// WizardStep advances the calibration wizard. A reply with ok=false comes
// back as a *RequestError; otherwise a failed step shows in Status.
func (a *API) WizardStep(ctx context.Context) (WizardStep, error) {
	var out WizardStep
	err := a.do(ctx, http.MethodPost, "/api/calibration/wizard/step", nil, &out)
	return out, err
}

// WizardStatus returns the wizard state.
func (a *API) WizardStatus(ctx context.Context) (WizardStatus, error) {
	var out WizardStatus
	err := a.do(ctx, http.MethodGet, "/api/calibration/wizard/status", nil, &out)
	return out, err
}

// WizardReset resets the wizard on the server.
func (a *API) WizardReset(ctx context.Context) error {
	return a.do(ctx, http.MethodPost, "/api/calibration/wizard/reset", nil, nil)
}

// WizardRecordMin records the current joint's minimum.
func (a *API) WizardRecordMin(ctx context.Context) (WizardStatus, error) {
	return a.wizardRecord(ctx, "/api/calibration/wizard/record-min")
}

// WizardRecordMax records the current joint's maximum.
func (a *API) WizardRecordMax(ctx context.Context) (WizardStatus, error) {
	return a.wizardRecord(ctx, "/api/calibration/wizard/record-max")
}

// WizardAutoRecord records the tracked extrema of the current joint.
func (a *API) WizardAutoRecord(ctx context.Context) (WizardStatus, error) {
	return a.wizardRecord(ctx, "/api/calibration/wizard/auto-record")
}

// WizardNextJoint skips the current joint.
func (a *API) WizardNextJoint(ctx context.Context) (WizardStatus, error) {
	return a.wizardRecord(ctx, "/api/calibration/wizard/next-joint")
}

func (a *API) wizardRecord(ctx context.Context, path string) (WizardStatus, error) {
	var out WizardStatus
	err := a.do(ctx, http.MethodPost, path, nil, &out)
	return out, err
}

// WizardRealtime fetches live positions and tracked extrema.
func (a *API) WizardRealtime(ctx context.Context) (Realtime, error) {
	var out struct {
		Realtime
		Positions []float64 `json:"positions"`
	}
	if err := a.do(ctx, http.MethodGet, "/api/calibration/wizard/realtime", nil, &out); err != nil {
		return Realtime{}, err
	}
	rt := out.Realtime
	if len(rt.CurrentPositions) == 0 {
		rt.CurrentPositions = out.Positions
	}
	return rt, nil
}
