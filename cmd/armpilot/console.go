package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/armpilot/pkg/keys"
	"github.com/gwillem/armpilot/pkg/logs"
	"github.com/gwillem/armpilot/pkg/robot"
	"github.com/gwillem/armpilot/pkg/sched"
	"github.com/gwillem/armpilot/pkg/teleop"
	"github.com/gwillem/armpilot/pkg/transport"
	"github.com/gwillem/armpilot/pkg/wizard"
)

type ConsoleCommand struct {
	Port string `short:"p" long:"port" description:"Serial port used by F1 connect (server auto-detects when omitted)"`
}

const (
	headerHeight = 3  // title, status line, blank
	legendHeight = 2  // legend row + blank
	tableHeight  = 10 // joint table
	hintsHeight  = 2  // key hints + blank
	footerHeight = 7  // log box height
	maxLogs      = 5  // number of log messages to show
	borderSize   = 2  // chart border
	sliderStep   = 5.0
	fineStep     = 1.0
	holdTick     = 50 * time.Millisecond
	shutdownWait = 2 * time.Second
)

// Joint colors - distinct colors for each joint
var motorColors = map[robot.MotorName]string{
	robot.ShoulderPan:  "196", // red
	robot.ShoulderLift: "208", // orange
	robot.ElbowFlex:    "226", // yellow
	robot.WristFlex:    "46",  // green
	robot.WristRoll:    "51",  // cyan
	robot.Gripper:      "201", // magenta
}

var levelColors = map[logs.Level]string{
	logs.Info:    "252",
	logs.Success: "10",
	logs.Warning: "11",
	logs.Error:   "9",
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	heldStyle   = lipgloss.NewStyle().Background(lipgloss.Color("12")).Foreground(lipgloss.Color("15")).Padding(0, 1)
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Padding(0, 1)
	onStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	offStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

type view int

const (
	teleopView view = iota
	calibrationView
)

type consoleModel struct {
	ctrl     *teleop.Controller
	hold     *keys.HoldTracker
	chart    *streamlinechart.Model
	port     string
	width    int // terminal width
	height   int // terminal height
	view     view
	selected int // slider joint
	state    teleop.State
	cal      robot.Calibration
	logs     []logs.Entry
	quitting bool

	lastPositions robot.Positions // track previous positions to detect movement
	charted       bool
}

// Messages from the controller
type stateMsg teleop.State
type logMsg logs.Entry
type holdTickMsg time.Time

func waitForState(ctrl *teleop.Controller) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-ctrl.States())
	}
}

func waitForLog(ctrl *teleop.Controller) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-ctrl.Logs())
	}
}

func holdTicker() tea.Cmd {
	return tea.Tick(holdTick, func(t time.Time) tea.Msg {
		return holdTickMsg(t)
	})
}

func newConsoleModel(ctrl *teleop.Controller, hold *keys.HoldTracker, cal robot.Calibration, port string) consoleModel {
	chart := streamlinechart.New(80, 12,
		streamlinechart.WithYRange(robot.DefaultLimit.Min, robot.DefaultLimit.Max),
	)

	// Set up data set styles for each joint
	for _, name := range robot.AllMotors() {
		color := motorColors[name]
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(color))
		chart.SetDataSetStyles(string(name), runes.ThinLineStyle, style)
	}

	return consoleModel{
		ctrl:  ctrl,
		hold:  hold,
		chart: &chart,
		cal:   cal,
		port:  port,
	}
}

func (m *consoleModel) addLog(e logs.Entry) {
	m.logs = append(m.logs, e)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *consoleModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 12 // default size before we know terminal size
	}
	width = max(m.width-borderSize-2, 40)
	height = max(m.height-headerHeight-legendHeight-tableHeight-hintsHeight-footerHeight-borderSize, 6)
	return width, height
}

func (m *consoleModel) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

func (m consoleModel) Init() tea.Cmd {
	return tea.Batch(
		waitForState(m.ctrl),
		waitForLog(m.ctrl),
		holdTicker(),
	)
}

func (m consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeChart()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case holdTickMsg:
		for _, tok := range m.hold.Expired(time.Time(msg)) {
			m.ctrl.Release(tok)
		}
		return m, holdTicker()

	case stateMsg:
		m.state = teleop.State(msg)
		// Only update chart if there's movement (freeze when idle)
		if m.state.HasPosition && (!m.charted || m.state.Positions != m.lastPositions) {
			for i, name := range robot.AllMotors() {
				m.chart.PushDataSet(string(name), m.state.Positions[i])
			}
			m.chart.DrawAll()
			m.lastPositions = m.state.Positions
			m.charted = true
		}
		return m, waitForState(m.ctrl)

	case logMsg:
		m.addLog(logs.Entry(msg))
		return m, waitForLog(m.ctrl)
	}

	return m, nil
}

func (m consoleModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit
	case "tab":
		m.view = 1 - m.view
		return m, nil
	case "f1":
		m.ctrl.Connect(transport.ConnectRequest{Port: m.port})
		return m, nil
	case "f2":
		m.ctrl.Disconnect()
		return m, nil
	case "f3":
		m.ctrl.StartControl()
		return m, nil
	case "f4":
		m.ctrl.StopControl()
		return m, nil
	case "f5":
		m.ctrl.Home()
		return m, nil
	case "f6":
		m.ctrl.Zero()
		return m, nil
	case "f7":
		m.ctrl.RunCalibration()
		return m, nil
	}

	if m.view == calibrationView {
		return m.handleWizardKey(msg)
	}

	switch msg.String() {
	case "up":
		m.selected = (m.selected + robot.NumJoints - 1) % robot.NumJoints
		return m, nil
	case "down":
		m.selected = (m.selected + 1) % robot.NumJoints
		return m, nil
	case "left":
		m.ctrl.SliderNudge(m.selected, -sliderStep)
		return m, nil
	case "right":
		m.ctrl.SliderNudge(m.selected, sliderStep)
		return m, nil
	case "shift+left":
		m.ctrl.SliderNudge(m.selected, -fineStep)
		return m, nil
	case "shift+right":
		m.ctrl.SliderNudge(m.selected, fineStep)
		return m, nil
	case "enter":
		m.ctrl.SliderRelease(m.selected)
		return m, nil
	}

	// Auto-repeats are pressed again: a held token is a no-op in the
	// dispatcher, and a press the gate rejected is retried once control
	// starts.
	if ev, ok := keyEvent(msg); ok {
		if tok, ok := keys.Normalize(ev); ok {
			m.hold.Observe(tok, time.Now())
			m.ctrl.Press(tok)
		}
	}
	return m, nil
}

func (m consoleModel) handleWizardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case " ":
		m.ctrl.EStop()
	case "s":
		m.ctrl.WizardStart()
	case "n", "enter":
		m.ctrl.WizardAdvance()
	case "[":
		m.ctrl.WizardRecordMin()
	case "]":
		m.ctrl.WizardRecordMax()
	case "r":
		m.ctrl.WizardAutoRecord()
	case "j":
		m.ctrl.WizardNextJoint()
	case "x":
		m.ctrl.WizardCancel()
	}
	return m, nil
}

// keyEvent converts a terminal key into the normalizer's input. Terminals
// report characters only, so the physical code is filled in for space.
func keyEvent(msg tea.KeyMsg) (keys.Event, bool) {
	if msg.Alt {
		return keys.Event{}, false
	}
	switch msg.Type {
	case tea.KeySpace:
		return keys.Event{Code: "Space", Key: " "}, true
	case tea.KeyRunes:
		if len(msg.Runes) != 1 {
			return keys.Event{}, false
		}
		return keys.Event{Key: string(msg.Runes[0])}, true
	}
	return keys.Event{}, false
}

func (m consoleModel) View() string {
	if m.quitting {
		return "Console stopped.\n"
	}

	var sb strings.Builder

	// Header
	sb.WriteString(titleStyle.Render("armpilot"))
	if m.view == calibrationView {
		sb.WriteString(statusStyle.Render("  calibration  [tab: teleop]"))
	} else {
		sb.WriteString(statusStyle.Render("  teleop  [tab: calibration]"))
	}
	if m.width > 0 {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  [%dx%d]", m.width, m.height)))
	}
	sb.WriteString("\n")
	sb.WriteString(renderStatus(m.state))
	sb.WriteString("\n\n")

	if m.view == calibrationView {
		sb.WriteString(renderWizard(m.state.Wizard))
	} else {
		sb.WriteString(chartStyle.Render(m.chart.View()))
		sb.WriteString("\n")
		sb.WriteString(renderLegend())
		sb.WriteString("\n")
		sb.WriteString(renderJointTable(m.state, m.cal, m.selected))
		sb.WriteString("\n")
		sb.WriteString(renderHints(m.state))
	}
	sb.WriteString("\n")

	// Log box
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-4, 20))

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("F1 connect  F2 disconnect  F3 start  F4 stop  F5 home  F6 zero  F7 calibrate  Esc quit")
	} else {
		lines := make([]string, len(m.logs))
		for i, e := range m.logs {
			lines[i] = lipgloss.NewStyle().Foreground(lipgloss.Color(levelColors[e.Level])).Render(e.String())
		}
		logLines = strings.Join(lines, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func renderStatus(s teleop.State) string {
	flag := func(name string, on bool) string {
		if on {
			return onStyle.Render(name)
		}
		return offStyle.Render(name)
	}
	parts := []string{
		flag("server", s.SocketUp),
		flag("robot", s.Connected),
		flag("control", s.ControlRunning),
		statusStyle.Render(s.Connection.String()),
		fmt.Sprintf("mode %s", s.Mode.Title()),
		fmt.Sprintf("speed %.1fx", s.Speed),
	}
	if s.EStop {
		parts = append(parts, errorStyle.Bold(true).Render("E-STOP"))
	}
	return strings.Join(parts, "  ")
}

func renderLegend() string {
	var items []string
	for _, name := range robot.AllMotors() {
		color := motorColors[name]
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Bold(true)
		item := colorStyle.Render("━━") + " " + string(name)
		items = append(items, item)
	}
	return strings.Join(items, "  ")
}

var modeHints = map[string][][2]string{
	"joint": {
		{"I/K", "J1"}, {"J/L", "J2"}, {"U/O", "J3"}, {"7/9", "J4"}, {"8/0", "J5"}, {"Y/H", "J6"},
	},
	"cartesian": {
		{"W/S", "X"}, {"D", "Y+"}, {"Q/E", "Z"}, {"R/F", "roll"}, {"T/G", "pitch"}, {"Z/X", "yaw"},
	},
	"gripper": {
		{"C", "gripper"},
	},
}

var commonHints = [][2]string{{"M", "mode"}, {"+/-", "speed"}, {"SPACE", "e-stop"}}

// renderHints shows the key bindings of the current mode, highlighting the
// keys that are held.
func renderHints(s teleop.State) string {
	held := make(map[string]bool, len(s.Held))
	for _, tok := range s.Held {
		held[strings.ToUpper(keys.Label(tok))] = true
	}

	var items []string
	for _, h := range slices.Concat(modeHints[string(s.Mode)], commonHints) {
		style := hintStyle
		for _, k := range strings.Split(h[0], "/") {
			if held[k] {
				style = heldStyle
			}
		}
		items = append(items, style.Render(h[0]+" "+h[1]))
	}
	return strings.Join(items, " ")
}

// Execute runs the console: scheduler loop, event socket, controller and TUI.
func (c *ConsoleCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	clientID := newClientID()
	events, err := transport.NewEvents(transport.EventsConfig{
		ServerURL:    cfg.ServerURL,
		ClientID:     clientID,
		ReconnectMin: cfg.ReconnectMin,
		ReconnectMax: cfg.ReconnectMax,
	})
	if err != nil {
		log.Fatalf("Failed to create event channel: %v", err)
	}

	var cal robot.Calibration
	var limits *robot.Limits
	if robot.CalibrationExists(cfg.CalibrationFile) {
		f, err := robot.LoadCalibration(cfg.CalibrationFile)
		if err != nil {
			log.Printf("Ignoring calibration: %v", err)
		} else {
			cal = f.Joints
			l := cal.Limits()
			limits = &l
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loop := sched.NewLoop(256)
	ctrl := teleop.NewController(ctx, loop, newAPI(cfg, clientID), events, logs.New(cfg.LogBuffer), teleop.Config{
		Dispatch: teleop.DispatchConfig{
			TickInterval:  cfg.TickInterval,
			DebounceFloor: cfg.DebounceFloor,
		},
		SliderSettle:    cfg.SliderSettle,
		Wizard:          wizard.Config{PollInterval: cfg.PollInterval, RangeStep: cfg.RangeStep},
		CalibrationFile: cfg.CalibrationFile,
		Server:          cfg.ServerURL,
		Limits:          limits,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loop.Run(gctx) })
	g.Go(func() error { return events.Run(gctx) })
	g.Go(func() error { return ctrl.Run(gctx) })

	// Run TUI
	p := tea.NewProgram(newConsoleModel(ctrl, keys.NewHoldTracker(cfg.ReleaseAfter), cal, c.Port), tea.WithAltScreen())
	_, runErr := p.Run()

	ctrl.Shutdown(shutdownWait)
	cancel()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("Console error: %v", err)
	}
	if runErr != nil {
		log.Fatalf("Error running program: %v", runErr)
	}
	return nil
}
