package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/armpilot/pkg/transport"
)

type ConnectCommand struct {
	Port     string `short:"p" long:"port" description:"Serial port on the server (prompted when omitted)"`
	Host     string `long:"host" description:"TCP host of a networked robot"`
	Baudrate int    `short:"b" long:"baudrate" description:"Baud rate (server default when omitted)"`
	Auto     bool   `long:"auto" description:"Let the server auto-detect the port"`
}

func (c *ConnectCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	api := newAPI(cfg, newClientID())
	ctx := context.Background()

	req := transport.ConnectRequest{Port: c.Port, Host: c.Host, Baudrate: c.Baudrate}
	if req.Port == "" && req.Host == "" && !c.Auto {
		port, err := pickPort(ctx, api)
		if err != nil {
			return err
		}
		req.Port = port
	}

	fmt.Println(headerStyle.Render("Connecting to robot..."))
	d, err := api.Connect(ctx, req)
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Connection failed: "+transport.Detail(err)))
		if ports := transport.AvailablePorts(err); len(ports) > 0 {
			fmt.Fprintln(os.Stderr)
			fmt.Fprintln(os.Stderr, portsTable(ports))
		}
		os.Exit(1)
	}

	fmt.Println(successStyle.Render("Connected"))
	fmt.Printf("  Endpoint: %s\n", d.Endpoint())
	if d.Baudrate != "" {
		fmt.Printf("  Baudrate: %s\n", d.Baudrate)
	}
	if d.DetectedVoltage != nil {
		fmt.Printf("  Voltage:  %.1f V\n", *d.DetectedVoltage)
	}
	if !d.ConfigLoaded {
		fmt.Println(warnStyle.Render("  No calibration loaded on the server. Run 'armpilot calibrate' or the console wizard."))
	}
	return nil
}

// pickPort asks the operator to choose one of the server's serial ports.
func pickPort(ctx context.Context, api *transport.API) (string, error) {
	ports, err := api.Ports(ctx)
	if err != nil {
		return "", fmt.Errorf("list ports: %w", err)
	}
	if len(ports) == 0 {
		return "", errors.New("the server sees no serial ports; make sure the arm is plugged in and powered on")
	}

	options := make([]huh.Option[string], 0, len(ports)+1)
	for _, p := range ports {
		label := p.Port
		if p.Description != "" {
			label += "  " + dimStyle.Render(p.Description)
		}
		options = append(options, huh.NewOption(label, p.Port))
	}
	options = append(options, huh.NewOption("Auto-detect", ""))

	var port string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which port is the arm on?").
				Description("Ports as seen by the server").
				Options(options...).
				Value(&port),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}
	return port, nil
}

type DisconnectCommand struct{}

func (c *DisconnectCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := newAPI(cfg, newClientID()).Disconnect(context.Background()); err != nil {
		return fmt.Errorf("disconnect: %s", transport.Detail(err))
	}
	fmt.Println(successStyle.Render("Disconnected"))
	return nil
}

type PortsCommand struct{}

func (c *PortsCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ports, err := newAPI(cfg, newClientID()).Ports(context.Background())
	if err != nil {
		return fmt.Errorf("list ports: %s", transport.Detail(err))
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found.")
		return nil
	}
	fmt.Println(portsTable(ports))
	return nil
}

func portsTable(ports []transport.PortInfo) string {
	rows := make([][]string, 0, len(ports))
	for _, p := range ports {
		rows = append(rows, []string{p.Port, p.Description})
	}
	cell := lipgloss.NewStyle().Padding(0, 1)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Port", "Description").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return cell.Bold(true).Foreground(lipgloss.Color("12"))
			}
			return cell
		}).
		Render()
}

type HomeCommand struct{}

func (c *HomeCommand) Execute(args []string) error {
	return runCalibrationAction("Home", (*transport.API).Home)
}

type ZeroCommand struct {
	Yes bool `short:"y" long:"yes" description:"Do not ask for confirmation"`
}

func (c *ZeroCommand) Execute(args []string) error {
	if !c.Yes && !confirm("Record the current joint positions as zero?") {
		return nil
	}
	return runCalibrationAction("Zero", (*transport.API).Zero)
}

type CalibrateCommand struct {
	Yes bool `short:"y" long:"yes" description:"Do not ask for confirmation"`
}

func (c *CalibrateCommand) Execute(args []string) error {
	fmt.Println(subHeaderStyle.Render("━━━ Quick calibration ━━━"))
	fmt.Println("The arm moves home, then the home pose is stored as zero.")
	fmt.Println(dimStyle.Render("Use the console (Tab) for the step-by-step range wizard."))
	fmt.Println()
	if !c.Yes && !confirm("Start calibration?") {
		return nil
	}
	return runCalibrationAction("Calibration", (*transport.API).RunCalibration)
}

func runCalibrationAction(name string, call func(*transport.API, context.Context) (transport.CalibrationResult, error)) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	res, err := call(newAPI(cfg, newClientID()), context.Background())
	if err != nil {
		return fmt.Errorf("%s: %s", name, transport.Detail(err))
	}
	msg := res.Message
	if msg == "" {
		msg = name + " done"
	}
	fmt.Println(successStyle.Render(msg))
	if res.File != "" {
		fmt.Printf("  Saved to %s\n", res.File)
	}
	return nil
}

func confirm(title string) bool {
	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Println()
		return false
	}
	return ok
}
