package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	Config string `short:"c" long:"config" description:"Config file (default ~/.config/armpilot/config.yml)"`
	Server string `short:"s" long:"server" description:"Arm server URL (overrides config)"`

	Console    ConsoleCommand    `command:"console" alias:"teleop" description:"Interactive teleoperation and calibration console"`
	Connect    ConnectCommand    `command:"connect" description:"Connect the server to the robot"`
	Disconnect DisconnectCommand `command:"disconnect" description:"Disconnect the server from the robot"`
	Ports      PortsCommand      `command:"ports" description:"List serial ports visible to the server"`
	Home       HomeCommand       `command:"home" description:"Move the arm to its home position"`
	Zero       ZeroCommand       `command:"zero" description:"Record the current position as zero"`
	Calibrate  CalibrateCommand  `command:"calibrate" description:"Run the server's quick calibration (home, zero, save)"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "armpilot - terminal console for SO-100/SO-101 arm servers"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}
