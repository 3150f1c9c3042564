package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/armpilot/pkg/robot"
	"github.com/gwillem/armpilot/pkg/teleop"
	"github.com/gwillem/armpilot/pkg/wizard"
)

// Table styles
var (
	tableHeaderStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableMotorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	tableCellStyle      = lipgloss.NewStyle().Padding(0, 1)
	tableCurrentStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Padding(0, 1)
	tableRangeGoodStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)
	tableRangeLowStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)
	tableSelectedStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("24")).Padding(0, 1)
)

// minGoodRange is the recorded range, in degrees, below which a joint is
// flagged as probably not moved through its full travel.
const minGoodRange = 45.0

// renderJointTable shows live positions, slider targets and limits. With a
// saved calibration, travel is the position within the recorded range.
func renderJointTable(s teleop.State, cal robot.Calibration, selected int) string {
	rows := make([][]string, 0, robot.NumJoints)
	for i, name := range robot.AllMotors() {
		pos := "-"
		if s.HasPosition {
			pos = fmt.Sprintf("%.1f", s.Positions[i])
		}
		travel := "-"
		if r, ok := cal[name]; ok && r.Measured && s.HasPosition {
			travel = fmt.Sprintf("%+.0f%%", r.Normalize(s.Positions[i]))
		}
		lim := s.Limits[i]
		rows = append(rows, []string{
			string(name),
			pos,
			travel,
			fmt.Sprintf("%.1f", s.Sliders[i]),
			sliderBar(s.Sliders[i], lim, 21),
			fmt.Sprintf("%.0f..%.0f", lim.Min, lim.Max),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Joint", "Position", "Travel", "Target", "", "Limits").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			if row == selected {
				return tableSelectedStyle
			}
			switch col {
			case 0:
				return tableMotorStyle
			case 1:
				return tableCurrentStyle
			default:
				return tableCellStyle
			}
		})

	return t.Render() + "\n" + dimStyle.Render("↑/↓ joint  ←/→ target (shift: fine)  enter send")
}

// sliderBar draws value within lim as a fixed-width track.
func sliderBar(value float64, lim robot.JointLimit, width int) string {
	span := lim.Max - lim.Min
	pos := 0
	if span > 0 {
		pos = int((lim.Clamp(value) - lim.Min) / span * float64(width-1))
	}
	return strings.Repeat("─", pos) + "●" + strings.Repeat("─", width-1-pos)
}

// renderWizard shows wizard progress and, during range recording, the
// per-joint extrema.
func renderWizard(w wizard.Snapshot) string {
	var sb strings.Builder

	sb.WriteString(subHeaderStyle.Render("━━━ Calibration Wizard ━━━"))
	sb.WriteString("\n\n")

	switch w.Phase {
	case wizard.Idle:
		sb.WriteString("Ready to start calibration. Make sure the robot is connected and powered on.\n")
	case wizard.Completed:
		sb.WriteString(successStyle.Render("Calibration completed successfully!") + "\n")
	case wizard.Errored:
		sb.WriteString(errorStyle.Render("Calibration failed. Press s to start over.") + "\n")
	}

	sb.WriteString(fmt.Sprintf("Step %d/%d  %s %.0f%%\n", w.Step, w.MaxSteps, progressBar(w.Progress, 30), w.Progress))
	if w.Message != "" {
		sb.WriteString(w.Message + "\n")
	}
	sb.WriteString("\n")

	if w.Recording {
		sb.WriteString(renderRangeTable(w))
		sb.WriteString("\n\n")
		sb.WriteString(dimStyle.Render("[ record min  ] record max  r auto record  j skip joint  n next step  x cancel"))
	} else if w.Phase == wizard.Active {
		sb.WriteString(dimStyle.Render("n next step  x cancel"))
	} else {
		sb.WriteString(dimStyle.Render("s start  x close"))
	}
	sb.WriteString("\n")
	return sb.String()
}

func renderRangeTable(w wizard.Snapshot) string {
	rows := make([][]string, 0, robot.NumJoints)
	ranges := make([]float64, 0, robot.NumJoints)
	for i, name := range robot.AllMotors() {
		cur := "-"
		if i < len(w.Positions) {
			cur = fmt.Sprintf("%.1f", w.Positions[i])
		}
		r := -1.0
		if w.RecordedMin[i] != nil && w.RecordedMax[i] != nil {
			r = *w.RecordedMax[i] - *w.RecordedMin[i]
		}
		ranges = append(ranges, r)
		rangeText := "-"
		if r >= 0 {
			rangeText = fmt.Sprintf("%.1f", r)
		}
		rows = append(rows, []string{
			string(name),
			cur,
			extremum(w.LiveMin[i]),
			extremum(w.LiveMax[i]),
			extremum(w.RecordedMin[i]),
			extremum(w.RecordedMax[i]),
			rangeText,
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Joint", "Current", "Min", "Max", "Rec min", "Rec max", "Range").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			if row == w.JointIndex && col == 0 {
				return tableSelectedStyle
			}
			switch col {
			case 0:
				return tableMotorStyle
			case 1:
				return tableCurrentStyle
			case 6:
				if row >= 0 && row < len(ranges) && ranges[row] >= minGoodRange {
					return tableRangeGoodStyle
				}
				return tableRangeLowStyle
			default:
				return tableCellStyle
			}
		})
	return t.Render()
}

func extremum(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}

func progressBar(pct float64, width int) string {
	filled := int(pct / 100 * float64(width))
	filled = max(0, min(width, filled))
	return successStyle.Render(strings.Repeat("█", filled)) + dimStyle.Render(strings.Repeat("░", width-filled))
}

