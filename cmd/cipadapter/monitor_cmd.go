package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/tturner/cipadapter/internal/config"
	"github.com/tturner/cipadapter/internal/connmgr"
	"github.com/tturner/cipadapter/internal/logging"
	"github.com/tturner/cipadapter/internal/stack"
)

func newMonitorCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Live view of active connections against a config",
		Long: `monitor builds a stack from the given config and polls its connection
manager on an interval, without opening any network listeners. It is meant
for inspecting how a config's assemblies and connection points would look,
not for watching a running "serve" process.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.CreateDefaultConfig()
			if cfgPath != "" {
				loaded, err := config.LoadConfig(cfgPath, false)
				if err != nil {
					return err
				}
				cfg = loaded
			}

			logger, err := logging.NewLogger(logging.LogLevelSilent, "")
			if err != nil {
				return err
			}
			defer logger.Close()

			s, err := stack.New(cfg, noopApplication{}, logger)
			if err != nil {
				return fmt.Errorf("build stack: %w", err)
			}

			program := tea.NewProgram(newMonitorModel(cfg.Name, s), tea.WithAltScreen())
			_, err = program.Run()
			return err
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "Adapter config file path (uses the built-in default if omitted)")
	return cmd
}

var (
	monitorTitle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#7aa2f7")).Bold(true).Padding(0, 1)
	monitorHeader  = lipgloss.NewStyle().Foreground(lipgloss.Color("#565f89")).Bold(true)
	monitorRow     = lipgloss.NewStyle().Foreground(lipgloss.Color("#c0caf5"))
	monitorEmpty   = lipgloss.NewStyle().Foreground(lipgloss.Color("#414868")).Italic(true)
	monitorFooter  = lipgloss.NewStyle().Foreground(lipgloss.Color("#565f89"))
	monitorRunning = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ece6a"))
)

type monitorTickMsg time.Time

func monitorTickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

type monitorModel struct {
	name  string
	stack *stack.Stack
	conns []*connmgr.Conn
	ticks int
}

func newMonitorModel(name string, s *stack.Stack) *monitorModel {
	return &monitorModel{name: name, stack: s}
}

func (m *monitorModel) Init() tea.Cmd {
	return monitorTickCmd()
}

func (m *monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
		return m, nil

	case monitorTickMsg:
		m.stack.Driver.ManageConnections()
		m.conns = m.stack.ConnMgr.Active()
		m.ticks++
		return m, monitorTickCmd()
	}
	return m, nil
}

func (m *monitorModel) View() string {
	b := monitorTitle.Render(fmt.Sprintf("cipadapter monitor -- %s", m.name)) + "\n\n"
	b += monitorHeader.Render(fmt.Sprintf("%-22s %-9s %10s %10s %12s %12s", "TYPE", "STATE", "CONSUMING", "PRODUCING", "O->T CID", "T->O CID")) + "\n"

	if len(m.conns) == 0 {
		b += monitorEmpty.Render("no established connections") + "\n"
	}
	for _, c := range m.conns {
		state := monitorRow.Render(c.State.String())
		if c.State == connmgr.StateEstablished {
			state = monitorRunning.Render(c.State.String())
		}
		b += fmt.Sprintf("%-22s %-9s %10d %10d %12x %12x\n",
			c.InstanceType.String(), state, c.ConnPath.ConsumingPoint, c.ConnPath.ProducingPoint,
			c.OToTConnectionID, c.TToOConnectionID)
	}

	b += "\n" + monitorFooter.Render(fmt.Sprintf("tick %d -- q to quit", m.ticks))
	return b
}
