package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/fleetsim/gridnet/logger"
	"github.com/fleetsim/gridnet/mapper"
	"github.com/fleetsim/gridnet/node"
)

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Run a simulated fleet in a terminal UI",
	Long: `Run an interactive fleet of simulated vehicles on an in-process bus.
Each vehicle joins with an init handshake, announces its status
periodically, and builds its own peer map, all visible live.

Keyboard shortcuts:
  C - Create a vehicle
  D - Delete a vehicle (by number)
  Q - Quit

Examples:
  gridnet interactive`,
	Run: runInteractive,
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
}

type model struct {
	manager      *node.Manager
	views        []node.VehicleView
	deleteMode   bool
	selected     int
	numericInput string
	lastCommand  string
	err          error

	logBuffer *logger.LogBuffer
	logs      viewport.Model
	width     int
	height    int
}

func initialModel() model {
	// Logs go to the ring buffer only; stdout belongs to the TUI.
	logBuffer := logger.GlobalLogBuffer()
	logger.Init(false)
	logger.AddOutput(logger.NewLogBufferWriter(logBuffer))

	logs := viewport.New(96, 12)
	return model{
		manager:   node.NewManager(),
		logBuffer: logBuffer,
		logs:      logs,
	}
}

type tickMsg struct{}

func tick() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

type shutdownCompleteMsg struct{}

func shutdown(manager *node.Manager) tea.Cmd {
	return func() tea.Msg {
		manager.StopAll()
		return shutdownCompleteMsg{}
	}
}

func (m model) Init() tea.Cmd {
	return tick()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, shutdown(m.manager)
		}
		if m.deleteMode {
			return m.handleDeleteMode(msg)
		}

		switch msg.String() {
		case "c", "C":
			m.createVehicle()
			m.lastCommand = "create"
			return m, nil

		case "d", "D":
			if m.manager.Count() == 0 {
				m.err = fmt.Errorf("no vehicles to delete")
				return m, nil
			}
			m.deleteMode = true
			m.selected = 0
			m.numericInput = ""
			return m, nil

		case "enter":
			return m.repeatLastCommand()

		case "up", "k", "down", "j", "pgup", "pgdown":
			// Scrolling is the viewport's business.
			var cmd tea.Cmd
			m.logs, cmd = m.logs.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.logs.Width = msg.Width - 6
		return m, nil

	case tickMsg:
		m.views = m.manager.Views()
		m.refreshLogs()
		return m, tick()

	case shutdownCompleteMsg:
		return m, tea.Quit
	}

	return m, nil
}

func (m *model) createVehicle() {
	if _, err := m.manager.CreateNode(); err != nil {
		m.err = err
		return
	}
	m.err = nil
	m.views = m.manager.Views()
}

func (m *model) deleteVehicle(index int) {
	m.lastCommand = fmt.Sprintf("delete:%d", index)
	if err := m.manager.DeleteNode(index); err != nil {
		m.err = err
		return
	}
	m.err = nil
	m.deleteMode = false
	m.selected = 0
	m.views = m.manager.Views()
}

func (m model) repeatLastCommand() (tea.Model, tea.Cmd) {
	switch {
	case m.lastCommand == "create":
		m.createVehicle()
	case strings.HasPrefix(m.lastCommand, "delete:"):
		index, err := strconv.Atoi(strings.TrimPrefix(m.lastCommand, "delete:"))
		if err != nil {
			return m, nil
		}
		if index < 0 || index >= m.manager.Count() {
			m.err = fmt.Errorf("vehicle %d no longer exists", index+1)
			return m, nil
		}
		m.deleteVehicle(index)
	}
	return m, nil
}

func (m model) handleDeleteMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key := msg.String(); key {
	case "esc":
		m.deleteMode = false
		m.numericInput = ""
		m.err = nil
		return m, nil

	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
		return m, nil

	case "down", "j":
		if m.selected < m.manager.Count()-1 {
			m.selected++
		}
		return m, nil

	case "enter", " ":
		if m.numericInput != "" {
			num, err := strconv.Atoi(m.numericInput)
			if err != nil || num < 1 || num > m.manager.Count() {
				m.err = fmt.Errorf("no vehicle numbered %s", m.numericInput)
				m.numericInput = ""
				return m, nil
			}
			m.numericInput = ""
			m.deleteVehicle(num - 1)
			return m, nil
		}
		m.deleteVehicle(m.selected)
		return m, nil

	default:
		if len(key) == 1 && key >= "0" && key <= "9" {
			m.numericInput += key
			return m, nil
		}
		m.numericInput = ""
		return m, nil
	}
}

func (m *model) refreshLogs() {
	entries := m.logBuffer.GetAll()
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, logger.FormatLogEntry(e))
	}
	atBottom := m.logs.AtBottom()
	m.logs.SetContent(strings.Join(lines, "\n"))
	if atBottom {
		m.logs.GotoBottom()
	}
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(1, 2)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	selectedStyle = lipgloss.NewStyle().
			PaddingLeft(2).
			Foreground(lipgloss.Color("196")).
			Bold(true)

	offlineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true).
			PaddingTop(1)
)

func (m model) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("gridnet Fleet"))
	s.WriteString("\n\n")

	if m.err != nil {
		s.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		s.WriteString("\n\n")
	}

	if len(m.views) == 0 {
		s.WriteString("No vehicles on the grid.\n\n")
	} else {
		s.WriteString("Vehicles:\n\n")
		for i, v := range m.views {
			line := fmt.Sprintf("[%d] %s (addr %d)  peers %d known / %d online%s",
				i+1, v.Name, v.Address, v.Known, v.Online, peerSummary(v))
			if m.deleteMode && i == m.selected {
				s.WriteString(selectedStyle.Render("> " + line))
			} else {
				s.WriteString("  " + line)
			}
			s.WriteString("\n")
		}
		s.WriteString("\n")
	}

	s.WriteString(boxStyle.Render("Logs:\n" + m.logs.View()))
	s.WriteString("\n")

	if m.deleteMode {
		help := fmt.Sprintf("DELETE: ↑/↓ or type a number (1-%d), Enter to confirm, Esc to cancel", m.manager.Count())
		if m.numericInput != "" {
			help = fmt.Sprintf("DELETE: vehicle %s - Enter to confirm, Esc to cancel", m.numericInput)
		}
		s.WriteString(helpStyle.Render(help))
	} else {
		help := "C create | D delete"
		if m.lastCommand != "" {
			help += fmt.Sprintf(" | Enter repeat (%s)", commandPreview(m.lastCommand))
		}
		help += " | ↑/↓ scroll logs | Q quit"
		s.WriteString(helpStyle.Render(help))
	}

	return s.String()
}

// peerSummary renders the peer names a vehicle currently knows, offline
// ones dimmed.
func peerSummary(v node.VehicleView) string {
	if len(v.Peers) == 0 {
		return ""
	}
	var peers []string
	sorted := make([]mapper.PeerRecord, len(v.Peers))
	copy(sorted, v.Peers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	for _, p := range sorted {
		if p.Online {
			peers = append(peers, p.Name)
		} else {
			peers = append(peers, offlineStyle.Render(p.Name+"†"))
		}
	}
	return "  [" + strings.Join(peers, " ") + "]"
}

func commandPreview(lastCommand string) string {
	if index, ok := strings.CutPrefix(lastCommand, "delete:"); ok {
		return "D → " + index
	}
	return "C"
}

func runInteractive(cmd *cobra.Command, args []string) {
	p := tea.NewProgram(initialModel())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running interactive mode: %v\n", err)
	}
}
