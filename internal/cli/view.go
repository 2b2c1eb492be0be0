package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/probelens/probelens/pkg/engine"
	perrors "github.com/probelens/probelens/pkg/errors"
	"github.com/probelens/probelens/pkg/flow/layout"
)

// Pan step per keypress, in graph coordinates.
const panStep = 40.0

var (
	viewLaneStyle     = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	viewSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorGreen)
	viewNodeStyle     = lipgloss.NewStyle().Foreground(colorWhite)
	viewDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
	viewOffscreen     = lipgloss.NewStyle().Foreground(colorDim).Faint(true)
	viewStatusStyles  = map[string]lipgloss.Style{
		"pending":     lipgloss.NewStyle().Foreground(colorGray),
		"in_progress": lipgloss.NewStyle().Foreground(colorYellow),
		"completed":   lipgloss.NewStyle().Foreground(colorGreen),
		"error":       lipgloss.NewStyle().Foreground(colorRed),
	}
)

// newViewCmd creates the view command, an interactive terminal browser for a
// replayed investigation graph.
func newViewCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view <events.jsonl>",
		Short: "Browse a replayed investigation interactively",
		Long: `View replays an event stream and opens an interactive browser over the
resulting graph. Nodes are grouped by lane; pan and zoom adjust which part
of the layout is in frame, and individual nodes expand to show their
payload details.

Keys:
  arrows / h j k l   pan the viewport
  + / -              zoom in / out
  r                  reset the viewport
  tab / shift+tab    move the node cursor
  enter              expand or collapse the selected node
  q / esc            quit`,
		Example: `  probelens view investigation.jsonl
  probelens view investigation.jsonl --config probelens.toml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())

			cfg, err := LoadConfig(*configPath)
			if err != nil {
				return err
			}
			opts, err := cfg.EngineOptions()
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return perrors.Wrap(perrors.ErrCodeFileNotFound, err, "open event stream %s", args[0])
			}
			defer f.Close()

			eng := engine.New(append(opts, engine.WithLogger(logger))...)
			defer eng.Terminate()

			sp := newSpinner("Replaying events")
			sp.Start()
			scanner := bufio.NewScanner(f)
			scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
			for scanner.Scan() {
				raw := scanner.Bytes()
				if len(raw) == 0 {
					continue
				}
				var ev engine.Event
				if err := json.Unmarshal(raw, &ev); err != nil {
					continue
				}
				if err := eng.Ingest(ev); err != nil && perrors.Is(err, perrors.ErrCodeSessionTerminated) {
					break
				}
			}
			sp.Stop()
			if err := scanner.Err(); err != nil {
				return perrors.Wrap(perrors.ErrCodeInvalidInput, err, "read event stream")
			}

			m := newGraphModel(eng)
			if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
				return perrors.Wrap(perrors.ErrCodeInternal, err, "run interactive view")
			}
			return nil
		},
	}
	return cmd
}

// =============================================================================
// GraphModel - Interactive graph browsing
// =============================================================================

// GraphModel is the bubbletea model driving the interactive graph view. All
// mutation goes through the engine; the model only caches the latest
// snapshot and the cursor.
type GraphModel struct {
	eng    *engine.Engine
	snap   engine.Snapshot
	cursor int
	width  int
	height int
}

// newGraphModel creates a graph model over a populated engine.
func newGraphModel(eng *engine.Engine) GraphModel {
	return GraphModel{
		eng:    eng,
		snap:   eng.Snapshot(),
		width:  100,
		height: 30,
	}
}

func (m GraphModel) Init() tea.Cmd {
	return nil
}

func (m GraphModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "left", "h":
			m.eng.Pan(panStep, 0)
		case "right", "l":
			m.eng.Pan(-panStep, 0)
		case "up", "k":
			m.eng.Pan(0, panStep)
		case "down", "j":
			m.eng.Pan(0, -panStep)
		case "+", "=":
			m.eng.Zoom(1.25)
		case "-", "_":
			m.eng.Zoom(0.8)
		case "r":
			m.eng.ResetView()
		case "tab":
			if m.cursor < len(m.snap.Positions)-1 {
				m.cursor++
			}
		case "shift+tab":
			if m.cursor > 0 {
				m.cursor--
			}
		case "enter":
			if m.cursor < len(m.snap.Positions) {
				m.eng.ToggleExpand(m.snap.Positions[m.cursor].NodeID)
			}
		default:
			return m, nil
		}
		m.snap = m.eng.Snapshot()
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}
	return m, nil
}

func (m GraphModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("ProbeLens"))
	b.WriteString("  ")
	b.WriteString(viewDimStyle.Render("arrows pan  +/- zoom  tab cursor  ⏎ expand  r reset  q quit"))
	b.WriteString("\n")

	vs := m.snap.ViewState
	b.WriteString(viewDimStyle.Render(fmt.Sprintf(
		"status %s · %d nodes · %d edges · zoom %.0f%% · offset (%.0f, %.0f)",
		m.snap.Status, len(m.snap.Nodes), len(m.snap.Edges),
		vs.Scale*100, vs.TranslateX, vs.TranslateY)))
	b.WriteString("\n\n")

	lane := ""
	for i, pos := range m.snap.Positions {
		if pos.Lane != lane {
			if lane != "" {
				b.WriteString("\n")
			}
			lane = pos.Lane
			b.WriteString(viewLaneStyle.Render(strings.ToUpper(lane)))
			b.WriteString("\n")
		}
		b.WriteString(m.renderNode(i, pos))
	}

	if len(m.snap.Diagnostics) > 0 {
		b.WriteString("\n")
		b.WriteString(StyleWarning.Render(fmt.Sprintf("%d diagnostics", len(m.snap.Diagnostics))))
		b.WriteString("\n")
		for _, d := range m.snap.Diagnostics {
			line := fmt.Sprintf("  %s %s", d.Kind, d.Detail)
			b.WriteString(viewDimStyle.Render(line))
			b.WriteString("\n")
		}
	}

	return b.String()
}

// renderNode draws one node line plus its expansion detail.
func (m GraphModel) renderNode(i int, pos layout.Position) string {
	node, ok := m.snap.Node(pos.NodeID)
	if !ok {
		return ""
	}

	cursor := "  "
	if i == m.cursor {
		cursor = "▸ "
	}

	sx := pos.X*m.snap.ViewState.Scale + m.snap.ViewState.TranslateX
	sy := pos.Y*m.snap.ViewState.Scale + m.snap.ViewState.TranslateY
	inFrame := sx >= 0 && sx <= float64(m.width)*8 && sy >= 0 && sy <= float64(m.height)*16

	statusStyle, ok := viewStatusStyles[string(node.Status)]
	if !ok {
		statusStyle = viewDimStyle
	}

	marker := " "
	if node.Expanded {
		marker = "−"
	} else if len(node.Fields) > 0 || node.Description != "" {
		marker = "+"
	}

	line := fmt.Sprintf("%s%s %-28s %s  %s", cursor, marker, node.Label,
		statusStyle.Render(string(node.Status)),
		viewDimStyle.Render(fmt.Sprintf("L%d (%.0f, %.0f)", pos.Level, sx, sy)))

	var b strings.Builder
	switch {
	case i == m.cursor:
		b.WriteString(viewSelectedStyle.Render(line))
	case !inFrame:
		b.WriteString(viewOffscreen.Render(line))
	default:
		b.WriteString(viewNodeStyle.Render(line))
	}
	b.WriteString("\n")

	if node.Expanded {
		if node.Description != "" {
			b.WriteString(viewDimStyle.Render("      " + node.Description))
			b.WriteString("\n")
		}
		for _, f := range node.Fields {
			b.WriteString(viewDimStyle.Render(fmt.Sprintf("      %s: %s", f.Key, f.Value)))
			b.WriteString("\n")
		}
	}
	return b.String()
}
