package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"video-parser/internal/batch"
	"video-parser/internal/export"
)

// Parser runs one parse for the TUI; *batch.BatchManager satisfies it
type Parser interface {
	ParseOne(ctx context.Context, index int, input string) batch.BatchResult
}

// Model represents the main application state
type Model struct {
	state    State
	parser   Parser
	timeout  time.Duration
	urlInput textinput.Model
	table    table.Model
	spinner  spinner.Model
	results  []export.Record
	pending  int
	lastErr  string
	width    int
	height   int
	styles   Styles
}

// State represents different screens/states of the TUI
type State int

const (
	MainMenu State = iota
	ParseScreen
	Results
	Help
)

// parsedMsg carries a finished parse back into Update
type parsedMsg struct {
	result batch.BatchResult
}

// Styles holds all the styling for the TUI
type Styles struct {
	title     lipgloss.Style
	subtitle  lipgloss.Style
	menuItem  lipgloss.Style
	input     lipgloss.Style
	statusBar lipgloss.Style
	errorText lipgloss.Style
	table     lipgloss.Style
}

// InitialModel creates the initial model for the TUI. Each parse is bounded by timeout.
func InitialModel(parser Parser, timeout time.Duration) Model {
	// Initialize text input
	ti := textinput.New()
	ti.Placeholder = "粘贴分享链接或分享文本..."
	ti.Focus()
	ti.CharLimit = 1000
	ti.Width = 60

	// Initialize table
	columns := []table.Column{
		{Title: "#", Width: 4},
		{Title: "Platform", Width: 10},
		{Title: "Status", Width: 10},
		{Title: "Title", Width: 30},
		{Title: "Author", Width: 16},
		{Title: "Media URL", Width: 50},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows([]table.Row{}),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))

	// Initialize styles
	styles := Styles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			PaddingTop(1).
			PaddingBottom(1),
		subtitle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			PaddingBottom(1),
		menuItem: lipgloss.NewStyle().
			PaddingLeft(2).
			PaddingRight(2).
			Margin(0, 1),
		input: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(1),
		statusBar: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Padding(0, 1),
		errorText: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E06C75")),
		table: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")),
	}

	return Model{
		state:    MainMenu,
		parser:   parser,
		timeout:  timeout,
		urlInput: ti,
		table:    t,
		spinner:  sp,
		styles:   styles,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case parsedMsg:
		m.pending--
		rec := export.ToRecord(msg.result)
		m.results = append(m.results, rec)
		m.lastErr = rec.Error
		m.updateTable()
		return m, nil

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.state != ParseScreen {
				return m, tea.Quit
			}

		case "esc":
			if m.state != MainMenu {
				m.state = MainMenu
				return m, nil
			}

		case "1":
			if m.state == MainMenu {
				m.state = ParseScreen
				return m, nil
			}

		case "2":
			if m.state == MainMenu {
				m.state = Results
				return m, nil
			}

		case "3":
			if m.state == MainMenu {
				m.state = Help
				return m, nil
			}

		case "enter":
			if m.state == ParseScreen && strings.TrimSpace(m.urlInput.Value()) != "" {
				input := strings.TrimSpace(m.urlInput.Value())
				index := len(m.results) + m.pending
				m.pending++
				m.urlInput.SetValue("")
				return m, m.parseCmd(index, input)
			}
		}
	}

	// Update components based on current state
	switch m.state {
	case ParseScreen:
		m.urlInput, cmd = m.urlInput.Update(msg)
	case Results:
		m.table, cmd = m.table.Update(msg)
	}

	return m, cmd
}

// parseCmd runs the parse off the UI goroutine
func (m Model) parseCmd(index int, input string) tea.Cmd {
	parser, timeout := m.parser, m.timeout
	return func() tea.Msg {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return parsedMsg{result: parser.ParseOne(ctx, index, input)}
	}
}

// View renders the UI
func (m Model) View() string {
	switch m.state {
	case ParseScreen:
		return m.renderParseScreen()
	case Results:
		return m.renderResults()
	case Help:
		return m.renderHelp()
	default:
		return m.renderMainMenu()
	}
}

func (m Model) renderMainMenu() string {
	title := m.styles.title.Render("Video Parser")
	subtitle := m.styles.subtitle.Render("抖音 · 哔哩哔哩 · 快手 · 微博 · 小红书 · 皮皮搞笑 · 皮皮虾 · 汽水音乐")

	menu := []string{
		"1. Parse Share Link",
		"2. Results",
		"3. Help",
		"",
		"q. Quit",
	}

	var menuItems []string
	for _, item := range menu {
		if item == "" {
			menuItems = append(menuItems, "")
		} else {
			menuItems = append(menuItems, m.styles.menuItem.Render(item))
		}
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		title,
		subtitle,
		"",
		strings.Join(menuItems, "\n"),
	)

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m Model) renderParseScreen() string {
	title := m.styles.title.Render("Parse Share Link")
	input := m.styles.input.Render(m.urlInput.View())

	status := fmt.Sprintf("%d parsed", len(m.results))
	if m.pending > 0 {
		status = fmt.Sprintf("%s %d parsing • %s", m.spinner.View(), m.pending, status)
	}

	lines := []string{
		"Paste a link or the whole share text, e.g.",
		"• 复制打开抖音，看看【作品】 https://v.douyin.com/xxxx/",
		"• https://www.bilibili.com/video/BV1xx411c7mD",
		"",
		"Enter to parse • ESC to go back",
	}

	parts := []string{title, "", input, m.styles.statusBar.Render(status)}
	if m.lastErr != "" {
		parts = append(parts, m.styles.errorText.Render(m.lastErr))
	}
	parts = append(parts, "", strings.Join(lines, "\n"))

	content := lipgloss.JoinVertical(lipgloss.Left, parts...)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m Model) renderResults() string {
	title := m.styles.title.Render("Results")

	tableView := m.styles.table.Render(m.table.View())

	instructions := "↑/↓ to navigate • ESC to go back"

	content := lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		tableView,
		"",
		instructions,
	)

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m Model) renderHelp() string {
	title := m.styles.title.Render("Help")

	helpText := []string{
		"Navigation:",
		"• Use number keys to select menu items",
		"• ESC to go back to main menu",
		"• q or Ctrl+C to quit (Ctrl+C while typing)",
		"",
		"Parsing:",
		"• Paste a share link or share text and press Enter",
		"• Several links can be parsed at once; results keep submit order",
		"• The platform is detected from the link",
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		strings.Join(helpText, "\n"),
		"",
		"ESC to go back",
	)

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m *Model) updateTable() {
	ordered := make([]export.Record, len(m.results))
	copy(ordered, m.results)
	// parses finish out of order; show them in submit order
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	var rows []table.Row
	for _, r := range ordered {
		title := r.Title
		if title == "" && r.Error != "" {
			title = r.Error
		}
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", r.Index+1),
			string(r.Platform),
			r.Status,
			title,
			r.Author,
			r.MediaURL,
		})
	}
	m.table.SetRows(rows)
}

// Rows returns the rows currently shown in the results table
func (m Model) Rows() []table.Row {
	return m.table.Rows()
}
