// Command redka-cli is a small bubbletea terminal client for the redka wire
// protocol. It is an "external collaborator" per spec.md §1/§6: it speaks
// exactly the same TCP text protocol any other client would, one connection
// per request, and renders the exchange in a scrolling table.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF")).
			MarginLeft(1)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF00FF")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555")).
			Bold(true)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#50FA7B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginTop(1).
			MarginLeft(1)

	tableStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#6272A4"))
)

const maxFrameSize = 1024

// statusText renders a single response byte using the taxonomy in §6/§7.
func statusText(status byte) string {
	switch status {
	case '0':
		return "0 (unknown id)"
	case '1':
		return "1 (malformed frame)"
	case '2':
		return "2 (validation error)"
	default:
		return string(status)
	}
}

// sendRequest opens one connection, writes frame, reads whatever comes back
// in a single read, and closes. This mirrors the server's own one-read_some
// treatment of a frame (§6) rather than trying to infer a response length
// from the request kind.
func sendRequest(addr string, frame string) (string, error) {
	conn, err := net.DialTimeout("tcp", addr, 3*time.Second)
	if err != nil {
		return "", fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(3 * time.Second))

	if _, err := conn.Write([]byte(frame)); err != nil {
		return "", fmt.Errorf("write: %w", err)
	}

	buf := make([]byte, maxFrameSize)
	n, err := conn.Read(buf)
	if err != nil && n == 0 {
		return "", fmt.Errorf("read: %w", err)
	}

	if n == 1 && (buf[0] == '0' || buf[0] == '1' || buf[0] == '2') {
		return statusText(buf[0]), nil
	}
	return string(buf[:n]), nil
}

type responseMsg struct {
	request  string
	response string
	err      error
}

func requestCmd(addr, frame string) tea.Cmd {
	return func() tea.Msg {
		resp, err := sendRequest(addr, frame)
		return responseMsg{request: frame, response: resp, err: err}
	}
}

type model struct {
	addr    string
	input   textinput.Model
	table   table.Model
	pending bool
	lastErr error
}

func newModel(addr string) model {
	ti := textinput.New()
	ti.Placeholder = `{name:"Alice"}  or  <id>  or  {@<id> field:"value"}`
	ti.Focus()
	ti.CharLimit = maxFrameSize
	ti.Width = 72

	columns := []table.Column{
		{Title: "Request", Width: 40},
		{Title: "Response", Width: 40},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(false),
		table.WithHeight(12),
	)

	return model{addr: addr, input: ti, table: t}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			frame := strings.TrimSpace(m.input.Value())
			if frame == "" || m.pending {
				return m, nil
			}
			m.pending = true
			m.input.SetValue("")
			return m, requestCmd(m.addr, frame)
		}

	case responseMsg:
		m.pending = false
		resp := msg.response
		if msg.err != nil {
			resp = errorStyle.Render(msg.err.Error())
		}
		rows := m.table.Rows()
		rows = append(rows, table.Row{truncate(msg.request, 40), truncate(resp, 40)})
		m.table.SetRows(rows)
		m.table.SetCursor(len(rows) - 1)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("redka-cli") + " " + helpStyle.Render(m.addr) + "\n\n")
	b.WriteString(tableStyle.Render(m.table.View()) + "\n\n")
	b.WriteString(promptStyle.Render("> ") + m.input.View() + "\n")
	status := okStyle.Render("ready")
	if m.pending {
		status = "sending..."
	}
	b.WriteString(helpStyle.Render(status + "  ·  enter to send  ·  esc to quit"))
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

func main() {
	addr := flag.String("addr", "127.0.0.1:8080", "redka server address")
	flag.Parse()

	if _, err := tea.NewProgram(newModel(*addr)).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "redka-cli: %v\n", err)
		os.Exit(1)
	}
}
