package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/LiYuxian0306/ScanNet/internal/cli/hooks"
	"github.com/LiYuxian0306/ScanNet/pkg/segbatch"
)

const listHeightMargin = 4 // header + footer + padding

// --- Model Struct ---

// Model represents the state of the TUI application.
// It holds UI components (list, spinner), layout dimensions, run status,
// aggregated summary statistics, and the list of scenes being processed.
type Model struct {
	// list displays the scrollable list of scenes.
	list list.Model
	// spinner indicates background activity.
	spinner spinner.Model
	// width is the current terminal width, updated on WindowSizeMsg.
	width int
	// height is the current terminal height, updated on WindowSizeMsg.
	height int
	// initialized tracks if the model has received initial dimensions.
	initialized bool
	// sceneItems holds the internal data for each item displayed in the list.
	// Access MUST be protected by listLock for concurrent updates.
	sceneItems []listItem
	// summary tracks the aggregated counts and timing for the current run.
	summary Summary
	// phaseMessage displays the current overall stage (Scanning, Segmenting, Complete).
	phaseMessage string
	// fatalError stores a descriptive message if the run was halted.
	fatalError string
	// quitting indicates the user initiated shutdown (q or Ctrl+C).
	quitting bool
	// startTime maps scene IDs to their segmentation start time.
	startTime map[string]time.Time
	// itemMap maps scene IDs to their index in sceneItems for efficient updates.
	// Access MUST be protected by listLock.
	itemMap map[string]int
	// listLock synchronizes concurrent access to sceneItems and itemMap.
	listLock sync.Mutex
	// debounceTimer manages debouncing for list updates.
	debounceTimer *time.Timer
	// version is the CLI version shown in the header.
	version string
}

// listItem represents a single scene in the TUI list.
type listItem struct {
	sceneID  string
	status   segbatch.Status
	message  string
	duration time.Duration
}

// Summary holds the aggregated statistics displayed in the TUI footer.
type Summary struct {
	ScenesFound  int
	SuccessCount int
	SkippedCount int
	FailCount    int
	StartTime    time.Time
}

// --- Bubble Tea Interface Implementations ---

// Init initializes the TUI model and starts the spinner.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles incoming messages (user input, hook events) and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var listCmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		listHeight := m.height - listHeightMargin
		if listHeight < 1 {
			listHeight = 1
		}
		m.list.SetSize(m.width, listHeight)
		m.initialized = true

	case tea.KeyMsg:
		if m.quitting {
			return m, nil
		}
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}
		m.list, listCmd = m.list.Update(msg)
		cmds = append(cmds, listCmd)

	case spinner.TickMsg:
		if m.quitting {
			return m, nil
		}
		var spinnerCmd tea.Cmd
		m.spinner, spinnerCmd = m.spinner.Update(msg)
		cmds = append(cmds, spinnerCmd)

	case hooks.SceneDiscoveredMsg:
		m.listLock.Lock()
		if _, exists := m.itemMap[msg.SceneID]; !exists {
			newItem := listItem{sceneID: msg.SceneID, status: segbatch.StatusPending}
			m.sceneItems = append(m.sceneItems, newItem)
			m.itemMap[msg.SceneID] = len(m.sceneItems) - 1
			m.summary.ScenesFound++
			cmds = append(cmds, m.debounceListUpdate())
		}
		m.listLock.Unlock()
		if !m.quitting && (m.phaseMessage == "" || m.phaseMessage == "Initializing...") {
			m.phaseMessage = "Scanning..."
		}

	case hooks.SceneStatusUpdateMsg:
		m.listLock.Lock()
		if idx, ok := m.itemMap[msg.SceneID]; ok && idx < len(m.sceneItems) {
			currentItem := &m.sceneItems[idx]

			if isFinalStatus(msg.Status) && currentItem.status == segbatch.StatusRunning {
				if started, found := m.startTime[msg.SceneID]; found {
					currentItem.duration = time.Since(started)
					delete(m.startTime, msg.SceneID)
				}
			} else if msg.Status == segbatch.StatusRunning {
				m.startTime[msg.SceneID] = time.Now()
				currentItem.duration = 0
			}

			if isFinalStatus(msg.Status) && !isFinalStatus(currentItem.status) {
				m.incrementSummaryCount(msg.Status)
			}

			currentItem.status = msg.Status
			currentItem.message = msg.Message
			cmds = append(cmds, m.debounceListUpdate())
		} else {
			// Status update for an unknown scene: discovery message was missed or delayed.
			newItem := listItem{sceneID: msg.SceneID, status: msg.Status, message: msg.Message}
			m.sceneItems = append(m.sceneItems, newItem)
			m.itemMap[msg.SceneID] = len(m.sceneItems) - 1
			m.summary.ScenesFound++
			if isFinalStatus(msg.Status) {
				m.incrementSummaryCount(msg.Status)
			}
			cmds = append(cmds, m.debounceListUpdate())
		}
		m.listLock.Unlock()

		if !m.quitting && m.phaseMessage != "Segmenting..." && msg.Status == segbatch.StatusRunning {
			m.phaseMessage = "Segmenting..."
		}

	case hooks.RunCompleteMsg:
		m.phaseMessage = "Complete"
		m.summary.ScenesFound = msg.Report.Summary.ScenesFound
		m.summary.SuccessCount = msg.Report.Summary.SuccessCount
		m.summary.SkippedCount = msg.Report.Summary.SkippedExisting
		m.summary.FailCount = msg.Report.Summary.FailCount
		if msg.Report.Summary.FatalError != "" {
			m.fatalError = fmt.Sprintf("Fatal Error: %s", msg.Report.Summary.FatalError)
		}

	case UpdateListMsg:
		m.listLock.Lock()
		items := make([]list.Item, len(m.sceneItems))
		for i, item := range m.sceneItems {
			items[i] = item
		}
		m.listLock.Unlock()
		cmds = append(cmds, m.list.SetItems(items))
	}

	if listCmd != nil {
		cmds = append(cmds, listCmd)
	}

	return m, tea.Batch(cmds...)
}

// View renders the current state of the TUI model to a string.
func (m *Model) View() string {
	if m.quitting {
		return "Exiting...\n"
	}
	if !m.initialized {
		return "Initializing..."
	}

	headerLeft := fmt.Sprintf("Seg Batch v%s", m.version)
	headerRight := m.phaseMessage
	if m.phaseMessage != "Complete" && m.phaseMessage != "Initializing..." {
		headerRight = m.spinner.View() + " " + m.phaseMessage
	}
	header := renderBar(HeaderStyle, m.width, headerLeft, headerRight)

	elapsed := time.Since(m.summary.StartTime).Round(time.Millisecond)
	summaryText := fmt.Sprintf(
		"Succeeded: %d | Skipped: %d | Failed: %d | Scenes: %d | Elapsed: %s",
		m.summary.SuccessCount,
		m.summary.SkippedCount,
		m.summary.FailCount,
		m.summary.ScenesFound,
		elapsed,
	)
	footer := renderBar(FooterStyle, m.width, summaryText, "q: quit")

	listView := m.list.View()

	errorView := ""
	if m.fatalError != "" {
		errorView = StatusStyleFailed.Render(m.fatalError) + "\n"
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		listView,
		errorView,
		footer,
	)
}

// renderBar lays out a single-line status bar with left and right segments.
// The spacer is sized against the style's content area, not the full terminal
// width, so padding never pushes the line past the terminal and lipgloss never
// soft-wraps it. When the segments do not fit, the left one is truncated.
func renderBar(style lipgloss.Style, totalWidth int, left, right string) string {
	contentWidth := totalWidth - style.GetHorizontalFrameSize()
	gap := contentWidth - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		left = truncateToWidth(left, contentWidth-lipgloss.Width(right)-1)
		gap = contentWidth - lipgloss.Width(left) - lipgloss.Width(right)
	}
	spacer := ""
	if gap > 0 {
		spacer = strings.Repeat(" ", gap)
	}
	return style.Width(totalWidth).Render(left + spacer + right)
}

func truncateToWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width])
}

// --- Helper Methods ---

// NewModel creates the initial model for the TUI.
func NewModel(version string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	delegate := list.NewDefaultDelegate()
	delegate.SetSpacing(0)
	delegate.ShowDescription = true
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(ColorSelectedFg).
		Background(ColorSelectedBg).
		Bold(true).
		Padding(0, 0, 0, 1)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(ColorSelectedDescFg).
		Background(ColorSelectedBg).
		Padding(0, 0, 0, 1)
	delegate.Styles.NormalTitle = delegate.Styles.NormalTitle.
		Foreground(ColorNormalFg).Padding(0, 0, 0, 1)
	delegate.Styles.NormalDesc = delegate.Styles.NormalDesc.
		Foreground(ColorNormalDescFg).Padding(0, 0, 0, 1)

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetShowTitle(false)
	l.SetShowFilter(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	return Model{
		list:         l,
		spinner:      s,
		summary:      Summary{StartTime: time.Now()},
		phaseMessage: "Initializing...",
		sceneItems:   make([]listItem, 0, 256),
		itemMap:      make(map[string]int),
		startTime:    make(map[string]time.Time),
		version:      version,
	}
}

// isFinalStatus checks if a status represents a terminal state for a scene.
func isFinalStatus(status segbatch.Status) bool {
	return status == segbatch.StatusSucceeded ||
		status == segbatch.StatusFailed ||
		status == segbatch.StatusSkipped
}

// incrementSummaryCount updates summary counts for a new final status.
// MUST be called with listLock held.
func (m *Model) incrementSummaryCount(status segbatch.Status) {
	switch status {
	case segbatch.StatusSucceeded:
		m.summary.SuccessCount++
	case segbatch.StatusSkipped:
		m.summary.SkippedCount++
	case segbatch.StatusFailed:
		m.summary.FailCount++
	}
}

// --- List Item Interface ---

// FilterValue implements the list.Item interface.
func (i listItem) FilterValue() string { return i.sceneID }

// Title implements the list.Item interface.
func (i listItem) Title() string { return i.sceneID }

// Description implements the list.Item interface.
func (i listItem) Description() string {
	var statusStyle lipgloss.Style
	statusIcon := " "
	switch i.status {
	case segbatch.StatusSucceeded:
		statusStyle = StatusStyleSucceeded
		statusIcon = "✓"
	case segbatch.StatusFailed:
		statusStyle = StatusStyleFailed
		statusIcon = "✗"
	case segbatch.StatusSkipped:
		statusStyle = StatusStyleSkipped
		statusIcon = "S"
	case segbatch.StatusRunning:
		statusStyle = StatusStyleRunning
		statusIcon = "…"
	default:
		statusStyle = StatusStylePending
		statusIcon = " "
	}

	statusStr := statusStyle.Render(fmt.Sprintf("[%s]", statusIcon))
	details := ""

	switch i.status {
	case segbatch.StatusFailed:
		details = i.message
	case segbatch.StatusSkipped:
		details = "output exists"
	case segbatch.StatusSucceeded:
		if i.duration > 0 {
			details = formatDuration(i.duration)
		}
	}
	return fmt.Sprintf("%s %s", statusStr, details)
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		if d == 0 {
			return ""
		}
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// --- Update Debouncing ---

// UpdateListMsg signals that the list component should refresh its items.
type UpdateListMsg struct{}

const listUpdateDebounceDuration = 50 * time.Millisecond

// debounceListUpdate sends a message to trigger a list update after a short delay.
// This prevents excessive list updates during rapid status changes.
// MUST be called with listLock held.
func (m *Model) debounceListUpdate() tea.Cmd {
	if m.debounceTimer != nil {
		m.debounceTimer.Stop()
	}
	m.debounceTimer = time.NewTimer(listUpdateDebounceDuration)
	return func() tea.Msg {
		<-m.debounceTimer.C
		return UpdateListMsg{}
	}
}

// --- Styles ---

const (
	ColorHeaderFg = lipgloss.Color("252")
	ColorHeaderBg = lipgloss.Color("62")

	ColorFooterFg = lipgloss.Color("252")
	ColorFooterBg = lipgloss.Color("56")

	ColorNormalFg     = lipgloss.Color("250")
	ColorNormalDescFg = lipgloss.Color("244")

	ColorSelectedFg     = lipgloss.Color("255")
	ColorSelectedBg     = lipgloss.Color("56")
	ColorSelectedDescFg = lipgloss.Color("248")

	ColorStatusSucceeded = lipgloss.Color("40")
	ColorStatusFailed    = lipgloss.Color("196")
	ColorStatusSkipped   = lipgloss.Color("214")
	ColorStatusPending   = lipgloss.Color("244")
	ColorStatusRunning   = lipgloss.Color("205")
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorHeaderFg).
			Background(ColorHeaderBg).
			Padding(0, 1)

	FooterStyle = lipgloss.NewStyle().
			Foreground(ColorFooterFg).
			Background(ColorFooterBg).
			Padding(0, 1)

	StatusStyleSucceeded = lipgloss.NewStyle().Foreground(ColorStatusSucceeded)
	StatusStyleFailed    = lipgloss.NewStyle().Foreground(ColorStatusFailed)
	StatusStyleSkipped   = lipgloss.NewStyle().Foreground(ColorStatusSkipped)
	StatusStylePending   = lipgloss.NewStyle().Foreground(ColorStatusPending)
	StatusStyleRunning   = lipgloss.NewStyle().Foreground(ColorStatusRunning)
)
