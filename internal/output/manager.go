package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

type jobState string

const (
	statePending jobState = "pending"
	stateActive  jobState = "active"
	stateSuccess jobState = "success"
	stateError   jobState = "error"
)

// JobOutput is the display state of one download.
type JobOutput struct {
	ID          int
	URL         string
	Status      jobState
	Message     string
	Percent     int // -1 until the engine reports a percentage
	Complete    bool
	StartTime   time.Time
	LastUpdated time.Time
	Error       string
}

type ErrorReport struct {
	URL   string
	Error string
	Time  time.Time
}

// Manager redraws the status of every registered download in place.
type Manager struct {
	out         io.Writer
	mutex       sync.RWMutex
	jobs        []*JobOutput
	errors      []ErrorReport
	numLines    int
	barWidth    int
	displayTick time.Duration
	doneCh      chan struct{}
	displayWg   sync.WaitGroup
	interactive bool
}

func NewManager() *Manager {
	return NewManagerWithWriter(os.Stdout, isTerminal())
}

// NewManagerWithWriter renders to out. When interactive is false nothing is
// redrawn and only terminal job states are printed.
func NewManagerWithWriter(out io.Writer, interactive bool) *Manager {
	return &Manager{
		out:         out,
		barWidth:    30,
		displayTick: 200 * time.Millisecond,
		doneCh:      make(chan struct{}),
		interactive: interactive,
	}
}

func (m *Manager) Register(url string) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	now := time.Now()
	m.jobs = append(m.jobs, &JobOutput{
		ID:          len(m.jobs) + 1,
		URL:         url,
		Status:      statePending,
		Percent:     -1,
		StartTime:   now,
		LastUpdated: now,
	})
	return len(m.jobs)
}

func (m *Manager) job(id int) *JobOutput {
	if id < 1 || id > len(m.jobs) {
		return nil
	}
	return m.jobs[id-1]
}

func (m *Manager) SetMessage(id int, message string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info := m.job(id); info != nil && !info.Complete {
		if info.Status == statePending {
			info.Status = stateActive
			info.StartTime = time.Now()
		}
		info.Message = message
		info.LastUpdated = time.Now()
	}
}

func (m *Manager) SetProgress(id int, percent int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info := m.job(id); info != nil && !info.Complete {
		info.Percent = max(0, min(percent, 100))
		info.LastUpdated = time.Now()
	}
}

func (m *Manager) Complete(id int, path string) {
	m.mutex.Lock()
	info := m.job(id)
	if info == nil {
		m.mutex.Unlock()
		return
	}
	info.Complete = true
	info.Status = stateSuccess
	info.Message = fmt.Sprintf("Saved %s", path)
	info.LastUpdated = time.Now()
	m.mutex.Unlock()
	m.printFinal(info)
}

func (m *Manager) ReportError(id int, message string) {
	m.mutex.Lock()
	info := m.job(id)
	if info == nil {
		m.mutex.Unlock()
		return
	}
	info.Complete = true
	info.Status = stateError
	info.Error = message
	info.Message = fmt.Sprintf("Failed %s", info.URL)
	info.LastUpdated = time.Now()
	m.errors = append(m.errors, ErrorReport{URL: info.URL, Error: message, Time: info.LastUpdated})
	m.mutex.Unlock()
	m.printFinal(info)
}

// printFinal is the only output in non-interactive mode.
func (m *Manager) printFinal(info *JobOutput) {
	if m.interactive {
		return
	}
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	fmt.Fprintln(m.out, m.renderJob(info)[0])
}

func statusIndicator(status jobState) string {
	switch status {
	case stateSuccess:
		return successStyle.Render(StyleSymbols["pass"])
	case stateError:
		return errorStyle.Render(StyleSymbols["fail"])
	case statePending:
		return pendingStyle.Render(StyleSymbols["pending"])
	default:
		return infoStyle.Render(StyleSymbols["bullet"])
	}
}

func (m *Manager) renderJob(info *JobOutput) []string {
	elapsed := time.Since(info.StartTime).Round(time.Second)
	if info.Complete {
		elapsed = info.LastUpdated.Sub(info.StartTime).Round(time.Second)
	}
	var message string
	switch info.Status {
	case stateSuccess:
		message = successStyle.Render(info.Message)
	case stateError:
		message = errorStyle.Render(info.Message)
	case statePending:
		message = pendingStyle.Render("Waiting...")
	default:
		message = pendingStyle.Render(info.URL)
	}
	lines := []string{fmt.Sprintf("%s%s %s %s", strings.Repeat(" ", 2), statusIndicator(info.Status), debugStyle.Render(elapsed.String()), message)}
	if info.Status != stateActive {
		return lines
	}
	indent := strings.Repeat(" ", 2+4)
	if info.Percent >= 0 {
		lines = append(lines, indent+ProgressBar(info.Percent, m.barWidth))
	}
	for _, line := range wrapText(info.Message, len(indent)) {
		lines = append(lines, indent+streamStyle.Render(line))
	}
	return lines
}

// Render returns the current frame, completed jobs first.
func (m *Manager) Render() []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	var lines []string
	for _, info := range m.jobs {
		lines = append(lines, m.renderJob(info)...)
	}
	available := getTerminalHeight() - 3
	if available > 0 && len(lines) > available {
		lines = lines[len(lines)-available:]
	}
	return lines
}

func (m *Manager) updateDisplay() {
	lines := m.Render()
	if m.numLines > 0 {
		fmt.Fprintf(m.out, "\033[%dA\033[J", m.numLines)
	}
	for _, line := range lines {
		fmt.Fprintln(m.out, line)
	}
	m.numLines = len(lines)
}

func (m *Manager) StartDisplay() {
	if !m.interactive {
		return
	}
	m.displayWg.Add(1)
	go func() {
		defer m.displayWg.Done()
		ticker := time.NewTicker(m.displayTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.updateDisplay()
			case <-m.doneCh:
				m.updateDisplay()
				return
			}
		}
	}()
}

// StopDisplay draws the last frame and prints the summary.
func (m *Manager) StopDisplay() {
	close(m.doneCh)
	m.displayWg.Wait()
	m.ShowSummary()
}

func (m *Manager) Counts() (success, failures int) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	for _, info := range m.jobs {
		switch info.Status {
		case stateSuccess:
			success++
		case stateError:
			failures++
		}
	}
	return success, failures
}

func (m *Manager) ShowSummary() {
	success, failures := m.Counts()
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	total := len(m.jobs)
	fmt.Fprintln(m.out)
	fmt.Fprintln(m.out, strings.Repeat(" ", 2)+success2Style.Render(fmt.Sprintf("Completed %d of %d", success, total)))
	if failures > 0 {
		fmt.Fprintln(m.out, strings.Repeat(" ", 2)+errorStyle.Render(fmt.Sprintf("Failed %d of %d", failures, total)))
	}
	if len(m.errors) > 0 {
		fmt.Fprintln(m.out)
		fmt.Fprintln(m.out, strings.Repeat(" ", 2)+errorStyle.Bold(true).Render("Errors:"))
		for i, report := range m.errors {
			fmt.Fprintf(m.out, "%s%s %s %s\n",
				strings.Repeat(" ", 2+2),
				errorStyle.Render(fmt.Sprintf("%d.", i+1)),
				debugStyle.Render(fmt.Sprintf("[%s]", report.Time.Format("15:04:05"))),
				errorStyle.Render(report.URL))
			fmt.Fprintf(m.out, "%s%s\n", strings.Repeat(" ", 2+4), errorStyle.Render("Error: "+report.Error))
		}
	}
	fmt.Fprintln(m.out)
}
