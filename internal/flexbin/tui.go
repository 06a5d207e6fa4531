package flexbin

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

type logInfo struct {
	path    string
	content string
}

// runLogViewer opens a scrollable viewer over the preserved build logs.
// Left/Right switch between logs, d deletes the selected one, q quits.
// Returns an exit code for main.
func runLogViewer() int {
	logs := readAllBuildLogs()
	if len(logs) == 0 {
		cPrintln(colWarn, "No build logs found in", LogsDir)
		return 0
	}
	activeIdx := len(logs) - 1 // most recent first on screen

	app := tview.NewApplication()

	headerBox := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false).
		SetTextAlign(tview.AlignLeft)
	headerBox.SetBorder(true)
	headerBox.SetTitle("flexbin Build Log Viewer")

	logView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false).
		SetScrollable(true)
	logView.SetBorder(true)

	footerBox := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(true).
		SetTextAlign(tview.AlignLeft)
	footerBox.SetBorder(true)
	footerBox.SetText("[yellow]←/→[white] switch log  [yellow]↑/↓/PgUp/PgDn[white] scroll  [yellow]d[white] delete log  [yellow]q[white] quit")

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(headerBox, 3, 0, false).
		AddItem(logView, 0, 1, true).
		AddItem(footerBox, 3, 0, false)

	show := func() {
		if len(logs) == 0 {
			app.Stop()
			return
		}
		if activeIdx >= len(logs) {
			activeIdx = len(logs) - 1
		}
		l := logs[activeIdx]
		headerBox.SetText(fmt.Sprintf("[yellow]%s[white]  (%d/%d)", filepath.Base(l.path), activeIdx+1, len(logs)))
		logView.SetText(tview.TranslateANSI(l.content))
		logView.ScrollToEnd()
	}

	flex.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlQ, tcell.KeyEsc:
			app.Stop()
			return nil
		case tcell.KeyLeft:
			activeIdx--
			if activeIdx < 0 {
				activeIdx = len(logs) - 1
			}
			show()
			return nil
		case tcell.KeyRight:
			activeIdx++
			if activeIdx >= len(logs) {
				activeIdx = 0
			}
			show()
			return nil
		case tcell.KeyHome:
			logView.ScrollToBeginning()
			return nil
		case tcell.KeyEnd:
			logView.ScrollToEnd()
			return nil
		case tcell.KeyPgUp:
			row, _ := logView.GetScrollOffset()
			if row > 10 {
				logView.ScrollTo(row-10, 0)
			} else {
				logView.ScrollToBeginning()
			}
			return nil
		case tcell.KeyPgDn:
			row, _ := logView.GetScrollOffset()
			logView.ScrollTo(row+10, 0)
			return nil
		case tcell.KeyRune:
			switch event.Rune() {
			case 'q':
				app.Stop()
				return nil
			case 'd':
				if activeIdx < len(logs) {
					_ = os.Remove(logs[activeIdx].path)
					logs = append(logs[:activeIdx], logs[activeIdx+1:]...)
					show()
				}
				return nil
			}
		}
		return event
	})

	show()
	if err := app.SetRoot(flex, true).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "log viewer failed: %v\n", err)
		return 1
	}
	return 0
}

// readAllBuildLogs loads every preserved log under LogsDir, oldest first.
func readAllBuildLogs() []logInfo {
	matches, err := filepath.Glob(filepath.Join(LogsDir, "*.log"))
	if err != nil {
		return nil
	}
	sort.Strings(matches)

	var logs []logInfo
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			debugf("Skipping unreadable log %s: %v\n", path, err)
			continue
		}
		logs = append(logs, logInfo{path: path, content: string(data)})
	}
	return logs
}
