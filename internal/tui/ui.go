// Package tui renders the live-refreshing snapshot view.
package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/leakwatch/leakwatch/internal/model"
	"github.com/leakwatch/leakwatch/internal/snapshot"
)

const (
	portsTitle = "Ports"
	treeTitle  = "Process tree"
)

// UI coordinates the interactive snapshot view backed by tview. Snapshots
// are taken on a fixed interval; editing the discovered project config
// triggers an immediate refresh so a changed port list shows up without
// waiting out the ticker.
type UI struct {
	app    *tview.Application
	table  *tview.Table
	tree   *tview.TextView
	header *tview.TextView

	engine   *snapshot.Engine
	ports    []int
	interval time.Duration

	configPath string
	refreshCh  chan struct{}

	mu   sync.Mutex
	last model.Snapshot

	stopOnce sync.Once
	done     chan struct{}
}

// New constructs a UI bound to a snapshot engine. ports may be nil to use
// the configured/inferred set. configPath, when non-empty, is watched for
// changes.
func New(engine *snapshot.Engine, ports []int, interval time.Duration, configPath string) *UI {
	if interval <= 0 {
		interval = time.Second
	}

	app := tview.NewApplication()
	table := tview.NewTable().SetFixed(1, 0)
	table.SetBorder(true).SetTitle(portsTitle)

	tree := tview.NewTextView().SetDynamicColors(true).SetWrap(false)
	tree.SetBorder(true).SetTitle(treeTitle)

	header := tview.NewTextView().SetDynamicColors(true)

	u := &UI{
		app:        app,
		table:      table,
		tree:       tree,
		header:     header,
		engine:     engine,
		ports:      ports,
		interval:   interval,
		configPath: configPath,
		refreshCh:  make(chan struct{}, 1),
		done:       make(chan struct{}),
	}

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(header, 1, 0, false).
		AddItem(table, 0, 1, true).
		AddItem(tree, 0, 2, false)

	app.SetRoot(layout, true)
	app.SetInputCapture(u.handleKey)
	return u
}

// Run drives the view until the context is cancelled or the user quits.
func (u *UI) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go u.refreshLoop(ctx)
	if u.configPath != "" {
		go u.watchConfig(ctx)
	}
	go func() {
		select {
		case <-ctx.Done():
		case <-u.done:
		}
		u.app.Stop()
	}()

	defer u.Stop()
	return u.app.Run()
}

// Stop terminates the view. Safe to call more than once.
func (u *UI) Stop() {
	u.stopOnce.Do(func() { close(u.done) })
}

func (u *UI) handleKey(event *tcell.EventKey) *tcell.EventKey {
	switch {
	case event.Key() == tcell.KeyCtrlC, event.Rune() == 'q':
		u.Stop()
		return nil
	case event.Rune() == 'r':
		u.requestRefresh()
		return nil
	}
	return event
}

func (u *UI) requestRefresh() {
	select {
	case u.refreshCh <- struct{}{}:
	default:
	}
}

func (u *UI) refreshLoop(ctx context.Context) {
	u.refresh(ctx)
	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-u.done:
			return
		case <-ticker.C:
		case <-u.refreshCh:
		}
		u.refresh(ctx)
	}
}

// watchConfig re-resolves the monitored ports when the discovered project
// configuration changes on disk. Editors replace files rather than writing
// in place, so Create events count as changes too.
func (u *UI) watchConfig(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return
	}
	defer watcher.Close()
	if err := watcher.Add(u.configPath); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-u.done:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				u.requestRefresh()
			}
		case _, ok := <-watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (u *UI) refresh(ctx context.Context) {
	snap := u.engine.Create(ctx, u.ports)

	u.mu.Lock()
	u.last = snap
	u.mu.Unlock()

	u.app.QueueUpdateDraw(func() {
		u.renderHeader(snap)
		u.renderPorts(snap)
		u.renderTree(snap)
	})
}

func (u *UI) renderHeader(snap model.Snapshot) {
	u.header.SetText(fmt.Sprintf(
		" [::b]leakwatch[-:-:-]  %s  platform=%s  tree rss=%s  procs=%d",
		snap.Timestamp.Format("15:04:05"),
		snap.Platform,
		formatBytes(snap.Memory.ProcessRSS),
		len(snap.Processes),
	))
}

func (u *UI) renderPorts(snap model.Snapshot) {
	u.table.Clear()
	for col, title := range []string{"PORT", "STATE", "PID", "COMMAND"} {
		u.table.SetCell(0, col, tview.NewTableCell(title).
			SetTextColor(tcell.ColorYellow).
			SetSelectable(false))
	}

	ports := make([]int, 0, len(snap.Ports))
	for port := range snap.Ports {
		ports = append(ports, port)
	}
	sort.Ints(ports)

	for row, port := range ports {
		info := snap.Ports[port]
		color := tcell.ColorGreen
		if info.Listening() {
			color = tcell.ColorRed
		}
		pid := "-"
		if info.PID > 0 {
			pid = fmt.Sprintf("%d", info.PID)
		}
		command := info.Command
		if command == "" {
			command = "-"
		}
		u.table.SetCell(row+1, 0, tview.NewTableCell(fmt.Sprintf("%d", port)))
		u.table.SetCell(row+1, 1, tview.NewTableCell(string(info.State)).SetTextColor(color))
		u.table.SetCell(row+1, 2, tview.NewTableCell(pid))
		u.table.SetCell(row+1, 3, tview.NewTableCell(command))
	}
}

func (u *UI) renderTree(snap model.Snapshot) {
	var b strings.Builder
	roots := make(map[int]struct{})
	for _, info := range snap.Ports {
		if info.Listening() && info.PID > 0 {
			roots[info.PID] = struct{}{}
		}
	}
	byPID := make(map[int]model.ProcessInfo, len(snap.Processes))
	for _, proc := range snap.Processes {
		byPID[proc.PID] = proc
	}

	rootPIDs := make([]int, 0, len(roots))
	for pid := range roots {
		rootPIDs = append(rootPIDs, pid)
	}
	sort.Ints(rootPIDs)
	for _, pid := range rootPIDs {
		writeTreeNode(&b, byPID, pid, 0)
	}
	if b.Len() == 0 {
		b.WriteString("no listeners on monitored ports\n")
	}
	u.tree.SetText(b.String())
}

func writeTreeNode(b *strings.Builder, byPID map[int]model.ProcessInfo, pid, depth int) {
	proc, ok := byPID[pid]
	if !ok {
		return
	}
	fmt.Fprintf(b, "%s[yellow]%d[-] %s (%s)\n",
		strings.Repeat("  ", depth), proc.PID, proc.Command, formatBytes(proc.RSS))
	for _, child := range proc.Children {
		writeTreeNode(b, byPID, child, depth+1)
	}
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GiB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
