package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"k8s.io/klog/v2"

	"github.com/journal/mediadeck/internal/client"
	"github.com/journal/mediadeck/internal/config"
	"github.com/journal/mediadeck/internal/gesture"
	"github.com/journal/mediadeck/internal/media"
	"github.com/journal/mediadeck/internal/playback"
	"github.com/journal/mediadeck/internal/theme"
	"github.com/journal/mediadeck/internal/viewer"
	"github.com/journal/mediadeck/internal/views/debug"
	"github.com/journal/mediadeck/internal/views/eventinfo"
	"github.com/journal/mediadeck/internal/views/imageview"
	"github.com/journal/mediadeck/internal/views/status"
	"github.com/journal/mediadeck/internal/views/transport"
)

const seekStep = 10.0 // seconds

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayDebug
)

// Options wires the model to its collaborators. Source, Coordinator and
// Loader are required; the rest are optional.
type Options struct {
	EventID     string
	Source      media.Source
	Coordinator *playback.Coordinator
	Loader      viewer.Loader
	Config      *config.Config

	// WS delivers live event updates.
	WS *client.WSClient
	// Changes signals that the event's media changed on disk.
	Changes <-chan struct{}
	// ConfigUpdates delivers reloaded configuration.
	ConfigUpdates <-chan *config.Config
}

type (
	eventLoadedMsg struct {
		event *media.Event
		err   error
	}
	playbackStateMsg struct {
		state playback.PlaybackState
		ok    bool
	}
	playResultMsg struct {
		id  string
		err error
	}
	imageMeasuredMsg struct {
		id   string
		size gesture.Size
		err  error
	}
	imageLoadedMsg struct {
		id  string
		img image.Image
		err error
	}
	frameMsg        time.Time
	dirChangedMsg   struct{}
	configMsg       struct{ cfg *config.Config }
	stopFinishedMsg struct{}
)

// Model is the root Bubble Tea model.
type Model struct {
	eventID string
	source  media.Source
	coord   *playback.Coordinator
	loader  viewer.Loader
	ws      *client.WSClient
	changes <-chan struct{}
	cfgCh   <-chan *config.Config
	cfg     *config.Config
	ctx     context.Context
	cancel  context.CancelFunc

	keys   KeyMap
	width  int
	height int

	// Event state.
	event   *media.Event
	items   [3][]media.Descriptor // by media.Tab
	deleted bool
	loadErr error

	// Navigation.
	tab      media.Tab
	selected [3]int
	overlay  Overlay

	viewer    *viewer.Viewer
	animating bool
	dragging  bool
	dragX     int
	dragY     int

	state    playback.PlaybackState
	stateSub <-chan playback.PlaybackState

	// Sub-views.
	statusBar status.Model
	info      eventinfo.Model
	image     imageview.Model
	transport transport.Model
	debug     debug.Model
}

// New creates the root model.
func New(opts Options) Model {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	m := Model{
		eventID:   opts.EventID,
		source:    opts.Source,
		coord:     opts.Coordinator,
		loader:    opts.Loader,
		ws:        opts.WS,
		changes:   opts.Changes,
		cfgCh:     opts.ConfigUpdates,
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
		keys:      DefaultKeyMap(),
		viewer:    viewer.New(nil, viewer.Options{Spring: springConfig(cfg.Viewer)}),
		statusBar: status.New(),
		info:      eventinfo.New(),
		image:     imageview.New(),
		transport: transport.New(),
		debug:     debug.New(),
	}
	m.stateSub = m.coord.Subscribe()
	m.statusBar.Title = opts.EventID
	m.statusBar.Live = opts.WS != nil || opts.Changes != nil
	m.statusBar.Connected = opts.WS == nil && opts.Changes != nil
	return m
}

func springConfig(v config.ViewerConfig) gesture.SpringConfig {
	return gesture.SpringConfig{FPS: v.FPS, Frequency: v.SpringFrequency, Damping: v.SpringDamping}
}

// Init loads the event and starts listening for playback and live updates.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.loadEvent(), waitState(m.stateSub)}
	if m.ws != nil {
		cmds = append(cmds, m.ws.Listen(m.ctx))
	}
	if m.changes != nil {
		cmds = append(cmds, waitChanges(m.changes))
	}
	if m.cfgCh != nil {
		cmds = append(cmds, waitConfig(m.cfgCh))
	}
	return tea.Batch(cmds...)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.transport.Width = msg.Width
		m.info.SetWidth(msg.Width)
		vp := imageview.ViewportSize(m.width, m.viewerRows())
		m.viewer.SetViewport(vp.Width, vp.Height)
		m.relayout()
		return m, nil

	case tea.BlurMsg:
		// Playback must stop before the app loses the terminal.
		m.coord.OnFocusLost(m.ctx)
		m.debug.Add(debug.KindPlay, "focus lost, playback stopped")
		return m, nil

	case tea.FocusMsg:
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case eventLoadedMsg:
		if msg.err != nil {
			m.loadErr = msg.err
			m.debug.Addf(debug.KindErr, "load event: %v", msg.err)
			return m, nil
		}
		m.loadErr = nil
		m.setEvent(msg.event)
		return m, m.syncImage()

	case playbackStateMsg:
		if !msg.ok {
			return m, nil
		}
		m.applyState(msg.state)
		return m, waitState(m.stateSub)

	case playResultMsg:
		if msg.err != nil && !errors.Is(msg.err, playback.ErrClosed) {
			m.debug.Addf(debug.KindErr, "%v", msg.err)
		}
		return m, nil

	case stopFinishedMsg:
		return m, nil

	case imageMeasuredMsg:
		if msg.err != nil {
			m.debug.Addf(debug.KindErr, "measure %s: %v", msg.id, msg.err)
			return m, nil
		}
		m.viewer.SetNaturalSize(msg.id, msg.size)
		m.relayout()
		return m, nil

	case imageLoadedMsg:
		if cur, ok := m.viewer.Current(); !ok || cur.ID != msg.id {
			return m, nil
		}
		if msg.err != nil {
			m.image.SetError(msg.id, msg.err)
			m.debug.Addf(debug.KindErr, "decode %s: %v", msg.id, msg.err)
			return m, nil
		}
		if _, ok := m.viewer.NaturalSize(msg.id); !ok {
			b := msg.img.Bounds()
			m.viewer.SetNaturalSize(msg.id, gesture.Size{Width: float64(b.Dx()), Height: float64(b.Dy())})
		}
		m.image.SetImage(msg.id, msg.img)
		m.relayout()
		return m, nil

	case frameMsg:
		if m.viewer.Step() {
			return m, m.frame()
		}
		m.animating = false
		return m, nil

	case dirChangedMsg:
		m.debug.Add(debug.KindWS, "event directory changed")
		return m, tea.Batch(m.loadEvent(), waitChanges(m.changes))

	case configMsg:
		m.cfg = msg.cfg
		m.debug.Add(debug.KindCfg, "configuration reloaded")
		return m, waitConfig(m.cfgCh)

	case client.WSConnectedMsg:
		m.statusBar.Connected = true
		m.debug.Add(debug.KindWS, "connected")
		// Anything may have changed while we were away.
		return m, tea.Batch(m.ws.ReadLoop(m.ctx), m.loadEvent())

	case client.WSDisconnectedMsg:
		m.statusBar.Connected = false
		m.debug.Addf(debug.KindWS, "disconnected: %v", msg.Err)
		return m, m.ws.Listen(m.ctx)

	case client.WSEventUpdatedMsg:
		m.debug.Addf(debug.KindWS, "event %s updated", msg.Payload.EventID)
		return m, tea.Batch(m.ws.ReadLoop(m.ctx), m.loadEvent())

	case client.WSEventDeletedMsg:
		m.debug.Addf(debug.KindWS, "event %s deleted", msg.Payload.EventID)
		m.deleted = true
		m.setEvent(&media.Event{ID: m.eventID})
		return m, tea.Batch(m.ws.ReadLoop(m.ctx), m.stopAll())

	case client.WSErrorMsg:
		m.debug.Addf(debug.KindErr, "server: %s", string(msg.Raw))
		return m, m.ws.ReadLoop(m.ctx)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m.quit()
	}

	if m.overlay == OverlayDebug {
		switch {
		case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Debug):
			m.overlay = OverlayNone
		case key.Matches(msg, m.keys.Up):
			m.debug.ScrollUp(1)
		case key.Matches(msg, m.keys.Down):
			m.debug.ScrollDown(1)
		}
		return m, nil
	}

	if m.viewer.IsOpen() {
		return m.handleViewerKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Down):
		if n := len(m.items[m.tab]); n > 0 {
			m.selected[m.tab] = (m.selected[m.tab] + 1) % n
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if n := len(m.items[m.tab]); n > 0 {
			m.selected[m.tab] = (m.selected[m.tab] - 1 + n) % n
		}
		return m, nil

	case key.Matches(msg, m.keys.Tab):
		m.setTab(m.tab.Next())
		return m, nil

	case key.Matches(msg, m.keys.Images):
		m.setTab(media.TabImages)
		return m, nil

	case key.Matches(msg, m.keys.Videos):
		m.setTab(media.TabVideos)
		return m, nil

	case key.Matches(msg, m.keys.Audio):
		m.setTab(media.TabAudio)
		return m, nil

	case key.Matches(msg, m.keys.Enter), key.Matches(msg, m.keys.Toggle):
		d, ok := m.selection()
		if !ok {
			return m, nil
		}
		if m.tab == media.TabImages {
			m.viewer.Open(m.selected[media.TabImages])
			m.debug.Addf(debug.KindNav, "open %s", d.Name())
			return m, m.syncImage()
		}
		return m, m.toggle(d)

	case key.Matches(msg, m.keys.SeekBack):
		return m, m.seekBy(-seekStep)

	case key.Matches(msg, m.keys.SeekFwd):
		return m, m.seekBy(seekStep)

	case key.Matches(msg, m.keys.Stop):
		return m, m.stopAll()

	case key.Matches(msg, m.keys.Reload):
		return m, m.loadEvent()

	case key.Matches(msg, m.keys.Debug):
		m.overlay = OverlayDebug
		return m, nil
	}

	return m, nil
}

func (m Model) handleViewerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	vp := m.viewer.Viewport()
	panX := m.cfg.Viewer.PanStep * vp.Width
	panY := m.cfg.Viewer.PanStep * vp.Height

	switch {
	case key.Matches(msg, m.keys.Escape):
		m.selected[media.TabImages] = m.viewer.Index()
		m.viewer.Close()
		m.animating = false
		if m.image.Err != nil {
			// Retry on the next open.
			m.image = imageview.New()
		}
		return m, nil

	case key.Matches(msg, m.keys.ZoomIn):
		m.viewer.ZoomBy(m.cfg.Viewer.ZoomStep)
	case key.Matches(msg, m.keys.ZoomOut):
		m.viewer.ZoomBy(1 / m.cfg.Viewer.ZoomStep)

	// Panning right reveals the right side, so the image moves left.
	case key.Matches(msg, m.keys.PanLeft):
		m.viewer.PanBy(gesture.Vec2{X: panX})
	case key.Matches(msg, m.keys.PanRight):
		m.viewer.PanBy(gesture.Vec2{X: -panX})
	case key.Matches(msg, m.keys.PanUp):
		m.viewer.PanBy(gesture.Vec2{Y: panY})
	case key.Matches(msg, m.keys.PanDown):
		m.viewer.PanBy(gesture.Vec2{Y: -panY})

	case key.Matches(msg, m.keys.Fit):
		m.viewer.Fit()
		return m, m.startAnimation()

	case key.Matches(msg, m.keys.NextImage):
		if m.viewer.Next() {
			return m, m.syncImage()
		}
	case key.Matches(msg, m.keys.PrevImage):
		if m.viewer.Previous() {
			return m, m.syncImage()
		}

	case key.Matches(msg, m.keys.Debug):
		m.overlay = OverlayDebug
	}
	return m, nil
}

// handleMouse maps the wheel to pinch steps and a left drag to a pan.
func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if !m.viewer.IsOpen() || m.overlay != OverlayNone {
		return m, nil
	}
	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		m.viewer.ZoomBy(m.cfg.Viewer.ZoomStep)
	case msg.Button == tea.MouseButtonWheelDown:
		m.viewer.ZoomBy(1 / m.cfg.Viewer.ZoomStep)
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		m.dragging = true
		m.dragX, m.dragY = msg.X, msg.Y
		m.viewer.BeginPan()
	case msg.Action == tea.MouseActionMotion && m.dragging:
		// Cells are twice as tall as they are wide.
		m.viewer.UpdatePan(gesture.Vec2{
			X: float64(msg.X - m.dragX),
			Y: 2 * float64(msg.Y-m.dragY),
		})
	case msg.Action == tea.MouseActionRelease && m.dragging:
		m.dragging = false
		m.viewer.EndPan()
	}
	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.coord.OnUnmount(m.ctx)
	if m.ws != nil {
		m.ws.Close()
	}
	m.cancel()
	return m, tea.Quit
}

// setTab switches the content tab. Playback stops synchronously so no stale
// resource keeps playing behind the new tab.
func (m *Model) setTab(t media.Tab) {
	if t == m.tab {
		return
	}
	m.tab = t
	m.statusBar.Tab = t
	m.coord.OnTabChanged(m.ctx, t)
	m.debug.Addf(debug.KindNav, "tab %s", t)
}

func (m *Model) setEvent(ev *media.Event) {
	if ev == nil {
		ev = &media.Event{ID: m.eventID}
	}
	m.event = ev
	m.info.SetEvent(ev)
	for _, t := range media.Tabs {
		m.items[t] = media.Filter(ev.Media, t.Kind())
		if n := len(m.items[t]); m.selected[t] >= n {
			m.selected[t] = max(n-1, 0)
		}
	}
	m.statusBar.SetCounts(len(m.items[media.TabImages]), len(m.items[media.TabVideos]), len(m.items[media.TabAudio]))
	if ev.Title != "" {
		m.statusBar.Title = ev.Title
	}
	m.viewer.SetItems(ev.Media)
	m.transport.Name = m.displayName(m.transportID())
}

func (m *Model) applyState(st playback.PlaybackState) {
	prev := m.state
	m.state = st
	m.transport.State = st
	m.transport.Name = m.displayName(m.transportID())
	switch {
	case st.ErrorID != "" && st.ErrorID != prev.ErrorID:
		m.debug.Addf(debug.KindErr, "%s: %s", m.displayName(st.ErrorID), st.Error)
	case st.ActiveID != prev.ActiveID && st.ActiveID != "":
		m.debug.Addf(debug.KindPlay, "playing %s", m.displayName(st.ActiveID))
	case st.ActiveID == "" && prev.ActiveID != "":
		m.debug.Addf(debug.KindPlay, "stopped %s", m.displayName(prev.ActiveID))
	case st.Completed() && !prev.Completed():
		m.debug.Addf(debug.KindPlay, "finished %s", m.displayName(st.ActiveID))
	}
}

func (m Model) transportID() string {
	if m.state.PendingID != "" {
		return m.state.PendingID
	}
	return m.state.ActiveID
}

func (m Model) displayName(id string) string {
	if id == "" || m.event == nil {
		return id
	}
	for _, d := range m.event.Media {
		if d.ID == id {
			return d.Name()
		}
	}
	return id
}

func (m Model) selection() (media.Descriptor, bool) {
	items := m.items[m.tab]
	i := m.selected[m.tab]
	if i < 0 || i >= len(items) {
		return media.Descriptor{}, false
	}
	return items[i], true
}

func (m *Model) relayout() {
	m.image.Layout(m.viewer.LayoutSize())
}

func (m Model) viewerRows() int {
	return max(m.height-2, 1)
}

// syncImage starts fetching the viewer's current image unless it is
// already shown.
func (m *Model) syncImage() tea.Cmd {
	cur, ok := m.viewer.Current()
	if !ok || cur.ID == m.image.ID {
		return nil
	}
	m.image.SetLoading(cur.ID)
	m.relayout()
	var cmds []tea.Cmd
	if _, known := m.viewer.NaturalSize(cur.ID); !known {
		cmds = append(cmds, m.measure(cur))
	}
	cmds = append(cmds, m.decode(cur))
	return tea.Batch(cmds...)
}

func (m *Model) startAnimation() tea.Cmd {
	if m.animating || !m.viewer.Animating() {
		return nil
	}
	m.animating = true
	return m.frame()
}

func (m Model) frame() tea.Cmd {
	fps := m.cfg.Viewer.FPS
	if fps <= 0 {
		fps = 60
	}
	return tea.Tick(time.Second/time.Duration(fps), func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

// Commands.

func (m Model) loadEvent() tea.Cmd {
	src, ctx, id := m.source, m.ctx, m.eventID
	return func() tea.Msg {
		ev, err := src.EventMedia(ctx, id)
		return eventLoadedMsg{event: ev, err: err}
	}
}

// toggle captures the coordinator generation now, so a tab change or focus
// loss handled before the command runs cancels the request.
func (m Model) toggle(d media.Descriptor) tea.Cmd {
	coord, ctx := m.coord, m.ctx
	item := playback.ItemFrom(d)
	gen := coord.Generation()
	return func() tea.Msg {
		return playResultMsg{id: item.ID, err: coord.ToggleAt(ctx, item, gen)}
	}
}

func (m Model) seekBy(delta float64) tea.Cmd {
	if m.state.ActiveID == "" {
		return nil
	}
	coord, ctx := m.coord, m.ctx
	return func() tea.Msg {
		if err := coord.SeekBy(ctx, delta); err != nil {
			klog.V(1).Infof("seek: %v", err)
		}
		return nil
	}
}

func (m Model) stopAll() tea.Cmd {
	coord, ctx := m.coord, m.ctx
	return func() tea.Msg {
		coord.StopAll(ctx)
		return stopFinishedMsg{}
	}
}

func (m Model) measure(d media.Descriptor) tea.Cmd {
	l, ctx := m.loader, m.ctx
	return func() tea.Msg {
		size, err := viewer.MeasureURI(ctx, l, d.URI)
		return imageMeasuredMsg{id: d.ID, size: size, err: err}
	}
}

func (m Model) decode(d media.Descriptor) tea.Cmd {
	l, ctx := m.loader, m.ctx
	return func() tea.Msg {
		img, err := viewer.DecodeURI(ctx, l, d.URI)
		return imageLoadedMsg{id: d.ID, img: img, err: err}
	}
}

func waitState(ch <-chan playback.PlaybackState) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-ch
		return playbackStateMsg{state: st, ok: ok}
	}
}

func waitChanges(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return dirChangedMsg{}
	}
}

func waitConfig(ch <-chan *config.Config) tea.Cmd {
	return func() tea.Msg {
		cfg, ok := <-ch
		if !ok {
			return nil
		}
		return configMsg{cfg: cfg}
	}
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	if m.overlay == OverlayDebug {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			m.debug.View(min(m.width, 100), m.height))
	}

	if m.viewer.IsOpen() {
		return m.renderViewer()
	}

	header := lipgloss.JoinVertical(lipgloss.Left, m.statusBar.View(), m.renderInfo())
	footer := lipgloss.JoinVertical(lipgloss.Left,
		m.transport.View(),
		theme.StyleDimmed.Render("  j/k:select  enter:open/play  space:pause  [/]:seek  s:stop  tab:switch  d:log  q:quit"),
	)
	rows := max(m.height-lipgloss.Height(header)-lipgloss.Height(footer), 1)
	return lipgloss.JoinVertical(lipgloss.Left, header, m.renderList(rows), footer)
}

func (m Model) renderInfo() string {
	switch {
	case m.deleted:
		return theme.StyleError.Render("  This event was deleted.")
	case m.loadErr != nil && m.event == nil:
		return theme.StyleError.Render(fmt.Sprintf("  Could not load event: %v", m.loadErr))
	}
	return m.info.View(3)
}

func (m Model) renderViewer() string {
	cur, _ := m.viewer.Current()
	tr := m.viewer.Transform()
	title := fmt.Sprintf("%s %s  %d/%d  %.0f%%",
		theme.KindGlyph("image"), cur.Name(), m.viewer.Index()+1, m.viewer.Len(), tr.Scale*100)
	if size, ok := m.viewer.NaturalSize(cur.ID); ok {
		title += fmt.Sprintf("  %.0f×%.0f", size.Width, size.Height)
	}
	img := m.image.View(m.width, m.viewerRows(), m.viewer.LayoutSize(), tr)
	help := theme.StyleDimmed.Render("  +/-:zoom  h/j/k/l:pan  0:fit  n/p:page  esc:close")
	return lipgloss.JoinVertical(lipgloss.Left, theme.StyleHeader.Render(title), img, help)
}
