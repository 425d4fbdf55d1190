package canvascli

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"

	"oss.terrastruct.com/util-go/xhttp"
	"oss.terrastruct.com/util-go/xmain"

	"oss.terrastruct.com/d2canvas/canvascatalog"
	"oss.terrastruct.com/d2canvas/canvasexchange"
	"oss.terrastruct.com/d2canvas/canvasgraph"
	"oss.terrastruct.com/d2canvas/canvaslayouts"
	"oss.terrastruct.com/d2canvas/canvasstore"
	"oss.terrastruct.com/d2canvas/canvassvg"
	"oss.terrastruct.com/d2canvas/lib/xbrowser"
)

// Enabled with the build tag "dev".
// Controls whether the embedded staticFS is used or if files are served directly from the
// file system.
var devMode = false

//go:embed static
var staticFS embed.FS

type watcherOpts struct {
	host      string
	port      string
	inputPath string
	flags     *flags
}

type watcher struct {
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	devMode bool

	ms *xmain.State
	watcherOpts

	reloadCh chan struct{}

	fw               *fsnotify.Watcher
	l                net.Listener
	staticFileServer http.Handler

	// store is nil until the input first imports.
	storeMu sync.Mutex
	store   *canvasstore.Store
	runner  *canvaslayouts.Runner
	// layingOut counts layouts not yet reported to clients. The runner cannot be queried
	// from publish since layout commits run under its lock.
	layingOut atomic.Int32

	wsclientsMu sync.Mutex
	closing     bool
	wsclientsWG sync.WaitGroup
	wsclients   map[*wsclient]struct{}

	errMu sync.Mutex
	err   error

	resMu sync.Mutex
	res   *watchResult
}

type watchResult struct {
	SVG      string                  `json:"svg"`
	Version  uint64                  `json:"version"`
	Warnings []canvascatalog.Warning `json:"warnings,omitempty"`
	Err      string                  `json:"err"`
	// Busy is set while a layout is in flight.
	Busy bool `json:"busy"`
}

func watchCmd(ctx context.Context, ms *xmain.State, f *flags) error {
	ms.Opts = xmain.NewOpts(ms.Env, ms.Opts.Flags.Args()[1:])
	if len(ms.Opts.Args) != 1 {
		return xmain.UsageErrorf("watch must be passed exactly one input file")
	}
	if ms.Opts.Args[0] == "-" {
		return xmain.UsageErrorf("watch cannot read from stdin")
	}

	w, err := newWatcher(ctx, ms, watcherOpts{
		host:      f.host,
		port:      f.port,
		inputPath: ms.AbsPath(ms.Opts.Args[0]),
		flags:     f,
	})
	if err != nil {
		return err
	}
	return w.run()
}

func newWatcher(ctx context.Context, ms *xmain.State, opts watcherOpts) (*watcher, error) {
	ctx, cancel := context.WithCancel(ctx)

	runner := canvaslayouts.NewRunner(opts.flags.cfg.Layout)
	runner.Timeout = opts.flags.timeout

	w := &watcher{
		ctx:     ctx,
		cancel:  cancel,
		devMode: devMode,

		ms:          ms,
		watcherOpts: opts,
		runner:      runner,

		reloadCh:  make(chan struct{}, 1),
		wsclients: make(map[*wsclient]struct{}),
	}
	err := w.init()
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (w *watcher) init() error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fw = fw
	err = w.initStaticFileServer()
	if err != nil {
		return err
	}
	return w.listen()
}

func (w *watcher) initStaticFileServer() error {
	// Serve files directly in dev mode for fast iteration.
	if w.devMode {
		_, file, _, ok := runtime.Caller(0)
		if !ok {
			return errors.New("canvas: runtime failed to provide path of watch.go")
		}

		staticFilesDir := filepath.Join(filepath.Dir(file), "./static")
		w.staticFileServer = http.FileServer(http.Dir(staticFilesDir))
		return nil
	}

	sfs, err := fs.Sub(staticFS, "static")
	if err != nil {
		return err
	}
	w.staticFileServer = http.FileServer(http.FS(sfs))
	return nil
}

func (w *watcher) run() error {
	defer w.close()

	w.goFunc(w.watchLoop)
	w.goFunc(w.reloadLoop)

	err := w.goServe()
	if err != nil {
		return err
	}

	w.wg.Wait()
	w.close()
	return w.err
}

func (w *watcher) close() {
	w.wsclientsMu.Lock()
	if w.closing {
		w.wsclientsMu.Unlock()
		return
	}
	w.closing = true
	w.wsclientsMu.Unlock()

	w.cancel()
	w.runner.Cancel()
	if w.fw != nil {
		err := w.fw.Close()
		w.setErr(err)
	}
	if w.l != nil {
		err := w.l.Close()
		w.setErr(err)
	}

	w.wsclientsWG.Wait()
}

func (w *watcher) setErr(err error) {
	w.errMu.Lock()
	if w.err == nil {
		w.err = err
	}
	w.errMu.Unlock()
}

func (w *watcher) goFunc(fn func(context.Context) error) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer w.cancel()

		err := fn(w.ctx)
		w.setErr(err)
	}()
}

// watchLoop watches the single input file. Editors often replace a file rather than write
// it, so the watch is re-added after every event and the modification time is polled in
// case an event was missed.
func (w *watcher) watchLoop(ctx context.Context) error {
	lastModified, err := w.ensureAddWatch(ctx, w.inputPath)
	if err != nil {
		return err
	}
	w.ms.Log.Info.Printf("loading %v...", w.ms.HumanPath(w.inputPath))
	w.requestReload()

	eatBurstTimer := time.NewTimer(0)
	<-eatBurstTimer.C
	pollTicker := time.NewTicker(time.Second * 10)
	defer pollTicker.Stop()

	for {
		select {
		case <-pollTicker.C:
			mt, err := w.ensureAddWatch(ctx, w.inputPath)
			if err != nil {
				return err
			}
			if !mt.Equal(lastModified) {
				lastModified = mt
				w.requestReload()
			}
		case ev, ok := <-w.fw.Events:
			if !ok {
				return errors.New("fsnotify watcher closed")
			}
			w.ms.Log.Debug.Printf("received file system event %v", ev)
			mt, err := w.ensureAddWatch(ctx, w.inputPath)
			if err != nil {
				return err
			}
			if ev.Op == fsnotify.Chmod && mt.Equal(lastModified) {
				// Benign Chmod.
				continue
			}
			lastModified = mt
			// Wait for a quiet period so a burst of events from one save reloads once and
			// a partially written file is not imported.
			eatBurstTimer.Reset(time.Millisecond * 16)
		case <-eatBurstTimer.C:
			w.ms.Log.Info.Printf("detected change in %s: reloading...", w.ms.HumanPath(w.inputPath))
			w.requestReload()
		case err, ok := <-w.fw.Errors:
			if !ok {
				return errors.New("fsnotify watcher closed")
			}
			w.ms.Log.Error.Printf("fsnotify error: %v", err)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *watcher) requestReload() {
	select {
	case w.reloadCh <- struct{}{}:
	default:
	}
}

func (w *watcher) ensureAddWatch(ctx context.Context, path string) (time.Time, error) {
	interval := time.Millisecond * 16
	tc := time.NewTimer(0)
	<-tc.C
	for {
		mt, err := w.addWatch(path)
		if err == nil {
			return mt, nil
		}
		if interval >= time.Second {
			w.ms.Log.Error.Printf("failed to watch %q: %v (retrying in %v)", w.ms.HumanPath(path), err, interval)
		}

		tc.Reset(interval)
		select {
		case <-tc.C:
			if interval < time.Second {
				interval = time.Second
			}
			if interval < time.Second*16 {
				interval *= 2
			}
		case <-ctx.Done():
			return time.Time{}, ctx.Err()
		}
	}
}

func (w *watcher) addWatch(path string) (time.Time, error) {
	err := w.fw.Add(path)
	if err != nil {
		return time.Time{}, err
	}
	d, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return d.ModTime(), nil
}

func (w *watcher) reloadLoop(ctx context.Context) error {
	firstLoad := true
	for {
		select {
		case <-w.reloadCh:
		case <-ctx.Done():
			return ctx.Err()
		}

		err := w.reload(ctx)
		if err != nil {
			prefix := "re"
			if firstLoad {
				prefix = ""
			}
			err = fmt.Errorf("failed to %sload: %w", prefix, err)
			w.ms.Log.Error.Print(err)
			w.broadcast(&watchResult{Err: err.Error()})
		}

		if firstLoad {
			firstLoad = false
			url := fmt.Sprintf("http://%s", w.l.Addr())
			err = xbrowser.Open(ctx, w.ms.Env, url)
			if err != nil {
				w.ms.Log.Warn.Printf("failed to open browser to %v: %v", url, err)
			}
		}
	}
}

// reload imports the input into the store. The first successful import creates the store,
// later ones replace its graph, and the store subscription broadcasts the result.
func (w *watcher) reload(ctx context.Context) error {
	b, err := os.ReadFile(w.inputPath)
	if err != nil {
		return err
	}
	g, _, err := importBytes(w.ms, w.flags, b)
	if err != nil {
		return err
	}

	w.storeMu.Lock()
	st := w.store
	w.storeMu.Unlock()
	if st != nil {
		// Edits on disk win over a layout still running on the old graph.
		w.runner.Cancel()
		return st.Replace(ctx, g)
	}

	st, err = canvasstore.New(g)
	if err != nil {
		return err
	}
	st.Subscribe(func(ev canvasstore.Event) {
		w.publish(ev.Snapshot)
	})
	w.storeMu.Lock()
	w.store = st
	w.storeMu.Unlock()
	w.publish(st.Snapshot())
	return nil
}

func (w *watcher) getStore() *canvasstore.Store {
	w.storeMu.Lock()
	defer w.storeMu.Unlock()
	return w.store
}

func (w *watcher) publish(snap canvasstore.Snapshot) {
	svg, err := canvassvg.Render(snap.Graph, w.flags.renderOpts())
	if err != nil {
		w.ms.Log.Error.Print(err)
		w.broadcast(&watchResult{Version: snap.Version, Err: err.Error()})
		return
	}
	w.broadcast(&watchResult{
		SVG:      string(svg),
		Version:  snap.Version,
		Warnings: w.flags.catalog.Warnings(snap.Graph),
	})
}

// setBusy rebroadcasts the last result with the layout state changed.
func (w *watcher) setBusy(busy bool) {
	w.resMu.Lock()
	if busy {
		w.layingOut.Add(1)
	} else {
		w.layingOut.Add(-1)
	}
	if w.res == nil {
		w.resMu.Unlock()
		return
	}
	res := *w.res
	res.Busy = w.layingOut.Load() > 0
	w.res = &res
	w.resMu.Unlock()
	w.notifyClients()
}

func (w *watcher) listen() error {
	l, err := net.Listen("tcp", net.JoinHostPort(w.host, w.port))
	if err != nil {
		return err
	}
	w.l = l
	w.ms.Log.Success.Printf("listening on http://%v", w.l.Addr())
	return nil
}

func (w *watcher) router() http.Handler {
	r := chi.NewRouter()
	r.Get("/", w.handleRoot)
	r.Handle("/static/*", http.StripPrefix("/static", w.staticFileServer))
	r.Method(http.MethodGet, "/watch", xhttp.HandlerFuncAdapter{Log: w.ms.Log, Func: w.handleWatch})
	r.Method(http.MethodGet, "/graph.json", xhttp.HandlerFuncAdapter{Log: w.ms.Log, Func: w.handleGraph})
	r.Method(http.MethodPost, "/layout", xhttp.HandlerFuncAdapter{Log: w.ms.Log, Func: w.handleLayout})
	return r
}

func (w *watcher) goServe() error {
	s := xhttp.NewServer(w.ms.Log.Warn, xhttp.Log(w.ms.Log, w.router()))
	w.goFunc(func(ctx context.Context) error {
		return xhttp.Serve(ctx, time.Second*30, s, w.l)
	})

	return nil
}

func (w *watcher) getRes() *watchResult {
	w.resMu.Lock()
	defer w.resMu.Unlock()
	return w.res
}

func (w *watcher) handleRoot(hw http.ResponseWriter, r *http.Request) {
	hw.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(hw, `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
	<title>%s</title>
	<script src="/static/watch.js"></script>
	<link rel="stylesheet" href="/static/watch.css">
</head>
<body data-canvas-dev-mode=%t>
	<div id="canvas-toolbar">
		<button type="button" id="canvas-layout" onclick="layout()">Auto-layout</button>
		<span id="canvas-busy" style="display: none">Laying out...</span>
		<a href="/graph.json" download>Export JSON</a>
	</div>
	<div id="canvas-err" style="display: none"></div>
	<ul id="canvas-warnings"></ul>
	<div id="canvas-svg-container"></div>
</body>
</html>`, filepath.Base(w.inputPath), w.devMode)
}

func (w *watcher) handleGraph(hw http.ResponseWriter, r *http.Request) error {
	st := w.getStore()
	if st == nil {
		return xhttp.Errorf(http.StatusConflict, "diagram not loaded yet", "diagram not loaded yet")
	}
	b, err := canvasexchange.Export(st.Graph(), canvasexchange.ExportOpts{})
	if err != nil {
		return err
	}
	hw.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, err = hw.Write(b)
	return err
}

// handleLayout starts a layout of the current graph and returns immediately. The result
// reaches clients through the store subscription. Only one layout runs at a time.
func (w *watcher) handleLayout(hw http.ResponseWriter, r *http.Request) error {
	st := w.getStore()
	if st == nil {
		return xhttp.Errorf(http.StatusConflict, "diagram not loaded yet", "diagram not loaded yet")
	}
	gen, done, err := w.runner.TryStart(w.ctx, st.Graph(), func(laidOut *canvasgraph.Graph) error {
		return st.ApplyLayout(w.ctx, laidOut)
	})
	if errors.Is(err, canvaslayouts.ErrBusy) {
		return xhttp.Errorf(http.StatusConflict, "layout already in progress", "layout already in progress")
	}
	if err != nil {
		return err
	}
	w.setBusy(true)
	go func() {
		res := <-done
		if res.Err != nil && !errors.Is(res.Err, canvaslayouts.ErrStale) && !errors.Is(res.Err, context.Canceled) {
			w.ms.Log.Error.Printf("failed to layout: %v", res.Err)
			w.layingOut.Add(-1)
			w.broadcast(&watchResult{Err: fmt.Sprintf("failed to layout: %v", res.Err)})
			return
		}
		w.setBusy(false)
	}()
	xhttp.JSON(w.ms.Log, hw, http.StatusAccepted, map[string]interface{}{
		"generation": gen,
	})
	return nil
}

func (w *watcher) handleWatch(hw http.ResponseWriter, r *http.Request) error {
	w.wsclientsMu.Lock()
	if w.closing {
		w.wsclientsMu.Unlock()
		return xhttp.Errorf(http.StatusServiceUnavailable, "server shutting down...", "server shutting down...")
	}
	// Register before upgrading so close waits for this client.
	w.wsclientsWG.Add(1)
	w.wsclientsMu.Unlock()

	c, err := websocket.Accept(hw, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		w.wsclientsWG.Done()
		return err
	}

	go func() {
		defer w.wsclientsWG.Done()
		defer c.Close(websocket.StatusInternalError, "the sky is falling")

		ctx, cancel := context.WithTimeout(w.ctx, time.Hour)
		defer cancel()

		cl := &wsclient{
			w:         w,
			resultsCh: make(chan struct{}, 1),
			c:         c,
		}

		w.wsclientsMu.Lock()
		w.wsclients[cl] = struct{}{}
		w.wsclientsMu.Unlock()
		defer func() {
			w.wsclientsMu.Lock()
			delete(w.wsclients, cl)
			w.wsclientsMu.Unlock()
		}()

		ctx = cl.c.CloseRead(ctx)
		go wsHeartbeat(ctx, cl.c)
		_ = cl.writeLoop(ctx)
	}()
	return nil
}

type wsclient struct {
	w         *watcher
	resultsCh chan struct{}
	c         *websocket.Conn
}

func (cl *wsclient) writeLoop(ctx context.Context) error {
	for {
		res := cl.w.getRes()
		if res != nil {
			err := cl.write(ctx, res)
			if err != nil {
				return err
			}
		}

		select {
		case <-cl.resultsCh:
		case <-ctx.Done():
			cl.c.Close(websocket.StatusGoingAway, "server shutting down...")
			return ctx.Err()
		}
	}
}

func (cl *wsclient) write(ctx context.Context, res *watchResult) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*30)
	defer cancel()

	return wsjson.Write(ctx, cl.c, res)
}

func (w *watcher) broadcast(res *watchResult) {
	w.resMu.Lock()
	res.Busy = w.layingOut.Load() > 0
	w.res = res
	w.resMu.Unlock()
	w.notifyClients()
}

func (w *watcher) notifyClients() {
	w.wsclientsMu.Lock()
	defer w.wsclientsMu.Unlock()
	clientsSuffix := ""
	if len(w.wsclients) != 1 {
		clientsSuffix = "s"
	}
	w.ms.Log.Info.Printf("broadcasting update to %d client%s", len(w.wsclients), clientsSuffix)
	for cl := range w.wsclients {
		select {
		case cl.resultsCh <- struct{}{}:
		default:
		}
	}
}

func wsHeartbeat(ctx context.Context, c *websocket.Conn) {
	defer c.Close(websocket.StatusInternalError, "the sky is falling")

	t := time.NewTimer(0)
	<-t.C
	for {
		err := c.Ping(ctx)
		if err != nil {
			return
		}

		t.Reset(time.Second * 30)
		select {
		case <-t.C:
		case <-ctx.Done():
			return
		}
	}
}
