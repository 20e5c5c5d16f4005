// Package monitoring turns a running game session into an HTTP server that
// allows external tools to save, load, pause, resume and inspect it.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/xid"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/savestate/control"
	"github.com/sarchlab/savestate/hooking"
	"github.com/sarchlab/savestate/monitoring/web"
	"github.com/sarchlab/savestate/persistence"
	"github.com/sarchlab/savestate/timing"
)

// A Stepper advances the game by a number of frames.
type Stepper interface {
	Step(frames int)
	Frames() uint64
}

// Monitor can turn a game session into a server and allows external
// monitoring and controlling of the session. Every API request runs while
// holding one lock, so the session only ever sees one caller at a time.
type Monitor struct {
	lock sync.Mutex

	manager    *persistence.Manager
	controller *control.Controller
	clock      *timing.GameClock
	playTime   *timing.PlayTimeCounter
	stepper    Stepper
	signals    *hooking.SignalCounter
	metrics    *Metrics
	components []hooking.Named

	logger      *slog.Logger
	portNumber  int
	openBrowser bool
	server      *http.Server
	addr        net.Addr

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor. A nil logger uses the default logger.
func NewMonitor(logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Monitor{logger: logger}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		m.logger.Warn("port not allowed for the monitoring server, "+
			"using a random port instead", "port", portNumber)

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser makes StartServer open the control page in a browser.
func (m *Monitor) WithBrowser() *Monitor {
	m.openBrowser = true
	return m
}

// RegisterManager registers the save manager.
func (m *Monitor) RegisterManager(manager *persistence.Manager) {
	m.manager = manager
}

// RegisterController registers the pause controller.
func (m *Monitor) RegisterController(c *control.Controller) {
	m.controller = c
}

// RegisterClock registers the game clock.
func (m *Monitor) RegisterClock(c *timing.GameClock) {
	m.clock = c
}

// RegisterPlayTime registers the play-time counter.
func (m *Monitor) RegisterPlayTime(p *timing.PlayTimeCounter) {
	m.playTime = p
}

// RegisterStepper registers what advances the game on /api/tick.
func (m *Monitor) RegisterStepper(s Stepper) {
	m.stepper = s
}

// RegisterSignalCounter registers the counter reported by /api/signals.
func (m *Monitor) RegisterSignalCounter(c *hooking.SignalCounter) {
	m.signals = c
}

// RegisterMetrics registers the metrics served on /metrics.
func (m *Monitor) RegisterMetrics(metrics *Metrics) {
	m.metrics = metrics
}

// RegisterComponent registers a component to be inspected.
func (m *Monitor) RegisterComponent(c hooking.Named) {
	m.components = append(m.components, c)
}

// Do runs f while holding the lock that serializes API requests.
func (m *Monitor) Do(f func()) {
	m.lock.Lock()
	defer m.lock.Unlock()

	f()
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Router returns the HTTP handler serving the API, the metrics and the
// control page.
func (m *Monitor) Router() http.Handler {
	r := mux.NewRouter()

	// Process-level routes touch no session state and run without the lock.
	r.HandleFunc("/api/resource", m.listResources).Methods(http.MethodGet)
	r.HandleFunc("/api/profile", m.collectProfile).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(m.serialize)
	api.HandleFunc("/saves", m.listSaves).Methods(http.MethodGet)
	api.HandleFunc("/saves/{name}", m.newSave).Methods(http.MethodPost)
	api.HandleFunc("/saves/{name}", m.saveDetail).Methods(http.MethodGet)
	api.HandleFunc("/saves/{name}/save", m.save).Methods(http.MethodPost)
	api.HandleFunc("/saves/{name}/load", m.load).Methods(http.MethodPost)
	api.HandleFunc("/pause", m.pause).Methods(http.MethodPost)
	api.HandleFunc("/resume", m.resume).Methods(http.MethodPost)
	api.HandleFunc("/toggle", m.toggle).Methods(http.MethodPost)
	api.HandleFunc("/tick", m.tick).Methods(http.MethodPost)
	api.HandleFunc("/speed/{index}", m.speed).Methods(http.MethodPost)
	api.HandleFunc("/now", m.now).Methods(http.MethodGet)
	api.HandleFunc("/signals", m.listSignals).Methods(http.MethodGet)
	api.HandleFunc("/list_components", m.listComponents).Methods(http.MethodGet)
	api.HandleFunc("/component/{name}", m.listComponentDetails).Methods(http.MethodGet)
	api.HandleFunc("/field/{json}", m.listFieldValue).Methods(http.MethodGet)
	api.HandleFunc("/progress", m.listProgressBars).Methods(http.MethodGet)

	if m.metrics != nil {
		r.Handle("/metrics", m.serialize(promhttp.HandlerFor(
			m.metrics.Registry(), promhttp.HandlerOpts{})))
	}

	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

func (m *Monitor) serialize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.lock.Lock()
		defer m.lock.Unlock()

		next.ServeHTTP(w, r)
	})
}

// StartServer starts the monitor as a web server with a custom port if wanted.
func (m *Monitor) StartServer() {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	m.addr = listener.Addr()
	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	url := fmt.Sprintf("http://localhost:%d", listener.Addr().(*net.TCPAddr).Port)
	m.logger.Info("monitoring game session", "url", url)

	go func() {
		err := m.server.Serve(listener)
		if !errors.Is(err, http.ErrServerClosed) {
			dieOnErr(err)
		}
	}()

	if m.openBrowser {
		err = browser.OpenURL(url)
		if err != nil {
			m.logger.Warn("cannot open browser", "url", url, "error", err)
		}
	}
}

// Addr returns the address the server listens on, or nil before StartServer.
func (m *Monitor) Addr() net.Addr {
	return m.addr
}

// StopServer shuts the server down.
func (m *Monitor) StopServer() {
	if m.server == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := m.server.Shutdown(ctx)
	if err != nil {
		m.logger.Warn("monitor shutdown", "error", err)
	}

	m.server = nil
}

type failureRsp struct {
	Contributor string `json:"contributor"`
	Error       string `json:"error"`
	Panicked    bool   `json:"panicked"`
}

type reportRsp struct {
	Save     string       `json:"save"`
	Signal   string       `json:"signal,omitempty"`
	Stale    bool         `json:"stale,omitempty"`
	Failures []failureRsp `json:"failures"`
}

func makeReportRsp(r persistence.Report) reportRsp {
	rsp := reportRsp{
		Save:     r.Save,
		Stale:    r.Stale,
		Failures: []failureRsp{},
	}

	if r.Pos != nil {
		rsp.Signal = r.Pos.Name
	}

	for _, f := range r.Failures {
		rsp.Failures = append(rsp.Failures, failureRsp{
			Contributor: f.HookName(),
			Error:       f.Err.Error(),
			Panicked:    f.Panicked,
		})
	}

	return rsp
}

type saveRsp struct {
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
	Fragments  []string  `json:"fragments"`
}

func makeSaveRsp(info persistence.SaveInfo) saveRsp {
	keys := info.Keys
	if keys == nil {
		keys = []string{}
	}

	return saveRsp{
		Name:       info.Name,
		CreatedAt:  info.CreatedAt,
		ModifiedAt: info.ModifiedAt,
		Fragments:  keys,
	}
}

func (m *Monitor) listSaves(w http.ResponseWriter, _ *http.Request) {
	rsp := []saveRsp{}
	for _, info := range m.manager.List() {
		rsp = append(rsp, makeSaveRsp(info))
	}

	writeJSON(w, http.StatusOK, rsp)
}

func (m *Monitor) saveDetail(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	for _, info := range m.manager.List() {
		if info.Name == name {
			writeJSON(w, http.StatusOK, makeSaveRsp(info))
			return
		}
	}

	writeError(w, http.StatusNotFound, fmt.Errorf("%w: %q", persistence.ErrUnknownSave, name))
}

func (m *Monitor) newSave(w http.ResponseWriter, r *http.Request) {
	report, err := m.manager.NewSave(mux.Vars(r)["name"])
	m.respondReport(w, "new", http.StatusCreated, report, err)
}

func (m *Monitor) save(w http.ResponseWriter, r *http.Request) {
	report, err := m.manager.Save(mux.Vars(r)["name"])
	m.respondReport(w, "save", http.StatusOK, report, err)
}

func (m *Monitor) load(w http.ResponseWriter, r *http.Request) {
	report, err := m.manager.Load(mux.Vars(r)["name"])
	m.respondReport(w, "load", http.StatusOK, report, err)
}

func (m *Monitor) respondReport(
	w http.ResponseWriter,
	operation string,
	okStatus int,
	report persistence.Report,
	err error,
) {
	if m.metrics != nil {
		m.metrics.ObserveOperation(operation, err, report.Failures)
	}

	switch {
	case errors.Is(err, persistence.ErrDuplicateName):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, persistence.ErrUnknownSave):
		writeError(w, http.StatusNotFound, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, okStatus, makeReportRsp(report))
	}
}

type pauseRsp struct {
	Paused  bool `json:"paused"`
	Changed bool `json:"changed"`
}

func (m *Monitor) pause(w http.ResponseWriter, _ *http.Request) {
	changed, err := m.controller.Pause()
	m.respondPause(w, changed, err)
}

func (m *Monitor) resume(w http.ResponseWriter, _ *http.Request) {
	changed, err := m.controller.Resume()
	m.respondPause(w, changed, err)
}

func (m *Monitor) toggle(w http.ResponseWriter, _ *http.Request) {
	err := m.controller.Toggle()
	m.respondPause(w, true, err)
}

func (m *Monitor) respondPause(w http.ResponseWriter, changed bool, err error) {
	if err != nil {
		m.logger.Warn("pause subscribers failed", "error", err)
	}

	writeJSON(w, http.StatusOK, pauseRsp{
		Paused:  m.controller.IsPaused(),
		Changed: changed,
	})
}

func (m *Monitor) tick(w http.ResponseWriter, r *http.Request) {
	if m.stepper == nil {
		writeError(w, http.StatusMethodNotAllowed, errors.New("session cannot be ticked"))
		return
	}

	frames := 1

	if s := r.URL.Query().Get("frames"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid frames %q", s))
			return
		}

		frames = n
	}

	m.stepper.Step(frames)
	m.now(w, r)
}

func (m *Monitor) speed(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err == nil {
		err = m.clock.SetSpeed(index)
	}

	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	m.now(w, r)
}

type nowRsp struct {
	Frames      uint64  `json:"frames"`
	Paused      bool    `json:"paused"`
	GameTime    string  `json:"game_time,omitempty"`
	Epoch       float64 `json:"epoch_seconds"`
	SpeedIndex  int     `json:"speed_index"`
	PlayTime    string  `json:"play_time,omitempty"`
	PlaySeconds float64 `json:"play_seconds"`
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	rsp := nowRsp{}

	if m.stepper != nil {
		rsp.Frames = m.stepper.Frames()
	}

	if m.controller != nil {
		rsp.Paused = m.controller.IsPaused()
	}

	if m.clock != nil {
		rsp.GameTime = m.clock.String()
		rsp.Epoch = m.clock.Epoch().Seconds()
		rsp.SpeedIndex = m.clock.SpeedIndex()
	}

	if m.playTime != nil {
		rsp.PlayTime = m.playTime.String()
		rsp.PlaySeconds = m.playTime.PlayTime().Seconds()
	}

	writeJSON(w, http.StatusOK, rsp)
}

func (m *Monitor) listSignals(w http.ResponseWriter, _ *http.Request) {
	rsp := map[string]uint64{}

	if m.signals != nil {
		for _, name := range m.signals.SignalNames() {
			rsp[name] = m.signals.Count(&hooking.HookPos{Name: name})
		}
	}

	writeJSON(w, http.StatusOK, rsp)
}

func (m *Monitor) listComponents(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, 0, len(m.components))
	for _, c := range m.components {
		names = append(names, c.Name())
	}

	writeJSON(w, http.StatusOK, names)
}

func (m *Monitor) listComponentDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	component := m.findComponentOr404(w, name)
	if component == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type fieldReq struct {
	CompName  string `json:"comp_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}

	err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	component := m.findComponentOr404(w, req.CompName)
	if component == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)

	err = serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	err = serializer.Serialize(w)
	dieOnErr(err)
}

func (m *Monitor) findComponentOr404(
	w http.ResponseWriter,
	name string,
) hooking.Named {
	for _, c := range m.components {
		if c.Name() == name {
			return c
		}
	}

	w.WriteHeader(http.StatusNotFound)
	_, err := w.Write([]byte("Component not found"))
	dieOnErr(err)

	return nil
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	bytes, err := json.Marshal(m.progressBars)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, http.StatusOK, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, http.StatusOK, prof)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_, err = w.Write(data)
	dieOnErr(err)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
