package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("session not found")

// maxBodyBytes caps JSON request bodies; every request here is a few
// hundred bytes at most.
const maxBodyBytes = 64 * 1024

// sessionEntry serialises all access to one session.
type sessionEntry struct {
	mu      sync.Mutex
	session *Session
	sel     Selection
	created time.Time
}

// SessionStore holds live sessions, evicting the oldest past its limit.
type SessionStore struct {
	mu      sync.Mutex
	limit   int
	entries map[uuid.UUID]*sessionEntry
	order   []uuid.UUID
}

func NewSessionStore(limit int) *SessionStore {
	if limit < 1 {
		limit = 1
	}
	return &SessionStore{limit: limit, entries: make(map[uuid.UUID]*sessionEntry)}
}

func (st *SessionStore) Add(e *sessionEntry) uuid.UUID {
	id := uuid.New()
	st.mu.Lock()
	defer st.mu.Unlock()
	st.entries[id] = e
	st.order = append(st.order, id)
	for len(st.order) > st.limit {
		oldest := st.order[0]
		st.order = st.order[1:]
		delete(st.entries, oldest)
	}
	return id
}

func (st *SessionStore) Get(id uuid.UUID) (*sessionEntry, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	e, ok := st.entries[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e, nil
}

func (st *SessionStore) Delete(id uuid.UUID) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.entries[id]; !ok {
		return false
	}
	delete(st.entries, id)
	for i, o := range st.order {
		if o == id {
			st.order = append(st.order[:i], st.order[i+1:]...)
			break
		}
	}
	return true
}

func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.entries)
}

// Service is the HTTP surface over the catalog and editing sessions.
type Service struct {
	cfg     *Config
	catalog atomic.Pointer[Catalog]
	source  ImageSource
	store   *SessionStore
	logger  *slog.Logger

	// accessLog mounts chi's request logger.
	accessLog bool
}

func NewService(cfg *Config, cat *Catalog, src ImageSource) *Service {
	svc := &Service{
		cfg:    cfg,
		source: src,
		store:  NewSessionStore(cfg.Server.MaxSessions),
		logger: Logger(),
	}
	if cat == nil {
		cat = &Catalog{}
	}
	svc.catalog.Store(cat)
	return svc
}

func (svc *Service) Catalog() *Catalog { return svc.catalog.Load() }

// ReloadCatalog swaps in the catalog found in the configured directory.
// On failure the current catalog stays in place.
func (svc *Service) ReloadCatalog() error {
	cat, err := LoadCatalog(svc.cfg.Catalog.Dir)
	if err != nil {
		svc.logger.Warn("catalog reload failed", "dir", svc.cfg.Catalog.Dir, "error", err)
		return err
	}
	svc.catalog.Store(cat)
	svc.logger.Info("catalog reloaded", "readings", len(cat.Readings), "prayers", len(cat.Prayers))
	return nil
}

func (svc *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if svc.accessLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(maxBody(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/api/palette", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, svc.cfg.Palette.Colors)
	})

	r.Route("/api/catalog", func(r chi.Router) {
		r.Get("/years", svc.handleYears)
		r.Get("/readings", svc.handleReadings)
		r.Get("/readings/{date}", svc.handleReading)
		r.Get("/prayers", svc.handlePrayers)
	})

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", svc.handleCreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", svc.withSession(svc.handleSessionState))
			r.Delete("/", svc.handleDeleteSession)
			r.Post("/tool", svc.withSession(svc.handleTool))
			r.Post("/tap", svc.withSession(svc.handleTap))
			r.Post("/undo", svc.withSession(svc.handleUndo))
			r.Post("/reset", svc.withSession(svc.handleReset))
			r.Post("/page", svc.handlePage)
			r.Get("/image.png", svc.withSession(svc.handleImage))
			r.Get("/sheet.pdf", svc.withSession(svc.handleSheet))
			r.Get("/preview.png", svc.withSession(svc.handlePreview))
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// maxBody limits every request body to maxBytes.
func maxBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// decodeJSON decodes the request body into v, answering 413 for oversized
// bodies and 400 for malformed ones. It reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return false
	}
	writeError(w, http.StatusBadRequest, err)
	return false
}

// catalogStatus maps catalog lookup errors to HTTP statuses.
func catalogStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnknownEntry):
		return http.StatusNotFound
	case errors.Is(err, ErrUnknownVariant):
		return http.StatusConflict
	case errors.Is(err, ErrPageOutOfRange):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (svc *Service) handleYears(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, svc.Catalog().Years())
}

func (svc *Service) handleReadings(w http.ResponseWriter, r *http.Request) {
	year := r.URL.Query().Get("year")
	if year == "" {
		writeError(w, http.StatusBadRequest, errors.New("year is required"))
		return
	}
	readings := svc.Catalog().ReadingsForYear(year)
	if readings == nil {
		readings = []Reading{}
	}
	writeJSON(w, http.StatusOK, readings)
}

func (svc *Service) handleReading(w http.ResponseWriter, r *http.Request) {
	cat := svc.Catalog()
	date := chi.URLParam(r, "date")
	reading, ok := cat.Reading(date)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("reading %s: %w", date, ErrUnknownEntry))
		return
	}
	available := make(map[string]bool, len(Variants))
	for _, v := range Variants {
		available[v] = cat.HasVariant(date, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reading":   reading,
		"available": available,
	})
}

type prayerSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Pages int    `json:"pages"`
}

func (svc *Service) handlePrayers(w http.ResponseWriter, _ *http.Request) {
	prayers := svc.Catalog().Prayers
	out := make([]prayerSummary, 0, len(prayers))
	for _, p := range prayers {
		out = append(out, prayerSummary{ID: p.ID, Title: p.Title, Pages: len(p.Images)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (svc *Service) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var sel Selection
	if !decodeJSON(w, r, &sel) {
		return
	}
	cat := svc.Catalog()
	path, err := cat.ImagePath(sel)
	if err != nil {
		writeError(w, catalogStatus(err), err)
		return
	}

	s := NewSession()
	s.SetLogger(svc.logger)
	if len(svc.cfg.Palette.Colors) > 0 {
		s.SelectColor(svc.cfg.Palette.Colors[0])
	}
	if err := s.LoadFrom(r.Context(), svc.source, path); err != nil {
		svc.logger.Warn("image load failed", "path", path, "error", err)
		writeError(w, http.StatusBadGateway, err)
		return
	}

	id := svc.store.Add(&sessionEntry{session: s, sel: sel, created: time.Now()})
	svc.logger.Info("session created", "id", id, "path", path, "width", s.Width(), "height", s.Height())
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":       id.String(),
		"width":    s.Width(),
		"height":   s.Height(),
		"filename": ExportFilename(cat, sel),
	})
}

func (svc *Service) lookup(r *http.Request) (uuid.UUID, *sessionEntry, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, nil, ErrSessionNotFound
	}
	e, err := svc.store.Get(id)
	return id, e, err
}

// withSession resolves the session and holds its lock for the handler.
func (svc *Service) withSession(h func(http.ResponseWriter, *http.Request, *sessionEntry)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, e, err := svc.lookup(r)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		h(w, r, e)
	}
}

func (svc *Service) stateOf(e *sessionEntry) map[string]any {
	s := e.session
	state := map[string]any{
		"width":     s.Width(),
		"height":    s.Height(),
		"tool":      s.Tool().String(),
		"color":     s.Color(),
		"history":   s.HistoryLen(),
		"loading":   s.Loading(),
		"selection": e.sel,
		"created":   e.created,
	}
	if e.sel.PrayerID != "" {
		if p, ok := svc.Catalog().Prayer(e.sel.PrayerID); ok {
			state["pages"] = len(p.Images)
		}
	}
	return state
}

func (svc *Service) handleSessionState(w http.ResponseWriter, _ *http.Request, e *sessionEntry) {
	writeJSON(w, http.StatusOK, svc.stateOf(e))
}

func (svc *Service) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil || !svc.store.Delete(id) {
		writeError(w, http.StatusNotFound, ErrSessionNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (svc *Service) handleTool(w http.ResponseWriter, r *http.Request, e *sessionEntry) {
	var req struct {
		Tool  string `json:"tool"`
		Color string `json:"color"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	var tool Tool
	if req.Tool != "" {
		t, err := ParseTool(req.Tool)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		tool = t
	}
	if req.Color != "" {
		e.session.SelectColor(req.Color)
	}
	if req.Tool != "" {
		e.session.SetTool(tool)
	}
	writeJSON(w, http.StatusOK, svc.stateOf(e))
}

type tapRequest struct {
	X       *float64 `json:"x"`
	Y       *float64 `json:"y"`
	Touches []Point  `json:"touches"`
	Rect    Rect     `json:"rect"`
}

func (t tapRequest) event() InputEvent {
	if len(t.Touches) > 0 {
		return TouchEvent(t.Touches...)
	}
	if t.X != nil && t.Y != nil {
		return PointerEvent(*t.X, *t.Y)
	}
	return InputEvent{}
}

func (svc *Service) handleTap(w http.ResponseWriter, r *http.Request, e *sessionEntry) {
	var req tapRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	applied := e.session.Apply(req.event(), req.Rect)
	writeJSON(w, http.StatusOK, map[string]any{
		"applied": applied,
		"history": e.session.HistoryLen(),
	})
}

func (svc *Service) handleUndo(w http.ResponseWriter, _ *http.Request, e *sessionEntry) {
	undone := e.session.Undo()
	writeJSON(w, http.StatusOK, map[string]any{
		"undone":  undone,
		"history": e.session.HistoryLen(),
	})
}

func (svc *Service) handleReset(w http.ResponseWriter, r *http.Request, e *sessionEntry) {
	var req struct {
		Confirm bool `json:"confirm"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	reset := e.session.Reset(ConfirmFunc(func(string) bool { return req.Confirm }))
	writeJSON(w, http.StatusOK, map[string]any{"reset": reset})
}

// handlePage moves a prayer session to another page. The image is fetched
// without holding the session lock; taps arriving meanwhile are rejected.
// When page requests overlap only the latest one is applied and the
// earlier ones answer 409.
func (svc *Service) handlePage(w http.ResponseWriter, r *http.Request) {
	_, e, err := svc.lookup(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	var req struct {
		Page int `json:"page"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	e.mu.Lock()
	sel := e.sel
	if sel.PrayerID == "" {
		e.mu.Unlock()
		writeError(w, http.StatusBadRequest, errors.New("session is not a prayer"))
		return
	}
	sel.Page = req.Page
	path, err := svc.Catalog().ImagePath(sel)
	if err != nil {
		e.mu.Unlock()
		writeError(w, catalogStatus(err), err)
		return
	}
	token := e.session.BeginLoad()
	e.mu.Unlock()

	img, err := svc.source.Open(r.Context(), path)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.session.FinishLoad(token, img, err); err != nil {
		if errors.Is(err, ErrStaleLoad) {
			writeError(w, http.StatusConflict, err)
			return
		}
		svc.logger.Warn("image load failed", "path", path, "error", err)
		writeError(w, http.StatusBadGateway, fmt.Errorf("loading %s: %w", path, err))
		return
	}
	e.sel = sel
	writeJSON(w, http.StatusOK, svc.stateOf(e))
}

func attachment(filename string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": filename})
}

func (svc *Service) handleImage(w http.ResponseWriter, _ *http.Request, e *sessionEntry) {
	var buf bytes.Buffer
	if err := e.session.Export(PNGEncoder{}, &buf); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", attachment(ExportFilename(svc.Catalog(), e.sel)))
	w.Write(buf.Bytes())
}

func (svc *Service) handleSheet(w http.ResponseWriter, _ *http.Request, e *sessionEntry) {
	cat := svc.Catalog()
	var buf bytes.Buffer
	if err := e.session.Export(svc.cfg.SheetEncoder(SheetTitle(cat, e.sel)), &buf); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", attachment(SheetFilename(cat, e.sel)))
	w.Write(buf.Bytes())
}

func (svc *Service) handlePreview(w http.ResponseWriter, r *http.Request, e *sessionEntry) {
	if !e.session.Loaded() {
		writeError(w, http.StatusConflict, ErrNotLoaded)
		return
	}
	width := 0
	if v := r.URL.Query().Get("width"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid width %q", v))
			return
		}
		width = n
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, Preview(e.session.Buffer(), width)); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes())
}

func runServeMode(cfg *Config, watch bool) error {
	logger := newTextLogger(cfg.LogLevel)
	SetLogger(logger)

	cat, err := LoadCatalog(cfg.Catalog.Dir)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	svc := NewService(cfg, cat, cfg.ImageSource())
	svc.accessLog = logger.Enabled(context.Background(), slog.LevelDebug)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var wg sync.WaitGroup
	if watch {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := watchCatalog(ctx, cfg.Catalog.Dir, cfg.Watch.PollDuration(), func() { svc.ReloadCatalog() }); err != nil {
				logger.Error("catalog watcher stopped", "error", err)
			}
		}()
	}

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: svc.Router()}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr, "readings", len(cat.Readings), "prayers", len(cat.Prayers))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		cancel()
		wg.Wait()
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	err = srv.Shutdown(shutdownCtx)
	wg.Wait()
	return err
}
