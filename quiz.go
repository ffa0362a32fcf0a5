// mash quiz sessions
//
// Each visitor plays in their own session at /quiz/:id. A session holds the
// player's State: the moods they picked, three to five entries for each of
// the six categories, the magic number from the spiral, and, once counted
// out, the winners and the generated plan.
//
// Features:
// - Random 8-char session IDs via crypto/rand, with server-side collision check
// - First cookie to touch a session owns it; everyone else is read-only
// - Elimination replay over /quiz/:id/ws, one message per removal
// - Share page and QR code for the finished plan, backed by go-qrcode
// - Sessions auto-reaped after a configurable idle timeout

package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"maps"
	"math/big"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/Seednode/mash/elimination"
	"github.com/Seednode/mash/plan"
)

const (
	sessionIDLength   = 8
	visitorCookieName = "mash_id"
	maxBodySize       = 1 << 20
	spinMax           = 5
)

var errForbidden = errors.New("this quiz belongs to someone else")

type Session struct {
	id    string
	owner string

	mu         sync.Mutex
	state      State
	createdAt  time.Time
	lastActive time.Time
}

func (s *Session) snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActive = time.Now()

	return s.state.clone()
}

// update runs fn against the session state under lock.
func (s *Session) update(fn func(*State) error) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActive = time.Now()

	if err := fn(&s.state); err != nil {
		return State{}, err
	}

	return s.state.clone(), nil
}

func (s State) clone() State {
	c := State{
		Moods:         slices.Clone(s.Moods),
		Categories:    make(map[string][]string, len(s.Categories)),
		MagicNumber:   s.MagicNumber,
		SelectedWords: maps.Clone(s.SelectedWords),
		Plan:          s.Plan,
	}

	for k, v := range s.Categories {
		c.Categories[k] = slices.Clone(v)
	}

	return c
}

// SessionManager holds every live session keyed by ID.
type SessionManager struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	idleTimeout time.Duration
	catalog     *Catalog
	metrics     *Metrics
}

func newSessionManager(ctx context.Context, idleTimeout time.Duration, catalog *Catalog, metrics *Metrics) *SessionManager {
	sm := &SessionManager{
		sessions:    make(map[string]*Session),
		idleTimeout: idleTimeout,
		catalog:     catalog,
		metrics:     metrics,
	}
	if idleTimeout > 0 {
		go sm.reaperLoop(ctx)
	}
	return sm
}

// get returns the session for id, creating it with visitor as owner.
func (sm *SessionManager) get(id, visitor string) *Session {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if s, ok := sm.sessions[id]; ok {
		return s
	}

	now := time.Now()
	s := &Session{
		id:         id,
		owner:      visitor,
		state:      newState(sm.catalog),
		createdAt:  now,
		lastActive: now,
	}
	sm.sessions[id] = s
	sm.metrics.sessions.Inc()

	return s
}

func randomSessionID(n int) string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	const max = byte(255 - (256 % len(letters)))

	out := make([]byte, 0, n)
	buf := make([]byte, n*2)

	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}

		for _, b := range buf {
			if b <= max {
				out = append(out, letters[int(b)%len(letters)])
				if len(out) == n {
					return string(out)
				}
			}
		}
	}

	return string(out)
}

func (sm *SessionManager) newSessionID() string {
	for {
		id := randomSessionID(sessionIDLength)

		sm.mu.Lock()
		_, exists := sm.sessions[id]
		sm.mu.Unlock()

		if !exists {
			return id
		}
	}
}

// reap forgets sessions idle since before cutoff and reports how many.
func (sm *SessionManager) reap(cutoff time.Time) int {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	removed := 0
	for id, s := range sm.sessions {
		s.mu.Lock()
		last := s.lastActive
		s.mu.Unlock()

		if last.Before(cutoff) {
			delete(sm.sessions, id)
			removed++
		}
	}
	sm.metrics.sessions.Sub(float64(removed))

	return removed
}

func (sm *SessionManager) reaperLoop(ctx context.Context) {
	ticker := time.NewTicker(sm.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			sm.reap(now.Add(-sm.idleTimeout))
		}
	}
}

// Quiz ties sessions to the elimination engine and the plan generator.
type Quiz struct {
	cfg      *Config
	catalog  *Catalog
	sessions *SessionManager
	planner  *plan.Planner
	metrics  *Metrics
}

func newQuiz(ctx context.Context, cfg *Config, catalog *Catalog, metrics *Metrics, gen plan.Generator) *Quiz {
	return &Quiz{
		cfg:      cfg,
		catalog:  catalog,
		sessions: newSessionManager(ctx, cfg.sessionTimeout, catalog, metrics),
		planner:  plan.NewPlanner(gen, plan.WithMaxOutputTokens(cfg.maxOutputTokens)),
		metrics:  metrics,
	}
}

func (q *Quiz) eliminate(pools []elimination.Pool, stepSize int) elimination.Result {
	result := elimination.Run(pools, stepSize)

	q.metrics.observeElimination(result)

	if result.Truncated {
		warnf(q.cfg, "ELIMINATION: Stopped after %d steps with step size %d", len(result.Steps), stepSize)
	}
	if result.Stalls > 0 {
		warnf(q.cfg, "ELIMINATION: Escaped %d stalled count(s) with step size %d", result.Stalls, stepSize)
	}

	return result
}

// runElimination counts out a session's pools and records the winners.
func (q *Quiz) runElimination(s *Session) (elimination.Result, error) {
	var result elimination.Result

	_, err := s.update(func(st *State) error {
		if err := st.ready(q.catalog); err != nil {
			return err
		}

		result = q.eliminate(st.pools(q.catalog), st.MagicNumber)
		st.applyResult(result)

		return nil
	})

	return result, err
}

func (q *Quiz) generatePlan(ctx context.Context, req plan.Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, q.cfg.llmTimeout)
	defer cancel()

	startTime := time.Now()

	text, err := q.planner.Plan(ctx, req)

	q.metrics.observePlan(err, time.Since(startTime))

	if err != nil && !errors.Is(err, plan.ErrValidation) {
		errorf(q.cfg, "PLAN: %v", err)
	}

	return text, err
}

func getOrSetVisitorID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(visitorCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	id := hex.EncodeToString(buf)

	http.SetCookie(w, &http.Cookie{
		Name:     visitorCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

// session resolves :id for a request. Writes are limited to the owner.
func (q *Quiz) session(w http.ResponseWriter, r *http.Request, ps httprouter.Params, write bool) (*Session, bool) {
	id := ps.ByName("id")
	if id == "" {
		writeError(q.cfg, w, http.StatusBadRequest, "missing quiz id")
		return nil, false
	}

	visitor := getOrSetVisitorID(w, r)
	if visitor == "" {
		writeError(q.cfg, w, http.StatusInternalServerError, "unable to assign visitor id")
		return nil, false
	}

	s := q.sessions.get(id, visitor)

	if write && s.owner != visitor {
		writeError(q.cfg, w, http.StatusForbidden, errForbidden.Error())
		return nil, false
	}

	return s, true
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return err
	}

	return json.Unmarshal(data, v)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errForbidden):
		return http.StatusForbidden
	case errors.Is(err, errNotReady), errors.Is(err, errNoWinners):
		return http.StatusConflict
	case errors.Is(err, errUnknownCategory):
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

func serveState(q *Quiz) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		s, ok := q.session(w, r, ps, false)
		if !ok {
			return
		}

		writeJSON(q.cfg, w, http.StatusOK, s.snapshot())
	}
}

func resetState(q *Quiz) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		s, ok := q.session(w, r, ps, true)
		if !ok {
			return
		}

		st, _ := s.update(func(st *State) error {
			*st = newState(q.catalog)
			return nil
		})

		logf(q.cfg, "QUIZ: Reset %s for %s (%s)", s.id, realIP(r), requestID(r))

		writeJSON(q.cfg, w, http.StatusOK, st)
	}
}

// mutate decodes a request body into T and applies it to the session.
func mutate[T any](q *Quiz, apply func(*State, T) error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		s, ok := q.session(w, r, ps, true)
		if !ok {
			return
		}

		var body T
		if err := readJSON(w, r, &body); err != nil {
			writeError(q.cfg, w, http.StatusBadRequest, "invalid request body")
			return
		}

		st, err := s.update(func(st *State) error {
			return apply(st, body)
		})
		if err != nil {
			writeError(q.cfg, w, statusFor(err), err.Error())
			return
		}

		writeJSON(q.cfg, w, http.StatusOK, st)
	}
}

type moodsRequest struct {
	Moods []string `json:"moods"`
}

type itemsRequest struct {
	Items []string `json:"items"`
}

type magicRequest struct {
	Loops       *int `json:"loops,omitempty"`
	MagicNumber *int `json:"magicNumber,omitempty"`
}

type magicResponse struct {
	MagicNumber int `json:"magicNumber"`
}

func updateMoods(q *Quiz) httprouter.Handle {
	return mutate(q, func(st *State, req moodsRequest) error {
		return st.setMoods(q.catalog, req.Moods)
	})
}

func updateCategory(q *Quiz) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		slug := ps.ByName("slug")

		mutate(q, func(st *State, req itemsRequest) error {
			return st.setCategoryItems(q.catalog, slug, req.Items)
		})(w, r, ps)
	}
}

func updateMagic(q *Quiz) httprouter.Handle {
	return mutate(q, func(st *State, req magicRequest) error {
		switch {
		case req.Loops != nil:
			return st.setMagicNumber(magicFromLoops(*req.Loops))
		case req.MagicNumber != nil:
			return st.setMagicNumber(*req.MagicNumber)
		default:
			return errMagicNumber
		}
	})
}

// spin picks a magic number the way a full spiral would, 2 through 5.
func spin() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(spinMax-elimination.MinStepSize+1))
	if err != nil {
		return 0, err
	}

	return int(n.Int64()) + elimination.MinStepSize, nil
}

func spinMagic(q *Quiz) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		s, ok := q.session(w, r, ps, true)
		if !ok {
			return
		}

		n, err := spin()
		if err != nil {
			writeError(q.cfg, w, http.StatusInternalServerError, "unable to spin")
			return
		}

		_, _ = s.update(func(st *State) error {
			return st.setMagicNumber(n)
		})

		logf(q.cfg, "QUIZ: %s spun %d (%s)", s.id, n, requestID(r))

		writeJSON(q.cfg, w, http.StatusOK, magicResponse{MagicNumber: n})
	}
}

func serveSuggestion(q *Quiz) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		s, ok := q.session(w, r, ps, false)
		if !ok {
			return
		}

		slug := ps.ByName("slug")
		if _, ok := q.catalog.Category(slug); !ok {
			writeError(q.cfg, w, http.StatusNotFound, errUnknownCategory.Error())
			return
		}

		suggestion, ok := q.catalog.Suggest(slug, s.snapshot().Categories[slug])
		if !ok {
			writeError(q.cfg, w, http.StatusNotFound, "no suggestions left")
			return
		}

		writeJSON(q.cfg, w, http.StatusOK, map[string]string{"suggestion": suggestion})
	}
}

func serveElimination(q *Quiz) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		startTime := time.Now()

		s, ok := q.session(w, r, ps, true)
		if !ok {
			return
		}

		result, err := q.runElimination(s)
		if err != nil {
			writeError(q.cfg, w, statusFor(err), err.Error())
			return
		}

		written := writeJSON(q.cfg, w, http.StatusOK, result)

		logf(q.cfg, "QUIZ: Eliminated %d item(s) for %s (%s) to %s in %s",
			len(result.Steps),
			s.id,
			humanReadableSize(written),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

type sessionPlanRequest struct {
	Modifier string `json:"modifier,omitempty"`
}

type planResponse struct {
	Plan string `json:"plan"`
}

func servePlan(q *Quiz) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		s, ok := q.session(w, r, ps, true)
		if !ok {
			return
		}

		var body sessionPlanRequest
		if r.ContentLength != 0 {
			if err := readJSON(w, r, &body); err != nil {
				writeError(q.cfg, w, http.StatusBadRequest, "invalid request body")
				return
			}
		}

		st := s.snapshot()
		if len(st.SelectedWords) == 0 {
			writeError(q.cfg, w, statusFor(errNoWinners), errNoWinners.Error())
			return
		}

		winners := make(map[elimination.Category]string, len(st.SelectedWords))
		for slug, item := range st.SelectedWords {
			winners[elimination.Category(slug)] = item
		}

		text, err := q.generatePlan(r.Context(), plan.Request{
			Categories: q.catalog.titles(winners),
			Mood:       st.Moods,
			Modifier:   body.Modifier,
		})
		if err != nil {
			writeError(q.cfg, w, plan.StatusCode(err), plan.Message(err))
			return
		}

		_, _ = s.update(func(cur *State) error {
			if maps.Equal(cur.SelectedWords, st.SelectedWords) {
				cur.Plan = text
			}
			return nil
		})

		logf(q.cfg, "QUIZ: Wrote plan for %s (%s)", s.id, requestID(r))

		writeJSON(q.cfg, w, http.StatusOK, planResponse{Plan: text})
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type stepMessage struct {
	Type   string `json:"type"` // "step"
	Number int    `json:"step"`
	Total  int    `json:"total"`
	elimination.Step
}

type resultMessage struct {
	Type          string                          `json:"type"` // "result"
	SelectedWords map[elimination.Category]string `json:"selectedWords"`
	Truncated     bool                            `json:"truncated,omitempty"`
	Stalls        int                             `json:"stalls,omitempty"`
}

// streamReplay sends each step of result, delay apart, then the winners.
func streamReplay(ctx context.Context, conn *websocket.Conn, result elimination.Result, delay time.Duration) error {
	var tick <-chan time.Time
	if delay > 0 {
		ticker := time.NewTicker(delay)
		defer ticker.Stop()
		tick = ticker.C
	}

	for i, step := range result.Steps {
		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		if err := conn.WriteJSON(stepMessage{
			Type:   "step",
			Number: i + 1,
			Total:  len(result.Steps),
			Step:   step,
		}); err != nil {
			return err
		}
	}

	return conn.WriteJSON(resultMessage{
		Type:          "result",
		SelectedWords: result.Winners,
		Truncated:     result.Truncated,
		Stalls:        result.Stalls,
	})
}

func serveReplay(q *Quiz) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		s, ok := q.session(w, r, ps, true)
		if !ok {
			return
		}

		result, err := q.runElimination(s)
		if err != nil {
			writeError(q.cfg, w, statusFor(err), err.Error())
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			errorf(q.cfg, "ERROR: Websocket upgrade for %s failed: %v", s.id, err)
			return
		}
		defer conn.Close()

		q.metrics.replays.Inc()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		done := make(chan struct{})
		go func() {
			defer close(done)
			defer cancel()

			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		if err := streamReplay(ctx, conn, result, q.cfg.playbackDelay); err != nil {
			logf(q.cfg, "QUIZ: Replay for %s ended early: %v", s.id, err)
		} else {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"),
				time.Now().Add(time.Second))
		}

		_ = conn.Close()
		<-done

		logf(q.cfg, "QUIZ: Replayed %d step(s) for %s to %s", len(result.Steps), s.id, realIP(r))
	}
}

func sharePage(catalog *Catalog, st State) string {
	var b strings.Builder

	b.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	b.WriteString(getFavicon())
	b.WriteString(`<title>My mash plan</title></head><body><h1>My mash plan</h1>`)

	if len(st.SelectedWords) == 0 {
		b.WriteString(`<p>Nothing has been counted out yet.</p></body></html>`)
		return b.String()
	}

	b.WriteString(`<ul>`)
	for _, c := range catalog.Categories {
		item, ok := st.SelectedWords[c.Slug]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "<li>%s %s: %s</li>",
			html.EscapeString(c.Icon),
			html.EscapeString(c.Title),
			html.EscapeString(item))
	}
	b.WriteString(`</ul>`)

	if len(st.Moods) > 0 {
		fmt.Fprintf(&b, "<p>Mood: %s</p>", html.EscapeString(strings.Join(st.Moods, ", ")))
	}

	if st.Plan != "" {
		fmt.Fprintf(&b, "<pre>%s</pre>", html.EscapeString(st.Plan))
	}

	b.WriteString(`</body></html>`)

	return b.String()
}

func serveShare(q *Quiz, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		s, ok := q.session(w, r, ps, false)
		if !ok {
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(q.cfg, w)

		if _, err := io.WriteString(w, sharePage(q.catalog, s.snapshot())); err != nil {
			errs <- err
		}
	}
}

// shareURL is the absolute share link for the quiz whose QR path is r.
// Only http and https are taken from X-Forwarded-Proto.
func shareURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	switch proto := strings.ToLower(r.Header.Get("X-Forwarded-Proto")); proto {
	case "http", "https":
		scheme = proto
	}

	return scheme + "://" + r.Host + strings.TrimSuffix(r.URL.Path, "/qr") + "/share"
}

// serveQR encodes the share URL for the current quiz as a PNG.
func serveQR(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if ps.ByName("id") == "" {
			writeError(cfg, w, http.StatusBadRequest, "missing quiz id")
			return
		}

		const qrSize = 320
		png, err := qrcode.Encode(shareURL(r), qrcode.Medium, qrSize)
		if err != nil {
			writeError(cfg, w, http.StatusInternalServerError, "qr generation failed")
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)

		if _, err := w.Write(png); err != nil {
			errs <- err
		}
	}
}

func redirectNewQuiz(cfg *Config, path string, sm *SessionManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		id := sm.newSessionID()
		sm.get(id, getOrSetVisitorID(w, r))

		logf(cfg, "QUIZ: Created %s/%s for %s", path, id, realIP(r))

		http.Redirect(w, r, cfg.prefix+path+"/"+id, http.StatusTemporaryRedirect)
	}
}

// registerQuiz sets up routes so that:
//   - $path                    → redirects to a new quiz
//   - $path/:id                → state (GET), reset (DELETE)
//   - $path/:id/moods          → replace moods
//   - $path/:id/categories/:slug → replace one category's entries
//   - $path/:id/magic, /spin   → choose or spin the magic number
//   - $path/:id/suggest/:slug  → an unused suggestion
//   - $path/:id/eliminate      → count out the winners
//   - $path/:id/plan           → write the plan
//   - $path/:id/ws             → replay the elimination over WebSocket
//   - $path/:id/share, /qr     → shareable summary and its QR code
func registerQuiz(cfg *Config, path string, q *Quiz, mux *httprouter.Router, errs chan<- error) {
	base := cfg.prefix + path

	mux.GET(base, redirectNewQuiz(cfg, path, q.sessions))

	mux.GET(base+"/:id", serveState(q))
	mux.DELETE(base+"/:id", resetState(q))

	mux.PUT(base+"/:id/moods", updateMoods(q))
	mux.PUT(base+"/:id/categories/:slug", updateCategory(q))
	mux.PUT(base+"/:id/magic", updateMagic(q))
	mux.POST(base+"/:id/spin", spinMagic(q))
	mux.GET(base+"/:id/suggest/:slug", serveSuggestion(q))

	mux.POST(base+"/:id/eliminate", serveElimination(q))
	mux.POST(base+"/:id/plan", servePlan(q))

	mux.GET(base+"/:id/ws", serveReplay(q))

	mux.GET(base+"/:id/share", serveShare(q, errs))
	mux.GET(base+"/:id/qr", serveQR(cfg, errs))
}
