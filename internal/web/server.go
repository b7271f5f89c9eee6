// Package web serves the HTMX user interface. Every interactive request
// counts as user activity: it silences a sounding alarm and, when the app
// was backgrounded, re-arms the review scheduler.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/ezberapp/ezber/internal/alarm"
	"github.com/ezberapp/ezber/internal/deck"
	"github.com/ezberapp/ezber/internal/domain"
	"github.com/ezberapp/ezber/internal/gen"
	"github.com/ezberapp/ezber/internal/queueview"
	"github.com/ezberapp/ezber/internal/scheduler"
	"github.com/ezberapp/ezber/internal/speech"
	"github.com/ezberapp/ezber/internal/srs"
	"github.com/ezberapp/ezber/internal/storage"
	"github.com/ezberapp/ezber/internal/store"
)

//go:embed all:static
var staticFiles embed.FS

//go:embed all:templates
var templateFiles embed.FS

// Server holds the dependencies for the HTTP server.
type Server struct {
	logger    *slog.Logger
	clock     clockwork.Clock
	cards     *store.Store
	sched     *scheduler.Scheduler
	sink      *alarm.Sink
	activity  *Activity
	speaker   speech.Speaker
	gen       *gen.Client
	importer  *deck.Importer
	db        *storage.DB
	router    *http.ServeMux
	templates *template.Template
}

// Options carries the server's collaborators.
type Options struct {
	Logger   *slog.Logger
	Clock    clockwork.Clock
	Cards    *store.Store
	Sched    *scheduler.Scheduler
	Sink     *alarm.Sink
	Activity *Activity
	Speaker  speech.Speaker
	Gen      *gen.Client
	Importer *deck.Importer
	DB       *storage.DB
}

// NewServer creates and configures a new server.
func NewServer(opts Options) (*Server, error) {
	tpl, err := template.ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{
		logger:   opts.Logger,
		clock:    opts.Clock,
		cards:    opts.Cards,
		sched:    opts.Sched,
		sink:     opts.Sink,
		activity: opts.Activity,
		speaker:  opts.Speaker,
		gen:      opts.Gen,
		importer: opts.Importer,
		db:       opts.DB,
		router:   http.NewServeMux(),
	}
	s.templates = tpl
	s.routes()
	return s, nil
}

// ServeHTTP implements the http.Handler interface. Only user-initiated
// requests count as activity and silence the alarm; assets, the event
// stream and the templates' automatic refreshes (marked auto=1) are
// machine traffic and must not, or an open tab would look forever
// foregrounded and mute the alarm the instant it starts.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.userInitiated(r) {
		if s.activity != nil {
			s.activity.Touch()
		}
		if s.sink != nil {
			s.sink.Stop()
		}
	}
	s.router.ServeHTTP(w, r)
}

func (s *Server) userInitiated(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/static/") || r.URL.Path == "/events" {
		return false
	}
	return r.URL.Query().Get("auto") != "1"
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		// The embed directive guarantees the directory exists.
		panic(err)
	}
	s.router.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	s.router.HandleFunc("/", s.handleIndex())
	s.router.HandleFunc("/events", s.handleEvents())

	// Library panel
	s.router.HandleFunc("/library", s.handleGetLibrary())
	s.router.HandleFunc("/cards", s.handlePostCard())
	s.router.HandleFunc("/cards/generate", s.handleGenerateCard())
	s.router.HandleFunc("/cards/activate/", s.handleActivateCard())
	s.router.HandleFunc("/cards/deactivate/", s.handleDeactivateCard())
	s.router.HandleFunc("/cards/delete/", s.handleDeleteCard())
	s.router.HandleFunc("/cards/bulk-delete", s.handleBulkDelete())
	s.router.HandleFunc("/cards/speak/", s.handleSpeakCard())

	// Active queue and review flow
	s.router.HandleFunc("/queue", s.handleGetQueue())
	s.router.HandleFunc("/review/next", s.handleGetNextReview())
	s.router.HandleFunc("/review/answer/", s.handleShowAnswer())
	s.router.HandleFunc("/review/", s.handlePostReview())

	// Folders
	s.router.HandleFunc("/folders", s.handlePostFolder())
	s.router.HandleFunc("/folders/", s.handleDeleteFolder())

	// Settings
	s.router.HandleFunc("/settings", s.handleSettings())

	// Deck sources
	s.router.HandleFunc("/sources", s.handleSources())
	s.router.HandleFunc("/sources/", s.handleDeleteSource())
	s.router.HandleFunc("/sync", s.handlePostSync())
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("failed to render template", "template", name, "error", err)
	}
}

func (s *Server) handleIndex() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		s.render(w, "index", nil)
	}
}

type libraryData struct {
	Cards        []domain.Card
	Folders      []domain.Folder
	ActiveFolder string
}

// libraryCards returns library-status cards, optionally one folder's.
func (s *Server) libraryCards(folderID string) []domain.Card {
	var out []domain.Card
	for _, c := range s.cards.Cards() {
		if c.Status != domain.StatusLibrary {
			continue
		}
		if folderID != "" && c.FolderID != folderID {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (s *Server) handleGetLibrary() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		folderID := r.URL.Query().Get("folder")
		s.render(w, "library", libraryData{
			Cards:        s.libraryCards(folderID),
			Folders:      s.cards.Folders(),
			ActiveFolder: folderID,
		})
	}
}

// handlePostCard creates a card from hand-filled form fields.
func (s *Server) handlePostCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		meaning := strings.TrimSpace(r.PostFormValue("meaning"))
		word := strings.TrimSpace(r.PostFormValue("word"))
		if meaning == "" || word == "" {
			http.Error(w, "Meaning and word are required", http.StatusBadRequest)
			return
		}
		s.cards.Add(domain.Card{
			Meaning:  meaning,
			Word:     word,
			Keyword:  strings.TrimSpace(r.PostFormValue("keyword")),
			Story:    strings.TrimSpace(r.PostFormValue("story")),
			FolderID: r.PostFormValue("folder"),
			Status:   domain.StatusLibrary,
		})
		s.renderLibrary(w, r)
	}
}

// handleGenerateCard builds a full mnemonic card from just a meaning.
func (s *Server) handleGenerateCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		meaning := strings.TrimSpace(r.PostFormValue("meaning"))
		if meaning == "" {
			http.Error(w, "Meaning is required", http.StatusBadRequest)
			return
		}
		if s.gen == nil || !s.gen.Enabled() {
			http.Error(w, "Card generation is not configured", http.StatusServiceUnavailable)
			return
		}

		settings := s.cards.Settings()
		mnemonic, err := s.gen.GenerateMnemonic(r.Context(), meaning, settings.TextModel)
		if err != nil {
			s.logger.Error("mnemonic generation failed", "meaning", meaning, "error", err)
			http.Error(w, genErrorMessage(err), genErrorStatus(err))
			return
		}

		card := domain.Card{
			Meaning:     mnemonic.Meaning,
			Word:        mnemonic.Word,
			Keyword:     mnemonic.Keyword,
			Story:       mnemonic.Story,
			ImagePrompt: mnemonic.Story,
			FolderID:    r.PostFormValue("folder"),
			Status:      domain.StatusLibrary,
		}

		// The image is a nice-to-have; the card stands without it.
		if ref, imgErr := s.gen.GenerateImage(r.Context(), card.ImagePrompt, settings.ImageModel); imgErr != nil {
			s.logger.Warn("image generation failed", "meaning", meaning, "error", imgErr)
		} else {
			card.ImageRef = ref
		}

		s.cards.Add(card)
		s.renderLibrary(w, r)
	}
}

func genErrorStatus(err error) int {
	switch {
	case errors.Is(err, gen.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, gen.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func genErrorMessage(err error) string {
	switch {
	case errors.Is(err, gen.ErrQuotaExceeded):
		return "Generation quota exhausted, try again later"
	case errors.Is(err, gen.ErrUnavailable):
		return "Generation service unavailable, try again later"
	default:
		return "Card generation failed"
	}
}

func (s *Server) handleActivateCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/cards/activate/")
		if _, ok := s.cards.Activate(id); !ok {
			http.NotFound(w, r)
			return
		}
		s.renderLibrary(w, r)
	}
}

func (s *Server) handleDeactivateCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.cards.Deactivate(strings.TrimPrefix(r.URL.Path, "/cards/deactivate/"))
		s.renderQueue(w, r)
	}
}

func (s *Server) handleDeleteCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.cards.Delete(strings.TrimPrefix(r.URL.Path, "/cards/delete/"))
		s.renderLibrary(w, r)
	}
}

func (s *Server) handleBulkDelete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Bad form", http.StatusBadRequest)
			return
		}
		s.cards.BulkDelete(r.PostForm["id"])
		s.renderLibrary(w, r)
	}
}

// handleSpeakCard pronounces a card's word through the configured voice.
func (s *Server) handleSpeakCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if s.speaker == nil || !s.speaker.Available() {
			http.Error(w, "Speech is not configured", http.StatusServiceUnavailable)
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/cards/speak/")
		card, ok := s.cards.Card(id)
		if !ok {
			http.NotFound(w, r)
			return
		}
		s.speaker.Speak(card.Word, s.cards.Settings().VoiceID)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleGetQueue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.renderQueue(w, r)
	}
}

type queueData struct {
	queueview.View
	Folders      []domain.Folder
	ActiveFolder string
}

func (s *Server) renderQueue(w http.ResponseWriter, r *http.Request) {
	folderID := queueFolder(r)
	view := queueview.Build(s.cards.ActiveCards(), folderID, s.clock.Now())
	s.render(w, "queue", queueData{
		View:         view,
		Folders:      s.cards.Folders(),
		ActiveFolder: folderID,
	})
}

func queueFolder(r *http.Request) string {
	if f := r.URL.Query().Get("folder"); f != "" {
		return f
	}
	return r.PostFormValue("folder")
}

func (s *Server) renderLibrary(w http.ResponseWriter, r *http.Request) {
	folderID := r.URL.Query().Get("folder")
	if folderID == "" {
		folderID = r.PostFormValue("folder")
	}
	s.render(w, "library", libraryData{
		Cards:        s.libraryCards(folderID),
		Folders:      s.cards.Folders(),
		ActiveFolder: folderID,
	})
}

// handleGetNextReview renders the front of the next due card.
func (s *Server) handleGetNextReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view := queueview.Build(s.cards.ActiveCards(), "", s.clock.Now())
		if view.DueCount == 0 {
			s.render(w, "review_done", nil)
			return
		}
		s.render(w, "card_front", view.Entries[0].Card)
	}
}

type cardBackData struct {
	Card      domain.Card
	NextDelay string
}

// handleShowAnswer renders the back of a card, with the interval the next
// acknowledgement will earn.
func (s *Server) handleShowAnswer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/review/answer/")
		card, ok := s.cards.Card(id)
		if !ok {
			http.NotFound(w, r)
			return
		}
		s.render(w, "card_back", cardBackData{
			Card:      card,
			NextDelay: srs.Label(srs.Clamp(card.IntervalIndex + 1)),
		})
	}
}

// handlePostReview acknowledges a review and renders whatever is due next.
func (s *Server) handlePostReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/review/")
		if _, ok := s.cards.AcknowledgeReview(id); !ok {
			http.NotFound(w, r)
			return
		}
		s.handleGetNextReview()(w, r)
	}
}

func (s *Server) handlePostFolder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		name := strings.TrimSpace(r.PostFormValue("name"))
		if name == "" {
			http.Error(w, "Folder name cannot be empty", http.StatusBadRequest)
			return
		}
		s.cards.CreateFolder(name)
		s.renderLibrary(w, r)
	}
}

func (s *Server) handleDeleteFolder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.cards.DeleteFolder(strings.TrimPrefix(r.URL.Path, "/folders/"))
		s.renderLibrary(w, r)
	}
}

type settingsData struct {
	Settings   domain.Settings
	SpeechOK   bool
	GenEnabled bool
}

// handleSettings handles both GET and POST for the settings panel.
func (s *Server) handleSettings() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
		case http.MethodPost:
			settings := domain.Settings{
				VoiceID:    r.PostFormValue("voice"),
				TextModel:  r.PostFormValue("text_model"),
				ImageModel: r.PostFormValue("image_model"),
			}
			s.cards.UpdateSettings(settings)
			if r.PostFormValue("preview") != "" && s.speaker != nil && s.speaker.Available() {
				s.speaker.Speak("Merhaba", settings.VoiceID)
			}
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.render(w, "settings", settingsData{
			Settings:   s.cards.Settings(),
			SpeechOK:   s.speaker != nil && s.speaker.Available(),
			GenEnabled: s.gen != nil && s.gen.Enabled(),
		})
	}
}

// handleSources handles both GET and POST for the deck sources panel.
func (s *Server) handleSources() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			s.renderSources(w, "sources", nil)
		case http.MethodPost:
			path := strings.TrimSpace(r.PostFormValue("path"))
			if path == "" {
				http.Error(w, "Path cannot be empty", http.StatusBadRequest)
				return
			}
			if _, err := s.db.InsertSource(path, deck.KindForPath(path)); err != nil {
				s.logger.Error("failed to insert deck source", "path", path, "error", err)
				http.Error(w, "Failed to add source", http.StatusInternalServerError)
				return
			}
			s.renderSources(w, "source_list", nil)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func (s *Server) handleDeleteSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/sources/"), 10, 64)
		if err != nil {
			http.Error(w, "Invalid source ID", http.StatusBadRequest)
			return
		}
		if err := s.db.DeleteSource(id); err != nil {
			s.logger.Error("failed to delete deck source", "source_id", id, "error", err)
			http.Error(w, "Failed to delete source", http.StatusInternalServerError)
			return
		}
		s.renderSources(w, "source_list", nil)
	}
}

// handlePostSync imports every configured source in the foreground and
// re-renders the source list with the run's summary folded in, so the
// response stays a single fragment for the swap target.
func (s *Server) handlePostSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		summary := s.importer.SyncAll()
		s.renderSources(w, "source_list", &summary)
	}
}

func (s *Server) renderSources(w http.ResponseWriter, name string, summary *deck.Summary) {
	sources, err := s.db.GetAllSources()
	if err != nil {
		s.logger.Error("failed to load deck sources", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.render(w, name, map[string]any{"Sources": sources, "Summary": summary})
}

// Run serves until the context is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("web interface listening", "addr", addr)

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}
