package web

import (
	"fmt"
	"net/http"

	"github.com/ezberapp/ezber/internal/queueview"
)

// handleEvents streams server-sent events. Every scheduler tick becomes a
// "due" event carrying the current due count, so open pages can refresh
// the queue the moment a card comes due instead of waiting for a poll.
func (s *Server) handleEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		ticks := s.sched.Subscribe()
		defer s.sched.Unsubscribe(ticks)

		// An initial comment confirms the stream is live.
		fmt.Fprint(w, ": connected\n\n")
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case now := <-ticks:
				view := queueview.Build(s.cards.ActiveCards(), "", now)
				fmt.Fprintf(w, "event: due\ndata: %d\n\n", view.DueCount)
				flusher.Flush()
			}
		}
	}
}
