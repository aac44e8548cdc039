package http

import (
	"net/http"
	"time"

	httpmw "github.com/classpulse/poll-service/internal/transport/http/middleware"
	"github.com/classpulse/poll-service/internal/transport/ws"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *Handler, wsServer *ws.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewareChi.RequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(middlewareChi.Recoverer)

	// WS endpoint
	r.Get("/ws", wsServer.HandleWS)

	r.Group(func(pr chi.Router) {
		pr.Use(middlewareChi.Timeout(30 * time.Second))

		pr.Route("/poll", func(pl chi.Router) {
			pl.Get("/", h.GetPoll)
			pl.Get("/results", h.GetResults)
			pl.Post("/responses", h.SubmitResponse)

			pl.Group(func(t chi.Router) {
				t.Use(httpmw.RequireTeacher)
				t.Post("/", h.CreatePoll)
				t.Post("/start", h.StartPoll)
				t.Post("/end", h.EndPoll)
				t.Get("/history", h.ListHistory)
			})
		})

		pr.Route("/participants", func(pt chi.Router) {
			pt.Post("/", h.Join)
			pt.Get("/", h.ListParticipants)
			pt.With(httpmw.RequireTeacher).Delete("/{id}", h.Kick)
		})

		pr.Route("/chat", func(ch chi.Router) {
			ch.Get("/", h.GetChatHistory)
			ch.Post("/", h.PostChatMessage)
			ch.With(httpmw.RequireTeacher).Delete("/", h.ClearChat)
		})
	})

	// health
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
