package handler

import (
	"github.com/go-chi/chi/v5"
)

// ChatRoutes registers the chat endpoints on r. Authentication is applied by the caller.
func ChatRoutes(r chi.Router, conv *ConversationHandler, msg *MessageHandler) {
	r.Get("/conversations", conv.List)
	r.Route("/conversations/{id}", func(r chi.Router) {
		r.Get("/messages", conv.History)
		r.Post("/messages", conv.Send)
		r.Put("/read", conv.MarkRead)
		r.Delete("/", conv.Delete)
	})
	r.Post("/messages", msg.Send)
	r.Get("/stats", conv.Stats)
	r.Get("/search", conv.Search)
}
