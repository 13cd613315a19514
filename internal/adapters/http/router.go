package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { writeSuccess(w, http.StatusOK, "ok", nil) })
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) { writeSuccess(w, http.StatusOK, "ready", nil) })

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(handler.authMiddleware)

			r.Post("/quotes", handler.quote)
			r.Get("/wallet", handler.getWallet)
			r.Post("/delivery-requests", handler.submit)
			r.Get("/delivery-requests/{request_id}", handler.getRequest)
			r.Post("/delivery-requests/{request_id}/cancel", handler.cancel)
			r.Post("/delivery-requests/{request_id}/confirm-items", handler.confirmItems)
			r.Post("/delivery-requests/{request_id}/dispute", handler.fileDispute)
			r.Get("/delivery-requests/{request_id}/lock-evaluation", handler.lockEvaluation)

			r.Post("/admin/delivery-requests/{request_id}/receipt-verifications", handler.recordReceiptVerification)
			r.Post("/admin/delivery-requests/{request_id}/unlock", handler.unlock)
			r.Get("/admin/delivery-requests/{request_id}/audit-log", handler.auditLog)
			r.Post("/admin/confirmations/{confirmation_id}/resolve", handler.resolveDispute)
		})
	})
	return r
}
