package handler

import (
	"errors"
	"log"
	"net/http"

	"thriftmarket/internal/api"
	"thriftmarket/internal/config"
	"thriftmarket/internal/models"
	"thriftmarket/internal/service"
)

// AdminHandler serves every admin list surface with the same shape: full
// fetch, client-side filter and pagination, modal-style create/edit, and
// confirmed deletes. Mounted behind the admin/seller route gate.
type AdminHandler struct {
	logger       *log.Logger
	adminService *service.AdminService
	pages        config.PageSizes
}

func NewAdminHandler(logger *log.Logger, adminService *service.AdminService, pages config.PageSizes) *AdminHandler {
	return &AdminHandler{
		logger:       logger,
		adminService: adminService,
		pages:        pages,
	}
}

func (h *AdminHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/admin/products":
		h.products(w, r)
	case "/admin/products/stats":
		h.productStats(w, r)
	case "/admin/users":
		h.users(w, r)
	case "/admin/users/stats":
		h.userStats(w, r)
	case "/admin/sales":
		h.sales(w, r)
	case "/admin/reviews":
		h.reviews(w, r)
	case "/admin/reviews/helpful":
		h.reviewHelpful(w, r)
	case "/admin/reviews/status":
		h.reviewStatus(w, r)
	case "/admin/newsletters":
		h.newsletters(w, r)
	case "/admin/newsletters/unsubscribe":
		h.newsletterToggle(w, r, false)
	case "/admin/newsletters/reactivate":
		h.newsletterToggle(w, r, true)
	case "/admin/newsletters/stats":
		h.newsletterStats(w, r)
	case "/admin/stock":
		h.stock(w, r)
	case "/admin/supply":
		h.supply(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *AdminHandler) products(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		page, err := h.adminService.ListProducts(r.Context(), queryFromRequest(r, h.pages.Products))
		if err != nil {
			h.writeAdminError(w, err)
			return
		}
		writeJSON(w, h.logger, http.StatusOK, page)
	case http.MethodPost, http.MethodPut:
		var product models.Product
		if err := decodeJSON(r, &product); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if product.Name == "" {
			http.Error(w, "name is required", http.StatusBadRequest)
			return
		}
		saved, err := h.adminService.SaveProduct(r.Context(), &product)
		if err != nil {
			// Echo the submitted values back so the form survives the failure.
			h.writeSaveError(w, err, product)
			return
		}
		writeJSON(w, h.logger, http.StatusOK, saved)
	case http.MethodDelete:
		err := h.adminService.DeleteProduct(r.Context(), r.URL.Query().Get("id"), r.URL.Query().Get("confirm") == "true")
		if err != nil {
			h.writeAdminError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AdminHandler) productStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.adminService.ProductStats(r.Context())
	if err != nil {
		h.writeAdminError(w, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, stats)
}

func (h *AdminHandler) users(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		page, err := h.adminService.ListUsers(r.Context(), queryFromRequest(r, h.pages.Users))
		if err != nil {
			h.writeAdminError(w, err)
			return
		}
		writeJSON(w, h.logger, http.StatusOK, page)
	case http.MethodPut:
		var user models.User
		if err := decodeJSON(r, &user); err != nil || user.ID == "" {
			http.Error(w, "user with id is required", http.StatusBadRequest)
			return
		}
		saved, err := h.adminService.SaveUser(r.Context(), &user)
		if err != nil {
			h.writeSaveError(w, err, user)
			return
		}
		writeJSON(w, h.logger, http.StatusOK, saved)
	case http.MethodDelete:
		err := h.adminService.DeleteUser(r.Context(), r.URL.Query().Get("id"), r.URL.Query().Get("confirm") == "true")
		if err != nil {
			h.writeAdminError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AdminHandler) userStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.adminService.UserStats(r.Context())
	if err != nil {
		h.writeAdminError(w, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, stats)
}

func (h *AdminHandler) sales(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	page, err := h.adminService.ListSales(r.Context(), queryFromRequest(r, h.pages.Sales))
	if err != nil {
		h.writeAdminError(w, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, page)
}

func (h *AdminHandler) reviews(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		page, err := h.adminService.ListReviews(r.Context(), queryFromRequest(r, h.pages.Reviews))
		if err != nil {
			h.writeAdminError(w, err)
			return
		}
		writeJSON(w, h.logger, http.StatusOK, page)
	case http.MethodDelete:
		err := h.adminService.DeleteReview(r.Context(), r.URL.Query().Get("id"), r.URL.Query().Get("confirm") == "true")
		if err != nil {
			h.writeAdminError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AdminHandler) reviewHelpful(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	review, err := h.adminService.MarkReviewHelpful(r.Context(), r.URL.Query().Get("id"))
	if err != nil {
		h.writeAdminError(w, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, review)
}

func (h *AdminHandler) reviewStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		ID     string              `json:"id"`
		Status models.ReviewStatus `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil || req.ID == "" || req.Status == "" {
		http.Error(w, "id and status are required", http.StatusBadRequest)
		return
	}
	review, err := h.adminService.SetReviewStatus(r.Context(), req.ID, req.Status)
	if err != nil {
		h.writeAdminError(w, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, review)
}

func (h *AdminHandler) newsletters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	page, err := h.adminService.ListNewsletterSubscribers(r.Context(), queryFromRequest(r, h.pages.Newsletters))
	if err != nil {
		h.writeAdminError(w, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, page)
}

func (h *AdminHandler) newsletterToggle(w http.ResponseWriter, r *http.Request, reactivate bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "id query parameter is required", http.StatusBadRequest)
		return
	}

	var err error
	if reactivate {
		err = h.adminService.ReactivateNewsletter(r.Context(), id)
	} else {
		err = h.adminService.UnsubscribeNewsletter(r.Context(), id)
	}
	if err != nil {
		h.writeAdminError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) newsletterStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.adminService.NewsletterStats(r.Context())
	if err != nil {
		h.writeAdminError(w, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, stats)
}

func (h *AdminHandler) stock(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, h.logger, http.StatusOK, h.adminService.ListStock(queryFromRequest(r, h.pages.Stock)))
	case http.MethodPost, http.MethodPut:
		var record models.StockRecord
		if err := decodeJSON(r, &record); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if record.Name == "" {
			http.Error(w, "name is required", http.StatusBadRequest)
			return
		}
		writeJSON(w, h.logger, http.StatusOK, h.adminService.SaveStock(&record))
	case http.MethodDelete:
		err := h.adminService.DeleteStock(r.URL.Query().Get("id"), r.URL.Query().Get("confirm") == "true")
		if err != nil {
			h.writeAdminError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AdminHandler) supply(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, h.logger, http.StatusOK, h.adminService.ListSupply(queryFromRequest(r, h.pages.Supply)))
	case http.MethodPost, http.MethodPut:
		var record models.SupplyRecord
		if err := decodeJSON(r, &record); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if record.Supplier == "" {
			http.Error(w, "supplier is required", http.StatusBadRequest)
			return
		}
		writeJSON(w, h.logger, http.StatusOK, h.adminService.SaveSupply(&record))
	case http.MethodDelete:
		err := h.adminService.DeleteSupply(r.URL.Query().Get("id"), r.URL.Query().Get("confirm") == "true")
		if err != nil {
			h.writeAdminError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AdminHandler) writeAdminError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrConfirmRequired):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, service.ErrRecordNotFound), errors.Is(err, api.ErrNotFound):
		http.Error(w, "record not found", http.StatusNotFound)
	case errors.Is(err, api.ErrUnauthorized):
		writeLoginRedirect(w)
	case errors.Is(err, api.ErrBackend):
		h.logger.Printf("Admin backend error: %v", err)
		http.Error(w, "backend unavailable", http.StatusBadGateway)
	default:
		h.logger.Printf("Admin error: %v", err)
		http.Error(w, "An unexpected error occurred", http.StatusInternalServerError)
	}
}

// writeSaveError reports a failed save together with the submitted record so
// the caller can reopen the form pre-filled.
func (h *AdminHandler) writeSaveError(w http.ResponseWriter, err error, submitted interface{}) {
	status := http.StatusBadGateway
	if errors.Is(err, api.ErrUnauthorized) {
		writeLoginRedirect(w)
		return
	}
	if errors.Is(err, api.ErrNotFound) {
		status = http.StatusNotFound
	}
	h.logger.Printf("Admin save failed: %v", err)
	writeJSON(w, h.logger, status, map[string]interface{}{
		"message":   err.Error(),
		"submitted": submitted,
	})
}
