// internal/service/shop/interfaces/http_handler.go
package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"flashdeal/internal/pkg/logger"
	"flashdeal/internal/service/shop/application"
	"flashdeal/internal/service/shop/domain"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// ShopHandler 商铺查询、更新与缓存预热
type ShopHandler struct {
	shops *application.ShopService
}

func NewShopHandler(shops *application.ShopService) *ShopHandler {
	return &ShopHandler{shops: shops}
}

func (h *ShopHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/shop/{id:[0-9]+}", h.handleQueryShop).Methods(http.MethodGet)
	r.HandleFunc("/shop", h.handleUpdateShop).Methods(http.MethodPut)
	r.HandleFunc("/shop/{id:[0-9]+}/warm", h.handleWarmShop).Methods(http.MethodPost)
}

func (h *ShopHandler) handleQueryShop(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid shop id", http.StatusBadRequest)
		return
	}
	shop, err := h.shops.QueryShopByID(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrShopNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, domain.ErrBusy):
			w.Header().Set("Retry-After", "1")
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
		default:
			logger.Ctx(ctx).Error().Err(err).Int64("shop_id", id).Msg("Failed to query shop")
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
		}
		return
	}
	writeJSON(w, http.StatusOK, shop)
}

func (h *ShopHandler) handleUpdateShop(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	var shop domain.Shop
	if err := json.NewDecoder(r.Body).Decode(&shop); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.shops.UpdateShop(ctx, &shop); err != nil {
		var statusCode int
		switch {
		case errors.Is(err, domain.ErrInvalidShop):
			statusCode = http.StatusBadRequest
		case errors.Is(err, domain.ErrShopNotFound):
			statusCode = http.StatusNotFound
		default:
			statusCode = http.StatusInternalServerError
		}
		http.Error(w, err.Error(), statusCode)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ShopHandler) handleWarmShop(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid shop id", http.StatusBadRequest)
		return
	}
	// ttl 形如 30s、10m，缺省使用配置
	var ttl time.Duration
	if raw := r.URL.Query().Get("ttl"); raw != "" {
		if ttl, err = time.ParseDuration(raw); err != nil {
			http.Error(w, "invalid ttl", http.StatusBadRequest)
			return
		}
	}
	if err := h.shops.WarmShop(ctx, id, ttl); err != nil {
		if errors.Is(err, domain.ErrShopNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
