// internal/service/voucher/interfaces/http_handler.go
package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"flashdeal/internal/pkg/logger"
	"flashdeal/internal/service/voucher/application"
	"flashdeal/internal/service/voucher/domain"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// UserIDHeader 由网关在认证后写入的用户 ID
const UserIDHeader = "X-User-Id"

// 拒绝原因
const (
	ReasonSoldOut           = "SOLD_OUT"
	ReasonDuplicatePurchase = "DUPLICATE_PURCHASE"
	ReasonNotStarted        = "NOT_STARTED"
	ReasonEnded             = "ENDED"
	ReasonTryAgain          = "TRY_AGAIN"
)

// VoucherHandler 封装了优惠券与秒杀下单的 HTTP 处理器
type VoucherHandler struct {
	orders   *application.VoucherOrderService
	vouchers *application.VoucherService
}

func NewVoucherHandler(orders *application.VoucherOrderService, vouchers *application.VoucherService) *VoucherHandler {
	return &VoucherHandler{orders: orders, vouchers: vouchers}
}

// RegisterRoutes 在 router 上注册所有路由
func (h *VoucherHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/voucher-order/seckill/{id:[0-9]+}", h.handleSeckill).Methods(http.MethodPost)
	r.HandleFunc("/voucher/seckill", h.handleAddSeckillVoucher).Methods(http.MethodPost)
	r.HandleFunc("/voucher/seckill/{id:[0-9]+}/sync", h.handleSyncStock).Methods(http.MethodPost)
	r.HandleFunc("/voucher/{id:[0-9]+}", h.handleGetVoucher).Methods(http.MethodGet)
}

func (h *VoucherHandler) handleSeckill(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	voucherID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid voucher id", http.StatusBadRequest)
		return
	}
	userID, err := strconv.ParseInt(r.Header.Get(UserIDHeader), 10, 64)
	if err != nil || userID <= 0 {
		http.Error(w, "missing user", http.StatusUnauthorized)
		return
	}

	orderID, err := h.orders.SeckillVoucher(ctx, userID, voucherID)
	if err != nil {
		status, reason := rejection(err)
		if status == http.StatusServiceUnavailable {
			logger.Ctx(ctx).Error().Err(err).Int64("voucher_id", voucherID).Msg("Seckill unavailable")
		}
		writeJSON(w, status, application.RejectionResponse{Reason: reason})
		return
	}
	writeJSON(w, http.StatusOK, application.SeckillResponse{OrderID: orderID})
}

func (h *VoucherHandler) handleAddSeckillVoucher(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	var req application.AddSeckillVoucherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	id, err := h.vouchers.AddSeckillVoucher(ctx, req.ToDomain())
	if err != nil {
		var statusCode int
		switch {
		case errors.Is(err, domain.ErrInvalidVoucher):
			statusCode = http.StatusBadRequest
		default:
			statusCode = http.StatusInternalServerError
		}
		http.Error(w, err.Error(), statusCode)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"id": id})
}

func (h *VoucherHandler) handleSyncStock(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	voucherID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid voucher id", http.StatusBadRequest)
		return
	}
	if err := h.vouchers.SyncVoucherStock(ctx, voucherID); err != nil {
		var statusCode int
		switch {
		case errors.Is(err, domain.ErrVoucherNotFound):
			statusCode = http.StatusNotFound
		case errors.Is(err, domain.ErrInvalidVoucher):
			statusCode = http.StatusBadRequest
		default:
			statusCode = http.StatusInternalServerError
		}
		http.Error(w, err.Error(), statusCode)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *VoucherHandler) handleGetVoucher(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	voucherID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid voucher id", http.StatusBadRequest)
		return
	}
	v, err := h.vouchers.GetVoucher(ctx, voucherID)
	if err != nil {
		if errors.Is(err, domain.ErrVoucherNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, application.NewVoucherResponse(v))
}

// rejection 把准入错误映射为 HTTP 状态码和机器可识别的原因
func rejection(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrSoldOut):
		return http.StatusConflict, ReasonSoldOut
	case errors.Is(err, domain.ErrDuplicatePurchase):
		return http.StatusConflict, ReasonDuplicatePurchase
	case errors.Is(err, domain.ErrNotStarted):
		return http.StatusConflict, ReasonNotStarted
	case errors.Is(err, domain.ErrEnded):
		return http.StatusConflict, ReasonEnded
	default:
		return http.StatusServiceUnavailable, ReasonTryAgain
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
