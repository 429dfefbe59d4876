package qc

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/warehouse-flow/api/middleware"
	"github.com/angelmondragon/warehouse-flow/api/responses"
	"github.com/angelmondragon/warehouse-flow/api/validators"
	"github.com/angelmondragon/warehouse-flow/internal/clients"
	internalqc "github.com/angelmondragon/warehouse-flow/internal/qc"
	"github.com/angelmondragon/warehouse-flow/pkg/logger"
	"github.com/angelmondragon/warehouse-flow/pkg/pagination"
)

type sendRequest struct {
	OrderID int64 `json:"order_id" validate:"required,gt=0"`
}

type recordResultRequest struct {
	Status string `json:"status" validate:"required,oneof=PASSED FAILED passed failed"`
	Notes  string `json:"notes" validate:"max=1000"`
}

// Send hands an approved order to quality control.
func Send(svc internalqc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sendRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, req.OrderID)
		}
		handoff, err := svc.SendOrderToQC(ctx, internalqc.SendOrderInput{
			OrderID: req.OrderID,
			SentBy:  middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, handoff)
	}
}

func RecordResult(svc internalqc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logID, err := validators.ParsePathID(r, "logID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req recordResultRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entry, err := svc.RecordQCResult(r.Context(), internalqc.RecordResultInput{
			QCLogID:     logID,
			Status:      req.Status,
			Notes:       req.Notes,
			ProcessedBy: middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entry)
	}
}

func List(svc internalqc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		query := r.URL.Query()
		page, err := svc.ListQCLogs(r.Context(), internalqc.ListParams{
			Status:   strings.TrimSpace(query.Get("status")),
			ItemCode: strings.TrimSpace(query.Get("item_code")),
			Limit:    limit,
			Cursor:   strings.TrimSpace(query.Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func Get(svc internalqc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logID, err := validators.ParsePathID(r, "logID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entry, err := svc.GetQCLog(r.Context(), logID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entry)
	}
}

// SentOrders filters the given order ids down to those with a hand-off.
func SentOrders(svc internalqc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req clients.SentOrdersRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ids, err := svc.ListSentOrderIDs(r.Context(), req.OrderIDs)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if ids == nil {
			ids = []int64{}
		}
		responses.WriteSuccess(w, clients.SentOrdersResponse{OrderIDs: ids})
	}
}
