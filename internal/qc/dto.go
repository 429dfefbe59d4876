package qc

import (
	"time"

	"github.com/angelmondragon/warehouse-flow/pkg/db/models"
	"github.com/angelmondragon/warehouse-flow/pkg/enums"
)

type SendOrderInput struct {
	OrderID int64
	SentBy  string
}

type RecordResultInput struct {
	QCLogID     int64
	Status      string
	Notes       string
	ProcessedBy string
}

// ListParams filters the QC log listing; ItemCode narrows it to one item's
// inspection history.
type ListParams struct {
	Status   string
	ItemCode string
	Limit    int
	Cursor   string
}

type QCLogDTO struct {
	ID          int64          `json:"id"`
	HandoffID   int64          `json:"handoff_id"`
	OrderID     int64          `json:"order_id"`
	OrderNumber string         `json:"order_number"`
	BatchNumber string         `json:"batch_number"`
	ItemCode    string         `json:"item_code"`
	ItemName    string         `json:"item_name"`
	Quantity    int            `json:"quantity"`
	Unit        string         `json:"unit"`
	QCStatus    enums.QCStatus `json:"qc_status"`
	QCNotes     *string        `json:"qc_notes,omitempty"`
	ProcessedBy *string        `json:"processed_by,omitempty"`
	ProcessedAt *time.Time     `json:"processed_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// HandoffDTO is returned when an order enters quality control.
type HandoffDTO struct {
	ID          int64      `json:"id"`
	OrderID     int64      `json:"order_id"`
	OrderNumber string     `json:"order_number"`
	BatchNumber string     `json:"batch_number"`
	SentBy      *string    `json:"sent_by,omitempty"`
	Logs        []QCLogDTO `json:"logs"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toQCLogDTO(log models.QCLog) QCLogDTO {
	return QCLogDTO{
		ID:          log.ID,
		HandoffID:   log.HandoffID,
		OrderID:     log.OrderID,
		OrderNumber: log.OrderNumber,
		BatchNumber: log.BatchNumber,
		ItemCode:    log.ItemCode,
		ItemName:    log.ItemName,
		Quantity:    log.Quantity,
		Unit:        log.Unit,
		QCStatus:    log.QCStatus,
		QCNotes:     log.QCNotes,
		ProcessedBy: log.ProcessedBy,
		ProcessedAt: log.ProcessedAt,
		CreatedAt:   log.CreatedAt,
	}
}

func toHandoffDTO(handoff models.QCHandoff) HandoffDTO {
	dto := HandoffDTO{
		ID:          handoff.ID,
		OrderID:     handoff.OrderID,
		OrderNumber: handoff.OrderNumber,
		BatchNumber: handoff.BatchNumber,
		SentBy:      handoff.SentBy,
		Logs:        make([]QCLogDTO, 0, len(handoff.Logs)),
		CreatedAt:   handoff.CreatedAt,
	}
	for _, log := range handoff.Logs {
		dto.Logs = append(dto.Logs, toQCLogDTO(log))
	}
	return dto
}
