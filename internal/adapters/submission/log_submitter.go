package submission

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"route-invoice-service/internal/domain"
)

// LogSubmitter writes submissions to the process log. It stands in for the
// broker in local runs where RABBITMQ_URL is unset.
type LogSubmitter struct{}

func (LogSubmitter) Submit(ctx context.Context, sub domain.InvoiceSubmission) error {
	body, err := json.Marshal(newInvoiceSubmitted(sub))
	if err != nil {
		return fmt.Errorf("submit invoice: marshal: %w", err)
	}
	log.Printf("invoice submitted submission_id=%s draft_id=%s total=%s body=%s",
		sub.SubmissionID, sub.DraftID, domain.FormatMoney(sub.Summary.Total), body)
	return nil
}
