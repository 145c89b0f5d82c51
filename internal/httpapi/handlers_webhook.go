package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"indexbridge/internal/metrics"
	"indexbridge/internal/webhook"
)

func (s *Server) handleScraperWebhook(c *fiber.Ctx) error {
	sig := c.Get("X-Signature")
	body := c.Body()

	accepted, err := s.Webhook.ReceiveScraperEvent(c.Context(), body, sig)
	if err != nil {
		if rejected, ok := err.(webhook.Rejected); ok {
			status := fiber.StatusBadRequest
			if isSignatureRejection(rejected.Reason) {
				status = fiber.StatusUnauthorized
			}
			metrics.RecordWebhookEvent("scraper", "rejected")
			return writeError(c, status, rejected.Reason)
		}
		metrics.RecordWebhookEvent("scraper", "error")
		return internalError(c, err.Error())
	}

	metrics.RecordWebhookEvent("scraper", "accepted")
	return c.JSON(fiber.Map{"job_id": accepted.JobID, "event_id": accepted.EventID})
}

func (s *Server) handleChangeDetectionWebhook(c *fiber.Ctx) error {
	sig := c.Get("X-Signature")
	body := c.Body()

	accepted, err := webhook.ReceiveChangeEvent(c.Context(), s.Store, s.Config.Secrets.ChangeDetectionHMACSecret, body, sig)
	if err != nil {
		if rejected, ok := err.(webhook.Rejected); ok {
			status := fiber.StatusBadRequest
			if isSignatureRejection(rejected.Reason) {
				status = fiber.StatusUnauthorized
			}
			metrics.RecordWebhookEvent("change_detection", "rejected")
			return writeError(c, status, rejected.Reason)
		}
		metrics.RecordWebhookEvent("change_detection", "error")
		return internalError(c, err.Error())
	}

	metrics.RecordWebhookEvent("change_detection", "accepted")
	return c.JSON(fiber.Map{"job_id": accepted.JobID, "event_id": accepted.EventID})
}

func isSignatureRejection(reason string) bool {
	return len(reason) >= 12 && reason[:12] == "unauthorized"
}
