package httpapi

import "github.com/gofiber/fiber/v2"

// ErrorResponse is the uniform JSON error body every handler failure
// produces: {error, detail?, hint?}.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
	Hint   string `json:"hint,omitempty"`
}

func writeError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(ErrorResponse{Error: message})
}

func writeErrorDetail(c *fiber.Ctx, status int, message, detail string) error {
	return c.Status(status).JSON(ErrorResponse{Error: message, Detail: detail})
}

func writeErrorHint(c *fiber.Ctx, status int, message, detail, hint string) error {
	return c.Status(status).JSON(ErrorResponse{Error: message, Detail: detail, Hint: hint})
}

func unauthorized(c *fiber.Ctx, detail string) error {
	return writeErrorDetail(c, fiber.StatusUnauthorized, "unauthorized", detail)
}

func badRequest(c *fiber.Ctx, detail string) error {
	return writeErrorDetail(c, fiber.StatusBadRequest, "bad_request", detail)
}

func notFound(c *fiber.Ctx, detail string) error {
	return writeErrorDetail(c, fiber.StatusNotFound, "not_found", detail)
}

func serviceUnavailable(c *fiber.Ctx, detail string) error {
	return writeErrorDetail(c, fiber.StatusServiceUnavailable, "service_unavailable", detail)
}

func internalError(c *fiber.Ctx, detail string) error {
	return writeErrorDetail(c, fiber.StatusInternalServerError, "internal_error", detail)
}
