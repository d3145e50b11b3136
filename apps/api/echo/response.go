package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Response is the envelope of every API response.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Details interface{} `json:"details,omitempty"`
	Count   *int        `json:"count,omitempty"`
}

func respond(ctx echo.Context, code int, data interface{}, msg ...string) error {
	resp := Response{Success: true, Data: data}
	if len(msg) > 0 {
		resp.Message = msg[0]
	}
	return ctx.JSON(code, resp)
}

func respondOK(ctx echo.Context, data interface{}, msg ...string) error {
	return respond(ctx, http.StatusOK, data, msg...)
}

func respondCreated(ctx echo.Context, data interface{}, msg ...string) error {
	return respond(ctx, http.StatusCreated, data, msg...)
}

// respondPage sends one page of a paginated listing along with the total count.
func respondPage(ctx echo.Context, data interface{}, count int) error {
	return ctx.JSON(http.StatusOK, Response{Success: true, Data: data, Count: &count})
}

func respondMessage(ctx echo.Context, msg string) error {
	return ctx.JSON(http.StatusOK, Response{Success: true, Message: msg})
}
