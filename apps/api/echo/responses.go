package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type (
	// Response is the envelope wrapping every API payload, success or error.
	Response struct {
		Success bool        `json:"success"`
		Message string      `json:"message"`
		Data    interface{} `json:"data,omitempty"`
		Meta    *Meta       `json:"meta,omitempty"`
		Errors  interface{} `json:"errors,omitempty"`
	}

	// Meta carries pagination info for list responses.
	Meta struct {
		Page  int   `json:"page"`
		Limit int   `json:"limit"`
		Total int64 `json:"total"`
	}
)

func respond(ctx echo.Context, code int, msg string, data interface{}) error {
	return ctx.JSON(code, Response{Success: true, Message: msg, Data: data})
}

func respondOK(ctx echo.Context, msg string, data interface{}) error {
	return respond(ctx, http.StatusOK, msg, data)
}

func respondCreated(ctx echo.Context, msg string, data interface{}) error {
	return respond(ctx, http.StatusCreated, msg, data)
}

func respondList(ctx echo.Context, msg string, data interface{}, meta *Meta) error {
	return ctx.JSON(http.StatusOK, Response{Success: true, Message: msg, Data: data, Meta: meta})
}
