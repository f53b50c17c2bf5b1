package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tablebook/internal/auth"
	"tablebook/internal/availability"
	"tablebook/internal/booking"
	"tablebook/internal/model"
	"tablebook/internal/restapi"
)

var (
	errBadRequest = errors.New("bad request")
	errNotFound   = errors.New("not found")
)

const retryMessage = "the reservation service is unavailable, please retry"

type errorBody struct {
	Error     string `json:"error"`
	Reason    string `json:"reason,omitempty"`
	Field     string `json:"field,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

type errorRule struct {
	match  func(err error) bool
	render func(err error) (int, errorBody)
}

func is(targets ...error) func(error) bool {
	return func(err error) bool {
		for _, t := range targets {
			if errors.Is(err, t) {
				return true
			}
		}
		return false
	}
}

func plain(status int) func(error) (int, errorBody) {
	return func(err error) (int, errorBody) {
		return status, errorBody{Error: err.Error()}
	}
}

var errorMapper = []errorRule{
	{
		match: func(err error) bool {
			var ve *booking.ValidationError
			return errors.As(err, &ve)
		},
		render: func(err error) (int, errorBody) {
			var ve *booking.ValidationError
			errors.As(err, &ve)
			return http.StatusUnprocessableEntity, errorBody{Error: ve.Message, Reason: ve.Reason, Field: ve.Field}
		},
	},
	{
		match: is(errBadRequest, booking.ErrInvalidInput, availability.ErrInvalidRequest,
			model.ErrInvalidCapacity, model.ErrMissingNumber),
		render: plain(http.StatusBadRequest),
	},
	{match: is(auth.ErrInvalidCredentials), render: plain(http.StatusUnauthorized)},
	{match: is(errNotFound), render: plain(http.StatusNotFound)},
	{
		match:  is(booking.ErrStaleResponse, booking.ErrBusy, booking.ErrSubmitted, booking.ErrTableUnavailable),
		render: plain(http.StatusConflict),
	},
	{
		match: func(err error) bool {
			var apiErr *restapi.APIError
			return errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500
		},
		render: func(err error) (int, errorBody) {
			var apiErr *restapi.APIError
			errors.As(err, &apiErr)
			msg := apiErr.Detail
			if msg == "" {
				msg = http.StatusText(apiErr.Status)
			}
			return apiErr.Status, errorBody{Error: msg}
		},
	},
}

// statusFor maps err to an HTTP answer. Anything unrecognised is treated as
// an upstream I/O failure.
func statusFor(err error) (int, errorBody) {
	for _, rule := range errorMapper {
		if rule.match(err) {
			return rule.render(err)
		}
	}
	return http.StatusBadGateway, errorBody{Error: retryMessage, Retryable: true}
}

func (s *Server) fail(c *gin.Context, err error) {
	status, body := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}
