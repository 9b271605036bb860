package models

import (
	"github.com/miradorstack/benford-lab/internal/examples"
	"github.com/miradorstack/benford-lab/internal/session"
)

// IndexResponse is the entry point payload: a CSRF token for forms plus queued messages.
type IndexResponse struct {
	CSRFToken string             `json:"csrf_token"`
	Flashes   []session.Flash    `json:"flashes"`
	Examples  []examples.Dataset `json:"examples"`
}

// ErrorResponse is written for JSON API failures that do not redirect.
type ErrorResponse struct {
	Error string `json:"error"`
}
