// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import "errors"

// Sentinel errors of request parsing. Callers can match against them with
// [errors.Is].
var (
	// ErrEmptyAuthorizationHeader is returned by the auth middleware when the
	// incoming request does not include an "Authorization" header at all.
	ErrEmptyAuthorizationHeader = errors.New("empty `Authorization` header")

	// ErrInvalidAuthorizationHeader is returned when the header is not of the
	// form "Bearer <token>".
	ErrInvalidAuthorizationHeader = errors.New("invalid `Authorization` header")

	// ErrInvalidToken is returned when the bearer token fails validation.
	ErrInvalidToken = errors.New("token is expired or invalid")

	ErrInvalidJSON = errors.New("invalid JSON was passed")

	// ErrInvalidID is returned when a path id cannot be parsed.
	ErrInvalidID = errors.New("invalid id in path")

	// ErrUnknownCollection is returned by the import endpoint for a
	// collection that cannot be imported.
	ErrUnknownCollection = errors.New("unknown collection")

	ErrTooManyRequests = errors.New("too many requests")
)
