// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package validators checks trip, weather and catch input before any I/O
// happens and strips markup characters from free text.
//
// A Validator accepts a value and, optionally, the names of the fields to
// check. Without field names every rule of the value's type applies.
package validators

import "context"

// Validator validates arbitrary input values.
type Validator interface {

	// Validate validates the provided input and optionally
	// restricts validation to specific named fields.
	Validate(context.Context, any, ...string) error
}
