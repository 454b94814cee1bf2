// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package app implements the fish-log daemon runtime.
//
// It ties the HTTP API server and the background workers into a single
// process lifecycle and releases the sync core's resources on exit.
package app
