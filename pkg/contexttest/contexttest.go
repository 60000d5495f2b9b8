// Copyright 2025 The Warden Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package contexttest builds contexts carrying credentials for tests.
package contexttest

import (
	"context"
	"testing"

	"github.com/wardenos/warden/pkg/auth"
)

// Context returns a context carrying unprivileged user credentials, for use
// in tests.
func Context(t *testing.T) context.Context {
	t.Helper()
	creds := auth.NewUserCredentials(10, 10, nil)
	return auth.ContextWithCredentials(context.Background(), creds)
}

// RootContext returns a context carrying superuser credentials, for use in
// tests.
func RootContext(t *testing.T) context.Context {
	t.Helper()
	return auth.ContextWithCredentials(context.Background(), auth.NewRootCredentials())
}

// WithCredentials returns a context carrying the given credentials.
func WithCredentials(creds *auth.Credentials) context.Context {
	return auth.ContextWithCredentials(context.Background(), creds)
}
