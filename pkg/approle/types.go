// secretcore - M2M secrets management core
// Copyright (C) 2025 secretcore authors
//
// This file is part of secretcore.
//
// secretcore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// secretcore is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with secretcore. If not, see <https://www.gnu.org/licenses/>.

// Package approle implements secretcore's machine-identity authentication:
// role_id/secret_id bootstrap credentials and the session tokens minted
// from a successful login.
package approle

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleOptions configures a role at creation time.
type RoleOptions struct {
	TokenTTL      time.Duration
	TokenMaxTTL   time.Duration
	SecretIDTTL   time.Duration
	SecretIDBound bool
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Token     string
	RoleName  string
	EntityID  string
	Policies  []string
	ExpiresAt time.Time
}

// ValidateResult is returned by a successful Validate.
type ValidateResult struct {
	RoleName   string
	EntityID   string
	Policies   []string
	ExpiresAt  time.Time
	CertSerial string
}

// sessionClaims is the JWT payload for a secretcore session token.
// Tokens are self-issued and self-verified (no external party ever
// checks the signature), so HS256 with a master-key-derived subkey is
// used rather than an asymmetric scheme.
type sessionClaims struct {
	jwt.RegisteredClaims
	RoleName   string   `json:"role"`
	EntityID   string   `json:"entity_id"`
	Policies   []string `json:"policies"`
	CertSerial string   `json:"cert_serial,omitempty"`
}
