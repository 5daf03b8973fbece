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

// Package core wires every subsystem package into the single object
// that implements secretcore's operation surface: seal/unseal, PKI,
// AppRole auth, policy, versioned secrets, dynamic leases, the audit
// log, and the agent session channel. This is the only package that
// wires all of those subsystem packages together.
package core

import (
	"context"
	"fmt"

	"github.com/sage-x-project/secretcore/internal/config"
	"github.com/sage-x-project/secretcore/internal/logger"
	"github.com/sage-x-project/secretcore/pkg/agentsession"
	"github.com/sage-x-project/secretcore/pkg/approle"
	"github.com/sage-x-project/secretcore/pkg/audit"
	"github.com/sage-x-project/secretcore/pkg/cryptoutil"
	"github.com/sage-x-project/secretcore/pkg/lease"
	"github.com/sage-x-project/secretcore/pkg/pki"
	"github.com/sage-x-project/secretcore/pkg/policy"
	"github.com/sage-x-project/secretcore/pkg/seal"
	"github.com/sage-x-project/secretcore/pkg/secrets"
	"github.com/sage-x-project/secretcore/pkg/storage"
)

// Core is the single point of entry for every operation secretcore
// exposes, whether driven by cmd/secretcorectl in-process or by
// pkg/agentsession over the wire.
type Core struct {
	store storage.Backend
	log   logger.Logger

	Seal     *seal.Manager
	PKI      *pki.Manager
	AppRole  *approle.Manager
	Policy   *policy.Engine
	Audit    *audit.Log
	Secrets  *secrets.Manager
	Lease    *lease.Manager
	Sessions *agentsession.Manager
}

// NewCore constructs every subsystem manager over store and wires them
// together per cfg. It does not start the lease sweeper or the agent
// session listener; callers start those explicitly once they decide to
// serve traffic (cmd/secretcore does so right after NewCore returns,
// before any unseal).
func NewCore(ctx context.Context, store storage.Backend, cfg *config.Config, log logger.Logger) (*Core, error) {
	sealMgr, err := seal.NewManager(ctx, store, log)
	if err != nil {
		return nil, fmt.Errorf("core: init seal manager: %w", err)
	}

	auditLog := audit.NewLog(store, sealMgr, log, cfg.Audit.MaxAppendRetries, cfg.Audit.RetryBaseDelay)
	sealMgr.SetAuditLog(auditLog)

	pkiMgr := pki.NewManager(store, sealMgr, auditLog, log)
	approleMgr := approle.NewManager(store, sealMgr, auditLog, log)
	policyEngine := policy.NewEngine(store, auditLog, log)
	secretsMgr := secrets.NewManager(store, sealMgr, policyEngine, auditLog, log, cfg.Secrets.RetentionWindow)
	leaseMgr := lease.NewManager(store, sealMgr, auditLog, log,
		cfg.Lease.SweepInterval, cfg.Lease.RevocationRetryBase, cfg.Lease.RevocationRetryMax, cfg.Lease.RevocationMaxAttempts)

	c := &Core{
		store:   store,
		log:     log,
		Seal:    sealMgr,
		PKI:     pkiMgr,
		AppRole: approleMgr,
		Policy:  policyEngine,
		Audit:   auditLog,
		Secrets: secretsMgr,
		Lease:   leaseMgr,
	}

	c.Sessions = agentsession.NewManager(c.handleFrame, c.validateSessionToken, log)
	return c, nil
}

// Start begins the lease sweeper's background loop. Callers should
// invoke this once unsealed and ready to serve traffic.
func (c *Core) Start(ctx context.Context) {
	c.Lease.StartSweep(ctx)
}

// Stop tears down background workers and live agent sessions.
func (c *Core) Stop() {
	c.Lease.Stop()
	c.Sessions.Close()
}

// SysInit bootstraps a fresh core with a totalShares/threshold Shamir
// split of a freshly generated master key.
func (c *Core) SysInit(ctx context.Context, totalShares, threshold int) ([]cryptoutil.Share, error) {
	shares, err := c.Seal.Initialize(ctx, totalShares, threshold)
	if err != nil {
		if err == seal.ErrAlreadyInitialized {
			return nil, ErrAlreadyInitialized
		}
		return nil, fmt.Errorf("core: sys.init: %w", err)
	}
	return shares, nil
}

// SysUnseal submits one key share toward reconstructing the master key.
func (c *Core) SysUnseal(ctx context.Context, share cryptoutil.Share) (seal.Status, error) {
	status, err := c.Seal.SubmitShare(ctx, share)
	if err != nil {
		switch err {
		case seal.ErrInvalidShareSet, seal.ErrInvalidShareIndex, seal.ErrDuplicateShare:
			return seal.Status{}, fmt.Errorf("%w: %v", ErrInvalidShare, err)
		case seal.ErrNotInitialized:
			return seal.Status{}, ErrUninitialized
		default:
			return seal.Status{}, fmt.Errorf("core: sys.unseal: %w", err)
		}
	}
	return status, nil
}

// SysSeal zeroes the in-memory master key, re-sealing the core.
func (c *Core) SysSeal(ctx context.Context) (seal.Status, error) {
	status, err := c.Seal.Seal(ctx)
	if err != nil {
		return seal.Status{}, fmt.Errorf("core: sys.seal: %w", err)
	}
	return status, nil
}

// SysStatus reports the current seal/init state.
func (c *Core) SysStatus(ctx context.Context) seal.Status {
	return c.Seal.Status(ctx)
}

// validateSessionToken adapts approle.Manager.Validate to the
// agentsession.TokenValidator shape.
func (c *Core) validateSessionToken(token, certSerial string) (string, []string, error) {
	res, err := c.AppRole.Validate(token, certSerial)
	if err != nil {
		return "", nil, err
	}
	return res.EntityID, res.Policies, nil
}
