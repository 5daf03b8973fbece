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

package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sage-x-project/secretcore/internal/logger"
	"github.com/sage-x-project/secretcore/pkg/agentsession"
	"github.com/sage-x-project/secretcore/pkg/agentsession/transport"
	"github.com/sage-x-project/secretcore/pkg/pki"
	"github.com/sage-x-project/secretcore/pkg/policy"
	"github.com/sage-x-project/secretcore/pkg/secrets"
)

// Wire method names understood by handleFrame. Agents never see these
// as Go identifiers, only as the Method string on an Envelope.
const (
	MethodSecretRead         = "secret.read"
	MethodSecretWrite        = "secret.write"
	MethodSecretDelete       = "secret.delete"
	MethodSecretListVersions = "secret.list_versions"
	MethodSecretDynamicIssue = "secret.dynamic_issue"
	MethodLeaseRenew         = "lease.renew"
	MethodLeaseRevoke        = "lease.revoke"
	MethodPKISignCSR         = "pki.sign_csr"
	MethodPolicySimulate     = "policy.simulate"
)

type secretReadRequest struct {
	Path    string `json:"path"`
	Version int    `json:"version"`
}

type secretWriteRequest struct {
	Path string `json:"path"`
	Data []byte `json:"data"`
}

type secretWriteResponse struct {
	Version int `json:"version"`
}

type secretDeleteRequest struct {
	Path string `json:"path"`
}

type secretListVersionsRequest struct {
	Path string `json:"path"`
}

type secretDynamicIssueRequest struct {
	Backend   string        `json:"backend"`
	TTL       time.Duration `json:"ttl"`
	MaxTTL    time.Duration `json:"max_ttl"`
	Renewable bool          `json:"renewable"`
}

type leaseRenewRequest struct {
	LeaseID   string        `json:"lease_id"`
	Increment time.Duration `json:"increment"`
}

type leaseRevokeRequest struct {
	LeaseID string `json:"lease_id"`
}

type policySimulateRequest struct {
	Policies   []string `json:"policies"`
	Path       string   `json:"path"`
	Capability string   `json:"capability"`
}

// handleFrame is the transport.Handler closure bound into
// agentsession.Manager at construction. It recovers the calling
// Session's identity from ctx, decodes the method-specific request
// payload, dispatches to the matching Core operation, and encodes the
// result back into a transport.Response.
func (c *Core) handleFrame(ctx context.Context, env *transport.Envelope) (*transport.Response, error) {
	session, ok := agentsession.FromContext(ctx)
	if !ok {
		return errResponse(fmt.Errorf("core: handle frame: %w", ErrUnknownEntity))
	}
	entity := secrets.Entity{EntityID: session.AgentID, ActorType: "role", Policies: session.Policies}
	evalCtx := policy.EvalContext{Now: time.Now()}

	switch env.Method {
	case MethodSecretRead:
		var req secretReadRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			return errResponse(fmt.Errorf("%w: %v", ErrInvalidInput, err))
		}
		data, err := c.SecretRead(ctx, entity, req.Path, req.Version, evalCtx)
		if err != nil {
			return errResponse(err)
		}
		return okResponse(data)

	case MethodSecretWrite:
		var req secretWriteRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			return errResponse(fmt.Errorf("%w: %v", ErrInvalidInput, err))
		}
		version, err := c.SecretWrite(ctx, entity, req.Path, req.Data, evalCtx)
		if err != nil {
			return errResponse(err)
		}
		return jsonResponse(secretWriteResponse{Version: version})

	case MethodSecretDelete:
		var req secretDeleteRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			return errResponse(fmt.Errorf("%w: %v", ErrInvalidInput, err))
		}
		if err := c.SecretDelete(ctx, entity, req.Path, evalCtx); err != nil {
			return errResponse(err)
		}
		return okResponse(nil)

	case MethodSecretListVersions:
		var req secretListVersionsRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			return errResponse(fmt.Errorf("%w: %v", ErrInvalidInput, err))
		}
		versions, err := c.SecretListVersions(ctx, entity, req.Path, evalCtx)
		if err != nil {
			return errResponse(err)
		}
		return jsonResponse(versions)

	case MethodSecretDynamicIssue:
		var req secretDynamicIssueRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			return errResponse(fmt.Errorf("%w: %v", ErrInvalidInput, err))
		}
		issued, err := c.SecretDynamicIssue(ctx, req.Backend, entity.EntityID, req.TTL, req.MaxTTL, req.Renewable)
		if err != nil {
			return errResponse(err)
		}
		return jsonResponse(issued)

	case MethodLeaseRenew:
		var req leaseRenewRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			return errResponse(fmt.Errorf("%w: %v", ErrInvalidInput, err))
		}
		view, err := c.LeaseRenew(ctx, req.LeaseID, req.Increment)
		if err != nil {
			return errResponse(err)
		}
		return jsonResponse(view)

	case MethodLeaseRevoke:
		var req leaseRevokeRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			return errResponse(fmt.Errorf("%w: %v", ErrInvalidInput, err))
		}
		if err := c.LeaseRevoke(ctx, req.LeaseID); err != nil {
			return errResponse(err)
		}
		return okResponse(nil)

	case MethodPKISignCSR:
		var req pki.SignCSRRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			return errResponse(fmt.Errorf("%w: %v", ErrInvalidInput, err))
		}
		req.EntityID = entity.EntityID
		rec, err := c.PKISignCSR(ctx, req)
		if err != nil {
			return errResponse(err)
		}
		return jsonResponse(rec)

	case MethodPolicySimulate:
		var req policySimulateRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			return errResponse(fmt.Errorf("%w: %v", ErrInvalidInput, err))
		}
		decision, err := c.PolicySimulate(ctx, req.Policies, req.Path, req.Capability, evalCtx)
		if err != nil {
			return errResponse(err)
		}
		return jsonResponse(decision)

	default:
		return errResponse(fmt.Errorf("%w: unknown method %q", ErrInvalidInput, env.Method))
	}
}

func okResponse(data []byte) (*transport.Response, error) {
	return &transport.Response{Success: true, Data: data}, nil
}

func jsonResponse(v interface{}) (*transport.Response, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("core: encode response: %w", err)
	}
	return &transport.Response{Success: true, Data: data}, nil
}

func errResponse(err error) (*transport.Response, error) {
	return &transport.Response{Success: false, Error: err}, err
}

// NotifySecretRotated pushes a one-way notification to every live agent
// session, used after a secret write that callers have subscribed to.
func (c *Core) NotifySecretRotated(path string) {
	c.broadcast("secret.rotated", map[string]string{"path": path})
}

// NotifyPolicyUpdated pushes a one-way notification that a named policy
// changed, letting agents invalidate any cached simulate() result.
func (c *Core) NotifyPolicyUpdated(name string) {
	c.broadcast("policy.updated", map[string]string{"policy": name})
}

// NotifyCertExpiring pushes a one-way warning that a certificate is
// nearing its not_after.
func (c *Core) NotifyCertExpiring(serial string, notAfter time.Time) {
	c.broadcast("cert.expiring", map[string]string{"serial": serial, "not_after": notAfter.Format(time.RFC3339)})
}

// NotifyLeaseRevoked pushes a one-way notification that a lease was
// revoked, so the holding agent can stop using its credential early.
func (c *Core) NotifyLeaseRevoked(leaseID string) {
	c.broadcast("lease.revoked", map[string]string{"lease_id": leaseID})
}

func (c *Core) broadcast(method string, payload map[string]string) {
	data, err := json.Marshal(payload)
	if err != nil {
		c.log.Error("core: encode notification payload", logger.String("method", method), logger.Error(err))
		return
	}
	c.Sessions.Broadcast(method, data)
}
