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

// Package policy implements secretcore's path-glob ACL engine: deny
// always wins over allow, and the absence of a matching policy denies.
package policy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/sage-x-project/secretcore/internal/logger"
	"github.com/sage-x-project/secretcore/internal/metrics"
	"github.com/sage-x-project/secretcore/pkg/audit"
	"github.com/sage-x-project/secretcore/pkg/storage"
)

const (
	EffectAllow = "allow"
	EffectDeny  = "deny"
)

// Decision is the outcome of Evaluate.
type Decision struct {
	Allowed    bool
	PolicyName string
	Reason     string
}

// Engine evaluates capability requests against named policies loaded
// from storage.PolicyStore.
type Engine struct {
	store    storage.PolicyStore
	auditLog *audit.Log
	log      logger.Logger
}

// NewEngine returns an Engine reading policies from store.
func NewEngine(store storage.PolicyStore, auditLog *audit.Log, log logger.Logger) *Engine {
	return &Engine{store: store, auditLog: auditLog, log: log}
}

// appendAudit records a policy mutation. Policy.Put/Delete are called
// from pkg/core without an authenticated operator identity threaded
// through yet, so entries carry the policy name as the audited
// resource rather than an actor EntityID.
func (e *Engine) appendAudit(ctx context.Context, policyName, operation, decision string) {
	_, err := e.auditLog.Append(ctx, audit.AppendInput{
		ActorType: "operator",
		Operation: operation,
		Path:      policyName,
		Decision:  decision,
	})
	if err != nil {
		e.log.Error("policy: audit append failed", logger.Error(err), logger.String("operation", operation))
	}
}

// Put validates and persists a policy definition.
func (e *Engine) Put(ctx context.Context, p *storage.Policy) error {
	if p.Effect != EffectAllow && p.Effect != EffectDeny {
		return ErrInvalidEffect
	}
	for _, r := range p.Rules {
		if r.Path == "" || len(r.Capabilities) == 0 {
			return ErrInvalidRule
		}
		if !doublestar.ValidatePattern(r.Path) {
			return ErrInvalidRule
		}
	}
	if err := e.store.PutPolicy(ctx, p); err != nil {
		return err
	}
	e.appendAudit(ctx, p.Name, "policy.put", "success")
	return nil
}

func (e *Engine) Get(ctx context.Context, name string) (*storage.Policy, error) {
	return e.store.GetPolicy(ctx, name)
}

func (e *Engine) Delete(ctx context.Context, name string) error {
	if err := e.store.DeletePolicy(ctx, name); err != nil {
		return err
	}
	e.appendAudit(ctx, name, "policy.delete", "success")
	return nil
}

func (e *Engine) List(ctx context.Context) ([]*storage.Policy, error) {
	return e.store.ListPolicies(ctx)
}

// Evaluate implements spec.md §4.6's algorithm: collect matching rules
// from every named policy, deny if any deny-policy rule matches with
// the capability and satisfied conditions, else allow if any
// allow-policy rule matches, else deny by default.
func (e *Engine) Evaluate(ctx context.Context, policyNames []string, path, capability string, evalCtx EvalContext) (Decision, error) {
	if evalCtx.Now.IsZero() {
		evalCtx.Now = time.Now()
	}

	var policies []*storage.Policy
	for _, name := range policyNames {
		p, err := e.store.GetPolicy(ctx, name)
		if err == storage.ErrNotFound {
			continue
		}
		if err != nil {
			return Decision{}, fmt.Errorf("policy: load %q: %w", name, err)
		}
		policies = append(policies, p)
	}

	for _, p := range policies {
		if p.Effect != EffectDeny {
			continue
		}
		if rule := matchingRule(p, path, capability, evalCtx); rule != nil {
			metrics.PolicyEvaluations.WithLabelValues("deny").Inc()
			return Decision{Allowed: false, PolicyName: p.Name, Reason: "denied by policy " + p.Name}, nil
		}
	}

	for _, p := range policies {
		if p.Effect != EffectAllow {
			continue
		}
		if rule := matchingRule(p, path, capability, evalCtx); rule != nil {
			metrics.PolicyEvaluations.WithLabelValues("allow").Inc()
			return Decision{Allowed: true, PolicyName: p.Name}, nil
		}
	}

	metrics.PolicyEvaluations.WithLabelValues("deny").Inc()
	return Decision{Allowed: false, Reason: "no matching allow"}, nil
}

func matchingRule(p *storage.Policy, path, capability string, evalCtx EvalContext) *storage.PolicyRule {
	for i := range p.Rules {
		r := &p.Rules[i]
		if prefix, ok := strings.CutSuffix(r.Path, "/**"); ok && path == prefix {
			continue
		}
		ok, err := doublestar.Match(r.Path, path)
		if err != nil || !ok {
			continue
		}
		if !hasCapability(r.Capabilities, capability) {
			continue
		}
		if !conditionsSatisfied(r.Conditions, evalCtx) {
			continue
		}
		return r
	}
	return nil
}

func hasCapability(caps []string, want string) bool {
	for _, c := range caps {
		if c == want {
			return true
		}
	}
	return false
}
