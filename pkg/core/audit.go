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
	"fmt"

	"github.com/sage-x-project/secretcore/pkg/audit"
	"github.com/sage-x-project/secretcore/pkg/storage"
)

// AuditSearch narrows the chain to entries matching filter. It is named
// search rather than export at the operation surface because it is the
// read path a caller uses to page through history; AuditExport is the
// identical call reused for bulk extraction.
func (c *Core) AuditSearch(ctx context.Context, filter audit.ExportFilter) ([]*storage.AuditEntry, error) {
	entries, err := c.Audit.Export(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("core: audit.search: %w", err)
	}
	return entries, nil
}

// AuditExport returns entries matching filter for offline archival.
func (c *Core) AuditExport(ctx context.Context, filter audit.ExportFilter) ([]*storage.AuditEntry, error) {
	entries, err := c.Audit.Export(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("core: audit.export: %w", err)
	}
	return entries, nil
}

// AuditVerifyChain walks the full hash chain and reports the first
// broken link, if any.
func (c *Core) AuditVerifyChain(ctx context.Context) (audit.VerifyResult, error) {
	result, err := c.Audit.VerifyChain(ctx)
	if err != nil {
		return audit.VerifyResult{}, fmt.Errorf("core: audit.verify_chain: %w", err)
	}
	if !result.Valid {
		return result, fmt.Errorf("%w: %s at sequence %d", ErrAuditChainInvalid, result.Reason, result.Sequence)
	}
	return result, nil
}
