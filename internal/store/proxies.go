package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AcquireProxy atomically leases the least-used available proxy (ascending
// uses_count, tie-broken by proxy_id), spreading load across the pool and
// surfacing underused proxies first (SPEC_FULL.md §4.1). Returns ErrNoProxy
// when no proxy is available.
func (s *Store) AcquireProxy(ctx context.Context, workerID string) (*Proxy, error) {
	var acquired *Proxy
	err := s.withRetry(ctx, "acquire_proxy", func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var proxy Proxy
			err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
				Where("status = ?", ProxyAvailable).
				Order("uses_count ASC, proxy_id ASC").
				Limit(1).
				First(&proxy).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoProxy
			}
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			if err := tx.Model(&Proxy{}).
				Where("proxy_id = ?", proxy.ProxyID).
				Updates(map[string]interface{}{
					"status":     ProxyLocked,
					"locked_by":  workerID,
					"locked_at":  now,
					"uses_count": gorm.Expr("uses_count + 1"),
				}).Error; err != nil {
				return err
			}

			proxy.Status = ProxyLocked
			proxy.LockedBy = &workerID
			proxy.LockedAt = &now
			proxy.UsesCount++
			acquired = &proxy
			return nil
		})
	})
	if errors.Is(err, ErrNoProxy) {
		return nil, ErrNoProxy
	}
	if err != nil {
		return nil, err
	}
	return acquired, nil
}

// ReleaseProxy transitions locked -> available, clears the lease fields, and
// bumps last_used_at. No-op if the proxy is in any other state (e.g. already
// blocked) — a harmless statement, matching the Open Question in
// SPEC_FULL.md §9 about calling this unconditionally during cleanup.
func (s *Store) ReleaseProxy(ctx context.Context, proxyID uint64) error {
	return s.withRetry(ctx, "release_proxy", func() error {
		now := time.Now().UTC()
		return s.db.WithContext(ctx).
			Model(&Proxy{}).
			Where("proxy_id = ? AND status = ?", proxyID, ProxyLocked).
			Updates(map[string]interface{}{
				"status":       ProxyAvailable,
				"locked_by":    nil,
				"locked_at":    nil,
				"last_used_at": now,
			}).Error
	})
}

// MarkProxyBlocked transitions any state to blocked (terminal), increments
// blocks_count, and clears lease fields.
func (s *Store) MarkProxyBlocked(ctx context.Context, proxyID uint64) error {
	return s.withRetry(ctx, "mark_proxy_blocked", func() error {
		return s.db.WithContext(ctx).
			Model(&Proxy{}).
			Where("proxy_id = ?", proxyID).
			Updates(map[string]interface{}{
				"status":       ProxyBlocked,
				"blocks_count": gorm.Expr("blocks_count + 1"),
				"locked_by":    nil,
				"locked_at":    nil,
			}).Error
	})
}

// CreateProxies bulk-inserts new available proxies, skipping ones that
// already exist (unique on proxy string). Used by the proxies bootstrap
// loader.
func (s *Store) CreateProxies(ctx context.Context, proxies []string) (inserted int, err error) {
	if len(proxies) == 0 {
		return 0, nil
	}
	err = s.withRetry(ctx, "create_proxies", func() error {
		rows := make([]Proxy, 0, len(proxies))
		for _, p := range proxies {
			rows = append(rows, Proxy{Proxy: p, Status: ProxyAvailable})
		}
		res := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "proxy"}}, DoNothing: true}).
			Create(&rows)
		if res.Error != nil {
			return res.Error
		}
		inserted = int(res.RowsAffected)
		return nil
	})
	return inserted, err
}

// DeleteAllProxies truncates the proxy pool, used by the proxies loader's
// overwrite mode.
func (s *Store) DeleteAllProxies(ctx context.Context) error {
	return s.withRetry(ctx, "delete_all_proxies", func() error {
		return s.db.WithContext(ctx).Exec("DELETE FROM proxies").Error
	})
}

// CountProxies returns the current row count.
func (s *Store) CountProxies(ctx context.Context) (int64, error) {
	var n int64
	err := s.withRetry(ctx, "count_proxies", func() error {
		return s.db.WithContext(ctx).Model(&Proxy{}).Count(&n).Error
	})
	return n, err
}
