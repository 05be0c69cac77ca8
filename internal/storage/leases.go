package storage

import (
	"context"
	"time"

	"orderpulse/internal/domain"

	"github.com/cockroachdb/errors"
)

// AcquireJobLease takes or renews the lease for job. An unexpired lease held
// by another owner yields an error wrapping domain.ErrLeaseHeld.
func (s *SQLStore) AcquireJobLease(ctx context.Context, job, owner string, ttl time.Duration, now time.Time) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if job == "" || owner == "" {
		return errors.New("lease job and owner are required")
	}
	if ttl <= 0 {
		return errors.Newf("lease ttl must be > 0, got %s", ttl)
	}
	nowMS := now.UTC().UnixMilli()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO job_leases(job, owner, expires_at) VALUES(?,?,?)
		 ON CONFLICT(job) DO UPDATE SET owner = excluded.owner, expires_at = excluded.expires_at
		 WHERE job_leases.owner = excluded.owner OR job_leases.expires_at <= ?`,
		job, owner, now.Add(ttl).UTC().UnixMilli(), nowMS,
	)
	if err != nil {
		return errors.Wrapf(err, "acquire lease %s", job)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return errors.Wrapf(domain.ErrLeaseHeld, "job %s", job)
	}
	return nil
}

// ReleaseJobLease drops the lease if owner still holds it.
func (s *SQLStore) ReleaseJobLease(ctx context.Context, job, owner string) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM job_leases WHERE job = ? AND owner = ?`, job, owner)
	return errors.Wrapf(err, "release lease %s", job)
}
