package lifecycle

import (
	"context"

	"orderpulse/internal/domain"
	"orderpulse/pkg/logx"

	"github.com/cockroachdb/errors"
)

// ResolveActor fixes the system actor at startup: the configured id when it
// exists, otherwise the first admin user. Finding nobody is not an error;
// transitions then lazily retry the admin lookup and skip notes until one
// exists.
func (s *Service) ResolveActor(ctx context.Context) error {
	cfg := s.config()
	if cfg.SystemActorID != "" {
		u, err := s.store.FindUser(ctx, cfg.SystemActorID)
		switch {
		case err == nil:
			s.setActor(u)
			s.log.Info("system actor resolved", logx.String("user_id", u.ID), logx.String("source", "config"))
			return nil
		case errors.Is(err, domain.ErrNotFound):
			s.log.Warn("configured system actor not found; falling back to first admin", logx.String("user_id", cfg.SystemActorID))
		default:
			return errors.Wrap(err, "resolve system actor")
		}
	}

	u, err := s.store.FindFirstUserByRole(ctx, domain.RoleAdmin)
	switch {
	case err == nil:
		s.setActor(u)
		s.log.Info("system actor resolved", logx.String("user_id", u.ID), logx.String("source", "first_admin"))
		return nil
	case errors.Is(err, domain.ErrNotFound):
		s.log.Warn("no system actor available; automatic notes will be skipped")
		return nil
	default:
		return errors.Wrap(err, "resolve system actor")
	}
}

func (s *Service) setActor(u domain.User) {
	s.actorMu.Lock()
	s.actor = u
	s.actorMu.Unlock()
}

func (s *Service) actorID() string {
	s.actorMu.RLock()
	defer s.actorMu.RUnlock()
	return s.actor.ID
}

// actorFor returns the actor for a note written inside tx. ok is false when
// no actor exists.
func (s *Service) actorFor(ctx context.Context, tx domain.Tx) (id string, ok bool, err error) {
	if id := s.actorID(); id != "" {
		return id, true, nil
	}
	u, err := tx.FindFirstUserByRole(ctx, domain.RoleAdmin)
	if errors.Is(err, domain.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "lookup system actor")
	}
	s.setActor(u)
	return u.ID, true, nil
}
