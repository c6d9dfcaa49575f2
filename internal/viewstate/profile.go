package viewstate

import (
	"context"

	"golang.org/x/sync/errgroup"

	"ereader/internal/api"
	"ereader/pkg/outcome"
)

// ProfileService is the slice of the repository used by Profile.
type ProfileService interface {
	GetUserProfile(ctx context.Context) outcome.Outcome[api.UserProfile]
	GetReadingActivity(ctx context.Context) outcome.Outcome[[]api.ReadingActivity]
}

// Profile holds the account, its statistics and recent reading activity.
// Only a profile failure is reported; missing activity shows as empty.
type Profile struct {
	tracker
	service ProfileService

	Profile  *Observable[*api.UserProfile]
	Activity *Observable[[]api.ReadingActivity]
}

func NewProfile(service ProfileService, opts ...Option) *Profile {
	return &Profile{
		tracker:  newTracker(opts),
		service:  service,
		Profile:  NewObservable[*api.UserProfile](nil),
		Activity: NewObservable[[]api.ReadingActivity](nil),
	}
}

func (p *Profile) Load(ctx context.Context) {
	p.remember(p.Load)
	p.begin()

	var (
		g       errgroup.Group
		profile outcome.Outcome[api.UserProfile]
	)
	g.Go(func() error {
		profile = p.service.GetUserProfile(ctx)
		if v, ok := profile.Value(); ok {
			p.Profile.Set(&v)
		}
		return nil
	})
	g.Go(func() error {
		o := p.service.GetReadingActivity(ctx)
		activity, ok := o.Value()
		if !ok {
			p.logger.DebugContext(ctx, "reading activity unavailable", "reason", o.Message())
			activity = []api.ReadingActivity{}
		}
		p.Activity.Set(activity)
		return nil
	})
	_ = g.Wait()

	endWith(&p.tracker, profile, "")
}
