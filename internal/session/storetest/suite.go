// Package storetest holds the behaviour every session.Store backend must
// share, packaged as a testify suite.
package storetest

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"ereader/internal/session"
	dErrors "ereader/pkg/domain-errors"
	"ereader/pkg/testutil"
)

// StoreSuite runs the shared Store contract against the store built by New.
type StoreSuite struct {
	suite.Suite
	New   func() session.Store
	store session.Store
	ctx   context.Context
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.New()
}

// Store exposes the store under test to embedding suites.
func (s *StoreSuite) Store() session.Store {
	return s.store
}

// Sample returns a complete session for user id.
func Sample(id int) session.Session {
	pic := "https://cdn.example.com/u.png"
	return session.Session{
		Token: "token-" + time.Now().Format("150405.000000"),
		User: session.User{
			ID:             id,
			Name:           "Reader",
			Email:          "reader@example.com",
			ProfilePicture: &pic,
			Role:           session.DefaultRole,
		},
	}
}

func (s *StoreSuite) TestReadAbsentInitially() {
	got, err := s.store.Read(s.ctx)
	s.Require().NoError(err)
	s.Nil(got)
}

func (s *StoreSuite) TestWriteThenRead() {
	want := Sample(7)
	s.Require().NoError(s.store.Write(s.ctx, want))

	got, err := s.store.Read(s.ctx)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(want.Token, got.Token)
	s.Equal(want.User, got.User)
}

func (s *StoreSuite) TestWriteReplacesBothFields() {
	s.Require().NoError(s.store.Write(s.ctx, Sample(1)))
	second := Sample(2)
	second.Token = "second-token"
	s.Require().NoError(s.store.Write(s.ctx, second))

	got, err := s.store.Read(s.ctx)
	s.Require().NoError(err)
	s.Equal("second-token", got.Token)
	s.Equal(2, got.User.ID)
}

func (s *StoreSuite) TestWriteRejectsPartialSession() {
	s.Require().NoError(s.store.Write(s.ctx, Sample(1)))

	err := s.store.Write(s.ctx, session.Session{Token: "only-token"})
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	got, err := s.store.Read(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, got.User.ID, "failed write leaves previous session intact")
}

func (s *StoreSuite) TestClear() {
	s.Require().NoError(s.store.Write(s.ctx, Sample(1)))
	s.Require().NoError(s.store.Clear(s.ctx))

	got, err := s.store.Read(s.ctx)
	s.Require().NoError(err)
	s.Nil(got)

	s.NoError(s.store.Clear(s.ctx), "clearing an empty store is fine")
}

func (s *StoreSuite) TestObserveEmitsCurrentThenChanges() {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	ch := s.store.Observe(ctx)
	s.Nil(s.next(ch), "initial value is absent")

	s.Require().NoError(s.store.Write(s.ctx, Sample(3)))
	s.True(s.await(ch, func(v *session.Session) bool { return v != nil && v.User.ID == 3 }))

	s.Require().NoError(s.store.Clear(s.ctx))
	s.True(s.await(ch, func(v *session.Session) bool { return v == nil }))
}

func (s *StoreSuite) TestObserveClosesWithContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	ch := s.store.Observe(ctx)
	s.next(ch)
	cancel()

	s.Eventually(func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func (s *StoreSuite) TestConcurrentWritesLeaveWholeSession() {
	res := testutil.RunConcurrent(20, func(i int) error {
		sess := Sample(i + 1)
		sess.Token = "token-for-" + sess.User.Name
		return s.store.Write(s.ctx, sess)
	})
	s.Equal(int32(20), res.Successes)

	got, err := s.store.Read(s.ctx)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.NoError(got.Validate())
}

func (s *StoreSuite) next(ch <-chan *session.Session) *session.Session {
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		s.FailNow("timed out waiting for observed session")
		return nil
	}
}

// await reads values until one satisfies match or two seconds pass.
func (s *StoreSuite) await(ch <-chan *session.Session, match func(*session.Session) bool) bool {
	deadline := time.After(2 * time.Second)
	for {
		select {
		case v, ok := <-ch:
			if !ok {
				return false
			}
			if match(v) {
				return true
			}
		case <-deadline:
			return false
		}
	}
}
