package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type BreakerSuite struct {
	suite.Suite
	now time.Time
}

func TestBreakerSuite(t *testing.T) {
	suite.Run(t, new(BreakerSuite))
}

func (s *BreakerSuite) SetupTest() {
	s.now = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
}

func (s *BreakerSuite) breaker(opts ...Option) *Breaker {
	return New("kafka", append([]Option{WithClock(func() time.Time { return s.now })}, opts...)...)
}

func (s *BreakerSuite) TestStartsClosed() {
	b := s.breaker()
	s.Equal(StateClosed, b.State())
	s.Equal("kafka", b.Name())
	s.True(b.Allow())
}

func (s *BreakerSuite) TestOpensOnConsecutiveFailures() {
	b := s.breaker(WithFailureThreshold(3))

	fallback, change := b.RecordFailure()
	s.False(fallback)
	s.False(change.Opened)
	b.RecordFailure()

	fallback, change = b.RecordFailure()
	s.True(fallback)
	s.True(change.Opened)
	s.True(b.IsOpen())

	fallback, change = b.RecordFailure()
	s.True(fallback)
	s.False(change.Opened, "already open")
}

func (s *BreakerSuite) TestSuccessResetsFailureStreak() {
	b := s.breaker(WithFailureThreshold(2))
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	s.False(b.IsOpen())
}

// Justification: an open breaker must shed calls during the cooldown and
// then admit a trial call; a failed trial restarts the cooldown.
func (s *BreakerSuite) TestCooldownGatesTrialCalls() {
	b := s.breaker(WithFailureThreshold(1), WithCooldown(time.Minute))
	b.RecordFailure()
	s.False(b.Allow())

	s.now = s.now.Add(time.Minute)
	s.True(b.Allow())

	b.RecordFailure()
	s.False(b.Allow())

	s.now = s.now.Add(time.Minute)
	primary, change := b.RecordSuccess()
	s.True(primary)
	s.True(change.Closed)
	s.True(b.Allow())
}

func (s *BreakerSuite) TestSuccessThreshold() {
	b := s.breaker(WithFailureThreshold(1), WithSuccessThreshold(2))
	b.RecordFailure()

	primary, _ := b.RecordSuccess()
	s.False(primary)
	b.RecordFailure()
	b.RecordSuccess()
	s.True(b.IsOpen(), "failure reset the success streak")

	primary, change := b.RecordSuccess()
	s.True(primary)
	s.True(change.Closed)
}

func (s *BreakerSuite) TestReset() {
	b := s.breaker(WithFailureThreshold(1))
	b.RecordFailure()
	b.Reset()
	s.Equal(StateClosed, b.State())
	s.True(b.Allow())
}
