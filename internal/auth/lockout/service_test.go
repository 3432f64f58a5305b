package lockout

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"amlstat/internal/auth/lockout/mocks"
	lockoutstore "amlstat/internal/auth/store/lockout"
	dErrors "amlstat/pkg/domain-errors"
	"amlstat/pkg/requestcontext"
)

const (
	address  = "officer@bank.example"
	clientIP = "10.0.0.7"
)

type ServiceSuite struct {
	suite.Suite
	svc *Service
	now time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	svc, err := New(lockoutstore.New(),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithConfig(Config{MaxAttempts: 3, Window: 10 * time.Minute, LockDuration: 30 * time.Minute}),
	)
	s.Require().NoError(err)
	s.svc = svc
	s.now = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
}

func (s *ServiceSuite) at(offset time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), s.now.Add(offset))
}

func (s *ServiceSuite) TestLocksAfterMaxAttempts() {
	for i := range 2 {
		locked, err := s.svc.RecordFailure(s.at(time.Duration(i)*time.Minute), address, clientIP)
		s.Require().NoError(err)
		s.False(locked)
		s.NoError(s.svc.Check(s.at(time.Duration(i)*time.Minute), address, clientIP))
	}

	locked, err := s.svc.RecordFailure(s.at(2*time.Minute), address, clientIP)
	s.Require().NoError(err)
	s.True(locked)

	err = s.svc.Check(s.at(3*time.Minute), address, clientIP)
	s.True(dErrors.HasCode(err, dErrors.CodeTooManyRequests))

	s.Run("other client addresses are unaffected", func() {
		s.NoError(s.svc.Check(s.at(3*time.Minute), address, "10.0.0.8"))
	})

	s.Run("lock lapses after its duration", func() {
		s.NoError(s.svc.Check(s.at(32*time.Minute), address, clientIP))
	})
}

func (s *ServiceSuite) TestFailuresOutsideWindowDoNotAccumulate() {
	for _, offset := range []time.Duration{0, time.Minute, 11 * time.Minute} {
		locked, err := s.svc.RecordFailure(s.at(offset), address, clientIP)
		s.Require().NoError(err)
		s.False(locked)
	}
	s.NoError(s.svc.Check(s.at(12*time.Minute), address, clientIP))
}

func (s *ServiceSuite) TestClearResetsCount() {
	for i := range 2 {
		_, err := s.svc.RecordFailure(s.at(time.Duration(i)*time.Second), address, clientIP)
		s.Require().NoError(err)
	}
	s.Require().NoError(s.svc.Clear(s.at(time.Minute), address, clientIP))

	locked, err := s.svc.RecordFailure(s.at(2*time.Minute), address, clientIP)
	s.Require().NoError(err)
	s.False(locked)
}

func (s *ServiceSuite) TestKeyIgnoresEmailCase() {
	for i := range 3 {
		_, err := s.svc.RecordFailure(s.at(time.Duration(i)*time.Second), "Officer@Bank.example", clientIP)
		s.Require().NoError(err)
	}
	err := s.svc.Check(s.at(time.Minute), address, clientIP)
	s.True(dErrors.HasCode(err, dErrors.CodeTooManyRequests))
}

func TestStoreFailuresAreInternal(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	svc, err := New(store)
	if err != nil {
		t.Fatal(err)
	}
	boom := errors.New("redis down")
	ctx := context.Background()

	store.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, boom)
	if err := svc.Check(ctx, address, clientIP); !dErrors.HasCode(err, dErrors.CodeInternal) {
		t.Fatalf("Check error = %v, want internal", err)
	}

	store.EXPECT().RecordFailure(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, boom)
	if _, err := svc.RecordFailure(ctx, address, clientIP); !dErrors.HasCode(err, dErrors.CodeInternal) {
		t.Fatalf("RecordFailure error = %v, want internal", err)
	}
}

func TestNewRequiresStore(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("expected error for nil store")
	}
}
