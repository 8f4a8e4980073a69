package profile

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/enrich-cli/pkg/bigpicture"
)

type mockBigPicture struct {
	mock.Mock
}

func (m *mockBigPicture) Find(ctx context.Context, domain string) (*bigpicture.Response, error) {
	args := m.Called(ctx, domain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bigpicture.Response), args.Error(1)
}

// sleepRecorder records requested delays without blocking.
type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}
