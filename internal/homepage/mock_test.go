package homepage

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/enrich-cli/internal/model"
)

type mockSearcher struct {
	mock.Mock
}

func (m *mockSearcher) Search(ctx context.Context, query string, num int) ([]model.SearchResult, error) {
	args := m.Called(ctx, query, num)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SearchResult), args.Error(1)
}
