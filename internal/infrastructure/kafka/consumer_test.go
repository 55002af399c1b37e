package kafka_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/honeynil/UPIPaymentService/internal/infrastructure/kafka"
	"github.com/honeynil/UPIPaymentService/internal/infrastructure/redis"
	"github.com/honeynil/UPIPaymentService/internal/infrastructure/redis/redistest"
	"github.com/honeynil/UPIPaymentService/internal/models"
	"github.com/honeynil/UPIPaymentService/internal/repository/mocks"
	pkgerrors "github.com/honeynil/UPIPaymentService/pkg/errors"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	mu        sync.Mutex
	messages  []kafkago.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return kafkago.Message{}, context.Canceled
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func eventMessage(t *testing.T, offset int64, tx *models.Transaction) kafkago.Message {
	t.Helper()
	value, err := json.Marshal(models.NewTransactionEvent(tx))
	require.NoError(t, err)
	return kafkago.Message{Key: []byte(tx.ID.String()), Value: value, Offset: offset}
}

func TestConsumer_Handle(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	setup := func() (*kafka.Consumer, *mocks.TransactionRepository, *redis.ViewCache[models.TransactionDetail]) {
		repo := &mocks.TransactionRepository{}
		cache := redis.NewViewCache[models.TransactionDetail](redistest.New(), "txn:status:", time.Hour)
		return kafka.NewConsumerWithReader(&fakeReader{}, repo, cache), repo, cache
	}

	t.Run("SettledEventWarmsCache", func(t *testing.T) {
		consumer, repo, cache := setup()
		tx := &models.Transaction{ID: uuid.New(), Amount: decimal.RequireFromString("40.00"), Status: models.StatusSuccess, Kind: models.KindTransfer, UpdatedAt: now}
		detail := &models.TransactionDetail{ID: tx.ID, Amount: tx.Amount, Status: models.StatusSuccess, Kind: models.KindTransfer, FromUserID: uuid.New(), ToUserID: uuid.New()}
		repo.On("GetDetail", mock.Anything, tx.ID).Return(detail, nil).Once()

		require.NoError(t, consumer.Handle(ctx, eventMessage(t, 1, tx)))

		cached, ok := cache.Get(ctx, tx.ID.String())
		require.True(t, ok)
		assert.Equal(t, models.StatusSuccess, cached.Status)
		assert.Equal(t, detail.FromUserID, cached.FromUserID)
		repo.AssertExpectations(t)
	})

	t.Run("PendingEventEvicts", func(t *testing.T) {
		consumer, repo, cache := setup()
		tx := &models.Transaction{ID: uuid.New(), Amount: decimal.RequireFromString("25.00"), Status: models.StatusPending, Kind: models.KindRequest, CreatedAt: now}
		cache.Set(ctx, tx.ID.String(), &models.TransactionDetail{ID: tx.ID, Status: models.StatusRejected})

		require.NoError(t, consumer.Handle(ctx, eventMessage(t, 1, tx)))

		_, ok := cache.Get(ctx, tx.ID.String())
		assert.False(t, ok)
		repo.AssertNotCalled(t, "GetDetail", mock.Anything, mock.Anything)
	})

	t.Run("MalformedEventIsDropped", func(t *testing.T) {
		consumer, repo, _ := setup()
		err := consumer.Handle(ctx, kafkago.Message{Value: []byte("not json")})
		assert.NoError(t, err)
		repo.AssertNotCalled(t, "GetDetail", mock.Anything, mock.Anything)
	})

	t.Run("UnknownTransactionIsDropped", func(t *testing.T) {
		consumer, repo, _ := setup()
		tx := &models.Transaction{ID: uuid.New(), Amount: decimal.RequireFromString("1.00"), Status: models.StatusRejected, Kind: models.KindRequest, UpdatedAt: now}
		repo.On("GetDetail", mock.Anything, tx.ID).Return(nil, pkgerrors.ErrTransactionNotFound).Once()

		assert.NoError(t, consumer.Handle(ctx, eventMessage(t, 1, tx)))
	})

	t.Run("StoreFailureIsRetried", func(t *testing.T) {
		consumer, repo, _ := setup()
		tx := &models.Transaction{ID: uuid.New(), Amount: decimal.RequireFromString("1.00"), Status: models.StatusSuccess, Kind: models.KindTransfer, UpdatedAt: now}
		repo.On("GetDetail", mock.Anything, tx.ID).Return(nil, errors.New("connection reset")).Once()

		assert.Error(t, consumer.Handle(ctx, eventMessage(t, 1, tx)))
	})
}

func TestConsumer_Consume(t *testing.T) {
	t.Run("DropsEventAfterRetries", func(t *testing.T) {
		repo := &mocks.TransactionRepository{}
		cache := redis.NewViewCache[models.TransactionDetail](redistest.New(), "txn:status:", time.Hour)

		ok := &models.Transaction{ID: uuid.New(), Amount: decimal.RequireFromString("5.00"), Status: models.StatusSuccess, Kind: models.KindTransfer, UpdatedAt: time.Now()}
		failing := &models.Transaction{ID: uuid.New(), Amount: decimal.RequireFromString("6.00"), Status: models.StatusFailed, Kind: models.KindTransfer, UpdatedAt: time.Now()}
		repo.On("GetDetail", mock.Anything, ok.ID).Return(&models.TransactionDetail{ID: ok.ID, Status: models.StatusSuccess}, nil)
		repo.On("GetDetail", mock.Anything, failing.ID).Return(nil, errors.New("connection reset"))

		reader := &fakeReader{messages: []kafkago.Message{
			eventMessage(t, 10, ok),
			eventMessage(t, 11, failing),
		}}
		consumer := kafka.NewConsumerWithReader(reader, repo, cache).WithRetry(3, time.Millisecond)

		require.NoError(t, consumer.Consume(context.Background()))
		assert.Equal(t, []int64{10, 11}, reader.committed)
		repo.AssertNumberOfCalls(t, "GetDetail", 4)
		_, cached := cache.Get(context.Background(), ok.ID.String())
		assert.True(t, cached)
	})

	t.Run("RetriesInPlaceBeforeNextMessage", func(t *testing.T) {
		repo := &mocks.TransactionRepository{}
		cache := redis.NewViewCache[models.TransactionDetail](redistest.New(), "txn:status:", time.Hour)

		flaky := &models.Transaction{ID: uuid.New(), Amount: decimal.RequireFromString("7.00"), Status: models.StatusSuccess, Kind: models.KindTransfer, UpdatedAt: time.Now()}
		next := &models.Transaction{ID: uuid.New(), Amount: decimal.RequireFromString("8.00"), Status: models.StatusRejected, Kind: models.KindRequest, UpdatedAt: time.Now()}

		var order []uuid.UUID
		record := func(args mock.Arguments) { order = append(order, args.Get(1).(uuid.UUID)) }
		repo.On("GetDetail", mock.Anything, flaky.ID).Return(nil, errors.New("connection reset")).Run(record).Once()
		repo.On("GetDetail", mock.Anything, flaky.ID).Return(&models.TransactionDetail{ID: flaky.ID, Status: models.StatusSuccess}, nil).Run(record).Once()
		repo.On("GetDetail", mock.Anything, next.ID).Return(&models.TransactionDetail{ID: next.ID, Status: models.StatusRejected}, nil).Run(record).Once()

		reader := &fakeReader{messages: []kafkago.Message{
			eventMessage(t, 20, flaky),
			eventMessage(t, 21, next),
		}}
		consumer := kafka.NewConsumerWithReader(reader, repo, cache).WithRetry(3, time.Millisecond)

		require.NoError(t, consumer.Consume(context.Background()))
		assert.Equal(t, []int64{20, 21}, reader.committed)
		assert.Equal(t, []uuid.UUID{flaky.ID, flaky.ID, next.ID}, order)
		cached, ok := cache.Get(context.Background(), flaky.ID.String())
		require.True(t, ok)
		assert.Equal(t, models.StatusSuccess, cached.Status)
		repo.AssertExpectations(t)
	})

	t.Run("StopsRetryingOnShutdown", func(t *testing.T) {
		repo := &mocks.TransactionRepository{}
		cache := redis.NewViewCache[models.TransactionDetail](redistest.New(), "txn:status:", time.Hour)
		ctx, cancel := context.WithCancel(context.Background())

		tx := &models.Transaction{ID: uuid.New(), Amount: decimal.RequireFromString("9.00"), Status: models.StatusSuccess, Kind: models.KindTransfer, UpdatedAt: time.Now()}
		repo.On("GetDetail", mock.Anything, tx.ID).Return(nil, errors.New("connection reset")).Run(func(mock.Arguments) { cancel() })

		reader := &fakeReader{messages: []kafkago.Message{eventMessage(t, 30, tx)}}
		consumer := kafka.NewConsumerWithReader(reader, repo, cache).WithRetry(5, time.Hour)

		require.NoError(t, consumer.Consume(ctx))
		assert.Empty(t, reader.committed)
		repo.AssertNumberOfCalls(t, "GetDetail", 1)
	})
}
