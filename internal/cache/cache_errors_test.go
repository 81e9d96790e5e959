package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/tensai-22/penal-sub001/internal/models"
)

// CacheErrorsTestSuite drives the Redis failure paths that miniredis cannot produce
type CacheErrorsTestSuite struct {
	suite.Suite
	mock  redismock.ClientMock
	cache *RedisCaseCache
	ctx   context.Context
}

func (s *CacheErrorsTestSuite) SetupTest() {
	client, mock := redismock.NewClientMock()
	s.mock = mock
	s.cache = &RedisCaseCache{client: client, ttl: time.Minute, log: zap.NewNop()}
	s.ctx = context.Background()
}

func (s *CacheErrorsTestSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
}

func TestCacheErrorsTestSuite(t *testing.T) {
	suite.Run(t, new(CacheErrorsTestSuite))
}

func (s *CacheErrorsTestSuite) TestGet_RedisErrorIsNotAMiss() {
	filter := models.CaseFilter{Abogado: "PEREZ"}
	s.mock.ExpectGet(Key(filter)).SetErr(errors.New("connection reset"))

	_, err := s.cache.Get(s.ctx, filter)
	s.Require().Error(err)
	s.NotErrorIs(err, ErrCacheMiss)
	s.Contains(err.Error(), "connection reset")
}

func (s *CacheErrorsTestSuite) TestGet_CorruptEntryIsDeleted() {
	filter := models.CaseFilter{}
	s.mock.ExpectGet(Key(filter)).SetVal("{not json")
	s.mock.ExpectDel(Key(filter)).SetVal(1)

	_, err := s.cache.Get(s.ctx, filter)
	s.ErrorIs(err, ErrCacheMiss)
}

func (s *CacheErrorsTestSuite) TestSet_WriteError() {
	filter := models.CaseFilter{Estado: "pendiente"}
	records := []models.CaseRecord{{RegistroPPU: "LIM-1"}}
	data, err := json.Marshal(records)
	s.Require().NoError(err)
	s.mock.ExpectSet(Key(filter), data, time.Minute).SetErr(errors.New("OOM command not allowed"))

	err = s.cache.Set(s.ctx, filter, records)
	s.Require().Error(err)
	s.Contains(err.Error(), "failed to write case cache")
}

func (s *CacheErrorsTestSuite) TestInvalidate_ScanError() {
	s.mock.ExpectScan(0, keyPrefix+"*", 100).SetErr(errors.New("READONLY"))

	err := s.cache.Invalidate(s.ctx)
	s.Require().Error(err)
	s.Contains(err.Error(), "failed to scan case cache")
}

func (s *CacheErrorsTestSuite) TestInvalidate_DeletesScannedKeys() {
	keys := []string{keyPrefix + "all", keyPrefix + "abc123"}
	s.mock.ExpectScan(0, keyPrefix+"*", 100).SetVal(keys, 0)
	s.mock.ExpectDel(keys...).SetVal(2)

	s.NoError(s.cache.Invalidate(s.ctx))
}

func (s *CacheErrorsTestSuite) TestInvalidate_DeleteError() {
	keys := []string{keyPrefix + "all"}
	s.mock.ExpectScan(0, keyPrefix+"*", 100).SetVal(keys, 0)
	s.mock.ExpectDel(keys...).SetErr(errors.New("timeout"))

	err := s.cache.Invalidate(s.ctx)
	s.Require().Error(err)
	s.Contains(err.Error(), "failed to invalidate case cache")
}
