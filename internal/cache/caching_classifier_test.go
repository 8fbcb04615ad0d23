package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tckmpsi/kq-classifier/internal/classifier"
	"github.com/tckmpsi/kq-classifier/internal/model"
)

func keyFor(ns, modelName, image string) string {
	sum := sha256.Sum256([]byte(image))
	return ns + ":" + modelName + ":" + hex.EncodeToString(sum[:])
}

type countingClassifier struct {
	calls  int
	result *model.ClassificationResult
	err    error
}

func (c *countingClassifier) Classify(ctx context.Context, req model.ClassificationRequest) (*model.ClassificationResult, error) {
	c.calls++
	return c.result, c.err
}

var _ classifier.Classifier = (*countingClassifier)(nil)

func TestNewCachingClassifier_Defaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name              string
		ttl               time.Duration
		namespace         string
		expectedTTL       time.Duration
		expectedNamespace string
	}{
		{"zero values", 0, "", 10 * time.Minute, "kq"},
		{"negative ttl", -time.Second, "", 10 * time.Minute, "kq"},
		{"custom", time.Hour, "results", time.Hour, "results"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := NewCachingClassifier(nil, tt.ttl, &countingClassifier{}, tt.namespace)
			assert.Equal(t, tt.expectedTTL, c.ttl)
			assert.Equal(t, tt.expectedNamespace, c.namespace)
		})
	}
}

func TestCachingClassifier_NilRedis(t *testing.T) {
	t.Parallel()

	inner := &countingClassifier{result: &model.ClassificationResult{Disease: "vay", Score: 80}}
	c := NewCachingClassifier(nil, time.Minute, inner, "kq")

	for i := 0; i < 2; i++ {
		res, err := c.Classify(context.Background(), model.ClassificationRequest{Image: "img", Model: "vgg16"})
		require.NoError(t, err)
		assert.Equal(t, "vay", res.Disease)
	}
	assert.Equal(t, 2, inner.calls)
	assert.NoError(t, c.Invalidate(context.Background(), "vgg16"))
}

func TestCachingClassifier_CacheHit(t *testing.T) {
	t.Parallel()

	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	cached, _ := json.Marshal(model.ClassificationResult{Disease: "day", Score: 64})
	mock.ExpectGet(keyFor("kq", "vgg16", "img")).SetVal(string(cached))

	inner := &countingClassifier{}
	c := NewCachingClassifier(rdb, time.Minute, inner, "kq")

	res, err := c.Classify(context.Background(), model.ClassificationRequest{Image: "img", Model: "vgg16"})
	require.NoError(t, err)
	assert.Equal(t, "day", res.Disease)
	assert.Equal(t, float32(64), res.Score)
	assert.Zero(t, inner.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachingClassifier_CacheMiss(t *testing.T) {
	t.Parallel()

	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	want := &model.ClassificationResult{Disease: "ung_thu", Score: 91.5}
	wantJSON, _ := json.Marshal(want)
	key := keyFor("kq", "resnet50", "img")

	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, wantJSON, time.Minute).SetVal("OK")

	inner := &countingClassifier{result: want}
	c := NewCachingClassifier(rdb, time.Minute, inner, "kq")

	res, err := c.Classify(context.Background(), model.ClassificationRequest{Image: "img", Model: "resnet50"})
	require.NoError(t, err)
	assert.Equal(t, want, res)
	assert.Equal(t, 1, inner.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachingClassifier_InnerErrorNotCached(t *testing.T) {
	t.Parallel()

	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	expectedErr := errors.New("inference failed")
	mock.ExpectGet(keyFor("kq", "resnet50", "img")).RedisNil()

	c := NewCachingClassifier(rdb, time.Minute, &countingClassifier{err: expectedErr}, "kq")

	_, err := c.Classify(context.Background(), model.ClassificationRequest{Image: "img", Model: "resnet50"})
	assert.ErrorIs(t, err, expectedErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachingClassifier_CorruptedEntry(t *testing.T) {
	t.Parallel()

	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	want := &model.ClassificationResult{Disease: "vay", Score: 55}
	wantJSON, _ := json.Marshal(want)
	key := keyFor("kq", "vgg16", "img")

	mock.ExpectGet(key).SetVal("{broken")
	mock.ExpectDel(key).SetVal(1)
	mock.ExpectSet(key, wantJSON, time.Minute).SetVal("OK")

	inner := &countingClassifier{result: want}
	c := NewCachingClassifier(rdb, time.Minute, inner, "kq")

	res, err := c.Classify(context.Background(), model.ClassificationRequest{Image: "img", Model: "vgg16"})
	require.NoError(t, err)
	assert.Equal(t, want, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachingClassifier_DifferentImagesDifferentKeys(t *testing.T) {
	t.Parallel()

	assert.NotEqual(t, keyFor("kq", "vgg16", "a"), keyFor("kq", "vgg16", "b"))

	c := NewCachingClassifier(nil, 0, &countingClassifier{}, "")
	assert.Equal(t, keyFor("kq", "vgg16", "a"), c.cacheKey("vgg16", "a"))
}

func TestCachingClassifier_Invalidate(t *testing.T) {
	t.Parallel()

	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	mock.ExpectScan(0, "kq:vgg16:*", 200).SetVal([]string{"kq:vgg16:aa", "kq:vgg16:bb"}, 0)
	mock.ExpectDel("kq:vgg16:aa", "kq:vgg16:bb").SetVal(2)

	c := NewCachingClassifier(rdb, time.Minute, &countingClassifier{}, "kq")

	require.NoError(t, c.Invalidate(context.Background(), "vgg16"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSafe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{"resnet50", "resnet50"},
		{"my model", "my_model"},
		{"a:b", "a_b"},
		{"x*", "x_"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, safe(tt.input), "input %q", tt.input)
	}
}
