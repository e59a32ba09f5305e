// internal/workers/loan/loan-search/handler.go
package loansearch

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"

	"ymfb-workers/internal/common/cache"
	"ymfb-workers/internal/common/logger"
	"ymfb-workers/internal/common/metrics"
	"ymfb-workers/internal/search"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/redis/go-redis/v9"
)

const TaskType = "loan-search"

var (
	ErrSearchQueryFailed = errors.New("SEARCH_QUERY_FAILED")
	ErrSearchTimeout     = errors.New("SEARCH_TIMEOUT")
)

type Handler struct {
	config *Config
	es     *elasticsearch.Client
	redis  *redis.Client
	logger logger.Logger
}

// NewHandler wires the worker. redis may be nil; every search then goes to
// Elasticsearch directly.
func NewHandler(config *Config, es *elasticsearch.Client, rdb *redis.Client, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		es:     es,
		redis:  rdb,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		errorCode := "UNKNOWN_ERROR"
		switch {
		case errors.Is(err, ErrSearchTimeout):
			errorCode = "SEARCH_TIMEOUT"
		case errors.Is(err, ErrSearchQueryFailed):
			errorCode = "SEARCH_QUERY_FAILED"
		}
		h.failJob(client, job, errorCode, err.Error())
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = h.config.DefaultLimit
	}
	if limit > h.config.MaxLimit {
		limit = h.config.MaxLimit
	}

	key, err := h.cacheKey(ctx, input, limit)
	if err != nil {
		// A cache failure never fails the search.
		h.logger.Warn("cache key unavailable", map[string]interface{}{"error": err.Error()})
		key = ""
	}

	if key != "" {
		if cached, ok := h.fromCache(ctx, key); ok {
			return cached, nil
		}
	}

	output, err := h.query(ctx, input, limit)
	if err != nil {
		return nil, err
	}

	if key != "" {
		h.store(ctx, key, output)
	}
	return output, nil
}

func (h *Handler) query(ctx context.Context, input *Input, limit int) (*Output, error) {
	body, err := search.BuildQuery(input.Query, input.Status, input.Ministry, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchQueryFailed, err)
	}

	res, err := h.es.Search(
		h.es.Search.WithContext(ctx),
		h.es.Search.WithIndex(search.IndexName),
		h.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrSearchTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrSearchQueryFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("%w: %s", ErrSearchQueryFailed, res.Status())
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source search.Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrSearchQueryFailed, err)
	}

	results := make([]search.Document, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		results = append(results, hit.Source)
	}

	return &Output{
		Results: results,
		Total:   parsed.Hits.Total.Value,
	}, nil
}

// cacheKey folds the current cache version into the key, so bumping the
// version orphans every cached page at once.
func (h *Handler) cacheKey(ctx context.Context, input *Input, limit int) (string, error) {
	if h.redis == nil {
		return "", nil
	}
	version, err := cache.Version(ctx, h.redis)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%d", input.Query, input.Status, input.Ministry, limit)))
	return fmt.Sprintf("loan-search:v%d:%x", version, sum[:8]), nil
}

func (h *Handler) fromCache(ctx context.Context, key string) (*Output, bool) {
	raw, err := h.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		h.logger.Warn("cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
		return nil, false
	}

	var output Output
	if err := json.Unmarshal(raw, &output); err != nil {
		h.logger.Warn("discarding corrupt cache entry", map[string]interface{}{"key": key})
		return nil, false
	}
	output.FromCache = true
	return &output, true
}

func (h *Handler) store(ctx context.Context, key string, output *Output) {
	raw, err := json.Marshal(output)
	if err != nil {
		return
	}
	if err := h.redis.Set(ctx, key, raw, h.config.CacheTTL).Err(); err != nil {
		h.logger.Warn("cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, errorCode, errorMessage string) {
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":       job.Key,
		"errorCode":    errorCode,
		"errorMessage": errorMessage,
	})
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, errorCode).Inc()

	_, err := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(errorCode).
		ErrorMessage(errorMessage).
		Send(context.Background())
	if err != nil {
		h.logger.Error("failed to throw error", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
