package service

import (
	"sync"
	"time"
)

// Operation names used by the collector.
const (
	OpOpenBatch          = "open_batch"
	OpCloseBatch         = "close_batch"
	OpSubmitBallot       = "submit_ballot"
	OpComputeResults     = "compute_results"
	OpRequestDecryption  = "request_decryption"
	OpDecryptionResponse = "decryption_response"
)

// MetricsCollector tracks performance metrics for different operations
type MetricsCollector struct {
	mu         sync.RWMutex
	operations map[string]*operationStats
	rejections map[string]int
}

type operationStats struct {
	firstTime time.Time
	lastTime  time.Time
	count     int
	failed    int
	totalTime time.Duration
}

// OperationMetrics contains timing information for an operation
type OperationMetrics struct {
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Count          int       `json:"count"`
	Failed         int       `json:"failed"`
	ProcessingTime int64     `json:"processing_time_ms"`
}

// MetricsResponse provides the metrics for all operations
type MetricsResponse struct {
	Operations map[string]OperationMetrics `json:"operations"`
	// Rejections counts failures by error class.
	Rejections map[string]int `json:"rejections"`
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		operations: make(map[string]*operationStats),
		rejections: make(map[string]int),
	}
}

// Record accounts one finished operation that started at start.
func (mc *MetricsCollector) Record(op string, start time.Time, err error) {
	end := time.Now()

	mc.mu.Lock()
	defer mc.mu.Unlock()

	stats, ok := mc.operations[op]
	if !ok {
		stats = &operationStats{firstTime: start}
		mc.operations[op] = stats
	}
	stats.count++
	stats.lastTime = end
	stats.totalTime += end.Sub(start)

	if err != nil {
		stats.failed++
		mc.rejections[errorClass(err)]++
	}
}

// GetMetrics returns current metrics for all operations
func (mc *MetricsCollector) GetMetrics() MetricsResponse {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	resp := MetricsResponse{
		Operations: make(map[string]OperationMetrics, len(mc.operations)),
		Rejections: make(map[string]int, len(mc.rejections)),
	}
	for op, stats := range mc.operations {
		resp.Operations[op] = OperationMetrics{
			StartTime:      stats.firstTime,
			EndTime:        stats.lastTime,
			Count:          stats.count,
			Failed:         stats.failed,
			ProcessingTime: stats.totalTime.Milliseconds(),
		}
	}
	for class, n := range mc.rejections {
		resp.Rejections[class] = n
	}
	return resp
}
