package grpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oriys/dispatchfabric/internal/dispatch"
	"github.com/oriys/dispatchfabric/internal/logging"
)

// DataPlaneServer implements the data plane gRPC service. Every Invoke
// call submits a command into the dispatch fabric; the gRPC caller plays
// the agent role and the server drives RunOnce/Drain itself since nothing
// else ticks the fabric in gRPC-only mode.
type DataPlaneServer struct {
	dispatch *dispatch.Fabric
}

// NewDataPlaneServer creates a new data plane gRPC server backed by fabric.
func NewDataPlaneServer(fabric *dispatch.Fabric) *DataPlaneServer {
	return &DataPlaneServer{dispatch: fabric}
}

// InvokeRequest represents a function invocation request
type InvokeRequest struct {
	Function string
	Payload  []byte
	TimeoutS int32
	Metadata map[string]string
}

// InvokeResponse represents a function invocation response
type InvokeResponse struct {
	RequestID  string
	Output     []byte
	Error      string
	DurationMs int64
	ColdStart  bool
}

// Invoke submits req as a dispatch command. The command type is
// req.Function; the per-call agent ID comes from req.Metadata["agent_id"]
// when present so distinct callers get distinct rate-limit buckets,
// falling back to the function name otherwise. There is no independent
// tick driving the fabric in this mode, so Invoke drives RunOnce/Drain
// itself until the outcome arrives or ctx expires.
func (s *DataPlaneServer) Invoke(ctx context.Context, req *InvokeRequest) (*InvokeResponse, error) {
	if req.Function == "" {
		return nil, fmt.Errorf("function name is required")
	}

	var payload json.RawMessage
	if len(req.Payload) > 0 {
		if !json.Valid(req.Payload) {
			return nil, fmt.Errorf("payload must be valid JSON")
		}
		payload = req.Payload
	} else {
		payload = json.RawMessage("{}")
	}

	var body map[string]dispatch.Value
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("payload must decode to a JSON object: %w", err)
	}

	agentID := req.Metadata["agent_id"]
	if agentID == "" {
		agentID = req.Function
	}

	start := time.Now()
	future, err := s.dispatch.Facade.SubmitFuture(req.Function, body, agentID)
	if err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}

	for !future.Done() {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("invoke via dispatch: %w", ctx.Err())
		default:
		}
		s.dispatch.Executor.RunOnce(time.Now().UnixNano(), 32)
		s.dispatch.Bridge.Drain(32)
		if !future.Done() {
			time.Sleep(time.Millisecond)
		}
	}

	result := future.Wait()
	output, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal dispatch result: %w", err)
	}

	resp := &InvokeResponse{
		Output:     output,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if success, _ := result["success"].(bool); !success {
		if msg, ok := result["error"].(string); ok {
			resp.Error = msg
		}
	}
	return resp, nil
}

// HealthRequest represents a health check request
type HealthRequest struct{}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status     string
	Components map[string]string
}

// Health returns service health status
func (s *DataPlaneServer) Health(ctx context.Context, req *HealthRequest) (*HealthResponse, error) {
	if s.dispatch == nil {
		return &HealthResponse{
			Status:     "unhealthy",
			Components: map[string]string{"dispatch": "unhealthy: fabric not wired"},
		}, nil
	}

	return &HealthResponse{
		Status:     "healthy",
		Components: map[string]string{"dispatch": "healthy"},
	}, nil
}

// GetMetricsRequest represents a metrics request
type GetMetricsRequest struct {
	Function     string
	RangeSeconds int32
}

// GetMetricsResponse mirrors the dispatch fabric's per-command-type
// counters for the requested function.
type GetMetricsResponse struct {
	TotalInvocations      int64
	SuccessfulInvocations int64
	FailedInvocations     int64
}

// GetMetrics returns dispatch counters for req.Function's command type.
func (s *DataPlaneServer) GetMetrics(ctx context.Context, req *GetMetricsRequest) (*GetMetricsResponse, error) {
	logging.Op().Info("GetMetrics called", "function", req.Function, "range", req.RangeSeconds)

	snap := s.dispatch.Executor.Snapshot()
	c := snap.Types[req.Function]
	return &GetMetricsResponse{
		TotalInvocations:      int64(c.Executed + c.Failed),
		SuccessfulInvocations: int64(c.Executed),
		FailedInvocations:     int64(c.Failed),
	}, nil
}
