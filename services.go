package spark

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Masterminds/semver/v3"

	sparkerrors "github.com/Coherent-Partners/spark-go-sdk/errors"
	"github.com/Coherent-Partners/spark-go-sdk/internal/rest"
)

// ServicesClient executes synchronous, single-call calculations. It carries
// no state machine; it is a thin wrapper over the shared request executor.
// Access it through Client.Services.
type ServicesClient struct {
	exec   *rest.Executor
	logger *slog.Logger
}

// ExecuteParams describes one synchronous calculation.
type ExecuteParams struct {
	// Service locates the target service, as "folder/service".
	Service string

	// VersionID pins an exact service revision by id. Optional.
	VersionID string

	// Version pins a published semantic version. Optional; validated before
	// submission.
	Version string

	// Inputs are the calculation inputs, one record.
	Inputs map[string]any

	// Parameters are shared calculation settings.
	Parameters map[string]any
}

// ExecuteResult is the outcome of one synchronous calculation.
type ExecuteResult struct {
	Outputs     []map[string]any `json:"outputs,omitempty"`
	ProcessTime int64            `json:"process_time,omitempty"`
	VersionID   string           `json:"version_id,omitempty"`
	CallID      string           `json:"call_id,omitempty"`
}

// Execute runs one calculation against the located service and returns its
// outputs.
func (s *ServicesClient) Execute(ctx context.Context, params *ExecuteParams) (*ExecuteResult, error) {
	if params == nil || params.Service == "" {
		return nil, fmt.Errorf("%w: execute requires a service locator", sparkerrors.ErrInvalidInput)
	}
	if len(params.Inputs) == 0 {
		return nil, fmt.Errorf("%w: execute requires inputs", sparkerrors.ErrNoData)
	}

	body := map[string]any{
		"service": params.Service,
		"inputs":  params.Inputs,
	}
	if params.VersionID != "" {
		body["version_id"] = params.VersionID
	}
	if params.Version != "" {
		version, err := semver.NewVersion(params.Version)
		if err != nil {
			return nil, fmt.Errorf("%w: version pin %q is not a semantic version", sparkerrors.ErrInvalidInput, params.Version)
		}
		body["version"] = version.String()
	}
	if len(params.Parameters) > 0 {
		body["parameters"] = params.Parameters
	}

	res, err := s.exec.Do(ctx, rest.Request{
		Method: http.MethodPost,
		Path:   "api/v4/execute",
		Body:   body,
	})
	if err != nil {
		return nil, err
	}

	var result ExecuteResult
	if err := res.Decode(&result); err != nil {
		return nil, err
	}
	if s.logger != nil {
		s.logger.Info("service executed",
			"service", params.Service, "call_id", result.CallID, "process_time_ms", result.ProcessTime)
	}
	return &result, nil
}
