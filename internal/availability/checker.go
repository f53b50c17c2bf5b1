package availability

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"tablebook/internal/metrics"
	"tablebook/internal/model"
)

// Source names accepted by NewChecker.
const (
	SourceLocal     = "local"
	SourceRemote    = "remote"
	SourceConsensus = "consensus"
)

// RemoteAPI is the upstream availability endpoint.
type RemoteAPI interface {
	CheckAvailability(ctx context.Context, req model.AvailabilityRequest) (*model.AvailabilityResult, error)
}

// Remote delegates to the upstream API.
type Remote struct {
	api RemoteAPI
}

// NewRemote wraps the upstream availability endpoint.
func NewRemote(api RemoteAPI) *Remote {
	return &Remote{api: api}
}

func (r *Remote) Check(ctx context.Context, req model.AvailabilityRequest) (model.AvailabilityResult, error) {
	if _, _, err := ValidateRequest(req); err != nil {
		return emptyResult(false), err
	}
	res, err := r.api.CheckAvailability(ctx, req)
	if err != nil {
		return emptyResult(false), fmt.Errorf("remote availability: %w", err)
	}
	if res.AvailableTables == nil {
		res.AvailableTables = []model.Table{}
	}
	return *res, nil
}

// Consensus runs the local pre-check and the upstream check. The upstream
// answer is returned; disagreements are logged and counted.
type Consensus struct {
	local  Checker
	remote Checker
	logger zerolog.Logger
}

// NewConsensus builds a checker where remote is authoritative.
func NewConsensus(local, remote Checker, logger zerolog.Logger) *Consensus {
	return &Consensus{local: local, remote: remote, logger: logger}
}

func (c *Consensus) Check(ctx context.Context, req model.AvailabilityRequest) (model.AvailabilityResult, error) {
	remote, err := c.remote.Check(ctx, req)
	if err != nil {
		return remote, err
	}

	local, err := c.local.Check(ctx, req)
	if err != nil {
		c.logger.Warn().Err(err).Str("slot", req.Key()).Msg("local availability pre-check failed")
		return remote, nil
	}

	if kind := divergence(local, remote); kind != "" {
		metrics.IncAvailabilityDivergence(kind)
		c.logger.Warn().
			Str("slot", req.Key()).
			Str("kind", kind).
			Strs("local_tables", tableIDs(local.AvailableTables)).
			Strs("remote_tables", tableIDs(remote.AvailableTables)).
			Msg("local and upstream availability disagree")
	}
	return remote, nil
}

// NewChecker selects an implementation by configured source name.
func NewChecker(source string, local *Evaluator, remote *Remote, logger zerolog.Logger) (Checker, error) {
	switch source {
	case SourceLocal:
		return local, nil
	case SourceRemote:
		return remote, nil
	case SourceConsensus, "":
		return NewConsensus(local, remote, logger), nil
	default:
		return nil, fmt.Errorf("unknown availability source %q", source)
	}
}

func divergence(local, remote model.AvailabilityResult) string {
	if local.IsValidTime != remote.IsValidTime {
		return "valid_time"
	}
	a, b := tableIDs(local.AvailableTables), tableIDs(remote.AvailableTables)
	if len(a) != len(b) {
		return "tables"
	}
	for i := range a {
		if a[i] != b[i] {
			return "tables"
		}
	}
	return ""
}

func tableIDs(tables []model.Table) []string {
	ids := make([]string, len(tables))
	for i, t := range tables {
		ids[i] = t.ID
	}
	sort.Strings(ids)
	return ids
}
