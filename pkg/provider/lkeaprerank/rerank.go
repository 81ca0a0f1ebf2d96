package lkeaprerank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	lkeapsdk "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/lkeap/v20240522"

	"github.com/lkeap-plugin/lkeap/pkg/debug"
	"github.com/lkeap-plugin/lkeap/pkg/model"
	"github.com/lkeap-plugin/lkeap/pkg/observability"
	"github.com/lkeap-plugin/lkeap/pkg/provider"
)

// RerankModel is the rerank adapter. A new vendor client is built for every
// invocation from the request credentials.
type RerankModel struct {
	newClient ClientFactory
}

// Compile-time interface check.
var _ provider.RerankModel = (*RerankModel)(nil)

// New creates a rerank adapter with the given configuration.
func New(cfg Config) (*RerankModel, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if cfg.Scheme == "" {
		cfg.Scheme = DefaultScheme
	}
	cfg.Scheme = strings.ToUpper(cfg.Scheme)
	if cfg.Scheme != "HTTPS" && cfg.Scheme != "HTTP" {
		return nil, fmt.Errorf("lkeaprerank: unsupported scheme %q", cfg.Scheme)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	factory := cfg.NewClient
	if factory == nil {
		factory = sdkClientFactory(cfg)
	}
	return &RerankModel{newClient: factory}, nil
}

// Invoke scores docs against the query. Documents are kept in input order;
// when a threshold is set only documents scoring at or above it are kept.
// Each kept document is indexed by its position in the output.
//
// TopN is logged but not enforced; callers needing truncation apply it
// themselves.
func (r *RerankModel) Invoke(ctx context.Context, req *model.RerankRequest) (*model.RerankResult, error) {
	if len(req.Docs) == 0 {
		return &model.RerankResult{Model: req.Model, Docs: []model.RerankDocument{}}, nil
	}
	if req.Model != SupportedModel {
		return nil, model.NewValidationError("model", fmt.Sprintf("invalid model name %q, only %s is supported", req.Model, SupportedModel))
	}

	invocationID := uuid.NewString()
	debug.Log("rerank", "rerank request",
		"invocation_id", invocationID,
		"model", req.Model,
		"docs", len(req.Docs),
		"has_threshold", req.ScoreThreshold != nil,
	)
	if req.TopN != nil {
		slog.Debug("top_n is not enforced by the rerank adapter",
			"invocation_id", invocationID,
			"top_n", *req.TopN,
		)
	}

	scores, err := r.run(ctx, req.Credentials, req.Model, req.Query, req.Docs)
	if err != nil {
		return nil, err
	}

	result := &model.RerankResult{
		Model: req.Model,
		Docs:  assembleDocuments(req.Model, req.Docs, scores, req.ScoreThreshold),
	}

	debug.Log("rerank", "rerank response",
		"invocation_id", invocationID,
		"scores", len(scores),
		"kept", len(result.Docs),
	)
	return result, nil
}

// ValidateCredentials performs a minimal rerank call. Any failure is
// reported as a credentials error.
func (r *RerankModel) ValidateCredentials(ctx context.Context, modelName string, creds model.Credentials) error {
	if _, err := r.run(ctx, creds, modelName, "test", []string{"test document"}); err != nil {
		return credentialsFailure(err)
	}
	return nil
}

// credentialsFailure reports err as a credentials error, keeping the vendor
// message of a wrapped *model.Error.
func credentialsFailure(err error) error {
	if model.IsCredentialsError(err) {
		return err
	}
	msg := err.Error()
	var me *model.Error
	if errors.As(err, &me) {
		msg = me.Message
	}
	return model.NewCredentialsError("Credentials validation failed: " + msg)
}

// run builds a client for the credentials and performs one RunRerank call.
func (r *RerankModel) run(ctx context.Context, creds model.Credentials, modelName, query string, docs []string) ([]*float64, error) {
	secretID := creds.Get(CredentialSecretID)
	secretKey := creds.Get(CredentialSecretKey)
	if secretID == "" || secretKey == "" {
		return nil, model.NewCredentialsError("Secret ID and Secret Key are required")
	}

	client, err := r.newClient(secretID, secretKey)
	if err != nil {
		return nil, mapVendorError(err)
	}

	sdkReq := lkeapsdk.NewRunRerankRequest()
	sdkReq.Query = common.StringPtr(query)
	sdkReq.Docs = common.StringPtrs(docs)
	sdkReq.Model = common.StringPtr(modelName)

	started := time.Now()
	resp, err := client.RunRerankWithContext(ctx, sdkReq)
	if err != nil {
		merr := mapVendorError(err)
		observability.ObserveRequest(ProviderName, modelName, started, merr)
		return nil, merr
	}
	observability.ObserveRequest(ProviderName, modelName, started, nil)

	if resp == nil || resp.Response == nil {
		return nil, nil
	}
	return resp.Response.ScoreList, nil
}

// assembleDocuments pairs docs with their scores and applies the threshold.
// Pairs beyond the shorter of the two lists are ignored.
func assembleDocuments(modelName string, docs []string, scores []*float64, threshold *float64) []model.RerankDocument {
	out := []model.RerankDocument{}
	if len(scores) == 0 {
		return out
	}

	n := len(docs)
	if len(scores) != n {
		slog.Warn("rerank score count does not match document count",
			"model", modelName,
			"docs", len(docs),
			"scores", len(scores),
		)
		n = min(n, len(scores))
	}

	for i := 0; i < n; i++ {
		if scores[i] == nil {
			slog.Warn("rerank returned no score for document", "model", modelName, "position", i)
			continue
		}
		score := *scores[i]
		if threshold != nil && score < *threshold {
			observability.RerankDocumentsTotal.WithLabelValues(modelName, "filtered").Inc()
			continue
		}
		out = append(out, model.RerankDocument{
			Index: len(out),
			Score: score,
			Text:  docs[i],
		})
		observability.RerankDocumentsTotal.WithLabelValues(modelName, "kept").Inc()
	}
	return out
}
