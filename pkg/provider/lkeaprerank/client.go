package lkeaprerank

import (
	"context"
	"fmt"

	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"
	lkeapsdk "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/lkeap/v20240522"
)

// Client is the subset of the SDK client used by the adapter.
type Client interface {
	RunRerankWithContext(ctx context.Context, request *lkeapsdk.RunRerankRequest) (*lkeapsdk.RunRerankResponse, error)
}

// ClientFactory builds a signed, region-scoped client for one invocation.
type ClientFactory func(secretID, secretKey string) (Client, error)

// sdkClientFactory returns a factory building SDK clients bound to the
// configured endpoint and region.
func sdkClientFactory(cfg Config) ClientFactory {
	return func(secretID, secretKey string) (Client, error) {
		cred := common.NewCredential(secretID, secretKey)

		cpf := profile.NewClientProfile()
		cpf.HttpProfile.Endpoint = cfg.Endpoint
		cpf.HttpProfile.Scheme = cfg.Scheme
		cpf.HttpProfile.ReqTimeout = int(cfg.Timeout.Seconds())

		client, err := lkeapsdk.NewClient(cred, cfg.Region, cpf)
		if err != nil {
			return nil, fmt.Errorf("failed to create rerank client: %w", err)
		}
		return client, nil
	}
}
