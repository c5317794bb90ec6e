// Package aws exposes hardware pricing from the AWS Pricing API.
package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/pricing"
	"github.com/aws/aws-sdk-go-v2/service/pricing/types"

	"finetune-orchestrator/core/models"
)

// instanceTypes maps hardware types to the EC2 instance type whose
// on-demand rate stands in for that backend. TPUs have no AWS listing,
// so their rate always comes from the static table.
var instanceTypes = map[models.HardwareType]string{
	models.HardwareGPU:      "p3.2xlarge",
	models.HardwareAMD:      "g4ad.xlarge",
	models.HardwareTrainium: "trn1.2xlarge",
}

// Client queries the AWS Pricing API
type Client struct {
	pricing *pricing.Client
	region  string
}

// NewClient creates a pricing client. The Pricing API is only served in
// us-east-1 and ap-south-1; queries are priced against the given
// deployment region.
func NewClient(ctx context.Context, region string) (*Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion("us-east-1"))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Client{
		pricing: pricing.NewFromConfig(cfg),
		region:  region,
	}, nil
}

// FetchRates returns current on-demand hourly rates for the hardware
// types with an AWS listing. Implements cost.RateSource.
func (c *Client) FetchRates(ctx context.Context) (map[models.HardwareType]float64, error) {
	rates := make(map[models.HardwareType]float64, len(instanceTypes))
	for hardware, instanceType := range instanceTypes {
		rate, err := c.onDemandRate(ctx, instanceType)
		if err != nil {
			return nil, fmt.Errorf("fetch rate for %s (%s): %w", hardware, instanceType, err)
		}
		rates[hardware] = rate
	}
	return rates, nil
}

func (c *Client) onDemandRate(ctx context.Context, instanceType string) (float64, error) {
	out, err := c.pricing.GetProducts(ctx, &pricing.GetProductsInput{
		ServiceCode: aws.String("AmazonEC2"),
		MaxResults:  aws.Int32(1),
		Filters: []types.Filter{
			{Type: types.FilterTypeTermMatch, Field: aws.String("instanceType"), Value: aws.String(instanceType)},
			{Type: types.FilterTypeTermMatch, Field: aws.String("operatingSystem"), Value: aws.String("Linux")},
			{Type: types.FilterTypeTermMatch, Field: aws.String("tenancy"), Value: aws.String("Shared")},
			{Type: types.FilterTypeTermMatch, Field: aws.String("preInstalledSw"), Value: aws.String("NA")},
			{Type: types.FilterTypeTermMatch, Field: aws.String("capacitystatus"), Value: aws.String("Used")},
			{Type: types.FilterTypeTermMatch, Field: aws.String("regionCode"), Value: aws.String(c.region)},
		},
	})
	if err != nil {
		return 0, err
	}
	if len(out.PriceList) == 0 {
		return 0, fmt.Errorf("no price listing for %s in %s", instanceType, c.region)
	}
	return parseOnDemandUSD([]byte(out.PriceList[0]))
}

// parseOnDemandUSD walks the Pricing API product document down to the
// first on-demand price dimension's USD figure.
func parseOnDemandUSD(doc []byte) (float64, error) {
	var product struct {
		Terms struct {
			OnDemand map[string]struct {
				PriceDimensions map[string]struct {
					PricePerUnit struct {
						USD string `json:"USD"`
					} `json:"pricePerUnit"`
				} `json:"priceDimensions"`
			} `json:"OnDemand"`
		} `json:"terms"`
	}
	if err := json.Unmarshal(doc, &product); err != nil {
		return 0, fmt.Errorf("decode price document: %w", err)
	}
	for _, term := range product.Terms.OnDemand {
		for _, dim := range term.PriceDimensions {
			usd, err := strconv.ParseFloat(dim.PricePerUnit.USD, 64)
			if err != nil {
				return 0, fmt.Errorf("parse USD price %q: %w", dim.PricePerUnit.USD, err)
			}
			return usd, nil
		}
	}
	return 0, fmt.Errorf("no on-demand price dimension in document")
}
