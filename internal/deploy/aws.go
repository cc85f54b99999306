package deploy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/acm"
	acmtypes "github.com/aws/aws-sdk-go-v2/service/acm/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Deployer publishes site HTML to S3 and serves it through CloudFront
// with an ACM certificate on the www subdomain.
type Deployer struct {
	s3  *s3.Client
	cf  *cloudfront.Client
	acm *acm.Client

	bucket string
	region string
}

// NewDeployer builds AWS clients from static credentials. The ACM client
// is pinned to us-east-1, which CloudFront requires for certificates.
func NewDeployer(ctx context.Context, region, accessKey, secretKey, bucket string) (*Deployer, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Deployer{
		s3: s3.NewFromConfig(cfg),
		cf: cloudfront.NewFromConfig(cfg),
		acm: acm.NewFromConfig(cfg, func(o *acm.Options) {
			o.Region = "us-east-1"
		}),
		bucket: bucket,
		region: region,
	}, nil
}

// UploadSite writes the rendered page to the site's S3 prefix
func (d *Deployer) UploadSite(ctx context.Context, domainName, html string) error {
	_, err := d.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(domainName + "/index.html"),
		Body:        strings.NewReader(html),
		ContentType: aws.String("text/html; charset=utf-8"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload site: %w", err)
	}
	return nil
}

// DistributionInfo identifies the CDN distribution serving a site
type DistributionInfo struct {
	ID      string
	Domain  string
	CertARN string
}

// EnsureDistribution returns the existing distribution or creates a new
// one with a fresh ACM certificate for www.<domain>.
func (d *Deployer) EnsureDistribution(ctx context.Context, domainName, existingDistID, existingCertARN string) (*DistributionInfo, error) {
	if existingDistID != "" {
		dist, err := d.cf.GetDistribution(ctx, &cloudfront.GetDistributionInput{
			Id: aws.String(existingDistID),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get distribution: %w", err)
		}
		return &DistributionInfo{
			ID:      existingDistID,
			Domain:  aws.ToString(dist.Distribution.DomainName),
			CertARN: existingCertARN,
		}, nil
	}

	certARN, err := d.requestCertificate(ctx, domainName)
	if err != nil {
		return nil, err
	}

	originDomain := fmt.Sprintf("%s.s3.%s.amazonaws.com", d.bucket, d.region)
	originID := "S3-" + domainName
	callerRef := fmt.Sprintf("%s-%d", domainName, time.Now().UnixMilli())

	result, err := d.cf.CreateDistribution(ctx, &cloudfront.CreateDistributionInput{
		DistributionConfig: &cftypes.DistributionConfig{
			CallerReference: aws.String(callerRef),
			Comment:         aws.String("Site for www." + domainName),
			Enabled:         aws.Bool(true),
			Aliases: &cftypes.Aliases{
				Quantity: aws.Int32(1),
				Items:    []string{"www." + domainName},
			},
			Origins: &cftypes.Origins{
				Quantity: aws.Int32(1),
				Items: []cftypes.Origin{
					{
						Id:         aws.String(originID),
						DomainName: aws.String(originDomain),
						OriginPath: aws.String("/" + domainName),
						S3OriginConfig: &cftypes.S3OriginConfig{
							OriginAccessIdentity: aws.String(""),
						},
					},
				},
			},
			DefaultCacheBehavior: &cftypes.DefaultCacheBehavior{
				TargetOriginId:       aws.String(originID),
				ViewerProtocolPolicy: cftypes.ViewerProtocolPolicyRedirectToHttps,
				AllowedMethods: &cftypes.AllowedMethods{
					Quantity: aws.Int32(2),
					Items:    []cftypes.Method{cftypes.MethodGet, cftypes.MethodHead},
				},
				ForwardedValues: &cftypes.ForwardedValues{
					QueryString: aws.Bool(false),
					Cookies:     &cftypes.CookiePreference{Forward: cftypes.ItemSelectionNone},
				},
				MinTTL:     aws.Int64(0),
				DefaultTTL: aws.Int64(86400),
				MaxTTL:     aws.Int64(31536000),
				Compress:   aws.Bool(true),
			},
			DefaultRootObject: aws.String("index.html"),
			ViewerCertificate: &cftypes.ViewerCertificate{
				ACMCertificateArn:      aws.String(certARN),
				SSLSupportMethod:       cftypes.SSLSupportMethodSniOnly,
				MinimumProtocolVersion: cftypes.MinimumProtocolVersionTLSv122021,
			},
			HttpVersion: cftypes.HttpVersionHttp2,
			PriceClass:  cftypes.PriceClassPriceClass100,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create distribution: %w", err)
	}

	return &DistributionInfo{
		ID:      aws.ToString(result.Distribution.Id),
		Domain:  aws.ToString(result.Distribution.DomainName),
		CertARN: certARN,
	}, nil
}

func (d *Deployer) requestCertificate(ctx context.Context, domainName string) (string, error) {
	result, err := d.acm.RequestCertificate(ctx, &acm.RequestCertificateInput{
		DomainName:       aws.String("www." + domainName),
		ValidationMethod: acmtypes.ValidationMethodDns,
	})
	if err != nil {
		return "", fmt.Errorf("failed to request certificate: %w", err)
	}
	return aws.ToString(result.CertificateArn), nil
}

// CertValidationRecord is the DNS record proving certificate ownership
type CertValidationRecord struct {
	Name  string
	Value string
}

// CertificateValidationRecord fetches the pending DNS validation record
// for a certificate, or nil if ACM has not issued one yet.
func (d *Deployer) CertificateValidationRecord(ctx context.Context, certARN string) (*CertValidationRecord, error) {
	result, err := d.acm.DescribeCertificate(ctx, &acm.DescribeCertificateInput{
		CertificateArn: aws.String(certARN),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe certificate: %w", err)
	}

	if result.Certificate == nil || len(result.Certificate.DomainValidationOptions) == 0 {
		return nil, nil
	}
	record := result.Certificate.DomainValidationOptions[0].ResourceRecord
	if record == nil {
		return nil, nil
	}
	return &CertValidationRecord{
		Name:  aws.ToString(record.Name),
		Value: aws.ToString(record.Value),
	}, nil
}

// DisableDistribution turns a distribution off ahead of teardown. A
// distribution that is already disabled is left alone.
func (d *Deployer) DisableDistribution(ctx context.Context, distributionID string) error {
	result, err := d.cf.GetDistribution(ctx, &cloudfront.GetDistributionInput{
		Id: aws.String(distributionID),
	})
	if err != nil {
		return fmt.Errorf("failed to get distribution: %w", err)
	}

	config := result.Distribution.DistributionConfig
	if config == nil || !aws.ToBool(config.Enabled) {
		return nil
	}

	config.Enabled = aws.Bool(false)
	_, err = d.cf.UpdateDistribution(ctx, &cloudfront.UpdateDistributionInput{
		Id:                 aws.String(distributionID),
		IfMatch:            result.ETag,
		DistributionConfig: config,
	})
	if err != nil {
		return fmt.Errorf("failed to disable distribution: %w", err)
	}
	return nil
}

// Invalidate flushes all cached paths of a distribution
func (d *Deployer) Invalidate(ctx context.Context, distributionID string) error {
	_, err := d.cf.CreateInvalidation(ctx, &cloudfront.CreateInvalidationInput{
		DistributionId: aws.String(distributionID),
		InvalidationBatch: &cftypes.InvalidationBatch{
			CallerReference: aws.String(fmt.Sprintf("invalidate-%d", time.Now().UnixMilli())),
			Paths: &cftypes.Paths{
				Quantity: aws.Int32(1),
				Items:    []string{"/*"},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create invalidation: %w", err)
	}
	return nil
}
