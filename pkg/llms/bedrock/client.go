// Package bedrock implements text generation over the Amazon Bedrock
// Converse API.
package bedrock

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/clinical-notes/pkg/model"
	"github.com/Nephrolytics-ai/clinical-notes/pkg/utils"
	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	bedrocktypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
)

const (
	defaultModelName = "us.anthropic.claude-3-5-sonnet-20241022-v2:0"
	providerName     = "bedrock"
	defaultRegion    = "us-east-1"
)

var (
	ErrMissingCredentials = errors.New("missing AWS credentials: set AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY or AWS_PROFILE")
	errPartialKeys        = errors.New("both AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY are required when using key-based auth")
)

func newClient(ctx context.Context, cfg model.GeneratorConfig) (*bedrockruntime.Client, error) {
	awsCfg, err := loadAWSConfig(ctx)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}

	client := bedrockruntime.NewFromConfig(awsCfg, func(o *bedrockruntime.Options) {
		if baseURL := strings.TrimSpace(cfg.URL); baseURL != "" {
			o.BaseEndpoint = aws.String(baseURL)
		}
	})
	return client, nil
}

func loadAWSConfig(ctx context.Context) (aws.Config, error) {
	region := strings.TrimSpace(os.Getenv("AWS_REGION"))
	if region == "" {
		region = defaultRegion
	}

	accessKeyID := strings.TrimSpace(os.Getenv("AWS_ACCESS_KEY_ID"))
	secretAccessKey := strings.TrimSpace(os.Getenv("AWS_SECRET_ACCESS_KEY"))
	profile := strings.TrimSpace(os.Getenv("AWS_PROFILE"))

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}

	switch {
	case accessKeyID != "" || secretAccessKey != "":
		if accessKeyID == "" || secretAccessKey == "" {
			return aws.Config{}, model.NewProviderError(providerName, model.ErrorKindAuth, 0, errPartialKeys)
		}
		sessionToken := strings.TrimSpace(os.Getenv("AWS_SESSION_TOKEN"))
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, sessionToken),
		))
	case profile != "":
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(profile))
	default:
		return aws.Config{}, model.NewProviderError(providerName, model.ErrorKindAuth, 0, ErrMissingCredentials)
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, utils.WrapIfNotNil(err)
	}
	return cfg, nil
}

// classifyError maps Bedrock's typed exceptions onto model.ProviderError.
// Anything else that carried an HTTP response is classified by status.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	statusCode := 0
	var responseErr *awshttp.ResponseError
	if errors.As(err, &responseErr) {
		statusCode = responseErr.HTTPStatusCode()
	}

	var (
		throttling *bedrocktypes.ThrottlingException
		quota      *bedrocktypes.ServiceQuotaExceededException
		denied     *bedrocktypes.AccessDeniedException
		timeout    *bedrocktypes.ModelTimeoutException
		validation *bedrocktypes.ValidationException
		notFound   *bedrocktypes.ResourceNotFoundException
		apiErr     smithy.APIError
	)
	var kind model.ErrorKind
	switch {
	case errors.As(err, &throttling), errors.As(err, &quota):
		kind = model.ErrorKindRateLimit
	case errors.As(err, &denied):
		kind = model.ErrorKindAuth
	case errors.As(err, &timeout):
		kind = model.ErrorKindTimeout
	case errors.As(err, &validation):
		kind = model.KindFromStatus(http.StatusBadRequest, validation.ErrorMessage())
	case errors.As(err, &notFound):
		kind = model.ErrorKindInvalidRequest
	case errors.As(err, &apiErr):
		kind = model.ErrorKindService
		if statusCode > 0 {
			kind = model.KindFromStatus(statusCode, apiErr.ErrorCode()+" "+apiErr.ErrorMessage())
		}
	default:
		return err
	}
	return model.NewProviderError(providerName, kind, statusCode, err)
}

func resolveModelName(cfg model.GeneratorConfig) string {
	if cfg.Model != nil {
		if modelName := strings.TrimSpace(*cfg.Model); modelName != "" {
			return modelName
		}
	}
	return defaultModelName
}

func initMetadata(modelName string) model.GenerationMetadata {
	if strings.TrimSpace(modelName) == "" {
		modelName = "unknown"
	}

	return model.GenerationMetadata{
		model.MetadataKeyProvider: providerName,
		model.MetadataKeyModel:    modelName,
	}
}

func setLatencyMetadata(meta model.GenerationMetadata, start time.Time) {
	if meta == nil {
		return
	}
	if _, reported := meta[model.MetadataKeyLatencyMs]; reported {
		return
	}
	meta[model.MetadataKeyLatencyMs] = strconv.FormatInt(time.Since(start).Milliseconds(), 10)
}

func applyBedrockMetadata(meta model.GenerationMetadata, output *bedrockruntime.ConverseOutput) {
	if meta == nil || output == nil {
		return
	}

	meta[model.MetadataKeyAPICalls] = "1"
	if usage := output.Usage; usage != nil {
		meta[model.MetadataKeyInputTokens] = strconv.Itoa(int(aws.ToInt32(usage.InputTokens)))
		meta[model.MetadataKeyOutputTokens] = strconv.Itoa(int(aws.ToInt32(usage.OutputTokens)))
		meta[model.MetadataKeyTotalTokens] = strconv.Itoa(int(aws.ToInt32(usage.TotalTokens)))
		meta[model.MetadataKeyCachedInputTokens] = strconv.Itoa(int(aws.ToInt32(usage.CacheReadInputTokens)))
	}
	if output.StopReason != "" {
		meta[model.MetadataKeyResponseStatus] = string(output.StopReason)
	}
	if output.Metrics != nil && aws.ToInt64(output.Metrics.LatencyMs) > 0 {
		meta[model.MetadataKeyLatencyMs] = strconv.FormatInt(aws.ToInt64(output.Metrics.LatencyMs), 10)
	}
}
