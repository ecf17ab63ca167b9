package sqs

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	// sqsModulePath is the SDK module the provider is written against.
	sqsModulePath = "github.com/aws/aws-sdk-go-v2/service/sqs"
	// requiredSQSMajor is the lowest SDK major version the provider supports.
	requiredSQSMajor = 1
)

// Config holds the settings passed through to the AWS SDK. Empty fields fall back to the
// SDK's default credential and region chain.
type Config struct {
	Region           string         `env:"AWS_REGION"`             // AWS region of the queues
	Profile          string         `env:"AWS_PROFILE"`            // Shared config profile
	Endpoint         string         `env:"SQS_ENDPOINT"`           // Endpoint override, e.g. LocalStack
	AccessKeyID      string         `env:"AWS_ACCESS_KEY_ID"`      // Static credentials, used with SecretAccessKey
	SecretAccessKey  string         `env:"AWS_SECRET_ACCESS_KEY"`  // Static credentials, used with AccessKeyID
	SessionToken     string         `env:"AWS_SESSION_TOKEN"`      // Optional session token for static credentials
	RetryMaxAttempts int            `env:"SQS_RETRY_MAX_ATTEMPTS"` // SDK retry attempts, 0 keeps the SDK default
	DefaultWaitTime  *time.Duration `env:"SQS_DEFAULT_WAIT_TIME"`  // Long-polling wait for new queues
}

// LoadConfig loads the provider configuration from environment variables. Variables
// defined in envFiles (dotenv format) are used when the process environment does not set
// them; the process environment itself is not modified.
func LoadConfig(envFiles ...string) (Config, error) {
	opts := env.Options{}
	if len(envFiles) > 0 {
		vars, err := godotenv.Read(envFiles...)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read env files: %w", err)
		}
		for k, v := range env.ToMap(os.Environ()) {
			vars[k] = v
		}
		opts.Environment = vars
	}

	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("failed to parse sqs config: %w", err)
	}
	return cfg, nil
}

// WithDefaults returns a copy of the config with default values filled in for any nil pointer fields.
// This method does not mutate the original config.
func (c Config) WithDefaults() Config {
	if c.DefaultWaitTime == nil {
		wait := DefaultWaitTime
		c.DefaultWaitTime = &wait
	}
	return c
}

// NewFromConfig builds an SQS client from cfg and returns a Provider using it.
//
// Returns a *ConfigurationError if the linked SQS SDK is older than the supported major
// version or the AWS configuration cannot be loaded.
func NewFromConfig(ctx context.Context, cfg Config, log *zap.SugaredLogger, opts ...Option) (*Provider, error) {
	info, ok := debug.ReadBuildInfo()
	if err := checkClientVersion(info, ok); err != nil {
		return nil, err
	}

	cfg = cfg.WithDefaults()

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" || cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}
	if cfg.RetryMaxAttempts > 0 {
		loadOpts = append(loadOpts, awsconfig.WithRetryMaxAttempts(cfg.RetryMaxAttempts))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, &ConfigurationError{Reason: "failed to load aws config", Err: err}
	}

	client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		// Body checksums are verified by the provider so a mismatch can be told apart
		// from other receive failures.
		o.DisableMessageChecksumValidation = true
	})

	if log != nil {
		log.Infow("created sqs client",
			"region", awsCfg.Region,
			"endpoint", cfg.Endpoint,
			"profile", cfg.Profile,
			"defaultWaitTime", *cfg.DefaultWaitTime)
	}

	base := []Option{WithDefaultWaitTime(*cfg.DefaultWaitTime)}
	if log != nil {
		base = append(base, WithLogger(log))
	}
	return New(client, append(base, opts...)...), nil
}

// checkClientVersion verifies that the linked SQS SDK module meets requiredSQSMajor.
// Binaries built without module information, such as test binaries, pass, as do builds
// that replace the module with a local directory.
func checkClientVersion(info *debug.BuildInfo, ok bool) error {
	if !ok || info == nil {
		return nil
	}

	for _, dep := range info.Deps {
		if dep.Path != sqsModulePath {
			continue
		}
		if dep.Replace != nil {
			// A replacement by a local directory carries no version
			if dep.Replace.Version == "" {
				return nil
			}
			dep = dep.Replace
		}

		major, err := majorVersion(dep.Version)
		if err != nil {
			return &ConfigurationError{Reason: fmt.Sprintf("unrecognized %s version %q", sqsModulePath, dep.Version), Err: err}
		}
		if major < requiredSQSMajor {
			return &ConfigurationError{
				Reason: fmt.Sprintf("%s %s is older than the required v%d", sqsModulePath, dep.Version, requiredSQSMajor),
			}
		}
		return nil
	}
	return nil
}

// majorVersion parses the major component of a "vMAJOR.MINOR.PATCH" module version.
func majorVersion(version string) (int, error) {
	v, ok := strings.CutPrefix(version, "v")
	if !ok {
		return 0, fmt.Errorf("missing v prefix")
	}
	major, _, _ := strings.Cut(v, ".")
	return strconv.Atoi(major)
}
