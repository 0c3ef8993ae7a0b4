package community

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/prenav/prenav/internal/predictor"
	navErrors "github.com/prenav/prenav/pkg/errors"
	"github.com/prenav/prenav/pkg/retry"
	"github.com/prenav/prenav/pkg/types"
)

// Config configures the community pattern feed
type Config struct {
	Bucket          string        `yaml:"bucket"`
	PatternKey      string        `yaml:"pattern_key"`
	SnapshotKey     string        `yaml:"snapshot_key"`
	Region          string        `yaml:"region"`
	Endpoint        string        `yaml:"endpoint"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// DefaultConfig returns the default community feed configuration
func DefaultConfig() *Config {
	return &Config{
		PatternKey:      "patterns/aggregate.json",
		SnapshotKey:     "snapshots/predictor.json",
		Region:          "us-east-1",
		RefreshInterval: 15 * time.Minute,
	}
}

// objectStore is the slice of the S3 API the loader uses.
type objectStore interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Loader pulls aggregated cross-user navigation patterns from object
// storage and feeds them into the predictor. It also persists predictor
// snapshots to the same bucket so learned state survives reloads.
type Loader struct {
	config  *Config
	client  objectStore
	retryer *retry.Retryer
	logger  *zap.Logger
}

// NewLoader creates a community pattern loader backed by S3.
func NewLoader(ctx context.Context, config *Config, logger *zap.Logger) (*Loader, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Bucket == "" {
		return nil, fmt.Errorf("bucket name cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(config.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if config.Endpoint != "" {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Loader{
		config:  config,
		client:  client,
		retryer: retry.New(retry.DefaultConfig()),
		logger:  logger,
	}, nil
}

// NewLoaderWithClient creates a loader around an existing client, used by
// tests and custom wiring.
func NewLoaderWithClient(config *Config, client objectStore, logger *zap.Logger) *Loader {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		config:  config,
		client:  client,
		retryer: retry.New(retry.DefaultConfig()),
		logger:  logger,
	}
}

// Fetch reads the aggregated pattern document.
func (l *Loader) Fetch(ctx context.Context) (map[types.Route]types.CommunityPattern, error) {
	var patterns map[types.Route]types.CommunityPattern

	err := l.retryer.DoWithContext(ctx, func(ctx context.Context) error {
		out, err := l.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(l.config.Bucket),
			Key:    aws.String(l.config.PatternKey),
		})
		if err != nil {
			return navErrors.Wrap(err, navErrors.ErrCodePatternFetch, "get pattern aggregate").
				WithComponent("community")
		}
		defer out.Body.Close()

		data, err := io.ReadAll(out.Body)
		if err != nil {
			return navErrors.Wrap(err, navErrors.ErrCodePatternFetch, "read pattern aggregate").
				WithComponent("community")
		}

		if err := json.Unmarshal(data, &patterns); err != nil {
			// A malformed document will not improve on retry
			return navErrors.Wrap(err, navErrors.ErrCodePatternFetch, "decode pattern aggregate").
				WithComponent("community").
				WithRetryable(false)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return patterns, nil
}

// Run refreshes the predictor's community snapshot on the configured
// interval until the context is cancelled. Failures are logged and
// retried on the next cycle; they never propagate.
func (l *Loader) Run(ctx context.Context, p *predictor.Predictor) {
	interval := l.config.RefreshInterval
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	l.refresh(ctx, p)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.refresh(ctx, p)
		}
	}
}

func (l *Loader) refresh(ctx context.Context, p *predictor.Predictor) {
	patterns, err := l.Fetch(ctx)
	if err != nil {
		l.logger.Warn("community pattern refresh failed", zap.Error(err))
		return
	}
	p.UpdateCommunityPatterns(patterns)
	l.logger.Info("community patterns refreshed", zap.Int("routes", len(patterns)))
}

// SaveSnapshot persists a predictor export.
func (l *Loader) SaveSnapshot(ctx context.Context, snapshot types.PredictorSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return navErrors.Wrap(err, navErrors.ErrCodeSnapshotEncode, "encode predictor snapshot").
			WithComponent("community")
	}

	return l.retryer.DoWithContext(ctx, func(ctx context.Context) error {
		_, err := l.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(l.config.Bucket),
			Key:         aws.String(l.config.SnapshotKey),
			Body:        bytes.NewReader(data),
			ContentType: aws.String("application/json"),
		})
		if err != nil {
			return navErrors.Wrap(err, navErrors.ErrCodeSnapshotStore, "put predictor snapshot").
				WithComponent("community")
		}
		return nil
	})
}

// LoadSnapshot restores a previously saved predictor export.
func (l *Loader) LoadSnapshot(ctx context.Context) (*types.PredictorSnapshot, error) {
	var snapshot types.PredictorSnapshot

	err := l.retryer.DoWithContext(ctx, func(ctx context.Context) error {
		out, err := l.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(l.config.Bucket),
			Key:    aws.String(l.config.SnapshotKey),
		})
		if err != nil {
			return navErrors.Wrap(err, navErrors.ErrCodeSnapshotStore, "get predictor snapshot").
				WithComponent("community")
		}
		defer out.Body.Close()

		data, err := io.ReadAll(out.Body)
		if err != nil {
			return navErrors.Wrap(err, navErrors.ErrCodeSnapshotStore, "read predictor snapshot").
				WithComponent("community")
		}

		if err := json.Unmarshal(data, &snapshot); err != nil {
			return navErrors.Wrap(err, navErrors.ErrCodeSnapshotDecode, "decode predictor snapshot").
				WithComponent("community").
				WithRetryable(false)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &snapshot, nil
}
