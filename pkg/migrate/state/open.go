package state

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/baderkha/table-transfer/pkg/migrate/config"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Open : checkpoint store and run log for the configured driver. the sqlite store keeps both,
// the others pair with a LogManager
func Open(ctx context.Context, cfg config.State, fs afero.Fs, log zerolog.Logger) (Store, Manager, error) {
	switch cfg.Driver {
	case config.StateFile:
		st, err := NewFileStore(fs, cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return st, NewLogManager(log), nil
	case config.StateS3:
		awsCfg := aws.NewConfig()
		if cfg.S3.Region != "" {
			awsCfg = awsCfg.WithRegion(cfg.S3.Region)
		}
		sess, err := session.NewSession(awsCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("state : aws session : %w", err)
		}
		return NewS3Store(s3.New(sess), cfg.S3.Bucket, cfg.S3.Prefix), NewLogManager(log), nil
	case config.StateSqlite, "":
		m, err := NewSqliteManager(ctx, cfg.Path, log)
		if err != nil {
			return nil, nil, err
		}
		return m, m, nil
	}
	return nil, nil, fmt.Errorf("state : unsupported driver %q", cfg.Driver)
}
