// dbping opens a connection from a descriptor and verifies the database
// answers, optionally applying pending schema migrations first.
//
// The target is either a connection URI given as the single positional
// argument, or a named profile from a YAML profiles file:
//
//	dbping postgresql://app@db.internal:5432/orders?sslmode=disable
//	dbping -profiles dbconn.yaml -profile reporting -migrate ./migrations
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/dbconn/pkg/config"
	"github.com/ekaya-inc/dbconn/pkg/conn"
	_ "github.com/ekaya-inc/dbconn/pkg/dialect/mssql"
	_ "github.com/ekaya-inc/dbconn/pkg/dialect/postgres"
	"github.com/ekaya-inc/dbconn/pkg/migrations"
	_ "github.com/ekaya-inc/dbconn/pkg/pool/pgx"
)

// Version is set at build time via ldflags
var Version = "dev"

type profilesFile struct {
	Profiles map[string]map[string]any `yaml:"profiles"`
}

func main() {
	var (
		profilesPath = flag.String("profiles", "dbconn.yaml", "path to the YAML profiles file")
		profileName  = flag.String("profile", "", "profile to connect with (ignored when a URI is given)")
		migratePath  = flag.String("migrate", "", "apply pending migrations from this directory before pinging")
		timeout      = flag.Duration("timeout", 30*time.Second, "overall deadline")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	input, err := resolveTarget(flag.Arg(0), *profilesPath, *profileName)
	if err != nil {
		logger.Fatal("no connection target", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *migratePath != "" {
		if err := migrations.Run(ctx, input, *migratePath, logger); err != nil {
			logger.Fatal("migrations failed", zap.Error(err))
		}
	}

	start := time.Now()
	err = conn.WithConn(ctx, input, func(c *conn.Conn) error {
		if _, err := c.Query(ctx, "SELECT 1", nil); err != nil {
			return err
		}
		logger.Info("database reachable",
			zap.String("dialect", c.Dialect().Name),
			zap.String("conn_id", c.ID().String()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("version", Version),
		)
		return nil
	}, conn.WithLogger(logger), conn.WithConfig(cfg))
	if err != nil {
		logger.Fatal("ping failed", zap.Error(err))
	}
}

// resolveTarget picks the connection input: an explicit URI argument
// wins, otherwise the named profile is looked up in the profiles file.
func resolveTarget(uriArg, profilesPath, profileName string) (any, error) {
	if uriArg != "" {
		return uriArg, nil
	}
	if profileName == "" {
		return nil, fmt.Errorf("pass a connection URI or -profile")
	}

	raw, err := os.ReadFile(profilesPath)
	if err != nil {
		return nil, fmt.Errorf("read profiles file: %w", err)
	}

	var pf profilesFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return nil, fmt.Errorf("parse profiles file: %w", err)
	}

	profile, ok := pf.Profiles[profileName]
	if !ok {
		return nil, fmt.Errorf("profile %q not found in %s", profileName, profilesPath)
	}
	return profile, nil
}
