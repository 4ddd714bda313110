// Command server serves model operations over http for the configured
// database, with pool and operation metrics on /metrics.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/influx6/mgoquery/db/mongo"
	"github.com/influx6/mgoquery/engine"
	"github.com/influx6/mgoquery/logs"
	"github.com/influx6/mgoquery/metrics"
	"github.com/influx6/mgoquery/model"
	mhttp "github.com/influx6/mgoquery/protocols/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/mgo.v2"
)

// envPrefix prefixes every environment override, e.g. MGOQUERY_MONGO_HOST.
const envPrefix = "MGOQUERY"

var app = "mgoquery-server"

func main() {
	if err := command().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

//==============================================================================

func command() *cobra.Command {
	v := viper.New()

	cmd := cobra.Command{
		Use:          "server",
		Short:        "Serve model operations over http",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("config")
			if err := load(v, file); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, v)
		},
	}

	flags := cmd.Flags()
	flags.String("config", "", "path to a configuration file (yaml, json or toml)")
	flags.String("addr", ":3000", "listen address")
	flags.String("log-level", "info", "log level: debug, info, warn or error")

	v.BindPFlag("addr", flags.Lookup("addr"))
	v.BindPFlag("logLevel", flags.Lookup("log-level"))

	return &cmd
}

// load reads the optional configuration file and binds the environment.
func load(v *viper.Viper, file string) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("mongo.host", mongo.DefaultHost)
	v.SetDefault("mongo.port", mongo.DefaultPort)
	v.SetDefault("mongo.database", "test")

	for _, key := range []string{"mongo.user", "mongo.password", "mongo.prefix", "mongo.connectionLimit", "mongo.logLevel"} {
		v.BindEnv(key)
	}

	if file == "" {
		return nil
	}

	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config : reading %s : %w", file, err)
	}

	return nil
}

// serve runs the http server until ctx ends.
func serve(ctx context.Context, v *viper.Viper) error {
	log := logs.New(os.Stdout, v.GetString("logLevel"))

	cfg, err := mongo.LoadConfig(v, "mongo")
	if err != nil {
		log.Error(app, "serve", err, "Completed")
		return err
	}

	if strings.EqualFold(cfg.LogLevel, "debug") {
		mgo.SetLogger(logs.NewMgoLogger(log.Logger))
		mgo.SetDebug(true)
	}

	registry := mongo.NewRegistry(log)
	defer registry.Shutdown(app)

	node := registry.Get(cfg)

	prometheus.MustRegister(metrics.NewPoolCollector(cfg.Database, node.Pool()))
	ops := metrics.NewOperations(prometheus.DefaultRegisterer)

	base := model.New("", engine.FromMongnod(log, node), cfg)

	srv := mhttp.New(log, base, ops)
	srv.Mount("/metrics", promhttp.Handler())

	return srv.ListenAndServe(ctx, v.GetString("addr"))
}
