package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/raidolabs/raido/featureflag"
	raidohttp "github.com/raidolabs/raido/http"
	"github.com/raidolabs/raido/index"
	"github.com/raidolabs/raido/smoketest"
	"github.com/raidolabs/raido/spatial"
	raidows "github.com/raidolabs/raido/websocket"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

var (
	// The Raido version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "raido_info",
		Help:        "Raido information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string        `cli:""        env:"RAIDO_ADDR"                 help:"Listening address for client connections."`
	AdminAddr          string        `cli:""        env:"RAIDO_ADMIN_ADDR"           help:"Admin listening address."`
	PublicEndpoint     string        `cli:""        env:"RAIDO_PUBLIC_ENDPOINT"      help:"The public endpoint where this Raido server is reachable."`
	LogLevel           string        `cli:""        env:"RAIDO_LOG_LEVEL"            help:"Log level (debug|info|warning|error)."`
	LogIndent          bool          `cli:""        env:"RAIDO_LOG_INDENT"           help:"Indent logs."`
	LogSummaryInterval time.Duration `cli:",hidden" env:"RAIDO_LOG_SUMMARY_INTERVAL" help:"The duration between each log summary by connection."`
	Index              indexConfig   `cli:""        env:"-"                          help:"Spatial index configuration."`
	Events             eventsConfig  `cli:",hidden" env:"-"                          help:"Event pusher configuration."`
	FeatureFlags       []string      `cli:",hidden" env:"RAIDO_FEATURE_FLAGS"        help:"Comma separated feature flags."`
	Version            bool          `cli:""        env:"-"                          help:"Show version."`
	Help               bool          `cli:""        env:"-"                          help:"Show help."`
}

type indexConfig struct {
	Type       string  `cli:""        env:"RAIDO_INDEX_TYPE"        help:"The spatial index backend (octree)."`
	MaxDepth   int     `cli:""        env:"RAIDO_INDEX_MAX_DEPTH"   help:"The maximum subdivision depth."`
	MaxObjects int     `cli:""        env:"RAIDO_INDEX_MAX_OBJECTS" help:"The number of objects a node holds before it subdivides."`
	MinSize    float64 `cli:""        env:"RAIDO_INDEX_MIN_SIZE"    help:"The minimum node extent in world units."`
	RootMin    string  `cli:""        env:"RAIDO_INDEX_ROOT_MIN"    help:"The world space minimum corner (x,y,z)."`
	RootMax    string  `cli:""        env:"RAIDO_INDEX_ROOT_MAX"    help:"The world space maximum corner (x,y,z)."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"RAIDO_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed."`
	FlushInterval time.Duration `cli:",hidden" env:"RAIDO_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"RAIDO_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"RAIDO_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	defaults := index.DefaultConfig()

	conf := config{
		Addr:               ":4000",
		AdminAddr:          ":18190",
		PublicEndpoint:     "http://localhost:4000",
		LogLevel:           logs.InfoLevel.String(),
		LogSummaryInterval: time.Minute,
		Index: indexConfig{
			Type:       string(defaults.Type),
			MaxDepth:   defaults.MaxDepth,
			MaxObjects: defaults.MaxObjects,
			MinSize:    defaults.MinSize,
			RootMin:    "-1000,-1000,-1000",
			RootMax:    "1000,1000,1000",
		},
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts Raido server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	transport := metrics.HTTPTransport(http.DefaultTransport)

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     transport,
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "raido",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	rootBounds, err := parseRootBounds(conf.Index)
	if err != nil {
		logs.Fatal(errors.New("invalid root bounds").Wrap(err))
	}

	indexConf := index.DefaultConfig()
	indexConf.Type = index.Type(conf.Index.Type)
	indexConf.MaxDepth = conf.Index.MaxDepth
	indexConf.MaxObjects = conf.Index.MaxObjects
	indexConf.MinSize = conf.Index.MinSize

	idx := index.New(indexConf)
	if err := idx.Initialize(rootBounds); err != nil {
		logs.Fatal(errors.New("initializing spatial index failed").Wrap(err))
	}

	var indexMutex sync.Mutex

	featureFlags := featureflag.New(conf.FeatureFlags)

	logSummaryInterval := conf.LogSummaryInterval
	featureFlags.IfSet(featureflag.FlagDisableMessageSummary, func() {
		logSummaryInterval = 0
	})

	var service http.ServeMux

	service.Handle("/health", raidohttp.HandleWithCORS(http.HandlerFunc(raidohttp.HandleHealthCheck)))
	service.Handle("/version", raidohttp.HandleWithCORS(raidohttp.HandleVersion(version)))

	readinessCheck := idx.Initialized
	service.Handle("/ready", raidohttp.HandleWithCORS(raidohttp.HandleReadyCheck(readinessCheck)))

	service.Handle("/stats", raidohttp.HandleWithCORS(raidohttp.HandleStatistics(func() (index.IndexStatistics, error) {
		indexMutex.Lock()
		defer indexMutex.Unlock()
		return idx.Statistics()
	})))

	service.HandleFunc("/smoke-test", smoketest.HandleSmokeTest(ctx, smoketest.Options{
		Endpoint:  conf.PublicEndpoint,
		UserAgent: fmt.Sprintf("Raido %s", version),
		SendResult: func(ctx context.Context, res smoketest.Results) error {
			logs.WithTag("endpoint", res.Endpoint).
				WithTag("passed", res.Passed).
				WithTag("duration", res.Duration).
				Info("smoke test finished")
			return nil
		},
	}))

	service.Handle("/", raidohttp.HandleWithCORS(websocket.Server{
		Handshake: func(c *websocket.Config, r *http.Request) error {
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			var rh raidows.Handler = &raidows.RealtimeHandler{
				Index:        idx,
				IndexMutex:   &indexMutex,
				FeatureFlags: featureFlags,
			}
			h := raidows.HandlerWithLogs(rh, logSummaryInterval)
			h = raidows.HandlerWithMetrics(h, conf.PublicEndpoint)
			defer h.Close()

			raidows.Handle(ctx, conn, h)
		},
	}))

	service.Handle("/ping", websocket.Server{
		Handler: func(ws *websocket.Conn) {
			defer ws.Close()
			io.Copy(ws, ws)
		},
	})

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", raidohttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))
	admin.Handle("/ready", raidohttp.HandleReadyCheck(readinessCheck))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("endpoint", conf.PublicEndpoint).
		WithTag("index_type", conf.Index.Type).
		Info("starting raido server")

	raidohttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
			raidohttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)
}

func parseRootBounds(conf indexConfig) (spatial.BoundingBox, error) {
	min, err := parseVector(conf.RootMin)
	if err != nil {
		return spatial.BoundingBox{}, err
	}

	max, err := parseVector(conf.RootMax)
	if err != nil {
		return spatial.BoundingBox{}, err
	}

	return spatial.NewBoundingBox(min, max), nil
}

func parseVector(s string) (spatial.Vector3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return spatial.Vector3{}, errors.New("a vector requires 3 comma separated components").
			WithTag("value", s)
	}

	var components [3]float64
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return spatial.Vector3{}, errors.New("parsing vector component failed").
				WithTag("value", s).
				Wrap(err)
		}
		components[i] = v
	}

	return spatial.NewVector3(components[0], components[1], components[2]), nil
}

func validateConfig(conf config) error {
	if _, err := url.ParseRequestURI(conf.PublicEndpoint); err != nil {
		return errors.New("invalid public endpoint").Wrap(err)
	}

	return nil
}
