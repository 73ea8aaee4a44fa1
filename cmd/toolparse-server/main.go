package main

import (
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/LubyRuffy/toolparse/openaihttp"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// apiKeyEnv 是上游 API key 的环境变量。
const apiKeyEnv = "TOOLPARSE_API_KEY"

func main() {
	var (
		configPath  = flag.String("config", "toolparse.yaml", "yaml config file listing models and tool parsers")
		listen      = flag.String("listen", "", "listen address (default: 127.0.0.1:8080)")
		basePath    = flag.String("base-path", "", "base path prefix (default: /v1)")
		upstreamURL = flag.String("upstream-url", "", "upstream OpenAI-compatible chat/completions url")
		logLevel    = flag.String("log-level", "", "log level: debug|info|warn|error (default: info)")
	)
	flag.Parse()

	cfg, err := loadFileConfig(*configPath)
	if err != nil {
		logrus.Fatalf("load config failed: %v", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(firstNonEmpty(*logLevel, cfg.LogLevel, "info"))
	if err != nil {
		logger.Fatalf("invalid log level: %v", err)
	}
	logger.SetLevel(level)

	models, err := cfg.modelConfigs()
	if err != nil {
		logger.Fatalf("invalid model config: %v", err)
	}

	addr := firstNonEmpty(*listen, cfg.Listen, "127.0.0.1:8080")
	prefix := firstNonEmpty(*basePath, cfg.BasePath, "/v1")

	gin.SetMode(gin.ReleaseMode)
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r, err := newRouter(openaihttp.Config{
		BasePath:          prefix,
		UpstreamURL:       firstNonEmpty(*upstreamURL, cfg.UpstreamURL),
		APIKey:            os.Getenv(apiKeyEnv),
		Models:            models,
		SystemFingerprint: cfg.SystemFingerprint,
		Logger:            logger,
	}, reg)
	if err != nil {
		logger.Fatalf("register routes failed: %v", err)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	local := addrForLocalClient(addr)
	logger.WithField("models", len(models)).Infof("toolparse server listening on http://%s%s", addr, prefix)
	logger.Infof("try: curl http://%s%s/models", local, prefix)
	logger.Infof("OpenAI SDK base_url: http://%s%s", local, prefix)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRouter 组装 gin 引擎：OpenAI 兼容路由、CORS 与 /metrics。
func newRouter(cfg openaihttp.Config, reg *prometheus.Registry) (*gin.Engine, error) {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	r.Use(cors.New(corsCfg))

	cfg.Metrics = openaihttp.MustNewMetrics(reg)
	if err := openaihttp.RegisterGinRoutes(r, cfg); err != nil {
		return nil, err
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	return r, nil
}

// addrForLocalClient 把监听地址转换为本机客户端可以直接访问的地址。
func addrForLocalClient(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return listen
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
