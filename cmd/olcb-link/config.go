package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// appConfig holds every knob the link daemon needs, populated from flags
// with environment-variable overrides applied on top (OLCB_LINK_* wins
// over a flag default but not over an explicit flag).
type appConfig struct {
	backend string // "serial", "socketcan", or "tcp"

	nodeID string

	serialDevice      string
	serialBaud        int
	serialReadTimeout time.Duration

	socketcanIface string

	tcpRemoteAddr string // for backend=tcp: address of the remote TCP wire-format peer

	hubListenAddr   string
	hubBufSize      int
	hubMaxClients   int
	hubReadDeadline time.Duration

	mdnsEnable bool
	mdnsOrg    string
	mdnsModel  string
	mdnsBrowse bool

	metricsAddr string

	logFormat          string
	logLevel           string
	logMetricsInterval time.Duration
}

func defaultConfig() appConfig {
	return appConfig{
		backend:            "serial",
		nodeID:             "05.01.01.01.03.01",
		serialDevice:       "/dev/ttyUSB0",
		serialBaud:         115200,
		serialReadTimeout:  100 * time.Millisecond,
		socketcanIface:     "can0",
		hubListenAddr:      ":12021",
		hubBufSize:         512,
		hubMaxClients:      32,
		hubReadDeadline:    60 * time.Second,
		mdnsOrg:            "",
		mdnsModel:          "go-openlcb-link",
		metricsAddr:        ":9110",
		logFormat:          "text",
		logLevel:           "info",
		logMetricsInterval: 30 * time.Second,
	}
}

func parseFlags(args []string) (appConfig, error) {
	cfg := defaultConfig()
	fs := flag.NewFlagSet("olcb-link", flag.ContinueOnError)

	fs.StringVar(&cfg.backend, "backend", cfg.backend, "link backend: serial, socketcan, or tcp")
	fs.StringVar(&cfg.nodeID, "node-id", cfg.nodeID, "own NodeID, dotted-hex (e.g. 05.01.01.01.03.01)")

	fs.StringVar(&cfg.serialDevice, "serial-device", cfg.serialDevice, "serial device path (backend=serial)")
	fs.IntVar(&cfg.serialBaud, "serial-baud", cfg.serialBaud, "serial baud rate (backend=serial)")
	fs.DurationVar(&cfg.serialReadTimeout, "serial-read-timeout", cfg.serialReadTimeout, "serial read timeout (backend=serial)")

	fs.StringVar(&cfg.socketcanIface, "socketcan-iface", cfg.socketcanIface, "SocketCAN interface name (backend=socketcan)")

	fs.StringVar(&cfg.tcpRemoteAddr, "tcp-remote-addr", cfg.tcpRemoteAddr, "remote TCP wire-format peer address (backend=tcp)")

	fs.StringVar(&cfg.hubListenAddr, "hub-listen-addr", cfg.hubListenAddr, "GridConnect-over-TCP hub listen address")
	fs.IntVar(&cfg.hubBufSize, "hub-buf-size", cfg.hubBufSize, "per-client outbound frame buffer size")
	fs.IntVar(&cfg.hubMaxClients, "hub-max-clients", cfg.hubMaxClients, "maximum concurrent hub clients (0 = unlimited)")
	fs.DurationVar(&cfg.hubReadDeadline, "hub-read-deadline", cfg.hubReadDeadline, "hub client read idle deadline")

	fs.BoolVar(&cfg.mdnsEnable, "mdns-enable", cfg.mdnsEnable, "advertise the hub via mDNS")
	fs.StringVar(&cfg.mdnsOrg, "mdns-org", cfg.mdnsOrg, "mDNS instance-name org prefix")
	fs.StringVar(&cfg.mdnsModel, "mdns-model", cfg.mdnsModel, "mDNS instance-name model prefix")
	fs.BoolVar(&cfg.mdnsBrowse, "mdns-browse", cfg.mdnsBrowse, "log other discovered _openlcb-can._tcp peers at startup")

	fs.StringVar(&cfg.metricsAddr, "metrics-addr", cfg.metricsAddr, "Prometheus metrics HTTP listen address")

	fs.StringVar(&cfg.logFormat, "log-format", cfg.logFormat, "log output format: text or json")
	fs.StringVar(&cfg.logLevel, "log-level", cfg.logLevel, "log level: debug, info, warn, or error")
	fs.DurationVar(&cfg.logMetricsInterval, "log-metrics-interval", cfg.logMetricsInterval, "interval between periodic metrics log lines")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	// Explicitly set flags take precedence: remember them, apply the
	// environment, then set them again.
	explicit := map[string]string{}
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = f.Value.String() })
	applyEnvOverrides(&cfg)
	for name, v := range explicit {
		_ = fs.Set(name, v)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnvOverrides lets OLCB_LINK_* environment variables override the
// flag values, the same ambient-config convention the teacher's
// can-server command used under its own CAN_SERVER_* prefix. parseFlags
// re-applies explicitly set flags afterwards, so only flag defaults are
// overridden.
func applyEnvOverrides(cfg *appConfig) {
	if v, ok := os.LookupEnv("OLCB_LINK_BACKEND"); ok {
		cfg.backend = v
	}
	if v, ok := os.LookupEnv("OLCB_LINK_NODE_ID"); ok {
		cfg.nodeID = v
	}
	if v, ok := os.LookupEnv("OLCB_LINK_SERIAL_DEVICE"); ok {
		cfg.serialDevice = v
	}
	if v, ok := envInt("OLCB_LINK_SERIAL_BAUD"); ok {
		cfg.serialBaud = v
	}
	if v, ok := envDuration("OLCB_LINK_SERIAL_READ_TIMEOUT"); ok {
		cfg.serialReadTimeout = v
	}
	if v, ok := os.LookupEnv("OLCB_LINK_SOCKETCAN_IFACE"); ok {
		cfg.socketcanIface = v
	}
	if v, ok := os.LookupEnv("OLCB_LINK_TCP_REMOTE_ADDR"); ok {
		cfg.tcpRemoteAddr = v
	}
	if v, ok := os.LookupEnv("OLCB_LINK_HUB_LISTEN_ADDR"); ok {
		cfg.hubListenAddr = v
	}
	if v, ok := envInt("OLCB_LINK_HUB_BUF_SIZE"); ok {
		cfg.hubBufSize = v
	}
	if v, ok := envInt("OLCB_LINK_HUB_MAX_CLIENTS"); ok {
		cfg.hubMaxClients = v
	}
	if v, ok := envDuration("OLCB_LINK_HUB_READ_DEADLINE"); ok {
		cfg.hubReadDeadline = v
	}
	if v, ok := envBool("OLCB_LINK_MDNS_ENABLE"); ok {
		cfg.mdnsEnable = v
	}
	if v, ok := os.LookupEnv("OLCB_LINK_MDNS_ORG"); ok {
		cfg.mdnsOrg = v
	}
	if v, ok := os.LookupEnv("OLCB_LINK_MDNS_MODEL"); ok {
		cfg.mdnsModel = v
	}
	if v, ok := envBool("OLCB_LINK_MDNS_BROWSE"); ok {
		cfg.mdnsBrowse = v
	}
	if v, ok := os.LookupEnv("OLCB_LINK_METRICS_ADDR"); ok {
		cfg.metricsAddr = v
	}
	if v, ok := os.LookupEnv("OLCB_LINK_LOG_FORMAT"); ok {
		cfg.logFormat = v
	}
	if v, ok := os.LookupEnv("OLCB_LINK_LOG_LEVEL"); ok {
		cfg.logLevel = v
	}
	if v, ok := envDuration("OLCB_LINK_LOG_METRICS_INTERVAL"); ok {
		cfg.logMetricsInterval = v
	}
}

func envInt(name string) (int, bool) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(name string) (bool, bool) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

func envDuration(name string) (time.Duration, bool) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}

func (c appConfig) validate() error {
	switch c.backend {
	case "serial", "socketcan", "tcp":
	default:
		return fmt.Errorf("config: backend must be serial, socketcan, or tcp, got %q", c.backend)
	}
	if c.backend == "serial" && c.serialDevice == "" {
		return fmt.Errorf("config: serial-device required for backend=serial")
	}
	if c.backend == "socketcan" && c.socketcanIface == "" {
		return fmt.Errorf("config: socketcan-iface required for backend=socketcan")
	}
	if c.backend == "tcp" && c.tcpRemoteAddr == "" {
		return fmt.Errorf("config: tcp-remote-addr required for backend=tcp")
	}
	if c.hubBufSize <= 0 {
		return fmt.Errorf("config: hub-buf-size must be positive")
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("config: log-format must be text or json, got %q", c.logFormat)
	}
	return nil
}
