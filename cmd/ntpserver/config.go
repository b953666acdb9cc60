package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	ListenAddr string      `yaml:"listen_addr"`
	Network    string      `yaml:"network"`
	Workers    int         `yaml:"worker"`
	Rate       float64     `yaml:"rate"`
	Burst      int         `yaml:"burst"`
	Root       string      `yaml:"root"`
	Verbose    bool        `yaml:"verbose"`
	Stats      statsConfig `yaml:"stats"`
}

type statsConfig struct {
	PromAddr string `yaml:"prom_addr"`
	GeoDB    string `yaml:"geodb"`
}

func defaultFileConfig() fileConfig {
	return fileConfig{
		ListenAddr: "0.0.0.0:123",
		Network:    "udp",
		Burst:      5,
	}
}

func loadFileConfig(path string) (fileConfig, error) {
	cfg := defaultFileConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

const usage = `usage: ntpserver [flags] [ip] [port] [chroot directory]`

// parseArgs merges defaults, the optional YAML file, explicitly set flags and
// positional arguments, in that order of precedence.
func parseArgs(args []string) (fileConfig, error) {
	fs := flag.NewFlagSet("ntpserver", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), usage)
		fs.PrintDefaults()
	}

	fl := defaultFileConfig()
	configPath := fs.String("config", "", "YAML config file")
	fs.StringVar(&fl.ListenAddr, "listen", fl.ListenAddr, "UDP listen address (host:port)")
	fs.StringVar(&fl.Network, "network", fl.Network, "udp, udp4 or udp6")
	fs.IntVar(&fl.Workers, "workers", fl.Workers, "Concurrent request handlers, 0=sequential")
	fs.Float64Var(&fl.Rate, "rate", fl.Rate, "Per-IP request rate limit (requests/sec), 0=disabled")
	fs.IntVar(&fl.Burst, "burst", fl.Burst, "Per-IP rate limit burst")
	fs.StringVar(&fl.Root, "root", fl.Root, "Chroot into this directory and drop privileges after binding")
	fs.StringVar(&fl.Stats.PromAddr, "metrics", fl.Stats.PromAddr, "HTTP address serving Prometheus /metrics, empty=disabled")
	fs.StringVar(&fl.Stats.GeoDB, "geodb", fl.Stats.GeoDB, "GeoIP2 country database for per-country metrics")
	fs.BoolVar(&fl.Verbose, "v", fl.Verbose, "Debug logging")

	if err := fs.Parse(args); err != nil {
		return fileConfig{}, err
	}

	cfg := defaultFileConfig()
	if *configPath != "" {
		var err error
		if cfg, err = loadFileConfig(*configPath); err != nil {
			return fileConfig{}, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			cfg.ListenAddr = fl.ListenAddr
		case "network":
			cfg.Network = fl.Network
		case "workers":
			cfg.Workers = fl.Workers
		case "rate":
			cfg.Rate = fl.Rate
		case "burst":
			cfg.Burst = fl.Burst
		case "root":
			cfg.Root = fl.Root
		case "metrics":
			cfg.Stats.PromAddr = fl.Stats.PromAddr
		case "geodb":
			cfg.Stats.GeoDB = fl.Stats.GeoDB
		case "v":
			cfg.Verbose = fl.Verbose
		}
	})

	if fs.NArg() > 3 {
		return fileConfig{}, fmt.Errorf("too many arguments\n%s", usage)
	}
	if fs.NArg() > 0 {
		_, port, err := net.SplitHostPort(cfg.ListenAddr)
		if err != nil {
			return fileConfig{}, err
		}
		host := fs.Arg(0)
		if fs.NArg() > 1 {
			if _, err := strconv.ParseUint(fs.Arg(1), 10, 16); err != nil {
				return fileConfig{}, fmt.Errorf("invalid port %q", fs.Arg(1))
			}
			port = fs.Arg(1)
		}
		cfg.ListenAddr = net.JoinHostPort(host, port)
	}
	if fs.NArg() > 2 {
		cfg.Root = fs.Arg(2)
	}
	return cfg, nil
}
