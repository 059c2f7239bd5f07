// Package commands holds the nrfnet CLI.
package commands

import (
	"bufio"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"log/syslog"
	"net/http"
	_ "net/http/pprof" // no_lint
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"
	logrus_syslog "github.com/sirupsen/logrus/hooks/syslog"
	"github.com/skycoin/skycoin/src/util/logging"
	"github.com/spf13/cobra"

	"github.com/nrfnet/nrfnet/pkg/nrfnet"
	"github.com/nrfnet/nrfnet/pkg/radio/nrf24"
	"github.com/nrfnet/nrfnet/pkg/tunnel"
)

const configEnv = "NRFNET_CONFIG"

const defaultConfigPath = "/etc/nrfnet/nrfnet.json"

type runCfg struct {
	syslogAddr   string
	tag          string
	cfgFromStdin bool
	profileMode  string
	port         string
	args         []string

	profileStop  func()
	logger       *logging.Logger
	masterLogger *logging.MasterLogger
	conf         nrfnet.Config
	driver       *nrf24.Driver
	node         *nrfnet.Node
}

var cfg *runCfg

var rootCmd = &cobra.Command{
	Use:   "nrfnet [config-path]",
	Short: "IP tunnel over NRF24L01 radios",
	Run: func(_ *cobra.Command, args []string) {
		cfg.args = args

		cfg.startProfiler().
			startLogger().
			readConfig().
			runNode().
			waitOsSignals().
			stopNode()
	},
	Version: nrfnet.Version,
}

func init() {
	cfg = &runCfg{}
	rootCmd.Flags().StringVarP(&cfg.syslogAddr, "syslog", "", "none", "syslog server address. E.g. localhost:514")
	rootCmd.Flags().StringVarP(&cfg.tag, "tag", "", "nrfnet", "logging tag")
	rootCmd.Flags().BoolVarP(&cfg.cfgFromStdin, "stdin", "i", false, "read config from STDIN")
	rootCmd.Flags().StringVarP(&cfg.profileMode, "profile", "p", "none", "enable profiling with pprof. Mode: none or one of: [cpu, mem, mutex, block, trace, http]")
	rootCmd.Flags().StringVarP(&cfg.port, "port", "", "6060", "port for http-mode of pprof")
}

// Execute executes root CLI command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func (cfg *runCfg) startProfiler() *runCfg {
	var option func(*profile.Profile)
	switch cfg.profileMode {
	case "none":
		cfg.profileStop = func() {}
		return cfg
	case "http":
		go func() {
			log.Println(http.ListenAndServe(fmt.Sprintf("localhost:%v", cfg.port), nil))
		}()
		cfg.profileStop = func() {}
		return cfg
	case "cpu":
		option = profile.CPUProfile
	case "mem":
		option = profile.MemProfile
	case "mutex":
		option = profile.MutexProfile
	case "block":
		option = profile.BlockProfile
	case "trace":
		option = profile.TraceProfile
	}
	cfg.profileStop = profile.Start(profile.ProfilePath("./logs/"+cfg.tag), option).Stop
	return cfg
}

func (cfg *runCfg) startLogger() *runCfg {
	cfg.masterLogger = logging.NewMasterLogger()
	cfg.logger = cfg.masterLogger.PackageLogger(cfg.tag)

	if cfg.syslogAddr != "none" {
		hook, err := logrus_syslog.NewSyslogHook("udp", cfg.syslogAddr, syslog.LOG_INFO, cfg.tag)
		if err != nil {
			cfg.logger.Error("Unable to connect to syslog daemon:", err)
		} else {
			cfg.masterLogger.AddHook(hook)
			cfg.masterLogger.Out = ioutil.Discard
		}
	}
	return cfg
}

func (cfg *runCfg) readConfig() *runCfg {
	var rdr io.Reader

	if !cfg.cfgFromStdin {
		configPath := defaultConfigPath
		if len(cfg.args) > 0 {
			configPath = cfg.args[0]
		} else if env := os.Getenv(configEnv); env != "" {
			configPath = env
		}

		f, err := os.Open(configPath)
		if err != nil {
			cfg.logger.Fatalf("Failed to open config: %s", err)
		}
		defer f.Close()
		rdr = f
	} else {
		cfg.logger.Info("Reading config from STDIN")
		rdr = bufio.NewReader(os.Stdin)
	}

	conf, err := nrfnet.ReadConfig(rdr)
	if err != nil {
		cfg.logger.Fatalf("Failed to read config: %s", err)
	}
	cfg.conf = conf

	if lvl, err := logrus.ParseLevel(conf.LogLevel); err == nil {
		cfg.masterLogger.SetLevel(lvl)
	}
	return cfg
}

func (cfg *runCfg) runNode() *runCfg {
	dev, err := tunnel.OpenDevice(tunnel.DeviceConfig{
		Name:    cfg.conf.InterfaceName,
		Addr:    cfg.conf.TunnelIPAddress,
		Netmask: cfg.conf.TunnelNetmask,
	})
	if err != nil {
		cfg.logger.Fatalf("Failed to open tunnel: %s", err)
	}
	cfg.logger.Infof("tunnel '%s' up with '%s' mask '%s'",
		dev.Name(), cfg.conf.TunnelIPAddress, cfg.conf.TunnelNetmask)

	cfg.driver = nrf24.New(nrf24.Config{
		SPIDevice: cfg.conf.SPIDevice,
		CEPin:     cfg.conf.CEPin,
	})

	node, err := nrfnet.NewNode(cfg.conf, cfg.driver, dev, nil)
	if err != nil {
		cfg.logger.Fatal("Failed to initialize node: ", err)
	}
	if err := node.Start(); err != nil {
		cfg.logger.Fatal("Failed to start node: ", err)
	}
	cfg.node = node
	return cfg
}

func (cfg *runCfg) waitOsSignals() *runCfg {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	<-ch
	return cfg
}

func (cfg *runCfg) stopNode() *runCfg {
	defer cfg.profileStop()

	if err := cfg.node.Close(); err != nil {
		cfg.logger.Error("Failed to close node: ", err)
	}
	if err := cfg.driver.Close(); err != nil {
		cfg.logger.Error("Failed to close radio: ", err)
	}
	return cfg
}
