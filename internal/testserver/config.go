package testserver

import (
	"os"
	"os/user"

	"github.com/BurntSushi/toml"
)

type commonConfig struct {
	User           string `toml:"user"`
	GraphPrefix    string `toml:"graph-prefix"`
	MetricInterval string `toml:"metric-interval"`
	MetricEndpoint string `toml:"metric-endpoint"`
	MaxCPU         int    `toml:"max-cpu"`
}

type whisperConfig struct {
	DataDir             string `toml:"data-dir"`
	SchemasFilename     string `toml:"schemas-file"`
	AggregationFilename string `toml:"aggregation-file"`
	Workers             int    `toml:"workers"`
	MaxUpdatesPerSecond int    `toml:"max-updates-per-second"`
	Sparse              bool   `toml:"sparse-create"`
	FLock               bool   `toml:"flock"`
	Enabled             bool   `toml:"enabled"`
}

type cacheConfig struct {
	MaxSize       uint32 `toml:"max-size"`
	WriteStrategy string `toml:"write-strategy"`
}

type listenConfig struct {
	Listen  string `toml:"listen"`
	Enabled bool   `toml:"enabled"`
}

type loggingConfig struct {
	Logger           string `toml:"logger"`
	File             string `toml:"file"`
	Level            string `toml:"level"`
	Encoding         string `toml:"encoding"`
	EncodingTime     string `toml:"encoding-time"`
	EncodingDuration string `toml:"encoding-duration"`
}

// carbonConfig holds the subset of go-carbon's configuration the test
// daemon needs. Every receiver and server not listed is disabled.
type carbonConfig struct {
	Common       commonConfig    `toml:"common"`
	Whisper      whisperConfig   `toml:"whisper"`
	Cache        cacheConfig     `toml:"cache"`
	Udp          listenConfig    `toml:"udp"`
	Tcp          listenConfig    `toml:"tcp"`
	Pickle       listenConfig    `toml:"pickle"`
	Carbonlink   listenConfig    `toml:"carbonlink"`
	Grpc         listenConfig    `toml:"grpc"`
	Carbonserver listenConfig    `toml:"carbonserver"`
	Logging      []loggingConfig `toml:"logging"`
}

func (c *Carbon) writeCarbonConfigFile() error {
	u, err := user.Current()
	if err != nil {
		return err
	}
	cfg := carbonConfig{
		Common: commonConfig{
			User:           u.Username,
			GraphPrefix:    "carbon.agents.{host}",
			MetricInterval: "1m0s",
			MetricEndpoint: "local",
			MaxCPU:         1,
		},
		Whisper: whisperConfig{
			DataDir:             c.DataDirname(),
			SchemasFilename:     c.SchemasFilename(),
			AggregationFilename: c.AggregationFilename(),
			Workers:             1,
			Enabled:             true,
		},
		Cache: cacheConfig{
			MaxSize:       1000000,
			WriteStrategy: "noop",
		},
		Tcp:    listenConfig{Listen: c.TCPListen, Enabled: c.TCPListen != ""},
		Pickle: listenConfig{Listen: c.PickleListen, Enabled: c.PickleListen != ""},
		Logging: []loggingConfig{
			{
				Logger:           "",
				File:             c.logFilename(),
				Level:            "info",
				Encoding:         "console",
				EncodingTime:     "millis",
				EncodingDuration: "string",
			},
		},
	}

	file, err := os.Create(c.CarbonConfigFilename())
	if err != nil {
		return err
	}
	defer file.Close()

	enc := toml.NewEncoder(file)
	enc.Indent = ""
	return enc.Encode(cfg)
}
