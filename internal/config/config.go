package config

import (
	"os"
	"time"

	"github.com/go-yaml/yaml"
)

type Config struct {
	Server   Server   `yaml:"server"`
	Ingest   Ingest   `yaml:"ingest"`
	Scrubber Scrubber `yaml:"scrubber"`
	Services Services `yaml:"services"`
}

type Server struct {
	PostgresDsn   string `yaml:"postgresDsn"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisDB       int    `yaml:"redisDB"`
	MemcachedAddr string `yaml:"memcachedAddr"`
	WhoisAddr     string `yaml:"whoisAddr"`
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
}

type Ingest struct {
	WatchdogTimeout time.Duration `yaml:"watchdogTimeout"`
	WorkerPoll      time.Duration `yaml:"workerPoll"`
	ReapInterval    time.Duration `yaml:"reapInterval"`
	ReapVisibility  time.Duration `yaml:"reapVisibility"`
	RequeueInterval time.Duration `yaml:"requeueInterval"`
	DeadLetterPath  string        `yaml:"deadLetterPath"`
	PostQueue       string        `yaml:"postQueue"`
	UserQueue       string        `yaml:"userQueue"`
}

type Scrubber struct {
	Interval time.Duration `yaml:"interval"`
	Service  string        `yaml:"service"`
}

type Services struct {
	Microblog Upstream `yaml:"microblog"`
	Proofs    Upstream `yaml:"proofs"`
}

type Upstream struct {
	BaseURL   string `yaml:"baseURL"`
	StreamURL string `yaml:"streamURL"`
	Token     string `yaml:"token"`
}

func Load(path string) (Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	config := defaults()
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, err
	}

	return config, nil
}

func defaults() Config {
	return Config{
		Server: Server{
			WhoisAddr: ":8000",
		},
		Ingest: Ingest{
			WatchdogTimeout: 35 * time.Second,
			WorkerPoll:      5 * time.Second,
			ReapInterval:    time.Minute,
			ReapVisibility:  5 * time.Minute,
			RequeueInterval: 5 * time.Second,
			DeadLetterPath:  "log.json",
			PostQueue:       "/queue/twitter/tweets",
			UserQueue:       "/queue/twitter/users",
		},
		Scrubber: Scrubber{
			Interval: time.Minute,
			Service:  "twitter",
		},
	}
}
