package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every load or validation failure.
var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Problem string `yaml:"problem" env:"PROBLEM" validate:"required"`
	Seed    uint64 `yaml:"seed" env:"SEED"`

	Run        Run        `yaml:"run" envPrefix:"RUN_"`
	Population Population `yaml:"population" envPrefix:"POPULATION_"`
	Selection  Selection  `yaml:"selection" envPrefix:"SELECTION_"`
	Crossover  Crossover  `yaml:"crossover" envPrefix:"CROSSOVER_"`
	Mutation   Mutation   `yaml:"mutation" envPrefix:"MUTATION_"`
	Penalty    Penalty    `yaml:"penalty" envPrefix:"PENALTY_"`
	Stagnation Stagnation `yaml:"stagnation" envPrefix:"STAGNATION_"`
	Islands    Islands    `yaml:"islands" envPrefix:"ISLANDS_"`
	Store      Store      `yaml:"store" envPrefix:"STORE_"`
	Transport  Transport  `yaml:"transport" envPrefix:"TRANSPORT_"`
	Server     Server     `yaml:"server" envPrefix:"SERVER_"`
	Webhooks   Webhooks   `yaml:"webhooks" envPrefix:"WEBHOOKS_"`
	Log        Log        `yaml:"log" envPrefix:"LOG_"`
}

type Run struct {
	Generations  int           `yaml:"generations" env:"GENERATIONS" validate:"gte=1"`
	TimeLimit    time.Duration `yaml:"time_limit" env:"TIME_LIMIT" validate:"gte=0"`
	LogFrequency int           `yaml:"log_frequency" env:"LOG_FREQUENCY" validate:"gte=1"`
	// Workers bounds the evaluation/mutation pool in single-engine mode.
	Workers          int  `yaml:"workers" env:"WORKERS" validate:"gte=0"`
	VerifyInvariants bool `yaml:"verify_invariants" env:"VERIFY_INVARIANTS"`
	Cache            bool `yaml:"cache" env:"CACHE"`
	// CacheLimit caps fitness cache entries per engine; 0 is unbounded.
	CacheLimit int `yaml:"cache_limit" env:"CACHE_LIMIT" validate:"gte=0"`
}

type Population struct {
	Size                int    `yaml:"size" env:"SIZE" validate:"gte=2"`
	Elitism             int    `yaml:"elitism" env:"ELITISM" validate:"gte=0,ltfield=Size"`
	Init                string `yaml:"init" env:"INIT" validate:"oneof=feasible file start_time"`
	ConstructionRetries int    `yaml:"construction_retries" env:"CONSTRUCTION_RETRIES" validate:"gte=1"`
}

type Selection struct {
	Parent         string  `yaml:"parent" env:"PARENT" validate:"oneof=linear_ranking probabilistic tournament"`
	Pressure       float64 `yaml:"s" env:"S" validate:"gte=1,lte=2"`
	TournamentSize int     `yaml:"tournament_size" env:"TOURNAMENT_SIZE" validate:"gte=1"`
	ParentsScaling float64 `yaml:"n_parents_scaling" env:"N_PARENTS_SCALING" validate:"gt=0"`
	Survivor       string  `yaml:"survivor" env:"SURVIVOR" validate:"oneof=crowding crowding_global"`
	Pairing        string  `yaml:"crowding_pairing" env:"CROWDING_PAIRING" validate:"oneof=least_similar most_similar"`
	ScalingFactor  float64 `yaml:"scaling_factor" env:"SCALING_FACTOR" validate:"gt=0"`
}

type Crossover struct {
	Strategy        string  `yaml:"strategy" env:"STRATEGY" validate:"oneof=exhaustive nearest"`
	Rate            float64 `yaml:"rate" env:"RATE" validate:"gte=0,lte=1"`
	Tries           int     `yaml:"tries" env:"TRIES" validate:"gte=1"`
	RepairNeighbors int     `yaml:"repair_neighbors" env:"REPAIR_NEIGHBORS" validate:"gte=1"`
}

type Mutation struct {
	Cluster            float64 `yaml:"heuristic_cluster" env:"CLUSTER" validate:"gte=0,lte=1"`
	RandomSwap         float64 `yaml:"random_swap" env:"RANDOM_SWAP" validate:"gte=0,lte=1"`
	Swap               float64 `yaml:"heuristic_swap" env:"SWAP" validate:"gte=0,lte=1"`
	CrossSwap          float64 `yaml:"heuristic_cross_swap" env:"CROSS_SWAP" validate:"gte=0,lte=1"`
	CrossSwapSamples   int     `yaml:"cross_swap_samples" env:"CROSS_SWAP_SAMPLES" validate:"gte=1"`
	Insert             float64 `yaml:"heuristic_insert" env:"INSERT" validate:"gte=0,lte=1"`
	InsertSamples      int     `yaml:"insert_samples" env:"INSERT_SAMPLES" validate:"gte=1"`
	LargeNeighbourhood float64 `yaml:"large_neighbourhood" env:"LARGE_NEIGHBOURHOOD" validate:"gte=0,lte=1"`
	LNSMinRouteLen     int     `yaml:"lns_min_route_len" env:"LNS_MIN_ROUTE_LEN" validate:"gte=3"`
}

type Penalty struct {
	Punishment float64 `yaml:"punishment_factor" env:"PUNISHMENT_FACTOR" validate:"gte=0"`
	Capacity   float64 `yaml:"capacity" env:"CAPACITY" validate:"gte=0"`
	Return     float64 `yaml:"return" env:"RETURN" validate:"gte=0"`
}

type Stagnation struct {
	Threshold int    `yaml:"threshold" env:"THRESHOLD" validate:"gte=1"`
	Restart   string `yaml:"restart" env:"RESTART" validate:"oneof=delete keep"`
}

type Islands struct {
	Enabled        bool `yaml:"enabled" env:"ENABLED"`
	Count          int  `yaml:"count" env:"COUNT" validate:"gte=0"`
	ShareFrequency int  `yaml:"share_frequency" env:"SHARE_FREQUENCY" validate:"gte=1"`
}

type Store struct {
	Driver string `yaml:"driver" env:"DRIVER" validate:"oneof=memory dir postgres"`
	Dir    string `yaml:"dir" env:"DIR" validate:"required_if=Driver dir"`
	DSN    string `yaml:"dsn" env:"DSN" validate:"required_if=Driver postgres"`
}

// Transport selects how islands exchange migrants. "slot" keeps the
// in-process shared slot; the others go through internal/migration.
type Transport struct {
	Kind    string `yaml:"kind" env:"KIND" validate:"oneof=slot memory redis amqp"`
	URL     string `yaml:"url" env:"URL" validate:"required_if=Kind redis,required_if=Kind amqp"`
	Channel string `yaml:"channel" env:"CHANNEL" validate:"required"`
}

type Server struct {
	// Addr empty disables the status server.
	Addr            string        `yaml:"addr" env:"ADDR"`
	BroadcastPerSec float64       `yaml:"broadcast_per_sec" env:"BROADCAST_PER_SEC" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// AuthSecret, when set, requires an HS256 bearer token on /v1 routes.
	AuthSecret string `yaml:"auth_secret" env:"AUTH_SECRET"`
}

// Webhooks announce every persisted improvement to external endpoints.
type Webhooks struct {
	URLs        []string      `yaml:"urls" env:"URLS" envSeparator:"," validate:"dive,url"`
	Secret      string        `yaml:"secret" env:"SECRET"`
	MaxAttempts int           `yaml:"max_attempts" env:"MAX_ATTEMPTS" validate:"gte=1"`
	Timeout     time.Duration `yaml:"timeout" env:"TIMEOUT" validate:"gte=0"`
	Backoff     time.Duration `yaml:"backoff" env:"BACKOFF" validate:"gte=0"`
}

type Log struct {
	Level string `yaml:"level" env:"LEVEL" validate:"oneof=debug info warn error"`
}

// Default returns the configuration used when a field is not set by the
// YAML file or the environment.
func Default() Config {
	return Config{
		Run: Run{
			Generations:      10000,
			LogFrequency:     100,
			VerifyInvariants: true,
			Cache:            true,
			CacheLimit:       200000,
		},
		Population: Population{
			Size:                100,
			Elitism:             2,
			Init:                "feasible",
			ConstructionRetries: 10000,
		},
		Selection: Selection{
			Parent:         "linear_ranking",
			Pressure:       1.5,
			TournamentSize: 3,
			ParentsScaling: 1,
			Survivor:       "crowding",
			Pairing:        "least_similar",
			ScalingFactor:  5,
		},
		Crossover: Crossover{
			Strategy:        "nearest",
			Rate:            0.7,
			Tries:           5,
			RepairNeighbors: 4,
		},
		Mutation: Mutation{
			Cluster:            0.1,
			RandomSwap:         0.05,
			Swap:               0.1,
			CrossSwap:          0.1,
			CrossSwapSamples:   10,
			Insert:             0.1,
			InsertSamples:      10,
			LargeNeighbourhood: 0.05,
			LNSMinRouteLen:     6,
		},
		Penalty: Penalty{
			Punishment: 5,
			Capacity:   1000,
			Return:     3000,
		},
		Stagnation: Stagnation{
			Threshold: 500,
			Restart:   "delete",
		},
		Islands: Islands{
			Count:          runtime.NumCPU(),
			ShareFrequency: 50,
		},
		Store:     Store{Driver: "memory"},
		Transport: Transport{Kind: "slot", Channel: "nurseroute.migrants"},
		Server: Server{
			BroadcastPerSec: 4,
			ShutdownTimeout: 5 * time.Second,
		},
		Webhooks: Webhooks{
			MaxAttempts: 5,
			Timeout:     5 * time.Second,
			Backoff:     time.Second,
		},
		Log: Log{Level: "info"},
	}
}

// Load reads the YAML file at path (if any) over Default, applies NURSE_*
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "NURSE_"}); err != nil {
		aggErr := env.AggregateError{}
		if errors.As(err, &aggErr) && len(aggErr.Errors) > 0 {
			err = aggErr.Errors[0]
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q (value %v)", ErrInvalidConfig, fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Population.Size-c.Population.Elitism < 2 {
		return fmt.Errorf("%w: population.size minus population.elitism must leave at least 2 breeders", ErrInvalidConfig)
	}
	return nil
}

// IslandCount resolves a zero count to the number of CPUs.
func (c *Config) IslandCount() int {
	if c.Islands.Count > 0 {
		return c.Islands.Count
	}
	return runtime.NumCPU()
}
