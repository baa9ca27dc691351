package core

import (
	"log"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultSecteurs is the canonical list of the association's sectors.
var DefaultSecteurs = []string{
	"Numérique",
	"Familles",
	"EPE",
	"Santé Transition",
	"Insertion Sociale et Professionnelle",
	"Animation Globale",
}

type Config struct {
	AppName      string
	Env          string
	Debug        bool
	TestMode     bool
	Build        string
	RollbarToken string
	Secteurs     []string

	Server struct {
		Address         string
		DebugAddress    string
		Host            string
		ShutdownTimeout time.Duration
		RequestLogs     bool
	}

	Database struct {
		Engine        string // memory, postgres, pgx
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	Activity struct {
		AgeBrackets               []int // upper bounds (exclusive), in years
		FrequencyBuckets          []int // lower bounds of presence counts
		MatrixDefaultSessions     int
		MatrixDefaultParticipants int
	}
}

func (conf Config) DatabaseAddress() string {
	return net.JoinHostPort(conf.Database.Host, conf.Database.Port)
}

// NewConfig reads the configuration from defaults, the optional `config/.env.<env>` file and the environment.
// Environment variables are prefixed by the env name, eg. PROD_DATABASE_NAME
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("appName", "gestio")
	v.SetDefault("debug", true)
	v.SetDefault("build", "dev")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("secteurs", strings.Join(DefaultSecteurs, ";"))

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugAddress", ":4000")
	v.SetDefault("server.shutdownTimeout", 10*time.Second)
	v.SetDefault("server.requestLogs", true)

	v.SetDefault("database.engine", "memory")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "gestio")
	v.SetDefault("database.user", "gestio")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("activity.ageBrackets", "12 18 26 60")
	v.SetDefault("activity.frequencyBuckets", "1 2 4 10")
	v.SetDefault("activity.matrixDefaultSessions", 40)
	v.SetDefault("activity.matrixDefaultParticipants", 250)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		AppName:      v.GetString("appName"),
		Env:          env,
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		Build:        v.GetString("build"),
		RollbarToken: v.GetString("rollbarToken"),
		Secteurs:     splitSecteurs(v.GetString("secteurs")),
	}

	conf.Server.Address = v.GetString("server.address")
	conf.Server.DebugAddress = v.GetString("server.debugAddress")
	conf.Server.ShutdownTimeout = v.GetDuration("server.shutdownTimeout")
	conf.Server.RequestLogs = v.GetBool("server.requestLogs")
	if host, err := os.Hostname(); err == nil {
		conf.Server.Host = host
	}

	conf.Database.Engine = CleanString(v.GetString("database.engine"), true /* lower */)
	conf.Database.Host = v.GetString("database.host")
	conf.Database.Port = v.GetString("database.port")
	conf.Database.Name = v.GetString("database.name")
	conf.Database.User = v.GetString("database.user")
	conf.Database.Password = v.GetString("database.password")
	conf.Database.AdminUser = v.GetString("database.adminUser")
	conf.Database.AdminPassword = v.GetString("database.adminPassword")
	conf.Database.DisableTLS = v.GetBool("database.disableTLS")

	conf.Activity.AgeBrackets = parseInts(v.GetString("activity.ageBrackets"))
	conf.Activity.FrequencyBuckets = parseInts(v.GetString("activity.frequencyBuckets"))
	conf.Activity.MatrixDefaultSessions = v.GetInt("activity.matrixDefaultSessions")
	conf.Activity.MatrixDefaultParticipants = v.GetInt("activity.matrixDefaultParticipants")

	return conf
}

func splitSecteurs(s string) []string {
	secteurs := make([]string, 0, len(DefaultSecteurs))
	for _, sec := range strings.Split(s, ";") {
		if sec = CleanString(sec); sec != "" {
			secteurs = append(secteurs, sec)
		}
	}
	return secteurs
}

// parseInts parses a whitespace separated list of bounds, skipping invalid entries.
// The result is ascending and without duplicates.
func parseInts(s string) []int {
	fields := strings.Fields(s)
	ints := make([]int, 0, len(fields))
	seen := make(map[int]bool, len(fields))
	for _, f := range fields {
		if n, err := strconv.Atoi(f); err == nil && !seen[n] {
			seen[n] = true
			ints = append(ints, n)
		}
	}
	sort.Ints(ints)
	return ints
}
