package config

import (
	"fmt"
	"log"
	"sync"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	DriverMongo  = "mongo"
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

type Listen struct {
	BindIp  string `yaml:"bind_ip" env-default:"0.0.0.0"`
	Port    string `yaml:"port" env-default:"8080"`
	Timeout int    `yaml:"timeout" env-default:"20" env-description:"request timeout, seconds"`
}

type StripeConfig struct {
	APIKey            string `yaml:"api_key" env:"STRIPE_SECRET_KEY" env-default:""`
	WebhookSecret     string `yaml:"webhook_secret" env:"STRIPE_WEBHOOK_SECRET" env-default:""`
	TestMode          bool   `yaml:"test_mode" env-default:"false"`
	TestKey           string `yaml:"test_key" env-default:""`
	TestWebhookSecret string `yaml:"test_webhook_secret" env-default:""`
	CheckoutBaseURL   string `yaml:"checkout_base_url" env:"CHECKOUT_BASE_URL" env-default:"http://localhost:8082"`
	Timeout           int    `yaml:"timeout" env-default:"10" env-description:"checkout session request timeout, seconds"`
	Tolerance         int    `yaml:"tolerance" env-default:"5" env-description:"webhook signature age tolerance, minutes"`
}

type StoreConfig struct {
	Driver string `yaml:"driver" env:"STORE_DRIVER" env-default:"mongo"`
}

type MongoConfig struct {
	Host     string `yaml:"host" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env-default:"27017"`
	User     string `yaml:"user" env-default:""`
	Password string `yaml:"password" env:"MONGO_PASSWORD" env-default:""`
	Database string `yaml:"database" env-default:"entrypay"`
}

type MySQLConfig struct {
	HostName string `yaml:"hostname" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env-default:"3306"`
	UserName string `yaml:"username" env-default:""`
	Password string `yaml:"password" env:"MYSQL_PASSWORD" env-default:""`
	Database string `yaml:"database" env-default:"entrypay"`
	Prefix   string `yaml:"prefix" env-default:""`
}

type SweeperConfig struct {
	Enabled   bool   `yaml:"enabled" env-default:"false"`
	Schedule  string `yaml:"schedule" env-default:"@every 10m"`
	Grace     int    `yaml:"grace" env-default:"15" env-description:"minutes after checkout before a session is re-checked"`
	BatchSize int    `yaml:"batch_size" env-default:"50"`
}

type PollConfig struct {
	Attempts int `yaml:"attempts" env-default:"20"`
	Delay    int `yaml:"delay" env-default:"750" env-description:"milliseconds between attempts"`
}

type TelegramConfig struct {
	Enabled  bool    `yaml:"enabled" env-default:"false"`
	ApiKey   string  `yaml:"api_key" env:"TELEGRAM_API_KEY" env-default:""`
	ChatIds  []int64 `yaml:"chat_ids"`
	LogLevel int     `yaml:"log_level" env-default:"8" env-description:"minimal slog level forwarded to telegram"`
}

type Config struct {
	Env      string         `yaml:"env" env-default:"local"`
	LogPath  string         `yaml:"log_path" env-default:"/var/log/entrypay.log"`
	Listen   Listen         `yaml:"listen"`
	Store    StoreConfig    `yaml:"store"`
	Mongo    MongoConfig    `yaml:"mongo"`
	MySQL    MySQLConfig    `yaml:"mysql"`
	Stripe   StripeConfig   `yaml:"stripe"`
	Sweeper  SweeperConfig  `yaml:"sweeper"`
	Poll     PollConfig     `yaml:"poll"`
	Telegram TelegramConfig `yaml:"telegram"`
}

var instance *Config
var once sync.Once

func MustLoad(path string) *Config {
	var err error
	once.Do(func() {
		instance = &Config{}
		if err = cleanenv.ReadConfig(path, instance); err != nil {
			desc, _ := cleanenv.GetDescription(instance, nil)
			err = fmt.Errorf("config: %s; %s", err, desc)
			instance = nil
			log.Fatal(err)
		}
	})
	return instance
}

// StripeKeys returns the api key and webhook secret for the active mode.
func (c *Config) StripeKeys() (string, string) {
	if c.Stripe.TestMode {
		return c.Stripe.TestKey, c.Stripe.TestWebhookSecret
	}
	return c.Stripe.APIKey, c.Stripe.WebhookSecret
}
