package config

import "time"

type Config interface {
	PartnerConfig
	CryptoConfig
	DatabaseConfig
	BatchConfig
	LogConfig
}

type PartnerConfig interface {
	GetAPIHost() string
	GetAPIPort() int
	GetAPIVersion() string
	GetResource() string
}

type CryptoConfig interface {
	GetEncryptionKey() string
}

type DatabaseConfig interface {
	GetDatabaseURL() string
	GetProvider() string
	GetMaxConns() int32
}

type BatchConfig interface {
	GetConcurrency() int
	GetRequestTimeout() time.Duration
	GetRetryMax() int
	GetOutputFile() string
	GetMetricsFile() string
}

type LogConfig interface {
	GetLogLevel() string
	GetLogPretty() bool
	GetLogFile() string
}

var _ Config = (*settings)(nil)

type settings struct {
	Altrac   altrac   `mapstructure:"altrac"`
	Crypto   crypto   `mapstructure:"crypto"`
	Database database `mapstructure:"database"`
	Batch    batch    `mapstructure:"batch"`
	Log      logging  `mapstructure:"log"`
}

type altrac struct {
	APIHost    string `mapstructure:"api_host" validate:"required,url"`
	APIPort    int    `mapstructure:"api_port" validate:"gte=0,lte=65535"`
	APIVersion string `mapstructure:"api_version" validate:"required"`
	Resource   string `mapstructure:"resource" validate:"required"`
}

type crypto struct {
	AESKey string `mapstructure:"aes_key" validate:"required"` // byte length checked in Load
}

type database struct {
	URL      string `mapstructure:"url" validate:"required"`
	Provider string `mapstructure:"provider" validate:"required"`
	MaxConns int32  `mapstructure:"max_conns" validate:"gte=0"`
}

type batch struct {
	Concurrency    int           `mapstructure:"concurrency" validate:"gte=1"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	RetryMax       int           `mapstructure:"retry_max" validate:"gte=0"`
	OutputFile     string        `mapstructure:"output_file"`
	MetricsFile    string        `mapstructure:"metrics_file"`
}

type logging struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	Pretty bool   `mapstructure:"pretty"`
	File   string `mapstructure:"file"`
}

func (s *settings) GetAPIHost() string    { return s.Altrac.APIHost }
func (s *settings) GetAPIPort() int       { return s.Altrac.APIPort }
func (s *settings) GetAPIVersion() string { return s.Altrac.APIVersion }
func (s *settings) GetResource() string   { return s.Altrac.Resource }

// GetEncryptionKey returns the shared key used to decrypt stored tenant credentials.
func (s *settings) GetEncryptionKey() string { return s.Crypto.AESKey }

func (s *settings) GetDatabaseURL() string { return s.Database.URL }
func (s *settings) GetProvider() string    { return s.Database.Provider }
func (s *settings) GetMaxConns() int32     { return s.Database.MaxConns }

func (s *settings) GetConcurrency() int              { return s.Batch.Concurrency }
func (s *settings) GetRequestTimeout() time.Duration { return s.Batch.RequestTimeout }
func (s *settings) GetRetryMax() int                 { return s.Batch.RetryMax }
func (s *settings) GetOutputFile() string            { return s.Batch.OutputFile }
func (s *settings) GetMetricsFile() string           { return s.Batch.MetricsFile }

func (s *settings) GetLogLevel() string { return s.Log.Level }
func (s *settings) GetLogPretty() bool  { return s.Log.Pretty }
func (s *settings) GetLogFile() string  { return s.Log.File }
