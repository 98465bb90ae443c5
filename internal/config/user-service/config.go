package user_service_config

import (
	"time"

	"github.com/NordCoder/Jobportal/internal/obs"
	"github.com/NordCoder/Jobportal/internal/outbox"
	pg "github.com/NordCoder/Jobportal/internal/repository/postgres"
	redisrepo "github.com/NordCoder/Jobportal/internal/repository/redis"
)

type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type Server struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	GRPCAddr        string        `mapstructure:"grpc_addr"`
	MetricsAddr     string        `mapstructure:"metrics_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

func (oc *OTEL) AsOTELConfig() *obs.OTELConfig {
	return &obs.OTELConfig{
		Enable:      oc.Enable,
		Endpoint:    oc.OTLPEndpoint,
		ServiceName: oc.ServiceName,
		SampleRatio: oc.SampleRatio,
	}
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func (c *Config) AsLoggerConfig() obs.LogConfig {
	return obs.LogConfig{
		Level:  c.Log.Level,
		Pretty: c.Log.Pretty,
		App:    c.App.Name,
		Env:    c.App.Env,
		Ver:    c.App.Version,
	}
}

type Kafka struct {
	Brokers     []string `mapstructure:"brokers"`
	MailTopic   string   `mapstructure:"mail_topic"`
	Partitions  int      `mapstructure:"partitions"`
	Replication int      `mapstructure:"replication"`
}

type Auth struct {
	AccessSecret      string        `mapstructure:"access_secret"`
	RefreshSecret     string        `mapstructure:"refresh_secret"`
	Issuer            string        `mapstructure:"issuer"`
	AccessTTL         time.Duration `mapstructure:"access_ttl"`
	RefreshTTL        time.Duration `mapstructure:"refresh_ttl"`
	SignupOTPTTL      time.Duration `mapstructure:"signup_otp_ttl"`
	ResetOTPTTL       time.Duration `mapstructure:"reset_otp_ttl"`
	ResetGrantTTL     time.Duration `mapstructure:"reset_grant_ttl"`
	VerifiedMarkerTTL time.Duration `mapstructure:"verified_marker_ttl"`
	RotateRefresh     bool          `mapstructure:"rotate_refresh"`
	OTPMaxAttempts    int           `mapstructure:"otp_max_attempts"`
	LoginMaxAttempts  int           `mapstructure:"login_max_attempts"`
	AttemptWindow     time.Duration `mapstructure:"attempt_window"`
	BcryptCost        int           `mapstructure:"bcrypt_cost"`
	AllowAdminSignup  bool          `mapstructure:"allow_admin_signup"`

	CookieDomain   string `mapstructure:"cookie_domain"`
	CookiePath     string `mapstructure:"cookie_path"`
	CookieSecure   bool   `mapstructure:"cookie_secure"`
	CookieSameSite string `mapstructure:"cookie_same_site"`
}

type Config struct {
	App    App              `mapstructure:"app"`
	Server Server           `mapstructure:"server"`
	DB     pg.Config        `mapstructure:"db"`
	Redis  redisrepo.Config `mapstructure:"redis"`
	Kafka  Kafka            `mapstructure:"kafka"`
	Outbox outbox.Config    `mapstructure:"outbox"`
	OTEL   OTEL             `mapstructure:"otel"`
	Log    Log              `mapstructure:"log"`
	Auth   Auth             `mapstructure:"auth"`
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }

const (
	ErrNoDSN             ErrConfig = "config: db.dsn is empty"
	ErrNoRedis           ErrConfig = "config: redis.addr is empty"
	ErrNoSecrets         ErrConfig = "config: auth.access_secret and auth.refresh_secret are required"
	ErrSecretsEqual      ErrConfig = "config: auth.access_secret and auth.refresh_secret must differ"
	ErrNoBrokers         ErrConfig = "config: kafka.brokers is empty"
	ErrBadAttemptsLimits ErrConfig = "config: attempt limits must be positive"
)
