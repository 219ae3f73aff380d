package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"db"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Log       LogConfig       `mapstructure:"log"`
	Timetable TimetableConfig `mapstructure:"timetable"`
	Job       JobConfig       `mapstructure:"job"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	BodyLimit    int64         `mapstructure:"body_limit"` // 请求体上限（字节），导入 XLSX 时生效
	RateLimit    int           `mapstructure:"rate_limit"` // 每个 IP 每分钟请求数，0 表示不限流
	CORS         CORSConfig    `mapstructure:"cors"`
	ShutdownWait time.Duration `mapstructure:"shutdown_wait"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）
	LogLevel        string `mapstructure:"log_level"`          // silent / error / warn / info
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 配置，未启用时 Token 黑名单与限流退化为空操作
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig JWT 认证配置
type AuthConfig struct {
	JWTSecret       string          `mapstructure:"jwt_secret"`
	AccessTokenTTL  time.Duration   `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration   `mapstructure:"refresh_token_ttl"`
	Bootstrap       BootstrapConfig `mapstructure:"bootstrap"`
}

// BootstrapConfig 首次启动时创建的管理员账号
type BootstrapConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TimetableConfig 课表引擎配置
type TimetableConfig struct {
	Persistence       string `mapstructure:"persistence"`        // memory / postgres
	OccupancyPolicy   string `mapstructure:"occupancy_policy"`   // reject / replace / allow
	NormalizeIdentity bool   `mapstructure:"normalize_identity"` // 教师/教室比较前规范化
	CatalogFile       string `mapstructure:"catalog_file"`       // 为空时使用内置目录
	SeedDemo          bool   `mapstructure:"seed_demo"`          // 空库启动时写入演示数据
}

// UsePostgres 是否持久化到 PostgreSQL
func (c *TimetableConfig) UsePostgres() bool {
	return c.Persistence == "postgres"
}

// JobConfig 定时任务配置
type JobConfig struct {
	AuditEnabled bool   `mapstructure:"audit_enabled"`
	AuditSpec    string `mapstructure:"audit_spec"` // cron 表达式，如 "@every 1h"
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.body_limit", 10<<20)
	v.SetDefault("server.rate_limit", 120)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})
	v.SetDefault("server.shutdown_wait", "10s")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "madrassa")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "Europe/Paris")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)
	v.SetDefault("db.conn_max_idle_time", 30)
	v.SetDefault("db.log_level", "warn")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.access_token_ttl", "15m")
	v.SetDefault("auth.refresh_token_ttl", "168h")
	v.SetDefault("auth.bootstrap.username", "admin")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("timetable.persistence", "memory")
	v.SetDefault("timetable.occupancy_policy", "reject")
	v.SetDefault("timetable.normalize_identity", true)
	v.SetDefault("timetable.catalog_file", "")
	v.SetDefault("timetable.seed_demo", true)

	v.SetDefault("job.audit_enabled", true)
	v.SetDefault("job.audit_spec", "@every 1h")

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("MADRASSA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在时仅依赖默认值和环境变量
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	switch c.Timetable.Persistence {
	case "memory", "postgres":
	default:
		return fmt.Errorf("配置校验失败: timetable.persistence 必须为 memory 或 postgres，实际 %q", c.Timetable.Persistence)
	}
	switch c.Timetable.OccupancyPolicy {
	case "", "reject", "replace", "allow":
	default:
		return fmt.Errorf("配置校验失败: timetable.occupancy_policy 必须为 reject/replace/allow，实际 %q", c.Timetable.OccupancyPolicy)
	}
	if c.Job.AuditEnabled {
		if c.Job.AuditSpec == "" {
			return fmt.Errorf("配置校验失败: job.audit_spec 不能为空")
		}
		if _, err := cron.ParseStandard(c.Job.AuditSpec); err != nil {
			return fmt.Errorf("配置校验失败: job.audit_spec 无效: %w", err)
		}
	}
	return nil
}
