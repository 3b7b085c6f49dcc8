package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env           string              `yaml:"env" env:"APP_ENV" env-default:"local"`
	HTTP          HTTPConfig          `yaml:"http"`
	Storage       StorageConfig       `yaml:"storage"`
	Redis         RedisConf           `yaml:"redis"`
	BlobStore     BlobStoreConfig     `yaml:"blob_store"`
	Ledger        LedgerConfig        `yaml:"ledger"`
	Sealing       SealingConfig       `yaml:"sealing"`
	Access        AccessConfig        `yaml:"access"`
	Publication   PublicationConfig   `yaml:"publication"`
	Collaborators CollaboratorsConfig `yaml:"collaborators"`
}

type HTTPConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
}

type StorageConfig struct {
	// postgres | memory
	Driver string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"postgres"`
	DSN    string `yaml:"dsn" env:"DSN"`
}

type RedisConf struct {
	RedisAddr     string `yaml:"redis_addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword string `yaml:"redispassword" env:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" env:"REDIS_DB"`
}

type BlobStoreConfig struct {
	// fs | s3
	Driver  string `yaml:"driver" env:"BLOB_STORE_DRIVER" env-default:"fs"`
	BaseDir string `yaml:"base_dir" env-default:"./blobs"`
	MaxSize int64  `yaml:"max_size" env-default:"104857600"`

	S3Bucket       string `yaml:"s3_bucket" env:"S3_BUCKET"`
	S3Region       string `yaml:"s3_region" env:"S3_REGION" env-default:"us-east-1"`
	S3BaseEndpoint string `yaml:"s3_base_endpoint" env:"S3_BASE_ENDPOINT"`
	S3AccessKey    string `yaml:"s3_access_key" env:"S3_ACCESS_KEY"`
	S3SecretKey    string `yaml:"s3_secret_key" env:"S3_SECRET_KEY"`
}

type LedgerConfig struct {
	// Hex encoded ed25519 seed of the server signer. Used only for container creation.
	SignerSeed string `yaml:"signer_seed" env:"LEDGER_SIGNER_SEED" env-required:"true"`
}

type SealingConfig struct {
	MasterSecret string `yaml:"master_secret" env:"SEALING_MASTER_SECRET" env-required:"true"`
}

type AccessConfig struct {
	TokenSecret      string        `yaml:"token_secret" env:"ACCESS_TOKEN_SECRET" env-required:"true"`
	SessionTTL       time.Duration `yaml:"session_ttl" env-default:"10m"`
	SignatureTimeout time.Duration `yaml:"signature_timeout" env-default:"2m"`
	FetchConcurrency int           `yaml:"fetch_concurrency" env-default:"8"`
}

type PublicationConfig struct {
	UploadConcurrency int `yaml:"upload_concurrency" env-default:"4"`
}

type CollaboratorsConfig struct {
	Timeout time.Duration `yaml:"timeout" env-default:"30s"`
}

func MustLoad() *Config {
	path := fetchConfigPath()
	if path == "" {
		panic("config path is empty")
	}

	return MustLoadPath(path)
}

func MustLoadPath(configPath string) *Config {
	// check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("cannot read config: " + err.Error())
	}

	return &cfg
}

func fetchConfigPath() string {
	var res string

	// --config="path/to/config.yaml"
	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	return res
}
