package backends

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/meilisearch/meilisearch-go"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"winsync/internal/backends/ddb"
	"winsync/internal/backends/file"
	"winsync/internal/backends/items"
	"winsync/internal/backends/meili"
	"winsync/internal/backends/memory"
	redisbackend "winsync/internal/backends/redis"
	"winsync/internal/backends/sqlite"
	"winsync/internal/ports"
	"winsync/internal/pub"
	"winsync/internal/types"
)

const (
	DataBackendEnvKey = "DATA_BACKEND"
	BackendMemory     = "memory"
	BackendRedis      = "redis"
	BackendDDB        = "ddb"
	BackendSQLite     = "sqlite"
	BackendMeili      = "meili"
	BackendFile       = "file"

	ConfigBackendEnvKey = "CONFIG_BACKEND"
	ConfigBackendFile   = "file"

	TransportEnvKey = "TRANSPORT"
	TransportSNS    = "sns"
	TransportRedis  = "redis"
	TransportLog    = "log"

	DDBEndpointKey = "DDB_ENDPOINT"
	DDBTableKey    = "DDB_TABLE"
	SNSEndpointKey = "SNS_ENDPOINT"

	RedisHost  = "REDIS_HOST"
	RedisPort  = "REDIS_PORT"
	RedisUser  = "REDIS_USER"
	RedisPass  = "REDIS_PASS"
	RedisTLS   = "REDIS_SSL"
	RedisDBNum = "REDIS_DB_NUM"

	SQLitePathKey   = "SQLITE_PATH"
	MeiliHostKey    = "MEILI_HOST"
	MeiliAPIKeyKey  = "MEILI_API_KEY"
	MeiliPrefixKey  = "MEILI_INDEX_PREFIX"
	MeiliStableKey  = "MEILI_STABLE"
	MeiliMaxHitsKey = "MEILI_MAX_TOTAL_HITS"
	ItemsDirKey     = "ITEMS_DIR"
	DefaultDDBTable = "winsync"
	DefaultSQLiteDB = "winsync.db"
	DefaultItemsDir = "items"
)
const AmazonRootCA1PEM = `-----BEGIN CERTIFICATE-----
MIIDQTCCAimgAwIBAgITBmyfz5m/jAo54vB4ikPmljZbyjANBgkqhkiG9w0BAQsF
ADA5MQswCQYDVQQGEwJVUzEPMA0GA1UEChMGQW1hem9uMRkwFwYDVQQDExBBbWF6
b24gUm9vdCBDQSAxMB4XDTE1MDUyNjAwMDAwMFoXDTM4MDExNzAwMDAwMFowOTEL
MAkGA1UEBhMCVVMxDzANBgNVBAoTBkFtYXpvbjEZMBcGA1UEAxMQQW1hem9uIFJv
b3QgQ0EgMTCCASIwDQYJKoZIhvcNAQEBBQADggEPADCCAQoCggEBALJ4gHHKeNXj
ca9HgFB0fW7Y14h29Jlo91ghYPl0hAEvrAIthtOgQ3pOsqTQNroBvo3bSMgHFzZM
9O6II8c+6zf1tRn4SWiw3te5djgdYZ6k/oI2peVKVuRF4fn9tBb6dNqcmzU5L/qw
IFAGbHrQgLKm+a/sRxmPUDgH3KKHOVj4utWp+UhnMJbulHheb4mjUcAwhmahRWa6
VOujw5H5SNz/0egwLX0tdHA114gk957EWW67c4cX8jJGKLhD+rcdqsq08p8kDi1L
93FcXmn/6pUCyziKrlA4b9v7LWIbxcceVOF34GfID5yHI9Y/QCB/IIDEgEw+OyQm
jgSubJrIqg0CAwEAAaNCMEAwDwYDVR0TAQH/BAUwAwEB/zAOBgNVHQ8BAf8EBAMC
AYYwHQYDVR0OBBYEFIQYzIU07LwMlJQuCFmcx7IQTgoIMA0GCSqGSIb3DQEBCwUA
A4IBAQCY8jdaQZChGsV2USggNiMOruYou6r4lK5IpDB/G/wkjUu0yKGX9rbxenDI
U5PMCCjjmCXPI6T53iHTfIUJrU6adTrCC2qJeHZERxhlbI1Bjjt/msv0tadQ1wUs
N+gDS63pYaACbvXy8MWy7Vu33PqUXHeeE6V/Uq2V8viTO96LXFvKWlJbYK8U90vv
o/ufQJVtMVT8QtPHRh8jrdkPSHCa2XV4cdFyQzR1bldZwgJcJmApzyMZFo6IQ6XU
5MsI+yMRQ+hDKXJioaldXgjUkK642M4UwtBV8ob2xJNDd2ZhwLnoQdeXeGADbkpy
rqXRfboQnoZsG4q5WTP468SQvvG5
-----END CERTIFICATE-----`

// Factory builds the providers and the publisher selected by the environment. Lists on
// the same backend share one client.
type Factory struct {
	mu       sync.Mutex
	backend  string
	redis    *redis.Client
	ddb      *dynamodb.Client
	db       *sql.DB
	meili    *meilisearch.Client
	memories map[string]*memory.Provider
	files    map[string]*file.Provider
}

// NewFactory reads DATA_BACKEND. If unspecified, defaults to the in-process memory backend.
func NewFactory() *Factory {
	return &Factory{
		backend:  getenv(DataBackendEnvKey, BackendMemory),
		memories: make(map[string]*memory.Provider),
		files:    make(map[string]*file.Provider),
	}
}

func (f *Factory) Backend() string { return f.backend }

// CheckQuery reports whether backend can run q. Meilisearch filters are checked by the
// server on first use.
func CheckQuery(backend string, q types.QueryConfig) error {
	switch backend {
	case BackendMemory, BackendFile:
		return items.CheckQuery(q)
	case BackendSQLite:
		return sqlite.CheckQuery(q)
	case BackendRedis:
		return redisbackend.CheckQuery(q)
	case BackendDDB:
		return ddb.CheckQuery(q)
	}
	return nil
}

// ProviderFromEnv returns the data provider for one configured list.
func (f *Factory) ProviderFromEnv(ctx context.Context, cfg types.ListConfig) (ports.DataProvider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg = cfg.WithDefaults()
	if err := CheckQuery(f.backend, cfg.Query); err != nil {
		return nil, fmt.Errorf("list %s: %w", cfg.ID, err)
	}
	switch f.backend {
	case BackendMemory:
		return f.memoryProvider(cfg), nil
	case BackendRedis:
		cli, err := f.redisClient()
		if err != nil {
			return nil, err
		}
		return redisbackend.NewProvider(cli, cfg.ID, cfg.IDField), nil
	case BackendDDB:
		cli, err := f.ddbClient(ctx)
		if err != nil {
			return nil, err
		}
		p, err := ddb.NewProvider(ctx, getenv(DDBTableKey, DefaultDDBTable), cli, cfg.ID, cfg.IDField)
		if err != nil {
			return nil, err
		}
		return p, nil
	case BackendSQLite:
		db, err := f.sqliteDB(ctx)
		if err != nil {
			return nil, err
		}
		return sqlite.NewProvider(db, cfg.ID, cfg.IDField), nil
	case BackendMeili:
		_, index := f.meiliIndex(cfg.ID)
		return meili.NewProvider(index, cfg.IDField, parseBoolean(getenv(MeiliStableKey, "false"))), nil
	case BackendFile:
		p, err := f.fileProvider(cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, types.Err(types.ErrInvalidBackend, nil, "%s=%q", DataBackendEnvKey, f.backend)
}

// Seed replaces the items of a list in the configured backend.
func (f *Factory) Seed(ctx context.Context, cfg types.ListConfig, rows []types.Item) error {
	cfg = cfg.WithDefaults()
	p, err := f.ProviderFromEnv(ctx, cfg)
	if err != nil {
		return err
	}
	switch p := p.(type) {
	case *memory.Provider:
		p.Set(rows)
		return nil
	case *redisbackend.Provider:
		if err := p.Clear(ctx); err != nil {
			return err
		}
		return p.Append(ctx, rows...)
	case *ddb.Provider:
		return p.PutItems(ctx, 0, rows)
	case *sqlite.Provider:
		if err := p.Truncate(ctx, 0); err != nil {
			return err
		}
		return p.PutItems(ctx, 0, rows)
	case *meili.Provider:
		client, index := f.meiliIndex(cfg.ID)
		maxHits, _ := strconv.ParseInt(getenv(MeiliMaxHitsKey, "0"), 10, 64)
		if err := meili.EnsureMaxTotalHits(ctx, client, index, maxHits); err != nil {
			return err
		}
		return meili.AddItems(ctx, client, index, cfg.IDField, rows)
	case *file.Provider:
		if err := writeLines(p.Path(), rows); err != nil {
			return err
		}
		return p.Reload()
	}
	return types.Err(types.ErrInvalidBackend, nil, "cannot seed %T", p)
}

// ConfigStoreFromEnv returns the store named by CONFIG_BACKEND (redis or ddb). It returns
// nil when list configs come from the config file only.
func (f *Factory) ConfigStoreFromEnv(ctx context.Context) (ports.ConfigStore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch kind := getenv(ConfigBackendEnvKey, ConfigBackendFile); kind {
	case ConfigBackendFile:
		return nil, nil
	case BackendRedis:
		cli, err := f.redisClient()
		if err != nil {
			return nil, err
		}
		return redisbackend.NewConfigStore(cli), nil
	case BackendDDB:
		cli, err := f.ddbClient(ctx)
		if err != nil {
			return nil, err
		}
		store, err := ddb.NewConfigStore(ctx, getenv(DDBTableKey, DefaultDDBTable), cli)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, types.Err(types.ErrInvalidBackend, nil, "%s=%q", ConfigBackendEnvKey, kind)
	}
}

// WatchFiles keeps every file provider in sync with its file until ctx is done.
func (f *Factory) WatchFiles(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.files {
		go func(p *file.Provider) {
			if err := p.Watch(ctx); err != nil && ctx.Err() == nil {
				log.WithError(err).WithField("path", p.Path()).Error("file watch stopped")
			}
		}(p)
	}
}

func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var err error
	if f.redis != nil {
		err = f.redis.Close()
	}
	if f.db != nil {
		if cerr := f.db.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (f *Factory) memoryProvider(cfg types.ListConfig) *memory.Provider {
	p, ok := f.memories[cfg.ID]
	if !ok {
		p = memory.NewProvider(cfg.IDField)
		f.memories[cfg.ID] = p
	}
	return p
}

func (f *Factory) fileProvider(cfg types.ListConfig) (*file.Provider, error) {
	if p, ok := f.files[cfg.ID]; ok {
		return p, nil
	}
	path := filepath.Join(getenv(ItemsDirKey, DefaultItemsDir), cfg.ID+".jsonl")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeLines(path, nil); err != nil {
			return nil, err
		}
	}
	p, err := file.NewProvider(path, cfg.IDField)
	if err != nil {
		return nil, err
	}
	f.files[cfg.ID] = p
	return p, nil
}

func (f *Factory) redisClient() (*redis.Client, error) {
	if f.redis == nil {
		cli, err := redisClientFromEnv()
		if err != nil {
			return nil, err
		}
		f.redis = cli
	}
	return f.redis, nil
}

func (f *Factory) ddbClient(ctx context.Context) (*dynamodb.Client, error) {
	if f.ddb == nil {
		cli, err := ddbClientFromEnv(ctx)
		if err != nil {
			return nil, err
		}
		f.ddb = cli
	}
	return f.ddb, nil
}

func (f *Factory) sqliteDB(ctx context.Context) (*sql.DB, error) {
	if f.db == nil {
		db, err := sqlite.Open(ctx, getenv(SQLitePathKey, DefaultSQLiteDB))
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	return f.db, nil
}

func (f *Factory) meiliIndex(listID string) (*meilisearch.Client, *meilisearch.Index) {
	if f.meili == nil {
		f.meili, _ = meili.Connect(os.Getenv(MeiliHostKey), os.Getenv(MeiliAPIKeyKey), "")
	}
	return f.meili, f.meili.Index(os.Getenv(MeiliPrefixKey) + listID)
}

// PublisherFromEnv constructs the Publisher named by TRANSPORT: "sns", "redis" or "log".
// Default to TransportLog if unspecified.
func (f *Factory) PublisherFromEnv(ctx context.Context) (ports.Publisher, error) {
	switch t := getenv(TransportEnvKey, TransportLog); t {
	case TransportSNS:
		cli, err := snsClientFromEnv(ctx)
		if err != nil {
			return nil, err
		}
		return pub.NewSNS(cli), nil
	case TransportRedis:
		f.mu.Lock()
		defer f.mu.Unlock()
		cli, err := f.redisClient()
		if err != nil {
			return nil, err
		}
		return pub.NewRedis(cli), nil
	case TransportLog:
		return pub.NewLog(log.InfoLevel), nil
	default:
		return nil, types.Err(types.ErrInvalidBackend, nil, "%s=%q", TransportEnvKey, t)
	}
}

func writeLines(path string, rows []types.Item) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var buf []byte
	for _, row := range rows {
		b, err := items.Encode(row)
		if err != nil {
			return err
		}
		buf = append(append(buf, b...), '\n')
	}
	// write then rename so watchers never read a half-written file
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ddbClientFromEnv creates a DynamoDB client from environment variables, if any.
func ddbClientFromEnv(ctx context.Context) (*dynamodb.Client, error) {
	var ddbEndpoint *string
	de := os.Getenv(DDBEndpointKey)
	if de != "" {
		ddbEndpoint = aws.String(de)
	}

	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}

	ddbClient := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if ddbEndpoint != nil {
			// This is used for testing only locally
			o.BaseEndpoint = ddbEndpoint
			o.Region = getenv("AWS_REGION", "us-east-1")
			o.Credentials = credentials.NewStaticCredentialsProvider(
				getenv("AWS_ACCESS_KEY_ID", "x"),
				getenv("AWS_SECRET_ACCESS_KEY", "x"),
				"",
			)
		}
	})
	return ddbClient, nil
}

// snsClientFromEnv creates an SNS client, pointed at SNS_ENDPOINT when set.
func snsClientFromEnv(ctx context.Context) (*sns.Client, error) {
	var snsEndpoint *string
	if se := os.Getenv(SNSEndpointKey); se != "" {
		snsEndpoint = aws.String(se)
	}
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if snsEndpoint != nil {
			o.BaseEndpoint = snsEndpoint
			if o.Region == "" {
				o.Region = "us-east-1"
			}
			o.Credentials = credentials.NewStaticCredentialsProvider("test", "test", "")
		}
	}), nil
}

// redisClientFromEnv creates a Redis client from environment variables, if any.
func redisClientFromEnv() (*redis.Client, error) {
	host := getenv(RedisHost, "localhost")
	port := getenv(RedisPort, "6379")
	user := os.Getenv(RedisUser)
	pass := os.Getenv(RedisPass)
	tlsEnabled := parseBoolean(getenv(RedisTLS, "false"))
	dbNumStr := getenv(RedisDBNum, "0")
	dbNum, err := strconv.Atoi(dbNumStr)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis DB number: %w", err)
	}

	var tlsConfig *tls.Config
	if tlsEnabled {
		// Create a CA certificate pool and add our CA certificate
		caCerts := x509.NewCertPool()
		if !caCerts.AppendCertsFromPEM([]byte(AmazonRootCA1PEM)) {
			return nil, fmt.Errorf("failed to retrieve CA certificate")
		}
		tlsConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			RootCAs:    caCerts,
		}
	}

	redisConfig := redis.Options{
		Addr:      fmt.Sprintf("%s:%s", host, port),
		Username:  user,
		Password:  pass,
		DB:        dbNum,
		TLSConfig: tlsConfig,
	}
	redisClient := redis.NewClient(&redisConfig)
	_, err = redisClient.Ping(context.Background()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return redisClient, nil
}

// getenv retrieves the value of the environment variable named by the key.
func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func parseBoolean(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false
	}
	return b
}
