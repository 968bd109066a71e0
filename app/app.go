package app

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"school_library/circulation"
	"school_library/db"
	"school_library/locks"
	"school_library/metrics"
	"school_library/notify"
	"school_library/session"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// short aliases for handlers
type Ctx = gin.Context
type H = gin.H

// App bundles the service dependencies.
type App struct {
	Router *gin.Engine
	DB     *gorm.DB
	RDB    *redis.Client
	Config Config
	Stores Stores

	Resolver *circulation.Resolver
	Checkout *circulation.Coordinator
	Loans    *circulation.Lifecycle
	Catalog  *circulation.CatalogEditor
	Notifier *notify.Notifier
	Metrics  *metrics.Collector

	appSess *session.AppSessionStore
}

// Config is read from the environment.
type Config struct {
	RedisAddr   string
	RedisPwd    string
	WebOrigin   string
	SessionTTL  time.Duration
	AdminUsers  []string
	StoreDriver string // postgres | memory
	LockDriver  string // local | redis
	DevLogin    bool   // exposes /dev/login with the memory driver

	LoanDays            int
	MaxLoansPerBorrower int // 0 = unlimited
	StaffOverdue        bool
	OverdueScanInterval time.Duration
}

func (a *App) AppSessions() *session.AppSessionStore { return a.appSess }

// IsAdmin reports whether uid is listed in ADMIN_USERS.
func (c Config) IsAdmin(uid string) bool {
	for _, admin := range c.AdminUsers {
		if strings.EqualFold(admin, uid) {
			return true
		}
	}
	return false
}

func MustNew() *App {
	cfg := loadConfig()

	// --- Redis ---
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPwd, DB: 0})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis: %v", err)
	}

	// --- Record store ---
	var (
		dbConn *gorm.DB
		stores Stores
	)
	switch cfg.StoreDriver {
	case "memory":
		log.Println("using in-memory record store")
		stores = MemoryStores()
	default:
		dbConn = db.ConnectDB()
		stores = PostgresStores(dbConn)
	}

	var locker circulation.Locker = locks.NewKeyed()
	if cfg.LockDriver == "redis" {
		locker = locks.NewRedis(rdb, 0)
	}

	a := Assemble(cfg, stores, rdb, notify.NewRedisMetaStore(rdb), locker)
	a.DB = dbConn
	return a
}

// Assemble wires services and the router from already opened dependencies.
func Assemble(cfg Config, stores Stores, rdb *redis.Client, meta notify.MetaStore, locker circulation.Locker) *App {
	logger := slog.Default()
	m := metrics.New()
	opts := []circulation.Option{circulation.WithLogger(logger), circulation.WithMetrics(m)}
	ledgers := stores.Ledgers()
	resolver := circulation.NewResolver(stores.Catalog, ledgers, opts...)

	if cfg.WebOrigin == "" {
		cfg.WebOrigin = defaultWebOrigin
	}
	r := gin.Default()
	useCORS(r, cfg.WebOrigin)
	return &App{
		Router:   r,
		RDB:      rdb,
		Config:   cfg,
		Stores:   stores,
		Resolver: resolver,
		Checkout: circulation.NewCoordinator(resolver, ledgers, stores.Borrowers, locker, cfg.LoanDays, opts...),
		Loans:    circulation.NewLifecycle(ledgers, opts...),
		Catalog:  circulation.NewCatalogEditor(stores.Catalog, ledgers, locker, opts...),
		Notifier: notify.New(ledgers, stores.Catalog, meta,
			notify.WithLogger(logger), notify.WithStaffOverdue(cfg.StaffOverdue)),
		Metrics: m,
		appSess: session.NewAppSessionStore(rdb, cfg.SessionTTL),
	}
}

// StartOverdueScans keeps admin feeds' first-seen timestamps current.
func (a *App) StartOverdueScans(ctx context.Context) {
	if a.Config.OverdueScanInterval <= 0 || len(a.Config.AdminUsers) == 0 {
		return
	}
	go a.Notifier.Run(ctx, a.Config.OverdueScanInterval, func() []notify.Scope {
		scopes := make([]notify.Scope, 0, len(a.Config.AdminUsers))
		for _, uid := range a.Config.AdminUsers {
			scopes = append(scopes, notify.Scope{UserID: uid})
		}
		return scopes
	})
}

func (a *App) Close() {
	_ = a.RDB.Close()
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

func loadConfig() Config {
	get := func(k, def string) string {
		v := os.Getenv(k)
		if v == "" {
			return def
		}
		return v
	}
	getInt := func(k string, def int) int {
		if n, err := strconv.Atoi(get(k, "")); err == nil {
			return n
		}
		return def
	}
	ttlSec := get("SESSION_TTL_SECONDS", "86400")
	var ttl time.Duration = 24 * time.Hour
	if d, err := time.ParseDuration(ttlSec + "s"); err == nil {
		ttl = d
	}
	scanEvery := 15 * time.Minute
	if d, err := time.ParseDuration(get("OVERDUE_SCAN_INTERVAL", "15m")); err == nil {
		scanEvery = d
	}
	var admins []string
	for _, s := range strings.Split(os.Getenv("ADMIN_USERS"), ",") {
		if t := strings.TrimSpace(s); t != "" {
			admins = append(admins, t)
		}
	}
	return Config{
		RedisAddr:   get("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPwd:    os.Getenv("REDIS_PASSWORD"),
		WebOrigin:   get("WEB_ORIGIN", defaultWebOrigin),
		SessionTTL:  ttl,
		AdminUsers:  admins,
		StoreDriver: get("STORE_DRIVER", "postgres"),
		LockDriver:  get("LOCK_DRIVER", "local"),
		DevLogin:    get("DEV_LOGIN", "false") == "true",

		LoanDays:            getInt("LOAN_DURATION_DAYS", 14),
		MaxLoansPerBorrower: getInt("MAX_LOANS_PER_BORROWER", 0),
		StaffOverdue:        get("STAFF_OVERDUE_NOTIFICATIONS", "true") != "false",
		OverdueScanInterval: scanEvery,
	}
}
