package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/trashio/trashio-api/api"
	"github.com/trashio/trashio-api/api/scheduler"
	"github.com/trashio/trashio-api/auth"
	"github.com/trashio/trashio-api/config"
	"github.com/trashio/trashio-api/databases"
	"github.com/trashio/trashio-api/lifecycle"
	"github.com/trashio/trashio-api/models"
)

// reportLockTTL outlives the store timeout of a single command
const reportLockTTL = 30 * time.Second

// App stores the router and db connection, so it can be reused
type App struct {
	Router    *mux.Router
	Config    config.Config
	Reports   databases.ReportDatabase
	Users     databases.UserDatabase
	Locker    lifecycle.Locker
	Scheduler *scheduler.Scheduler
	client    databases.ClientHelper
	dbHelper  databases.DatabaseHelper
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	if a.Locker == nil {
		a.Locker = lifecycle.NewMemLocker()
	}
	tokens := auth.NewTokens(a.Config.JWTSecret, a.Config.AccessTokenTTL)
	resolver := auth.NewSessionResolver(tokens, a.Users, a.Config.IdentityLookupTimeout)
	d := a.dispatcher()
	authn := api.Authenticate(resolver)

	u := User{DB: a.Users, Tokens: tokens}
	re := Report{D: d}
	c := Cleaner{D: d}
	adm := Admin{D: d, Users: u}

	r := mux.NewRouter()

	// healthchex
	r.HandleFunc("/health", a.healthCheckHandler).Methods("GET")

	apiCreate := r.PathPrefix("/api/v1").Subrouter()

	apiCreate.HandleFunc("/auth/register", u.RegisterHandler).Methods("POST")
	apiCreate.HandleFunc("/auth/login", u.LoginHandler).Methods("POST")
	apiCreate.Handle("/users/me", authn(http.HandlerFunc(u.MeHandler))).Methods("GET")

	apiCreate.Handle("/reports", authn(http.HandlerFunc(re.CreateReportHandler))).Methods("POST")
	apiCreate.Handle("/reports/my", authn(http.HandlerFunc(re.MyReportsHandler))).Methods("GET")
	apiCreate.Handle("/reports/{report_id}", authn(http.HandlerFunc(re.ReportByIDHandler))).Methods("GET")

	apiCreate.Handle("/cleaner/reports", authn(http.HandlerFunc(c.AssignedReportsHandler))).Methods("GET")
	apiCreate.Handle("/cleaner/reports/{report_id}/upload-after", authn(http.HandlerFunc(c.UploadAfterHandler))).Methods("POST")

	apiCreate.Handle("/admin/reports", authn(http.HandlerFunc(adm.ReportsHandler))).Methods("GET")
	apiCreate.Handle("/admin/cleaners", authn(http.HandlerFunc(adm.CleanersHandler))).Methods("GET")
	apiCreate.Handle("/admin/users", authn(http.HandlerFunc(adm.CreateUserHandler))).Methods("POST")
	apiCreate.Handle("/admin/reports/{report_id}/verify", authn(http.HandlerFunc(adm.VerifyHandler))).Methods("POST")
	apiCreate.Handle("/admin/reports/{report_id}/assign", authn(http.HandlerFunc(adm.AssignHandler))).Methods("POST")
	apiCreate.Handle("/admin/reports/{report_id}/verify-cleaning", authn(http.HandlerFunc(adm.VerifyCleaningHandler))).Methods("POST")
	apiCreate.Handle("/admin/reports/{report_id}/finalize", authn(http.HandlerFunc(adm.FinalizeHandler))).Methods("POST")
	apiCreate.Handle("/admin/reports/{report_id}/status", authn(http.HandlerFunc(adm.UpdateStatusHandler))).Methods("PATCH")
	apiCreate.Handle("/admin/reports/{report_id}", authn(http.HandlerFunc(adm.DeleteReportHandler))).Methods("DELETE")

	return r
}

func (a *App) dispatcher() *lifecycle.Dispatcher {
	d := lifecycle.NewDispatcher(a.Reports, a.Users, a.Locker)
	if a.Config.StoreTimeout > 0 {
		d.StoreTimeout = a.Config.StoreTimeout
	}
	return d
}

// Initialize is invoked by main to connect with the database, pick the
// report lock and create a router
func (a *App) Initialize() error {
	client, err := databases.NewClient(&a.Config)
	if err != nil {
		zap.S().Errorw("failed to create mongo client", "error", err)
		return err
	}

	ctx, cancel := api.AccountQueryContext(context.Background())
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		zap.S().Errorw("failed to connect to the database", "error", err)
		return err
	}
	zap.S().Info("trashio-api has connected to the database")

	a.client = client
	a.dbHelper = databases.NewDatabase(&a.Config, client)
	a.Reports = databases.NewReportDatabase(a.dbHelper)
	a.Users = databases.NewUserDatabase(a.dbHelper)

	if err := a.Reports.EnsureIndexes(ctx); err != nil {
		zap.S().Errorw("failed to create report indexes", "error", err)
		return err
	}
	if err := a.Users.EnsureIndexes(ctx); err != nil {
		zap.S().Errorw("failed to create user indexes", "error", err)
		return err
	}

	a.Locker = lifecycle.NewMemLocker()
	if a.Config.RedisURL != "" {
		locker, err := lifecycle.NewRedisLocker(a.Config.RedisURL, reportLockTTL)
		if err != nil {
			zap.S().Errorw("failed to connect to redis", "error", err)
			return err
		}
		a.Locker = locker
		zap.S().Info("report locks are held in redis")
	}

	if a.Config.RequestTimeout > 0 && a.Config.RequestTimeout <= a.Config.StoreTimeout {
		zap.S().Warnw("request timeout leaves no room for the store timeout, every command will fail",
			"requestTimeout", a.Config.RequestTimeout,
			"storeTimeout", a.Config.StoreTimeout)
	}

	a.Scheduler = scheduler.NewScheduler(
		a.dispatcher(),
		a.Locker,
		a.Config.FinalizeSchedule,
	)
	a.Router = a.New()
	return nil
}

// Close disconnects from the database and redis
func (a *App) Close(ctx context.Context) {
	if rl, ok := a.Locker.(*lifecycle.RedisLocker); ok {
		if err := rl.Close(); err != nil {
			zap.S().Warnw("failed to close redis client", "error", err)
		}
	}
	if a.client != nil {
		if err := a.client.Disconnect(ctx); err != nil {
			zap.S().Warnw("failed to disconnect from the database", "error", err)
		}
	}
}

func (a *App) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if a.client == nil {
		writeJSON(w, http.StatusOK, models.HealthCheckResponse{Alive: true})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.client.Ping(ctx); err != nil {
		zap.S().Warnw("health check database ping failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, models.HealthCheckResponse{Alive: true, Database: "unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, models.HealthCheckResponse{Alive: true, Database: "ok"})
}
