package main

import (
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"path"
	"regexp"
	"strconv"
	"time"

	"tixgate/src/boot"
	"tixgate/src/cache"
	"tixgate/src/config"
	"tixgate/src/db"
	"tixgate/src/gateway"
	"tixgate/src/inventory"
	"tixgate/src/issuer"
	"tixgate/src/lib"
	"tixgate/src/lib/mailer"
	"tixgate/src/middlewares"
	"tixgate/src/monitoring"
	"tixgate/src/purchase"
	"tixgate/src/reconcile"

	"github.com/covalenthq/lumberjack"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	_ "github.com/joho/godotenv/autoload"
	"gorm.io/gorm"
)

const (
	apiPrefix string = "/api/v1"
)

// Shared components wired once at startup (and by the test harness).
var (
	apiCache       *cache.Cache
	apiLedger      *inventory.Ledger
	apiIssuer      *issuer.Issuer
	apiCoordinator *purchase.Coordinator
	apiReconciler  *reconcile.Reconciler
)

func initComponents(gdb *gorm.DB, gw gateway.Checkout, notifier mailer.Notifier) {
	key, err := config.ScanCodeKey()
	if err != nil {
		log.Fatalf("error reading scan code key: %s", err.Error())
	}
	apiCache = cache.New(lib.GetRedisClient())
	apiLedger = inventory.New(gdb)
	apiIssuer = issuer.New(key)
	apiCoordinator = purchase.New(gdb, apiLedger, apiIssuer, apiCache, notifier)
	apiReconciler = reconcile.New(gdb, apiCoordinator, gw)
}

var eventDateTimeValidatorFunc validator.Func = func(fl validator.FieldLevel) bool {
	date, ok := fl.Field().Interface().(string)
	datetime, err := time.Parse(config.TIME_PARSE_FORMAT, date)
	if err != nil {
		return false
	}
	if ok {
		today := time.Now()
		if today.After(datetime) {
			return false
		}
	}
	return true
}

var ltfield validator.Func = func(fl validator.FieldLevel) bool {
	date, ok := fl.Field().Interface().(string)
	datetime, err := time.Parse(config.TIME_PARSE_FORMAT, date)
	if err != nil {
		return false
	}
	field := fl.Parent().FieldByName(fl.Param())
	fieldValue := field.Interface().(string)
	fielddatetime, err := time.Parse(config.TIME_PARSE_FORMAT, fieldValue)
	if err != nil {
		return false
	}
	if ok {
		if datetime.After(fielddatetime) {
			return false
		}
	}
	return true
}

func registerValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("bookabledate", eventDateTimeValidatorFunc)
		v.RegisterValidation("ltdate", ltfield)
	}
}

func setupRouter() *gin.Engine {
	router := gin.Default()
	router.Use(middlewares.SecureHeaders)
	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, "ok")
	})
	router.GET("/healthz", func(ctx *gin.Context) {
		gdb := db.GetDb()
		sqlDB, err := gdb.DB()
		if err != nil || sqlDB.Ping() != nil {
			ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", monitoring.Handler())
	return router
}

func maintenanceModeMiddleware(g *gin.Engine) *gin.Engine {
	g.Use(func(ctx *gin.Context) {
		mm := os.Getenv("MAINTENANCE_MODE")
		atoi, err := strconv.ParseBool(mm)
		if err == nil && atoi {
			err := errors.New("server is under maintenance")
			log.Println(err.Error())
			ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, err.Error())
			return
		}
	})
	return g
}

func apiv1Group(g *gin.Engine) *gin.RouterGroup {
	apiv1 := g.Group(apiPrefix)
	return apiv1
}

func publicRoutes(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	eventReadHandlers(apiv1)
	return apiv1
}

func registerRoutes(router *gin.Engine) {
	publicRoutes(router)
	stripeWebhookRoute(router)

	authorized := router.Group(apiPrefix)
	authorized.Use(middlewares.AuthMiddleware)
	{
		purchaseHandlers(authorized)
		checkoutHandlers(authorized)
		ticketHandlers(authorized)
	}

	admin := router.Group(apiPrefix)
	admin.Use(middlewares.AuthMiddleware, middlewares.AdminMiddleware)
	{
		eventHandlers(admin)
		admissionHandlers(admin)
	}
}

func initLogger() {
	cwd, _ := os.Getwd()
	serverLogs := path.Join(cwd, "logs", "server.log")
	apiLogs := path.Join(cwd, "logs", "api.log")
	gin.ForceConsoleColor()

	f, _ := os.Create(apiLogs)
	gin.DefaultWriter = io.MultiWriter(f, os.Stdout)
	log.SetOutput(&lumberjack.Logger{
		Filename:   serverLogs,
		MaxSize:    500,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
	})
}

func main() {
	apiEnv := os.Getenv("API_ENV")
	if apiEnv == "local" {
		cwd, _ := os.Getwd()
		if err := godotenv.Load(path.Join(cwd, ".env")); err != nil {
			panic(err)
		}
	}
	initLogger()

	gdb := boot.InitDb()
	initComponents(
		gdb,
		gateway.NewStripeCheckout(lib.GetStripeClient()),
		mailer.NewSMTPNotifier(),
	)
	boot.InitScheduler(apiReconciler)
	defer boot.StopScheduler()

	router := setupRouter()

	appHost := os.Getenv("APP_HOST")
	if apiEnv == "local" {
		router.Use(cors.Default())
	} else {
		cc := cors.DefaultConfig()
		cc.AllowMethods = append(cc.AllowMethods, "GET", "POST", "PATCH", "PUT", "DELETE", "HEAD")
		cc.AllowHeaders = append(cc.AllowHeaders, "Origin", "Authorization", "x-secret")
		cc.AllowOriginFunc = func(origin string) bool {
			match, _ := regexp.MatchString(appHost, origin)
			if match {
				return true
			}
			match, _ = regexp.MatchString("app:mobile", origin)
			return match
		}
		cc.AllowCredentials = true
		cc.AllowAllOrigins = false
		router.Use(cors.New(cc))
	}

	registerValidators()

	router = maintenanceModeMiddleware(router)

	registerRoutes(router)

	if err := router.Run(":9090"); err != nil {
		log.Fatalf("error starting server: %s", err.Error())
	}
}
