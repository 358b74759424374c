package provider

import (
	"github.com/dukani-next/internal/authz"
	"github.com/dukani-next/internal/cache"
	"github.com/dukani-next/internal/config"
	"github.com/dukani-next/internal/delivery"
	"github.com/dukani-next/internal/logger"
	"github.com/dukani-next/internal/models"
	"github.com/dukani-next/internal/queue"
	"github.com/dukani-next/internal/repository"
	"github.com/dukani-next/internal/service"

	"gorm.io/gorm"
)

// Container wires repositories and services shared by the API and the worker
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client
	Locations   *delivery.Dataset

	// Repositories
	AdminRepo           repository.AdminRepository
	OrderRepo           repository.OrderRepository
	ProductRepo         repository.ProductRepository
	SettingRepo         repository.SettingRepository
	NotificationLogRepo repository.NotificationLogRepository
	DashboardRepo       repository.DashboardRepository
	AuthzAuditLogRepo   repository.AuthzAuditLogRepository

	// Services
	AuthzService        *authz.Service
	AuthService         *service.AuthService
	SettingService      *service.SettingService
	EmailService        *service.EmailService
	CaptchaService      *service.CaptchaService
	ProductService      *service.ProductService
	OrderService        *service.OrderService
	PaymentService      *service.PaymentService
	NotificationService *service.NotificationService
	DashboardService    *service.DashboardService
	AuthzAuditService   *service.AuthzAuditService
}

// NewContainer connects redis and the queue client, then builds everything on models.DB
func NewContainer(cfg *config.Config) *Container {
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	queueClient, err := queue.NewClient(&cfg.Queue)
	if err != nil {
		logger.Errorw("provider_init_queue_client_failed", "error", err)
		queueClient, _ = queue.NewClient(nil)
	}

	locations, err := delivery.Load(cfg.Delivery.LocationsFile)
	if err != nil {
		logger.Errorw("provider_load_locations_failed", "file", cfg.Delivery.LocationsFile, "error", err)
		panic(err)
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
		Locations:   locations,
	}
	c.initRepositories(models.DB)
	c.initServices(models.DB)
	return c
}

func (c *Container) initRepositories(db *gorm.DB) {
	c.AdminRepo = repository.NewAdminRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
	c.ProductRepo = repository.NewProductRepository(db)
	c.SettingRepo = repository.NewSettingRepository(db)
	c.NotificationLogRepo = repository.NewNotificationLogRepository(db)
	c.DashboardRepo = repository.NewDashboardRepository(db)
	c.AuthzAuditLogRepo = repository.NewAuthzAuditLogRepository(db)
}

func (c *Container) initServices(db *gorm.DB) {
	authzService, err := authz.NewService(db)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		panic(err)
	}

	numbers, err := service.NewOrderNumberGenerator(c.Config.Snowflake.Node)
	if err != nil {
		logger.Errorw("provider_init_order_numbers_failed", "node", c.Config.Snowflake.Node, "error", err)
		panic(err)
	}

	c.SettingService = service.NewSettingService(c.SettingRepo, c.Config)
	c.EmailService = service.NewEmailService(c.SettingService, c.Config.Email)
	c.CaptchaService = service.NewCaptchaService(c.Config.Captcha)
	c.AuthService = service.NewAuthService(c.Config, c.AdminRepo)
	c.ProductService = service.NewProductService(c.ProductRepo)
	c.NotificationService = service.NewNotificationService(c.SettingService, c.EmailService, c.QueueClient, c.OrderRepo, c.NotificationLogRepo)
	c.OrderService = service.NewOrderService(c.OrderRepo, c.ProductRepo, c.SettingService, c.NotificationService, numbers, c.Locations)
	c.PaymentService = service.NewPaymentService(c.OrderRepo, c.SettingService, c.QueueClient, c.NotificationService, c.Config.Order)
	c.DashboardService = service.NewDashboardService(c.DashboardRepo, c.SettingService)
	c.AuthzAuditService = service.NewAuthzAuditService(c.AuthzAuditLogRepo)
}

// Close releases the queue client
func (c *Container) Close() {
	if c == nil || c.QueueClient == nil {
		return
	}
	if err := c.QueueClient.Close(); err != nil {
		logger.Warnw("provider_close_queue_client_failed", "error", err)
	}
}
