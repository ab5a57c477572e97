package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/campfield/ticketoffice/internal/basket"
	"github.com/campfield/ticketoffice/internal/config"
	"github.com/campfield/ticketoffice/internal/database"
	"github.com/campfield/ticketoffice/internal/handler"
	"github.com/campfield/ticketoffice/internal/queue"
	"github.com/campfield/ticketoffice/internal/repository"
	"github.com/campfield/ticketoffice/internal/router"
	"github.com/campfield/ticketoffice/internal/service"
	"github.com/campfield/ticketoffice/internal/tasks"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(context.Background(), db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Fatal("redis: connection failed; checkout sessions need Redis")
	}
	sessions := basket.NewStore(rdb, time.Duration(cfg.SessionTTLHours)*time.Hour)

	users := repository.NewUserRepo(db)
	types := repository.NewTicketTypeRepo(db)
	tickets := repository.NewTicketRepo(db)
	attribs := repository.NewAttribRepo(db)
	purchases := repository.NewPurchaseRepo(db)
	payments := repository.NewPaymentRepo(db)
	taskResults := repository.NewTaskResultRepo(db)

	notifier := service.AMQPNotifier{}
	checkout := service.NewCheckoutService(sessions, types, users, purchases, notifier,
		service.CheckoutConfig{
			ExpiryDaysTransfer:     cfg.ExpiryDaysTransfer,
			ExpiryDaysTransferEuro: cfg.ExpiryDaysTransferEuro,
			BcryptCost:             cfg.BcryptCost,
		})
	receipts := service.NewReceiptService(tickets,
		service.NewPDFRasterizer(cfg.CheckinBase), cfg.CheckinBase, cfg.ReceiptBaseURL)
	transfers := service.NewTransferService(tickets, attribs, users, notifier, cfg.BcryptCost)

	go func() {
		if err := queue.StartNotificationConsumer(); err != nil {
			log.Printf("notify-consumer: %v", err)
		}
	}()
	go tasks.NewReaper(tickets, taskResults, 10*time.Minute).Run(context.Background())

	e := echo.New()
	router.Register(e, router.Handlers{
		Auth:     handler.NewAuthHandler(cfg, users),
		Basket:   handler.NewBasketHandler(sessions, types, checkout),
		Tickets:  handler.NewTicketHandler(types, tickets, sessions),
		Checkout: handler.NewCheckoutHandler(checkout),
		Receipt:  handler.NewReceiptHandler(receipts),
		Transfer: handler.NewTransferHandler(transfers),
		Payment:  handler.NewPaymentHandler(payments),
		Tasks:    handler.NewTaskHandler(taskResults),
	}, cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
