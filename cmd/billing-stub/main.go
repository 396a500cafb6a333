package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mikelcalvo/billing-cli/internal/billingtest"
	"github.com/shopspring/decimal"
)

func main() {
	addr := flag.String("addr", "localhost:8000", "listen address")
	seed := flag.Bool("seed", true, "start with sample data")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("service", "billing-stub")

	backend := billingtest.New()
	if *seed {
		seedData(backend)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Mount("/", backend)

	srv := &http.Server{Addr: *addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving fake billing API", "url", "http://"+*addr+"/api/")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func seedData(s *billingtest.Server) {
	para := s.AddMedicine("Paracetamol 500mg", "2.50", 120)
	amox := s.AddMedicine("Amoxicillin 250mg", "8.75", 6)
	s.AddMedicine("Cetirizine 10mg", "1.20", 0)
	s.AddMedicine("Omeprazole 20mg", "4.10", 45)

	asha := s.AddCustomer("Asha Verma", "9876543210")
	s.AddCustomer("Rahul Mehta", "9123456780")

	s.AddInvoice(asha, "22.50",
		billingtest.Item{Medicine: para, Quantity: 2, Price: decimal.RequireFromString("2.50")},
		billingtest.Item{Medicine: amox, Quantity: 2, Price: decimal.RequireFromString("8.75")},
	)
}
