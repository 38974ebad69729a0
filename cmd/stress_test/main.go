package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/catalog-orders/internal/adapter/storage"
	"github.com/rl1809/catalog-orders/internal/config"
	"github.com/rl1809/catalog-orders/internal/core/domain"
	"github.com/rl1809/catalog-orders/internal/core/service"
	"github.com/rl1809/catalog-orders/internal/port"
)

const (
	initialStock  = 20
	totalRequests = 50
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var db port.DatabaseRepository
	if cfg.StorageDriver == config.DriverMySQL {
		sqlDB, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			log.Fatalf("failed to open mysql: %v", err)
		}
		defer sqlDB.Close()
		sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
		if err := sqlDB.PingContext(ctx); err != nil {
			log.Fatalf("failed to ping mysql: %v", err)
		}
		if err := storage.Migrate(ctx, sqlDB); err != nil {
			log.Fatalf("failed to migrate: %v", err)
		}
		db = storage.NewMySQLAdapter(sqlDB)
	} else {
		db = storage.NewMemoryAdapter()
	}

	admin := domain.Actor{ID: "stress-admin"}
	productService := service.NewProductService(db)
	orderService := service.NewOrderService(db, service.WithTxTimeout(cfg.TxTimeout))

	// Fresh part number per run so reruns never collide.
	product, err := productService.CreateProduct(ctx, admin, domain.ProductInput{
		PartNumber: "STRESS-" + uuid.NewString()[:8],
		Name:       "Stress Item",
		Price:      decimal.RequireFromString("9.99"),
		Active:     true,
		Stock:      initialStock,
	})
	if err != nil {
		log.Fatalf("failed to create product: %v", err)
	}

	// Counters
	var successCount atomic.Int32
	var soldOutCount atomic.Int32
	var otherCount atomic.Int32

	// Spawn concurrent requests
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(userID int) {
			defer wg.Done()

			actor := domain.Actor{ID: fmt.Sprintf("user-%d", userID)}
			_, err := orderService.CreateOrder(ctx, actor, []domain.OrderLine{{ProductID: product.ID, Quantity: 1}})
			switch {
			case err == nil:
				successCount.Add(1)
			case domain.KindOf(err) == domain.KindInsufficientStock:
				soldOutCount.Add(1)
			default:
				otherCount.Add(1)
				log.Printf("user-%d: %v", userID, err)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := successCount.Load()
	soldOut := soldOutCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Storage Driver:   %s\n", cfg.StorageDriver)
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Sold Out:         %d\n", soldOut)
	fmt.Printf("Other Errors:     %d\n", otherCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	// Assertions
	if success == initialStock && soldOut == totalRequests-initialStock {
		fmt.Printf("PASS: Exactly %d orders succeeded, %d sold out\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d sold out, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, soldOut)
	}

	// Verify final stock
	final, err := productService.GetProduct(ctx, product.ID)
	if err != nil {
		log.Fatalf("failed to reload product: %v", err)
	}
	fmt.Printf("Final Stock: %d\n", final.Stock)

	if final.Stock == 0 {
		fmt.Println("PASS: Stock depleted to 0")
	} else {
		fmt.Printf("FAIL: Expected stock 0, got %d\n", final.Stock)
	}
}
