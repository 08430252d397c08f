package main

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-records/internal/app"
	"github.com/odyssey-erp/odyssey-records/internal/platform/db"
	"github.com/odyssey-erp/odyssey-records/internal/records"
	"github.com/odyssey-erp/odyssey-records/migrations"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	ctx := context.Background()
	pool, err := db.New(ctx, db.Options{DSN: cfg.DSN(), MaxConns: 2, MinConns: 1})
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool, migrations.Files); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}

	err = db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		return seed(ctx, &seeder{gateway: records.NewGateway(tx, nil, nil)})
	})
	if err != nil {
		log.Fatalf("seed: %v", err)
	}

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

// seed inserts the demo rows inside the caller's transaction.
func seed(ctx context.Context, s *seeder) error {
	today := time.Now().Format(time.DateOnly)

	fmt.Println("→ Seeding employees...")
	if _, err := s.add(ctx, "employee",
		map[string]string{"name": "Alice Hartono", "email": "alice@example.com", "phone_no": "0811000001", "position": "Manager", "salary": "9500", "join_date": "2021-02-01"},
		map[string]string{"name": "Budi Santoso", "email": "budi@example.com", "phone_no": "0811000002", "position": "Clerk", "salary": "4200.5", "join_date": "2023-07-15"},
	); err != nil {
		return err
	}

	fmt.Println("→ Seeding suppliers...")
	if _, err := s.add(ctx, "supplier",
		map[string]string{"supp_name": "Acme Supplies", "email": "sales@acme.test", "phone_no": "021555010", "address": "Jl. Sudirman 1, Jakarta"},
	); err != nil {
		return err
	}

	fmt.Println("→ Seeding customers and products...")
	customer, err := s.add(ctx, "customer",
		map[string]string{"name": "Citra Lestari", "email": "citra@example.com", "phone_no": "0812000003"},
	)
	if err != nil {
		return err
	}
	product, err := s.add(ctx, "product",
		map[string]string{"product_name": "Printer Paper A4", "category": "Stationery", "price": "55000", "exp_date": ""},
	)
	if err != nil {
		return err
	}

	fmt.Println("→ Seeding orders...")
	order, err := s.add(ctx, "orders",
		map[string]string{"order_date": today, "total_amount": "110000", "cus_id": customer},
	)
	if err != nil {
		return err
	}
	if _, err := s.add(ctx, "order_item",
		map[string]string{"order_id": order, "prod_id": product, "quantity": strconv.Itoa(2), "price": "55000"},
	); err != nil {
		return err
	}
	_, err = s.add(ctx, "payment",
		map[string]string{"payment_method": "transfer", "amount": "110000", "payment_date": today, "order_id": order},
	)
	return err
}

type seeder struct {
	gateway *records.Gateway
}

// add inserts every form into the table and returns the identity of the last row.
func (s *seeder) add(ctx context.Context, name string, forms ...map[string]string) (string, error) {
	table, err := records.LookupTable(name)
	if err != nil {
		return "", fmt.Errorf("seed %s: %w", name, err)
	}
	var rs records.RowSet
	for _, form := range forms {
		rs, err = s.gateway.Handle(ctx, table, records.ActionAdd, form)
		if err != nil {
			return "", fmt.Errorf("seed %s: %w", name, err)
		}
	}
	if rs.Len() == 0 {
		return "", fmt.Errorf("seed %s: no rows after insert", name)
	}
	return rs.Rows[rs.Len()-1].ID(), nil
}
