//go:build integration

package infrastructure_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"flashdeal/internal/pkg/database"
	"flashdeal/internal/pkg/testutil"
	"flashdeal/internal/service/voucher/domain"
	"flashdeal/internal/service/voucher/infrastructure"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

func openMySQL(t *testing.T) *gorm.DB {
	t.Helper()
	addr := testutil.StartContainer(t, testcontainers.ContainerRequest{
		Image:        "mysql:8.0",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": "root",
			"MYSQL_DATABASE":      "hmdp",
		},
		WaitingFor: wait.ForLog("port: 3306  MySQL Community Server").WithStartupTimeout(120 * time.Second),
	}, "3306/tcp", 150*time.Second)

	db, err := database.OpenMySQL(database.Options{
		DSN:          fmt.Sprintf("root:root@tcp(%s)/hmdp?charset=utf8mb4&parseTime=True&loc=Local", addr),
		MaxOpenConns: 20,
	}, infrastructure.Models()...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func TestGormRepositories(t *testing.T) {
	db := openMySQL(t)
	ctx := context.Background()
	vouchers := infrastructure.NewGormVoucherRepository(db)
	orders := infrastructure.NewGormOrderStore(db)

	v := &domain.Voucher{
		ShopID:    1,
		Title:     "100元代金券",
		Type:      domain.VoucherTypeSeckill,
		Stock:     5,
		BeginTime: time.Now().Add(-time.Hour).Truncate(time.Second),
		EndTime:   time.Now().Add(time.Hour).Truncate(time.Second),
	}
	require.NoError(t, vouchers.CreateSeckill(ctx, v))
	require.Positive(t, v.ID)

	t.Run("find with seckill info", func(t *testing.T) {
		got, err := vouchers.FindByID(ctx, v.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, got.Stock)
		assert.True(t, got.IsSeckill())

		_, err = vouchers.FindByID(ctx, 999999)
		require.ErrorIs(t, err, domain.ErrVoucherNotFound)

		list, err := vouchers.ListSeckill(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
	})

	t.Run("duplicate insert maps to order exists", func(t *testing.T) {
		order := &domain.VoucherOrder{ID: 1001, UserID: 7, VoucherID: v.ID, PayType: 1, Status: domain.OrderStatusUnpaid}
		require.NoError(t, orders.WithinTx(ctx, func(tx domain.OrderTx) error {
			return tx.Insert(ctx, order)
		}))

		replay := *order
		replay.ID = 1002
		err := orders.WithinTx(ctx, func(tx domain.OrderTx) error {
			return tx.Insert(ctx, &replay)
		})
		require.ErrorIs(t, err, domain.ErrOrderExists)
	})

	t.Run("guarded decrement never oversells", func(t *testing.T) {
		var decremented atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = orders.WithinTx(ctx, func(tx domain.OrderTx) error {
					ok, err := tx.DecrementStock(ctx, v.ID)
					if err != nil {
						return err
					}
					if ok {
						decremented.Add(1)
					}
					return nil
				})
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(5), decremented.Load())
		got, err := vouchers.FindByID(ctx, v.ID)
		require.NoError(t, err)
		assert.Zero(t, got.Stock)
	})
}
