// Package repo 实现库存账本的数据访问层，负责与数据库的交互。
// 仓储模式（Repository Pattern）将数据访问逻辑与业务逻辑分离，
// 使得业务逻辑不依赖于具体的数据存储实现。
package repo

import (
	"context"
	"database/sql"
	"fmt"
)

// Queryer 抽象 *sql.DB 和 *sql.Tx 的公共查询能力。
// 仓储基于 Queryer 构建，同一套仓储代码既能直接跑在连接池上，
// 也能绑定到调用方的事务句柄里，由调用方决定事务边界。
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repositories 聚合一组绑定到同一个 Queryer 的仓储。
// 在事务内获得的 Repositories，其全部读写都在该事务中执行。
type Repositories struct {
	StockLevels  StockLevelRepository
	Movements    MovementRepository
	Transactions TransactionRepository
	Reservations ReservationRepository
	Adjustments  AdjustmentRepository
	Batches      BatchRepository
	Products     ProductRepository
	Locations    LocationRepository
}

// NewRepositories 基于给定的 Queryer 构建仓储集合
func NewRepositories(q Queryer) *Repositories {
	return &Repositories{
		StockLevels:  NewStockLevelRepository(q),
		Movements:    NewMovementRepository(q),
		Transactions: NewTransactionRepository(q),
		Reservations: NewReservationRepository(q),
		Adjustments:  NewAdjustmentRepository(q),
		Batches:      NewBatchRepository(q),
		Products:     NewProductRepository(q),
		Locations:    NewLocationRepository(q),
	}
}

// TxRunner 在一个数据库事务内执行函数。
// fn 返回错误时整个事务回滚，成功时提交；嵌套的业务操作
// （例如调整工作流内部调用库存管理器）复用同一个事务句柄。
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(r *Repositories) error) error
	Repos() *Repositories
}

// UnitOfWork 是 TxRunner 的数据库实现
type UnitOfWork struct {
	db             *sql.DB
	repos          *Repositories
	levelDecorator func(StockLevelRepository) StockLevelRepository
}

// NewUnitOfWork 创建工作单元
func NewUnitOfWork(db *sql.DB) *UnitOfWork {
	u := &UnitOfWork{db: db}
	u.repos = u.buildRepos(db)
	return u
}

// WithStockLevelDecorator 为库存行仓储安装装饰器（例如读缓存）。
// 事务内的仓储同样会被装饰，写入路径的缓存失效才会生效。
func (u *UnitOfWork) WithStockLevelDecorator(d func(StockLevelRepository) StockLevelRepository) *UnitOfWork {
	u.levelDecorator = d
	u.repos = u.buildRepos(u.db)
	return u
}

func (u *UnitOfWork) buildRepos(q Queryer) *Repositories {
	r := NewRepositories(q)
	if u.levelDecorator != nil {
		r.StockLevels = u.levelDecorator(r.StockLevels)
	}
	return r
}

// Repos 返回非事务的仓储集合（用于只读路径）
func (u *UnitOfWork) Repos() *Repositories {
	return u.repos
}

// WithinTx 开启事务并在其中执行 fn。
// panic 和错误都会导致回滚，保证不会留下半提交的写入。
func (u *UnitOfWork) WithinTx(ctx context.Context, fn func(r *Repositories) error) error {
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(u.buildRepos(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return fmt.Errorf("rollback (after %v): %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
