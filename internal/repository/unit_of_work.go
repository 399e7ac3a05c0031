package repository

import (
	"context"
	"fmt"

	"golang-quant/pkg/apperror"
	"golang-quant/pkg/utils"

	"gorm.io/gorm"
)

// UnitOfWork groups the writes of one finished run, the run row and its
// latest pointer, so readers never see a pointer to a missing run.
type UnitOfWork interface {
	Run(ctx context.Context, fn func(opts ...utils.DBOption) error) error
}

type unitOfWork struct {
	db *gorm.DB
}

func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &unitOfWork{db: db}
}

// Run calls fn inside a transaction. Repositories join it through the
// utils.DBOption handed to fn. Any error or panic rolls everything back.
func (u *unitOfWork) Run(ctx context.Context, fn func(opts ...utils.DBOption) error) (err error) {
	tx := u.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return apperror.Persistence("begin transaction: %v", tx.Error)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
		if err != nil {
			if rbErr := tx.Rollback().Error; rbErr != nil {
				err = fmt.Errorf("%w (rollback: %v)", err, rbErr)
			}
			return
		}
		if commitErr := tx.Commit().Error; commitErr != nil {
			err = apperror.Persistence("commit: %v", commitErr)
		}
	}()

	return fn(utils.WithTx(tx))
}
