package dbutil

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sync"

	"github.com/pressly/goose/v3"
)

// goose 的 BaseFS/Dialect 是包级全局状态，迁移需串行执行
var gooseMu sync.Mutex

// RunMigrations 使用 goose 执行 fsys 根目录下的全部迁移脚本
func RunMigrations(ctx context.Context, db *sql.DB, gooseDialect string, fsys fs.FS) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(gooseDialect); err != nil {
		return fmt.Errorf("goose set dialect %s: %w", gooseDialect, err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}
