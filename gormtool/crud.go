// gormtool\crud.go
package gormtool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/studieren/recipe_back/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound 记录不存在, 或属于其他用户
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate 同一用户下名称重复
	ErrDuplicate = errors.New("record already exists")
)

// 鉴权动作
const (
	ActionRead   = "read"
	ActionWrite  = "write"
	ActionDelete = "delete"
)

// Authorizer 判断 subject 能否对 owner 的记录执行 action
type Authorizer interface {
	Authorize(subject, owner uint, action string) error
}

// QueryCondition 查询条件结构
type QueryCondition struct {
	Field    string      `json:"field"`
	Operator string      `json:"operator"` // =, !=, >, <, >=, <=, LIKE, IN, NOT IN
	Value    interface{} `json:"value"`
}

// SortCondition 排序条件
type SortCondition struct {
	Field     string `json:"field"`
	Direction string `json:"direction"` // ASC, DESC
}

// QueryBuilder 查询构建器
type QueryBuilder struct {
	Conditions []QueryCondition `json:"conditions"`
	Sorts      []SortCondition  `json:"sorts"`
	Preloads   []string         `json:"preloads"`
}

// CRUDTool 按用户隔离的 CRUD 工具
type CRUDTool struct {
	DB          *gorm.DB
	RedisClient *redis.Client
	Authz       Authorizer
	Logger      Logger
	EnableLog   bool
}

// NewCRUDTool 创建新的 CRUD 工具; redisClient 可以为 nil
func NewCRUDTool(db *gorm.DB, redisClient *redis.Client, authz Authorizer, logger Logger) *CRUDTool {
	if logger == nil {
		logger = NewDefaultLogger()
	}

	return &CRUDTool{
		DB:          db,
		RedisClient: redisClient,
		Authz:       authz,
		Logger:      logger,
		EnableLog:   true,
	}
}

// LogOperation 记录操作日志
//
//	t.LogOperation(ctx, "delete", &models.Tag{}, time.Since(start), err, map[string]interface{}{
//		"id": id,
//	})
func (t *CRUDTool) LogOperation(ctx context.Context, operation string, model interface{}, duration time.Duration, err error, additionalFields map[string]interface{}) {
	if !t.EnableLog {
		return
	}

	fields := map[string]interface{}{
		"operation": operation,
		"duration":  duration.String(),
		"model":     fmt.Sprintf("%T", model),
	}

	if err != nil {
		fields["error"] = err.Error()
	}

	for k, v := range additionalFields {
		fields[k] = v
	}

	switch {
	case err == nil:
		t.Logger.Info(ctx, "operation succeeded", fields)
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrDuplicate):
		t.Logger.Warn(ctx, "operation rejected", fields)
	default:
		t.Logger.Error(ctx, "operation failed", fields)
	}
}

// 事务相关方法
type TxFunc func(tx *gorm.DB) error

// WithTransaction 执行事务
func (t *CRUDTool) WithTransaction(ctx context.Context, fn TxFunc) error {
	return t.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(tx)
	})
}

// Owned 返回只包含 userID 所属记录的查询
func (t *CRUDTool) Owned(ctx context.Context, userID uint) *gorm.DB {
	return OwnedBy(t.DB.WithContext(ctx), userID)
}

// OwnedBy 把 db 或事务限定在 userID 的记录上
func OwnedBy(db *gorm.DB, userID uint) *gorm.DB {
	return db.Where(clause.Eq{
		Column: clause.Column{Table: clause.CurrentTable, Name: "user_id"},
		Value:  userID,
	})
}

// Authorize 显式的所有权检查; 拒绝时按不存在处理, 不泄露记录是否存在
func (t *CRUDTool) Authorize(userID uint, record models.Owned, action string) error {
	if t.Authz == nil {
		if record.OwnerID() != userID {
			return ErrNotFound
		}
		return nil
	}
	if err := t.Authz.Authorize(userID, record.OwnerID(), action); err != nil {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return nil
}

// 查询构建器方法
func (t *CRUDTool) BuildQuery(db *gorm.DB, qb *QueryBuilder) *gorm.DB {
	if qb == nil {
		return db
	}

	for _, cond := range qb.Conditions {
		switch cond.Operator {
		case "=", "!=", ">", "<", ">=", "<=":
			db = db.Where(fmt.Sprintf("%s %s ?", cond.Field, cond.Operator), cond.Value)
		case "LIKE":
			db = db.Where(fmt.Sprintf("%s LIKE ?", cond.Field), "%"+fmt.Sprint(cond.Value)+"%")
		case "IN", "NOT IN":
			// 子查询需要括号, 切片会被 gorm 自动加上括号
			if _, ok := cond.Value.(*gorm.DB); ok {
				db = db.Where(fmt.Sprintf("%s %s (?)", cond.Field, cond.Operator), cond.Value)
			} else {
				db = db.Where(fmt.Sprintf("%s %s ?", cond.Field, cond.Operator), cond.Value)
			}
		}
	}

	for _, sort := range qb.Sorts {
		db = db.Order(fmt.Sprintf("%s %s", sort.Field, sort.Direction))
	}

	for _, preload := range qb.Preloads {
		db = db.Preload(preload, orderByID)
	}

	return db
}

// 关联记录按插入顺序返回
func orderByID(db *gorm.DB) *gorm.DB {
	return db.Order(clause.OrderByColumn{Column: clause.Column{Table: clause.CurrentTable, Name: "id"}})
}

// FindOwned 根据ID查询单条属于 userID 的记录
func (t *CRUDTool) FindOwned(ctx context.Context, userID uint, action string, model models.Owned, id uint, preloads ...string) error {
	start := time.Now()
	var err error

	defer func() {
		t.LogOperation(ctx, "find_owned", model, time.Since(start), err, map[string]interface{}{
			"id":      id,
			"user_id": userID,
		})
	}()

	db := t.BuildQuery(t.Owned(ctx, userID), &QueryBuilder{Preloads: preloads})
	if err = db.First(model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = ErrNotFound
		}
		return err
	}

	err = t.Authorize(userID, model, action)
	return err
}

// ListOwned 查询 userID 的全部记录; page 不为 nil 时分页并回填 Total
func (t *CRUDTool) ListOwned(ctx context.Context, userID uint, records interface{}, qb *QueryBuilder, page *Pagination) error {
	start := time.Now()
	var err error

	defer func() {
		t.LogOperation(ctx, "list_owned", records, time.Since(start), err, map[string]interface{}{
			"user_id":   userID,
			"paginated": page != nil,
		})
	}()

	db := t.BuildQuery(t.Owned(ctx, userID), qb)

	if page != nil {
		// 计数只需要条件, 不需要排序和预加载
		var conds []QueryCondition
		if qb != nil {
			conds = qb.Conditions
		}
		var total int64
		countDB := t.BuildQuery(t.Owned(ctx, userID), &QueryBuilder{Conditions: conds})
		if err = countDB.Model(records).Count(&total).Error; err != nil {
			return err
		}
		page.Total = int(total)
		db = db.Limit(page.PageSize).Offset(page.Offset())
	}

	err = db.Find(records).Error
	return err
}

// DeleteOwned 硬删除 userID 的记录, 先清除 joinTables 中引用它的行
func (t *CRUDTool) DeleteOwned(ctx context.Context, userID uint, model models.Owned, id uint, joins ...JoinRef) error {
	start := time.Now()
	var err error

	defer func() {
		t.LogOperation(ctx, "delete_owned", model, time.Since(start), err, map[string]interface{}{
			"id":      id,
			"user_id": userID,
		})
	}()

	err = t.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := OwnedBy(tx, userID).First(model, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := t.Authorize(userID, model, ActionDelete); err != nil {
			return err
		}
		for _, j := range joins {
			if err := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE %s = ?", j.Table, j.Column), id).Error; err != nil {
				return err
			}
		}
		result := tx.Delete(model, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	return err
}

// JoinRef 指向多对多关联表里引用某条记录的列
type JoinRef struct {
	Table  string
	Column string
}

// TranslateError 把 gorm 错误映射为本包的哨兵错误
func TranslateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return err
	}
}
