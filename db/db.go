package db

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"vault/config"
	"vault/logs"

	"github.com/dgraph-io/badger/v2"
)

// slot 发号器的 key
var slotSeqKey = []byte("meta:slot_seq")

// ErrClosed 数据库已关闭
var ErrClosed = errors.New("database is not initialized or closed")

// Manager 封装 BadgerDB 的管理器
type Manager struct {
	Db     *badger.DB
	mu     sync.RWMutex
	seq    *badger.Sequence // slot 自增发号器
	Logger logs.Logger
	cfg    *config.Config
}

// NewManager 创建一个新的 DBManager 实例
func NewManager(path string, logger logs.Logger) (*Manager, error) {
	cfg := config.DefaultConfig()
	cfg.Database.Path = path
	return NewManagerWithConfig(logger, cfg)
}

// NewInMemoryManager 纯内存实例，测试和演示节点用
func NewInMemoryManager(logger logs.Logger) (*Manager, error) {
	cfg := config.DefaultConfig()
	cfg.Database.InMemory = true
	return NewManagerWithConfig(logger, cfg)
}

// NewManagerWithConfig 按配置打开 BadgerDB
func NewManagerWithConfig(logger logs.Logger, cfg *config.Config) (*Manager, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = logs.NewNodeLogger("db", 200)
	}

	var opts badger.Options
	if cfg.Database.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		// badger v2 不自动创建父目录，需要手动创建
		if err := os.MkdirAll(cfg.Database.Path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create db dir: %w", err)
		}
		opts = badger.DefaultOptions(cfg.Database.Path)
		opts.ValueLogFileSize = cfg.Database.ValueLogFileSize
		opts.SyncWrites = cfg.Database.SyncWrites
	}
	opts = opts.WithLogger(&badgerLogger{l: logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	// 一次预取 100 个号段；重启时未用完的号段会被跳过，slot 允许有空洞
	seq, err := db.GetSequence(slotSeqKey, 100)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create sequence: %w", err)
	}

	return &Manager{
		Db:     db,
		seq:    seq,
		Logger: logger,
		cfg:    cfg,
	}, nil
}

// Get 读取 key；不存在时返回 (nil, nil)
func (manager *Manager) Get(key string) ([]byte, error) {
	manager.mu.RLock()
	db := manager.Db
	manager.mu.RUnlock()
	if db == nil {
		return nil, ErrClosed
	}

	var value []byte
	err := db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Exists 判断 key 是否存在
func (manager *Manager) Exists(key string) bool {
	v, err := manager.Get(key)
	return err == nil && v != nil
}

// Scan 扫描指定前缀的所有键值对
func (manager *Manager) Scan(prefix string) (map[string][]byte, error) {
	return manager.ScanWithLimit(prefix, 0)
}

// ScanWithLimit 扫描前缀，limit<=0 表示不限
func (manager *Manager) ScanWithLimit(prefix string, limit int) (map[string][]byte, error) {
	manager.mu.RLock()
	db := manager.Db
	manager.mu.RUnlock()
	if db == nil {
		return nil, ErrClosed
	}

	result := make(map[string][]byte)
	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			k := item.KeyCopy(nil)
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			result[string(k)] = v
			if limit > 0 && len(result) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ApplyBatch 在一个 badger 事务里提交整批写入，要么全部成功要么全部不生效
func (manager *Manager) ApplyBatch(batch []WriteTask) error {
	if len(batch) == 0 {
		return nil
	}
	manager.mu.RLock()
	db := manager.Db
	manager.mu.RUnlock()
	if db == nil {
		return ErrClosed
	}

	err := db.Update(func(txn *badger.Txn) error {
		for _, task := range batch {
			var err error
			switch task.Op {
			case OpSet:
				err = txn.Set(task.Key, task.Value)
			case OpDelete:
				err = txn.Delete(task.Key)
			default:
				err = fmt.Errorf("unknown write op %d for key %q", task.Op, task.Key)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// 单条指令的写集很小，这里过大说明调用方出了问题，不做拆分重试
		if errors.Is(err, badger.ErrTxnTooBig) || strings.Contains(err.Error(), "Txn is too big") {
			manager.Logger.Error("[db.ApplyBatch] batch of %d entries too big for one txn", len(batch))
		}
		return fmt.Errorf("apply batch: %w", err)
	}
	return nil
}

// NextSlot 分配下一个 slot 号（从 1 开始）
func (manager *Manager) NextSlot() (uint64, error) {
	manager.mu.RLock()
	seq := manager.seq
	manager.mu.RUnlock()
	if seq == nil {
		return 0, ErrClosed
	}
	n, err := seq.Next()
	if err != nil {
		return 0, err
	}
	// badger sequence 从 0 开始
	return n + 1, nil
}

// Close 释放发号器并关闭 DB
func (manager *Manager) Close() {
	manager.mu.Lock()
	defer manager.mu.Unlock()

	if manager.seq != nil {
		_ = manager.seq.Release()
		manager.seq = nil
	}
	if manager.Db != nil {
		if err := manager.Db.Close(); err != nil {
			logs.Error("[db.Close] close badger: %v", err)
		}
		manager.Db = nil
	}
}

// badgerLogger 把 badger 自己的日志接到节点 Logger，info 以下降级为 debug
type badgerLogger struct {
	l logs.Logger
}

func (b *badgerLogger) Errorf(format string, v ...interface{}) {
	b.l.Error("[badger] "+strings.TrimSuffix(format, "\n"), v...)
}

func (b *badgerLogger) Warningf(format string, v ...interface{}) {
	b.l.Warn("[badger] "+strings.TrimSuffix(format, "\n"), v...)
}

func (b *badgerLogger) Infof(format string, v ...interface{}) {
	b.l.Debug("[badger] "+strings.TrimSuffix(format, "\n"), v...)
}

func (b *badgerLogger) Debugf(format string, v ...interface{}) {
	b.l.Trace("[badger] "+strings.TrimSuffix(format, "\n"), v...)
}
