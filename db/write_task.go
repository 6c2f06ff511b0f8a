package db

// WriteOpType 写任务类型
type WriteOpType int

const (
	OpSet WriteOpType = iota
	OpDelete
)

// WriteTask 一条待落库的写操作
type WriteTask struct {
	Key   []byte
	Value []byte
	Op    WriteOpType
}

// SetTask 构造写入任务
func SetTask(key string, value []byte) WriteTask {
	return WriteTask{Key: []byte(key), Value: value, Op: OpSet}
}

// DeleteTask 构造删除任务
func DeleteTask(key string) WriteTask {
	return WriteTask{Key: []byte(key), Op: OpDelete}
}
