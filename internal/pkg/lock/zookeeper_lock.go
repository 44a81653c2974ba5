// internal/pkg/lock/zookeeper_lock.go
package lock

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"
)

const (
	zkLockRoot   = "/distributed_locks" // 所有分布式锁的根节点
	zkNodePrefix = "lock-"
	zkSeqLen     = 10 // 顺序节点后缀固定为 10 位数字
)

// ConnectZookeeper 建立 ZooKeeper 会话。servers 为逗号分隔的地址列表。
func ConnectZookeeper(servers string, sessionTimeout time.Duration) (*zk.Conn, error) {
	addrs := strings.Split(servers, ",")
	for i := range addrs {
		addrs[i] = strings.TrimSpace(addrs[i])
	}
	conn, _, err := zk.Connect(addrs, sessionTimeout, zk.WithLogInfo(false))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect zookeeper %s", servers)
	}
	return conn, nil
}

// ZookeeperFactory 基于临时顺序节点的锁工厂。
// 租约与会话绑定：持有者崩溃、会话超时后节点自动删除，因此 TryLock 的 ttl 参数不生效。
type ZookeeperFactory struct {
	conn *zk.Conn
}

// NewZookeeperFactory 确保锁根节点存在
func NewZookeeperFactory(conn *zk.Conn) (*ZookeeperFactory, error) {
	if err := ensurePath(conn, zkLockRoot); err != nil {
		return nil, err
	}
	return &ZookeeperFactory{conn: conn}, nil
}

func (f *ZookeeperFactory) NewLock(name string) Lock {
	// ZooKeeper 路径中不允许出现额外的 '/'
	resource := strings.ReplaceAll(name, "/", "_")
	return &zkLock{conn: f.conn, path: zkLockRoot + "/" + resource}
}

type zkLock struct {
	conn *zk.Conn
	path string // 例如 /distributed_locks/order:1010

	mu       sync.Mutex
	lockNode string // 获取成功后自己创建的节点
}

// TryLock 只竞争一次：自己的节点不是最小序号时删除节点并返回 false，不监听前驱节点
func (l *zkLock) TryLock(ctx context.Context, _ time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	l.mu.Lock()
	held := l.lockNode != ""
	l.mu.Unlock()
	if held {
		return false, nil
	}
	if err := ensurePath(l.conn, l.path); err != nil {
		return false, err
	}

	// 1. 在锁路径下创建一个临时顺序节点
	nodePath, err := l.conn.CreateProtectedEphemeralSequential(l.path+"/"+zkNodePrefix, []byte(""), zk.WorldACL(zk.PermAll))
	if err != nil {
		return false, errors.Wrap(err, "failed to create sequential node")
	}

	// 2. 获取所有子节点，按序号排序
	children, _, err := l.conn.Children(l.path)
	if err != nil {
		_ = l.conn.Delete(nodePath, -1)
		return false, errors.Wrap(err, "failed to get children nodes")
	}
	sort.Slice(children, func(i, j int) bool {
		return sequenceOf(children[i]) < sequenceOf(children[j])
	})

	// 3. 判断自己是否是最小的节点
	myNodeName := strings.TrimPrefix(nodePath, l.path+"/")
	if len(children) == 0 || children[0] != myNodeName {
		if err := l.conn.Delete(nodePath, -1); err != nil && !errors.Is(err, zk.ErrNoNode) {
			return false, errors.Wrap(err, "failed to withdraw sequential node")
		}
		return false, nil
	}

	l.mu.Lock()
	l.lockNode = nodePath
	l.mu.Unlock()
	return true, nil
}

func (l *zkLock) Unlock(_ context.Context) error {
	l.mu.Lock()
	node := l.lockNode
	l.lockNode = ""
	l.mu.Unlock()

	if node == "" {
		return ErrNotHeld
	}
	err := l.conn.Delete(node, -1)
	if errors.Is(err, zk.ErrNoNode) {
		// 会话过期，节点已被服务端清理
		return ErrNotHeld
	}
	if err != nil {
		return fmt.Errorf("failed to delete lock node: %w", err)
	}
	return nil
}

// sequenceOf 取出顺序节点名末尾的序号；受保护节点名带 GUID 前缀，不能直接按字符串排序
func sequenceOf(node string) string {
	if len(node) < zkSeqLen {
		return node
	}
	return node[len(node)-zkSeqLen:]
}

func ensurePath(conn *zk.Conn, path string) error {
	exists, _, err := conn.Exists(path)
	if err != nil {
		return errors.Wrapf(err, "failed to check node %s", path)
	}
	if exists {
		return nil
	}
	_, err = conn.Create(path, []byte(""), 0, zk.WorldACL(zk.PermAll))
	if err != nil && !errors.Is(err, zk.ErrNodeExists) {
		return errors.Wrapf(err, "failed to create node %s", path)
	}
	return nil
}
