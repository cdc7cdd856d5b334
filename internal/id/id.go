package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu   sync.Mutex
	mono io.Reader
)

func init() {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	// 同一毫秒内单调递增
	mono = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// New 返回按时间排序的 ULID 字符串，订单号与成交号共用。
func New() string {
	return NewAt(time.Now())
}

// NewAt 以指定时间生成 ULID（回测按行情时间生成）。
func NewAt(t time.Time) string {
	mu.Lock()
	defer mu.Unlock()

	v, err := ulid.New(ulid.Timestamp(t.UTC()), mono)
	if err != nil {
		// 单调熵耗尽或时间回拨时退回非单调熵
		v = ulid.MustNew(ulid.Timestamp(t.UTC()), cryptoRand.Reader)
	}
	return v.String()
}
