package linkconv

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/sqids/sqids-go"
)

const DefaultCompactAlphabet = "k3G7QAe51FCsiWrNOYBUwM6XzZvdLT4j9JhyHKg2cVbxfERq0mSoI8lDpunPat"

var (
	ErrNotCompactable = errors.New("product id is not numeric")
	ErrInvalidCompact = errors.New("invalid compact code")
)

// CompactTarget 是 compact code 解出来的内容。
type CompactTarget struct {
	Agent       string      `json:"agent"`
	Marketplace Marketplace `json:"marketplace"`
	ProductID   string      `json:"productId"`
}

// CompactCodec 把 [agent 下标, 平台下标, 数字商品 ID] 编成一个 sqids 短码。
// 下标依赖 agentTable 和 Marketplaces 的顺序。
type CompactCodec struct {
	sq *sqids.Sqids
}

func NewCompactCodec(alphabet string) (*CompactCodec, error) {
	if alphabet == "" {
		alphabet = DefaultCompactAlphabet
	}
	sq, err := sqids.New(sqids.Options{Alphabet: alphabet, MinLength: 3})
	if err != nil {
		return nil, fmt.Errorf("sqids init: %w", err)
	}
	return &CompactCodec{sq: sq}, nil
}

func (c *CompactCodec) Encode(agentKey string, mp Marketplace, productID string) (string, error) {
	ai := agentIndex(agentKey)
	if ai < 0 {
		return "", fmt.Errorf("unknown agent %q", agentKey)
	}
	mi := marketplaceIndex(mp)
	if mi < 0 {
		return "", fmt.Errorf("unknown marketplace %q", mp)
	}
	// 前导 0 解码后会丢失，不能压缩
	if productID == "" || productID[0] == '0' {
		return "", ErrNotCompactable
	}
	n, err := strconv.ParseUint(productID, 10, 64)
	if err != nil {
		return "", ErrNotCompactable
	}
	return c.sq.Encode([]uint64{uint64(ai), uint64(mi), n})
}

func (c *CompactCodec) Decode(code string) (CompactTarget, error) {
	nums := c.sq.Decode(code)
	if len(nums) != 3 {
		return CompactTarget{}, ErrInvalidCompact
	}
	if nums[0] >= uint64(len(agentTable)) || nums[1] >= uint64(len(Marketplaces)) {
		return CompactTarget{}, ErrInvalidCompact
	}
	// sqids 对同一组数字可能接受多种写法，只认规范编码
	if canonical, err := c.sq.Encode(nums); err != nil || canonical != code {
		return CompactTarget{}, ErrInvalidCompact
	}
	return CompactTarget{
		Agent:       agentTable[nums[0]].key,
		Marketplace: Marketplaces[nums[1]],
		ProductID:   strconv.FormatUint(nums[2], 10),
	}, nil
}

func agentIndex(key string) int {
	a, ok := lookupAgent(key)
	if !ok {
		return -1
	}
	for i, x := range agentTable {
		if x == a {
			return i
		}
	}
	return -1
}

func marketplaceIndex(mp Marketplace) int {
	for i, m := range Marketplaces {
		if m == mp {
			return i
		}
	}
	return -1
}
