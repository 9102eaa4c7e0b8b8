package linkconv

import "errors"

var (
	ErrInvalidURL   = errors.New("invalid URL format")
	ErrNotProduct   = errors.New("not a product link (registration/invite)")
	ErrUnresolvable = errors.New("could not extract product ID or marketplace")

	// ResolveMarketplaceAndID 的两种失败
	ErrResolveFromURL   = errors.New("unable to resolve marketplace and id from URL")
	ErrResolveFromInput = errors.New("unable to resolve marketplace and id from input")
)

// ConversionResult 是一次转换的结果，字段名与前端约定一致。
//
// IsValid 为 true 时 Marketplace 和 ProductID 一定非空，只有 Degraded 例外：
// 所有手段都失败后，最后一次跟随跳转拿到的链接原样返回，平台和商品 ID 为空。
type ConversionResult struct {
	RawLink        string      `json:"rawLink"`
	Marketplace    Marketplace `json:"marketplace"`
	ProductID      string      `json:"productId"`
	IsValid        bool        `json:"isValid"`
	AgentLink      string      `json:"agentLink,omitempty"`
	IsAgent        bool        `json:"isAgent"`
	AgentName      string      `json:"agentName,omitempty"`
	OriginalDomain string      `json:"originalDomain,omitempty"`
	Error          string      `json:"error,omitempty"`
	Degraded       bool        `json:"degraded,omitempty"`
}

// Resolution 是 ResolveMarketplaceAndID 的返回值。
type Resolution struct {
	Marketplace Marketplace `json:"marketplace"`
	ProductID   string      `json:"productId"`
	RawURL      string      `json:"rawUrl"`
}

func invalidResult(err error, info *AgentInfo) ConversionResult {
	if info == nil {
		info = &AgentInfo{OriginalDomain: invalidURLDomain}
	}
	return ConversionResult{
		Error:          err.Error(),
		IsAgent:        info.IsAgent,
		AgentName:      info.AgentName,
		OriginalDomain: info.OriginalDomain,
	}
}

// validResult 统一在这里清洗 pid，清洗后为空视为失败。
func validResult(mp Marketplace, productID string, info AgentInfo) (ConversionResult, bool) {
	pid := SanitizeProductID(productID)
	if pid == "" || !mp.Valid() {
		return ConversionResult{}, false
	}
	return ConversionResult{
		RawLink:        BuildMarketplaceLink(string(mp), pid),
		Marketplace:    mp,
		ProductID:      pid,
		IsValid:        true,
		IsAgent:        info.IsAgent,
		AgentName:      info.AgentName,
		OriginalDomain: info.OriginalDomain,
	}, true
}

// Outcome 用于指标和事件：valid / degraded / invalid / error。
func (r ConversionResult) Outcome() string {
	switch {
	case r.Degraded:
		return "degraded"
	case r.IsValid:
		return "valid"
	case r.OriginalDomain == panicDomain:
		return "error"
	}
	return "invalid"
}
